// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/base64"
	"fmt"

	"github.com/hashicorp/go-uuid"
)

// DefaultIDLength is the number of random bytes in a generated ID (256 bits).
const DefaultIDLength = 32

// NewID generates a random, URL safe ID with an optional prefix.  The ID
// generated is suitable for a state or nonce.  Every call returns a new value.
func NewID(optionalPrefix string) (string, error) {
	const op = "NewID"
	b, err := uuid.GenerateRandomBytes(DefaultIDLength)
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate id: %w: %w", op, ErrIdGeneratorFailed, err)
	}
	id := base64.RawURLEncoding.EncodeToString(b)
	if optionalPrefix != "" {
		return fmt.Sprintf("%s_%s", optionalPrefix, id), nil
	}
	return id, nil
}
