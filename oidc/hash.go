// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"crypto/sha256"
	"encoding/base64"
)

// LeftHash returns the left-most 128 bits of the SHA-256 hash of the value's
// ASCII bytes, base64url encoded without padding.  It's the c_hash of an
// authorization code and the at_hash of an access token.
//
// See: https://openid.net/specs/openid-connect-core-1_0.html#HybridIDToken
func LeftHash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2])
}

// verifyLeftHash compares (exact, case sensitive) the claim to the value's
// left hash.
func verifyLeftHash(claim, value string) bool {
	return claim != "" && claim == LeftHash(value)
}
