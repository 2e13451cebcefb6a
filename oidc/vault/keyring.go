// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-oidcclient/oidc"
	"github.com/zalando/go-keyring"
)

// Keyring is an oidc.Vault backed by the OS keyring.  Each resource is a
// keyring service; its keys are the service's users.
type Keyring struct {
	prefix string
}

var _ oidc.Vault = (*Keyring)(nil)

// NewKeyring creates a vault in the OS keyring.
//
// Supported options:
//
//	WithKeyPrefix
func NewKeyring(opt ...oidc.Option) *Keyring {
	opts := getOpts(opt...)
	return &Keyring{prefix: opts.withKeyPrefix}
}

// Put implements oidc.Vault.
func (k *Keyring) Put(ctx context.Context, resource, key, value string) error {
	const op = "Keyring.Put"
	if err := validateKey(resource, key); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := keyring.Set(resourceKey(k.prefix, resource), key, value); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Get implements oidc.Vault.
func (k *Keyring) Get(ctx context.Context, resource, key string) (string, error) {
	const op = "Keyring.Get"
	if err := validateKey(resource, key); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	v, err := keyring.Get(resourceKey(k.prefix, resource), key)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return "", fmt.Errorf("%s: %s/%s: %w", op, resource, key, oidc.ErrNotFound)
	case err != nil:
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

// DeleteAll implements oidc.Vault.
func (k *Keyring) DeleteAll(ctx context.Context, resource string) error {
	const op = "Keyring.DeleteAll"
	if resource == "" {
		return fmt.Errorf("%s: resource name is empty: %w", op, oidc.ErrInvalidParameter)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := keyring.DeleteAll(resourceKey(k.prefix, resource)); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func validateKey(resource, key string) error {
	switch {
	case resource == "":
		return fmt.Errorf("resource name is empty: %w", oidc.ErrInvalidParameter)
	case key == "":
		return fmt.Errorf("key is empty: %w", oidc.ErrInvalidParameter)
	}
	return nil
}
