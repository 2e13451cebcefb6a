// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// LoginResultKey is the vault key of a stored login result.
const LoginResultKey = "login_result"

// Vault is a secure key/value store for serialized session state, grouped by
// resource name.  Get returns ErrNotFound when there's no value for the key.
type Vault interface {
	Put(ctx context.Context, resource, key, value string) error
	Get(ctx context.Context, resource, key string) (string, error)
	DeleteAll(ctx context.Context, resource string) error
}

// loginRecord is the persisted form of a LoginResult.  Unlike a LoginResult,
// its tokens are not redacted.
type loginRecord struct {
	Success               bool       `json:"success"`
	Error                 string     `json:"error,omitempty"`
	Principal             *Principal `json:"principal"`
	AccessToken           string     `json:"accessToken"`
	IdentityToken         string     `json:"identityToken,omitempty"`
	RefreshToken          string     `json:"refreshToken,omitempty"`
	AccessTokenExpiration time.Time  `json:"accessTokenExpiration"`
	AuthenticationTime    time.Time  `json:"authenticationTime"`
	RenewMarginSeconds    int64      `json:"renewMarginSeconds"`
}

// StoreLoginResult serializes the result and writes it to the vault,
// replacing anything else stored for the resource.
func StoreLoginResult(ctx context.Context, v Vault, resource string, r *LoginResult) error {
	const op = "StoreLoginResult"
	switch {
	case v == nil:
		return fmt.Errorf("%s: vault is nil: %w", op, ErrNilParameter)
	case resource == "":
		return fmt.Errorf("%s: resource name is empty: %w", op, ErrInvalidParameter)
	case r == nil:
		return fmt.Errorf("%s: login result is nil: %w", op, ErrNilParameter)
	}
	b, err := json.Marshal(&loginRecord{
		Success:               r.Success,
		Error:                 r.Error,
		Principal:             r.Principal,
		AccessToken:           string(r.AccessToken),
		IdentityToken:         string(r.IdentityToken),
		RefreshToken:          string(r.RefreshToken),
		AccessTokenExpiration: r.AccessTokenExpiration,
		AuthenticationTime:    r.AuthenticationTime,
		RenewMarginSeconds:    int64(r.RenewMargin / time.Second),
	})
	if err != nil {
		return fmt.Errorf("%s: unable to marshal login result: %w", op, err)
	}
	if err := v.DeleteAll(ctx, resource); err != nil {
		return fmt.Errorf("%s: unable to remove previous login result: %w: %w", op, ErrVaultFailed, err)
	}
	if err := v.Put(ctx, resource, LoginResultKey, string(b)); err != nil {
		return fmt.Errorf("%s: unable to store login result: %w: %w", op, ErrVaultFailed, err)
	}
	return nil
}

// RetrieveLoginResult reads the login result stored for the resource.  It
// returns nil (and no error) when nothing is stored, the stored value can't
// be decoded or the result is no longer valid at now.  Only vault failures
// are returned as errors.
func RetrieveLoginResult(ctx context.Context, v Vault, resource string, now time.Time) (*LoginResult, error) {
	const op = "RetrieveLoginResult"
	switch {
	case v == nil:
		return nil, fmt.Errorf("%s: vault is nil: %w", op, ErrNilParameter)
	case resource == "":
		return nil, fmt.Errorf("%s: resource name is empty: %w", op, ErrInvalidParameter)
	}
	raw, err := v.Get(ctx, resource, LoginResultKey)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("%s: %w: %w", op, ErrVaultFailed, err)
	}

	var rec loginRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, nil
	}
	r := &LoginResult{
		Success:               rec.Success,
		Error:                 rec.Error,
		Principal:             rec.Principal,
		AccessToken:           AccessToken(rec.AccessToken),
		IdentityToken:         IdToken(rec.IdentityToken),
		RefreshToken:          RefreshToken(rec.RefreshToken),
		AccessTokenExpiration: rec.AccessTokenExpiration,
		AuthenticationTime:    rec.AuthenticationTime,
		RenewMargin:           time.Duration(rec.RenewMarginSeconds) * time.Second,
	}
	if !r.Success || r.Principal == nil || r.AccessToken == "" {
		return nil, nil
	}
	if !r.IsAccessTokenValid(now) {
		return nil, nil
	}
	return r, nil
}
