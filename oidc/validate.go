// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"fmt"
)

// validateIdentity validates the id_token and checks that it was issued for
// this request (nonce) and this client (audience).  The first failure is
// returned and nothing after it is checked.
func (c *Client) validateIdentity(ctx context.Context, req *Request, t IdToken) (*Principal, error) {
	const op = "Client.validateIdentity"
	ctx, cancel := context.WithTimeout(ctx, c.httpTimeout())
	defer cancel()

	p, err := c.validator.ValidateIdentityToken(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%s: no claims: %w", op, ErrIdTokenValidationFailed)
	}
	c.logger.Debug("identity token validated", "claims", len(p.Claims))

	if p.FindFirst(ClaimNonce) != req.Nonce() {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidNonce)
	}
	if p.FindFirst(ClaimAudience) != c.config.ClientId {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidAudience)
	}
	return p, nil
}

// verifyCodeHash checks the c_hash claim binds the id_token to the code.
func verifyCodeHash(p *Principal, code string) error {
	const op = "verifyCodeHash"
	if !verifyLeftHash(p.FindFirst(ClaimAuthorizationCodeHash), code) {
		return fmt.Errorf("%s: %w", op, ErrInvalidCodeHash)
	}
	return nil
}

// verifyAccessTokenHash checks the at_hash claim binds the id_token to the
// access token.  With required false, a missing at_hash claim is accepted.
func verifyAccessTokenHash(p *Principal, t AccessToken, required bool) error {
	const op = "verifyAccessTokenHash"
	atHash := p.FindFirst(ClaimAccessTokenHash)
	if atHash == "" && !required {
		return nil
	}
	if !verifyLeftHash(atHash, string(t)) {
		return fmt.Errorf("%s: %w", op, ErrInvalidAtHash)
	}
	return nil
}
