// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// userInfo returns the claims of the user info endpoint for the access token.
func (c *Client) userInfo(ctx context.Context, t AccessToken) ([]Claim, error) {
	const op = "Client.userInfo"
	if t == "" {
		return nil, fmt.Errorf("%s: access token is empty: %w", op, ErrUserInfoFailed)
	}
	ctx, cancel := context.WithTimeout(ctx, c.httpTimeout())
	defer cancel()

	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: string(t), TokenType: "Bearer"})
	info, err := c.provider.UserInfo(HttpClientContext(ctx, c.client), tokenSource)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUserInfoFailed, err)
	}
	var m map[string]interface{}
	if err := info.Claims(&m); err != nil {
		return nil, fmt.Errorf("%s: unable to read claims: %w: %w", op, ErrUserInfoFailed, err)
	}
	claims, err := ClaimsFromMap(m)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUserInfoFailed, err)
	}
	return claims, nil
}
