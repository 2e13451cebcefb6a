// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// clientAssertionType is the client_assertion_type of a JWT client assertion.
// See: https://datatracker.ietf.org/doc/html/rfc7523#section-2.2
const clientAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// oauth2Config returns the oauth2 client config for the relying party and the
// provider endpoints.
func oauth2Config(c *Config, e *Endpoints) *oauth2.Config {
	style := c.ClientAuthStyle.oauth2()
	if c.ClientAssertion != nil || c.ClientSecret == "" {
		// client_id must be a form param when there's no secret to send in
		// a basic auth header.
		style = oauth2.AuthStyleInParams
	}
	return &oauth2.Config{
		ClientID:     c.ClientId,
		ClientSecret: string(c.ClientSecret),
		RedirectURL:  c.RedirectUrl,
		Scopes:       c.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   e.AuthorizeUrl,
			TokenURL:  e.TokenUrl,
			AuthStyle: style,
		},
	}
}

// exchange redeems the authorization code at the token endpoint.  Provider
// error responses are returned as a *ProtocolError and every other failure
// wraps ErrTransport.
func (c *Client) exchange(ctx context.Context, code string, verifier CodeVerifier) (*TokenSet, error) {
	const op = "Client.exchange"
	if code == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingCode)
	}
	var opts []oauth2.AuthCodeOption
	if verifier != nil {
		opts = append(opts, oauth2.VerifierOption(verifier.Verifier()))
	}
	if c.config.ClientAssertion != nil {
		assertion, err := c.config.ClientAssertion.Serialize()
		if err != nil {
			return nil, fmt.Errorf("%s: unable to create client assertion: %w: %w", op, ErrInvalidParameter, err)
		}
		opts = append(opts,
			oauth2.SetAuthURLParam("client_assertion_type", clientAssertionType),
			oauth2.SetAuthURLParam("client_assertion", assertion),
		)
	}

	ctx, cancel := context.WithTimeout(ctx, c.httpTimeout())
	defer cancel()
	tk, err := oauth2Config(c.config, c.endpoints).Exchange(HttpClientContext(ctx, c.client), code, opts...)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode != "" {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrTokenExchangeFailed, &ProtocolError{
				Code:        re.ErrorCode,
				Description: re.ErrorDescription,
				Uri:         re.ErrorURI,
			})
		}
		return nil, fmt.Errorf("%s: %w: %w: %w", op, ErrTokenExchangeFailed, ErrTransport, err)
	}
	if tk.AccessToken == "" {
		return nil, fmt.Errorf("%s: token response: %w", op, ErrMissingAccessToken)
	}

	ts := &TokenSet{
		AccessToken:  AccessToken(tk.AccessToken),
		RefreshToken: RefreshToken(tk.RefreshToken),
		TokenType:    tk.TokenType,
		ExpiresIn:    tk.ExpiresIn,
	}
	if ts.ExpiresIn == 0 && !tk.Expiry.IsZero() {
		ts.ExpiresIn = int64(time.Until(tk.Expiry).Round(time.Second) / time.Second)
	}
	if idt, ok := tk.Extra("id_token").(string); ok {
		ts.IdToken = IdToken(idt)
	}
	c.logger.Debug("exchanged authorization code", "token_type", ts.TokenType, "expires_in", ts.ExpiresIn)
	return ts, nil
}
