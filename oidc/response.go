// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// AuthorizationResponse is the decoded authorization callback.
type AuthorizationResponse struct {
	State       string
	Code        string
	IdToken     IdToken
	AccessToken AccessToken
	TokenType   string
	Scope       string

	// ExpiresIn is the access token lifetime in whole seconds (implicit
	// flow only).
	ExpiresIn int64
}

// ParseAuthorizationResponse decodes the callback payload returned by a
// BrowserInvoker.  The payload is either a full callback URL (query or
// fragment response modes) or a form encoded body (form_post).
//
// A provider error is returned as a *ProtocolError.  Code flows require a
// code, hybrid and implicit flows require an id_token and the implicit flow
// requires an access_token.
func ParseAuthorizationResponse(payload string, flow Flow) (*AuthorizationResponse, error) {
	const op = "ParseAuthorizationResponse"
	values, err := callbackValues(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrMalformedResponse, err)
	}

	if code := values.Get("error"); code != "" {
		return nil, fmt.Errorf("%s: %w", op, &ProtocolError{
			Code:        code,
			Description: values.Get("error_description"),
			Uri:         values.Get("error_uri"),
		})
	}

	r := &AuthorizationResponse{
		State:       values.Get("state"),
		Code:        values.Get("code"),
		IdToken:     IdToken(values.Get("id_token")),
		AccessToken: AccessToken(values.Get("access_token")),
		TokenType:   values.Get("token_type"),
		Scope:       values.Get("scope"),
	}
	if flow.usesCode() && r.Code == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingCode)
	}
	if flow.callbackIdToken() && r.IdToken == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingIdToken)
	}
	if flow == ImplicitFlow && r.AccessToken == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingAccessToken)
	}
	if s := values.Get("expires_in"); s != "" {
		if r.ExpiresIn, err = parseExpiresIn(s); err != nil {
			return nil, fmt.Errorf("%s: expires_in %q: %w", op, s, ErrMalformedResponse)
		}
	}
	return r, nil
}

// callbackValues returns the response parameters of a callback URL or a
// form body.  Fragment parameters are used when the URL has no query.
func callbackValues(payload string) (url.Values, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, fmt.Errorf("empty payload")
	}
	if strings.Contains(payload, "://") {
		u, err := url.Parse(payload)
		if err != nil {
			return nil, err
		}
		if u.RawQuery != "" {
			return url.ParseQuery(u.RawQuery)
		}
		// Fragment is already unescaped
		return url.ParseQuery(u.EscapedFragment())
	}
	return url.ParseQuery(strings.TrimLeft(payload, "?#"))
}

// parseExpiresIn truncates the value to whole seconds.
func parseExpiresIn(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrMalformedResponse
	}
	return int64(f), nil
}
