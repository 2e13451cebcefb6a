// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// LoginResult is the outcome of a login attempt.  On success it's the
// session record: the principal and tokens.  On failure Error describes
// why and Err returns the underlying error.
//
// Marshaling a LoginResult to JSON redacts its tokens.  Use
// StoreLoginResult to persist one.
type LoginResult struct {
	Success bool
	Error   string

	Principal     *Principal
	AccessToken   AccessToken
	IdentityToken IdToken
	RefreshToken  RefreshToken

	AccessTokenExpiration time.Time
	AuthenticationTime    time.Time

	// RenewMargin is how long before AccessTokenExpiration the result is
	// no longer valid.
	RenewMargin time.Duration

	err error
}

// newSuccessResult composes a successful result.  A success always has a
// principal and an access token.
func newSuccessResult(p *Principal, ts *TokenSet, now time.Time, renewMargin time.Duration) (*LoginResult, error) {
	const op = "newSuccessResult"
	switch {
	case p == nil || !p.IsAuthenticated():
		return nil, fmt.Errorf("%s: principal is missing: %w", op, ErrInvalidParameter)
	case ts == nil || ts.AccessToken == "":
		return nil, fmt.Errorf("%s: %w", op, ErrMissingAccessToken)
	}
	return &LoginResult{
		Success:               true,
		Principal:             p,
		AccessToken:           ts.AccessToken,
		IdentityToken:         ts.IdToken,
		RefreshToken:          ts.RefreshToken,
		AccessTokenExpiration: now.Add(time.Duration(ts.ExpiresIn) * time.Second),
		AuthenticationTime:    now,
		RenewMargin:           renewMargin,
	}, nil
}

// newErrorResult composes a failed result reporting msg.
func newErrorResult(msg string, err error) *LoginResult {
	return &LoginResult{Error: msg, err: err}
}

// Err returns the error of a failed result, or nil.
func (r *LoginResult) Err() error {
	if r == nil || r.Success {
		return nil
	}
	if r.err == nil {
		return errors.New(r.Error)
	}
	return r.err
}

// IsAccessTokenValid reports whether now is before the access token
// expiration less the renew margin.
func (r *LoginResult) IsAccessTokenValid(now time.Time) bool {
	if r == nil || !r.Success {
		return false
	}
	return now.Before(r.AccessTokenExpiration.Add(-r.RenewMargin))
}

// reportedErrors are reported on a failed LoginResult by their own text.
var reportedErrors = []error{
	ErrIdTokenValidationFailed,
	ErrInvalidNonce,
	ErrInvalidAudience,
	ErrInvalidCodeHash,
	ErrInvalidAtHash,
	ErrInvalidState,
	ErrMissingCode,
	ErrMissingIdToken,
	ErrMissingAccessToken,
	ErrUserInfoFailed,
}

// resultMessage returns the message a failed LoginResult reports for err:
// the provider's error code, the text of a well known failure, or the HTTP
// status of a failed token request.
func resultMessage(err error) string {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Code
	}
	for _, e := range reportedErrors {
		if errors.Is(err, e) {
			return e.Error()
		}
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return re.Response.Status
	}
	return err.Error()
}
