// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"errors"
)

var (
	ErrInvalidParameter           = errors.New("invalid parameter")
	ErrNilParameter               = errors.New("nil parameter")
	ErrInvalidCACert              = errors.New("invalid CA certificate")
	ErrMissingEndpoint            = errors.New("missing endpoint")
	ErrDiscoveryFailed            = errors.New("discovery failed")
	ErrIdGeneratorFailed          = errors.New("id generation failed")
	ErrUnsupportedChallengeMethod = errors.New("unsupported PKCE challenge method")
	ErrUnsupportedFlow            = errors.New("unsupported flow")
	ErrUnsupportedResponseMode    = errors.New("unsupported response mode")

	ErrInvokeFailed = errors.New("browser invocation failed")
	ErrUserCancel   = errors.New("user cancel")
	ErrTimeout      = errors.New("timeout")
	ErrHttpError    = errors.New("http error")

	ErrProtocol           = errors.New("protocol error")
	ErrMalformedResponse  = errors.New("malformed authorization response")
	ErrMissingCode        = errors.New("missing authorization code")
	ErrMissingIdToken     = errors.New("missing identity token")
	ErrMissingAccessToken = errors.New("missing access token")

	ErrIdTokenValidationFailed = errors.New("identity token validation error")
	ErrInvalidNonce            = errors.New("invalid nonce")
	ErrInvalidAudience         = errors.New("invalid audience")
	ErrInvalidCodeHash         = errors.New("invalid code")
	ErrInvalidAtHash           = errors.New("invalid access token")
	ErrInvalidState            = errors.New("invalid state")

	ErrTokenExchangeFailed = errors.New("token exchange failed")
	ErrUserInfoFailed      = errors.New("user info request failed")
	ErrTransport           = errors.New("transport error")

	ErrNotFound     = errors.New("not found")
	ErrVaultFailed  = errors.New("vault operation failed")
	ErrNotLoggedIn  = errors.New("no current session")
	ErrExpiredLogin = errors.New("login result is expired")
)

// ErrorKind classifies an attempt failure so callers can decide whether a
// fresh attempt makes sense.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota

	// KindConfiguration is a missing or invalid setting.  Not retryable.
	KindConfiguration

	// KindUserCancelledOrTimedOut is reported by the browser invoker.
	KindUserCancelledOrTimedOut

	// KindProtocol is a provider error code or a required field missing from
	// a provider response.
	KindProtocol

	// KindBindingValidation is a nonce, audience or hash mismatch.  It must
	// never be retried silently.
	KindBindingValidation

	// KindTransport is a network or non-2xx failure.  A caller may start a
	// fresh attempt (with a new nonce).
	KindTransport
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindUserCancelledOrTimedOut:
		return "user cancelled or timed out"
	case KindProtocol:
		return "protocol"
	case KindBindingValidation:
		return "binding validation"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Kind returns the ErrorKind of err, based on the sentinel errors it wraps.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrTransport):
		// ex: the identity token validation endpoint is unreachable
		return KindTransport
	case errors.Is(err, ErrInvalidNonce),
		errors.Is(err, ErrInvalidAudience),
		errors.Is(err, ErrInvalidCodeHash),
		errors.Is(err, ErrInvalidAtHash),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrIdTokenValidationFailed):
		return KindBindingValidation
	case errors.Is(err, ErrUserCancel), errors.Is(err, ErrTimeout):
		return KindUserCancelledOrTimedOut
	case errors.Is(err, ErrProtocol),
		errors.Is(err, ErrMalformedResponse),
		errors.Is(err, ErrMissingCode),
		errors.Is(err, ErrMissingIdToken),
		errors.Is(err, ErrMissingAccessToken):
		return KindProtocol
	case errors.Is(err, ErrHttpError),
		errors.Is(err, ErrInvokeFailed),
		errors.Is(err, ErrDiscoveryFailed):
		return KindTransport
	case errors.Is(err, ErrInvalidParameter),
		errors.Is(err, ErrNilParameter),
		errors.Is(err, ErrMissingEndpoint),
		errors.Is(err, ErrInvalidCACert),
		errors.Is(err, ErrUnsupportedFlow),
		errors.Is(err, ErrUnsupportedResponseMode),
		errors.Is(err, ErrUnsupportedChallengeMethod):
		return KindConfiguration
	default:
		return KindUnknown
	}
}

// ProtocolError is an OAuth/OIDC error response returned by the provider,
// either on the authorization callback or from the token endpoint.
type ProtocolError struct {
	Code        string
	Description string
	Uri         string
}

// Error returns the provider's error code, which is what LoginResult.Error
// reports for a provider error.
func (e *ProtocolError) Error() string {
	return e.Code
}

// Is lets errors.Is(err, ErrProtocol) match any *ProtocolError.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}
