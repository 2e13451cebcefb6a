// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"
	"net/http"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
)

// Endpoints are the provider URLs used by the relying party.  They're either
// supplied directly (NewEndpoints) or discovered once (Discover), and are
// read-only afterwards.
type Endpoints struct {
	// Issuer is optional, but it's required for LocalValidator.
	Issuer string

	AuthorizeUrl  string
	TokenUrl      string
	EndSessionUrl string
	UserInfoUrl   string

	// IdentityTokenValidationUrl is the remote endpoint that validates an
	// id_token and returns its claims.  See RemoteValidator.
	IdentityTokenValidationUrl string

	// JWKSUrl is optional, but it's required for LocalValidator.
	JWKSUrl string
}

// NewEndpoints composes provider endpoints that were not discovered.
//
// Supported options:
//
//	WithIssuer
//	WithJWKSURL
func NewEndpoints(authorizeUrl, tokenUrl, endSessionUrl, userInfoUrl, identityTokenValidationUrl string, opt ...Option) (*Endpoints, error) {
	const op = "NewEndpoints"
	opts := getEndpointsOpts(opt...)
	e := &Endpoints{
		Issuer:                     opts.withIssuer,
		AuthorizeUrl:               authorizeUrl,
		TokenUrl:                   tokenUrl,
		EndSessionUrl:              endSessionUrl,
		UserInfoUrl:                userInfoUrl,
		IdentityTokenValidationUrl: identityTokenValidationUrl,
		JWKSUrl:                    opts.withJWKSUrl,
	}
	if e.AuthorizeUrl == "" {
		return nil, fmt.Errorf("%s: authorize URL is empty: %w", op, ErrMissingEndpoint)
	}
	return e, nil
}

// Validate verifies every endpoint the config needs is present. All missing
// endpoints are reported.
func (e *Endpoints) Validate(c *Config) error {
	return e.validate(c, false)
}

func (e *Endpoints) validate(c *Config, customValidator bool) error {
	const op = "Endpoints.Validate"
	if e == nil {
		return fmt.Errorf("%s: endpoints are nil: %w", op, ErrNilParameter)
	}
	if c == nil {
		return fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	missing := func(name string) {
		result = multierror.Append(result, fmt.Errorf("%s is empty: %w", name, ErrMissingEndpoint))
	}
	if e.AuthorizeUrl == "" {
		missing("authorize URL")
	}
	if c.Flow.usesCode() && e.TokenUrl == "" {
		missing("token URL")
	}
	if c.LoadProfile && e.UserInfoUrl == "" {
		missing("user info URL")
	}
	if !customValidator && e.IdentityTokenValidationUrl == "" && e.JWKSUrl == "" {
		missing("identity token validation URL")
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// endpointsOptions is the set of available options for NewEndpoints and
// Discover.
type endpointsOptions struct {
	withIssuer                     string
	withJWKSUrl                    string
	withIdentityTokenValidationUrl string
	withDiscoveryRetries           uint
	withProviderCA                 string
	withHTTPClient                 *http.Client
	withLogger                     hclog.Logger
}

func endpointsDefaults() endpointsOptions {
	return endpointsOptions{
		withDiscoveryRetries: 3,
		withLogger:           hclog.NewNullLogger(),
	}
}

func getEndpointsOpts(opt ...Option) endpointsOptions {
	opts := endpointsDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithIssuer provides an optional issuer for NewEndpoints.
func WithIssuer(issuer string) Option {
	return func(o interface{}) {
		if o, ok := o.(*endpointsOptions); ok {
			o.withIssuer = issuer
		}
	}
}

// WithJWKSURL provides an optional JWKS URL for NewEndpoints.
func WithJWKSURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*endpointsOptions); ok {
			o.withJWKSUrl = u
		}
	}
}

// WithIdentityTokenValidationURL overrides the identity token validation URL
// derived by Discover.
func WithIdentityTokenValidationURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*endpointsOptions); ok {
			o.withIdentityTokenValidationUrl = u
		}
	}
}

// WithDiscoveryRetries provides the number of times Discover retries a
// failed discovery request.  Default: 3.
func WithDiscoveryRetries(n uint) Option {
	return func(o interface{}) {
		if o, ok := o.(*endpointsOptions); ok {
			o.withDiscoveryRetries = n
		}
	}
}
