// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/text/language"
)

// ClientSecret is an oauth client secret.
type ClientSecret string

// RedactedClientSecret is the redacted string or json for an oauth client secret
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret
func (t ClientSecret) String() string {
	return RedactedClientSecret
}

// MarshalJSON will redact the client secret
func (t ClientSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedClientSecret)
}

// Flow selects the response_type of the authorization request, which in turn
// decides what the callback carries and which hash binding is enforced.
type Flow string

const (
	// AuthCodeFlow requests "code".  The id_token is obtained from the
	// token endpoint.
	AuthCodeFlow Flow = "code"

	// HybridFlow requests "code id_token".  The id_token in the callback is
	// bound to the code via its c_hash claim.
	HybridFlow Flow = "code id_token"

	// ImplicitFlow requests "id_token token".  The id_token in the callback
	// is bound to the access token via its at_hash claim.  There is no token
	// exchange.
	ImplicitFlow Flow = "id_token token"
)

// ResponseType returns the oauth response_type value for the flow.
func (f Flow) ResponseType() string { return string(f) }

func (f Flow) valid() bool {
	switch f {
	case AuthCodeFlow, HybridFlow, ImplicitFlow:
		return true
	}
	return false
}

// callbackIdToken reports whether the authorization callback must carry an
// id_token.
func (f Flow) callbackIdToken() bool { return f == HybridFlow || f == ImplicitFlow }

// usesCode reports whether the flow redeems an authorization code at the
// token endpoint.
func (f Flow) usesCode() bool { return f == AuthCodeFlow || f == HybridFlow }

// ResponseMode is the oauth response_mode requested of the provider.
type ResponseMode string

const (
	FormPostResponseMode ResponseMode = "form_post"
	QueryResponseMode    ResponseMode = "query"
	FragmentResponseMode ResponseMode = "fragment"
)

func (m ResponseMode) valid() bool {
	switch m {
	case FormPostResponseMode, QueryResponseMode, FragmentResponseMode:
		return true
	}
	return false
}

// ClientAuthStyle is how the client authenticates to the token endpoint
// when using a client secret.
type ClientAuthStyle int

const (
	// AuthStyleAutoDetect tries the basic auth header and falls back to
	// form params, remembering what worked.
	AuthStyleAutoDetect ClientAuthStyle = iota

	// AuthStyleInParams sends client_id and client_secret as form params.
	AuthStyleInParams

	// AuthStyleInHeader sends them using HTTP basic auth.
	AuthStyleInHeader
)

func (s ClientAuthStyle) oauth2() oauth2.AuthStyle {
	switch s {
	case AuthStyleInParams:
		return oauth2.AuthStyleInParams
	case AuthStyleInHeader:
		return oauth2.AuthStyleInHeader
	default:
		return oauth2.AuthStyleAutoDetect
	}
}

// ClientAssertion produces a signed JWT the client uses to authenticate
// itself to the token endpoint (private_key_jwt or client_secret_jwt).
// *clientassertion.JWT satisfies it.
type ClientAssertion interface {
	Serialize() (string, error)
}

// JWT claim types which are protocol bookkeeping rather than identity.
const (
	ClaimIssuer                = "iss"
	ClaimExpiration            = "exp"
	ClaimNotBefore             = "nbf"
	ClaimAudience              = "aud"
	ClaimNonce                 = "nonce"
	ClaimIssuedAt              = "iat"
	ClaimAuthenticationTime    = "auth_time"
	ClaimAuthorizationCodeHash = "c_hash"
	ClaimAccessTokenHash       = "at_hash"
)

// DefaultFilteredClaimTypes are removed from the principal when protocol
// claim filtering is enabled and no other set was configured.
func DefaultFilteredClaimTypes() []string {
	return []string{
		ClaimIssuer,
		ClaimExpiration,
		ClaimNotBefore,
		ClaimAudience,
		ClaimNonce,
		ClaimIssuedAt,
		ClaimAuthenticationTime,
		ClaimAuthorizationCodeHash,
		ClaimAccessTokenHash,
	}
}

const (
	DefaultInvokeTimeout       = 10 * time.Second
	DefaultSilentInvokeTimeout = 5 * time.Second
	DefaultHTTPTimeout         = 30 * time.Second
	DefaultRenewMargin         = 60 * time.Second
)

// Config represents the relying party configuration.  Use NewConfig to
// create one; a Config should not be modified once it's handed to a Client.
type Config struct {
	// ClientId is the relying party id
	ClientId string

	// ClientSecret is the relying party secret.  It's only required when the
	// flow redeems a code at the token endpoint and neither a client assertion
	// nor a public client was configured.
	ClientSecret ClientSecret

	// Scopes requested of the provider.  The required "openid" scope is
	// always the first one.
	Scopes []string

	// RedirectUrl is where the provider sends the authorization response.
	RedirectUrl string

	Flow         Flow
	ResponseMode ResponseMode

	// UsePKCE adds a code_challenge to the authorization request and the
	// code_verifier to the code exchange.
	UsePKCE bool

	// LoadProfile merges user info endpoint claims into the principal.
	LoadProfile bool

	// FilterProtocolClaims removes FilteredClaimTypes from the principal.
	FilterProtocolClaims bool
	FilteredClaimTypes   []string

	// EnableAlternateCredentials is passed to the BrowserInvoker for both
	// silent and interactive attempts (ex: enterprise/integrated auth).
	EnableAlternateCredentials bool

	// PublicClient allows an empty ClientSecret for code flows.
	PublicClient bool

	ClientAuthStyle ClientAuthStyle
	ClientAssertion ClientAssertion

	// ProviderCA is an optional CA cert (PEM) to use when sending requests to
	// the provider.
	ProviderCA string

	HTTPTimeout         time.Duration
	InvokeTimeout       time.Duration
	SilentInvokeTimeout time.Duration

	// RenewMargin is how long before the access token expires that a login
	// result is no longer considered valid.
	RenewMargin time.Duration

	UILocales []language.Tag

	// NowFunc is a time func that returns the current time.
	NowFunc func() time.Time
}

// NewConfig composes a new relying party config.  The scope is a space
// separated list, "openid" is added when missing.
//
// Supported options:
//
//	WithFlow
//	WithResponseMode
//	WithPKCE
//	WithLoadProfile
//	WithFilterProtocolClaims
//	WithFilteredClaimTypes
//	WithAlternateCredentials
//	WithPublicClient
//	WithClientAuthStyle
//	WithClientAssertion
//	WithProviderCA
//	WithHTTPTimeout
//	WithInvokeTimeout
//	WithSilentInvokeTimeout
//	WithRenewMargin
//	WithUILocales
//	WithNow
func NewConfig(clientId string, clientSecret ClientSecret, scope string, redirectUrl string, opt ...Option) (*Config, error) {
	const op = "NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		ClientId:                   clientId,
		ClientSecret:               clientSecret,
		Scopes:                     parseScope(scope),
		RedirectUrl:                redirectUrl,
		Flow:                       opts.withFlow,
		ResponseMode:               opts.withResponseMode,
		UsePKCE:                    opts.withPKCE,
		LoadProfile:                opts.withLoadProfile,
		FilterProtocolClaims:       opts.withFilterProtocolClaims,
		FilteredClaimTypes:         opts.withFilteredClaimTypes,
		EnableAlternateCredentials: opts.withAlternateCredentials,
		PublicClient:               opts.withPublicClient,
		ClientAuthStyle:            opts.withClientAuthStyle,
		ClientAssertion:            opts.withClientAssertion,
		ProviderCA:                 opts.withProviderCA,
		HTTPTimeout:                opts.withHTTPTimeout,
		InvokeTimeout:              opts.withInvokeTimeout,
		SilentInvokeTimeout:        opts.withSilentInvokeTimeout,
		RenewMargin:                opts.withRenewMargin,
		UILocales:                  opts.withUILocales,
		NowFunc:                    opts.withNowFunc,
	}
	if strings.TrimSpace(scope) == "" {
		return nil, fmt.Errorf("%s: scope is empty: %w", op, ErrInvalidParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid config: %w", op, err)
	}
	return c, nil
}

// Validate the configuration.  It doesn't verify anything about the
// provider; see Endpoints.Validate for that.
func (c *Config) Validate() error {
	const op = "Config.Validate"
	if c == nil {
		return fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	if strings.TrimSpace(c.ClientId) == "" {
		return fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter)
	}
	if len(c.Scopes) == 0 {
		return fmt.Errorf("%s: scopes are empty: %w", op, ErrInvalidParameter)
	}
	if c.RedirectUrl == "" {
		return fmt.Errorf("%s: redirect URL is empty: %w", op, ErrInvalidParameter)
	}
	if _, err := url.Parse(c.RedirectUrl); err != nil {
		return fmt.Errorf("%s: redirect URL %q is invalid: %w", op, c.RedirectUrl, ErrInvalidParameter)
	}
	if !c.Flow.valid() {
		return fmt.Errorf("%s: %q: %w", op, c.Flow, ErrUnsupportedFlow)
	}
	if !c.ResponseMode.valid() {
		return fmt.Errorf("%s: %q: %w", op, c.ResponseMode, ErrUnsupportedResponseMode)
	}
	if c.Flow.usesCode() && c.ClientSecret == "" && c.ClientAssertion == nil && !c.PublicClient {
		return fmt.Errorf("%s: client secret is empty: %w", op, ErrInvalidParameter)
	}
	if c.ClientSecret != "" && c.ClientAssertion != nil {
		return fmt.Errorf("%s: both client secret and client assertion configured: %w", op, ErrInvalidParameter)
	}
	if c.PublicClient && c.Flow.usesCode() && !c.UsePKCE {
		return fmt.Errorf("%s: public clients must use PKCE: %w", op, ErrInvalidParameter)
	}
	if c.FilterProtocolClaims && len(c.FilteredClaimTypes) == 0 {
		return fmt.Errorf("%s: filtered claim types are empty: %w", op, ErrInvalidParameter)
	}
	if c.InvokeTimeout < 0 || c.SilentInvokeTimeout < 0 || c.HTTPTimeout < 0 || c.RenewMargin < 0 {
		return fmt.Errorf("%s: negative duration: %w", op, ErrInvalidParameter)
	}
	return nil
}

// Now returns the current time using the optional NowFunc.
func (c *Config) Now() time.Time {
	if c.NowFunc != nil {
		return c.NowFunc()
	}
	return time.Now()
}

// clone returns a copy which shares nothing mutable with c.
func (c *Config) clone() *Config {
	cp := *c
	cp.Scopes = append([]string(nil), c.Scopes...)
	cp.FilteredClaimTypes = append([]string(nil), c.FilteredClaimTypes...)
	cp.UILocales = append([]language.Tag(nil), c.UILocales...)
	return &cp
}

func parseScope(scope string) []string {
	scopes := []string{oidc.ScopeOpenID}
	for _, s := range strings.Fields(scope) {
		if s == oidc.ScopeOpenID {
			continue
		}
		scopes = append(scopes, s)
	}
	return scopes
}

// configOptions is the set of available options for NewConfig
type configOptions struct {
	withFlow                 Flow
	withResponseMode         ResponseMode
	withPKCE                 bool
	withLoadProfile          bool
	withFilterProtocolClaims bool
	withFilteredClaimTypes   []string
	withAlternateCredentials bool
	withPublicClient         bool
	withClientAuthStyle      ClientAuthStyle
	withClientAssertion      ClientAssertion
	withProviderCA           string
	withHTTPTimeout          time.Duration
	withInvokeTimeout        time.Duration
	withSilentInvokeTimeout  time.Duration
	withRenewMargin          time.Duration
	withUILocales            []language.Tag
	withNowFunc              func() time.Time
}

// configDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func configDefaults() configOptions {
	return configOptions{
		withFlow:                 HybridFlow,
		withResponseMode:         FormPostResponseMode,
		withPKCE:                 true,
		withLoadProfile:          true,
		withFilterProtocolClaims: true,
		withFilteredClaimTypes:   DefaultFilteredClaimTypes(),
		withHTTPTimeout:          DefaultHTTPTimeout,
		withInvokeTimeout:        DefaultInvokeTimeout,
		withSilentInvokeTimeout:  DefaultSilentInvokeTimeout,
		withRenewMargin:          DefaultRenewMargin,
	}
}

// getConfigOpts gets the defaults and applies the opt overrides passed in.
func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithFlow provides an optional flow (response_type).  Default: HybridFlow.
func WithFlow(f Flow) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withFlow = f
		}
	}
}

// WithResponseMode provides an optional response_mode.  Default:
// FormPostResponseMode.
func WithResponseMode(m ResponseMode) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withResponseMode = m
		}
	}
}

// WithPKCE enables or disables PKCE.  Default: enabled.
func WithPKCE(enabled bool) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withPKCE = enabled
		}
	}
}

// WithLoadProfile enables or disables merging the user info endpoint claims.
// Default: enabled.
func WithLoadProfile(enabled bool) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withLoadProfile = enabled
		}
	}
}

// WithFilterProtocolClaims enables or disables removing protocol claims from
// the principal.  Default: enabled.
func WithFilterProtocolClaims(enabled bool) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withFilterProtocolClaims = enabled
		}
	}
}

// WithFilteredClaimTypes replaces the default set of filtered claim types.
func WithFilteredClaimTypes(claimTypes ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withFilteredClaimTypes = claimTypes
		}
	}
}

// WithAlternateCredentials enables the invoker's alternate credential mode.
func WithAlternateCredentials() Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withAlternateCredentials = true
		}
	}
}

// WithPublicClient allows code flows without a client secret.  PKCE is
// required.
func WithPublicClient() Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withPublicClient = true
		}
	}
}

// WithClientAuthStyle provides an optional client auth style for the token
// endpoint.  Default: AuthStyleAutoDetect.
func WithClientAuthStyle(s ClientAuthStyle) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withClientAuthStyle = s
		}
	}
}

// WithClientAssertion authenticates the client to the token endpoint with a
// signed JWT instead of a client secret.
func WithClientAssertion(a ClientAssertion) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withClientAssertion = a
		}
	}
}

// WithHTTPTimeout provides an optional timeout for each request to the
// provider (token, validation, user info, discovery).
func WithHTTPTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withHTTPTimeout = d
		}
	}
}

// WithInvokeTimeout provides an optional timeout for interactive browser
// invocations.
func WithInvokeTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withInvokeTimeout = d
		}
	}
}

// WithSilentInvokeTimeout provides an optional timeout for silent browser
// invocations.
func WithSilentInvokeTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withSilentInvokeTimeout = d
		}
	}
}

// WithRenewMargin provides an optional renew margin for login results.
func WithRenewMargin(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withRenewMargin = d
		}
	}
}
