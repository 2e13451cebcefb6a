// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/text/language"
)

// Client is an OIDC relying party.  It runs login attempts (authorization
// request, browser invocation, response validation, code exchange and claims
// assembly) and ends provider sessions.  A Client holds no session state;
// see SessionManager for that.
type Client struct {
	config    *Config
	endpoints *Endpoints
	invoker   BrowserInvoker
	validator IdentityTokenValidator
	client    *http.Client
	provider  *oidc.Provider
	logger    hclog.Logger

	postLogoutRedirectURL string
}

// NewClient creates a relying party client.  The config and endpoints are
// copied and validated.  When no IdentityTokenValidator is provided, a
// RemoteValidator is used if the endpoints have an identity token
// validation URL, otherwise a LocalValidator.
//
// Supported options:
//
//	WithLogger
//	WithHTTPClient
//	WithIdentityTokenValidator
//	WithPostLogoutRedirectURL
func NewClient(c *Config, e *Endpoints, inv BrowserInvoker, opt ...Option) (*Client, error) {
	const op = "NewClient"
	switch {
	case c == nil:
		return nil, fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	case e == nil:
		return nil, fmt.Errorf("%s: endpoints are nil: %w", op, ErrNilParameter)
	case inv == nil:
		return nil, fmt.Errorf("%s: browser invoker is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	opts := getClientOpts(opt...)
	if err := e.validate(c, opts.withValidator != nil); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ep := *e

	client := &Client{
		config:                c.clone(),
		endpoints:             &ep,
		invoker:               inv,
		validator:             opts.withValidator,
		client:                opts.withHTTPClient,
		logger:                opts.withLogger,
		postLogoutRedirectURL: opts.withPostLogoutRedirectURL,
	}
	if client.client == nil {
		var err error
		if client.client, err = c.HttpClient(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if client.validator == nil {
		var err error
		switch {
		case ep.IdentityTokenValidationUrl != "":
			client.validator, err = NewRemoteValidator(ep.IdentityTokenValidationUrl, c.ClientId, client.client)
		default:
			client.validator, err = NewLocalValidator(ep.Issuer, ep.JWKSUrl, client.client, c.NowFunc)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: unable to create identity token validator: %w", op, err)
		}
	}

	// the provider is only used for its user info endpoint, so creating it
	// doesn't make any requests.
	client.provider = (&oidc.ProviderConfig{
		IssuerURL:   ep.Issuer,
		AuthURL:     ep.AuthorizeUrl,
		TokenURL:    ep.TokenUrl,
		UserInfoURL: ep.UserInfoUrl,
		JWKSURL:     ep.JWKSUrl,
	}).NewProvider(HttpClientContext(context.Background(), client.client))

	return client, nil
}

// Config returns a copy of the client's config.
func (c *Client) Config() *Config { return c.config.clone() }

// Endpoints returns a copy of the client's endpoints.
func (c *Client) Endpoints() Endpoints { return *c.endpoints }

// Login runs a login attempt.  Failures never return an error; they're
// reported by the LoginResult (see LoginResult.Error and LoginResult.Err).
// Every attempt uses a new state, nonce and PKCE verifier.
//
// Supported options:
//
//	WithSilent
//	WithExtraParams
//	WithUILocales
func (c *Client) Login(ctx context.Context, opt ...Option) *LoginResult {
	const op = "Client.Login"
	opts := getLoginOpts(opt...)

	req, err := NewRequest(c.config, c.endpoints, WithExtraParams(opts.withExtraParams), WithUILocales(opts.withUILocales...))
	if err != nil {
		return newErrorResult(err.Error(), fmt.Errorf("%s: %w", op, err))
	}
	c.logger.Debug("authorization request created", "flow", string(req.Flow()), "pkce", req.PKCEVerifier() != nil, "silent", opts.withSilent)

	res, err := invoke(ctx, c.invoker, c.logger, c.config, req.AuthURL(), req.RedirectURL(), opts.withSilent)
	if err != nil {
		return newErrorResult(err.Error(), fmt.Errorf("%s: %w: %w", op, ErrInvokeFailed, err))
	}
	if res.Type != InvokeSuccess {
		c.logger.Debug("browser invocation unsuccessful", "result", res.Type.String())
		return newErrorResult(res.Message(), fmt.Errorf("%s: %s: %w", op, res.Message(), res.err()))
	}

	result, err := c.complete(ctx, req, res.Response)
	if err != nil {
		return newErrorResult(resultMessage(err), fmt.Errorf("%s: %w", op, err))
	}
	c.logger.Debug("login succeeded", "claims", len(result.Principal.Claims))
	return result
}

// complete validates the callback payload for the request and assembles the
// result.
func (c *Client) complete(ctx context.Context, req *Request, payload string) (*LoginResult, error) {
	const op = "Client.complete"
	resp, err := ParseAuthorizationResponse(payload, req.Flow())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if resp.State != req.State() {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidState)
	}

	var (
		p      *Principal
		tokens *TokenSet
	)
	switch req.Flow() {
	case HybridFlow:
		if p, err = c.validateIdentity(ctx, req, resp.IdToken); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := verifyCodeHash(p, resp.Code); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if tokens, err = c.exchange(ctx, resp.Code, req.PKCEVerifier()); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if tokens.IdToken == "" {
			tokens.IdToken = resp.IdToken
		}

	case ImplicitFlow:
		if p, err = c.validateIdentity(ctx, req, resp.IdToken); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := verifyAccessTokenHash(p, resp.AccessToken, true); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		tokens = &TokenSet{
			AccessToken: resp.AccessToken,
			IdToken:     resp.IdToken,
			TokenType:   resp.TokenType,
			ExpiresIn:   resp.ExpiresIn,
		}

	case AuthCodeFlow:
		if tokens, err = c.exchange(ctx, resp.Code, req.PKCEVerifier()); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if tokens.IdToken == "" {
			return nil, fmt.Errorf("%s: token response: %w", op, ErrMissingIdToken)
		}
		if p, err = c.validateIdentity(ctx, req, tokens.IdToken); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := verifyAccessTokenHash(p, tokens.AccessToken, false); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

	default:
		return nil, fmt.Errorf("%s: %q: %w", op, req.Flow(), ErrUnsupportedFlow)
	}

	if p, err = c.assemble(ctx, p, tokens.AccessToken); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	result, err := newSuccessResult(p, tokens, c.config.Now(), c.config.RenewMargin)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// assemble merges the user info claims (when configured) and filters the
// protocol claims (when configured).  Filtering is always last.
func (c *Client) assemble(ctx context.Context, p *Principal, t AccessToken) (*Principal, error) {
	const op = "Client.assemble"
	if c.config.LoadProfile {
		claims, err := c.userInfo(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		p = p.Merge(claims)
	}
	if c.config.FilterProtocolClaims {
		p = p.Filter(c.config.FilteredClaimTypes)
	}
	return p, nil
}

// EndSession opens the provider's end session URL, with the optional
// id_token as a hint.  When trySilent is set a silent invocation is tried
// first.  Ending the provider session is best effort: EndSession only
// returns an error when the client has no end session endpoint.
func (c *Client) EndSession(ctx context.Context, idTokenHint IdToken, trySilent bool) error {
	const op = "Client.EndSession"
	if c.endpoints.EndSessionUrl == "" {
		return fmt.Errorf("%s: end session URL is empty: %w", op, ErrMissingEndpoint)
	}
	u, err := url.Parse(c.endpoints.EndSessionUrl)
	if err != nil {
		return fmt.Errorf("%s: end session URL is invalid: %w", op, ErrInvalidParameter)
	}
	q := u.Query()
	if idTokenHint != "" {
		q.Set("id_token_hint", string(idTokenHint))
	}
	endURL := c.config.RedirectUrl
	if c.postLogoutRedirectURL != "" {
		endURL = c.postLogoutRedirectURL
		q.Set("post_logout_redirect_uri", c.postLogoutRedirectURL)
	}
	u.RawQuery = q.Encode()

	res, err := invoke(ctx, c.invoker, c.logger, c.config, u.String(), endURL, trySilent)
	switch {
	case err != nil:
		c.logger.Warn("end session invocation failed", "error", err)
	case res.Type != InvokeSuccess:
		c.logger.Warn("end session unsuccessful", "result", res.Type.String())
	default:
		c.logger.Debug("provider session ended")
	}
	return nil
}

func (c *Client) httpTimeout() time.Duration {
	if c.config.HTTPTimeout > 0 {
		return c.config.HTTPTimeout
	}
	return DefaultHTTPTimeout
}

// clientOptions is the set of available options for NewClient
type clientOptions struct {
	withLogger                hclog.Logger
	withHTTPClient            *http.Client
	withValidator             IdentityTokenValidator
	withPostLogoutRedirectURL string
}

func clientDefaults() clientOptions {
	return clientOptions{
		withLogger: hclog.NewNullLogger(),
	}
}

func getClientOpts(opt ...Option) clientOptions {
	opts := clientDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithIdentityTokenValidator provides an optional IdentityTokenValidator for
// NewClient.
func WithIdentityTokenValidator(v IdentityTokenValidator) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok {
			o.withValidator = v
		}
	}
}

// WithPostLogoutRedirectURL provides an optional post_logout_redirect_uri
// for EndSession.
func WithPostLogoutRedirectURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok {
			o.withPostLogoutRedirectURL = u
		}
	}
}

// loginOptions is the set of available options for Client.Login
type loginOptions struct {
	withSilent      bool
	withExtraParams map[string]string
	withUILocales   []language.Tag
}

func loginDefaults() loginOptions {
	return loginOptions{}
}

func getLoginOpts(opt ...Option) loginOptions {
	opts := loginDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithSilent tries a silent invocation before an interactive one for
// Client.Login.
func WithSilent() Option {
	return func(o interface{}) {
		if o, ok := o.(*loginOptions); ok {
			o.withSilent = true
		}
	}
}
