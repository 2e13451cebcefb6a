// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testClientSecret = "test-secret"
	testRedirectURL  = "https://example.com/callback"
)

// testProviderClient starts a TestProvider and returns a client for it which
// completes invocations against the provider after the script.
func testProviderClient(t *testing.T, cfgOpts []Option, script ...TestInvocation) (*TestProvider, *Client, *TestInvoker) {
	t.Helper()
	require := require.New(t)
	p := StartTestProvider(t)
	p.SetClientCreds(testDefaultClientID, testClientSecret)

	opts := append([]Option{WithProviderCA(p.CACert())}, cfgOpts...)
	cfg, err := NewConfig(testDefaultClientID, testClientSecret, "openid profile email", testRedirectURL, opts...)
	require.NoError(err)
	inv := p.Invoker(script...)
	c, err := NewClient(cfg, p.Endpoints(), inv)
	require.NoError(err)
	return p, c, inv
}

func TestNewClient(t *testing.T) {
	t.Parallel()
	c, e := testConfigAndEndpoints(t)
	inv := NewTestInvoker()
	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		got, err := NewClient(c, e, inv)
		require.NoError(err)
		assert.IsType(&RemoteValidator{}, got.validator)
		assert.Equal(*e, got.Endpoints())
		assert.Equal(c, got.Config())
	})
	t.Run("local-validator", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		local := *e
		local.IdentityTokenValidationUrl = ""
		local.Issuer = "https://provider.example.com"
		local.JWKSUrl = "https://provider.example.com/jwks"
		got, err := NewClient(c, &local, inv)
		require.NoError(err)
		assert.IsType(&LocalValidator{}, got.validator)
	})
	t.Run("custom-validator", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		custom := *e
		custom.IdentityTokenValidationUrl = ""
		v := &RemoteValidator{}
		got, err := NewClient(c, &custom, inv, WithIdentityTokenValidator(v))
		require.NoError(err)
		assert.Equal(v, got.validator)
	})
	t.Run("missing-endpoints", func(t *testing.T) {
		_, err := NewClient(c, &Endpoints{AuthorizeUrl: e.AuthorizeUrl}, inv)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMissingEndpoint))
	})
	t.Run("nil-params", func(t *testing.T) {
		for _, args := range []struct {
			c   *Config
			e   *Endpoints
			inv BrowserInvoker
		}{{nil, e, inv}, {c, nil, inv}, {c, e, nil}} {
			_, err := NewClient(args.c, args.e, args.inv)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrNilParameter))
		}
	})
}

func TestClient_Login(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name    string
		cfgOpts []Option
	}{
		{name: "hybrid-form-post"},
		{name: "hybrid-query", cfgOpts: []Option{WithResponseMode(QueryResponseMode)}},
		{name: "hybrid-fragment", cfgOpts: []Option{WithResponseMode(FragmentResponseMode)}},
		{name: "hybrid-without-pkce", cfgOpts: []Option{WithPKCE(false)}},
		{name: "code-form-post", cfgOpts: []Option{WithFlow(AuthCodeFlow)}},
		{name: "code-query-header-auth", cfgOpts: []Option{WithFlow(AuthCodeFlow), WithResponseMode(QueryResponseMode), WithClientAuthStyle(AuthStyleInHeader)}},
		{name: "code-params-auth", cfgOpts: []Option{WithFlow(AuthCodeFlow), WithClientAuthStyle(AuthStyleInParams)}},
		{name: "implicit-form-post", cfgOpts: []Option{WithFlow(ImplicitFlow)}},
		{name: "implicit-fragment", cfgOpts: []Option{WithFlow(ImplicitFlow), WithResponseMode(FragmentResponseMode)}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			p, c, _ := testProviderClient(t, tt.cfgOpts)

			before := time.Now()
			got := c.Login(ctx)
			require.Truef(got.Success, "login failed: %s: %v", got.Error, got.Err())
			assert.Empty(got.Error)
			assert.NoError(got.Err())

			assert.NotEmpty(got.AccessToken)
			assert.NotEmpty(got.IdentityToken)
			assert.True(got.Principal.IsAuthenticated())
			assert.Equal("alice@example.com", got.Principal.FindFirst("sub"))
			assert.Equal("Alice", got.Principal.FindFirst("name"))
			for _, claimType := range DefaultFilteredClaimTypes() {
				assert.Falsef(got.Principal.HasType(claimType), "%s wasn't filtered", claimType)
			}
			assert.Equal(DefaultRenewMargin, got.RenewMargin)
			assert.WithinDuration(before.Add(testDefaultExpires*time.Second), got.AccessTokenExpiration, 5*time.Second)
			assert.WithinDuration(before, got.AuthenticationTime, 5*time.Second)
			assert.True(got.IsAccessTokenValid(time.Now()))

			switch c.config.Flow {
			case ImplicitFlow:
				assert.Equal(0, p.TokenRequests())
				assert.Empty(got.RefreshToken)
			default:
				assert.Equal(1, p.TokenRequests())
				assert.NotEmpty(got.RefreshToken)
			}
			assert.Equal(1, p.ValidationRequests())
		})
	}
}

func TestClient_Login_claims(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	t.Run("unfiltered-nonce-matches-request", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p, c, _ := testProviderClient(t, []Option{WithFilterProtocolClaims(false)})
		got := c.Login(ctx)
		require.True(got.Success, got.Error)
		assert.Equal(p.LastAuthorizeRequest().Get("nonce"), got.Principal.FindFirst(ClaimNonce))
		assert.Equal(testDefaultClientID, got.Principal.FindFirst(ClaimAudience))
		assert.Equal(p.Addr(), got.Principal.FindFirst(ClaimIssuer))
		assert.True(got.Principal.HasType(ClaimAuthorizationCodeHash))
	})
	t.Run("id-token-claims-win", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p, c, _ := testProviderClient(t, nil)
		p.SetCustomClaims(map[string]interface{}{"email": "alice@id-token", "groups": []string{"a", "b"}})
		p.SetUserInfoClaims(map[string]interface{}{"email": "alice@userinfo", "color": "red"})
		got := c.Login(ctx)
		require.True(got.Success, got.Error)
		assert.Equal([]string{"alice@id-token"}, got.Principal.FindAll("email"))
		assert.Equal([]string{"a", "b"}, got.Principal.FindAll("groups"))
		assert.Equal("red", got.Principal.FindFirst("color"))
	})
	t.Run("without-profile", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p, c, _ := testProviderClient(t, []Option{WithLoadProfile(false)})
		p.DisableUserInfo()
		got := c.Login(ctx)
		require.True(got.Success, got.Error)
		assert.False(got.Principal.HasType("name"))
	})
	t.Run("local-validation", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p := StartTestProvider(t)
		p.SetClientCreds(testDefaultClientID, testClientSecret)
		cfg, err := NewConfig(testDefaultClientID, testClientSecret, "openid", testRedirectURL, WithProviderCA(p.CACert()))
		require.NoError(err)
		e := p.Endpoints()
		e.IdentityTokenValidationUrl = ""
		c, err := NewClient(cfg, e, p.Invoker())
		require.NoError(err)

		got := c.Login(ctx)
		require.True(got.Success, got.Error)
		assert.Equal(0, p.ValidationRequests())
		assert.Equal("alice@example.com", got.Principal.FindFirst("sub"))
	})
	t.Run("client-assertion", func(t *testing.T) {
		require := require.New(t)
		p := StartTestProvider(t)
		p.SetClientCreds(testDefaultClientID, testClientSecret)
		cfg, err := NewConfig(testDefaultClientID, "", "openid", testRedirectURL,
			WithProviderCA(p.CACert()), WithClientAssertion(testAssertion("signed.jwt.assertion")))
		require.NoError(err)
		c, err := NewClient(cfg, p.Endpoints(), p.Invoker())
		require.NoError(err)
		got := c.Login(ctx)
		require.True(got.Success, got.Error)
	})
	t.Run("public-client", func(t *testing.T) {
		require := require.New(t)
		p := StartTestProvider(t)
		p.SetClientCreds(testDefaultClientID, "")
		cfg, err := NewConfig(testDefaultClientID, "", "openid", testRedirectURL,
			WithProviderCA(p.CACert()), WithPublicClient(), WithFlow(AuthCodeFlow))
		require.NoError(err)
		c, err := NewClient(cfg, p.Endpoints(), p.Invoker())
		require.NoError(err)
		got := c.Login(ctx)
		require.True(got.Success, got.Error)
	})
}

func TestClient_Login_failures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name             string
		cfgOpts          []Option
		setup            func(p *TestProvider)
		script           []TestInvocation
		wantError        string
		wantIsErr        error
		wantKind         ErrorKind
		wantExchange     bool
		wantValidateCall bool
	}{
		{
			name:             "audience-mismatch",
			setup:            func(p *TestProvider) { p.SetCustomAudience("someone-else") },
			wantError:        "invalid audience",
			wantIsErr:        ErrInvalidAudience,
			wantKind:         KindBindingValidation,
			wantValidateCall: true,
		},
		{
			name:             "nonce-mismatch",
			setup:            func(p *TestProvider) { p.SetCustomNonce("n_replayed") },
			wantError:        "invalid nonce",
			wantIsErr:        ErrInvalidNonce,
			wantKind:         KindBindingValidation,
			wantValidateCall: true,
		},
		{
			name: "code-hash-mismatch",
			setup: func(p *TestProvider) {
				p.SetExpectedAuthCode("abc123")
				p.SetBadCodeHash(true)
			},
			wantError:        "invalid code",
			wantIsErr:        ErrInvalidCodeHash,
			wantKind:         KindBindingValidation,
			wantValidateCall: true,
		},
		{
			name:             "implicit-at-hash-mismatch",
			cfgOpts:          []Option{WithFlow(ImplicitFlow)},
			setup:            func(p *TestProvider) { p.SetBadAccessTokenHash(true) },
			wantError:        "invalid access token",
			wantIsErr:        ErrInvalidAtHash,
			wantKind:         KindBindingValidation,
			wantValidateCall: true,
		},
		{
			name:             "code-flow-at-hash-mismatch",
			cfgOpts:          []Option{WithFlow(AuthCodeFlow)},
			setup:            func(p *TestProvider) { p.SetBadAccessTokenHash(true) },
			wantError:        "invalid access token",
			wantIsErr:        ErrInvalidAtHash,
			wantKind:         KindBindingValidation,
			wantExchange:     true,
			wantValidateCall: true,
		},
		{
			name:             "validation-failure",
			setup:            func(p *TestProvider) { p.SetValidationFailure(true) },
			wantError:        "identity token validation error",
			wantIsErr:        ErrIdTokenValidationFailed,
			wantKind:         KindBindingValidation,
			wantValidateCall: true,
		},
		{
			name:      "provider-error",
			setup:     func(p *TestProvider) { p.SetAuthError("access_denied") },
			wantError: "access_denied",
			wantIsErr: ErrProtocol,
			wantKind:  KindProtocol,
		},
		{
			name:             "token-protocol-error",
			setup:            func(p *TestProvider) { p.SetTokenError("invalid_grant") },
			wantError:        "invalid_grant",
			wantIsErr:        ErrTokenExchangeFailed,
			wantKind:         KindProtocol,
			wantExchange:     true,
			wantValidateCall: true,
		},
		{
			name:             "token-http-error",
			setup:            func(p *TestProvider) { p.SetTokenStatus(500) },
			wantError:        "500 Internal Server Error",
			wantIsErr:        ErrTransport,
			wantKind:         KindTransport,
			wantExchange:     true,
			wantValidateCall: true,
		},
		{
			name:         "code-flow-missing-id-token",
			cfgOpts:      []Option{WithFlow(AuthCodeFlow)},
			setup:        func(p *TestProvider) { p.OmitIdTokens() },
			wantError:    "missing identity token",
			wantIsErr:    ErrMissingIdToken,
			wantKind:     KindProtocol,
			wantExchange: true,
		},
		{
			name:             "userinfo-failure",
			setup:            func(p *TestProvider) { p.DisableUserInfo() },
			wantError:        "user info request failed",
			wantIsErr:        ErrUserInfoFailed,
			wantExchange:     true,
			wantValidateCall: true,
		},
		{
			name: "missing-id-token-in-callback",
			script: []TestInvocation{
				{Result: &InvokeResult{Type: InvokeSuccess, Response: "code=abc123"}},
			},
			wantError: "missing identity token",
			wantIsErr: ErrMissingIdToken,
			wantKind:  KindProtocol,
		},
		{
			name: "missing-code-in-callback",
			script: []TestInvocation{
				{Result: &InvokeResult{Type: InvokeSuccess, Response: "id_token=eyJ.x.y"}},
			},
			wantError: "missing authorization code",
			wantIsErr: ErrMissingCode,
			wantKind:  KindProtocol,
		},
		{
			name: "state-mismatch",
			script: []TestInvocation{
				{Result: &InvokeResult{Type: InvokeSuccess, Response: "code=abc123&id_token=eyJ.x.y&state=st_forged"}},
			},
			wantError: "invalid state",
			wantIsErr: ErrInvalidState,
			wantKind:  KindBindingValidation,
		},
		{
			name: "user-cancel",
			script: []TestInvocation{
				{Result: &InvokeResult{Type: InvokeUserCancel, Error: "window closed"}},
			},
			wantError: "window closed",
			wantIsErr: ErrUserCancel,
			wantKind:  KindUserCancelledOrTimedOut,
		},
		{
			name: "local-invocation-error",
			script: []TestInvocation{
				{Err: errors.New("broker unavailable")},
			},
			wantError: "broker unavailable",
			wantIsErr: ErrInvokeFailed,
			wantKind:  KindTransport,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			p, c, _ := testProviderClient(t, tt.cfgOpts, tt.script...)
			if tt.setup != nil {
				tt.setup(p)
			}
			got := c.Login(ctx)
			require.False(got.Success)
			assert.Equal(tt.wantError, got.Error)
			assert.Nil(got.Principal)
			assert.Empty(got.AccessToken)
			require.Error(got.Err())
			assert.Truef(errors.Is(got.Err(), tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, got.Err())
			if tt.wantKind != KindUnknown {
				assert.Equal(tt.wantKind, Kind(got.Err()))
			}
			assert.Equal(tt.wantExchange, p.TokenRequests() > 0)
			assert.Equal(tt.wantValidateCall, p.ValidationRequests() > 0)
		})
	}
}

func TestClient_Login_silent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	t.Run("fallback-to-interactive", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		_, c, inv := testProviderClient(t, nil, TestInvocation{Result: &InvokeResult{Type: InvokeTimeout}})
		got := c.Login(ctx, WithSilent())
		require.True(got.Success, got.Error)
		calls := inv.Calls()
		require.Len(calls, 2)
		assert.True(calls[0].Silent)
		assert.False(calls[1].Silent)
		assert.Equal(calls[0].StartURL, calls[1].StartURL)
	})
	t.Run("interactive-failure-reported", func(t *testing.T) {
		assert := assert.New(t)
		_, c, _ := testProviderClient(t, nil,
			TestInvocation{Result: &InvokeResult{Type: InvokeUserCancel, Error: "silent: interaction required"}},
			TestInvocation{Result: &InvokeResult{Type: InvokeUserCancel, Error: "interactive: window closed"}},
		)
		got := c.Login(ctx, WithSilent())
		assert.False(got.Success)
		assert.Equal("interactive: window closed", got.Error)
	})
	t.Run("silent-success", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		_, c, inv := testProviderClient(t, nil)
		got := c.Login(ctx, WithSilent())
		require.True(got.Success, got.Error)
		assert.Len(inv.Calls(), 1)
	})
	t.Run("login-required", func(t *testing.T) {
		assert := assert.New(t)
		p, c, _ := testProviderClient(t, nil)
		p.SetLoginRequired(true)
		got := c.Login(ctx, WithSilent(), WithExtraParams(map[string]string{"prompt": "none"}))
		assert.False(got.Success)
		assert.Equal("login_required", got.Error)
	})
	t.Run("fresh-nonce-per-attempt", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p, c, _ := testProviderClient(t, nil)
		require.True(c.Login(ctx).Success)
		first := p.LastAuthorizeRequest()
		require.True(c.Login(ctx).Success)
		second := p.LastAuthorizeRequest()
		assert.NotEqual(first.Get("nonce"), second.Get("nonce"))
		assert.NotEqual(first.Get("state"), second.Get("state"))
		assert.NotEqual(first.Get("code_challenge"), second.Get("code_challenge"))
	})
}

func TestClient_EndSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	t.Run("with-hint", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p, c, inv := testProviderClient(t, nil)
		require.NoError(c.EndSession(ctx, "id.token.hint", false))
		n, hint := p.EndSessionRequests()
		assert.Equal(1, n)
		assert.Equal("id.token.hint", hint)
		assert.False(inv.Calls()[0].Silent)
	})
	t.Run("post-logout-redirect", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p := StartTestProvider(t)
		cfg, err := NewConfig(testDefaultClientID, testClientSecret, "openid", testRedirectURL, WithProviderCA(p.CACert()))
		require.NoError(err)
		inv := p.Invoker()
		c, err := NewClient(cfg, p.Endpoints(), inv, WithPostLogoutRedirectURL("https://example.com/signed-out"))
		require.NoError(err)
		require.NoError(c.EndSession(ctx, "", true))
		n, hint := p.EndSessionRequests()
		assert.Equal(1, n)
		assert.Empty(hint)
		assert.Equal("https://example.com/signed-out", inv.Calls()[0].EndURL)
	})
	t.Run("failures-swallowed", func(t *testing.T) {
		require := require.New(t)
		_, c, inv := testProviderClient(t, nil,
			TestInvocation{Result: &InvokeResult{Type: InvokeTimeout}},
			TestInvocation{Err: errors.New("broker unavailable")},
		)
		require.NoError(c.EndSession(ctx, "hint", true))
		require.Len(inv.Calls(), 2)
	})
	t.Run("no-endpoint", func(t *testing.T) {
		c, e := testConfigAndEndpoints(t)
		e.EndSessionUrl = ""
		client, err := NewClient(c, e, NewTestInvoker())
		require.NoError(t, err)
		err = client.EndSession(ctx, "", false)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMissingEndpoint))
	})
}
