// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func testConfigAndEndpoints(t *testing.T, opt ...Option) (*Config, *Endpoints) {
	t.Helper()
	c, err := NewConfig("test-client", "test-secret", "openid profile", "http://127.0.0.1:7890/callback", opt...)
	require.NoError(t, err)
	e, err := NewEndpoints(
		"https://provider.example.com/authorize",
		"https://provider.example.com/token",
		"https://provider.example.com/endsession",
		"https://provider.example.com/userinfo",
		"https://provider.example.com/connect/identitytokenvalidation",
	)
	require.NoError(t, err)
	return c, e
}

func TestNewRequest(t *testing.T) {
	t.Parallel()
	t.Run("hybrid-pkce", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, e := testConfigAndEndpoints(t)
		r, err := NewRequest(c, e)
		require.NoError(err)

		assert.NotEmpty(r.State())
		assert.NotEmpty(r.Nonce())
		assert.NotEqual(r.State(), r.Nonce())
		require.NotNil(r.PKCEVerifier())
		assert.Equal(c.RedirectUrl, r.RedirectURL())
		assert.Equal(HybridFlow, r.Flow())
		assert.Equal(FormPostResponseMode, r.ResponseMode())

		u, err := url.Parse(r.AuthURL())
		require.NoError(err)
		assert.Equal("provider.example.com", u.Host)
		assert.Equal("/authorize", u.Path)
		q := u.Query()
		assert.Equal("test-client", q.Get("client_id"))
		assert.Equal("code id_token", q.Get("response_type"))
		assert.Equal("openid profile", q.Get("scope"))
		assert.Equal(c.RedirectUrl, q.Get("redirect_uri"))
		assert.Equal(r.Nonce(), q.Get("nonce"))
		assert.Equal("form_post", q.Get("response_mode"))
		assert.Equal(r.State(), q.Get("state"))
		assert.Equal(r.PKCEVerifier().Challenge(), q.Get("code_challenge"))
		assert.Equal("S256", q.Get("code_challenge_method"))
		assert.Empty(q.Get("code_verifier"))
		assert.Empty(q.Get("ui_locales"))
	})
	t.Run("without-pkce", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, e := testConfigAndEndpoints(t, WithPKCE(false))
		r, err := NewRequest(c, e)
		require.NoError(err)
		assert.Nil(r.PKCEVerifier())
		u, err := url.Parse(r.AuthURL())
		require.NoError(err)
		_, ok := u.Query()["code_challenge"]
		assert.False(ok)
		_, ok = u.Query()["code_challenge_method"]
		assert.False(ok)
	})
	t.Run("implicit-never-pkce", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, e := testConfigAndEndpoints(t, WithFlow(ImplicitFlow))
		r, err := NewRequest(c, e)
		require.NoError(err)
		assert.Nil(r.PKCEVerifier())
		u, err := url.Parse(r.AuthURL())
		require.NoError(err)
		assert.Equal("id_token token", u.Query().Get("response_type"))
	})
	t.Run("extra-params-and-locales", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, e := testConfigAndEndpoints(t, WithUILocales(language.German))
		r, err := NewRequest(c, e,
			WithExtraParams(map[string]string{"prompt": "none", "nonce": "attacker", "state": "attacker"}),
			WithUILocales(language.English, language.French),
		)
		require.NoError(err)
		u, err := url.Parse(r.AuthURL())
		require.NoError(err)
		q := u.Query()
		assert.Equal("none", q.Get("prompt"))
		assert.Equal(r.Nonce(), q.Get("nonce"))
		assert.Equal(r.State(), q.Get("state"))
		assert.Equal("en fr", q.Get("ui_locales"))
	})
	t.Run("config-locales", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, e := testConfigAndEndpoints(t, WithUILocales(language.German))
		r, err := NewRequest(c, e)
		require.NoError(err)
		u, err := url.Parse(r.AuthURL())
		require.NoError(err)
		assert.Equal("de", u.Query().Get("ui_locales"))
	})
	t.Run("new-values-every-attempt", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, e := testConfigAndEndpoints(t)
		r1, err := NewRequest(c, e)
		require.NoError(err)
		r2, err := NewRequest(c, e)
		require.NoError(err)
		assert.NotEqual(r1.Nonce(), r2.Nonce())
		assert.NotEqual(r1.State(), r2.State())
		assert.NotEqual(r1.PKCEVerifier().Verifier(), r2.PKCEVerifier().Verifier())
	})
	t.Run("nil-config", func(t *testing.T) {
		_, e := testConfigAndEndpoints(t)
		_, err := NewRequest(nil, e)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNilParameter))
	})
	t.Run("missing-authorize", func(t *testing.T) {
		c, _ := testConfigAndEndpoints(t)
		_, err := NewRequest(c, &Endpoints{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMissingEndpoint))
	})
}
