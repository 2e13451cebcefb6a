// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package browser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/hashicorp/go-oidcclient/oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRedirectURL = "https://example.com/callback"

func testHeadlessClient(t *testing.T, p *oidc.TestProvider, cfgOpts ...oidc.Option) *oidc.Client {
	t.Helper()
	require := require.New(t)
	p.SetClientCreds("headless-client", "headless-secret")
	cfg, err := oidc.NewConfig("headless-client", "headless-secret", "openid profile", testRedirectURL,
		append([]oidc.Option{oidc.WithProviderCA(p.CACert())}, cfgOpts...)...)
	require.NoError(err)
	h, err := NewHeadless(p.HTTPClient())
	require.NoError(err)
	c, err := oidc.NewClient(cfg, p.Endpoints(), h)
	require.NoError(err)
	return c
}

func TestHeadless_Login(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		cfgOpts []oidc.Option
		silent  bool
	}{
		{name: "hybrid-form-post"},
		{name: "hybrid-form-post-silent", silent: true},
		{name: "hybrid-query", cfgOpts: []oidc.Option{oidc.WithResponseMode(oidc.QueryResponseMode)}},
		{name: "code-fragment", cfgOpts: []oidc.Option{oidc.WithFlow(oidc.AuthCodeFlow), oidc.WithResponseMode(oidc.FragmentResponseMode)}},
		{name: "implicit-form-post", cfgOpts: []oidc.Option{oidc.WithFlow(oidc.ImplicitFlow)}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			p := oidc.StartTestProvider(t)
			c := testHeadlessClient(t, p, tt.cfgOpts...)
			var opts []oidc.Option
			if tt.silent {
				opts = append(opts, oidc.WithSilent())
			}
			got := c.Login(context.Background(), opts...)
			require.True(got.Success, got.Error)
			assert.Equal("alice@example.com", got.Principal.FindFirst("sub"))
		})
	}
}

func TestHeadless_EndSession(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	p := oidc.StartTestProvider(t)
	c := testHeadlessClient(t, p)
	require.NoError(c.EndSession(context.Background(), "id.token.hint", true))
	n, hint := p.EndSessionRequests()
	assert.Equal(1, n)
	assert.Equal("id.token.hint", hint)
}

func TestHeadless_Invoke(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	const end = "https://rp.example.com/callback"

	// a provider which shows a login form before redirecting
	mux := http.NewServeMux()
	mux.HandleFunc("/authorize", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "login", Value: "pending", Path: "/"})
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><form method="post" action="/login">
<input type="hidden" name="csrf" value="xyz"><input name="username"><input type="password" name="password">
</form></body></html>`))
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("login")
		switch {
		case err != nil || c.Value != "pending":
			w.WriteHeader(http.StatusBadRequest)
		case r.FormValue("csrf") != "xyz" || r.FormValue("username") != "alice" || r.FormValue("password") != "pa55":
			w.WriteHeader(http.StatusUnauthorized)
		default:
			http.Redirect(w, r, "/continue", http.StatusFound)
		}
	})
	mux.HandleFunc("/lookalike", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, end+".evil.example.com/?code=stolen", http.StatusFound)
	})
	mux.HandleFunc("/lookalike-form", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><form method="post" action="` + end + `X">
<input type="hidden" name="code" value="stolen"></form></body></html>`))
	})
	mux.HandleFunc("/continue", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, end+"?code=abc123&state=st_1", http.StatusFound)
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	t.Run("login-form", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		h, err := NewHeadless(srv.Client(), WithFormValues(map[string]string{"username": "alice", "password": "pa55"}))
		require.NoError(err)
		got, err := h.Invoke(ctx, oidc.InvokeOptions{StartURL: srv.URL + "/authorize", EndURL: end})
		require.NoError(err)
		require.Equal(oidc.InvokeSuccess, got.Type, got.Message())
		assert.Equal(end+"?code=abc123&state=st_1", got.Response)
	})
	t.Run("login-form-bad-credentials", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		h, err := NewHeadless(srv.Client(), WithFormValues(map[string]string{"username": "alice", "password": "wrong"}))
		require.NoError(err)
		got, err := h.Invoke(ctx, oidc.InvokeOptions{StartURL: srv.URL + "/authorize", EndURL: end})
		require.NoError(err)
		assert.Equal(oidc.InvokeHttpError, got.Type)
		assert.Equal("401 Unauthorized", got.Error)
	})
	t.Run("silent-interaction-required", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		h, err := NewHeadless(srv.Client())
		require.NoError(err)
		got, err := h.Invoke(ctx, oidc.InvokeOptions{StartURL: srv.URL + "/authorize", EndURL: end, Silent: true})
		require.NoError(err)
		assert.Equal(oidc.InvokeUserCancel, got.Type)
	})
	t.Run("too-many-redirects", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		h, err := NewHeadless(srv.Client(), WithMaxHops(3))
		require.NoError(err)
		got, err := h.Invoke(ctx, oidc.InvokeOptions{StartURL: srv.URL + "/loop", EndURL: end})
		require.NoError(err)
		assert.Equal(oidc.InvokeUnknownError, got.Type)
	})
	t.Run("timeout", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		h, err := NewHeadless(srv.Client())
		require.NoError(err)
		got, err := h.Invoke(ctx, oidc.InvokeOptions{StartURL: srv.URL + "/slow", EndURL: end, Timeout: 50 * time.Millisecond})
		require.NoError(err)
		assert.Equal(oidc.InvokeTimeout, got.Type)
	})
	t.Run("http-error", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		h, err := NewHeadless(srv.Client())
		require.NoError(err)
		got, err := h.Invoke(ctx, oidc.InvokeOptions{StartURL: srv.URL + "/broken", EndURL: end})
		require.NoError(err)
		assert.Equal(oidc.InvokeHttpError, got.Type)
		assert.Equal("502 Bad Gateway", got.Error)
	})
	t.Run("lookalike-end-url", func(t *testing.T) {
		tests := []struct {
			name string
			path string
		}{
			{name: "redirect", path: "/lookalike"},
			{name: "form-post", path: "/lookalike-form"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				assert, require := assert.New(t), require.New(t)
				// one hop: the lookalike must not end the invocation, and
				// nothing is sent to it
				h, err := NewHeadless(srv.Client(), WithMaxHops(1))
				require.NoError(err)
				got, err := h.Invoke(ctx, oidc.InvokeOptions{StartURL: srv.URL + tt.path, EndURL: end})
				require.NoError(err)
				assert.Equal(oidc.InvokeUnknownError, got.Type)
				assert.NotContains(got.Response, "stolen")
			})
		}
	})
	t.Run("invalid-end-url", func(t *testing.T) {
		h, err := NewHeadless(srv.Client())
		require.NoError(t, err)
		_, err = h.Invoke(ctx, oidc.InvokeOptions{StartURL: srv.URL + "/authorize", EndURL: "/callback"})
		assert.True(t, errors.Is(err, oidc.ErrInvalidParameter))
	})
	t.Run("invalid-start-url", func(t *testing.T) {
		h, err := NewHeadless(srv.Client())
		require.NoError(t, err)
		_, err = h.Invoke(ctx, oidc.InvokeOptions{StartURL: "://bad", EndURL: end})
		require.Error(t, err)
	})
}

func TestNewHeadless(t *testing.T) {
	t.Parallel()
	_, err := NewHeadless(nil)
	assert.True(t, errors.Is(err, oidc.ErrNilParameter))
	_, err = NewHeadless(http.DefaultClient, WithMaxHops(0))
	assert.True(t, errors.Is(err, oidc.ErrInvalidParameter))

	h, err := NewHeadless(http.DefaultClient)
	require.NoError(t, err)
	assert.NotNil(t, h.client.Jar)
	assert.Nil(t, http.DefaultClient.Jar)
}

func Test_isEndURL(t *testing.T) {
	t.Parallel()
	end, err := url.Parse("https://rp.example.com/callback")
	require.NoError(t, err)
	tests := []struct {
		u    string
		want bool
	}{
		{u: "https://rp.example.com/callback?code=abc", want: true},
		{u: "https://rp.example.com/callback#id_token=x.y.z", want: true},
		{u: "HTTPS://RP.example.com/callback", want: true},
		{u: "https://rp.example.com/callbackX?code=abc", want: false},
		{u: "https://rp.example.com/callback.evil", want: false},
		{u: "https://rp.example.com/callback/more", want: false},
		{u: "https://rp.example.com.evil.example.com/callback", want: false},
		{u: "http://rp.example.com/callback", want: false},
		{u: "https://rp.example.com:8443/callback", want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.u, func(t *testing.T) {
			t.Parallel()
			u, err := url.Parse(tt.u)
			require.NoError(t, err)
			assert.Equal(t, tt.want, isEndURL(u, end))
		})
	}
}
