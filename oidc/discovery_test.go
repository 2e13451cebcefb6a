// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscover(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p := StartTestProvider(t)

	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		got, err := Discover(ctx, p.Addr(), WithProviderCA(p.CACert()))
		require.NoError(err)
		assert.Equal(p.Endpoints(), got)
	})
	t.Run("trailing-slash-and-validation-override", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		got, err := Discover(ctx, p.Addr()+"/", WithHTTPClient(p.HTTPClient()), WithIdentityTokenValidationURL("https://other/validate"))
		require.NoError(err)
		assert.Equal("https://other/validate", got.IdentityTokenValidationUrl)
		assert.Equal(p.Addr()+TestTokenPath, got.TokenUrl)
	})
	t.Run("missing-userinfo", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		noUserInfo := StartTestProvider(t)
		noUserInfo.DisableUserInfo()
		_, err := Discover(ctx, noUserInfo.Addr(), WithHTTPClient(noUserInfo.HTTPClient()))
		require.Error(err)
		assert.True(errors.Is(err, ErrMissingEndpoint))
		assert.Contains(err.Error(), "userinfo_endpoint")
	})
	t.Run("empty-authority", func(t *testing.T) {
		_, err := Discover(ctx, "")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidParameter))
	})
	t.Run("retries", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		t.Cleanup(srv.Close)
		_, err := Discover(ctx, srv.URL, WithHTTPClient(srv.Client()), WithDiscoveryRetries(2))
		require.Error(err)
		assert.True(errors.Is(err, ErrDiscoveryFailed))
		assert.Equal(int32(3), calls.Load())
	})
	t.Run("permanent-failures-not-retried", func(t *testing.T) {
		tests := []struct {
			name    string
			handler http.HandlerFunc
		}{
			{
				name: "not-found",
				handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) },
			},
			{
				name: "issuer-mismatch",
				handler: func(w http.ResponseWriter, r *http.Request) {
					_, _ = w.Write([]byte(`{"issuer":"https://other.example.com"}`))
				},
			},
			{
				name: "not-json",
				handler: func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("<html></html>")) },
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				assert, require := assert.New(t), require.New(t)
				var calls atomic.Int32
				h := tt.handler
				srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					calls.Add(1)
					h(w, r)
				}))
				t.Cleanup(srv.Close)
				_, err := Discover(ctx, srv.URL, WithHTTPClient(srv.Client()), WithDiscoveryRetries(2))
				require.Error(err)
				assert.True(errors.Is(err, ErrDiscoveryFailed))
				assert.Equal(int32(1), calls.Load())
			})
		}
	})
	t.Run("missing-endpoints-in-order", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		var srvURL string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"issuer":"` + srvURL + `"}`))
		}))
		t.Cleanup(srv.Close)
		srvURL = srv.URL
		for i := 0; i < 5; i++ {
			_, err := Discover(ctx, srv.URL, WithHTTPClient(srv.Client()))
			require.Error(err)
			assert.True(errors.Is(err, ErrMissingEndpoint))
			msg := err.Error()
			authz := strings.Index(msg, "authorization_endpoint")
			token := strings.Index(msg, "token_endpoint")
			endSession := strings.Index(msg, "end_session_endpoint")
			userInfo := strings.Index(msg, "userinfo_endpoint")
			require.True(authz >= 0 && token >= 0 && endSession >= 0 && userInfo >= 0, msg)
			assert.True(authz < token && token < endSession && endSession < userInfo, msg)
		}
	})
}
