// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package browser

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-oidcclient/oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLoopbackURL returns a loopback redirect URL on a free port.
func testLoopbackURL(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return fmt.Sprintf("http://127.0.0.1:%d/callback", port)
}

// testUserAgent plays the system browser: it follows the provider's
// redirects to the loopback listener and submits form_post pages.
func testUserAgent(p *oidc.TestProvider, opened *atomic.Int32) func(string) error {
	return func(startURL string) error {
		opened.Add(1)
		client := p.HTTPClient()
		resp, err := client.Get(startURL)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
			return nil
		}
		action, values, err := oidc.ParseFormPost(resp.Body)
		if err != nil {
			// the loopback listener's own page
			return nil
		}
		post, err := client.PostForm(action, values)
		if err != nil {
			return err
		}
		return post.Body.Close()
	}
}

func TestLoopback_Login(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		mode oidc.ResponseMode
	}{
		{name: "query", mode: oidc.QueryResponseMode},
		{name: "form-post", mode: oidc.FormPostResponseMode},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			p := oidc.StartTestProvider(t)
			redirect := testLoopbackURL(t)
			p.SetAllowedRedirectURIs([]string{redirect})
			p.SetClientCreds("loopback-client", "loopback-secret")

			var opened atomic.Int32
			l := NewLoopback(WithOpenFunc(testUserAgent(p, &opened)))
			cfg, err := oidc.NewConfig("loopback-client", "loopback-secret", "openid profile", redirect,
				oidc.WithProviderCA(p.CACert()), oidc.WithResponseMode(tt.mode))
			require.NoError(err)
			c, err := oidc.NewClient(cfg, p.Endpoints(), l)
			require.NoError(err)

			got := c.Login(context.Background(), oidc.WithSilent())
			require.True(got.Success, got.Error)
			assert.Equal("alice@example.com", got.Principal.FindFirst("sub"))
			// the silent attempt isn't supported, so only the interactive
			// one opened the browser
			assert.Equal(int32(1), opened.Load())
		})
	}
}

func TestLoopback_Invoke(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("silent", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		l := NewLoopback(WithOpenFunc(func(string) error {
			return errors.New("should not be opened")
		}))
		got, err := l.Invoke(ctx, oidc.InvokeOptions{StartURL: "https://provider.example.com/authorize", EndURL: testLoopbackURL(t), Silent: true})
		require.NoError(err)
		assert.Equal(oidc.InvokeUnknownError, got.Type)
	})
	t.Run("timeout", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		l := NewLoopback(WithOpenFunc(func(string) error { return nil }))
		got, err := l.Invoke(ctx, oidc.InvokeOptions{
			StartURL: "https://provider.example.com/authorize",
			EndURL:   testLoopbackURL(t),
			Timeout:  50 * time.Millisecond,
		})
		require.NoError(err)
		assert.Equal(oidc.InvokeTimeout, got.Type)
	})
	t.Run("cancelled", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		cancelCtx, cancel := context.WithCancel(ctx)
		l := NewLoopback(WithOpenFunc(func(string) error {
			cancel()
			return nil
		}))
		got, err := l.Invoke(cancelCtx, oidc.InvokeOptions{StartURL: "https://provider.example.com/authorize", EndURL: testLoopbackURL(t)})
		require.NoError(err)
		assert.Equal(oidc.InvokeUserCancel, got.Type)
	})
	t.Run("open-failure-keeps-waiting", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		end := testLoopbackURL(t)
		l := NewLoopback(WithOpenFunc(func(string) error {
			go func() {
				resp, err := http.Get(end + "?code=abc123&state=st_1")
				if err == nil {
					_ = resp.Body.Close()
				}
			}()
			return errors.New("no browser")
		}))
		got, err := l.Invoke(ctx, oidc.InvokeOptions{StartURL: "https://provider.example.com/authorize", EndURL: end, Timeout: 5 * time.Second})
		require.NoError(err)
		require.Equal(oidc.InvokeSuccess, got.Type, got.Message())
		assert.Equal(end+"?code=abc123&state=st_1", got.Response)
	})
	t.Run("not-loopback", func(t *testing.T) {
		l := NewLoopback()
		_, err := l.Invoke(ctx, oidc.InvokeOptions{StartURL: "https://provider.example.com/authorize", EndURL: "https://example.com/callback"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotLoopback))
	})
}

func Test_isLoopback(t *testing.T) {
	t.Parallel()
	for u, want := range map[string]bool{
		"http://127.0.0.1:8080/callback": true,
		"http://localhost/callback":      true,
		"http://[::1]:9000/":             true,
		"https://127.0.0.1/callback":     false,
		"http://example.com/callback":    false,
		"http://10.0.0.1/callback":       false,
	} {
		parsed, err := url.Parse(u)
		require.NoError(t, err)
		assert.Equalf(t, want, isLoopback(parsed), "%s", u)
	}
}
