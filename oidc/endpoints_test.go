// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEndpoints(t *testing.T) {
	t.Parallel()
	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		e, err := NewEndpoints("https://p/authorize", "https://p/token", "https://p/endsession", "https://p/userinfo", "https://p/validate",
			WithIssuer("https://p"), WithJWKSURL("https://p/jwks"))
		require.NoError(err)
		assert.Equal(&Endpoints{
			Issuer:                     "https://p",
			AuthorizeUrl:               "https://p/authorize",
			TokenUrl:                   "https://p/token",
			EndSessionUrl:              "https://p/endsession",
			UserInfoUrl:                "https://p/userinfo",
			IdentityTokenValidationUrl: "https://p/validate",
			JWKSUrl:                    "https://p/jwks",
		}, e)
	})
	t.Run("missing-authorize", func(t *testing.T) {
		_, err := NewEndpoints("", "https://p/token", "", "", "")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMissingEndpoint))
	})
}

func TestEndpoints_Validate(t *testing.T) {
	t.Parallel()
	c, full := testConfigAndEndpoints(t)
	implicit, _ := testConfigAndEndpoints(t, WithFlow(ImplicitFlow), WithLoadProfile(false))

	tests := []struct {
		name        string
		config      *Config
		endpoints   *Endpoints
		wantErr     bool
		wantMissing []string
	}{
		{name: "complete", config: c, endpoints: full},
		{
			name:   "local-validation",
			config: c,
			endpoints: &Endpoints{
				AuthorizeUrl: full.AuthorizeUrl, TokenUrl: full.TokenUrl, UserInfoUrl: full.UserInfoUrl,
				JWKSUrl: "https://provider.example.com/jwks",
			},
		},
		{
			name:        "everything-missing",
			config:      c,
			endpoints:   &Endpoints{},
			wantErr:     true,
			wantMissing: []string{"authorize URL", "token URL", "user info URL", "identity token validation URL"},
		},
		{
			name:      "implicit-needs-no-token-or-userinfo",
			config:    implicit,
			endpoints: &Endpoints{AuthorizeUrl: full.AuthorizeUrl, IdentityTokenValidationUrl: full.IdentityTokenValidationUrl},
		},
		{
			name:      "nil-config",
			endpoints: full,
			wantErr:   true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			err := tt.endpoints.Validate(tt.config)
			if !tt.wantErr {
				require.NoError(err)
				return
			}
			require.Error(err)
			for _, m := range tt.wantMissing {
				assert.Truef(strings.Contains(err.Error(), m), "%q missing from %q", m, err.Error())
			}
			if len(tt.wantMissing) > 0 {
				assert.True(errors.Is(err, ErrMissingEndpoint))
			}
		})
	}
}
