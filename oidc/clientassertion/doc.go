// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
Package clientassertion signs the JWTs a confidential client sends as its
client_assertion when redeeming an authorization code, instead of a client
secret.  Both client_secret_jwt (HMAC) and private_key_jwt (RSA, RSA-PSS and
ECDSA) are supported.

See: https://openid.net/specs/openid-connect-core-1_0.html#ClientAuthentication

Example usage:

	j, err := clientassertion.NewJWT("client-id", []string{tokenURL},
		clientassertion.WithRSAKey(key, clientassertion.RS256),
		clientassertion.WithKeyID("key-id"),
	)
	if err != nil {
		// handle error
	}
	cfg, err := oidc.NewConfig("client-id", "", "openid profile", redirectURL,
		oidc.WithClientAssertion(j),
	)

A *JWT is safe to share: every Serialize call produces a new token with a
new jti.
*/
package clientassertion
