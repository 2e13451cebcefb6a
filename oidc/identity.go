// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
)

// IdentityTokenValidator validates an id_token and returns the claims it
// carries.  Nonce, audience and hash binding are checked by the Client
// afterwards, so a validator only needs to establish the token's
// authenticity.
type IdentityTokenValidator interface {
	ValidateIdentityToken(ctx context.Context, t IdToken) (*Principal, error)
}

// maxValidationResponse limits how much of a validation response is read.
const maxValidationResponse = 1 << 20

// RemoteValidator asks the provider's identity token validation endpoint to
// validate the id_token.
type RemoteValidator struct {
	url      string
	clientID string
	client   *http.Client
}

// ensure that RemoteValidator implements the IdentityTokenValidator interface
var _ IdentityTokenValidator = (*RemoteValidator)(nil)

// NewRemoteValidator creates a validator which posts {token, client_id} to
// the validation URL.
func NewRemoteValidator(validationURL, clientID string, client *http.Client) (*RemoteValidator, error) {
	const op = "NewRemoteValidator"
	switch {
	case validationURL == "":
		return nil, fmt.Errorf("%s: validation URL is empty: %w", op, ErrMissingEndpoint)
	case clientID == "":
		return nil, fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter)
	case client == nil:
		return nil, fmt.Errorf("%s: http client is nil: %w", op, ErrNilParameter)
	}
	return &RemoteValidator{url: validationURL, clientID: clientID, client: client}, nil
}

// ValidateIdentityToken implements the IdentityTokenValidator interface.  A
// 2xx response is a JSON object of claims; array values expand to multiple
// claims of the same type.
func (v *RemoteValidator) ValidateIdentityToken(ctx context.Context, t IdToken) (*Principal, error) {
	const op = "RemoteValidator.ValidateIdentityToken"
	if t == "" {
		return nil, fmt.Errorf("%s: id_token is empty: %w", op, ErrIdTokenValidationFailed)
	}
	form := url.Values{
		"token":     {string(t)},
		"client_id": {v.clientID},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create request: %w: %w", op, ErrIdTokenValidationFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w: %w", op, ErrIdTokenValidationFailed, ErrTransport, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxValidationResponse))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to read response: %w: %w", op, ErrIdTokenValidationFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s: %s: %w", op, resp.Status, ErrIdTokenValidationFailed)
	}

	var m map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%s: unable to decode claims: %w: %w", op, ErrIdTokenValidationFailed, err)
	}
	claims, err := ClaimsFromMap(m)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrIdTokenValidationFailed, err)
	}
	return NewPrincipal(claims...), nil
}

// supportedAlgs are the id_token signing algorithms LocalValidator accepts.
var supportedAlgs = []string{
	oidc.RS256, oidc.RS384, oidc.RS512,
	oidc.ES256, oidc.ES384, oidc.ES512,
	oidc.PS256, oidc.PS384, oidc.PS512,
	oidc.EdDSA,
}

// LocalValidator verifies the id_token's signature with the provider's JSON
// web key set, and checks its issuer and expiry.
type LocalValidator struct {
	verifier *oidc.IDTokenVerifier
}

// ensure that LocalValidator implements the IdentityTokenValidator interface
var _ IdentityTokenValidator = (*LocalValidator)(nil)

// NewLocalValidator creates a validator for tokens issued by issuer and
// signed with keys from jwksURL.  The keys are fetched with client and
// cached.
func NewLocalValidator(issuer, jwksURL string, client *http.Client, now func() time.Time) (*LocalValidator, error) {
	const op = "NewLocalValidator"
	switch {
	case issuer == "":
		return nil, fmt.Errorf("%s: issuer is empty: %w", op, ErrInvalidParameter)
	case jwksURL == "":
		return nil, fmt.Errorf("%s: JWKS URL is empty: %w", op, ErrMissingEndpoint)
	case client == nil:
		return nil, fmt.Errorf("%s: http client is nil: %w", op, ErrNilParameter)
	}
	keySet := oidc.NewRemoteKeySet(HttpClientContext(context.Background(), client), jwksURL)
	return &LocalValidator{
		verifier: oidc.NewVerifier(issuer, keySet, &oidc.Config{
			// audience is checked against the first aud claim by the client
			SkipClientIDCheck:    true,
			SupportedSigningAlgs: supportedAlgs,
			Now:                  now,
		}),
	}, nil
}

// ValidateIdentityToken implements the IdentityTokenValidator interface.
func (v *LocalValidator) ValidateIdentityToken(ctx context.Context, t IdToken) (*Principal, error) {
	const op = "LocalValidator.ValidateIdentityToken"
	idt, err := v.verifier.Verify(ctx, string(t))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrIdTokenValidationFailed, err)
	}
	var m map[string]interface{}
	if err := idt.Claims(&m); err != nil {
		return nil, fmt.Errorf("%s: unable to read claims: %w: %w", op, ErrIdTokenValidationFailed, err)
	}
	claims, err := ClaimsFromMap(m)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrIdTokenValidationFailed, err)
	}
	return NewPrincipal(claims...), nil
}
