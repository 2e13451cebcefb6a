// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/hashicorp/go-multierror"
)

const (
	// identityTokenValidationPath is appended to the authority when the
	// validation endpoint isn't provided.
	identityTokenValidationPath = "connect/identitytokenvalidation"

	wellKnownPath = "/.well-known/openid-configuration"

	maxDiscoveryDocument = 1 << 20
)

// discoveryDocument is the subset of the provider's metadata the relying party
// reads.
type discoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	EndSessionEndpoint    string `json:"end_session_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

// Discover fetches {authority}/.well-known/openid-configuration once and
// returns the provider's Endpoints.  The authorization, token, end session
// and user info endpoints are required.  Transport failures (network errors,
// 429 and 5xx responses) are retried with an exponential backoff; any other
// failure is returned immediately.
//
// Supported options:
//
//	WithIdentityTokenValidationURL
//	WithDiscoveryRetries
//	WithProviderCA
//	WithHTTPClient
//	WithLogger
func Discover(ctx context.Context, authority string, opt ...Option) (*Endpoints, error) {
	const op = "Discover"
	if authority == "" {
		return nil, fmt.Errorf("%s: authority is empty: %w", op, ErrInvalidParameter)
	}
	opts := getEndpointsOpts(opt...)

	client := opts.withHTTPClient
	if client == nil {
		var err error
		if client, err = NewHTTPClient(opts.withProviderCA, DefaultHTTPTimeout); err != nil {
			return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
		}
	}
	authority = strings.TrimSuffix(authority, "/")

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	doc, err := backoff.Retry(ctx, func() (*discoveryDocument, error) {
		doc, err := fetchDiscoveryDocument(ctx, client, authority)
		if err != nil {
			opts.withLogger.Debug("discovery request failed", "authority", authority, "error", err)
			return nil, err
		}
		return doc, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(opts.withDiscoveryRetries+1))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to discover provider %s: %w: %w", op, authority, ErrDiscoveryFailed, err)
	}

	var missing *multierror.Error
	for _, required := range []struct {
		key, value string
	}{
		{"authorization_endpoint", doc.AuthorizationEndpoint},
		{"token_endpoint", doc.TokenEndpoint},
		{"end_session_endpoint", doc.EndSessionEndpoint},
		{"userinfo_endpoint", doc.UserinfoEndpoint},
	} {
		if required.value == "" {
			missing = multierror.Append(missing, fmt.Errorf("%s is missing: %w", required.key, ErrMissingEndpoint))
		}
	}
	if err := missing.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	validationUrl := opts.withIdentityTokenValidationUrl
	if validationUrl == "" {
		validationUrl = authority + "/" + identityTokenValidationPath
	}
	e := &Endpoints{
		Issuer:                     doc.Issuer,
		AuthorizeUrl:               doc.AuthorizationEndpoint,
		TokenUrl:                   doc.TokenEndpoint,
		EndSessionUrl:              doc.EndSessionEndpoint,
		UserInfoUrl:                doc.UserinfoEndpoint,
		IdentityTokenValidationUrl: validationUrl,
		JWKSUrl:                    doc.JWKSURI,
	}
	opts.withLogger.Debug("discovered provider endpoints", "authority", authority, "issuer", e.Issuer)
	return e, nil
}

// fetchDiscoveryDocument makes one discovery request.  Errors which a retry
// can't fix are wrapped with backoff.Permanent.
func fetchDiscoveryDocument(ctx context.Context, client *http.Client, authority string) (*discoveryDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, authority+wellKnownPath, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("unable to create request: %w", err))
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDiscoveryDocument))
	if err != nil {
		return nil, fmt.Errorf("unable to read response: %w: %w", ErrTransport, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return nil, fmt.Errorf("%s: %w", resp.Status, ErrTransport)
	default:
		return nil, backoff.Permanent(fmt.Errorf("%s: %w", resp.Status, ErrHttpError))
	}

	var doc discoveryDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("unable to decode discovery document: %w", err))
	}
	// the issuer must be the authority the document was fetched from
	if strings.TrimSuffix(doc.Issuer, "/") != authority {
		return nil, backoff.Permanent(fmt.Errorf("issuer %q doesn't match authority %q", doc.Issuer, authority))
	}
	return &doc, nil
}
