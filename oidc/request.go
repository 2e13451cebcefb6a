// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-secure-stdlib/strutil"
	"golang.org/x/oauth2"
	"golang.org/x/text/language"
)

// reservedParams can't be overridden by WithExtraParams.
var reservedParams = []string{
	"client_id",
	"response_type",
	"scope",
	"redirect_uri",
	"nonce",
	"response_mode",
	"state",
	"code_challenge",
	"code_challenge_method",
}

// Request represents one authorization attempt.  It carries the values needed
// to validate the provider's response to that attempt and is never reused:
// every NewRequest generates a new state, nonce and PKCE verifier.
type Request struct {
	state        string
	nonce        string
	verifier     CodeVerifier
	redirectURL  string
	flow         Flow
	responseMode ResponseMode
	authURL      string
}

// NewRequest creates a new authorization attempt and its authorize URL.  It
// doesn't make any network requests.
//
// Supported options:
//
//	WithExtraParams
//	WithUILocales
func NewRequest(c *Config, e *Endpoints, opt ...Option) (*Request, error) {
	const op = "NewRequest"
	if c == nil {
		return nil, fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	if e == nil || e.AuthorizeUrl == "" {
		return nil, fmt.Errorf("%s: authorize URL is empty: %w", op, ErrMissingEndpoint)
	}
	opts := getReqOpts(opt...)
	if len(opts.withUILocales) == 0 {
		opts.withUILocales = c.UILocales
	}

	state, err := NewID("st")
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate state: %w", op, err)
	}
	nonce, err := NewID("n")
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate nonce: %w", op, err)
	}
	r := &Request{
		state:        state,
		nonce:        nonce,
		redirectURL:  c.RedirectUrl,
		flow:         c.Flow,
		responseMode: c.ResponseMode,
	}
	if c.UsePKCE && c.Flow.usesCode() {
		if r.verifier, err = NewCodeVerifier(); err != nil {
			return nil, fmt.Errorf("%s: unable to generate PKCE verifier: %w", op, err)
		}
	}

	authOpts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("response_type", c.Flow.ResponseType()),
		oauth2.SetAuthURLParam("response_mode", string(c.ResponseMode)),
		oidc.Nonce(r.nonce),
	}
	if r.verifier != nil {
		authOpts = append(authOpts,
			oauth2.SetAuthURLParam("code_challenge", r.verifier.Challenge()),
			oauth2.SetAuthURLParam("code_challenge_method", string(r.verifier.Method())),
		)
	}
	if len(opts.withUILocales) > 0 {
		authOpts = append(authOpts, oauth2.SetAuthURLParam("ui_locales", uiLocales(opts.withUILocales)))
	}
	for k, v := range opts.withExtraParams {
		if strutil.StrListContains(reservedParams, k) {
			continue
		}
		authOpts = append(authOpts, oauth2.SetAuthURLParam(k, v))
	}
	r.authURL = oauth2Config(c, e).AuthCodeURL(r.state, authOpts...)
	return r, nil
}

// State is an opaque value used to maintain state between the request and
// the callback.  It never equals the Nonce.
func (r *Request) State() string { return r.state }

// Nonce is bound to the id_token issued in response to this request.
func (r *Request) Nonce() string { return r.nonce }

// PKCEVerifier returns the request's verifier, or nil when PKCE isn't used.
func (r *Request) PKCEVerifier() CodeVerifier { return r.verifier }

func (r *Request) RedirectURL() string        { return r.redirectURL }
func (r *Request) Flow() Flow                 { return r.flow }
func (r *Request) ResponseMode() ResponseMode { return r.responseMode }

// AuthURL is the authorize URL to open in a browser.
func (r *Request) AuthURL() string { return r.authURL }

func uiLocales(tags []language.Tag) string {
	s := make([]string, 0, len(tags))
	for _, t := range tags {
		s = append(s, t.String())
	}
	return strings.Join(s, " ")
}

// reqOptions is the set of available options for NewRequest
type reqOptions struct {
	withExtraParams map[string]string
	withUILocales   []language.Tag
}

func reqDefaults() reqOptions {
	return reqOptions{}
}

func getReqOpts(opt ...Option) reqOptions {
	opts := reqDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
