// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/text/language"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

// WithLogger provides an optional logger for: Client, SessionManager and
// Discover.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if l == nil {
			return
		}
		switch v := o.(type) {
		case *clientOptions:
			v.withLogger = l
		case *managerOptions:
			v.withLogger = l
		case *endpointsOptions:
			v.withLogger = l
		}
	}
}

// WithNow provides an optional func for determining the current time for:
// Config and SessionManager.
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		if now == nil {
			return
		}
		switch v := o.(type) {
		case *configOptions:
			v.withNowFunc = now
		case *managerOptions:
			v.withNowFunc = now
		}
	}
}

// WithProviderCA provides an optional CA cert (PEM) used when sending
// requests to the provider for: Config and Discover.
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *configOptions:
			v.withProviderCA = cert
		case *endpointsOptions:
			v.withProviderCA = cert
		}
	}
}

// WithHTTPClient provides an optional http.Client for: Client and Discover.
// When not provided, a client is built from the Config's provider CA and
// http timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *clientOptions:
			v.withHTTPClient = c
		case *endpointsOptions:
			v.withHTTPClient = c
		}
	}
}

// WithExtraParams provides optional provider specific parameters which are
// appended verbatim to the authorize URL for: NewRequest and Client.Login.
// Reserved protocol parameters (client_id, state, nonce, ...) can not be
// overridden this way.
func WithExtraParams(params map[string]string) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *reqOptions:
			v.withExtraParams = mergeParams(v.withExtraParams, params)
		case *loginOptions:
			v.withExtraParams = mergeParams(v.withExtraParams, params)
		}
	}
}

// WithUILocales provides optional end-user preferred languages for the
// provider's UI for: Config, NewRequest and Client.Login.
//
// See: https://openid.net/specs/openid-connect-core-1_0.html#AuthRequest
func WithUILocales(locales ...language.Tag) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *configOptions:
			v.withUILocales = locales
		case *reqOptions:
			v.withUILocales = locales
		case *loginOptions:
			v.withUILocales = locales
		}
	}
}

func mergeParams(dst, src map[string]string) map[string]string {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
