// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-oidcclient/oidc"
	"golang.org/x/net/publicsuffix"
)

// DefaultMaxHops is the default number of requests a Headless invocation
// makes before giving up.
const DefaultMaxHops = 16

// maxPageSize limits how much of an html page is read.
const maxPageSize = 1 << 20

// Headless is an oidc.BrowserInvoker which follows the provider's redirects
// and forms with an http client instead of a browser.  Cookies are kept
// between invocations, so a provider session established by one login is
// reused by later (silent) ones.
type Headless struct {
	client     *http.Client
	formValues map[string]string
	maxHops    int
	logger     hclog.Logger
}

// ensure that Headless implements the oidc.BrowserInvoker interface
var _ oidc.BrowserInvoker = (*Headless)(nil)

// NewHeadless creates a headless invoker which uses a copy of the client
// (ex: one from oidc.Config.HttpClient), with its own cookie jar.
//
// Supported options:
//
//	WithFormValues
//	WithMaxHops
//	WithLogger
func NewHeadless(client *http.Client, opt ...oidc.Option) (*Headless, error) {
	const op = "NewHeadless"
	if client == nil {
		return nil, fmt.Errorf("%s: http client is nil: %w", op, oidc.ErrNilParameter)
	}
	opts := getHeadlessOpts(opt...)
	if opts.withMaxHops < 1 {
		return nil, fmt.Errorf("%s: max hops must be positive: %w", op, oidc.ErrInvalidParameter)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create cookie jar: %w", op, err)
	}
	c := *client
	c.Jar = jar
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &Headless{
		client:     &c,
		formValues: opts.withFormValues,
		maxHops:    opts.withMaxHops,
		logger:     opts.withLogger,
	}, nil
}

// Invoke implements the oidc.BrowserInvoker interface.  Redirects are
// followed until one targets the end URL.  An html page with a form whose
// action is the end URL (form_post) completes the invocation; any other form
// is submitted, with the configured form values, and the response followed.
// A page without a form completes the invocation with the end URL.
func (h *Headless) Invoke(ctx context.Context, opts oidc.InvokeOptions) (*oidc.InvokeResult, error) {
	const op = "Headless.Invoke"
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	end, err := url.Parse(opts.EndURL)
	if err != nil || end.Host == "" {
		return nil, fmt.Errorf("%s: end URL %q is invalid: %w", op, opts.EndURL, oidc.ErrInvalidParameter)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.StartURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create request: %w", op, err)
	}

	for hop := 0; hop < h.maxHops; hop++ {
		resp, err := h.client.Do(req)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return &oidc.InvokeResult{Type: oidc.InvokeTimeout}, nil
			}
			if errors.Is(err, context.Canceled) {
				return &oidc.InvokeResult{Type: oidc.InvokeUserCancel, Error: err.Error()}, nil
			}
			return &oidc.InvokeResult{Type: oidc.InvokeHttpError, Error: err.Error()}, nil
		}
		next, res := h.step(ctx, req, resp, end, opts)
		resp.Body.Close()
		if res != nil {
			return res, nil
		}
		req = next
	}
	h.logger.Debug("headless invocation gave up", "hops", h.maxHops)
	return &oidc.InvokeResult{Type: oidc.InvokeUnknownError, Error: "too many redirects"}, nil
}

// step returns either the next request or the result of the invocation.
func (h *Headless) step(ctx context.Context, req *http.Request, resp *http.Response, end *url.URL, opts oidc.InvokeOptions) (*http.Request, *oidc.InvokeResult) {
	switch {
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		loc, err := req.URL.Parse(resp.Header.Get("Location"))
		if err != nil {
			return nil, &oidc.InvokeResult{Type: oidc.InvokeHttpError, Error: "invalid redirect location"}
		}
		if isEndURL(loc, end) {
			return nil, &oidc.InvokeResult{Type: oidc.InvokeSuccess, Response: loc.String()}
		}
		h.logger.Trace("following redirect", "host", loc.Host)
		next, err := http.NewRequestWithContext(ctx, http.MethodGet, loc.String(), nil)
		if err != nil {
			return nil, &oidc.InvokeResult{Type: oidc.InvokeHttpError, Error: err.Error()}
		}
		return next, nil

	case resp.StatusCode != http.StatusOK:
		return nil, &oidc.InvokeResult{Type: oidc.InvokeHttpError, Error: resp.Status}
	}

	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt != "text/html" {
		return nil, &oidc.InvokeResult{Type: oidc.InvokeSuccess, Response: opts.EndURL}
	}
	action, values, err := oidc.ParseFormPost(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		// nothing left to follow
		return nil, &oidc.InvokeResult{Type: oidc.InvokeSuccess, Response: opts.EndURL}
	}
	target, err := req.URL.Parse(action)
	if err != nil {
		return nil, &oidc.InvokeResult{Type: oidc.InvokeHttpError, Error: "invalid form action"}
	}
	if isEndURL(target, end) {
		return nil, &oidc.InvokeResult{Type: oidc.InvokeSuccess, Response: values.Encode()}
	}
	if opts.Silent {
		// a form which doesn't complete the invocation needs an interaction
		return nil, &oidc.InvokeResult{Type: oidc.InvokeUserCancel, Error: "interaction required"}
	}
	for k, v := range h.formValues {
		values.Set(k, v)
	}
	h.logger.Trace("submitting form", "host", target.Host)
	next, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), strings.NewReader(values.Encode()))
	if err != nil {
		return nil, &oidc.InvokeResult{Type: oidc.InvokeHttpError, Error: err.Error()}
	}
	next.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return next, nil
}

// isEndURL reports whether u targets the end URL: same scheme, host and
// path.  The query and fragment carry the response.
func isEndURL(u, end *url.URL) bool {
	return strings.EqualFold(u.Scheme, end.Scheme) &&
		strings.EqualFold(u.Host, end.Host) &&
		cleanPath(u.Path) == cleanPath(end.Path)
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}

// headlessOptions is the set of available options for NewHeadless.
type headlessOptions struct {
	withFormValues map[string]string
	withMaxHops    int
	withLogger     hclog.Logger
}

func headlessDefaults() headlessOptions {
	return headlessOptions{
		withMaxHops: DefaultMaxHops,
		withLogger:  hclog.NewNullLogger(),
	}
}

func getHeadlessOpts(opt ...oidc.Option) headlessOptions {
	opts := headlessDefaults()
	oidc.ApplyOpts(&opts, opt...)
	return opts
}

// WithFormValues provides optional values (ex: username and password) which
// Headless sets when submitting a provider's form.
func WithFormValues(values map[string]string) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*headlessOptions); ok {
			o.withFormValues = values
		}
	}
}

// WithMaxHops provides an optional limit on the requests of a Headless
// invocation.  Default: DefaultMaxHops.
func WithMaxHops(n int) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*headlessOptions); ok {
			o.withMaxHops = n
		}
	}
}
