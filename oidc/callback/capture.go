// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/hashicorp/go-oidcclient/oidc"
)

// ErrAlreadyCaptured is returned for every request after the first callback
// was captured.
var ErrAlreadyCaptured = errors.New("callback already captured")

// maxFormSize limits the size of a form_post body.
const maxFormSize = 1 << 20

const (
	pageCSP  = "default-src 'none'"
	relayCSP = "default-src 'none'; script-src 'unsafe-inline'; connect-src 'self'"
)

// relayPage posts the fragment back to the callback as a form encoded body.
const relayPage = `<!DOCTYPE html>
<html><head><title>Completing sign in</title></head>
<body><p id="msg">Completing sign in...</p>
<script>
fetch(window.location.pathname, {
  method: "POST",
  headers: {"Content-Type": "application/x-www-form-urlencoded"},
  body: window.location.hash.substring(1)
}).then(function (r) { return r.text(); }).then(function (t) {
  document.open(); document.write(t); document.close();
});
</script>
</body></html>
`

// Payload is a captured callback.
type Payload struct {
	// Response is the full callback URL (query) or the form encoded body
	// (form_post or a relayed fragment).
	Response string

	// Error is set when the callback request couldn't be read.
	Error error
}

// Capture creates a one-time use callback handler for endPath.  The first
// callback request is published on the returned channel, which is then
// closed; later requests are answered with ErrAlreadyCaptured.  Requests for
// any other path get a 404.  An empty endPath matches every path.
//
// Supported options:
//
//	WithSuccessResponse
//	WithErrorResponse
func Capture(endPath string, opt ...oidc.Option) (<-chan Payload, http.HandlerFunc) {
	opts := getCaptureOpts(opt...)
	ch := make(chan Payload, 1)
	var once sync.Once
	deliver := func(p Payload) bool {
		delivered := false
		once.Do(func() {
			ch <- p
			close(ch)
			delivered = true
		})
		return delivered
	}

	return ch, func(w http.ResponseWriter, req *http.Request) {
		const op = "callback.Capture"
		if endPath != "" && req.URL.Path != endPath {
			http.NotFound(w, req)
			return
		}

		var p Payload
		switch req.Method {
		case http.MethodGet:
			if req.URL.RawQuery == "" {
				setSecurityHeaders(w, relayCSP)
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				_, _ = w.Write([]byte(relayPage))
				return
			}
			p.Response = requestURL(req)
		case http.MethodPost:
			req.Body = http.MaxBytesReader(w, req.Body, maxFormSize)
			if err := req.ParseForm(); err != nil {
				p.Error = fmt.Errorf("%s: unable to parse form: %w", op, err)
				break
			}
			p.Response = req.PostForm.Encode()
		default:
			w.Header().Set("Allow", "GET, POST")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		setSecurityHeaders(w, pageCSP)
		if !deliver(p) {
			opts.withErrorFn(nil, fmt.Errorf("%s: %w", op, ErrAlreadyCaptured), w, req)
			return
		}
		switch {
		case p.Error != nil:
			opts.withErrorFn(nil, p.Error, w, req)
		case req.FormValue("error") != "":
			// get parameters from either the body or query parameters.
			// FormValue prioritizes body values, if found
			opts.withErrorFn(&AuthenErrorResponse{
				Error:       req.FormValue("error"),
				Description: req.FormValue("error_description"),
				Uri:         req.FormValue("error_uri"),
			}, nil, w, req)
		default:
			opts.withSuccessFn(w, req)
		}
	}
}

// requestURL reconstructs the full URL of a callback request.
func requestURL(req *http.Request) string {
	scheme := "http"
	if req.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + req.Host + req.URL.RequestURI()
}

// captureOptions is the set of available options for Capture.
type captureOptions struct {
	withSuccessFn SuccessResponseFunc
	withErrorFn   ErrorResponseFunc
}

func captureDefaults() captureOptions {
	return captureOptions{
		withSuccessFn: DefaultSuccessResponse,
		withErrorFn:   DefaultErrorResponse,
	}
}

func getCaptureOpts(opt ...oidc.Option) captureOptions {
	opts := captureDefaults()
	oidc.ApplyOpts(&opts, opt...)
	return opts
}

// WithSuccessResponse provides an optional SuccessResponseFunc for Capture.
func WithSuccessResponse(fn SuccessResponseFunc) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*captureOptions); ok && fn != nil {
			o.withSuccessFn = fn
		}
	}
}

// WithErrorResponse provides an optional ErrorResponseFunc for Capture.
func WithErrorResponse(fn ErrorResponseFunc) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*captureOptions); ok && fn != nil {
			o.withErrorFn = fn
		}
	}
}
