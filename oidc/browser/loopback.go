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
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-oidcclient/oidc"
	"github.com/hashicorp/go-oidcclient/oidc/callback"
	"github.com/pkg/browser"
)

// ErrNotLoopback is returned when the end URL isn't an http loopback URL.
var ErrNotLoopback = errors.New("end URL is not a loopback URL")

const shutdownTimeout = 5 * time.Second

// Loopback is an oidc.BrowserInvoker which opens the system browser and
// listens on the end URL for the callback.
type Loopback struct {
	open   func(url string) error
	logger hclog.Logger
}

// ensure that Loopback implements the oidc.BrowserInvoker interface
var _ oidc.BrowserInvoker = (*Loopback)(nil)

// NewLoopback creates a new loopback invoker.
//
// Supported options:
//
//	WithOpenFunc
//	WithLogger
func NewLoopback(opt ...oidc.Option) *Loopback {
	opts := getLoopbackOpts(opt...)
	return &Loopback{
		open:   opts.withOpenFunc,
		logger: opts.withLogger,
	}
}

// Invoke implements the oidc.BrowserInvoker interface.  The end URL must be
// an http URL with a loopback host (127.0.0.1, [::1] or localhost); its
// port is listened on until the callback is received, the timeout expires
// or ctx is done.
func (l *Loopback) Invoke(ctx context.Context, opts oidc.InvokeOptions) (*oidc.InvokeResult, error) {
	const op = "Loopback.Invoke"
	if opts.Silent {
		return &oidc.InvokeResult{Type: oidc.InvokeUnknownError, Error: "silent invocation not supported"}, nil
	}
	end, err := url.Parse(opts.EndURL)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to parse end URL: %w", op, err)
	}
	if !isLoopback(end) {
		return nil, fmt.Errorf("%s: %q: %w", op, opts.EndURL, ErrNotLoopback)
	}
	addr := end.Host
	if end.Port() == "" {
		addr = net.JoinHostPort(end.Hostname(), "80")
	}
	path := end.Path
	if path == "" {
		path = "/"
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to listen on %s: %w", op, addr, err)
	}
	payloads, h := callback.Capture(path)
	r := chi.NewRouter()
	r.Get(path, h)
	r.Post(path, h)
	srv := &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			l.logger.Warn("failed to shutdown callback listener", "error", err)
		}
	}()

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	l.logger.Debug("opening browser", "addr", addr)
	if err := l.open(opts.StartURL); err != nil {
		l.logger.Warn("failed to open browser", "error", err)
		l.logger.Info("please open this URL in your browser", "url", opts.StartURL)
	}

	select {
	case p := <-payloads:
		if p.Error != nil {
			return &oidc.InvokeResult{Type: oidc.InvokeHttpError, Error: p.Error.Error()}, nil
		}
		return &oidc.InvokeResult{Type: oidc.InvokeSuccess, Response: p.Response}, nil
	case err := <-serveErr:
		return &oidc.InvokeResult{Type: oidc.InvokeHttpError, Error: err.Error()}, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &oidc.InvokeResult{Type: oidc.InvokeTimeout}, nil
		}
		return &oidc.InvokeResult{Type: oidc.InvokeUserCancel, Error: ctx.Err().Error()}, nil
	}
}

func isLoopback(u *url.URL) bool {
	if u.Scheme != "http" {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// loopbackOptions is the set of available options for NewLoopback.
type loopbackOptions struct {
	withOpenFunc func(string) error
	withLogger   hclog.Logger
}

func loopbackDefaults() loopbackOptions {
	return loopbackOptions{
		withOpenFunc: browser.OpenURL,
		withLogger:   hclog.NewNullLogger(),
	}
}

func getLoopbackOpts(opt ...oidc.Option) loopbackOptions {
	opts := loopbackDefaults()
	oidc.ApplyOpts(&opts, opt...)
	return opts
}

// WithOpenFunc provides an optional func which opens the URL for Loopback.
// Default: the system browser.
func WithOpenFunc(fn func(url string) error) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*loopbackOptions); ok && fn != nil {
			o.withOpenFunc = fn
		}
	}
}
