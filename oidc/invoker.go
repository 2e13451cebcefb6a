// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
)

// InvokeResultType is the outcome of a browser invocation.
type InvokeResultType int

const (
	// InvokeSuccess means Response holds the callback payload.
	InvokeSuccess InvokeResultType = iota
	InvokeHttpError
	InvokeUserCancel
	InvokeTimeout
	InvokeUnknownError
)

func (t InvokeResultType) String() string {
	switch t {
	case InvokeSuccess:
		return "success"
	case InvokeHttpError:
		return "http error"
	case InvokeUserCancel:
		return "user cancel"
	case InvokeTimeout:
		return "timeout"
	default:
		return "unknown error"
	}
}

// InvokeOptions are passed to a BrowserInvoker for a single invocation.
type InvokeOptions struct {
	// StartURL is the provider URL to open.
	StartURL string

	// EndURL is the redirect URL which completes the invocation.
	EndURL string

	// Silent requests an invocation without any visible UI.  Invokers which
	// can't do that return a non-success result.
	Silent bool

	Timeout time.Duration

	// ResponseMode tells the invoker how the provider returns the response
	// (a form post to EndURL, or EndURL with a query/fragment).
	ResponseMode ResponseMode

	AlternateCredentials bool
}

// InvokeResult is a browser invocation outcome.  For InvokeSuccess, Response
// is either the full callback URL or a form encoded body.
type InvokeResult struct {
	Type     InvokeResultType
	Response string
	Error    string
}

// Message returns a description of an unsuccessful result.
func (r *InvokeResult) Message() string {
	if r == nil {
		return ""
	}
	if r.Error != "" {
		return r.Error
	}
	return r.Type.String()
}

// err maps an unsuccessful result to the matching sentinel error.
func (r *InvokeResult) err() error {
	switch r.Type {
	case InvokeUserCancel:
		return ErrUserCancel
	case InvokeTimeout:
		return ErrTimeout
	case InvokeHttpError:
		return ErrHttpError
	default:
		return ErrInvokeFailed
	}
}

var errNoInvokeResult = fmt.Errorf("browser invoker returned no result: %w", ErrInvokeFailed)

// BrowserInvoker opens a URL in a browser (or equivalent) and waits for the
// provider to redirect to the end URL.  A returned error is a local
// invocation failure (ex: malformed URL) and is never retried; every other
// failure is reported through the InvokeResult.
type BrowserInvoker interface {
	Invoke(ctx context.Context, opts InvokeOptions) (*InvokeResult, error)
}

// invoke tries a silent invocation first when requested and falls back to an
// interactive one with the same URL for any unsuccessful silent result.
// Local invocation errors are returned immediately and unwrapped, so the
// caller can report the invoker's own message.
func invoke(ctx context.Context, inv BrowserInvoker, logger hclog.Logger, c *Config, startURL, endURL string, silent bool) (*InvokeResult, error) {
	opts := InvokeOptions{
		StartURL:             startURL,
		EndURL:               endURL,
		ResponseMode:         c.ResponseMode,
		AlternateCredentials: c.EnableAlternateCredentials,
	}
	if silent {
		opts.Silent = true
		opts.Timeout = c.SilentInvokeTimeout
		res, err := inv.Invoke(ctx, opts)
		switch {
		case err != nil:
			return nil, err
		case res == nil:
			return nil, errNoInvokeResult
		case res.Type == InvokeSuccess:
			return res, nil
		}
		logger.Warn("silent invocation unsuccessful, falling back to interactive", "result", res.Type.String())
	}

	opts.Silent = false
	opts.Timeout = c.InvokeTimeout
	res, err := inv.Invoke(ctx, opts)
	switch {
	case err != nil:
		return nil, err
	case res == nil:
		return nil, errNoInvokeResult
	}
	return res, nil
}
