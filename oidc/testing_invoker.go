// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// TestInvocation is one scripted TestInvoker outcome.
type TestInvocation struct {
	Result *InvokeResult
	Err    error
}

// TestInvoker is a BrowserInvoker for tests.  It records every invocation
// and replays the scripted outcomes in order.  When the script is exhausted
// it follows the start URL with its http client (see
// TestProvider.Invoker), or returns an InvokeUnknownError result when it has
// none.
type TestInvoker struct {
	mu     sync.Mutex
	script []TestInvocation
	calls  []InvokeOptions
	client *http.Client
}

// ensure that TestInvoker implements the BrowserInvoker interface
var _ BrowserInvoker = (*TestInvoker)(nil)

// NewTestInvoker creates a scripted TestInvoker.
func NewTestInvoker(script ...TestInvocation) *TestInvoker {
	return &TestInvoker{script: script}
}

// Invoker returns a TestInvoker which completes invocations against the
// provider without any user interaction, after replaying the script.
func (p *TestProvider) Invoker(script ...TestInvocation) *TestInvoker {
	inv := NewTestInvoker(script...)
	c := *p.HTTPClient()
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	inv.client = &c
	return inv
}

// Calls returns the options of every invocation so far.
func (i *TestInvoker) Calls() []InvokeOptions {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]InvokeOptions(nil), i.calls...)
}

// Invoke implements the BrowserInvoker interface.
func (i *TestInvoker) Invoke(ctx context.Context, opts InvokeOptions) (*InvokeResult, error) {
	i.mu.Lock()
	i.calls = append(i.calls, opts)
	var next *TestInvocation
	if len(i.script) > 0 {
		next = &i.script[0]
		i.script = i.script[1:]
	}
	client := i.client
	i.mu.Unlock()

	switch {
	case next != nil:
		return next.Result, next.Err
	case client == nil:
		return &InvokeResult{Type: InvokeUnknownError, Error: "no scripted invocation"}, nil
	}
	return follow(ctx, client, opts)
}

// follow requests the start URL and returns the provider's response to the
// end URL: a redirect (query or fragment) or a form_post page.
func follow(ctx context.Context, client *http.Client, opts InvokeOptions) (*InvokeResult, error) {
	const op = "follow"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.StartURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &InvokeResult{Type: InvokeTimeout}, nil
		}
		return &InvokeResult{Type: InvokeHttpError, Error: err.Error()}, nil
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		loc := resp.Header.Get("Location")
		if !strings.HasPrefix(loc, opts.EndURL) {
			return &InvokeResult{Type: InvokeUnknownError, Error: "unexpected redirect"}, nil
		}
		return &InvokeResult{Type: InvokeSuccess, Response: loc}, nil
	case resp.StatusCode != http.StatusOK:
		return &InvokeResult{Type: InvokeHttpError, Error: resp.Status}, nil
	case strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") && opts.ResponseMode == FormPostResponseMode:
		action, values, err := ParseFormPost(resp.Body)
		if err != nil || action != opts.EndURL {
			return &InvokeResult{Type: InvokeUnknownError, Error: "unexpected form post"}, nil
		}
		return &InvokeResult{Type: InvokeSuccess, Response: values.Encode()}, nil
	default:
		return &InvokeResult{Type: InvokeSuccess, Response: opts.EndURL}, nil
	}
}
