// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
)

// DefaultResourceName is the vault resource name used by a SessionManager.
const DefaultResourceName = "oidc"

// SessionManager owns the current LoginResult.  Successful logins and
// renewals replace it, failures leave it untouched, and Logout clears it.
//
// Attempts aren't serialized: callers must not run more than one Login or
// SilentRenew at a time for the same manager.
type SessionManager struct {
	client   *Client
	current  atomic.Pointer[LoginResult]
	vault    Vault
	resource string
	clock    clockwork.Clock
	logger   hclog.Logger
}

// NewSessionManager creates a session manager for the client.
//
// Supported options:
//
//	WithVault
//	WithResourceName
//	WithClock
//	WithNow
//	WithLogger
func NewSessionManager(c *Client, opt ...Option) (*SessionManager, error) {
	const op = "NewSessionManager"
	if c == nil {
		return nil, fmt.Errorf("%s: client is nil: %w", op, ErrNilParameter)
	}
	opts := getManagerOpts(opt...)
	if opts.withResourceName == "" {
		return nil, fmt.Errorf("%s: resource name is empty: %w", op, ErrInvalidParameter)
	}
	clock := opts.withClock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	m := &SessionManager{
		client:   c,
		vault:    opts.withVault,
		resource: opts.withResourceName,
		clock:    clock,
		logger:   opts.withLogger,
	}
	if opts.withNowFunc != nil && opts.withClock == nil {
		m.clock = nowClock{Clock: clock, now: opts.withNowFunc}
	}
	return m, nil
}

// Login runs a login attempt and, on success, makes its result current.
func (m *SessionManager) Login(ctx context.Context, silent bool) *LoginResult {
	var opts []Option
	if silent {
		opts = append(opts, WithSilent())
	}
	return m.attempt(ctx, "login", opts...)
}

// SilentRenew runs a silent login attempt with prompt=none.  The current
// result is only replaced on success.
func (m *SessionManager) SilentRenew(ctx context.Context) *LoginResult {
	return m.attempt(ctx, "silent renew", WithSilent(), WithExtraParams(map[string]string{"prompt": "none"}))
}

func (m *SessionManager) attempt(ctx context.Context, name string, opt ...Option) *LoginResult {
	r := m.client.Login(ctx, opt...)
	if !r.Success {
		m.logger.Debug(name+" failed", "error", r.Error, "kind", Kind(r.Err()).String())
		return r
	}
	m.current.Store(r)
	m.logger.Debug(name + " succeeded")
	return r
}

// Logout ends the provider session (best effort) and clears the current
// result and any stored one.
func (m *SessionManager) Logout(ctx context.Context, trySilent bool) {
	var hint IdToken
	if r := m.current.Load(); r != nil {
		hint = r.IdentityToken
	}
	if err := m.client.EndSession(ctx, hint, trySilent); err != nil {
		m.logger.Warn("unable to end provider session", "error", err)
	}
	m.current.Store(nil)
	if m.vault != nil {
		if err := m.vault.DeleteAll(ctx, m.resource); err != nil {
			m.logger.Warn("unable to remove stored login result", "error", err)
		}
	}
}

// Current returns the current result, or nil.
func (m *SessionManager) Current() *LoginResult { return m.current.Load() }

// AccessToken returns the current access token, or "".
func (m *SessionManager) AccessToken() AccessToken {
	if r := m.current.Load(); r != nil {
		return r.AccessToken
	}
	return ""
}

// IdentityToken returns the current id_token, or "".
func (m *SessionManager) IdentityToken() IdToken {
	if r := m.current.Load(); r != nil {
		return r.IdentityToken
	}
	return ""
}

// RefreshToken returns the current refresh token, or "".
func (m *SessionManager) RefreshToken() RefreshToken {
	if r := m.current.Load(); r != nil {
		return r.RefreshToken
	}
	return ""
}

// Principal returns the current principal, or an anonymous one.
func (m *SessionManager) Principal() *Principal {
	if r := m.current.Load(); r != nil && r.Principal != nil {
		return r.Principal
	}
	return AnonymousPrincipal()
}

// AuthenticationTime returns when the current result was issued.
func (m *SessionManager) AuthenticationTime() (time.Time, bool) {
	if r := m.current.Load(); r != nil {
		return r.AuthenticationTime, true
	}
	return time.Time{}, false
}

// Error returns the current result's error.  It's always "" since only
// successful results become current.
func (m *SessionManager) Error() string {
	if r := m.current.Load(); r != nil {
		return r.Error
	}
	return ""
}

// IsAccessTokenValid reports whether there's a current result and it's
// still valid.
func (m *SessionManager) IsAccessTokenValid() bool {
	return m.current.Load().IsAccessTokenValid(m.clock.Now())
}

// Store persists the current result to the vault under the manager's
// resource name.
func (m *SessionManager) Store(ctx context.Context) error {
	const op = "SessionManager.Store"
	if m.vault == nil {
		return fmt.Errorf("%s: vault is nil: %w", op, ErrNilParameter)
	}
	r := m.current.Load()
	if r == nil {
		return fmt.Errorf("%s: %w", op, ErrNotLoggedIn)
	}
	if err := StoreLoginResult(ctx, m.vault, m.resource, r); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Restore makes the stored result current.  It returns ErrNotFound when
// there's no valid stored result, in which case the current result isn't
// changed.
func (m *SessionManager) Restore(ctx context.Context) (*LoginResult, error) {
	const op = "SessionManager.Restore"
	if m.vault == nil {
		return nil, fmt.Errorf("%s: vault is nil: %w", op, ErrNilParameter)
	}
	r, err := RetrieveLoginResult(ctx, m.vault, m.resource, m.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if r == nil {
		return nil, fmt.Errorf("%s: no valid login result: %w", op, ErrNotFound)
	}
	m.current.Store(r)
	return r, nil
}

// nowClock overrides a clock's Now.
type nowClock struct {
	clockwork.Clock
	now func() time.Time
}

func (c nowClock) Now() time.Time { return c.now() }

// managerOptions is the set of available options for NewSessionManager
type managerOptions struct {
	withVault        Vault
	withResourceName string
	withClock        clockwork.Clock
	withNowFunc      func() time.Time
	withLogger       hclog.Logger
}

func managerDefaults() managerOptions {
	return managerOptions{
		withResourceName: DefaultResourceName,
		withLogger:       hclog.NewNullLogger(),
	}
}

func getManagerOpts(opt ...Option) managerOptions {
	opts := managerDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithVault provides an optional Vault for SessionManager.Store,
// SessionManager.Restore and SessionManager.Logout.
func WithVault(v Vault) Option {
	return func(o interface{}) {
		if o, ok := o.(*managerOptions); ok {
			o.withVault = v
		}
	}
}

// WithResourceName provides an optional vault resource name.  Default:
// DefaultResourceName.
func WithResourceName(name string) Option {
	return func(o interface{}) {
		if o, ok := o.(*managerOptions); ok {
			o.withResourceName = name
		}
	}
}

// WithClock provides an optional clock for the session manager.
func WithClock(c clockwork.Clock) Option {
	return func(o interface{}) {
		if o, ok := o.(*managerOptions); ok {
			o.withClock = c
		}
	}
}
