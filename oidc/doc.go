// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
Package oidc is an OpenID Connect relying party for native and CLI
applications.  It drives the hybrid ("code id_token"), authorization code
("code") and implicit ("id_token token") flows through a BrowserInvoker,
validates the provider's response and maintains the resulting session.

Primary types provided by the package:

  - Config: the relying party configuration (client id/secret, scopes,
    redirect URL, flow, PKCE, profile loading and claim filtering).

  - Endpoints: the provider URLs, either composed with NewEndpoints or
    fetched once with Discover.

  - Request: one authorization attempt, with its state, nonce, PKCE verifier
    and authorize URL.  Every attempt gets new values.

  - BrowserInvoker: opens the authorize URL and returns the callback payload.
    See the oidc/browser package for implementations.

  - Client: runs login attempts.  An attempt is validated in order: the
    id_token (IdentityTokenValidator), its nonce, its audience and its
    c_hash/at_hash binding.  Only then is the code exchanged and the
    principal assembled.  The first failure ends the attempt.

  - LoginResult: the outcome of an attempt and, on success, the session
    record.

  - SessionManager: owns the current LoginResult; Login, SilentRenew and
    Logout, plus Store/Restore through a Vault.  See the oidc/vault package
    for implementations.

Test helpers: TestProvider is a local provider supporting every flow and
response mode, and TestInvoker is a scripted BrowserInvoker.
*/
package oidc
