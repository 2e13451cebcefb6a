// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
browser provides oidc.BrowserInvoker implementations.

Loopback opens the system browser and captures the callback with a
listener on the (loopback) redirect URL.  It's intended for CLIs and
desktop apps; it doesn't support silent invocations.

Headless requests the authorization URL with an http client, following
redirects and submitting forms until the provider redirects (or posts) to
the end URL.  It never shows any UI, so it supports silent invocations; it's
intended for providers which authenticate the client's environment (ex:
integrated or certificate authentication) and for tests.
*/
package browser
