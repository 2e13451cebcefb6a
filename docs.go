// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// oidcclient provides an OpenID Connect relying party for native and command
// line applications: a browser driven login (authorization code, hybrid or
// implicit flow), id_token validation, session persistence and logout.
//
// See the oidc package and its sub-packages:
//
//	oidc:                 configuration, discovery, Client and SessionManager
//	oidc/browser:         BrowserInvoker implementations (loopback and headless)
//	oidc/callback:        http handler capturing the provider's response
//	oidc/clientassertion: signed JWT client authentication
//	oidc/vault:           Vault implementations (keyring, redis and memory)
package oidcclient
