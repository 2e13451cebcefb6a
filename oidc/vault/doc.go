// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
Package vault provides oidc.Vault implementations for persisting session
state between runs of a relying party.

	Keyring: the OS credential store (macOS keychain, Windows credential
	manager, Secret Service on Linux).

	Redis: a redis hash per resource, for relying parties which share
	sessions across processes.

	Memory: a process local map, mostly useful for tests.

Example:

	v := vault.NewKeyring(vault.WithKeyPrefix("my-cli"))
	mgr, err := oidc.NewSessionManager(client, oidc.WithVault(v), oidc.WithResourceName("api"))
	if err != nil {
		// handle error
	}
	if _, err := mgr.Restore(ctx); err != nil {
		// no usable session was stored, so login
	}
*/
package vault
