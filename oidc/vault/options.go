// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package vault

import (
	"time"

	"github.com/hashicorp/go-oidcclient/oidc"
)

// DefaultKeyPrefix is prepended to resource names by Keyring and Redis.
const DefaultKeyPrefix = "go-oidcclient"

type options struct {
	withKeyPrefix string
	withTTL       time.Duration
}

func getDefaults() options {
	return options{
		withKeyPrefix: DefaultKeyPrefix,
	}
}

func getOpts(opt ...oidc.Option) options {
	opts := getDefaults()
	oidc.ApplyOpts(&opts, opt...)
	return opts
}

// WithKeyPrefix provides an optional prefix for the keyring service or redis
// key of a resource, for: Keyring and Redis.  Default: DefaultKeyPrefix.
func WithKeyPrefix(prefix string) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withKeyPrefix = prefix
		}
	}
}

// WithTTL provides an optional expiration for a resource's values, for:
// Redis.  Every Put resets it.  Default: no expiration.
func WithTTL(ttl time.Duration) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withTTL = ttl
		}
	}
}

// resourceKey names the keyring service or redis key of a resource.
func resourceKey(prefix, resource string) string {
	if prefix == "" {
		return resource
	}
	return prefix + ":" + resource
}
