// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package browser

import (
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-oidcclient/oidc"
)

// WithLogger provides an optional logger for: Loopback and Headless.
func WithLogger(l hclog.Logger) oidc.Option {
	return func(o interface{}) {
		if l == nil {
			return
		}
		switch v := o.(type) {
		case *loopbackOptions:
			v.withLogger = l
		case *headlessOptions:
			v.withLogger = l
		}
	}
}
