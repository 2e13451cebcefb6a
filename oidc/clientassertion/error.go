// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package clientassertion

import "errors"

var (
	ErrMissingClientID    = errors.New("missing client ID")
	ErrMissingAudience    = errors.New("missing audience")
	ErrMissingAlgorithm   = errors.New("missing signing algorithm")
	ErrMissingKeyOrSecret = errors.New("missing private key or client secret")
	ErrBothKeyAndSecret   = errors.New("both private key and client secret provided")
	ErrReservedHeader     = errors.New("reserved header")
	ErrInvalidLifetime    = errors.New("invalid lifetime")

	// only returned when a JWT wasn't created with NewJWT
	ErrMissingFuncIDGenerator = errors.New("missing id generator func; please use NewJWT()")
	ErrMissingFuncNow         = errors.New("missing now func; please use NewJWT()")

	ErrCreatingSigner       = errors.New("error creating jwt signer")
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
	ErrInvalidSecretLength  = errors.New("invalid secret length for algorithm")
	ErrNilPrivateKey        = errors.New("nil private key")
	ErrInvalidCurve         = errors.New("key curve doesn't match algorithm")
)
