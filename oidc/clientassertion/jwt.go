// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package clientassertion

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/hashicorp/go-uuid"
)

// JWTTypeParam is the client_assertion_type of a JWT client assertion.
// See: https://www.rfc-editor.org/rfc/rfc7523.html#section-2.2
const JWTTypeParam = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// DefaultLifetime is how long a serialized JWT is valid.
const DefaultLifetime = 5 * time.Minute

// JWT creates client assertions: JWTs signed with a client secret or
// private key, which a client uses to authenticate itself to the token
// endpoint.
type JWT struct {
	clientID string
	audience []string
	headers  map[string]string
	lifetime time.Duration

	alg jose.SignatureAlgorithm
	// key is either an *rsa.PrivateKey or an *ecdsa.PrivateKey
	key interface{}
	// secret is used instead of key for HMAC algorithms
	secret string

	// overwritten by tests
	genID func() (string, error)
	now   func() time.Time
}

// NewJWT creates a JWT for the client and audience (typically the
// provider's token URL).
//
// Supported options:
//
//	WithClientSecret
//	WithRSAKey
//	WithECDSAKey
//	WithKeyID
//	WithHeaders
//	WithLifetime
//
// Exactly one of WithClientSecret, WithRSAKey or WithECDSAKey is required.
func NewJWT(clientID string, audience []string, opt ...Option) (*JWT, error) {
	const op = "NewJWT"
	j := &JWT{
		clientID: clientID,
		audience: audience,
		headers:  make(map[string]string),
		lifetime: DefaultLifetime,
		genID:    uuid.GenerateUUID,
		now:      time.Now,
	}

	var errs []error
	var signers int
	for _, o := range opt {
		if o == nil {
			continue
		}
		prevKey, prevSecret := j.key, j.secret
		if err := o(j); err != nil {
			errs = append(errs, err)
			continue
		}
		if j.key != prevKey || j.secret != prevSecret {
			signers++
		}
	}
	if signers > 1 {
		errs = append(errs, ErrBothKeyAndSecret)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%s: %w", op, errors.Join(errs...))
	}
	if err := j.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// fail now if the signer can't be created, rather than at exchange time
	if _, err := j.Serialize(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return j, nil
}

// Serialize returns a newly signed client assertion.
func (j *JWT) Serialize() (string, error) {
	const op = "JWT.Serialize"
	if err := j.validate(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	signer, err := j.signer()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	id, err := j.genID()
	if err != nil {
		return "", fmt.Errorf("%s: failed to generate token id: %w", op, err)
	}
	token, err := jwt.Signed(signer).Claims(j.claims(id)).Serialize()
	if err != nil {
		return "", fmt.Errorf("%s: failed to serialize token: %w", op, err)
	}
	return token, nil
}

func (j *JWT) validate() error {
	const op = "JWT.validate"
	var errs []error
	if j.genID == nil {
		errs = append(errs, ErrMissingFuncIDGenerator)
	}
	if j.now == nil {
		errs = append(errs, ErrMissingFuncNow)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s: %w", op, errors.Join(errs...))
	}

	if j.clientID == "" {
		errs = append(errs, ErrMissingClientID)
	}
	if len(j.audience) == 0 {
		errs = append(errs, ErrMissingAudience)
	}
	if j.alg == "" {
		errs = append(errs, ErrMissingAlgorithm)
	}
	if j.key == nil && j.secret == "" {
		errs = append(errs, ErrMissingKeyOrSecret)
	}
	if j.key != nil && j.secret != "" {
		errs = append(errs, ErrBothKeyAndSecret)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s: %w", op, errors.Join(errs...))
	}
	return nil
}

func (j *JWT) signer() (jose.Signer, error) {
	const op = "JWT.signer"
	sKey := jose.SigningKey{Algorithm: j.alg, Key: j.key}
	if j.secret != "" {
		sKey.Key = []byte(j.secret)
	}
	sOpts := &jose.SignerOptions{
		ExtraHeaders: make(map[jose.HeaderKey]interface{}, len(j.headers)),
	}
	for k, v := range j.headers {
		sOpts.ExtraHeaders[jose.HeaderKey(k)] = v
	}
	signer, err := jose.NewSigner(sKey, sOpts.WithType("JWT"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrCreatingSigner, err)
	}
	return signer, nil
}

func (j *JWT) claims(id string) *jwt.Claims {
	now := j.now().UTC()
	return &jwt.Claims{
		Issuer:    j.clientID,
		Subject:   j.clientID,
		Audience:  j.audience,
		Expiry:    jwt.NewNumericDate(now.Add(j.lifetime)),
		NotBefore: jwt.NewNumericDate(now.Add(-1 * time.Second)),
		IssuedAt:  jwt.NewNumericDate(now),
		ID:        id,
	}
}
