// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-oidcclient/oidc"
	"github.com/redis/go-redis/v9"
)

// Redis is an oidc.Vault backed by redis.  Each resource is a hash; its keys
// are the hash's fields.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ oidc.Vault = (*Redis)(nil)

// NewRedis creates a vault which uses the redis client.
//
// Supported options:
//
//	WithKeyPrefix
//	WithTTL
func NewRedis(client redis.UniversalClient, opt ...oidc.Option) (*Redis, error) {
	const op = "NewRedis"
	if client == nil {
		return nil, fmt.Errorf("%s: redis client is nil: %w", op, oidc.ErrNilParameter)
	}
	opts := getOpts(opt...)
	if opts.withTTL < 0 {
		return nil, fmt.Errorf("%s: ttl is negative: %w", op, oidc.ErrInvalidParameter)
	}
	return &Redis{
		client: client,
		prefix: opts.withKeyPrefix,
		ttl:    opts.withTTL,
	}, nil
}

// Put implements oidc.Vault.
func (r *Redis) Put(ctx context.Context, resource, key, value string) error {
	const op = "Redis.Put"
	if err := validateKey(resource, key); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rk := resourceKey(r.prefix, resource)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, rk, key, value)
		if r.ttl > 0 {
			pipe.Expire(ctx, rk, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Get implements oidc.Vault.
func (r *Redis) Get(ctx context.Context, resource, key string) (string, error) {
	const op = "Redis.Get"
	if err := validateKey(resource, key); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	v, err := r.client.HGet(ctx, resourceKey(r.prefix, resource), key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", fmt.Errorf("%s: %s/%s: %w", op, resource, key, oidc.ErrNotFound)
	case err != nil:
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

// DeleteAll implements oidc.Vault.
func (r *Redis) DeleteAll(ctx context.Context, resource string) error {
	const op = "Redis.DeleteAll"
	if resource == "" {
		return fmt.Errorf("%s: resource name is empty: %w", op, oidc.ErrInvalidParameter)
	}
	if err := r.client.Del(ctx, resourceKey(r.prefix, resource)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
