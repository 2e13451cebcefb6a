// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package vault

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-oidcclient/oidc"
)

// Memory is an oidc.Vault which keeps values in memory.  It's safe for
// concurrent use.
type Memory struct {
	mu        sync.RWMutex
	resources map[string]map[string]string
}

var _ oidc.Vault = (*Memory)(nil)

// NewMemory creates an empty in-memory vault.
func NewMemory() *Memory {
	return &Memory{resources: map[string]map[string]string{}}
}

// Put implements oidc.Vault.
func (m *Memory) Put(_ context.Context, resource, key, value string) error {
	const op = "Memory.Put"
	if err := validateKey(resource, key); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resources[resource] == nil {
		m.resources[resource] = map[string]string{}
	}
	m.resources[resource][key] = value
	return nil
}

// Get implements oidc.Vault.
func (m *Memory) Get(_ context.Context, resource, key string) (string, error) {
	const op = "Memory.Get"
	if err := validateKey(resource, key); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.resources[resource][key]
	if !ok {
		return "", fmt.Errorf("%s: %s/%s: %w", op, resource, key, oidc.ErrNotFound)
	}
	return v, nil
}

// DeleteAll implements oidc.Vault.
func (m *Memory) DeleteAll(_ context.Context, resource string) error {
	const op = "Memory.DeleteAll"
	if resource == "" {
		return fmt.Errorf("%s: resource name is empty: %w", op, oidc.ErrInvalidParameter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.resources, resource)
	return nil
}
