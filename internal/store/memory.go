// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package store

import (
	"context"
	"slices"
	"strings"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// Memory is a process-local backend. Its contents are lost on exit.
type Memory struct {
	data cmap.ConcurrentMap[string, string]
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{data: cmap.New[string]()}
}

// Get implements KV.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}
	v, ok := m.data.Get(key)
	return v, ok, nil
}

// Set implements KV.
func (m *Memory) Set(_ context.Context, key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	m.data.Set(key, value)
	return nil
}

// Delete implements KV.
func (m *Memory) Delete(_ context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	m.data.Remove(key)
	return nil
}

// Keys implements KV.
func (m *Memory) Keys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	for _, k := range m.data.Keys() {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// Close implements KV. It does nothing.
func (m *Memory) Close() error { return nil }
