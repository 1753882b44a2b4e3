// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package store

import (
	"context"
	"strings"
)

// PluginPrefix returns the key prefix reserved for a plugin's data.
func PluginPrefix(plugin string) string {
	return "fragloop:plugins:" + plugin + ":"
}

// Namespaced confines a KV to keys under a fixed prefix. Keys passed in and
// returned are relative to the prefix. Closing it leaves the parent open.
type Namespaced struct {
	parent KV
	prefix string
}

// Namespace returns a view of kv restricted to prefix.
func Namespace(kv KV, prefix string) *Namespaced {
	return &Namespaced{parent: kv, prefix: prefix}
}

// Prefix returns the namespace prefix.
func (n *Namespaced) Prefix() string { return n.prefix }

// Get implements KV. key is relative to the namespace.
func (n *Namespaced) Get(ctx context.Context, key string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}
	return n.parent.Get(ctx, n.prefix+key)
}

// Set implements KV.
func (n *Namespaced) Set(ctx context.Context, key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return n.parent.Set(ctx, n.prefix+key, value)
}

// Delete implements KV.
func (n *Namespaced) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return n.parent.Delete(ctx, n.prefix+key)
}

// Keys implements KV. Returned keys have the namespace prefix removed.
func (n *Namespaced) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := n.parent.Keys(ctx, n.prefix+prefix)
	if err != nil {
		return nil, err
	}
	for i, k := range keys {
		keys[i] = strings.TrimPrefix(k, n.prefix)
	}
	return keys, nil
}

// Close is a no-op; the underlying backend is owned by the host.
func (n *Namespaced) Close() error { return nil }
