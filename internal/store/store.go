// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

// Package store provides the persistent key-value backends available to
// plugins. The backend is chosen at startup by the qlx_database cvar; each
// plugin gets a view of it confined to its own key namespace.
package store

import (
	"context"
	"log/slog"
	"strings"

	"github.com/samber/oops"
)

// Error codes returned by key-value backends.
const (
	CodeBackend        = "KV_BACKEND"
	CodeUnknownBackend = "KV_UNKNOWN_BACKEND"
	CodeInvalidKey     = "KV_INVALID_KEY"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendBolt     = "bolt"
	BackendPostgres = "postgres"
)

// KV is a string key-value store.
type KV interface {
	// Get returns the value stored under key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys returns the sorted keys starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend     string
	BoltPath    string
	PostgresURL string
}

// Open creates the backend named by opts.Backend.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (KV, error) {
	backend := strings.ToLower(strings.TrimSpace(opts.Backend))
	switch backend {
	case BackendMemory:
		return NewMemory(), nil
	case BackendBolt:
		return OpenBolt(opts.BoltPath)
	case BackendPostgres:
		return OpenPostgres(ctx, opts.PostgresURL, logger)
	default:
		return nil, oops.Code(CodeUnknownBackend).
			In("store").
			With("backend", opts.Backend).
			Hint("qlx_database must be one of memory, bolt, postgres").
			Errorf("unknown database backend %q", opts.Backend)
	}
}

func validateKey(key string) error {
	if key == "" {
		return oops.Code(CodeInvalidKey).In("store").Errorf("key cannot be empty")
	}
	return nil
}
