// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// pgxPool is the subset of *pgxpool.Pool the backend uses. pgxmock pools
// satisfy it in tests.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Postgres stores keys in the plugin_kv table.
type Postgres struct {
	pool pgxPool
}

// NewPostgres wraps an existing pool. The schema must already be migrated.
func NewPostgres(pool pgxPool) *Postgres {
	return &Postgres{pool: pool}
}

// OpenPostgres connects to url, waits for the server to answer and applies
// pending migrations.
func OpenPostgres(ctx context.Context, url string, logger *slog.Logger) (*Postgres, error) {
	errb := oops.Code(CodeBackend).In("store").With("backend", BackendPostgres)
	if url == "" {
		return nil, errb.Hint("set qlx_postgresURL").Errorf("postgres url cannot be empty")
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, errb.Wrapf(err, "create pool")
	}

	backoff := retry.WithMaxRetries(5, retry.NewExponential(200*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			logger.Warn("postgres not ready, retrying", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, errb.Wrapf(err, "connect")
	}

	m, err := NewMigrator(url)
	if err != nil {
		pool.Close()
		return nil, err
	}
	defer func() {
		if cerr := m.Close(); cerr != nil {
			logger.Warn("failed to close migrator", "error", cerr)
		}
	}()
	if err := m.Apply(logger); err != nil {
		pool.Close()
		return nil, err
	}

	return NewPostgres(pool), nil
}

// Get implements KV.
func (p *Postgres) Get(ctx context.Context, key string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}
	var value string
	err := p.pool.QueryRow(ctx, `SELECT value FROM plugin_kv WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapPgError(err, "get", key)
	}
	return value, true, nil
}

// Set implements KV. Existing keys are overwritten.
func (p *Postgres) Set(ctx context.Context, key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO plugin_kv (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	if err != nil {
		return wrapPgError(err, "set", key)
	}
	return nil
}

// Delete implements KV.
func (p *Postgres) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx, `DELETE FROM plugin_kv WHERE key = $1`, key); err != nil {
		return wrapPgError(err, "delete", key)
	}
	return nil
}

// Keys implements KV.
func (p *Postgres) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT key FROM plugin_kv WHERE starts_with(key, $1) ORDER BY key`, prefix)
	if err != nil {
		return nil, wrapPgError(err, "keys", prefix)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, wrapPgError(err, "scan key", prefix)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapPgError(err, "iterate keys", prefix)
	}
	return keys, nil
}

// Close closes the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func wrapPgError(err error, operation, key string) error {
	errb := oops.Code(CodeBackend).In("store").With("backend", BackendPostgres).
		With("operation", operation).With("key", key)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		errb = errb.With("sqlstate", pgErr.Code)
		if pgErr.Code == pgerrcode.UndefinedTable {
			errb = errb.Hint("plugin_kv table is missing; the schema has not been migrated")
		}
	}
	return errb.Wrap(err)
}
