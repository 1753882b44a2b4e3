// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package store

import (
	"embed"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	// Register pgx/v5 database driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/samber/oops"
)

// CodeMigration marks failures while migrating the plugin_kv schema. The
// "stage" context value says which step failed.
const CodeMigration = "KV_MIGRATION"

//go:embed migrations/*.sql
var migrationsFS embed.FS

var embeddedVersions = sync.OnceValues(func() ([]uint, error) {
	return schemaVersions(migrationsFS)
})

// migrationRunner is the part of *migrate.Migrate the Migrator drives.
type migrationRunner interface {
	Up() error
	Version() (version uint, dirty bool, err error)
	Close() (source error, database error)
}

// Migrator keeps the postgres plugin_kv schema current.
type Migrator struct {
	run migrationRunner
}

func migrationErr(stage string) oops.OopsErrorBuilder {
	return oops.Code(CodeMigration).In("store").With("stage", stage)
}

// NewMigrator creates a Migrator for a postgres URL.
func NewMigrator(databaseURL string) (*Migrator, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, migrationErr("source").Wrap(err)
	}

	run, err := migrate.NewWithSourceInstance("iofs", source, driverURL(databaseURL))
	if err != nil {
		_ = source.Close() //nolint:errcheck // init error takes precedence
		return nil, migrationErr("init").Wrap(err)
	}
	return &Migrator{run: run}, nil
}

// driverURL rewrites postgres:// and postgresql:// to the pgx5:// scheme
// the migrate driver registers.
func driverURL(url string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(url, scheme); ok {
			return "pgx5://" + rest
		}
	}
	return url
}

// Apply brings the schema up to date. A schema left dirty by an earlier
// failed migration is refused rather than migrated further.
func (m *Migrator) Apply(logger *slog.Logger) error {
	current, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if dirty {
		return migrationErr("dirty").
			With("version", current).
			Hint("repair the plugin_kv schema by hand, then force the version with the migrate CLI").
			Errorf("plugin_kv schema is dirty at version %d", current)
	}

	pending, err := m.Pending()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		logger.Debug("plugin_kv schema is current", "version", current)
		return nil
	}

	logger.Info("migrating plugin_kv schema", "from", current, "pending", pending)
	if err := m.Up(); err != nil {
		return err
	}
	logger.Info("plugin_kv schema migrated", "version", pending[len(pending)-1])
	return nil
}

// Up applies all pending migrations. Running it on a current schema is a no-op.
func (m *Migrator) Up() error {
	if err := m.run.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return migrationErr("up").Wrap(err)
	}
	return nil
}

// Version returns the applied schema version, 0 on an empty database.
func (m *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = m.run.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, migrationErr("version").Wrap(err)
	}
	return version, dirty, nil
}

// Pending returns the embedded versions newer than the applied one.
func (m *Migrator) Pending() ([]uint, error) {
	current, _, err := m.Version()
	if err != nil {
		return nil, err
	}
	all, err := embeddedVersions()
	if err != nil {
		return nil, err
	}
	idx, _ := slices.BinarySearch(all, current+1)
	return slices.Clone(all[idx:]), nil
}

// Close releases the source and the database connection.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.run.Close()
	switch {
	case srcErr != nil && dbErr != nil:
		return migrationErr("close").With("component", "both").Wrap(errors.Join(srcErr, dbErr))
	case srcErr != nil:
		return migrationErr("close").With("component", "source").Wrap(srcErr)
	case dbErr != nil:
		return migrationErr("close").With("component", "database").Wrap(dbErr)
	}
	return nil
}

// schemaVersions reads the versions of the NNNNNN_name.up.sql files in the
// migrations directory of fsys, ascending.
func schemaVersions(fsys embed.FS) ([]uint, error) {
	entries, err := fsys.ReadDir("migrations")
	if err != nil {
		return nil, migrationErr("list").Wrap(err)
	}

	var versions []uint
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		prefix, _, _ := strings.Cut(name, "_")
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			return nil, migrationErr("list").With("file", name).
				Hint("migration files are named NNNNNN_name.up.sql").
				Wrap(err)
		}
		versions = append(versions, uint(v))
	}
	slices.Sort(versions)
	return slices.Compact(versions), nil
}
