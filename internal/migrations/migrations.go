package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed postgres/*.sql
var PostgresFiles embed.FS

//go:embed duckdb/schema.sql
var duckdbSchema string

// newPostgresMigrator binds the embedded events migrations to db.
func newPostgresMigrator(db *sql.DB) (*migrate.Migrate, error) {
	source, err := iofs.New(PostgresFiles, "postgres")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// RunMigrations brings the events schema of a PostgreSQL database up to date.
// With autoMigrate off it only reports the recorded version. A dirty version is
// forced clean first; every migration uses IF NOT EXISTS.
func RunMigrations(db *sql.DB, autoMigrate bool) error {
	m, err := newPostgresMigrator(db)
	if err != nil {
		return err
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		version, dirty = 0, false
	case err != nil:
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	if dirty {
		slog.Warn("[Migrations] Dirty schema version, forcing recovery", "version", version)
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to recover dirty migration state at version %d: %w", version, err)
		}
	}

	if !autoMigrate {
		slog.Info("[Migrations] Auto-migration disabled", "current_version", version)
		return nil
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("[Migrations] Events schema is up to date", "version", version)
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	latest, _, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to get updated migration version: %w", err)
	}
	slog.Info("[Migrations] Events schema migrated", "from_version", version, "to_version", latest)
	return nil
}

// ApplyDuckDB creates the events table in an embedded DuckDB database.
// DuckDB stores are local and disposable, so there is no version tracking.
func ApplyDuckDB(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, duckdbSchema); err != nil {
		return fmt.Errorf("failed to apply duckdb schema: %w", err)
	}
	slog.Debug("[Migrations] DuckDB schema applied")
	return nil
}
