// Package sqlbase provides schema migrations shared by the SQL version stores.
package sqlbase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

// Migration is one forward-only schema change.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// MigrationManager applies migrations in version order and records each one
// in schema_migrations.
type MigrationManager struct {
	db         *sql.DB
	logger     *slog.Logger
	migrations []Migration
}

// NewMigrationManager sorts migrations by version. Versions must be unique and positive.
func NewMigrationManager(logger *slog.Logger, db *sql.DB, migrations []Migration) *MigrationManager {
	sorted := slices.Clone(migrations)
	slices.SortFunc(sorted, func(a, b Migration) int { return a.Version - b.Version })

	return &MigrationManager{
		db:         db,
		logger:     logger,
		migrations: sorted,
	}
}

// LatestVersion returns the highest known migration version, or 0.
func (m *MigrationManager) LatestVersion() int {
	if len(m.migrations) == 0 {
		return 0
	}

	return m.migrations[len(m.migrations)-1].Version
}

// RunMigrations brings the schema up to LatestVersion.
func (m *MigrationManager) RunMigrations(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL DEFAULT '',
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return err
	}

	pending := 0

	for _, migration := range m.migrations {
		if migration.Version <= current {
			continue
		}

		err := m.apply(ctx, migration)
		if err != nil {
			return err
		}

		pending++
	}

	m.logger.InfoContext(ctx, "Schema up to date", "from", current, "version", m.LatestVersion(), "applied", pending)

	return nil
}

// CurrentVersion returns the highest applied migration version.
func (m *MigrationManager) CurrentVersion(ctx context.Context) (int, error) {
	var version int

	err := m.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to query current schema version: %w", err)
	}

	return version, nil
}

func (m *MigrationManager) apply(ctx context.Context, migration Migration) (err error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %d: begin: %w", migration.Version, err)
	}

	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	_, err = tx.ExecContext(ctx, migration.SQL)
	if err != nil {
		return fmt.Errorf("migration %d (%s): %w", migration.Version, migration.Description, err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
		migration.Version, migration.Description)
	if err != nil {
		return fmt.Errorf("migration %d: record: %w", migration.Version, err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("migration %d: commit: %w", migration.Version, err)
	}

	m.logger.InfoContext(ctx, "Applied migration", "version", migration.Version, "description", migration.Description)

	return nil
}
