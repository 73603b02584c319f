package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// SchemaVersion is stamped into PRAGMA user_version after schema creation
// and compared at open time. Bump it whenever any DDL block in migrations/
// changes incompatibly; a mismatch triggers a full cache rebuild (see
// Create), so no forward-migration logic is ever needed beyond adding the
// new DDL.
const SchemaVersion = 1

//go:embed migrations/*.sql
var migrationsFS embed.FS

// applySchema runs the ordered DDL blocks embedded in the binary. Safe to
// call on every startup; already-applied blocks are skipped.
func applySchema(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create schema source: %w", err)
	}

	dbDriver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create schema db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("create schema applier: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply schema: %w", err)
	}

	return nil
}

// ensureSchema applies the DDL registry and stamps the current version.
func (s *Store) ensureSchema(ctx context.Context) error {
	if err := applySchema(s.Writer); err != nil {
		return err
	}

	if _, err := s.Writer.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
		return fmt.Errorf("stamp schema version: %w", err)
	}

	return nil
}
