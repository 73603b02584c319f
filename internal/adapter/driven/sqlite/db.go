// Package sqlite implements the local cache store and its per-entity
// repositories on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "modernc.org/sqlite"

	"github.com/ericfisherdev/ghmirror/internal/domain/port/driven"
)

// Store owns the cache database file. Writes go through a single connection
// so a sync pass is never interleaved with another writer; reads get a small
// pool for concurrent UI queries. WAL mode, busy timeout, and an in-memory
// temp store are set via DSN pragmas.
type Store struct {
	Writer *sql.DB
	Reader *sql.DB
	path   string
}

// Open opens the database file without touching the schema. Closing an
// already-closed Store is safe; sql.DB.Close is idempotent.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=temp_store(MEMORY)&_pragma=cache_size(-64000)",
		dbPath,
	)

	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open writer for %s: %w", dbPath, errors.Join(err, driven.ErrStoreInaccessible))
	}
	writer.SetMaxOpenConns(1)

	if err := writer.PingContext(ctx); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("ping writer for %s: %w", dbPath, errors.Join(err, driven.ErrStoreInaccessible))
	}

	reader, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open reader for %s: %w", dbPath, errors.Join(err, driven.ErrStoreInaccessible))
	}
	reader.SetMaxOpenConns(4)

	if err := reader.PingContext(ctx); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		return nil, fmt.Errorf("ping reader for %s: %w", dbPath, errors.Join(err, driven.ErrStoreInaccessible))
	}

	return &Store{Writer: writer, Reader: reader, path: dbPath}, nil
}

// Create opens the cache, rebuilding it from scratch when asked to or when
// the stored schema version does not match SchemaVersion. The cache is not a
// system of record, so an incompatible layout is resolved by deleting the
// file and recreating every table, never by migrating data forward.
func Create(ctx context.Context, dbPath string, deleteExisting bool) (*Store, error) {
	if deleteExisting {
		removeStoreFiles(dbPath)
	} else if _, err := os.Stat(dbPath); err == nil {
		version, err := readSchemaVersion(ctx, dbPath)
		if err != nil || version != SchemaVersion {
			slog.Warn("cache schema version mismatch, rebuilding",
				"path", dbPath,
				"found", version,
				"want", SchemaVersion,
				"error", err,
			)
			removeStoreFiles(dbPath)
		}
	}

	store, err := Open(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.ensureSchema(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	return store, nil
}

// BeginTx starts a write transaction. The caller must defer Rollback and
// commit explicitly: forgetting to commit leaves every change rolled back.
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.Writer.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", errors.Join(err, driven.ErrStoreInaccessible))
	}
	return tx, nil
}

// Close closes both connections. Returns the first error encountered.
func (s *Store) Close() error {
	var firstErr error

	if err := s.Reader.Close(); err != nil {
		firstErr = fmt.Errorf("close reader: %w", err)
	}

	if err := s.Writer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close writer: %w", err)
	}

	return firstErr
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// readSchemaVersion opens a throwaway connection and reads PRAGMA user_version.
func readSchemaVersion(ctx context.Context, dbPath string) (int, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath)
	if err != nil {
		return 0, fmt.Errorf("open for version check: %w", err)
	}
	defer db.Close()

	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}

	return version, nil
}

// removeStoreFiles deletes the database file and its WAL sidecars.
// Deletion failures (sharing violations, permissions) are logged and
// swallowed; a subsequent Open of the stale file surfaces the real error.
func removeStoreFiles(dbPath string) {
	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			slog.Error("failed to delete stale cache file", "path", p, "error", err)
		}
	}
}
