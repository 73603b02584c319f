package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/ghmirror/internal/domain/model"
)

// MetaDataRepo persists store-level bookkeeping as key/value rows.
type MetaDataRepo struct {
	q Querier
}

// NewMetaDataRepo creates a MetaDataRepo bound to q.
func NewMetaDataRepo(q Querier) *MetaDataRepo {
	return &MetaDataRepo{q: q}
}

// Get returns the value for a key. Returns nil, nil when absent.
func (r *MetaDataRepo) Get(ctx context.Context, key string) (*model.MetaData, error) {
	const query = `SELECT id, key, value FROM metadata WHERE key = ?`

	var md model.MetaData
	err := r.q.QueryRowContext(ctx, query, key).Scan(&md.ID, &md.Key, &md.Value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get metadata %q: %w", key, err)
	}

	return &md, nil
}

// Set writes the value for a key, inserting or overwriting as needed.
func (r *MetaDataRepo) Set(ctx context.Context, key, value string) error {
	const query = `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`

	if _, err := r.q.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("set metadata %q: %w", key, err)
	}

	return nil
}

// StampLastUpdated records t as the time of the last successful sync pass.
func (r *MetaDataRepo) StampLastUpdated(ctx context.Context, t time.Time) error {
	return r.Set(ctx, model.MetaDataKeyLastUpdated, t.UTC().Format(time.RFC3339Nano))
}

// LastUpdated returns the time of the last successful sync pass, or the zero
// time when no pass has completed yet.
func (r *MetaDataRepo) LastUpdated(ctx context.Context) (time.Time, error) {
	md, err := r.Get(ctx, model.MetaDataKeyLastUpdated)
	if err != nil {
		return time.Time{}, err
	}
	if md == nil {
		return time.Time{}, nil
	}

	t, err := parseTime(md.Value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", model.MetaDataKeyLastUpdated, err)
	}

	return t, nil
}
