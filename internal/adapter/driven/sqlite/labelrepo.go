package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/ghmirror/internal/domain/model"
	"github.com/ericfisherdev/ghmirror/internal/domain/remote"
)

// LabelRepo persists cached labels.
type LabelRepo struct {
	q Querier
}

// NewLabelRepo creates a LabelRepo bound to q.
func NewLabelRepo(q Querier) *LabelRepo {
	return &LabelRepo{q: q}
}

// CreateFrom maps a remote label to a local entity. Pure mapping.
func (r *LabelRepo) CreateFrom(rl remote.Label) model.Label {
	return model.Label{
		InternalID:  rl.InternalID,
		Name:        rl.Name,
		Color:       rl.Color,
		Description: rl.Description,
	}
}

// GetByInternalID looks up a label by its GitHub identifier. Returns nil, nil
// when absent.
func (r *LabelRepo) GetByInternalID(ctx context.Context, internalID int64) (*model.Label, error) {
	const query = `SELECT id, internal_id, name, color, description FROM labels WHERE internal_id = ?`

	l, err := scanLabel(r.q.QueryRowContext(ctx, query, internalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get label %d: %w", internalID, err)
	}

	return l, nil
}

// GetOrCreateOrUpdate inserts the label if unknown, updates it only when
// name, color, or description changed, and otherwise returns the stored row
// with zero writes.
func (r *LabelRepo) GetOrCreateOrUpdate(ctx context.Context, rl remote.Label) (*model.Label, error) {
	existing, err := r.GetByInternalID(ctx, rl.InternalID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if existing.Name == rl.Name && existing.Color == rl.Color && existing.Description == rl.Description {
			return existing, nil
		}

		const query = `UPDATE labels SET name = ?, color = ?, description = ? WHERE id = ?`
		if _, err := r.q.ExecContext(ctx, query, rl.Name, rl.Color, rl.Description, existing.ID); err != nil {
			return nil, fmt.Errorf("update label %q: %w", rl.Name, err)
		}

		return r.GetByInternalID(ctx, rl.InternalID)
	}

	l := r.CreateFrom(rl)

	const query = `INSERT INTO labels (internal_id, name, color, description) VALUES (?, ?, ?, ?)`
	res, err := r.q.ExecContext(ctx, query, l.InternalID, l.Name, l.Color, l.Description)
	if err != nil {
		return nil, fmt.Errorf("insert label %q: %w", rl.Name, err)
	}

	l.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("label insert id: %w", err)
	}

	return &l, nil
}

// GetByIDs returns the labels for the given surrogate keys, preserving input
// order. Missing IDs are skipped.
func (r *LabelRepo) GetByIDs(ctx context.Context, ids []int64) ([]model.Label, error) {
	labels := make([]model.Label, 0, len(ids))

	const query = `SELECT id, internal_id, name, color, description FROM labels WHERE id = ?`
	for _, id := range ids {
		l, err := scanLabel(r.q.QueryRowContext(ctx, query, id))
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get label id %d: %w", id, err)
		}
		labels = append(labels, *l)
	}

	return labels, nil
}

func scanLabel(s scanner) (*model.Label, error) {
	var l model.Label

	err := s.Scan(&l.ID, &l.InternalID, &l.Name, &l.Color, &l.Description)
	if err != nil {
		return nil, err
	}

	return &l, nil
}
