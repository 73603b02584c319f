package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/ghmirror/internal/domain/model"
)

// ErrNoSuchRow is returned when a targeted update names a row that does not
// exist.
var ErrNoSuchRow = errors.New("no such row")

// NotificationRepo persists derived notifications. Rows are written during
// sync passes; only the toast state is mutated afterwards.
type NotificationRepo struct {
	q Querier
}

// NewNotificationRepo creates a NotificationRepo bound to q.
func NewNotificationRepo(q Querier) *NotificationRepo {
	return &NotificationRepo{q: q}
}

const notificationColumns = `id, type_id, repository_id, title, description, identifier,
	result, html_url, details_url, toast_state, time_occurred, time_created`

// Exists reports whether a notification of the given type was already
// recorded for the identifier and result. The check is case-insensitive;
// callers use it to avoid re-notifying the same commit state.
func (r *NotificationRepo) Exists(ctx context.Context, typeID model.NotificationType, identifier, result string) (bool, error) {
	const query = `
		SELECT COUNT(*) FROM notifications
		WHERE type_id = ? AND identifier = ? AND result = ?
	`

	var count int
	if err := r.q.QueryRowContext(ctx, query, int64(typeID), identifier, result).Scan(&count); err != nil {
		return false, fmt.Errorf("check notification exists: %w", err)
	}

	return count > 0, nil
}

// Insert records a notification. Deduplication is the caller's concern via
// Exists; Insert itself never rejects duplicates.
func (r *NotificationRepo) Insert(ctx context.Context, n model.Notification) (*model.Notification, error) {
	now := time.Now().UTC()
	if n.TimeOccurred.IsZero() {
		n.TimeOccurred = now
	}
	n.TimeCreated = now

	const query = `
		INSERT INTO notifications (type_id, repository_id, title, description, identifier,
			result, html_url, details_url, toast_state, time_occurred, time_created)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := r.q.ExecContext(ctx, query,
		int64(n.TypeID), n.RepositoryID, n.Title, n.Description, n.Identifier,
		n.Result, n.HTMLURL, n.DetailsURL, int64(n.ToastState),
		formatTime(n.TimeOccurred), formatTime(n.TimeCreated),
	)
	if err != nil {
		return nil, fmt.Errorf("insert notification %q: %w", n.Title, err)
	}

	n.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("notification insert id: %w", err)
	}

	return &n, nil
}

// List returns notifications created at or after since, newest first. Unless
// includeToasted is set, notifications already shown are filtered out.
func (r *NotificationRepo) List(ctx context.Context, since time.Time, includeToasted bool) ([]model.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE time_created >= ?`
	if !includeToasted {
		query += ` AND toast_state = 0`
	}
	query += ` ORDER BY time_created DESC, id DESC`

	rows, err := r.q.QueryContext(ctx, query, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, *n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}

	return notifications, nil
}

// MarkToasted flips a notification to the shown state.
func (r *NotificationRepo) MarkToasted(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE notifications SET toast_state = ? WHERE id = ?`,
		int64(model.ToastStateShown), id,
	)
	if err != nil {
		return fmt.Errorf("mark notification %d toasted: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notification %d toasted: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("mark notification %d toasted: %w", id, ErrNoSuchRow)
	}

	return nil
}

// DeleteOlderThan removes notifications created before the cutoff.
func (r *NotificationRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) error {
	if _, err := r.q.ExecContext(ctx,
		`DELETE FROM notifications WHERE time_created < ?`, formatTime(cutoff),
	); err != nil {
		return fmt.Errorf("delete old notifications: %w", err)
	}

	return nil
}

func scanNotification(s scanner) (*model.Notification, error) {
	var n model.Notification
	var typeID, toastState int64
	var timeOccurred, timeCreated string

	err := s.Scan(
		&n.ID, &typeID, &n.RepositoryID, &n.Title, &n.Description, &n.Identifier,
		&n.Result, &n.HTMLURL, &n.DetailsURL, &toastState, &timeOccurred, &timeCreated,
	)
	if err != nil {
		return nil, err
	}

	n.TypeID = model.NotificationType(typeID)
	n.ToastState = model.ToastState(toastState)

	if n.TimeOccurred, err = parseTime(timeOccurred); err != nil {
		return nil, fmt.Errorf("parse time_occurred: %w", err)
	}
	if n.TimeCreated, err = parseTime(timeCreated); err != nil {
		return nil, fmt.Errorf("parse time_created: %w", err)
	}

	return &n, nil
}
