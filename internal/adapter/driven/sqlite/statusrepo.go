package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/ghmirror/internal/domain/model"
	"github.com/ericfisherdev/ghmirror/internal/domain/remote"
)

// StatusRepo persists the legacy combined commit status (one row per head
// SHA) and the append-only per-PR status history that transition detection
// reads.
type StatusRepo struct {
	q Querier
}

// NewStatusRepo creates a StatusRepo bound to q.
func NewStatusRepo(q Querier) *StatusRepo {
	return &StatusRepo{q: q}
}

// GetCombinedStatus returns the stored combined status for a commit.
// Returns nil, nil when absent.
func (r *StatusRepo) GetCombinedStatus(ctx context.Context, headSHA string) (*model.CommitCombinedStatus, error) {
	const query = `SELECT id, head_sha, state_id, time_updated FROM commit_combined_status WHERE head_sha = ?`

	var status model.CommitCombinedStatus
	var stateID int64
	var timeUpdated string

	err := r.q.QueryRowContext(ctx, query, headSHA).Scan(&status.ID, &status.HeadSHA, &stateID, &timeUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get combined status for %s: %w", headSHA, err)
	}

	status.StateID = model.CommitState(stateID)
	if status.TimeUpdated, err = parseTime(timeUpdated); err != nil {
		return nil, fmt.Errorf("parse time_updated: %w", err)
	}

	return &status, nil
}

// UpsertCombinedStatus records the combined status reported for a commit,
// writing only when the state actually changed.
func (r *StatusRepo) UpsertCombinedStatus(ctx context.Context, rs remote.CombinedStatus) (*model.CommitCombinedStatus, error) {
	state, ok := model.ParseCommitState(rs.State)
	if !ok {
		slog.Warn("unrecognized combined status state", "state", rs.State, "sha", rs.HeadSHA)
	}

	existing, err := r.GetCombinedStatus(ctx, rs.HeadSHA)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	if existing != nil {
		if existing.StateID == state {
			return existing, nil
		}

		const query = `UPDATE commit_combined_status SET state_id = ?, time_updated = ? WHERE id = ?`
		if _, err := r.q.ExecContext(ctx, query, int64(state), formatTime(now), existing.ID); err != nil {
			return nil, fmt.Errorf("update combined status for %s: %w", rs.HeadSHA, err)
		}

		return r.GetCombinedStatus(ctx, rs.HeadSHA)
	}

	const query = `INSERT INTO commit_combined_status (head_sha, state_id, time_updated) VALUES (?, ?, ?)`
	res, err := r.q.ExecContext(ctx, query, rs.HeadSHA, int64(state), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("insert combined status for %s: %w", rs.HeadSHA, err)
	}

	status := model.CommitCombinedStatus{HeadSHA: rs.HeadSHA, StateID: state, TimeUpdated: now}
	status.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("combined status insert id: %w", err)
	}

	return &status, nil
}

// InsertPullRequestStatus appends a status snapshot for a pull request.
// History is never updated in place; each sync pass adds exactly one row per
// synced PR so the previous snapshot stays available for comparison.
func (r *StatusRepo) InsertPullRequestStatus(ctx context.Context, snapshot model.PullRequestStatus) (*model.PullRequestStatus, error) {
	const query = `
		INSERT INTO pull_request_status (pull_request_id, head_sha, status_id, conclusion_id,
			state_id, details_url, html_url, time_occurred)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	if snapshot.TimeOccurred.IsZero() {
		snapshot.TimeOccurred = time.Now().UTC()
	}

	res, err := r.q.ExecContext(ctx, query,
		snapshot.PullRequestID, snapshot.HeadSHA,
		int64(snapshot.StatusID), int64(snapshot.ConclusionID), int64(snapshot.StateID),
		snapshot.DetailsURL, snapshot.HTMLURL, formatTime(snapshot.TimeOccurred),
	)
	if err != nil {
		return nil, fmt.Errorf("insert status snapshot for pr %d: %w", snapshot.PullRequestID, err)
	}

	snapshot.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("status snapshot insert id: %w", err)
	}

	return &snapshot, nil
}

// GetLatestForPullRequest returns the most recent status snapshot for a pull
// request. Returns nil, nil when the PR has no history yet.
func (r *StatusRepo) GetLatestForPullRequest(ctx context.Context, pullRequestID int64) (*model.PullRequestStatus, error) {
	const query = `
		SELECT id, pull_request_id, head_sha, status_id, conclusion_id, state_id,
		       details_url, html_url, time_occurred
		FROM pull_request_status
		WHERE pull_request_id = ?
		ORDER BY id DESC
		LIMIT 1
	`

	snapshot, err := scanPullRequestStatus(r.q.QueryRowContext(ctx, query, pullRequestID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest status for pr %d: %w", pullRequestID, err)
	}

	return snapshot, nil
}

// ListForPullRequest returns the status history for a pull request, newest
// first.
func (r *StatusRepo) ListForPullRequest(ctx context.Context, pullRequestID int64) ([]model.PullRequestStatus, error) {
	const query = `
		SELECT id, pull_request_id, head_sha, status_id, conclusion_id, state_id,
		       details_url, html_url, time_occurred
		FROM pull_request_status
		WHERE pull_request_id = ?
		ORDER BY id DESC
	`

	rows, err := r.q.QueryContext(ctx, query, pullRequestID)
	if err != nil {
		return nil, fmt.Errorf("query status history for pr %d: %w", pullRequestID, err)
	}
	defer rows.Close()

	var snapshots []model.PullRequestStatus
	for rows.Next() {
		snapshot, err := scanPullRequestStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("scan status snapshot: %w", err)
		}
		snapshots = append(snapshots, *snapshot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status history: %w", err)
	}

	return snapshots, nil
}

// DeleteHistoryOlderThan trims status snapshots recorded before the cutoff,
// always keeping the newest row per pull request so transition detection
// never loses its baseline.
func (r *StatusRepo) DeleteHistoryOlderThan(ctx context.Context, cutoff time.Time) error {
	const query = `
		DELETE FROM pull_request_status
		WHERE time_occurred < ?
		  AND id NOT IN (
			SELECT MAX(id) FROM pull_request_status GROUP BY pull_request_id
		  )
	`

	if _, err := r.q.ExecContext(ctx, query, formatTime(cutoff)); err != nil {
		return fmt.Errorf("trim status history: %w", err)
	}

	return nil
}

// DeleteUnreferenced prunes combined statuses and status history whose pull
// request rows are gone.
func (r *StatusRepo) DeleteUnreferenced(ctx context.Context) error {
	const historyQuery = `
		DELETE FROM pull_request_status
		WHERE pull_request_id NOT IN (SELECT id FROM pull_requests)
	`
	if _, err := r.q.ExecContext(ctx, historyQuery); err != nil {
		return fmt.Errorf("prune orphaned status history: %w", err)
	}

	const combinedQuery = `
		DELETE FROM commit_combined_status
		WHERE head_sha NOT IN (SELECT head_sha FROM pull_requests)
	`
	if _, err := r.q.ExecContext(ctx, combinedQuery); err != nil {
		return fmt.Errorf("prune orphaned combined statuses: %w", err)
	}

	return nil
}

func scanPullRequestStatus(s scanner) (*model.PullRequestStatus, error) {
	var snapshot model.PullRequestStatus
	var statusID, conclusionID, stateID int64
	var timeOccurred string

	err := s.Scan(
		&snapshot.ID, &snapshot.PullRequestID, &snapshot.HeadSHA,
		&statusID, &conclusionID, &stateID,
		&snapshot.DetailsURL, &snapshot.HTMLURL, &timeOccurred,
	)
	if err != nil {
		return nil, err
	}

	snapshot.StatusID = model.CheckStatus(statusID)
	snapshot.ConclusionID = model.CheckConclusion(conclusionID)
	snapshot.StateID = model.CommitState(stateID)

	if snapshot.TimeOccurred, err = parseTime(timeOccurred); err != nil {
		return nil, fmt.Errorf("parse time_occurred: %w", err)
	}

	return &snapshot, nil
}
