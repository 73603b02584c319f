package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/ghmirror/internal/domain/model"
)

// SearchRepo persists saved issue searches and their result-set membership.
type SearchRepo struct {
	q Querier
}

// NewSearchRepo creates a SearchRepo bound to q.
func NewSearchRepo(q Querier) *SearchRepo {
	return &SearchRepo{q: q}
}

// Get looks up a search by repository and query, case-insensitively.
// Returns nil, nil when absent.
func (r *SearchRepo) Get(ctx context.Context, repositoryID int64, query string) (*model.Search, error) {
	const q = `SELECT id, repository_id, query, time_updated FROM searches WHERE repository_id = ? AND query = ?`

	search, err := scanSearch(r.q.QueryRowContext(ctx, q, repositoryID, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get search %q: %w", query, err)
	}

	return search, nil
}

// GetOrCreate returns the search row for (repositoryID, query), creating it
// on first use. The row's TimeUpdated is touched either way, marking the
// start of a refresh; membership rows older than it are stale.
func (r *SearchRepo) GetOrCreate(ctx context.Context, repositoryID int64, query string) (*model.Search, error) {
	existing, err := r.Get(ctx, repositoryID, query)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	if existing != nil {
		if _, err := r.q.ExecContext(ctx,
			`UPDATE searches SET time_updated = ? WHERE id = ?`, formatTime(now), existing.ID,
		); err != nil {
			return nil, fmt.Errorf("touch search %q: %w", query, err)
		}
		existing.TimeUpdated = now
		return existing, nil
	}

	res, err := r.q.ExecContext(ctx,
		`INSERT INTO searches (repository_id, query, time_updated) VALUES (?, ?, ?)`,
		repositoryID, query, formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert search %q: %w", query, err)
	}

	search := model.Search{RepositoryID: repositoryID, Query: query, TimeUpdated: now}
	search.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("search insert id: %w", err)
	}

	return &search, nil
}

// UpsertMember records an issue as a current member of the search's result
// set, refreshing its timestamp if the pair already exists.
func (r *SearchRepo) UpsertMember(ctx context.Context, searchID, issueID int64) error {
	now := time.Now().UTC()

	res, err := r.q.ExecContext(ctx,
		`UPDATE search_issues SET time_updated = ? WHERE search_id = ? AND issue_id = ?`,
		formatTime(now), searchID, issueID,
	)
	if err != nil {
		return fmt.Errorf("touch search member: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch search member: %w", err)
	}
	if affected > 0 {
		return nil
	}

	if _, err := r.q.ExecContext(ctx,
		`INSERT INTO search_issues (search_id, issue_id, time_updated) VALUES (?, ?, ?)`,
		searchID, issueID, formatTime(now),
	); err != nil {
		return fmt.Errorf("insert search member: %w", err)
	}

	return nil
}

// PruneStaleMembers removes membership rows not refreshed since the search's
// own timestamp, i.e. issues that dropped out of the result set.
func (r *SearchRepo) PruneStaleMembers(ctx context.Context, searchID int64) error {
	const query = `
		DELETE FROM search_issues
		WHERE search_id = ?
		  AND time_updated < (SELECT time_updated FROM searches WHERE id = ?)
	`

	if _, err := r.q.ExecContext(ctx, query, searchID, searchID); err != nil {
		return fmt.Errorf("prune stale search members: %w", err)
	}

	return nil
}

// ListIssuesForSearch returns the issues currently in the search's result
// set, most recently updated first.
func (r *SearchRepo) ListIssuesForSearch(ctx context.Context, searchID int64) ([]model.Issue, error) {
	const query = `
		SELECT i.id, i.internal_id, i.number, i.repository_id, i.author_id, i.title, i.body,
		       i.state, i.html_url, i.label_ids, i.assignee_ids,
		       i.created_at, i.updated_at, i.closed_at, i.time_updated
		FROM issues i
		JOIN search_issues si ON si.issue_id = i.id
		WHERE si.search_id = ?
		ORDER BY i.updated_at DESC
	`

	rows, err := r.q.QueryContext(ctx, query, searchID)
	if err != nil {
		return nil, fmt.Errorf("list issues for search %d: %w", searchID, err)
	}
	defer rows.Close()

	var issues []model.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan search issue: %w", err)
		}
		issues = append(issues, *issue)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search issues: %w", err)
	}

	return issues, nil
}

// DeleteSearchesUpdatedBefore removes searches that have not been refreshed
// since the cutoff, along with their membership rows.
func (r *SearchRepo) DeleteSearchesUpdatedBefore(ctx context.Context, cutoff time.Time) error {
	if _, err := r.q.ExecContext(ctx, `
		DELETE FROM search_issues
		WHERE search_id IN (SELECT id FROM searches WHERE time_updated < ?)
	`, formatTime(cutoff)); err != nil {
		return fmt.Errorf("delete members of expired searches: %w", err)
	}

	if _, err := r.q.ExecContext(ctx,
		`DELETE FROM searches WHERE time_updated < ?`, formatTime(cutoff),
	); err != nil {
		return fmt.Errorf("delete expired searches: %w", err)
	}

	return nil
}

func scanSearch(s scanner) (*model.Search, error) {
	var search model.Search
	var timeUpdated string

	err := s.Scan(&search.ID, &search.RepositoryID, &search.Query, &timeUpdated)
	if err != nil {
		return nil, err
	}

	if search.TimeUpdated, err = parseTime(timeUpdated); err != nil {
		return nil, fmt.Errorf("parse time_updated: %w", err)
	}

	return &search, nil
}
