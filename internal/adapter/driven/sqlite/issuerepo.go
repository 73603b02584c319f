package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/ghmirror/internal/domain/model"
	"github.com/ericfisherdev/ghmirror/internal/domain/remote"
)

// IssueRepo persists cached issues together with their label and assignee
// association rows. The comma-joined label_ids/assignee_ids fingerprints and
// the association rows are always rebuilt together in the caller's
// transaction so they can never disagree.
type IssueRepo struct {
	q      Querier
	users  *UserRepo
	labels *LabelRepo
}

// NewIssueRepo creates an IssueRepo bound to q.
func NewIssueRepo(q Querier, users *UserRepo, labels *LabelRepo) *IssueRepo {
	return &IssueRepo{q: q, users: users, labels: labels}
}

// CreateFrom maps a remote issue to a local entity, resolving author, labels,
// and assignees through their own get-or-create paths and recording only
// their surrogate IDs.
func (r *IssueRepo) CreateFrom(ctx context.Context, ri remote.Issue, repositoryID int64) (model.Issue, error) {
	author, err := r.users.GetOrCreateOrUpdate(ctx, ri.Author)
	if err != nil {
		return model.Issue{}, fmt.Errorf("resolve author for issue #%d: %w", ri.Number, err)
	}

	labelIDs := make([]int64, 0, len(ri.Labels))
	for _, rl := range ri.Labels {
		l, err := r.labels.GetOrCreateOrUpdate(ctx, rl)
		if err != nil {
			return model.Issue{}, fmt.Errorf("resolve label for issue #%d: %w", ri.Number, err)
		}
		labelIDs = append(labelIDs, l.ID)
	}

	assigneeIDs := make([]int64, 0, len(ri.Assignees))
	for _, ra := range ri.Assignees {
		u, err := r.users.GetOrCreateOrUpdate(ctx, ra)
		if err != nil {
			return model.Issue{}, fmt.Errorf("resolve assignee for issue #%d: %w", ri.Number, err)
		}
		assigneeIDs = append(assigneeIDs, u.ID)
	}

	return model.Issue{
		InternalID:   ri.InternalID,
		Number:       ri.Number,
		RepositoryID: repositoryID,
		AuthorID:     author.ID,
		Title:        ri.Title,
		Body:         ri.Body,
		State:        ri.State,
		HTMLURL:      ri.HTMLURL,
		LabelIDs:     joinIDs(labelIDs),
		AssigneeIDs:  joinIDs(assigneeIDs),
		CreatedAt:    ri.CreatedAt,
		UpdatedAt:    ri.UpdatedAt,
		ClosedAt:     ri.ClosedAt,
	}, nil
}

const issueColumns = `id, internal_id, number, repository_id, author_id, title, body, state,
	html_url, label_ids, assignee_ids, created_at, updated_at, closed_at, time_updated`

// GetByInternalID looks up an issue by its GitHub identifier. Returns
// nil, nil when absent.
func (r *IssueRepo) GetByInternalID(ctx context.Context, internalID int64) (*model.Issue, error) {
	const query = `SELECT ` + issueColumns + ` FROM issues WHERE internal_id = ?`

	issue, err := scanIssue(r.q.QueryRowContext(ctx, query, internalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get issue %d: %w", internalID, err)
	}

	return issue, nil
}

// GetOrCreateOrUpdate inserts the issue if unknown, updates it when the
// remote UpdatedAt is newer than the stored one or either fingerprint string
// changed, and otherwise returns the stored row with zero writes. On insert
// and update the association rows are rebuilt from the fingerprints.
func (r *IssueRepo) GetOrCreateOrUpdate(ctx context.Context, ri remote.Issue, repositoryID int64) (*model.Issue, error) {
	existing, err := r.GetByInternalID(ctx, ri.InternalID)
	if err != nil {
		return nil, err
	}

	issue, err := r.CreateFrom(ctx, ri, repositoryID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	if existing != nil {
		unchanged := !ri.UpdatedAt.After(existing.UpdatedAt) &&
			existing.LabelIDs == issue.LabelIDs &&
			existing.AssigneeIDs == issue.AssigneeIDs
		if unchanged {
			return existing, nil
		}

		const query = `
			UPDATE issues
			SET number = ?, repository_id = ?, author_id = ?, title = ?, body = ?, state = ?,
			    html_url = ?, label_ids = ?, assignee_ids = ?,
			    created_at = ?, updated_at = ?, closed_at = ?, time_updated = ?
			WHERE id = ?
		`
		if _, err := r.q.ExecContext(ctx, query,
			issue.Number, issue.RepositoryID, issue.AuthorID, issue.Title, issue.Body, issue.State,
			issue.HTMLURL, issue.LabelIDs, issue.AssigneeIDs,
			timeArg(issue.CreatedAt), timeArg(issue.UpdatedAt), timeArg(issue.ClosedAt), formatTime(now),
			existing.ID,
		); err != nil {
			return nil, fmt.Errorf("update issue #%d: %w", ri.Number, err)
		}

		if err := r.rebuildAssociations(ctx, existing.ID, issue.LabelIDs, issue.AssigneeIDs); err != nil {
			return nil, err
		}

		return r.GetByInternalID(ctx, ri.InternalID)
	}

	const query = `
		INSERT INTO issues (internal_id, number, repository_id, author_id, title, body, state,
			html_url, label_ids, assignee_ids, created_at, updated_at, closed_at, time_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := r.q.ExecContext(ctx, query,
		issue.InternalID, issue.Number, issue.RepositoryID, issue.AuthorID, issue.Title, issue.Body, issue.State,
		issue.HTMLURL, issue.LabelIDs, issue.AssigneeIDs,
		timeArg(issue.CreatedAt), timeArg(issue.UpdatedAt), timeArg(issue.ClosedAt), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert issue #%d: %w", ri.Number, err)
	}

	issue.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("issue insert id: %w", err)
	}
	issue.TimeUpdated = now

	if err := r.rebuildAssociations(ctx, issue.ID, issue.LabelIDs, issue.AssigneeIDs); err != nil {
		return nil, err
	}

	return &issue, nil
}

// rebuildAssociations deletes and recreates the issue_labels and
// issue_assigns rows from the fingerprint strings.
func (r *IssueRepo) rebuildAssociations(ctx context.Context, issueID int64, labelIDs, assigneeIDs string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM issue_labels WHERE issue_id = ?`, issueID); err != nil {
		return fmt.Errorf("clear issue labels for %d: %w", issueID, err)
	}
	if _, err := r.q.ExecContext(ctx, `DELETE FROM issue_assigns WHERE issue_id = ?`, issueID); err != nil {
		return fmt.Errorf("clear issue assignees for %d: %w", issueID, err)
	}

	lids, err := splitIDs(labelIDs)
	if err != nil {
		return err
	}
	for _, lid := range lids {
		if err := r.addLabel(ctx, issueID, lid); err != nil {
			return err
		}
	}

	aids, err := splitIDs(assigneeIDs)
	if err != nil {
		return err
	}
	for _, aid := range aids {
		if err := r.addAssignee(ctx, issueID, aid); err != nil {
			return err
		}
	}

	return nil
}

// addLabel records the association if the exact pair is not already present,
// tolerating safe double-application from an overlapping pass.
func (r *IssueRepo) addLabel(ctx context.Context, issueID, labelID int64) error {
	var id int64
	err := r.q.QueryRowContext(ctx,
		`SELECT id FROM issue_labels WHERE issue_id = ? AND label_id = ?`, issueID, labelID).Scan(&id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check issue label pair: %w", err)
	}

	if _, err := r.q.ExecContext(ctx,
		`INSERT INTO issue_labels (issue_id, label_id) VALUES (?, ?)`, issueID, labelID); err != nil {
		return fmt.Errorf("insert issue label pair: %w", err)
	}

	return nil
}

func (r *IssueRepo) addAssignee(ctx context.Context, issueID, userID int64) error {
	var id int64
	err := r.q.QueryRowContext(ctx,
		`SELECT id FROM issue_assigns WHERE issue_id = ? AND user_id = ?`, issueID, userID).Scan(&id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check issue assignee pair: %w", err)
	}

	if _, err := r.q.ExecContext(ctx,
		`INSERT INTO issue_assigns (issue_id, user_id) VALUES (?, ?)`, issueID, userID); err != nil {
		return fmt.Errorf("insert issue assignee pair: %w", err)
	}

	return nil
}

// ListForRepository returns all cached issues for a repository, newest first.
func (r *IssueRepo) ListForRepository(ctx context.Context, repositoryID int64) ([]model.Issue, error) {
	const query = `SELECT ` + issueColumns + ` FROM issues WHERE repository_id = ? ORDER BY updated_at DESC`
	return r.queryIssues(ctx, query, repositoryID)
}

// GetLabels returns the labels recorded in an issue's fingerprint, in
// fingerprint order.
func (r *IssueRepo) GetLabels(ctx context.Context, issue model.Issue) ([]model.Label, error) {
	ids, err := splitIDs(issue.LabelIDs)
	if err != nil {
		return nil, err
	}
	return r.labels.GetByIDs(ctx, ids)
}

// DeleteStale removes issues for a repository that are no longer present in
// the remote result set, along with their association rows.
func (r *IssueRepo) DeleteStale(ctx context.Context, repositoryID int64, keepInternalIDs []int64) error {
	args := make([]any, 0, len(keepInternalIDs)+1)
	args = append(args, repositoryID)

	query := `SELECT id FROM issues WHERE repository_id = ?`
	if len(keepInternalIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keepInternalIDs)), ",")
		query += ` AND internal_id NOT IN (` + placeholders + `)`
		for _, id := range keepInternalIDs {
			args = append(args, id)
		}
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("find stale issues: %w", err)
	}
	defer rows.Close()

	var staleIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan stale issue id: %w", err)
		}
		staleIDs = append(staleIDs, id)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate stale issues: %w", err)
	}

	for _, id := range staleIDs {
		if _, err := r.q.ExecContext(ctx, `DELETE FROM issue_labels WHERE issue_id = ?`, id); err != nil {
			return fmt.Errorf("delete stale issue labels: %w", err)
		}
		if _, err := r.q.ExecContext(ctx, `DELETE FROM issue_assigns WHERE issue_id = ?`, id); err != nil {
			return fmt.Errorf("delete stale issue assignees: %w", err)
		}
		if _, err := r.q.ExecContext(ctx, `DELETE FROM search_issues WHERE issue_id = ?`, id); err != nil {
			return fmt.Errorf("delete stale search members: %w", err)
		}
		if _, err := r.q.ExecContext(ctx, `DELETE FROM issues WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete stale issue: %w", err)
		}
	}

	return nil
}

func (r *IssueRepo) queryIssues(ctx context.Context, query string, args ...any) ([]model.Issue, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query issues: %w", err)
	}
	defer rows.Close()

	var issues []model.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, *issue)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate issues: %w", err)
	}

	return issues, nil
}

func scanIssue(s scanner) (*model.Issue, error) {
	var issue model.Issue
	var createdAt, updatedAt, closedAt sql.NullString
	var timeUpdated string

	err := s.Scan(
		&issue.ID, &issue.InternalID, &issue.Number, &issue.RepositoryID, &issue.AuthorID,
		&issue.Title, &issue.Body, &issue.State, &issue.HTMLURL, &issue.LabelIDs, &issue.AssigneeIDs,
		&createdAt, &updatedAt, &closedAt, &timeUpdated,
	)
	if err != nil {
		return nil, err
	}

	if issue.CreatedAt, err = nullableTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if issue.UpdatedAt, err = nullableTime(updatedAt, "updated_at"); err != nil {
		return nil, err
	}
	if issue.ClosedAt, err = nullableTime(closedAt, "closed_at"); err != nil {
		return nil, err
	}
	if issue.TimeUpdated, err = parseTime(timeUpdated); err != nil {
		return nil, fmt.Errorf("parse time_updated: %w", err)
	}

	return &issue, nil
}
