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

// PullRequestRepo persists cached pull requests and their label association
// rows, following the same fingerprint/rebuild contract as IssueRepo.
type PullRequestRepo struct {
	q      Querier
	users  *UserRepo
	labels *LabelRepo
}

// NewPullRequestRepo creates a PullRequestRepo bound to q.
func NewPullRequestRepo(q Querier, users *UserRepo, labels *LabelRepo) *PullRequestRepo {
	return &PullRequestRepo{q: q, users: users, labels: labels}
}

// CreateFrom maps a remote pull request to a local entity, resolving nested
// remote objects to surrogate IDs.
func (r *PullRequestRepo) CreateFrom(ctx context.Context, rp remote.PullRequest, repositoryID int64) (model.PullRequest, error) {
	author, err := r.users.GetOrCreateOrUpdate(ctx, rp.Author)
	if err != nil {
		return model.PullRequest{}, fmt.Errorf("resolve author for PR #%d: %w", rp.Number, err)
	}

	labelIDs := make([]int64, 0, len(rp.Labels))
	for _, rl := range rp.Labels {
		l, err := r.labels.GetOrCreateOrUpdate(ctx, rl)
		if err != nil {
			return model.PullRequest{}, fmt.Errorf("resolve label for PR #%d: %w", rp.Number, err)
		}
		labelIDs = append(labelIDs, l.ID)
	}

	assigneeIDs := make([]int64, 0, len(rp.Assignees))
	for _, ra := range rp.Assignees {
		u, err := r.users.GetOrCreateOrUpdate(ctx, ra)
		if err != nil {
			return model.PullRequest{}, fmt.Errorf("resolve assignee for PR #%d: %w", rp.Number, err)
		}
		assigneeIDs = append(assigneeIDs, u.ID)
	}

	state := rp.State
	if !rp.MergedAt.IsZero() {
		state = "merged"
	}

	return model.PullRequest{
		InternalID:   rp.InternalID,
		Number:       rp.Number,
		RepositoryID: repositoryID,
		AuthorID:     author.ID,
		Title:        rp.Title,
		Body:         rp.Body,
		State:        state,
		HTMLURL:      rp.HTMLURL,
		HeadSHA:      rp.HeadSHA,
		SourceBranch: rp.SourceBranch,
		TargetBranch: rp.TargetBranch,
		Draft:        rp.Draft,
		LabelIDs:     joinIDs(labelIDs),
		AssigneeIDs:  joinIDs(assigneeIDs),
		CreatedAt:    rp.CreatedAt,
		UpdatedAt:    rp.UpdatedAt,
		ClosedAt:     rp.ClosedAt,
		MergedAt:     rp.MergedAt,
	}, nil
}

const pullRequestColumns = `id, internal_id, number, repository_id, author_id, title, body, state,
	html_url, head_sha, source_branch, target_branch, draft, label_ids, assignee_ids,
	created_at, updated_at, closed_at, merged_at, time_updated`

// GetByInternalID looks up a pull request by its GitHub identifier. Returns
// nil, nil when absent.
func (r *PullRequestRepo) GetByInternalID(ctx context.Context, internalID int64) (*model.PullRequest, error) {
	const query = `SELECT ` + pullRequestColumns + ` FROM pull_requests WHERE internal_id = ?`

	pr, err := scanPullRequest(r.q.QueryRowContext(ctx, query, internalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pull request %d: %w", internalID, err)
	}

	return pr, nil
}

// GetOrCreateOrUpdate inserts the pull request if unknown, updates it when
// the remote UpdatedAt is newer, the head SHA moved, or a fingerprint string
// changed, and otherwise returns the stored row with zero writes.
func (r *PullRequestRepo) GetOrCreateOrUpdate(ctx context.Context, rp remote.PullRequest, repositoryID int64) (*model.PullRequest, error) {
	existing, err := r.GetByInternalID(ctx, rp.InternalID)
	if err != nil {
		return nil, err
	}

	pr, err := r.CreateFrom(ctx, rp, repositoryID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	if existing != nil {
		unchanged := !rp.UpdatedAt.After(existing.UpdatedAt) &&
			strings.EqualFold(existing.HeadSHA, pr.HeadSHA) &&
			existing.LabelIDs == pr.LabelIDs &&
			existing.AssigneeIDs == pr.AssigneeIDs
		if unchanged {
			return existing, nil
		}

		const query = `
			UPDATE pull_requests
			SET number = ?, repository_id = ?, author_id = ?, title = ?, body = ?, state = ?,
			    html_url = ?, head_sha = ?, source_branch = ?, target_branch = ?, draft = ?,
			    label_ids = ?, assignee_ids = ?,
			    created_at = ?, updated_at = ?, closed_at = ?, merged_at = ?, time_updated = ?
			WHERE id = ?
		`
		if _, err := r.q.ExecContext(ctx, query,
			pr.Number, pr.RepositoryID, pr.AuthorID, pr.Title, pr.Body, pr.State,
			pr.HTMLURL, pr.HeadSHA, pr.SourceBranch, pr.TargetBranch, boolArg(pr.Draft),
			pr.LabelIDs, pr.AssigneeIDs,
			timeArg(pr.CreatedAt), timeArg(pr.UpdatedAt), timeArg(pr.ClosedAt), timeArg(pr.MergedAt), formatTime(now),
			existing.ID,
		); err != nil {
			return nil, fmt.Errorf("update pull request #%d: %w", rp.Number, err)
		}

		if err := r.rebuildLabels(ctx, existing.ID, pr.LabelIDs); err != nil {
			return nil, err
		}

		return r.GetByInternalID(ctx, rp.InternalID)
	}

	const query = `
		INSERT INTO pull_requests (internal_id, number, repository_id, author_id, title, body, state,
			html_url, head_sha, source_branch, target_branch, draft, label_ids, assignee_ids,
			created_at, updated_at, closed_at, merged_at, time_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := r.q.ExecContext(ctx, query,
		pr.InternalID, pr.Number, pr.RepositoryID, pr.AuthorID, pr.Title, pr.Body, pr.State,
		pr.HTMLURL, pr.HeadSHA, pr.SourceBranch, pr.TargetBranch, boolArg(pr.Draft),
		pr.LabelIDs, pr.AssigneeIDs,
		timeArg(pr.CreatedAt), timeArg(pr.UpdatedAt), timeArg(pr.ClosedAt), timeArg(pr.MergedAt), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert pull request #%d: %w", rp.Number, err)
	}

	pr.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("pull request insert id: %w", err)
	}
	pr.TimeUpdated = now

	if err := r.rebuildLabels(ctx, pr.ID, pr.LabelIDs); err != nil {
		return nil, err
	}

	return &pr, nil
}

// rebuildLabels deletes and recreates the pull_request_labels rows from the
// fingerprint string.
func (r *PullRequestRepo) rebuildLabels(ctx context.Context, prID int64, labelIDs string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM pull_request_labels WHERE pull_request_id = ?`, prID); err != nil {
		return fmt.Errorf("clear PR labels for %d: %w", prID, err)
	}

	lids, err := splitIDs(labelIDs)
	if err != nil {
		return err
	}

	for _, lid := range lids {
		if _, err := r.q.ExecContext(ctx,
			`INSERT INTO pull_request_labels (pull_request_id, label_id) VALUES (?, ?)`, prID, lid); err != nil {
			return fmt.Errorf("insert PR label pair: %w", err)
		}
	}

	return nil
}

// ListForRepository returns all cached pull requests for a repository,
// newest first.
func (r *PullRequestRepo) ListForRepository(ctx context.Context, repositoryID int64) ([]model.PullRequest, error) {
	const query = `SELECT ` + pullRequestColumns + ` FROM pull_requests WHERE repository_id = ? ORDER BY updated_at DESC`
	return r.queryPullRequests(ctx, query, repositoryID)
}

// ListForAuthor returns all cached pull requests authored by the given local
// user, newest first.
func (r *PullRequestRepo) ListForAuthor(ctx context.Context, authorID int64) ([]model.PullRequest, error) {
	const query = `SELECT ` + pullRequestColumns + ` FROM pull_requests WHERE author_id = ? ORDER BY updated_at DESC`
	return r.queryPullRequests(ctx, query, authorID)
}

// DeleteStale removes pull requests for a repository no longer present in
// the remote result set, along with their label association rows.
func (r *PullRequestRepo) DeleteStale(ctx context.Context, repositoryID int64, keepInternalIDs []int64) error {
	args := make([]any, 0, len(keepInternalIDs)+1)
	args = append(args, repositoryID)

	query := `SELECT id FROM pull_requests WHERE repository_id = ?`
	if len(keepInternalIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keepInternalIDs)), ",")
		query += ` AND internal_id NOT IN (` + placeholders + `)`
		for _, id := range keepInternalIDs {
			args = append(args, id)
		}
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("find stale pull requests: %w", err)
	}
	defer rows.Close()

	var staleIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan stale PR id: %w", err)
		}
		staleIDs = append(staleIDs, id)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate stale pull requests: %w", err)
	}

	for _, id := range staleIDs {
		if _, err := r.q.ExecContext(ctx, `DELETE FROM pull_request_labels WHERE pull_request_id = ?`, id); err != nil {
			return fmt.Errorf("delete stale PR labels: %w", err)
		}
		if _, err := r.q.ExecContext(ctx, `DELETE FROM reviews WHERE pull_request_id = ?`, id); err != nil {
			return fmt.Errorf("delete stale PR reviews: %w", err)
		}
		if _, err := r.q.ExecContext(ctx, `DELETE FROM pull_requests WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete stale pull request: %w", err)
		}
	}

	return nil
}

func (r *PullRequestRepo) queryPullRequests(ctx context.Context, query string, args ...any) ([]model.PullRequest, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pull requests: %w", err)
	}
	defer rows.Close()

	var prs []model.PullRequest
	for rows.Next() {
		pr, err := scanPullRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pull request: %w", err)
		}
		prs = append(prs, *pr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pull requests: %w", err)
	}

	return prs, nil
}

func scanPullRequest(s scanner) (*model.PullRequest, error) {
	var pr model.PullRequest
	var draft int
	var createdAt, updatedAt, closedAt, mergedAt sql.NullString
	var timeUpdated string

	err := s.Scan(
		&pr.ID, &pr.InternalID, &pr.Number, &pr.RepositoryID, &pr.AuthorID,
		&pr.Title, &pr.Body, &pr.State, &pr.HTMLURL, &pr.HeadSHA,
		&pr.SourceBranch, &pr.TargetBranch, &draft, &pr.LabelIDs, &pr.AssigneeIDs,
		&createdAt, &updatedAt, &closedAt, &mergedAt, &timeUpdated,
	)
	if err != nil {
		return nil, err
	}

	pr.Draft = draft != 0

	if pr.CreatedAt, err = nullableTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if pr.UpdatedAt, err = nullableTime(updatedAt, "updated_at"); err != nil {
		return nil, err
	}
	if pr.ClosedAt, err = nullableTime(closedAt, "closed_at"); err != nil {
		return nil, err
	}
	if pr.MergedAt, err = nullableTime(mergedAt, "merged_at"); err != nil {
		return nil, err
	}
	if pr.TimeUpdated, err = parseTime(timeUpdated); err != nil {
		return nil, fmt.Errorf("parse time_updated: %w", err)
	}

	return &pr, nil
}
