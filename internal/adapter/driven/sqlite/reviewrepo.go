package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ericfisherdev/ghmirror/internal/domain/model"
	"github.com/ericfisherdev/ghmirror/internal/domain/remote"
)

// ReviewRepo persists pull request reviews. Review authors are resolved to
// local User rows through the user repository.
type ReviewRepo struct {
	q     Querier
	users *UserRepo
}

// NewReviewRepo creates a ReviewRepo bound to q.
func NewReviewRepo(q Querier, users *UserRepo) *ReviewRepo {
	return &ReviewRepo{q: q, users: users}
}

// ReplaceForPullRequest fully replaces the stored reviews for a pull
// request. The remote list is small and reviews can be dismissed or
// re-requested, so a delete-and-reinsert keeps the cache exact.
func (r *ReviewRepo) ReplaceForPullRequest(ctx context.Context, pullRequestID int64, reviews []remote.Review) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM reviews WHERE pull_request_id = ?`, pullRequestID); err != nil {
		return fmt.Errorf("delete reviews for pr %d: %w", pullRequestID, err)
	}

	const query = `
		INSERT INTO reviews (internal_id, pull_request_id, author_id, state, body,
			html_url, submitted_at, time_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	for _, rv := range reviews {
		author, err := r.users.GetOrCreateOrUpdate(ctx, rv.Author)
		if err != nil {
			return fmt.Errorf("resolve review author %q: %w", rv.Author.Login, err)
		}

		if _, err := r.q.ExecContext(ctx, query,
			rv.InternalID, pullRequestID, author.ID, rv.State, rv.Body,
			rv.HTMLURL, timeArg(rv.SubmittedAt), formatTime(now),
		); err != nil {
			return fmt.Errorf("insert review %d for pr %d: %w", rv.InternalID, pullRequestID, err)
		}
	}

	return nil
}

// ListForPullRequest returns the reviews for a pull request, oldest first.
func (r *ReviewRepo) ListForPullRequest(ctx context.Context, pullRequestID int64) ([]model.Review, error) {
	const query = `
		SELECT id, internal_id, pull_request_id, author_id, state, body,
		       html_url, submitted_at, time_updated
		FROM reviews
		WHERE pull_request_id = ?
		ORDER BY submitted_at, id
	`

	rows, err := r.q.QueryContext(ctx, query, pullRequestID)
	if err != nil {
		return nil, fmt.Errorf("query reviews for pr %d: %w", pullRequestID, err)
	}
	defer rows.Close()

	var reviews []model.Review
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, *review)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}

	return reviews, nil
}

func scanReview(s scanner) (*model.Review, error) {
	var review model.Review
	var submittedAt sql.NullString
	var timeUpdated string

	err := s.Scan(
		&review.ID, &review.InternalID, &review.PullRequestID, &review.AuthorID,
		&review.State, &review.Body, &review.HTMLURL, &submittedAt, &timeUpdated,
	)
	if err != nil {
		return nil, err
	}

	if review.SubmittedAt, err = nullableTime(submittedAt, "submitted_at"); err != nil {
		return nil, err
	}
	if review.TimeUpdated, err = parseTime(timeUpdated); err != nil {
		return nil, fmt.Errorf("parse time_updated: %w", err)
	}

	return &review, nil
}
