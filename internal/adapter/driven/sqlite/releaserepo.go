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

// ReleaseRepo persists cached repository releases.
type ReleaseRepo struct {
	q Querier
}

// NewReleaseRepo creates a ReleaseRepo bound to q.
func NewReleaseRepo(q Querier) *ReleaseRepo {
	return &ReleaseRepo{q: q}
}

// CreateFrom maps a remote release to a local entity. Pure mapping.
func (r *ReleaseRepo) CreateFrom(rr remote.Release, repositoryID int64) model.Release {
	return model.Release{
		InternalID:   rr.InternalID,
		RepositoryID: repositoryID,
		Name:         rr.Name,
		TagName:      rr.TagName,
		Prerelease:   rr.Prerelease,
		HTMLURL:      rr.HTMLURL,
		CreatedAt:    rr.CreatedAt,
		PublishedAt:  rr.PublishedAt,
	}
}

const releaseColumns = `id, internal_id, repository_id, name, tag_name, prerelease,
	html_url, created_at, published_at, time_updated`

// GetByInternalID looks up a release by its GitHub identifier. Returns
// nil, nil when absent.
func (r *ReleaseRepo) GetByInternalID(ctx context.Context, internalID int64) (*model.Release, error) {
	const query = `SELECT ` + releaseColumns + ` FROM releases WHERE internal_id = ?`

	release, err := scanRelease(r.q.QueryRowContext(ctx, query, internalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get release %d: %w", internalID, err)
	}

	return release, nil
}

// GetOrCreateOrUpdate inserts the release if unknown, updates it when the
// name, tag, prerelease flag, or publish time changed, and otherwise returns
// the stored row with zero writes.
func (r *ReleaseRepo) GetOrCreateOrUpdate(ctx context.Context, rr remote.Release, repositoryID int64) (*model.Release, error) {
	existing, err := r.GetByInternalID(ctx, rr.InternalID)
	if err != nil {
		return nil, err
	}

	release := r.CreateFrom(rr, repositoryID)
	now := time.Now().UTC()

	if existing != nil {
		unchanged := existing.Name == release.Name &&
			existing.TagName == release.TagName &&
			existing.Prerelease == release.Prerelease &&
			existing.PublishedAt.Equal(release.PublishedAt)
		if unchanged {
			return existing, nil
		}

		const query = `
			UPDATE releases
			SET repository_id = ?, name = ?, tag_name = ?, prerelease = ?,
			    html_url = ?, created_at = ?, published_at = ?, time_updated = ?
			WHERE id = ?
		`
		if _, err := r.q.ExecContext(ctx, query,
			release.RepositoryID, release.Name, release.TagName, boolArg(release.Prerelease),
			release.HTMLURL, timeArg(release.CreatedAt), timeArg(release.PublishedAt), formatTime(now),
			existing.ID,
		); err != nil {
			return nil, fmt.Errorf("update release %q: %w", rr.TagName, err)
		}

		return r.GetByInternalID(ctx, rr.InternalID)
	}

	const query = `
		INSERT INTO releases (internal_id, repository_id, name, tag_name, prerelease,
			html_url, created_at, published_at, time_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := r.q.ExecContext(ctx, query,
		release.InternalID, release.RepositoryID, release.Name, release.TagName, boolArg(release.Prerelease),
		release.HTMLURL, timeArg(release.CreatedAt), timeArg(release.PublishedAt), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert release %q: %w", rr.TagName, err)
	}

	release.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("release insert id: %w", err)
	}
	release.TimeUpdated = now

	return &release, nil
}

// ListForRepository returns the cached releases for a repository, newest
// published first.
func (r *ReleaseRepo) ListForRepository(ctx context.Context, repositoryID int64) ([]model.Release, error) {
	const query = `
		SELECT ` + releaseColumns + `
		FROM releases
		WHERE repository_id = ?
		ORDER BY published_at DESC, id DESC
	`

	rows, err := r.q.QueryContext(ctx, query, repositoryID)
	if err != nil {
		return nil, fmt.Errorf("list releases for repository %d: %w", repositoryID, err)
	}
	defer rows.Close()

	var releases []model.Release
	for rows.Next() {
		release, err := scanRelease(rows)
		if err != nil {
			return nil, fmt.Errorf("scan release: %w", err)
		}
		releases = append(releases, *release)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate releases: %w", err)
	}

	return releases, nil
}

// DeleteStale removes releases for a repository whose GitHub identifiers no
// longer appear in the freshly synced set.
func (r *ReleaseRepo) DeleteStale(ctx context.Context, repositoryID int64, keepInternalIDs []int64) error {
	args := make([]any, 0, len(keepInternalIDs)+1)
	args = append(args, repositoryID)

	query := `DELETE FROM releases WHERE repository_id = ?`
	if len(keepInternalIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keepInternalIDs)), ",")
		query += ` AND internal_id NOT IN (` + placeholders + `)`
		for _, id := range keepInternalIDs {
			args = append(args, id)
		}
	}

	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete stale releases for repository %d: %w", repositoryID, err)
	}

	return nil
}

func scanRelease(s scanner) (*model.Release, error) {
	var release model.Release
	var prerelease int
	var createdAt, publishedAt sql.NullString
	var timeUpdated string

	err := s.Scan(
		&release.ID, &release.InternalID, &release.RepositoryID, &release.Name, &release.TagName,
		&prerelease, &release.HTMLURL, &createdAt, &publishedAt, &timeUpdated,
	)
	if err != nil {
		return nil, err
	}

	release.Prerelease = prerelease != 0

	if release.CreatedAt, err = nullableTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if release.PublishedAt, err = nullableTime(publishedAt, "published_at"); err != nil {
		return nil, err
	}
	if release.TimeUpdated, err = parseTime(timeUpdated); err != nil {
		return nil, fmt.Errorf("parse time_updated: %w", err)
	}

	return &release, nil
}
