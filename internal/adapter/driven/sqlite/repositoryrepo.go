package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/ghmirror/internal/domain/model"
	"github.com/ericfisherdev/ghmirror/internal/domain/remote"
)

// RepositoryRepo persists cached repositories. The owner is resolved to a
// local User row; (owner_id, name) and internal_id are both unique.
type RepositoryRepo struct {
	q     Querier
	users *UserRepo
}

// NewRepositoryRepo creates a RepositoryRepo bound to q.
func NewRepositoryRepo(q Querier, users *UserRepo) *RepositoryRepo {
	return &RepositoryRepo{q: q, users: users}
}

// CreateFrom maps a remote repository to a local entity, resolving the owner
// through the user repository's own get-or-create path.
func (r *RepositoryRepo) CreateFrom(ctx context.Context, rr remote.Repository) (model.Repository, error) {
	owner, err := r.users.GetOrCreateOrUpdate(ctx, rr.Owner)
	if err != nil {
		return model.Repository{}, fmt.Errorf("resolve owner for %s: %w", rr.Name, err)
	}

	return model.Repository{
		InternalID:    rr.InternalID,
		Name:          rr.Name,
		OwnerID:       owner.ID,
		Description:   rr.Description,
		Private:       rr.Private,
		Fork:          rr.Fork,
		DefaultBranch: rr.DefaultBranch,
		HTMLURL:       rr.HTMLURL,
		CloneURL:      rr.CloneURL,
		CreatedAt:     rr.CreatedAt,
		UpdatedAt:     rr.UpdatedAt,
		PushedAt:      rr.PushedAt,
	}, nil
}

const repositoryColumns = `id, internal_id, name, owner_id, description, private, fork,
	default_branch, html_url, clone_url, created_at, updated_at, pushed_at, time_updated`

// GetByInternalID looks up a repository by its GitHub identifier. Returns
// nil, nil when absent.
func (r *RepositoryRepo) GetByInternalID(ctx context.Context, internalID int64) (*model.Repository, error) {
	const query = `SELECT ` + repositoryColumns + ` FROM repositories WHERE internal_id = ?`

	repo, err := scanRepository(r.q.QueryRowContext(ctx, query, internalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get repository %d: %w", internalID, err)
	}

	return repo, nil
}

// GetByOwnerAndName looks up a repository by owner login and name,
// case-insensitively. Returns nil, nil when absent.
func (r *RepositoryRepo) GetByOwnerAndName(ctx context.Context, owner, name string) (*model.Repository, error) {
	const query = `
		SELECT r.id, r.internal_id, r.name, r.owner_id, r.description, r.private, r.fork,
		       r.default_branch, r.html_url, r.clone_url, r.created_at, r.updated_at, r.pushed_at, r.time_updated
		FROM repositories r
		JOIN users u ON u.id = r.owner_id
		WHERE u.login = ? AND r.name = ?
	`

	repo, err := scanRepository(r.q.QueryRowContext(ctx, query, owner, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get repository %s/%s: %w", owner, name, err)
	}

	return repo, nil
}

// GetOrCreateOrUpdate inserts the repository if unknown, updates it when the
// remote UpdatedAt or PushedAt timestamp is newer than the stored one, and
// otherwise returns the stored row with zero writes.
func (r *RepositoryRepo) GetOrCreateOrUpdate(ctx context.Context, rr remote.Repository) (*model.Repository, error) {
	existing, err := r.GetByInternalID(ctx, rr.InternalID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	if existing != nil {
		if !rr.UpdatedAt.After(existing.UpdatedAt) && !rr.PushedAt.After(existing.PushedAt) {
			return existing, nil
		}

		repo, err := r.CreateFrom(ctx, rr)
		if err != nil {
			return nil, err
		}

		const query = `
			UPDATE repositories
			SET name = ?, owner_id = ?, description = ?, private = ?, fork = ?,
			    default_branch = ?, html_url = ?, clone_url = ?,
			    created_at = ?, updated_at = ?, pushed_at = ?, time_updated = ?
			WHERE id = ?
		`
		if _, err := r.q.ExecContext(ctx, query,
			repo.Name, repo.OwnerID, repo.Description, boolArg(repo.Private), boolArg(repo.Fork),
			repo.DefaultBranch, repo.HTMLURL, repo.CloneURL,
			timeArg(repo.CreatedAt), timeArg(repo.UpdatedAt), timeArg(repo.PushedAt), formatTime(now),
			existing.ID,
		); err != nil {
			return nil, fmt.Errorf("update repository %s: %w", rr.Name, err)
		}

		return r.GetByInternalID(ctx, rr.InternalID)
	}

	repo, err := r.CreateFrom(ctx, rr)
	if err != nil {
		return nil, err
	}

	const query = `
		INSERT INTO repositories (internal_id, name, owner_id, description, private, fork,
			default_branch, html_url, clone_url, created_at, updated_at, pushed_at, time_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := r.q.ExecContext(ctx, query,
		repo.InternalID, repo.Name, repo.OwnerID, repo.Description, boolArg(repo.Private), boolArg(repo.Fork),
		repo.DefaultBranch, repo.HTMLURL, repo.CloneURL,
		timeArg(repo.CreatedAt), timeArg(repo.UpdatedAt), timeArg(repo.PushedAt), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert repository %s: %w", rr.Name, err)
	}

	repo.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("repository insert id: %w", err)
	}
	repo.TimeUpdated = now

	return &repo, nil
}

// ListAll returns all cached repositories ordered by name.
func (r *RepositoryRepo) ListAll(ctx context.Context) ([]model.Repository, error) {
	const query = `SELECT ` + repositoryColumns + ` FROM repositories ORDER BY name`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	defer rows.Close()

	var repos []model.Repository
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		repos = append(repos, *repo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate repositories: %w", err)
	}

	return repos, nil
}

func scanRepository(s scanner) (*model.Repository, error) {
	var repo model.Repository
	var private, fork int
	var createdAt, updatedAt, pushedAt sql.NullString
	var timeUpdated string

	err := s.Scan(
		&repo.ID, &repo.InternalID, &repo.Name, &repo.OwnerID, &repo.Description, &private, &fork,
		&repo.DefaultBranch, &repo.HTMLURL, &repo.CloneURL, &createdAt, &updatedAt, &pushedAt, &timeUpdated,
	)
	if err != nil {
		return nil, err
	}

	repo.Private = private != 0
	repo.Fork = fork != 0

	if repo.CreatedAt, err = nullableTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if repo.UpdatedAt, err = nullableTime(updatedAt, "updated_at"); err != nil {
		return nil, err
	}
	if repo.PushedAt, err = nullableTime(pushedAt, "pushed_at"); err != nil {
		return nil, err
	}
	if repo.TimeUpdated, err = parseTime(timeUpdated); err != nil {
		return nil, fmt.Errorf("parse time_updated: %w", err)
	}

	return &repo, nil
}
