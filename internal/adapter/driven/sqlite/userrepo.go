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

// UserRepo persists cached GitHub accounts.
type UserRepo struct {
	q Querier
}

// NewUserRepo creates a UserRepo bound to q.
func NewUserRepo(q Querier) *UserRepo {
	return &UserRepo{q: q}
}

// CreateFrom maps a remote user to a local entity. Pure mapping; never
// touches the store.
func (r *UserRepo) CreateFrom(ru remote.User) model.User {
	return model.User{
		InternalID: ru.InternalID,
		Login:      ru.Login,
		AvatarURL:  ru.AvatarURL,
		Type:       ru.Type,
	}
}

const userColumns = `id, internal_id, login, avatar_url, type, is_developer, time_updated`

// GetByInternalID looks up a user by its GitHub identifier. Returns nil, nil
// when absent.
func (r *UserRepo) GetByInternalID(ctx context.Context, internalID int64) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE internal_id = ?`

	u, err := scanUser(r.q.QueryRowContext(ctx, query, internalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", internalID, err)
	}

	return u, nil
}

// GetByID looks up a user by its local surrogate key. Returns nil, nil when
// absent.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	u, err := scanUser(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user id %d: %w", id, err)
	}

	return u, nil
}

// GetByLogin looks up a user by login. Returns nil, nil when absent.
func (r *UserRepo) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE login = ?`

	u, err := scanUser(r.q.QueryRowContext(ctx, query, login))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %q: %w", login, err)
	}

	return u, nil
}

// GetOrCreateOrUpdate is the canonical upsert. A stored row is replaced only
// when the update threshold has elapsed since the last local write;
// otherwise the existing row is returned unchanged with zero writes.
func (r *UserRepo) GetOrCreateOrUpdate(ctx context.Context, ru remote.User) (*model.User, error) {
	existing, err := r.GetByInternalID(ctx, ru.InternalID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	if existing != nil {
		if now.Sub(existing.TimeUpdated) < model.UserUpdateThreshold {
			return existing, nil
		}

		const query = `UPDATE users SET login = ?, avatar_url = ?, type = ?, time_updated = ? WHERE id = ?`
		if _, err := r.q.ExecContext(ctx, query, ru.Login, ru.AvatarURL, ru.Type, formatTime(now), existing.ID); err != nil {
			return nil, fmt.Errorf("update user %q: %w", ru.Login, err)
		}

		return r.GetByInternalID(ctx, ru.InternalID)
	}

	u := r.CreateFrom(ru)

	const query = `INSERT INTO users (internal_id, login, avatar_url, type, is_developer, time_updated) VALUES (?, ?, ?, ?, 0, ?)`
	res, err := r.q.ExecContext(ctx, query, u.InternalID, u.Login, u.AvatarURL, u.Type, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("insert user %q: %w", ru.Login, err)
	}

	u.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("user insert id: %w", err)
	}
	u.TimeUpdated = now

	return &u, nil
}

// SetDeveloper flags or unflags a user as one of the logged-in developers.
func (r *UserRepo) SetDeveloper(ctx context.Context, id int64, developer bool) error {
	const query = `UPDATE users SET is_developer = ? WHERE id = ?`

	if _, err := r.q.ExecContext(ctx, query, boolArg(developer), id); err != nil {
		return fmt.Errorf("set developer flag for user %d: %w", id, err)
	}

	return nil
}

// ListDevelopers returns all users flagged as logged-in developers, ordered
// by login.
func (r *UserRepo) ListDevelopers(ctx context.Context) ([]model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE is_developer = 1 ORDER BY login`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list developers: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

func scanUser(s scanner) (*model.User, error) {
	var u model.User
	var isDeveloper int
	var timeUpdated string

	err := s.Scan(&u.ID, &u.InternalID, &u.Login, &u.AvatarURL, &u.Type, &isDeveloper, &timeUpdated)
	if err != nil {
		return nil, err
	}

	u.IsDeveloper = isDeveloper != 0

	u.TimeUpdated, err = parseTime(timeUpdated)
	if err != nil {
		return nil, fmt.Errorf("parse time_updated: %w", err)
	}

	return &u, nil
}
