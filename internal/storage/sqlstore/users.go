package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/autama/autama/backend/internal/model/user"
)

// UserStore implements user.Store.
type UserStore struct {
	db *sql.DB
}

var _ user.Store = (*UserStore)(nil)

func (s *UserStore) Create(ctx context.Context, u user.User) (user.User, error) {
	if _, err := s.FindByUsername(ctx, u.Username); err == nil {
		return user.User{}, user.ErrDuplicate
	} else if !errors.Is(err, user.ErrNotFound) {
		return user.User{}, err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, is_staff, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.PasswordHash, u.IsStaff, toUnix(u.CreatedAt))
	if err != nil {
		return user.User{}, fmt.Errorf("failed to store user: %w", err)
	}
	return u, nil
}

func (s *UserStore) List(ctx context.Context) ([]user.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, password_hash, is_staff, created_at FROM users ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var out []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *UserStore) FindByID(ctx context.Context, id string) (user.User, error) {
	return s.findOne(ctx, `SELECT id, username, password_hash, is_staff, created_at FROM users WHERE id = ?`, id)
}

func (s *UserStore) FindByUsername(ctx context.Context, username string) (user.User, error) {
	return s.findOne(ctx, `SELECT id, username, password_hash, is_staff, created_at FROM users WHERE username = ? COLLATE NOCASE`, username)
}

func (s *UserStore) findOne(ctx context.Context, query string, arg string) (user.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, user.ErrNotFound
	}
	return u, err
}

func scanUser(row scanner) (user.User, error) {
	var (
		u       user.User
		created int64
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsStaff, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, err
		}
		return user.User{}, fmt.Errorf("failed to scan user: %w", err)
	}
	u.CreatedAt = fromUnix(created)
	return u, nil
}

// SaveToken replaces any existing token of the user.
func (s *UserStore) SaveToken(ctx context.Context, token user.Token) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_tokens WHERE user_id = ?`, token.UserID); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO user_tokens (key, user_id, created_at) VALUES (?, ?, ?)`,
		token.Key, token.UserID, toUnix(token.CreatedAt)); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return tx.Commit()
}

func (s *UserStore) TokenForUser(ctx context.Context, userID string) (user.Token, error) {
	return s.findToken(ctx, `SELECT key, user_id, created_at FROM user_tokens WHERE user_id = ?`, userID)
}

func (s *UserStore) FindToken(ctx context.Context, key string) (user.Token, error) {
	return s.findToken(ctx, `SELECT key, user_id, created_at FROM user_tokens WHERE key = ?`, key)
}

func (s *UserStore) findToken(ctx context.Context, query string, arg string) (user.Token, error) {
	var (
		t       user.Token
		created int64
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&t.Key, &t.UserID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return user.Token{}, user.ErrNotFound
	}
	if err != nil {
		return user.Token{}, fmt.Errorf("failed to load token: %w", err)
	}
	t.CreatedAt = fromUnix(created)
	return t, nil
}
