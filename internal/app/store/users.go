/*
Package store implements the persistence contracts over PostgreSQL (pgx).
The chat core consumes it through the interfaces declared in the chat
package; the REST handlers use it directly.
*/
package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"pulsechat/internal/app/user"
	"pulsechat/internal/pkg/errs"
)

// Users is the account repository.
type Users struct {
	pool *pgxpool.Pool
}

func NewUsers(pool *pgxpool.Pool) *Users {
	return &Users{pool: pool}
}

// Create inserts a new account and returns it with its generated id.
func (s *Users) Create(ctx context.Context, username, fullName, passwordHash string) (user.User, error) {
	u := user.User{
		ID:           uuid.NewString(),
		Username:     username,
		FullName:     fullName,
		PasswordHash: passwordHash,
		Status:       user.StatusOnline,
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, username, full_name, password_hash, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		u.ID, u.Username, u.FullName, u.PasswordHash, u.Status.String(),
	).Scan(&u.CreatedAt)
	if err != nil {
		return user.User{}, fmt.Errorf("insert user: %w", err)
	}

	return u, nil
}

// ByUsername loads an account by its unique login name.
func (s *Users) ByUsername(ctx context.Context, username string) (user.User, error) {
	return s.scanOne(ctx, `
		SELECT id, username, full_name, password_hash, status, avatar_key, created_at
		FROM users WHERE username = $1`, username)
}

// ByID loads an account by id.
func (s *Users) ByID(ctx context.Context, id string) (user.User, error) {
	return s.scanOne(ctx, `
		SELECT id, username, full_name, password_hash, status, avatar_key, created_at
		FROM users WHERE id = $1`, id)
}

// Sidebar lists every account except the caller's, for the contact picker.
func (s *Users) Sidebar(ctx context.Context, excludeID string) ([]user.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, username, full_name, password_hash, status, avatar_key, created_at
		FROM users WHERE id <> $1 ORDER BY full_name`, excludeID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		var u user.User
		var status string
		if err := rows.Scan(&u.ID, &u.Username, &u.FullName, &u.PasswordHash, &status, &u.AvatarKey, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Status = user.Status(status)
		users = append(users, u)
	}

	return users, rows.Err()
}

// StoredStatus returns the durably stored default status used to seed
// presence on first connection.
func (s *Users) StoredStatus(ctx context.Context, userID string) (user.Status, error) {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM users WHERE id = $1`, userID).Scan(&status)
	if err != nil {
		return user.StatusOffline, fmt.Errorf("fetch stored status: %w", err)
	}

	parsed, parseErr := user.ParseStatus(status)
	if parseErr != nil {
		return user.StatusOffline, nil
	}
	return parsed, nil
}

// SaveStatus persists a new stored default status.
func (s *Users) SaveStatus(ctx context.Context, userID string, status user.Status) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET status = $2 WHERE id = $1`, userID, status.String())
	if err != nil {
		return fmt.Errorf("update stored status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NewError(errs.ErrUserNotFound)
	}
	return nil
}

// SetAvatarKey records the storage key of the user's uploaded avatar.
func (s *Users) SetAvatarKey(ctx context.Context, userID, key string) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET avatar_key = $2 WHERE id = $1`, userID, key)
	if err != nil {
		return fmt.Errorf("update avatar key: %w", err)
	}
	return nil
}

func (s *Users) scanOne(ctx context.Context, query string, arg any) (user.User, error) {
	var u user.User
	var status string

	err := s.pool.QueryRow(ctx, query, arg).
		Scan(&u.ID, &u.Username, &u.FullName, &u.PasswordHash, &status, &u.AvatarKey, &u.CreatedAt)
	if err != nil {
		return user.User{}, err
	}

	u.Status = user.Status(status)
	return u, nil
}
