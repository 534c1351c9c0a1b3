package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/CapCalWeb/internal/models"
)

// SessionRepository persists browser sessions in MySQL.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Get returns nil without an error when the session does not exist.
func (r *SessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	const query = `
SELECT id, is_authenticated, user_name, user_email, COALESCE(auth_token, ''), created_at, updated_at
FROM sessions WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	var s models.Session
	if err := row.Scan(&s.ID, &s.IsAuthenticated, &s.UserName, &s.UserEmail, &s.AuthToken, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return &s, nil
}

// Set inserts or overwrites the session; the last write wins.
func (r *SessionRepository) Set(ctx context.Context, s *models.Session) error {
	const query = `
INSERT INTO sessions (id, is_authenticated, user_name, user_email, auth_token)
VALUES (?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    is_authenticated = VALUES(is_authenticated),
    user_name = VALUES(user_name),
    user_email = VALUES(user_email),
    auth_token = VALUES(auth_token)`
	if _, err := r.db.ExecContext(ctx, query, s.ID, s.IsAuthenticated, s.UserName, s.UserEmail, nullString(s.AuthToken)); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Clear(ctx context.Context, id string) error {
	const query = `DELETE FROM sessions WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
