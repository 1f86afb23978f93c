package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Session is the database row for a user session.
type Session struct {
	ID           string
	UserID       string
	UserName     string
	AccessToken  string
	RefreshToken string
	TokenExpiry  time.Time
	LastRequest  string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// SessionRepository handles session database operations.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// Create inserts a new session.
func (r *SessionRepository) Create(ctx context.Context, session *Session) error {
	query := `
		INSERT INTO sessions (id, user_id, user_name, access_token, refresh_token, token_expiry, last_request, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.UserName,
		session.AccessToken,
		session.RefreshToken,
		session.TokenExpiry,
		session.LastRequest,
		session.CreatedAt,
		session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID. Expired sessions are not returned.
func (r *SessionRepository) Get(ctx context.Context, id string) (*Session, error) {
	query := `
		SELECT id, user_id, user_name, access_token, refresh_token, token_expiry, last_request, created_at, expires_at
		FROM sessions
		WHERE id = $1 AND expires_at > NOW()
	`
	var session Session
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.UserID,
		&session.UserName,
		&session.AccessToken,
		&session.RefreshToken,
		&session.TokenExpiry,
		&session.LastRequest,
		&session.CreatedAt,
		&session.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return &session, nil
}

// Delete removes a session by ID.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM sessions WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// UpdateToken updates the OAuth tokens for a session.
func (r *SessionRepository) UpdateToken(ctx context.Context, id, accessToken, refreshToken string, expiry time.Time) error {
	query := `
		UPDATE sessions
		SET access_token = $2, refresh_token = $3, token_expiry = $4
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, id, accessToken, refreshToken, expiry)
	if err != nil {
		return fmt.Errorf("updating session token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateLastRequest stores the most recent request text for a session.
func (r *SessionRepository) UpdateLastRequest(ctx context.Context, id, text string) error {
	query := `UPDATE sessions SET last_request = $2 WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id, text)
	if err != nil {
		return fmt.Errorf("updating session request cache: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpired removes all expired sessions.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM sessions WHERE expires_at <= NOW()`
	result, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	return result.RowsAffected(), nil
}
