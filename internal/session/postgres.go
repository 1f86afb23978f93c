package session

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"

	"github.com/RahulPulidindi/tunesmith/internal/db"
)

// PGStore persists sessions in PostgreSQL.
type PGStore struct {
	database *db.DB
}

// NewPGStore creates a Postgres-backed session store.
func NewPGStore(database *db.DB) *PGStore {
	return &PGStore{database: database}
}

// Create generates a new session and stores it in the database.
func (s *PGStore) Create(ctx context.Context, token *oauth2.Token, userID, userName string) (*Session, error) {
	id, err := GenerateID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	row := &db.Session{
		ID:           id,
		UserID:       userID,
		UserName:     userName,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenExpiry:  token.Expiry,
		CreatedAt:    now,
		ExpiresAt:    now.Add(TTL),
	}
	if err := s.database.Sessions().Create(ctx, row); err != nil {
		return nil, err
	}

	return &Session{
		ID:        id,
		UserID:    userID,
		UserName:  userName,
		Token:     copyToken(token),
		CreatedAt: now,
	}, nil
}

// Get retrieves a session by ID from the database.
func (s *PGStore) Get(ctx context.Context, id string) (*Session, error) {
	row, err := s.database.Sessions().Get(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:       row.ID,
		UserID:   row.UserID,
		UserName: row.UserName,
		Token: &oauth2.Token{
			AccessToken:  row.AccessToken,
			RefreshToken: row.RefreshToken,
			Expiry:       row.TokenExpiry,
			TokenType:    "Bearer",
		},
		LastRequest: row.LastRequest,
		CreatedAt:   row.CreatedAt,
	}, nil
}

// Delete removes a session from the database.
func (s *PGStore) Delete(ctx context.Context, id string) error {
	return s.database.Sessions().Delete(ctx, id)
}

// UpdateToken updates the OAuth token for a session in the database.
func (s *PGStore) UpdateToken(ctx context.Context, id string, token *oauth2.Token) error {
	err := s.database.Sessions().UpdateToken(ctx, id, token.AccessToken, token.RefreshToken, token.Expiry)
	if errors.Is(err, db.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// UpdateLastRequest stores the most recent request text for a session.
func (s *PGStore) UpdateLastRequest(ctx context.Context, id, text string) error {
	err := s.database.Sessions().UpdateLastRequest(ctx, id, text)
	if errors.Is(err, db.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
