// Package session holds per-user authenticated sessions and their Spotify
// credentials.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"golang.org/x/oauth2"
)

// TTL is how long a session stays valid after creation.
const TTL = 24 * time.Hour

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// Session represents one authenticated user. It owns the user's Spotify
// credential and a short-lived cache of the last submitted request text,
// used for "make a playlist from that" follow-ups.
type Session struct {
	ID          string
	UserID      string
	UserName    string
	Token       *oauth2.Token
	LastRequest string
	CreatedAt   time.Time
}

// Store is the session persistence contract. Implementations must be safe
// for concurrent use.
type Store interface {
	Create(ctx context.Context, token *oauth2.Token, userID, userName string) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	UpdateToken(ctx context.Context, id string, token *oauth2.Token) error
	UpdateLastRequest(ctx context.Context, id, text string) error
}

// GenerateID creates a random session identifier.
func GenerateID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func copyToken(t *oauth2.Token) *oauth2.Token {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
