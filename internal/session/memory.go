package session

import (
	"context"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// MemoryStore keeps sessions in memory. Suitable for a single-instance
// deployment; use the Postgres store otherwise.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create generates a new session holding the given token and user info.
func (s *MemoryStore) Create(_ context.Context, token *oauth2.Token, userID, userName string) (*Session, error) {
	id, err := GenerateID()
	if err != nil {
		return nil, err
	}

	sess := &Session{
		ID:        id,
		UserID:    userID,
		UserName:  userName,
		Token:     copyToken(token),
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	return snapshot(sess), nil
}

// Get retrieves a session by ID. Expired sessions are treated as missing and
// dropped on read, so abandoned sessions do not accumulate.
func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if s.now().Sub(sess.CreatedAt) > TTL {
		delete(s.sessions, id)
		return nil, ErrNotFound
	}

	return snapshot(sess), nil
}

// Delete removes a session by ID.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// UpdateToken replaces the session's credential in place.
func (s *MemoryStore) UpdateToken(_ context.Context, id string, token *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	sess.Token = copyToken(token)
	return nil
}

// UpdateLastRequest caches the most recent request text on the session.
func (s *MemoryStore) UpdateLastRequest(_ context.Context, id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	sess.LastRequest = text
	return nil
}

// snapshot returns a copy so callers never share mutable state with the store.
func snapshot(sess *Session) *Session {
	c := *sess
	c.Token = copyToken(sess.Token)
	return &c
}
