// Package auth supplies valid Spotify tokens for sessions, refreshing them
// transparently.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/RahulPulidindi/tunesmith/internal/session"
)

var (
	// ErrNotAuthenticated is returned when no session exists for the ID.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrReauthRequired is returned when the refresh token was rejected and
	// the user must go through the OAuth flow again. The caller is expected
	// to invalidate the session.
	ErrReauthRequired = errors.New("spotify authorization expired")
)

// expiryMargin treats tokens this close to expiry as already expired, so a
// token handed out still has its expiry strictly in the future for the
// duration of a remote call.
const expiryMargin = 30 * time.Second

// Endpoint returns the Spotify Accounts Service OAuth2 endpoint.
func Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:  spotifyauth.AuthURL,
		TokenURL: spotifyauth.TokenURL,
	}
}

// Store hands out valid access tokens for sessions. Refreshes are serialized
// per session so concurrent requests never race each other's refresh.
type Store struct {
	cfg      *oauth2.Config
	sessions session.Store
	group    singleflight.Group
	log      *log.Logger
	now      func() time.Time
}

// NewStore creates a credential store against the Spotify token endpoint.
func NewStore(clientID, clientSecret string, sessions session.Store, logger *log.Logger) *Store {
	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     Endpoint(),
	}
	return NewStoreWithConfig(cfg, sessions, logger)
}

// NewStoreWithConfig creates a credential store with a caller-supplied OAuth2
// config. Tests use this to point the token endpoint at a local server.
func NewStoreWithConfig(cfg *oauth2.Config, sessions session.Store, logger *log.Logger) *Store {
	return &Store{
		cfg:      cfg,
		sessions: sessions,
		log:      logger,
		now:      time.Now,
	}
}

// ValidToken returns a token whose expiry is strictly in the future,
// refreshing the session's credential at most once per call.
func (s *Store) ValidToken(ctx context.Context, sessionID string) (*oauth2.Token, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	if s.fresh(sess.Token) {
		return sess.Token, nil
	}

	v, err, _ := s.group.Do(sessionID, func() (any, error) {
		return s.refresh(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*oauth2.Token), nil
}

// Invalidate destroys the session and its credential.
func (s *Store) Invalidate(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(ctx, sessionID)
}

func (s *Store) fresh(tok *oauth2.Token) bool {
	return tok != nil && tok.AccessToken != "" && tok.Expiry.After(s.now().Add(expiryMargin))
}

// refresh runs inside singleflight: exactly one refresh per session at a time.
func (s *Store) refresh(ctx context.Context, sessionID string) (*oauth2.Token, error) {
	// Another flight may have refreshed while we waited for the lock.
	sess, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if s.fresh(sess.Token) {
		return sess.Token, nil
	}

	if sess.Token == nil || sess.Token.RefreshToken == "" {
		return nil, ErrReauthRequired
	}

	stale := &oauth2.Token{
		AccessToken:  sess.Token.AccessToken,
		RefreshToken: sess.Token.RefreshToken,
		Expiry:       s.now().Add(-time.Minute), // force the refresh grant
		TokenType:    "Bearer",
	}

	tok, err := s.cfg.TokenSource(ctx, stale).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && refreshRejected(retrieveErr) {
			s.log.Warn("spotify rejected refresh token", "session_id", sessionID, "status", retrieveErr.Response.StatusCode)
			return nil, fmt.Errorf("%w: %s", ErrReauthRequired, retrieveErr.ErrorCode)
		}
		return nil, fmt.Errorf("refreshing token: %w", err)
	}

	// The token endpoint may omit the refresh token on rotation; keep the
	// old one in that case so the session stays refreshable.
	if tok.RefreshToken == "" {
		tok.RefreshToken = sess.Token.RefreshToken
	}

	if err := s.sessions.UpdateToken(ctx, sessionID, tok); err != nil {
		return nil, fmt.Errorf("persisting refreshed token: %w", err)
	}

	s.log.Debug("refreshed spotify token", "session_id", sessionID, "expiry", tok.Expiry)
	return tok, nil
}

// refreshRejected reports whether the token endpoint's response means the
// refresh token itself is no longer usable, as opposed to a transient fault.
func refreshRejected(err *oauth2.RetrieveError) bool {
	if err.Response == nil {
		return false
	}
	switch err.Response.StatusCode {
	case 400, 401, 403:
		return true
	}
	return false
}
