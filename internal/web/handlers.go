package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/RahulPulidindi/tunesmith/internal/agent"
	"github.com/RahulPulidindi/tunesmith/internal/auth"
	"github.com/RahulPulidindi/tunesmith/internal/playlist"
	"github.com/RahulPulidindi/tunesmith/internal/session"
	"github.com/RahulPulidindi/tunesmith/internal/spotify"
)

const (
	sessionCookie = "tunesmith_session"
	stateCookie   = "oauth_state"
)

// AgentService processes one natural-language request for a session.
type AgentService interface {
	Process(ctx context.Context, sess *session.Session, text string) (*agent.Response, error)
}

// PlaylistService reads and edits playlists directly.
type PlaylistService interface {
	ListAllTracks(ctx context.Context, tctx agent.ToolContext, playlistID string) ([]spotify.TrackRef, error)
	RemoveTrack(ctx context.Context, tctx agent.ToolContext, playlistID, trackURI string) (*playlist.RemoveResult, error)
}

// UserLookup resolves the authenticated Spotify user after the OAuth
// exchange.
type UserLookup func(ctx context.Context, token *oauth2.Token) (id, displayName string, err error)

// Handlers contains the HTTP handlers for the JSON API.
type Handlers struct {
	auth        *spotifyauth.Authenticator
	sessions    session.Store
	agent       AgentService
	playlists   PlaylistService
	currentUser UserLookup
	log         *log.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(authenticator *spotifyauth.Authenticator, sessions session.Store, agentSvc AgentService, playlists PlaylistService, currentUser UserLookup, logger *log.Logger) *Handlers {
	return &Handlers{
		auth:        authenticator,
		sessions:    sessions,
		agent:       agentSvc,
		playlists:   playlists,
		currentUser: currentUser,
		log:         logger,
	}
}

// Status reports whether the caller has an active session (GET /api/status).
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	sess := h.sessionFromRequest(r)
	if sess == nil {
		respondJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user":          map[string]any{"id": sess.UserID, "name": sess.UserName},
	})
}

// Login starts the Spotify OAuth flow (GET /api/login). The client follows
// auth_url itself; the state cookie ties the callback to this browser.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateOAuthState()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to start login")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300,
	})

	respondJSON(w, http.StatusOK, map[string]any{"auth_url": h.auth.AuthURL(state)})
}

// Callback completes the OAuth flow (GET /callback).
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookie)
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing state cookie")
		return
	}
	state := r.URL.Query().Get("state")
	if state != cookie.Value {
		respondError(w, http.StatusBadRequest, "state mismatch")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		respondError(w, http.StatusBadRequest, "spotify authorization was declined")
		return
	}

	token, err := h.auth.Token(r.Context(), state, r)
	if err != nil {
		h.log.Error("token exchange failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to complete login")
		return
	}

	userID, userName, err := h.currentUser(r.Context(), token)
	if err != nil {
		h.log.Error("fetching user profile failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to complete login")
		return
	}

	sess, err := h.sessions.Create(r.Context(), token, userID, userName)
	if err != nil {
		h.log.Error("creating session failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to complete login")
		return
	}

	h.setSessionCookie(w, sess.ID)
	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// Logout discards the session (POST /api/logout).
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if sess := h.sessionFromRequest(r); sess != nil {
		if err := h.sessions.Delete(r.Context(), sess.ID); err != nil {
			h.log.Warn("deleting session failed", "session_id", sess.ID, "error", err)
		}
	}
	h.clearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

type processRequest struct {
	Request string `json:"request"`
}

// ProcessRequest runs one natural-language request (POST /api/request).
func (h *Handlers) ProcessRequest(w http.ResponseWriter, r *http.Request) {
	sess := h.sessionFromRequest(r)
	if sess == nil {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	text := strings.TrimSpace(req.Request)
	if text == "" {
		respondError(w, http.StatusBadRequest, "request text is required")
		return
	}

	resp, err := h.agent.Process(r.Context(), sess, text)
	if err != nil {
		h.handleProcessError(w, r, sess, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleProcessError maps pipeline failures to responses. Credential
// failures end the session; everything else stays generic so internal
// detail never leaks to clients.
func (h *Handlers) handleProcessError(w http.ResponseWriter, r *http.Request, sess *session.Session, err error) {
	switch {
	case errors.Is(err, auth.ErrReauthRequired), errors.Is(err, auth.ErrNotAuthenticated):
		if delErr := h.sessions.Delete(r.Context(), sess.ID); delErr != nil {
			h.log.Warn("deleting session failed", "session_id", sess.ID, "error", delErr)
		}
		h.clearSessionCookie(w)
		respondError(w, http.StatusUnauthorized, "spotify authorization expired, please log in again")
	default:
		h.log.Error("request processing failed", "session_id", sess.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "something went wrong processing your request")
	}
}

// PlaylistTracks returns every track of a playlist (GET
// /api/playlists/{playlistID}/tracks).
func (h *Handlers) PlaylistTracks(w http.ResponseWriter, r *http.Request) {
	sess := h.sessionFromRequest(r)
	if sess == nil {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	playlistID := chi.URLParam(r, "playlistID")

	tracks, err := h.playlists.ListAllTracks(r.Context(), h.toolContext(r, sess), playlistID)
	if err != nil {
		h.handleProcessError(w, r, sess, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"tracks":  tracks,
		"total":   len(tracks),
	})
}

type removeTrackRequest struct {
	TrackURI string `json:"track_uri"`
}

// RemovePlaylistTrack removes a track from a playlist (DELETE
// /api/playlists/{playlistID}/tracks).
func (h *Handlers) RemovePlaylistTrack(w http.ResponseWriter, r *http.Request) {
	sess := h.sessionFromRequest(r)
	if sess == nil {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	playlistID := chi.URLParam(r, "playlistID")

	var req removeTrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TrackURI == "" {
		respondError(w, http.StatusBadRequest, "track_uri is required")
		return
	}

	result, err := h.playlists.RemoveTrack(r.Context(), h.toolContext(r, sess), playlistID, req.TrackURI)
	if err != nil {
		h.handleProcessError(w, r, sess, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"snapshot_id":     result.SnapshotID,
		"new_track_count": result.NewTrackCount,
	})
}

func (h *Handlers) toolContext(r *http.Request, sess *session.Session) agent.ToolContext {
	return agent.ToolContext{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		RequestID: middleware.GetReqID(r.Context()),
	}
}

func (h *Handlers) sessionFromRequest(r *http.Request) *session.Session {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil || cookie.Value == "" {
		return nil
	}
	sess, err := h.sessions.Get(r.Context(), cookie.Value)
	if err != nil {
		return nil
	}
	return sess
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(session.TTL.Seconds()),
	})
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{"error": message})
}

// generateOAuthState creates a random state string for OAuth.
func generateOAuthState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
