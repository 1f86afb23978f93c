package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	spotifyapi "github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/RahulPulidindi/tunesmith/internal/llm"
	"github.com/RahulPulidindi/tunesmith/internal/spotify"
)

// Tool names. This is the complete set the orchestration loop may invoke;
// anything else is rejected as unknown.
const (
	ToolSearchTracks     = "search_tracks"
	ToolCreatePlaylist   = "create_playlist"
	ToolAddTracks        = "add_tracks_to_playlist"
	ToolGetPlaylist      = "get_playlist"
	ToolGetPlaylistItems = "get_playlist_items"
	ToolRemoveTrack      = "remove_track_from_playlist"
)

// ToolErrorKind categorizes tool failures so callers can decide whether a
// failure is terminal (auth) or just another observation.
type ToolErrorKind string

const (
	ToolErrAuth        ToolErrorKind = "auth"
	ToolErrBadArgs     ToolErrorKind = "bad_args"
	ToolErrRateLimited ToolErrorKind = "rate_limited"
	ToolErrTimeout     ToolErrorKind = "timeout"
	ToolErrTransport   ToolErrorKind = "transport"
	ToolErrMalformed   ToolErrorKind = "malformed"
	ToolErrUnknownTool ToolErrorKind = "unknown_tool"
)

// ToolError is the uniform failure shape for tool invocations.
type ToolError struct {
	Kind   ToolErrorKind
	Tool   string
	Detail string
	err    error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s failed (%s): %s", e.Tool, e.Kind, e.Detail)
}

func (e *ToolError) Unwrap() error { return e.err }

func badArgs(tool, detail string) *ToolError {
	return &ToolError{Kind: ToolErrBadArgs, Tool: tool, Detail: detail}
}

// ToolContext carries the identity under which tools execute. Every
// invocation is scoped to one session; tools never share state across
// sessions.
type ToolContext struct {
	SessionID string
	UserID    string
	RequestID string
}

// TokenSource yields a currently-valid access token for a session,
// refreshing transparently when needed.
type TokenSource interface {
	ValidToken(ctx context.Context, sessionID string) (*oauth2.Token, error)
}

// CatalogClient is the slice of the Spotify wrapper the tools need.
type CatalogClient interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]spotify.TrackRef, error)
	CreatePlaylist(ctx context.Context, name, description string, trackURIs []string, previewLimit int) (*spotify.CreatedPlaylist, error)
	AddTracks(ctx context.Context, playlistID string, trackURIs []string) error
	Playlist(ctx context.Context, id string) (*spotify.Playlist, error)
	PlaylistItems(ctx context.Context, id string, offset, limit int) (*spotify.ItemsPage, error)
	RemoveTrack(ctx context.Context, playlistID, trackURI string) (string, error)
}

// ClientFactory builds a CatalogClient bound to a token.
type ClientFactory func(token *oauth2.Token) CatalogClient

// ToolsetConfig tunes the toolset's limits.
type ToolsetConfig struct {
	PreviewLimit    int
	PageLimit       int
	CallTimeout     time.Duration
	RateLimitPerSec float64
}

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// Toolset executes the fixed tool vocabulary against Spotify. Calls are
// rate-limited and individually bounded by a timeout.
type Toolset struct {
	tokens       TokenSource
	newClient    ClientFactory
	limiter      *rate.Limiter
	timeout      time.Duration
	previewLimit int
	pageLimit    int
	log          *log.Logger
}

// NewToolset builds a Toolset. Zero config fields get sensible defaults.
func NewToolset(tokens TokenSource, factory ClientFactory, cfg ToolsetConfig, logger *log.Logger) *Toolset {
	if cfg.PreviewLimit <= 0 {
		cfg.PreviewLimit = 5
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 100
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	if cfg.RateLimitPerSec <= 0 {
		cfg.RateLimitPerSec = 5
	}
	return &Toolset{
		tokens:       tokens,
		newClient:    factory,
		limiter:      rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), int(cfg.RateLimitPerSec)+1),
		timeout:      cfg.CallTimeout,
		previewLimit: cfg.PreviewLimit,
		pageLimit:    cfg.PageLimit,
		log:          logger,
	}
}

// begin acquires a rate-limit slot and a client for the session, and returns
// a deadline-bounded context for the call.
func (t *Toolset) begin(ctx context.Context, tctx ToolContext, tool string) (CatalogClient, context.Context, context.CancelFunc, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, nil, nil, t.wrap(tool, err)
	}
	token, err := t.tokens.ValidToken(ctx, tctx.SessionID)
	if err != nil {
		return nil, nil, nil, &ToolError{Kind: ToolErrAuth, Tool: tool, Detail: "session credentials unavailable", err: err}
	}
	cctx, cancel := context.WithTimeout(ctx, t.timeout)
	return t.newClient(token), cctx, cancel, nil
}

// wrap converts an underlying failure into a categorized ToolError.
func (t *Toolset) wrap(tool string, err error) error {
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return err
	}
	kind := ToolErrTransport
	if errors.Is(err, context.DeadlineExceeded) {
		kind = ToolErrTimeout
	}
	var apiErr spotifyapi.Error
	if errors.As(err, &apiErr) && apiErr.Status == 429 {
		kind = ToolErrRateLimited
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		kind = ToolErrMalformed
	}
	return &ToolError{Kind: kind, Tool: tool, Detail: err.Error(), err: err}
}

// SearchTracks finds up to limit tracks matching query. A query with no hits
// is a valid empty result, not a failure.
func (t *Toolset) SearchTracks(ctx context.Context, tctx ToolContext, query string, limit int) ([]spotify.TrackRef, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	client, cctx, cancel, err := t.begin(ctx, tctx, ToolSearchTracks)
	if err != nil {
		return nil, err
	}
	defer cancel()
	tracks, err := client.SearchTracks(cctx, query, limit)
	if err != nil {
		return nil, t.wrap(ToolSearchTracks, err)
	}
	return tracks, nil
}

// CreatePlaylist creates a playlist, fills it with the given tracks, and
// returns the fresh playlist details with a short preview.
func (t *Toolset) CreatePlaylist(ctx context.Context, tctx ToolContext, name, description string, trackURIs []string) (*spotify.CreatedPlaylist, error) {
	client, cctx, cancel, err := t.begin(ctx, tctx, ToolCreatePlaylist)
	if err != nil {
		return nil, err
	}
	defer cancel()
	created, err := client.CreatePlaylist(cctx, name, description, trackURIs, t.previewLimit)
	if err != nil {
		return nil, t.wrap(ToolCreatePlaylist, err)
	}
	return created, nil
}

// AddTracks appends tracks to an existing playlist.
func (t *Toolset) AddTracks(ctx context.Context, tctx ToolContext, playlistID string, trackURIs []string) error {
	client, cctx, cancel, err := t.begin(ctx, tctx, ToolAddTracks)
	if err != nil {
		return err
	}
	defer cancel()
	if err := client.AddTracks(cctx, playlistID, trackURIs); err != nil {
		return t.wrap(ToolAddTracks, err)
	}
	return nil
}

// Playlist fetches current playlist details.
func (t *Toolset) Playlist(ctx context.Context, tctx ToolContext, playlistID string) (*spotify.Playlist, error) {
	client, cctx, cancel, err := t.begin(ctx, tctx, ToolGetPlaylist)
	if err != nil {
		return nil, err
	}
	defer cancel()
	p, err := client.Playlist(cctx, playlistID)
	if err != nil {
		return nil, t.wrap(ToolGetPlaylist, err)
	}
	return p, nil
}

// PlaylistItems fetches one page of a playlist's tracks.
func (t *Toolset) PlaylistItems(ctx context.Context, tctx ToolContext, playlistID string, offset, limit int) (*spotify.ItemsPage, error) {
	if limit <= 0 || limit > t.pageLimit {
		limit = t.pageLimit
	}
	if offset < 0 {
		offset = 0
	}
	client, cctx, cancel, err := t.begin(ctx, tctx, ToolGetPlaylistItems)
	if err != nil {
		return nil, err
	}
	defer cancel()
	page, err := client.PlaylistItems(cctx, playlistID, offset, limit)
	if err != nil {
		return nil, t.wrap(ToolGetPlaylistItems, err)
	}
	return page, nil
}

// RemoveTrack removes every occurrence of the track from the playlist and
// returns the new snapshot ID.
func (t *Toolset) RemoveTrack(ctx context.Context, tctx ToolContext, playlistID, trackURI string) (string, error) {
	client, cctx, cancel, err := t.begin(ctx, tctx, ToolRemoveTrack)
	if err != nil {
		return "", err
	}
	defer cancel()
	snapshot, err := client.RemoveTrack(cctx, playlistID, trackURI)
	if err != nil {
		return "", t.wrap(ToolRemoveTrack, err)
	}
	return snapshot, nil
}

// Call dispatches a tool invocation by name with loosely-typed arguments, as
// decided by the reasoner. Results come back in the same loose shape so they
// can be rendered as observations.
func (t *Toolset) Call(ctx context.Context, tctx ToolContext, name string, args map[string]any) (map[string]any, error) {
	switch name {
	case ToolSearchTracks:
		query, _ := stringArg(args, "query")
		if query == "" {
			return nil, badArgs(name, "query is required")
		}
		tracks, err := t.SearchTracks(ctx, tctx, query, intArg(args, "limit", defaultSearchLimit))
		if err != nil {
			return nil, err
		}
		return map[string]any{"tracks": trackMaps(tracks), "total": len(tracks)}, nil

	case ToolCreatePlaylist:
		playlistName, _ := stringArg(args, "name")
		if playlistName == "" {
			return nil, badArgs(name, "name is required")
		}
		description, _ := stringArg(args, "description")
		uris, err := stringSliceArg(args, "track_uris")
		if err != nil {
			return nil, badArgs(name, err.Error())
		}
		created, err := t.CreatePlaylist(ctx, tctx, playlistName, description, uris)
		if err != nil {
			return nil, err
		}
		return playlistMap(created.Playlist, created.Preview), nil

	case ToolAddTracks:
		playlistID, _ := stringArg(args, "playlist_id")
		if playlistID == "" {
			return nil, badArgs(name, "playlist_id is required")
		}
		uris, err := stringSliceArg(args, "track_uris")
		if err != nil {
			return nil, badArgs(name, err.Error())
		}
		if len(uris) == 0 {
			return nil, badArgs(name, "track_uris must not be empty")
		}
		if err := t.AddTracks(ctx, tctx, playlistID, uris); err != nil {
			return nil, err
		}
		return map[string]any{"success": true, "added": len(uris), "playlist_id": playlistID}, nil

	case ToolGetPlaylist:
		playlistID, _ := stringArg(args, "playlist_id")
		if playlistID == "" {
			return nil, badArgs(name, "playlist_id is required")
		}
		p, err := t.Playlist(ctx, tctx, playlistID)
		if err != nil {
			return nil, err
		}
		return playlistMap(*p, nil), nil

	case ToolGetPlaylistItems:
		playlistID, _ := stringArg(args, "playlist_id")
		if playlistID == "" {
			return nil, badArgs(name, "playlist_id is required")
		}
		page, err := t.PlaylistItems(ctx, tctx, playlistID, intArg(args, "offset", 0), intArg(args, "limit", 0))
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"tracks": trackMaps(page.Tracks),
			"offset": page.Offset,
			"limit":  page.Limit,
			"total":  page.Total,
		}, nil

	case ToolRemoveTrack:
		playlistID, _ := stringArg(args, "playlist_id")
		trackURI, _ := stringArg(args, "track_uri")
		if playlistID == "" || trackURI == "" {
			return nil, badArgs(name, "playlist_id and track_uri are required")
		}
		snapshot, err := t.RemoveTrack(ctx, tctx, playlistID, trackURI)
		if err != nil {
			return nil, err
		}
		// Recount from the source rather than trusting local arithmetic.
		p, err := t.Playlist(ctx, tctx, playlistID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"success": true, "snapshot_id": snapshot, "new_track_count": p.TrackCount}, nil

	default:
		return nil, &ToolError{Kind: ToolErrUnknownTool, Tool: name, Detail: "no such tool"}
	}
}

// Definitions describes the tool vocabulary in the chat-completions function
// format.
func (t *Toolset) Definitions() []llm.Tool {
	defs := []struct {
		name, description, schema string
	}{
		{
			ToolSearchTracks,
			"Search the Spotify catalog for tracks matching a free-text query. Returns track names, artists, and URIs.",
			`{"type":"object","properties":{"query":{"type":"string","description":"Free-text search, e.g. song title, artist, or mood keywords"},"limit":{"type":"integer","description":"Max results, 1-50, default 10"}},"required":["query"]}`,
		},
		{
			ToolCreatePlaylist,
			"Create a new private playlist for the current user, optionally with an initial set of tracks, and return its details including the Spotify URL.",
			`{"type":"object","properties":{"name":{"type":"string","description":"Playlist name"},"description":{"type":"string","description":"Playlist description"},"track_uris":{"type":"array","items":{"type":"string"},"description":"Spotify track URIs to add"}},"required":["name"]}`,
		},
		{
			ToolAddTracks,
			"Add tracks to an existing playlist.",
			`{"type":"object","properties":{"playlist_id":{"type":"string"},"track_uris":{"type":"array","items":{"type":"string"}}},"required":["playlist_id","track_uris"]}`,
		},
		{
			ToolGetPlaylist,
			"Fetch a playlist's current details: name, description, URL, and track count.",
			`{"type":"object","properties":{"playlist_id":{"type":"string"}},"required":["playlist_id"]}`,
		},
		{
			ToolGetPlaylistItems,
			"Fetch one page of a playlist's tracks.",
			`{"type":"object","properties":{"playlist_id":{"type":"string"},"offset":{"type":"integer"},"limit":{"type":"integer"}},"required":["playlist_id"]}`,
		},
		{
			ToolRemoveTrack,
			"Remove every occurrence of a track from a playlist and report the new track count.",
			`{"type":"object","properties":{"playlist_id":{"type":"string"},"track_uri":{"type":"string"}},"required":["playlist_id","track_uri"]}`,
		},
	}
	tools := make([]llm.Tool, 0, len(defs))
	for _, d := range defs {
		tools = append(tools, llm.Tool{
			Type: "function",
			Function: llm.FunctionDef{
				Name:        d.name,
				Description: d.description,
				Parameters:  json.RawMessage(d.schema),
			},
		})
	}
	return tools
}

func stringArg(args map[string]any, key string) (string, bool) {
	s, ok := args[key].(string)
	return s, ok
}

func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

func stringSliceArg(args map[string]any, key string) ([]string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s must be an array of strings", key)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s must be an array of strings", key)
	}
}

func trackMaps(tracks []spotify.TrackRef) []map[string]any {
	out := make([]map[string]any, 0, len(tracks))
	for _, tr := range tracks {
		out = append(out, map[string]any{
			"id":      tr.ID,
			"name":    tr.Name,
			"artists": tr.Artists,
			"uri":     tr.URI,
		})
	}
	return out
}

func playlistMap(p spotify.Playlist, preview []spotify.TrackRef) map[string]any {
	m := map[string]any{
		"id":            p.ID,
		"name":          p.Name,
		"description":   p.Description,
		"uri":           p.URI,
		"external_urls": map[string]any{"spotify": p.URL},
		"tracks":        map[string]any{"total": p.TrackCount},
	}
	if p.CoverImageURL != "" {
		m["cover_image_url"] = p.CoverImageURL
	}
	if preview != nil {
		m["tracks_preview"] = trackMaps(preview)
	}
	return m
}
