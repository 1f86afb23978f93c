package agent

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/RahulPulidindi/tunesmith/internal/spotify"
)

// Outcome types.
const (
	OutcomePlaylist = "playlist"
	OutcomeGeneric  = "generic"
)

// Outcome is the classified result of a run: either a structured playlist
// payload or the run's final text.
type Outcome struct {
	Type     string
	Playlist *PlaylistOutcome
	Message  string
}

// PlaylistOutcome is the structured playlist payload returned to clients.
type PlaylistOutcome struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Description   string             `json:"description"`
	URL           string             `json:"url"`
	CoverImageURL string             `json:"cover_image_url,omitempty"`
	TrackCount    int                `json:"track_count"`
	TracksPreview []spotify.TrackRef `json:"tracks_preview"`
}

// ItemsFetcher fetches playlist tracks for preview backfill.
type ItemsFetcher interface {
	PlaylistItems(ctx context.Context, tctx ToolContext, playlistID string, offset, limit int) (*spotify.ItemsPage, error)
}

// Classifier inspects a finished trace and decides whether the run produced
// a playlist. When several steps carry playlist results, the most recent one
// wins.
type Classifier struct {
	items        ItemsFetcher
	previewLimit int
	log          *log.Logger
}

// NewClassifier builds a Classifier. items may be nil, in which case missing
// previews stay empty.
func NewClassifier(items ItemsFetcher, previewLimit int, logger *log.Logger) *Classifier {
	if previewLimit <= 0 {
		previewLimit = 5
	}
	return &Classifier{items: items, previewLimit: previewLimit, log: logger}
}

// Classify scans the trace newest-first for a successful playlist-shaped
// result. Anything less than the full required shape (id, name, Spotify URL)
// degrades to a generic outcome carrying finalText.
func (c *Classifier) Classify(ctx context.Context, tctx ToolContext, trace *Trace, finalText string) Outcome {
	for i := trace.Len() - 1; i >= 0; i-- {
		call := trace.Steps[i].Call
		if call.Failed() {
			continue
		}
		p, ok := playlistShaped(call.Result)
		if !ok {
			continue
		}
		if len(p.TracksPreview) == 0 && p.TrackCount > 0 && c.items != nil {
			page, err := c.items.PlaylistItems(ctx, tctx, p.ID, 0, c.previewLimit)
			if err != nil {
				c.log.Warn("preview backfill failed", "playlist_id", p.ID, "error", err)
			} else {
				p.TracksPreview = page.Tracks
			}
		}
		if p.TracksPreview == nil {
			p.TracksPreview = []spotify.TrackRef{}
		}
		return Outcome{Type: OutcomePlaylist, Playlist: p}
	}
	return Outcome{Type: OutcomeGeneric, Message: finalText}
}

// playlistShaped extracts a playlist payload from a tool result, requiring
// id, name, and a Spotify external URL.
func playlistShaped(result map[string]any) (*PlaylistOutcome, bool) {
	id, _ := result["id"].(string)
	name, _ := result["name"].(string)
	url := externalSpotifyURL(result["external_urls"])
	if id == "" || name == "" || url == "" {
		return nil, false
	}
	p := &PlaylistOutcome{ID: id, Name: name, URL: url}
	p.Description, _ = result["description"].(string)
	p.CoverImageURL, _ = result["cover_image_url"].(string)
	if tracks, ok := result["tracks"].(map[string]any); ok {
		if n, ok := asInt(tracks["total"]); ok {
			p.TrackCount = n
		}
	}
	p.TracksPreview = trackRefs(result["tracks_preview"])
	return p, true
}

func externalSpotifyURL(raw any) string {
	switch urls := raw.(type) {
	case map[string]any:
		s, _ := urls["spotify"].(string)
		return s
	case map[string]string:
		return urls["spotify"]
	default:
		return ""
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func trackRefs(raw any) []spotify.TrackRef {
	switch items := raw.(type) {
	case []spotify.TrackRef:
		return items
	case []map[string]any:
		out := make([]spotify.TrackRef, 0, len(items))
		for _, item := range items {
			out = append(out, trackRefFromMap(item))
		}
		return out
	case []any:
		out := make([]spotify.TrackRef, 0, len(items))
		for _, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			out = append(out, trackRefFromMap(m))
		}
		return out
	default:
		return nil
	}
}

func trackRefFromMap(m map[string]any) spotify.TrackRef {
	tr := spotify.TrackRef{}
	tr.ID, _ = m["id"].(string)
	tr.Name, _ = m["name"].(string)
	tr.URI, _ = m["uri"].(string)
	switch artists := m["artists"].(type) {
	case []string:
		tr.Artists = artists
	case []any:
		for _, a := range artists {
			if s, ok := a.(string); ok {
				tr.Artists = append(tr.Artists, s)
			}
		}
	}
	return tr
}
