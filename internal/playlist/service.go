// Package playlist exposes direct playlist views and edits outside the
// orchestration loop.
package playlist

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/RahulPulidindi/tunesmith/internal/agent"
	"github.com/RahulPulidindi/tunesmith/internal/spotify"
)

// Catalog is the slice of the toolset the service needs.
type Catalog interface {
	Playlist(ctx context.Context, tctx agent.ToolContext, playlistID string) (*spotify.Playlist, error)
	PlaylistItems(ctx context.Context, tctx agent.ToolContext, playlistID string, offset, limit int) (*spotify.ItemsPage, error)
	RemoveTrack(ctx context.Context, tctx agent.ToolContext, playlistID, trackURI string) (string, error)
}

// Service reads and edits playlists directly, without going through the
// reasoning loop.
type Service struct {
	catalog  Catalog
	pageSize int
	log      *log.Logger
}

// NewService builds the service. A non-positive pageSize falls back to the
// Spotify page maximum of 100.
func NewService(catalog Catalog, pageSize int, logger *log.Logger) *Service {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Service{catalog: catalog, pageSize: pageSize, log: logger}
}

// RemoveResult reports a removal: the playlist's new snapshot and its
// authoritative track count afterwards.
type RemoveResult struct {
	SnapshotID    string `json:"snapshot_id"`
	NewTrackCount int    `json:"new_track_count"`
}

// ListAllTracks pages through the playlist until exhausted and returns every
// track in playlist order. Termination follows the raw item count: a page may
// hold fewer tracks than items when ghost or episode entries were filtered.
func (s *Service) ListAllTracks(ctx context.Context, tctx agent.ToolContext, playlistID string) ([]spotify.TrackRef, error) {
	var all []spotify.TrackRef
	offset := 0
	for {
		page, err := s.catalog.PlaylistItems(ctx, tctx, playlistID, offset, s.pageSize)
		if err != nil {
			return nil, fmt.Errorf("listing playlist %s at offset %d: %w", playlistID, offset, err)
		}
		all = append(all, page.Tracks...)
		if page.Fetched < s.pageSize || offset+page.Fetched >= page.Total {
			return all, nil
		}
		offset += s.pageSize
	}
}

// RemoveTrack removes every occurrence of the track and recounts from the
// source rather than assuming how many occurrences there were.
func (s *Service) RemoveTrack(ctx context.Context, tctx agent.ToolContext, playlistID, trackURI string) (*RemoveResult, error) {
	snapshot, err := s.catalog.RemoveTrack(ctx, tctx, playlistID, trackURI)
	if err != nil {
		return nil, err
	}
	p, err := s.catalog.Playlist(ctx, tctx, playlistID)
	if err != nil {
		return nil, fmt.Errorf("recounting playlist %s after removal: %w", playlistID, err)
	}
	s.log.Debug("track removed", "playlist_id", playlistID, "track_uri", trackURI, "new_count", p.TrackCount)
	return &RemoveResult{SnapshotID: snapshot, NewTrackCount: p.TrackCount}, nil
}
