package spotify

import (
	"context"
	"fmt"

	"github.com/zmb3/spotify/v2"
)

const maxTracksPerRequest = 100

// CreatePlaylist creates a private playlist for the current user, adds the
// given tracks in batches, and returns the authoritative playlist details
// with a preview of at most previewLimit tracks.
func (c *Client) CreatePlaylist(ctx context.Context, name, description string, trackURIs []string, previewLimit int) (*CreatedPlaylist, error) {
	userID, err := c.UserID(ctx)
	if err != nil {
		return nil, err
	}

	created, err := c.api.CreatePlaylistForUser(ctx, userID, name, description, false, false)
	if err != nil {
		return nil, fmt.Errorf("creating playlist: %w", err)
	}

	if err := c.AddTracks(ctx, created.ID.String(), trackURIs); err != nil {
		return nil, err
	}

	// Re-fetch so the reported name, URL, count, and cover come from the
	// remote service rather than from our own arguments.
	full, err := c.api.GetPlaylist(ctx, created.ID)
	if err != nil {
		return nil, fmt.Errorf("fetching created playlist: %w", err)
	}

	result := &CreatedPlaylist{Playlist: convertPlaylist(full)}

	if previewLimit > 0 {
		page, err := c.PlaylistItems(ctx, created.ID.String(), 0, previewLimit)
		if err != nil {
			return nil, err
		}
		result.Preview = page.Tracks
	}

	return result, nil
}

// AddTracks adds tracks to a playlist, batching for large sets.
// Spotify allows max 100 tracks per request.
func (c *Client) AddTracks(ctx context.Context, playlistID string, trackURIs []string) error {
	if len(trackURIs) == 0 {
		return nil
	}

	ids := make([]spotify.ID, len(trackURIs))
	for i, uri := range trackURIs {
		ids[i] = uriToID(uri)
	}

	for i := 0; i < len(ids); i += maxTracksPerRequest {
		end := min(i+maxTracksPerRequest, len(ids))
		batch := ids[i:end]

		if _, err := c.api.AddTracksToPlaylist(ctx, spotify.ID(playlistID), batch...); err != nil {
			return fmt.Errorf("adding tracks (batch %d-%d): %w", i+1, end, err)
		}
	}

	return nil
}

// Playlist fetches playlist metadata, including the authoritative track count.
func (c *Client) Playlist(ctx context.Context, id string) (*Playlist, error) {
	full, err := c.api.GetPlaylist(ctx, spotify.ID(id))
	if err != nil {
		return nil, fmt.Errorf("fetching playlist: %w", err)
	}
	p := convertPlaylist(full)
	return &p, nil
}

// PlaylistItems fetches one page of a playlist's tracks.
func (c *Client) PlaylistItems(ctx context.Context, id string, offset, limit int) (*ItemsPage, error) {
	page, err := c.api.GetPlaylistItems(ctx, spotify.ID(id), spotify.Limit(limit), spotify.Offset(offset))
	if err != nil {
		return nil, fmt.Errorf("fetching playlist items: %w", err)
	}
	return &ItemsPage{
		Tracks:  convertItems(page),
		Fetched: len(page.Items),
		Offset:  offset,
		Limit:   limit,
		Total:   int(page.Total),
	}, nil
}

// RemoveTrack removes all occurrences of a track from a playlist and returns
// the new snapshot ID. Exact removal semantics are owned by Spotify.
func (c *Client) RemoveTrack(ctx context.Context, playlistID, trackURI string) (string, error) {
	snapshot, err := c.api.RemoveTracksFromPlaylist(ctx, spotify.ID(playlistID), uriToID(trackURI))
	if err != nil {
		return "", fmt.Errorf("removing track: %w", err)
	}
	return snapshot, nil
}
