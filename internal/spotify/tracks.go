package spotify

import (
	"context"
	"fmt"

	"github.com/zmb3/spotify/v2"
)

// SearchTracks searches the catalog for tracks matching the query.
// Zero results is a valid empty answer, not an error.
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]TrackRef, error) {
	result, err := c.api.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("searching tracks: %w", err)
	}

	if result.Tracks == nil {
		return []TrackRef{}, nil
	}

	tracks := make([]TrackRef, 0, len(result.Tracks.Tracks))
	for _, t := range result.Tracks.Tracks {
		tracks = append(tracks, convertFullTrack(t))
	}
	return tracks, nil
}
