package spotify

import (
	"strings"

	"github.com/zmb3/spotify/v2"
)

// TrackRef identifies one track. The URI is the stable identity used for
// removal from playlists.
type TrackRef struct {
	URI     string   `json:"uri"`
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Artists []string `json:"artists"`
}

// Playlist is the metadata of one playlist.
type Playlist struct {
	ID            string
	Name          string
	Description   string
	URL           string
	URI           string
	CoverImageURL string
	TrackCount    int
}

// CreatedPlaylist is the result of playlist creation: authoritative metadata
// plus a short preview of its tracks.
type CreatedPlaylist struct {
	Playlist
	Preview []TrackRef
}

// ItemsPage is one page of a playlist's tracks. Fetched counts the raw items
// in the page before episode and ghost filtering; pagination must advance on
// it rather than on len(Tracks), which can come up short on a full page.
type ItemsPage struct {
	Tracks  []TrackRef
	Fetched int
	Offset  int
	Limit   int
	Total   int
}

// convertFullTrack maps an API track to a TrackRef.
func convertFullTrack(t spotify.FullTrack) TrackRef {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}
	return TrackRef{
		URI:     string(t.URI),
		ID:      t.ID.String(),
		Name:    t.Name,
		Artists: artists,
	}
}

// convertPlaylist maps an API playlist to our Playlist shape.
func convertPlaylist(p *spotify.FullPlaylist) Playlist {
	cover := ""
	if len(p.Images) > 0 {
		cover = p.Images[0].URL
	}
	return Playlist{
		ID:            p.ID.String(),
		Name:          p.Name,
		Description:   p.Description,
		URL:           p.ExternalURLs["spotify"],
		URI:           string(p.URI),
		CoverImageURL: cover,
		TrackCount:    int(p.Tracks.Total),
	}
}

// convertItems extracts TrackRefs from a playlist items page, skipping
// episodes and ghost entries without a URI.
func convertItems(page *spotify.PlaylistItemPage) []TrackRef {
	tracks := make([]TrackRef, 0, len(page.Items))
	for _, item := range page.Items {
		t := item.Track.Track
		if t == nil || t.URI == "" {
			continue
		}
		tracks = append(tracks, convertFullTrack(*t))
	}
	return tracks
}

// uriToID extracts the bare ID from a Spotify URI like "spotify:track:xyz".
// A value without colons is assumed to already be an ID.
func uriToID(uri string) spotify.ID {
	if i := strings.LastIndex(uri, ":"); i >= 0 {
		return spotify.ID(uri[i+1:])
	}
	return spotify.ID(uri)
}
