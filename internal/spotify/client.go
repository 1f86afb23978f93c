// Package spotify provides a wrapper around the Spotify Web API.
package spotify

import (
	"context"
	"fmt"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

// Client wraps the Spotify API client with the operations the agent's tools
// and the playlist view need.
type Client struct {
	api *spotify.Client
}

// New creates a new Spotify client wrapper.
// The underlying client should already be authenticated.
func New(api *spotify.Client) *Client {
	return &Client{api: api}
}

// ClientFor builds a wrapper authenticated with the given token. The token is
// used as-is; refreshing is the credential store's job, not this client's.
func ClientFor(token *oauth2.Token) *Client {
	httpClient := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(token))
	return New(spotify.New(httpClient))
}

// UserID returns the current user's Spotify ID.
func (c *Client) UserID(ctx context.Context) (string, error) {
	user, err := c.api.CurrentUser(ctx)
	if err != nil {
		return "", fmt.Errorf("getting current user: %w", err)
	}
	return user.ID, nil
}

// CurrentUser returns the current user's ID and display name.
func (c *Client) CurrentUser(ctx context.Context) (id, displayName string, err error) {
	user, err := c.api.CurrentUser(ctx)
	if err != nil {
		return "", "", fmt.Errorf("getting current user: %w", err)
	}
	return user.ID, user.DisplayName, nil
}
