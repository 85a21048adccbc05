package spotify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"

	"github.com/ewilliams-labs/aidj/internal/core/domain"
)

// Spotify accepts at most 100 URIs per add-items call.
const maxTracksPerRequest = 100

// CurrentUserID returns the id of the user the token belongs to.
func (c *Client) CurrentUserID(ctx context.Context, auth oauth2.TokenSource) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/me", nil, auth)
	if err != nil {
		return "", fmt.Errorf("spotify adapter: current user: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", statusError("current user", resp)
	}

	var user spotifyUser
	if err := decodeJSON(resp, &user); err != nil {
		return "", err
	}
	if user.ID == "" {
		return "", fmt.Errorf("spotify adapter: current user: empty id")
	}
	return user.ID, nil
}

// CreatePlaylist creates a public playlist owned by ownerID.
func (c *Client) CreatePlaylist(ctx context.Context, ownerID, name, description string, auth oauth2.TokenSource) (domain.PublishedPlaylist, error) {
	path := fmt.Sprintf("/users/%s/playlists", url.PathEscape(ownerID))
	body := createPlaylistRequest{Name: name, Description: description, Public: true}

	resp, err := c.do(ctx, http.MethodPost, path, body, auth)
	if err != nil {
		return domain.PublishedPlaylist{}, fmt.Errorf("spotify adapter: create playlist: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return domain.PublishedPlaylist{}, statusError("create playlist", resp)
	}

	var pl spotifyPlaylist
	if err := decodeJSON(resp, &pl); err != nil {
		return domain.PublishedPlaylist{}, err
	}

	return domain.PublishedPlaylist{ID: pl.ID, URL: pl.ExternalURLs.Spotify}, nil
}

// AddTracks appends uris to the playlist in batches.
func (c *Client) AddTracks(ctx context.Context, playlistID string, uris []string, auth oauth2.TokenSource) error {
	path := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))

	for start := 0; start < len(uris); start += maxTracksPerRequest {
		batch := uris[start:min(start+maxTracksPerRequest, len(uris))]

		resp, err := c.do(ctx, http.MethodPost, path, addTracksRequest{URIs: batch}, auth)
		if err != nil {
			return fmt.Errorf("spotify adapter: add tracks: %w", err)
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return statusError("add tracks", resp)
		}
		_ = resp.Body.Close()
	}
	return nil
}
