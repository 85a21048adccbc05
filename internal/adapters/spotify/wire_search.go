package spotify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/oauth2"

	"github.com/ewilliams-labs/aidj/internal/core/ports"
)

const maxSearchLimit = 50

// Search runs a track search and returns the candidates in Spotify's
// relevance order. An empty result is not an error.
func (c *Client) Search(ctx context.Context, query string, limit int, auth oauth2.TokenSource) ([]ports.CatalogTrack, error) {
	limit = min(max(limit, 1), maxSearchLimit)

	params := url.Values{}
	params.Set("q", normalizeQuery(query))
	params.Set("type", "track")
	params.Set("limit", strconv.Itoa(limit))

	resp, err := c.do(ctx, http.MethodGet, "/search?"+params.Encode(), nil, auth)
	if err != nil {
		return nil, fmt.Errorf("spotify adapter: search request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("search", resp)
	}

	var body searchResponse
	if err := decodeJSON(resp, &body); err != nil {
		return nil, err
	}

	tracks := make([]ports.CatalogTrack, 0, len(body.Tracks.Items))
	for _, item := range body.Tracks.Items {
		tracks = append(tracks, item.toCatalog())
	}
	return tracks, nil
}
