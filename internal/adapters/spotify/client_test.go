package spotify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/ewilliams-labs/aidj/internal/core/ports"
	"github.com/ewilliams-labs/aidj/internal/logging"
)

// --- Helpers ---

func staticToken(access string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: access, TokenType: "Bearer"})
}

func newTestClient(t *testing.T, handler http.HandlerFunc, cfg Config) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	cfg.BaseURL = ts.URL
	if cfg.TokenURL != "" {
		cfg.TokenURL = ts.URL + cfg.TokenURL
	}
	cfg.RetryBackoff = time.Millisecond
	return NewClient(ts.Client(), cfg, logging.Discard())
}

const searchBody = `{
	"tracks": {
		"items": [
			{
				"id": "3n3Ppam7vgaVa1iaRUc9Lp",
				"uri": "spotify:track:3n3Ppam7vgaVa1iaRUc9Lp",
				"name": "Mr. Brightside",
				"popularity": 88,
				"artists": [ { "name": "The Killers" } ],
				"album": {
					"name": "Hot Fuss",
					"images": [ { "url": "http://img.com/hf.jpg" } ]
				}
			},
			{
				"id": "abc",
				"name": "Somebody Told Me",
				"popularity": 70,
				"artists": [ { "name": "The Killers" }, { "name": "Guest" } ],
				"album": { "name": "Hot Fuss", "images": [] }
			}
		]
	}
}`

// --- Tests ---

func TestSearch(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		response   string
		limit      int
		wantLimit  string
		want       []ports.CatalogTrack
		expectErr  bool
	}{
		{
			name:       "maps candidates in order",
			statusCode: http.StatusOK,
			response:   searchBody,
			limit:      1,
			wantLimit:  "1",
			want: []ports.CatalogTrack{
				{
					URI:         "spotify:track:3n3Ppam7vgaVa1iaRUc9Lp",
					Name:        "Mr. Brightside",
					ArtistName:  "The Killers",
					Popularity:  88,
					AlbumName:   "Hot Fuss",
					AlbumArtURL: "http://img.com/hf.jpg",
				},
				{
					URI:        "spotify:track:abc",
					Name:       "Somebody Told Me",
					ArtistName: "The Killers, Guest",
					Popularity: 70,
					AlbumName:  "Hot Fuss",
				},
			},
		},
		{
			name:       "empty result is not an error",
			statusCode: http.StatusOK,
			response:   `{ "tracks": { "items": [] } }`,
			limit:      0,
			wantLimit:  "1",
			want:       []ports.CatalogTrack{},
		},
		{
			name:       "unauthorized",
			statusCode: http.StatusUnauthorized,
			response:   `{"error":{"status":401,"message":"The access token expired"}}`,
			limit:      1,
			wantLimit:  "1",
			expectErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/search", r.URL.Path)
				assert.Equal(t, "track:mr brightside artist:the killers", r.URL.Query().Get("q"))
				assert.Equal(t, "track", r.URL.Query().Get("type"))
				assert.Equal(t, tt.wantLimit, r.URL.Query().Get("limit"))
				assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.response))
			}, Config{})

			got, err := c.Search(context.Background(), "track:Mr. Brightside artist:The Killers", tt.limit, staticToken("user-token"))

			if tt.expectErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "The access token expired")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSearch_ClientCredentialsFallback(t *testing.T) {
	var tokenCalls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			tokenCalls.Add(1)
			id, secret, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "id", id)
			assert.Equal(t, "secret", secret)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"app-token","token_type":"bearer","expires_in":3600}`))
		case "/search":
			assert.Equal(t, "Bearer app-token", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(searchBody))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}, Config{ClientID: "id", ClientSecret: "secret", TokenURL: "/token"})

	for i := 0; i < 2; i++ {
		got, err := c.Search(context.Background(), "Mr. Brightside", 1, nil)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	}
	assert.Equal(t, int32(1), tokenCalls.Load(), "app token is cached")
}

func TestSearch_NoCredentials(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}, Config{})

	_, err := c.Search(context.Background(), "x", 1, nil)
	assert.ErrorContains(t, err, "no access token")
}

func TestCurrentUserID(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		response   string
		want       string
		expectErr  bool
	}{
		{"ok", http.StatusOK, `{"id":"wizzler","display_name":"W"}`, "wizzler", false},
		{"missing id", http.StatusOK, `{}`, "", true},
		{"forbidden", http.StatusForbidden, `{}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/me", r.URL.Path)
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.response))
			}, Config{})

			got, err := c.CurrentUserID(context.Background(), staticToken("user-token"))
			if tt.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCreatePlaylist(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/users/wizzler/playlists", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body createPlaylistRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, createPlaylistRequest{Name: "Gym", Description: "Created by AI DJ", Public: true}, body)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"pl1","external_urls":{"spotify":"https://open.spotify.com/playlist/pl1"}}`))
	}, Config{})

	got, err := c.CreatePlaylist(context.Background(), "wizzler", "Gym", "Created by AI DJ", staticToken("user-token"))

	require.NoError(t, err)
	assert.Equal(t, "pl1", got.ID)
	assert.Equal(t, "https://open.spotify.com/playlist/pl1", got.URL)
}

func TestAddTracks(t *testing.T) {
	tests := []struct {
		name       string
		count      int
		statusCode int
		wantCalls  int
		expectErr  bool
	}{
		{"single batch", 3, http.StatusCreated, 1, false},
		{"split into batches", 150, http.StatusCreated, 2, false},
		{"no tracks", 0, http.StatusCreated, 0, false},
		{"rejected", 3, http.StatusForbidden, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sizes []int
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/playlists/pl1/tracks", r.URL.Path)
				raw, _ := io.ReadAll(r.Body)
				var body addTracksRequest
				require.NoError(t, json.Unmarshal(raw, &body))
				sizes = append(sizes, len(body.URIs))
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(`{"snapshot_id":"s"}`))
			}, Config{})

			uris := make([]string, tt.count)
			for i := range uris {
				uris[i] = "spotify:track:x"
			}

			err := c.AddTracks(context.Background(), "pl1", uris, staticToken("user-token"))

			if tt.expectErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Len(t, sizes, tt.wantCalls)
			if tt.count == 150 {
				assert.Equal(t, []int{100, 50}, sizes)
			}
		})
	}
}

func TestRateLimiterPacesRequests(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"me"}`))
	}, Config{RequestsPerSecond: 20})

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.CurrentUserID(context.Background(), staticToken("t"))
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}
