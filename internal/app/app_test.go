package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/ewilliams-labs/aidj/internal/adapters/memory"
	"github.com/ewilliams-labs/aidj/internal/config"
	"github.com/ewilliams-labs/aidj/internal/core/domain"
	"github.com/ewilliams-labs/aidj/internal/core/ports"
	"github.com/ewilliams-labs/aidj/internal/logging"
)

type scriptedModel struct {
	answer string
}

func (m *scriptedModel) Complete(ctx context.Context, modelID string, req ports.CompletionRequest) (string, error) {
	return m.answer, nil
}

// fakeCatalog finds every "track:X artist:Y" query and records playlists.
type fakeCatalog struct {
	mu      sync.Mutex
	created []string
	added   []string
}

func (c *fakeCatalog) Search(ctx context.Context, query string, limit int, auth oauth2.TokenSource) ([]ports.CatalogTrack, error) {
	title, rest, ok := strings.Cut(strings.TrimPrefix(query, "track:"), " artist:")
	if !ok {
		return nil, nil
	}
	return []ports.CatalogTrack{{
		URI:        "spotify:track:" + strings.ReplaceAll(strings.ToLower(title), " ", "-"),
		Name:       title,
		ArtistName: rest,
	}}, nil
}

func (c *fakeCatalog) CurrentUserID(ctx context.Context, auth oauth2.TokenSource) (string, error) {
	return "spotify-user", nil
}

func (c *fakeCatalog) CreatePlaylist(ctx context.Context, ownerID, name, description string, auth oauth2.TokenSource) (domain.PublishedPlaylist, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.created = append(c.created, name)
	return domain.PublishedPlaylist{ID: "pl1", URL: "https://open.spotify.com/playlist/pl1"}, nil
}

func (c *fakeCatalog) AddTracks(ctx context.Context, playlistID string, uris []string, auth oauth2.TokenSource) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.added = append(c.added, uris...)
	return nil
}

func newTestApp(t *testing.T, answer string) (*App, *fakeCatalog) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.Driver = config.DriverMemory
	require.NoError(t, cfg.Validate())

	catalog := &fakeCatalog{}
	a := Assemble(cfg, logging.Discard(), Ports{
		Completion: &scriptedModel{answer: answer},
		Searcher:   catalog,
		Playlists:  catalog,
		Store:      memory.NewStore(),
	}, 5*time.Second)
	return a, catalog
}

func post(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestApp_GenerateThenHistory(t *testing.T) {
	a, catalog := newTestApp(t, `{"songs": ["Teardrop - Massive Attack", "Glory Box - Portishead", "Teardrop - Massive Attack"], "playlist_name": "Trip Hop Night"}`)
	h := a.Handler()

	rec := post(t, h, "/playlists", map[string]any{
		"user_id":              "u1",
		"prompt":               "90s trip hop",
		"limit":                3,
		"spotify_access_token": "tok",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var out struct {
		PlaylistURL string `json:"playlist_url"`
		Name        string `json:"playlist_name"`
		TrackCount  int    `json:"tracks_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "https://open.spotify.com/playlist/pl1", out.PlaylistURL)
	assert.Equal(t, "Trip Hop Night", out.Name)
	assert.Equal(t, 2, out.TrackCount, "duplicate suggestion resolves once")
	assert.Equal(t, []string{"Trip Hop Night"}, catalog.created)
	assert.Equal(t, []string{"spotify:track:teardrop", "spotify:track:glory-box"}, catalog.added)

	req := httptest.NewRequest(http.MethodGet, "/users/u1/playlists", nil)
	hist := httptest.NewRecorder()
	h.ServeHTTP(hist, req)
	require.Equal(t, http.StatusOK, hist.Code)
	assert.Contains(t, hist.Body.String(), `"prompt":"90s trip hop"`)
	assert.Contains(t, hist.Body.String(), `"playlist_url":"https://open.spotify.com/playlist/pl1"`)
}

func TestApp_NoMatches(t *testing.T) {
	a, catalog := newTestApp(t, `{"songs": ["untitled"], "playlist_name": "Nothing"}`)

	rec := post(t, a.Handler(), "/playlists", map[string]any{
		"user_id":              "u1",
		"prompt":               "silence",
		"spotify_access_token": "tok",
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"suggestions":["untitled"]`)
	assert.Empty(t, catalog.created)
}

func TestApp_PublishNeedsUserToken(t *testing.T) {
	a, _ := newTestApp(t, `{"songs": ["Teardrop - Massive Attack"]}`)

	rec := post(t, a.Handler(), "/playlists", map[string]any{"user_id": "u1", "prompt": "x"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "spotify_access_token")
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		s, closer, err := OpenStore(ctx, config.StorageConfig{Driver: config.DriverMemory}, "", logging.Discard())
		require.NoError(t, err)
		assert.Nil(t, closer)
		assert.NotNil(t, s)
	})

	t.Run("sqlite", func(t *testing.T) {
		path := t.TempDir() + "/aidj.db"
		s, closer, err := OpenStore(ctx, config.StorageConfig{Driver: config.DriverSQLite, SQLitePath: path}, "", logging.Discard())
		require.NoError(t, err)
		require.NotNil(t, closer)
		defer closer()

		require.NoError(t, s.AppendHistory(ctx, "u1", domain.PlaylistRecord{OwnerID: "u1", PlaylistURL: "url", CreatedAt: time.Now()}))
		records, err := s.GetHistory(ctx, "u1")
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("unknown", func(t *testing.T) {
		_, _, err := OpenStore(ctx, config.StorageConfig{Driver: "redis"}, "", logging.Discard())
		assert.Error(t, err)
	})
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Model.Provider = "openai"

	_, err := New(context.Background(), cfg, logging.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}
