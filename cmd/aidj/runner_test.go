package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"

	"github.com/ewilliams-labs/aidj/internal/adapters/memory"
	"github.com/ewilliams-labs/aidj/internal/app"
	"github.com/ewilliams-labs/aidj/internal/config"
	"github.com/ewilliams-labs/aidj/internal/core/domain"
	"github.com/ewilliams-labs/aidj/internal/core/ports"
	"github.com/ewilliams-labs/aidj/internal/logging"
)

type stubModel struct{ answer string }

func (m stubModel) Complete(ctx context.Context, modelID string, req ports.CompletionRequest) (string, error) {
	return m.answer, nil
}

type stubCatalog struct{}

func (stubCatalog) Search(ctx context.Context, query string, limit int, auth oauth2.TokenSource) ([]ports.CatalogTrack, error) {
	title, artist, ok := strings.Cut(strings.TrimPrefix(query, "track:"), " artist:")
	if !ok {
		return nil, nil
	}
	return []ports.CatalogTrack{{URI: "spotify:track:" + title, Name: title, ArtistName: artist}}, nil
}

func (stubCatalog) CurrentUserID(ctx context.Context, auth oauth2.TokenSource) (string, error) {
	return "me", nil
}

func (stubCatalog) CreatePlaylist(ctx context.Context, ownerID, name, description string, auth oauth2.TokenSource) (domain.PublishedPlaylist, error) {
	return domain.PublishedPlaylist{ID: "p1", URL: "https://open.spotify.com/playlist/p1"}, nil
}

func (stubCatalog) AddTracks(ctx context.Context, playlistID string, uris []string, auth oauth2.TokenSource) error {
	return nil
}

func runCLI(t *testing.T, answer, stdin string, args ...string) (string, error) {
	t.Helper()
	store := memory.NewStore()
	var out bytes.Buffer

	r := NewRunner(RunnerOpts{
		Logger: logging.Discard(),
		Output: &out,
		Input:  strings.NewReader(stdin),
		Open: func(ctx context.Context, cmd *cli.Command) (*app.App, error) {
			cfg := config.DefaultConfig()
			cfg.Storage.Driver = config.DriverMemory
			return app.Assemble(cfg, logging.Discard(), app.Ports{
				Completion: stubModel{answer: answer},
				Searcher:   stubCatalog{},
				Playlists:  stubCatalog{},
				Store:      store,
			}, time.Second), nil
		},
	})

	root := &cli.Command{Name: "aidj", Flags: globalFlags(), Commands: r.register()}
	err := root.Run(context.Background(), append([]string{"aidj"}, args...))
	return out.String(), err
}

const twoSongs = `{"songs": ["Teardrop - Massive Attack", "Roads - Portishead"], "playlist_name": "Bristol"}`

func TestGenerate(t *testing.T) {
	t.Run("dry run without token", func(t *testing.T) {
		out, err := runCLI(t, twoSongs, "", "generate", "bristol", "sound")
		require.NoError(t, err)
		assert.Contains(t, out, "Bristol")
		assert.Contains(t, out, "Dry run")
		assert.Contains(t, out, "Teardrop - Massive Attack")
		assert.Contains(t, out, "Roads - Portishead")
	})

	t.Run("publishes with token", func(t *testing.T) {
		out, err := runCLI(t, twoSongs, "", "generate", "--token", "tok", "--json", "bristol sound")
		require.NoError(t, err)

		var got struct {
			PlaylistURL string `json:"playlist_url"`
			TrackCount  int    `json:"tracks_count"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, "https://open.spotify.com/playlist/p1", got.PlaylistURL)
		assert.Equal(t, 2, got.TrackCount)
	})

	t.Run("missing prompt", func(t *testing.T) {
		_, err := runCLI(t, twoSongs, "", "generate")
		assert.ErrorIs(t, err, errMissingArgument)
	})

	t.Run("no matches lists suggestions", func(t *testing.T) {
		out, err := runCLI(t, `{"songs": ["mystery"]}`, "", "generate", "anything")
		assert.ErrorIs(t, err, domain.ErrNoMatches)
		assert.Contains(t, out, "mystery")
	})
}

func TestBatch(t *testing.T) {
	stdin := "# weekend\nbristol sound\n\nlate night drive\n"

	out, err := runCLI(t, twoSongs, stdin, "batch", "--json", "--workers", "2")
	require.NoError(t, err)

	var lines []batchLine
	require.NoError(t, json.Unmarshal([]byte(out), &lines))
	require.Len(t, lines, 2)
	assert.Equal(t, "bristol sound", lines[0].Prompt)
	assert.Equal(t, "late night drive", lines[1].Prompt)
	for _, l := range lines {
		assert.Empty(t, l.Error)
		assert.Equal(t, 2, l.TrackCount)
	}
}

func TestBatch_Empty(t *testing.T) {
	_, err := runCLI(t, twoSongs, "# nothing here\n", "batch")
	assert.ErrorIs(t, err, errMissingArgument)
}

func TestHistory_Empty(t *testing.T) {
	out, err := runCLI(t, twoSongs, "", "history", "--user", "nobody")
	require.NoError(t, err)
	assert.Contains(t, out, "No playlists yet.")
}

func TestAsk(t *testing.T) {
	answer := `{"answer": "Trip hop began in Bristol.", "context": "Early 90s", "examples": ["Massive Attack"], "suggestions": ["Tricky"]}`

	out, err := runCLI(t, answer, "", "ask", "where", "did", "trip", "hop", "start?")
	require.NoError(t, err)
	assert.Contains(t, out, "Trip hop began in Bristol.")
	assert.Contains(t, out, "Massive Attack")
	assert.Contains(t, out, "Tricky")
}

func TestReadPrompts(t *testing.T) {
	prompts, err := readPrompts(strings.NewReader("  first  \n#skip\n\nsecond\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, prompts)
}
