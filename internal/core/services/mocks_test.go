package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/ewilliams-labs/aidj/internal/core/domain"
	"github.com/ewilliams-labs/aidj/internal/core/ports"
	"github.com/ewilliams-labs/aidj/internal/logging"
)

// --- Completion ---

type completionCall struct {
	modelID string
	req     ports.CompletionRequest
}

type stubCompletion struct {
	mu     sync.Mutex
	calls  []completionCall
	handle func(call int, modelID string, req ports.CompletionRequest) (string, error)
}

func (s *stubCompletion) Complete(ctx context.Context, modelID string, req ports.CompletionRequest) (string, error) {
	s.mu.Lock()
	n := len(s.calls)
	s.calls = append(s.calls, completionCall{modelID: modelID, req: req})
	s.mu.Unlock()
	return s.handle(n, modelID, req)
}

func (s *stubCompletion) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type reply struct {
	text string
	err  error
}

// scripted returns the replies in order, repeating the last one.
func scripted(replies ...reply) *stubCompletion {
	return &stubCompletion{handle: func(call int, _ string, _ ports.CompletionRequest) (string, error) {
		r := replies[min(call, len(replies)-1)]
		return r.text, r.err
	}}
}

func songsJSON(name string, songs ...string) string {
	quoted := make([]string, len(songs))
	for i, s := range songs {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf(`{"songs":[%s],"playlist_name":%q}`, strings.Join(quoted, ","), name)
}

func fiveSongs() []string {
	return []string{
		"Stronger - Kanye West",
		"Can't Hold Us - Macklemore",
		"Titanium - David Guetta",
		"Till I Collapse - Eminem",
		"Levels - Avicii",
	}
}

var errThrottled = fmt.Errorf("bedrock: ThrottlingException: %w", domain.ErrRateLimited)

// --- Catalog ---

type searchCall struct {
	query string
	limit int
}

type stubSearcher struct {
	mu    sync.Mutex
	calls []searchCall
	// fail lists query substrings that return an error.
	fail []string
	// miss lists query substrings that return no candidates.
	miss []string
	// uriFor overrides the generated URI for a query substring.
	uriFor map[string]string
}

func (s *stubSearcher) Search(ctx context.Context, query string, limit int, auth oauth2.TokenSource) ([]ports.CatalogTrack, error) {
	s.mu.Lock()
	s.calls = append(s.calls, searchCall{query: query, limit: limit})
	s.mu.Unlock()

	for _, f := range s.fail {
		if strings.Contains(query, f) {
			return nil, errors.New("spotify adapter: search status 401")
		}
	}
	for _, m := range s.miss {
		if strings.Contains(query, m) {
			return []ports.CatalogTrack{}, nil
		}
	}

	uri := "spotify:track:" + strings.ReplaceAll(strings.ToLower(query), " ", "-")
	for k, v := range s.uriFor {
		if strings.Contains(query, k) {
			uri = v
		}
	}
	return []ports.CatalogTrack{{URI: uri, Name: query, ArtistName: "artist", Popularity: 70}}, nil
}

// --- Playlists ---

type stubPlaylists struct {
	userErr   error
	createErr error
	addErr    error

	identityCalls int
	created       []createCall
	added         [][]string
}

type createCall struct {
	ownerID, name, description string
}

func (s *stubPlaylists) CurrentUserID(ctx context.Context, auth oauth2.TokenSource) (string, error) {
	s.identityCalls++
	if s.userErr != nil {
		return "", s.userErr
	}
	return "spotify-user", nil
}

func (s *stubPlaylists) CreatePlaylist(ctx context.Context, ownerID, name, description string, auth oauth2.TokenSource) (domain.PublishedPlaylist, error) {
	s.created = append(s.created, createCall{ownerID: ownerID, name: name, description: description})
	if s.createErr != nil {
		return domain.PublishedPlaylist{}, s.createErr
	}
	return domain.PublishedPlaylist{ID: "pl1", URL: "https://open.spotify.com/playlist/pl1"}, nil
}

func (s *stubPlaylists) AddTracks(ctx context.Context, playlistID string, uris []string, auth oauth2.TokenSource) error {
	s.added = append(s.added, uris)
	return s.addErr
}

// --- Stores ---

type stubHistory struct {
	appendErr error
	getErr    error
	records   map[string][]domain.PlaylistRecord
}

func (s *stubHistory) GetHistory(ctx context.Context, ownerID string) ([]domain.PlaylistRecord, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.records[ownerID], nil
}

func (s *stubHistory) AppendHistory(ctx context.Context, ownerID string, record domain.PlaylistRecord) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	if s.records == nil {
		s.records = make(map[string][]domain.PlaylistRecord)
	}
	s.records[ownerID] = append(s.records[ownerID], record)
	return nil
}

type stubSessions struct {
	turns map[string][]domain.Turn
	err   error
}

func (s *stubSessions) GetTurns(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.turns[sessionID], nil
}

func (s *stubSessions) SaveTurns(ctx context.Context, sessionID string, turns []domain.Turn) error {
	if s.err != nil {
		return s.err
	}
	if s.turns == nil {
		s.turns = make(map[string][]domain.Turn)
	}
	s.turns[sessionID] = turns
	return nil
}

type stubFetcher struct {
	data []byte
	err  error
	urls []string
}

func (s *stubFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	s.urls = append(s.urls, url)
	return s.data, s.err
}

// --- Wiring ---

const testModel = "test-model"

var userToken = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "user-token"})

// newTestInvoker returns an invoker that records waits instead of sleeping.
func newTestInvoker(svc ports.CompletionService, waits *[]time.Duration) *Invoker {
	inv := NewInvoker(svc, 0, logging.Discard())
	inv.sleep = func(ctx context.Context, d time.Duration) error {
		if waits != nil {
			*waits = append(*waits, d)
		}
		return nil
	}
	return inv
}

type pipeline struct {
	completion *stubCompletion
	searcher   *stubSearcher
	playlists  *stubPlaylists
	history    *stubHistory
	invoker    *Invoker
	orch       *Orchestrator
}

func newPipeline(completion *stubCompletion, searcher *stubSearcher, playlists *stubPlaylists, history *stubHistory) *pipeline {
	inv := newTestInvoker(completion, nil)
	publisher := NewPublisher(playlists, logging.Discard())
	publisher.now = func() time.Time { return time.Date(2025, 3, 14, 9, 26, 0, 0, time.UTC) }

	orch := NewOrchestrator(
		NewInterpreter(inv, testModel, 3, logging.Discard()),
		NewResolver(searcher, logging.Discard()),
		publisher,
		history,
		time.Minute,
		logging.Discard(),
	)
	orch.now = func() time.Time { return time.Date(2025, 3, 14, 9, 27, 0, 0, time.UTC) }

	return &pipeline{
		completion: completion,
		searcher:   searcher,
		playlists:  playlists,
		history:    history,
		invoker:    inv,
		orch:       orch,
	}
}
