package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/aidj/internal/core/domain"
	"github.com/ewilliams-labs/aidj/internal/logging"
)

func TestInterpreter_Interpret(t *testing.T) {
	seven := append(fiveSongs(), "One More Time - Daft Punk", "Lose Yourself - Eminem")

	tests := []struct {
		name         string
		replies      []reply
		count        int
		wantCalls    int
		wantSongs    int
		wantName     string
		wantDegraded bool
	}{
		{
			name:      "primary answer is used",
			replies:   []reply{{text: songsJSON("Workout", fiveSongs()...)}},
			count:     5,
			wantCalls: 1,
			wantSongs: 5,
			wantName:  "Workout",
		},
		{
			name:      "truncates to desired count",
			replies:   []reply{{text: songsJSON("Workout", seven...)}},
			count:     5,
			wantCalls: 1,
			wantSongs: 5,
			wantName:  "Workout",
		},
		{
			name:      "empty primary triggers one fallback",
			replies:   []reply{{text: songsJSON("Empty")}, {text: songsJSON("", "A - B", "C - D", "E - F")}},
			count:     5,
			wantCalls: 2,
			wantSongs: 3,
			wantName:  "Empty",
		},
		{
			name:      "unparseable primary triggers fallback",
			replies:   []reply{{text: "I cannot help with that."}, {text: songsJSON("Strict", "A - B")}},
			count:     5,
			wantCalls: 2,
			wantSongs: 1,
			wantName:  "Strict",
		},
		{
			name:      "empty fallback is returned as is",
			replies:   []reply{{text: "{}"}, {text: "nothing"}},
			count:     5,
			wantCalls: 2,
			wantSongs: 0,
			wantName:  domain.DefaultPlaylistName,
		},
		{
			name:      "failed fallback returns primary result",
			replies:   []reply{{text: "{}"}, {err: errors.New("boom")}},
			count:     5,
			wantCalls: 2,
			wantSongs: 0,
			wantName:  domain.DefaultPlaylistName,
		},
		{
			name:         "fatal primary error returns context default",
			replies:      []reply{{err: errors.New("access denied")}},
			count:        5,
			wantCalls:    1,
			wantSongs:    0,
			wantName:     "AI DJ - happy workout pop",
			wantDegraded: true,
		},
		{
			name:         "exhausted throttling returns context default without fallback",
			replies:      []reply{{err: errThrottled}},
			count:        5,
			wantCalls:    3,
			wantSongs:    0,
			wantName:     "AI DJ - happy workout pop",
			wantDegraded: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			stub := scripted(tt.replies...)
			it := NewInterpreter(newTestInvoker(stub, nil), testModel, 3, logging.Discard())

			req, err := domain.NewInterpretationRequest("happy workout pop", tt.count)
			require.NoError(t, err)

			got := it.Interpret(context.Background(), req)

			assert.Equal(t, tt.wantCalls, stub.count())
			assert.Len(t, got.Songs, tt.wantSongs)
			assert.NotNil(t, got.Songs)
			assert.Equal(t, tt.wantName, got.PlaylistName)
			if tt.wantDegraded {
				assert.Equal(t, true, got.Parameters["degraded"])
				assert.Equal(t, []string{"pop"}, got.Parameters["genres"])
			}
		})
	}
}

func TestInterpreter_FallbackIsStricter(t *testing.T) {
	stub := scripted(reply{text: `{"songs":[]}`}, reply{text: songsJSON("x", "A - B")})
	it := NewInterpreter(newTestInvoker(stub, nil), testModel, 3, logging.Discard())

	req, err := domain.NewInterpretationRequest("argentinian rock in spanish", 20)
	require.NoError(t, err)
	it.Interpret(context.Background(), req)

	require.Equal(t, 2, stub.count())
	primary, fallback := stub.calls[0].req, stub.calls[1].req

	assert.Equal(t, TokenBudget(20), primary.MaxTokens)
	assert.Less(t, fallback.MaxTokens, primary.MaxTokens)
	assert.Less(t, fallback.Temperature, primary.Temperature)
	assert.Less(t, len(fallback.System), len(primary.System))

	assert.Contains(t, primary.System, "at the same time")
	assert.Contains(t, primary.System, "leave it out")
	assert.Contains(t, primary.Messages[0].Content, "Return exactly 20 songs")
	assert.Contains(t, primary.Messages[0].Content, req.RequestID)
	assert.Contains(t, fallback.Messages[0].Content, "argentinian rock in spanish")
}

func TestContextDefault_TruncatesLongPrompt(t *testing.T) {
	got := contextDefault("canciones para manejar de noche por la ruta 40")
	assert.Equal(t, "AI DJ - canciones para manejar de noch", got.PlaylistName)
	assert.Empty(t, got.Songs)
}
