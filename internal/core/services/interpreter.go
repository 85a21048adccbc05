package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/ewilliams-labs/aidj/internal/core/domain"
	"github.com/ewilliams-labs/aidj/internal/core/ports"
	"github.com/ewilliams-labs/aidj/internal/logging"
)

const (
	primaryTemperature  = 0.7
	fallbackTemperature = 0.2
)

const primarySystemPrompt = `You are a music expert who turns listening requests into concrete song lists.

Rules:
- Every explicit constraint in the request (artist, genre, country or region, language, era) applies at the same time. A song must satisfy all of them.
- If you are not sure a song satisfies every stated constraint, leave it out.
- Only suggest songs that exist on Spotify, written as "Title - Artist".
- Respond with a single JSON object and nothing else. No prose, no markdown.`

const fallbackSystemPrompt = `Return only JSON: {"songs": ["Title - Artist"], "playlist_name": "name"}. No other text.`

// Interpreter turns a prompt into a song list using the completion model.
type Interpreter struct {
	invoker    *Invoker
	modelID    string
	maxRetries int
	logger     *log.Logger
}

// NewInterpreter returns an Interpreter calling modelID through invoker.
func NewInterpreter(invoker *Invoker, modelID string, maxRetries int, logger *log.Logger) *Interpreter {
	return &Interpreter{
		invoker:    invoker,
		modelID:    modelID,
		maxRetries: maxRetries,
		logger:     logging.Component(logger, "interpreter", "model", modelID),
	}
}

// ModelID names the model used for interpretation.
func (it *Interpreter) ModelID() string {
	return it.modelID
}

// Interpret asks the model for req.DesiredCount songs. An empty answer triggers
// exactly one stricter fallback call. If the first call fails outright the
// context default result is returned instead of an error.
func (it *Interpreter) Interpret(ctx context.Context, req domain.InterpretationRequest) domain.InterpretationResult {
	raw, err := it.invoker.Invoke(ctx, it.modelID, primaryRequest(req), it.maxRetries)
	if err != nil {
		it.logger.Warn("model unavailable, using default parameters", "request_id", req.RequestID, "err", err)
		return contextDefault(req.RawPrompt)
	}

	result := ParseInterpretation(raw)
	if len(result.Songs) > 0 {
		return result.Truncate(req.DesiredCount)
	}

	it.logger.Info("empty song list, retrying with strict prompt", "request_id", req.RequestID)
	raw, err = it.invoker.Invoke(ctx, it.modelID, fallbackRequest(req), 1)
	if err != nil {
		it.logger.Warn("fallback call failed", "request_id", req.RequestID, "err", err)
		return result
	}

	fallback := ParseInterpretation(raw)
	if fallback.PlaylistName == domain.DefaultPlaylistName && result.PlaylistName != domain.DefaultPlaylistName {
		fallback.PlaylistName = result.PlaylistName
	}
	return fallback.Truncate(req.DesiredCount)
}

func primaryRequest(req domain.InterpretationRequest) ports.CompletionRequest {
	user := fmt.Sprintf(`Create a playlist for this request: %s

Return exactly %d songs as JSON:
{"songs": ["Title - Artist", ...], "playlist_name": "a short creative name", "genres": ["..."], "mood": "..."}

Request id: %s`, req.RawPrompt, req.DesiredCount, req.RequestID)

	return ports.CompletionRequest{
		System:      primarySystemPrompt,
		Messages:    []ports.Message{{Role: domain.RoleUser, Content: user}},
		MaxTokens:   TokenBudget(req.DesiredCount),
		Temperature: primaryTemperature,
	}
}

func fallbackRequest(req domain.InterpretationRequest) ports.CompletionRequest {
	user := fmt.Sprintf("List %d real songs matching: %s", req.DesiredCount, req.RawPrompt)
	return ports.CompletionRequest{
		System:      fallbackSystemPrompt,
		Messages:    []ports.Message{{Role: domain.RoleUser, Content: user}},
		MaxTokens:   capTokens(max(400, req.DesiredCount*20+200)),
		Temperature: fallbackTemperature,
	}
}

// contextDefault is the degraded result used when the model cannot be reached.
func contextDefault(prompt string) domain.InterpretationResult {
	return domain.InterpretationResult{
		Songs:        []string{},
		PlaylistName: "AI DJ - " + truncateRunes(strings.TrimSpace(prompt), 30),
		Parameters: map[string]any{
			"genres":       []string{"pop"},
			"mood":         "happy",
			"energy":       0.5,
			"danceability": 0.5,
			"valence":      0.5,
			"popularity":   50,
			"degraded":     true,
		},
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
