package domain

import (
	"strings"

	"github.com/google/uuid"
)

const (
	// DefaultPlaylistName is used when the model omits a name.
	DefaultPlaylistName = "AI DJ Playlist"
	// DefaultDesiredCount applies when the caller does not pass a count.
	DefaultDesiredCount = 25
	// MaxDesiredCount is the upper bound on playlist length.
	MaxDesiredCount = 50
)

// InterpretationRequest is the immutable input to the interpretation step.
type InterpretationRequest struct {
	RawPrompt    string
	DesiredCount int
	RequestID    string
}

// NewInterpretationRequest validates the prompt and clamps the count into 1..50.
// A zero count means DefaultDesiredCount.
func NewInterpretationRequest(prompt string, desiredCount int) (InterpretationRequest, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return InterpretationRequest{}, &InputError{Field: "prompt"}
	}

	return InterpretationRequest{
		RawPrompt:    prompt,
		DesiredCount: ClampCount(desiredCount),
		RequestID:    uuid.NewString(),
	}, nil
}

// ClampCount maps any integer into the accepted desired count range.
func ClampCount(n int) int {
	switch {
	case n == 0:
		return DefaultDesiredCount
	case n < 1:
		return 1
	case n > MaxDesiredCount:
		return MaxDesiredCount
	default:
		return n
	}
}

// InterpretationResult is the structured outcome of a model interpretation.
type InterpretationResult struct {
	Songs        []string `json:"songs"`
	PlaylistName string   `json:"playlist_name"`
	// Parameters carries extra keys the model returned (genres, mood, ...) and
	// defaults recorded when the model was unavailable.
	Parameters map[string]any `json:"-"`
}

// EmptyResult returns a result with no songs and the default name.
func EmptyResult() InterpretationResult {
	return InterpretationResult{Songs: []string{}, PlaylistName: DefaultPlaylistName}
}

// Truncate enforces len(Songs) <= n.
func (r InterpretationResult) Truncate(n int) InterpretationResult {
	if n >= 0 && len(r.Songs) > n {
		r.Songs = r.Songs[:n]
	}
	return r
}

// ParameterMap flattens the result into the map stored with history records.
func (r InterpretationResult) ParameterMap() map[string]any {
	out := make(map[string]any, len(r.Parameters)+2)
	for k, v := range r.Parameters {
		out[k] = v
	}
	songs := make([]string, len(r.Songs))
	copy(songs, r.Songs)
	out["songs"] = songs
	out["playlist_name"] = r.PlaylistName
	return out
}
