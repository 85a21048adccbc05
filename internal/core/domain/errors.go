package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidInput marks a missing or malformed caller field.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRateLimited is returned by completion adapters when the provider throttles.
	ErrRateLimited = errors.New("rate limited")
	// ErrModelUnavailable means the completion service could not produce output.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrNoMatches means no suggestion resolved to a catalog track.
	ErrNoMatches = errors.New("no tracks found matching the criteria")
	// ErrPublish marks a failure creating or populating a playlist.
	ErrPublish = errors.New("publish failed")
	// ErrNotFound is returned by stores for unknown keys.
	ErrNotFound = errors.New("not found")
)

// InputError names the offending field.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("missing required parameter: %s", e.Field)
}

func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NoMatchesError carries the diagnostics returned with a 404.
type NoMatchesError struct {
	ModelID     string
	Prompt      string
	Suggestions []string
	Parameters  map[string]any
}

func (e *NoMatchesError) Error() string {
	return fmt.Sprintf("%s (model %s, %d suggestions)", ErrNoMatches.Error(), e.ModelID, len(e.Suggestions))
}

func (e *NoMatchesError) Is(target error) bool {
	return target == ErrNoMatches
}

// PublishStage names the publisher step that failed.
type PublishStage string

const (
	StageIdentity  PublishStage = "identity"
	StageCreate    PublishStage = "create"
	StageAddTracks PublishStage = "add_tracks"
)

// PublishError wraps the underlying playlist service failure.
type PublishError struct {
	Stage PublishStage
	// PlaylistURL is set when the playlist was created before the failure.
	PlaylistURL string
	Err         error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s: %v", e.Stage, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

func (e *PublishError) Is(target error) bool {
	return target == ErrPublish
}

// StatusCode classifies err for HTTP-style callers.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrPublish):
		return http.StatusInternalServerError
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoMatches), errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrModelUnavailable), errors.Is(err, ErrRateLimited):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
