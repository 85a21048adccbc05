package rest

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/ewilliams-labs/aidj/internal/core/domain"
)

// maxBodyBytes leaves room for a base64 image.
const maxBodyBytes = 8 << 20

type errorResponse struct {
	Error string `json:"error"`
}

type noMatchesResponse struct {
	Error       string         `json:"error"`
	Prompt      string         `json:"prompt"`
	ModelUsed   string         `json:"model_used"`
	Parameters  map[string]any `json:"parameters"`
	Suggestions []string       `json:"suggestions"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps a core error onto a status code. No-match errors
// carry their diagnostics so the caller can see what the model suggested.
func writeServiceError(w http.ResponseWriter, err error) {
	var nm *domain.NoMatchesError
	if errors.As(err, &nm) {
		suggestions := nm.Suggestions
		if suggestions == nil {
			suggestions = []string{}
		}
		writeJSON(w, http.StatusNotFound, noMatchesResponse{
			Error:       domain.ErrNoMatches.Error(),
			Prompt:      nm.Prompt,
			ModelUsed:   nm.ModelID,
			Parameters:  nm.Parameters,
			Suggestions: suggestions,
		})
		return
	}
	writeError(w, domain.StatusCode(err), err.Error())
}

func isJSONContentType(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	return err == nil && mediaType == "application/json"
}

// decodeJSON enforces the content type and decodes the body into v. It writes
// the error response itself and reports whether the caller should continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if !isJSONContentType(r) {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// userToken returns the caller's Spotify token from the body field or an
// Authorization bearer header. Nil means none was sent.
func userToken(r *http.Request, bodyToken string) oauth2.TokenSource {
	token := strings.TrimSpace(bodyToken)
	if token == "" {
		if auth := r.Header.Get("Authorization"); len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
			token = strings.TrimSpace(auth[7:])
		}
	}
	if token == "" {
		return nil
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}
