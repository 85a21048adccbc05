// Package ollama provides a completion adapter for a local Ollama instance.
// It is the offline stand-in for the managed model provider: the same
// prompts are sent to /api/chat and the raw assistant text is returned.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ewilliams-labs/aidj/internal/core/domain"
	"github.com/ewilliams-labs/aidj/internal/core/ports"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.1:8b"
)

// Client talks to the Ollama chat endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ ports.CompletionService = (*Client)(nil)

type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error,omitempty"`
}

func NewClient(baseURL string) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	// Calls are bounded by the caller's context.
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

// Complete sends one non-streaming chat call. Images ride on the last user
// message, which is where Ollama's vision models read them.
func (c *Client) Complete(ctx context.Context, modelID string, in ports.CompletionRequest) (string, error) {
	if modelID == "" {
		modelID = DefaultModel
	}

	payload := chatRequest{
		Model:    modelID,
		Stream:   false,
		Options:  chatOptions{NumPredict: in.MaxTokens, Temperature: in.Temperature},
		Messages: buildMessages(in),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama: request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("ollama: status %d: %w", resp.StatusCode, domain.ErrRateLimited)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		var failed chatResponse
		_ = json.NewDecoder(resp.Body).Decode(&failed)
		if failed.Error != "" {
			return "", fmt.Errorf("ollama: unexpected status %d: %s", resp.StatusCode, failed.Error)
		}
		return "", fmt.Errorf("ollama: unexpected status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("ollama: decode response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("ollama: %s", parsed.Error)
	}

	return parsed.Message.Content, nil
}

func buildMessages(in ports.CompletionRequest) []chatMessage {
	msgs := make([]chatMessage, 0, len(in.Messages)+1)
	if in.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: in.System})
	}
	for _, m := range in.Messages {
		msgs = append(msgs, chatMessage{Role: m.Role, Content: m.Content})
	}

	if len(in.Images) == 0 {
		return msgs
	}
	images := make([]string, 0, len(in.Images))
	for _, img := range in.Images {
		images = append(images, img.Base64)
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == domain.RoleUser {
			msgs[i].Images = images
			return msgs
		}
	}
	return append(msgs, chatMessage{Role: domain.RoleUser, Images: images})
}
