package bedrock

import (
	"encoding/json"
	"fmt"

	"github.com/ewilliams-labs/aidj/internal/core/domain"
	"github.com/ewilliams-labs/aidj/internal/core/ports"
)

// --- Anthropic messages ---

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicBlock struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Temperature      float64            `json:"temperature"`
	System           string             `json:"system,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []anthropicBlock `json:"content"`
}

func newAnthropicRequest(req ports.CompletionRequest) anthropicRequest {
	msgs := make([]anthropicMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, anthropicMessage{
			Role:    m.Role,
			Content: []anthropicBlock{{Type: "text", Text: m.Content}},
		})
	}

	if len(req.Images) > 0 {
		blocks := make([]anthropicBlock, 0, len(req.Images))
		for _, img := range req.Images {
			blocks = append(blocks, anthropicBlock{
				Type: "image",
				Source: &anthropicSource{
					Type:      "base64",
					MediaType: "image/" + img.Format,
					Data:      img.Base64,
				},
			})
		}
		msgs = attachToLastUser(msgs, blocks)
	}

	return anthropicRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        req.MaxTokens,
		Temperature:      req.Temperature,
		System:           req.System,
		Messages:         msgs,
	}
}

// attachToLastUser puts image blocks ahead of the text of the last user turn.
func attachToLastUser(msgs []anthropicMessage, blocks []anthropicBlock) []anthropicMessage {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == domain.RoleUser {
			msgs[i].Content = append(blocks, msgs[i].Content...)
			return msgs
		}
	}
	return append(msgs, anthropicMessage{Role: domain.RoleUser, Content: blocks})
}

func anthropicText(body []byte) (string, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("bedrock: decode response: %w", err)
	}
	for _, block := range resp.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("bedrock: response has no text content")
}

// --- Nova messages-v1 ---

type novaImageSource struct {
	Bytes string `json:"bytes"`
}

type novaImage struct {
	Format string          `json:"format"`
	Source novaImageSource `json:"source"`
}

type novaContent struct {
	Text  string     `json:"text,omitempty"`
	Image *novaImage `json:"image,omitempty"`
}

type novaMessage struct {
	Role    string        `json:"role"`
	Content []novaContent `json:"content"`
}

type novaInference struct {
	MaxNewTokens int     `json:"max_new_tokens"`
	Temperature  float64 `json:"temperature"`
}

type novaRequest struct {
	SchemaVersion   string        `json:"schemaVersion"`
	System          []novaContent `json:"system,omitempty"`
	Messages        []novaMessage `json:"messages"`
	InferenceConfig novaInference `json:"inferenceConfig"`
}

type novaResponse struct {
	Output struct {
		Message novaMessage `json:"message"`
	} `json:"output"`
}

func newNovaRequest(req ports.CompletionRequest) novaRequest {
	msgs := make([]novaMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, novaMessage{Role: m.Role, Content: []novaContent{{Text: m.Content}}})
	}

	if len(req.Images) > 0 {
		images := make([]novaContent, 0, len(req.Images))
		for _, img := range req.Images {
			images = append(images, novaContent{Image: &novaImage{
				Format: img.Format,
				Source: novaImageSource{Bytes: img.Base64},
			}})
		}
		attached := false
		for i := len(msgs) - 1; i >= 0 && !attached; i-- {
			if msgs[i].Role == domain.RoleUser {
				msgs[i].Content = append(images, msgs[i].Content...)
				attached = true
			}
		}
		if !attached {
			msgs = append(msgs, novaMessage{Role: domain.RoleUser, Content: images})
		}
	}

	out := novaRequest{
		SchemaVersion:   "messages-v1",
		Messages:        msgs,
		InferenceConfig: novaInference{MaxNewTokens: req.MaxTokens, Temperature: req.Temperature},
	}
	if req.System != "" {
		out.System = []novaContent{{Text: req.System}}
	}
	return out
}

func novaText(body []byte) (string, error) {
	var resp novaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("bedrock: decode response: %w", err)
	}
	for _, c := range resp.Output.Message.Content {
		if c.Text != "" {
			return c.Text, nil
		}
	}
	return "", fmt.Errorf("bedrock: response has no text content")
}
