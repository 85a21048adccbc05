package ports

import (
	"context"
)

// Message is one chat message sent to a completion service.
type Message struct {
	Role    string
	Content string
}

// Image is an inline image attached to a vision request.
type Image struct {
	Format string // jpeg, png, gif, webp
	Base64 string
}

// CompletionRequest is the provider-neutral payload for one model call.
type CompletionRequest struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	Images      []Image
}

// CompletionService produces text from a model. Adapters wrap
// domain.ErrRateLimited when the provider throttles the call.
type CompletionService interface {
	Complete(ctx context.Context, modelID string, req CompletionRequest) (string, error)
}
