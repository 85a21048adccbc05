package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ewilliams-labs/aidj/internal/core/domain"
	"github.com/ewilliams-labs/aidj/internal/core/ports"
	"github.com/ewilliams-labs/aidj/internal/logging"
)

const knowledgeSystemPrompt = `You are a music expert with deep knowledge of genres and subgenres, artist histories and influences, music theory, the cultural context of music styles, current trends and playlist curation.

Give accurate, detailed answers. If you don't know something, say so rather than making it up.`

const knowledgeTemplate = `User question about music: %s

Answer with:
1. a direct answer
2. relevant context or background
3. examples if applicable
4. suggestions for further exploration

Format as JSON with keys: answer (string), context (string), examples (array), suggestions (array)`

const (
	knowledgeMaxTokens   = 1500
	knowledgeTemperature = 0.3
)

// Knowledge answers free-form music questions.
type Knowledge struct {
	invoker    *Invoker
	modelID    string
	maxRetries int
	now        func() time.Time
	logger     *log.Logger
}

// NewKnowledge returns a Knowledge service on modelID.
func NewKnowledge(invoker *Invoker, modelID string, maxRetries int, logger *log.Logger) *Knowledge {
	return &Knowledge{
		invoker:    invoker,
		modelID:    modelID,
		maxRetries: maxRetries,
		now:        time.Now,
		logger:     logging.Component(logger, "knowledge"),
	}
}

// Ask queries the model. Output that is not JSON is returned as the plain answer.
func (k *Knowledge) Ask(ctx context.Context, query string) (domain.KnowledgeAnswer, error) {
	if strings.TrimSpace(query) == "" {
		return domain.KnowledgeAnswer{}, &domain.InputError{Field: "query"}
	}

	raw, err := k.invoker.Invoke(ctx, k.modelID, ports.CompletionRequest{
		System:      knowledgeSystemPrompt,
		Messages:    []ports.Message{{Role: domain.RoleUser, Content: fmt.Sprintf(knowledgeTemplate, query)}},
		MaxTokens:   knowledgeMaxTokens,
		Temperature: knowledgeTemperature,
	}, k.maxRetries)
	if err != nil {
		return domain.KnowledgeAnswer{}, fmt.Errorf("service: knowledge query: %w", err)
	}

	answer := domain.KnowledgeAnswer{Examples: []string{}, Suggestions: []string{}}
	var obj map[string]any
	if ExtractJSONObject(raw, &obj) && stringField(obj, "answer") != "" {
		answer.Answer = stringField(obj, "answer")
		answer.Context = stringField(obj, "context")
		answer.Examples = listField(obj, "examples")
		answer.Suggestions = listField(obj, "suggestions")
	} else {
		k.logger.Debug("knowledge answer was not JSON, returning plain text")
		answer.Answer = strings.TrimSpace(raw)
	}
	answer.SourceType = "model_knowledge"
	answer.ModelUsed = k.modelID
	answer.Timestamp = k.now().UTC()
	return answer, nil
}
