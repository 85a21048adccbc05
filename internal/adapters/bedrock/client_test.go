package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/aidj/internal/core/domain"
	"github.com/ewilliams-labs/aidj/internal/core/ports"
	"github.com/ewilliams-labs/aidj/internal/logging"
)

type fakeRuntime struct {
	inputs []*bedrockruntime.InvokeModelInput
	body   string
	err    error
}

func (f *fakeRuntime) InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body)}, nil
}

func (f *fakeRuntime) sent(t *testing.T) map[string]any {
	t.Helper()
	require.Len(t, f.inputs, 1)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(f.inputs[0].Body, &payload))
	return payload
}

const (
	claudeModel = "us.anthropic.claude-haiku-4-5-20251001-v1:0"
	novaModel   = "us.amazon.nova-lite-v1:0"
)

func TestComplete_Anthropic(t *testing.T) {
	fake := &fakeRuntime{body: `{"id":"msg_1","content":[{"type":"text","text":"{\"songs\":[]}"}],"stop_reason":"end_turn"}`}
	c := NewClient(fake, logging.Discard())

	got, err := c.Complete(context.Background(), claudeModel, ports.CompletionRequest{
		System:      "You are a DJ.",
		Messages:    []ports.Message{{Role: domain.RoleUser, Content: "happy pop"}},
		MaxTokens:   1000,
		Temperature: 0.7,
	})

	require.NoError(t, err)
	assert.Equal(t, `{"songs":[]}`, got)
	assert.Equal(t, claudeModel, aws.ToString(fake.inputs[0].ModelId))
	assert.Equal(t, "application/json", aws.ToString(fake.inputs[0].ContentType))

	payload := fake.sent(t)
	assert.Equal(t, anthropicVersion, payload["anthropic_version"])
	assert.EqualValues(t, 1000, payload["max_tokens"])
	assert.EqualValues(t, 0.7, payload["temperature"])
	assert.Equal(t, "You are a DJ.", payload["system"])
	msgs := payload["messages"].([]any)
	require.Len(t, msgs, 1)
	content := msgs[0].(map[string]any)["content"].([]any)
	assert.Equal(t, "happy pop", content[0].(map[string]any)["text"])
}

func TestComplete_AnthropicImage(t *testing.T) {
	fake := &fakeRuntime{body: `{"content":[{"type":"text","text":"ok"}]}`}
	c := NewClient(fake, logging.Discard())

	_, err := c.Complete(context.Background(), claudeModel, ports.CompletionRequest{
		Messages: []ports.Message{{Role: domain.RoleUser, Content: "describe"}},
		Images:   []ports.Image{{Format: "png", Base64: "iVBORw0"}},
	})
	require.NoError(t, err)

	req := newAnthropicRequest(ports.CompletionRequest{
		Messages: []ports.Message{{Role: domain.RoleUser, Content: "describe"}},
		Images:   []ports.Image{{Format: "png", Base64: "iVBORw0"}},
	})
	blocks := req.Messages[0].Content
	require.Len(t, blocks, 2)
	assert.Equal(t, "image", blocks[0].Type)
	assert.Equal(t, "image/png", blocks[0].Source.MediaType)
	assert.Equal(t, "text", blocks[1].Type)
}

func TestComplete_NovaVision(t *testing.T) {
	fake := &fakeRuntime{body: `{"output":{"message":{"role":"assistant","content":[{"text":"{\"mood\":\"calm\"}"}]}},"stopReason":"end_turn"}`}
	c := NewClient(fake, logging.Discard())

	got, err := c.Complete(context.Background(), novaModel, ports.CompletionRequest{
		Messages:    []ports.Message{{Role: domain.RoleUser, Content: "analyze"}},
		MaxTokens:   800,
		Temperature: 0.5,
		Images:      []ports.Image{{Format: "jpeg", Base64: "/9j/4AAQ"}},
	})

	require.NoError(t, err)
	assert.Equal(t, `{"mood":"calm"}`, got)

	payload := fake.sent(t)
	assert.Equal(t, "messages-v1", payload["schemaVersion"])
	inference := payload["inferenceConfig"].(map[string]any)
	assert.EqualValues(t, 800, inference["max_new_tokens"])
	assert.EqualValues(t, 0.5, inference["temperature"])
	assert.NotContains(t, payload, "system")

	content := payload["messages"].([]any)[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 2)
	image := content[0].(map[string]any)["image"].(map[string]any)
	assert.Equal(t, "jpeg", image["format"])
	assert.Equal(t, "/9j/4AAQ", image["source"].(map[string]any)["bytes"])
	assert.Equal(t, "analyze", content[1].(map[string]any)["text"])
}

func TestComplete_Errors(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		body        string
		wantLimited bool
	}{
		{name: "throttled", err: &types.ThrottlingException{Message: aws.String("Too many requests")}, wantLimited: true},
		{name: "quota", err: &types.ServiceQuotaExceededException{Message: aws.String("quota")}, wantLimited: true},
		{name: "access denied", err: &types.AccessDeniedException{Message: aws.String("no access")}},
		{name: "empty content", body: `{"content":[]}`},
		{name: "not json", body: `<html>`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(&fakeRuntime{err: tt.err, body: tt.body}, logging.Discard())

			_, err := c.Complete(context.Background(), claudeModel, ports.CompletionRequest{
				Messages: []ports.Message{{Role: domain.RoleUser, Content: "x"}},
			})

			require.Error(t, err)
			assert.Equal(t, tt.wantLimited, errors.Is(err, domain.ErrRateLimited))
		})
	}
}

func TestIsNova(t *testing.T) {
	assert.True(t, isNova(novaModel))
	assert.True(t, isNova("amazon.Nova-pro-v1:0"))
	assert.False(t, isNova(claudeModel))
}
