// Package bedrock implements the completion port on Amazon Bedrock. Anthropic
// models get the messages payload; Amazon Nova models get messages-v1.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/charmbracelet/log"

	"github.com/ewilliams-labs/aidj/internal/core/domain"
	"github.com/ewilliams-labs/aidj/internal/core/ports"
	"github.com/ewilliams-labs/aidj/internal/logging"
)

const anthropicVersion = "bedrock-2023-05-31"

// InvokeAPI is the slice of the Bedrock runtime client the adapter uses.
type InvokeAPI interface {
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Client sends completion requests to Bedrock.
type Client struct {
	api    InvokeAPI
	logger *log.Logger
}

var _ ports.CompletionService = (*Client)(nil)

// NewClient wraps an existing runtime client.
func NewClient(api InvokeAPI, logger *log.Logger) *Client {
	return &Client{api: api, logger: logging.Component(logger, "bedrock")}
}

// New loads the default AWS configuration for region. SDK retries are
// disabled; throttling is surfaced so the caller's backoff applies.
func New(ctx context.Context, region string, logger *log.Logger) (*Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("bedrock: load aws config: %w", err)
	}
	api := bedrockruntime.NewFromConfig(cfg, func(o *bedrockruntime.Options) {
		o.RetryMaxAttempts = 1
	})
	return NewClient(api, logger), nil
}

// Complete invokes modelID and returns the first text block of the answer.
func (c *Client) Complete(ctx context.Context, modelID string, req ports.CompletionRequest) (string, error) {
	nova := isNova(modelID)

	var (
		body []byte
		err  error
	)
	if nova {
		body, err = json.Marshal(newNovaRequest(req))
	} else {
		body, err = json.Marshal(newAnthropicRequest(req))
	}
	if err != nil {
		return "", fmt.Errorf("bedrock: marshal request: %w", err)
	}

	c.logger.Debug("invoke", "model", modelID, "max_tokens", req.MaxTokens, "images", len(req.Images))
	out, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", classify(err)
	}

	var text string
	if nova {
		text, err = novaText(out.Body)
	} else {
		text, err = anthropicText(out.Body)
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

func isNova(modelID string) bool {
	return strings.Contains(strings.ToLower(modelID), "nova")
}

// classify marks throttling as retryable for the invoker.
func classify(err error) error {
	var throttled *types.ThrottlingException
	var quota *types.ServiceQuotaExceededException
	if errors.As(err, &throttled) || errors.As(err, &quota) {
		return fmt.Errorf("bedrock: %w: %w", domain.ErrRateLimited, err)
	}
	return fmt.Errorf("bedrock: invoke model: %w", err)
}
