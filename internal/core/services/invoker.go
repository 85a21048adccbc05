package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ewilliams-labs/aidj/internal/core/domain"
	"github.com/ewilliams-labs/aidj/internal/core/ports"
	"github.com/ewilliams-labs/aidj/internal/logging"
)

const (
	// MaxTokenCeiling is the hard provider limit on output tokens.
	MaxTokenCeiling = 4096
	minTokenBudget  = 800
)

// TokenBudget scales the output budget with the desired song count.
func TokenBudget(desiredCount int) int {
	return capTokens(max(minTokenBudget, desiredCount*25+500))
}

func capTokens(n int) int {
	return min(n, MaxTokenCeiling)
}

// Invoker calls a completion service with bounded exponential backoff on
// rate-limit errors.
type Invoker struct {
	svc         ports.CompletionService
	callTimeout time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *log.Logger
}

// NewInvoker wraps svc. Each attempt gets its own callTimeout deadline; zero
// leaves attempts bounded only by the caller's context.
func NewInvoker(svc ports.CompletionService, callTimeout time.Duration, logger *log.Logger) *Invoker {
	return &Invoker{
		svc:         svc,
		callTimeout: callTimeout,
		sleep:       sleepWithContext,
		logger:      logging.Component(logger, "invoker"),
	}
}

// Invoke performs up to maxRetries attempts, waiting 2^attempt seconds after each
// rate-limited one. Any other failure, or running out of attempts, is returned
// wrapped in domain.ErrModelUnavailable.
func (i *Invoker) Invoke(ctx context.Context, modelID string, req ports.CompletionRequest, maxRetries int) (string, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		text, err := i.complete(ctx, modelID, req)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !errors.Is(err, domain.ErrRateLimited) {
			return "", fmt.Errorf("%w: %w", domain.ErrModelUnavailable, err)
		}
		if attempt == maxRetries-1 {
			break
		}

		wait := time.Duration(1<<attempt) * time.Second
		i.logger.Warn("throttled, backing off", "model", modelID, "attempt", attempt+1, "max", maxRetries, "wait", wait)
		if err := i.sleep(ctx, wait); err != nil {
			return "", fmt.Errorf("%w: %w", domain.ErrModelUnavailable, err)
		}
	}

	return "", fmt.Errorf("%w: failed after %d attempts: %w", domain.ErrModelUnavailable, maxRetries, lastErr)
}

func (i *Invoker) complete(ctx context.Context, modelID string, req ports.CompletionRequest) (string, error) {
	if i.callTimeout <= 0 {
		return i.svc.Complete(ctx, modelID, req)
	}
	callCtx, cancel := context.WithTimeout(ctx, i.callTimeout)
	defer cancel()

	text, err := i.svc.Complete(callCtx, modelID, req)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		i.logger.Warn("model call timed out", "model", modelID, "timeout", i.callTimeout)
	}
	return text, err
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("service: wait canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
