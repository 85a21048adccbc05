// Package web downloads images referenced by URL for the vision flow.
package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ewilliams-labs/aidj/internal/core/ports"
)

const (
	defaultTimeout = 10 * time.Second
	// MaxImageBytes caps downloads; Bedrock rejects larger inline images anyway.
	MaxImageBytes = 5 << 20
)

// Fetcher implements ports.ImageFetcher over HTTP.
type Fetcher struct {
	httpClient *http.Client
	maxBytes   int64
}

var _ ports.ImageFetcher = (*Fetcher)(nil)

func NewFetcher(httpClient *http.Client) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Fetcher{httpClient: httpClient, maxBytes: MaxImageBytes}
}

// Fetch GETs url and returns the body.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("image fetch: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image fetch: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("image fetch: read body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("image fetch: image larger than %d bytes", f.maxBytes)
	}
	return data, nil
}
