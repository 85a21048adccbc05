package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/ewilliams-labs/aidj/internal/core/ports"
	"github.com/ewilliams-labs/aidj/internal/logging"
)

const (
	DefaultBaseURL  = "https://api.spotify.com/v1"
	DefaultTokenURL = "https://accounts.spotify.com/api/token"

	defaultTimeout = 10 * time.Second
)

// Config holds the connection settings for the Web API.
type Config struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string

	// RequestsPerSecond paces outgoing calls. Zero disables pacing.
	RequestsPerSecond float64
	MaxRetries        int
	RetryBackoff      time.Duration
	Timeout           time.Duration
}

// Client is an HTTP client for the Spotify adapter.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	appAuth     oauth2.TokenSource
	limiter     *rate.Limiter
	maxRetries  int
	baseBackoff time.Duration
	logger      *log.Logger
}

// compile-time interface assertions
var (
	_ ports.CatalogSearcher = (*Client)(nil)
	_ ports.PlaylistService = (*Client)(nil)
)

// NewClient constructs a new Spotify client. When the config carries client
// credentials, searches without a user token fall back to an app token.
func NewClient(httpClient *http.Client, cfg Config, logger *log.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(baseURL, "/"),
		maxRetries:  cfg.MaxRetries,
		baseBackoff: cfg.RetryBackoff,
		logger:      logging.Component(logger, "spotify"),
	}

	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	if cfg.ClientID != "" && cfg.ClientSecret != "" {
		tokenURL := cfg.TokenURL
		if tokenURL == "" {
			tokenURL = DefaultTokenURL
		}
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     tokenURL,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		c.appAuth = cc.TokenSource(ctx)
	}

	return c
}

// do sends an authorized JSON request and returns the response for the
// caller to decode. A nil auth uses the app token when one is configured.
func (c *Client) do(ctx context.Context, method, path string, body any, auth oauth2.TokenSource) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("spotify adapter: encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("spotify adapter: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if err := c.authorize(req, auth); err != nil {
		return nil, err
	}

	c.logger.Debug("request", "method", method, "url", req.URL.String())
	return c.doRequestWithRetry(req)
}

func (c *Client) authorize(req *http.Request, auth oauth2.TokenSource) error {
	if auth == nil {
		auth = c.appAuth
	}
	if auth == nil {
		return fmt.Errorf("spotify adapter: no access token available")
	}
	tok, err := auth.Token()
	if err != nil {
		return fmt.Errorf("spotify adapter: token: %w", err)
	}
	tok.SetAuthHeader(req)
	return nil
}

func decodeJSON(resp *http.Response, dst any) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("spotify adapter: decode: %w", err)
	}
	return nil
}

// statusError drains the body so the error carries Spotify's message.
func statusError(op string, resp *http.Response) error {
	defer resp.Body.Close()
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
	if body.Error.Message != "" {
		return fmt.Errorf("spotify adapter: %s status %d: %s", op, resp.StatusCode, body.Error.Message)
	}
	return fmt.Errorf("spotify adapter: %s status %d", op, resp.StatusCode)
}
