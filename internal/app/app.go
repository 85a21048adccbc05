// Package app assembles adapters and services from configuration. The HTTP
// server, the Lambda entry point and the CLI all build through New.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ewilliams-labs/aidj/internal/adapters/bedrock"
	"github.com/ewilliams-labs/aidj/internal/adapters/dynamodb"
	"github.com/ewilliams-labs/aidj/internal/adapters/memory"
	"github.com/ewilliams-labs/aidj/internal/adapters/ollama"
	"github.com/ewilliams-labs/aidj/internal/adapters/postgres"
	"github.com/ewilliams-labs/aidj/internal/adapters/rest"
	"github.com/ewilliams-labs/aidj/internal/adapters/spotify"
	"github.com/ewilliams-labs/aidj/internal/adapters/sqlite"
	"github.com/ewilliams-labs/aidj/internal/adapters/web"
	"github.com/ewilliams-labs/aidj/internal/config"
	"github.com/ewilliams-labs/aidj/internal/core/ports"
	"github.com/ewilliams-labs/aidj/internal/core/services"
)

// Store is the persistence surface every storage driver provides.
type Store interface {
	ports.HistoryStore
	ports.SessionStore
}

// App holds the wired services.
type App struct {
	Config       *config.Config
	Logger       *log.Logger
	Orchestrator *services.Orchestrator
	Images       *services.ImageFlow
	Chat         *services.Conversation
	Knowledge    *services.Knowledge

	closers []func() error
}

// New validates cfg and builds every dependency. Call Close when done.
func New(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("app: invalid config: %w", err)
	}
	timeout, err := cfg.Pipeline.TimeoutDuration()
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	completion, err := newCompletion(ctx, cfg.Model, logger)
	if err != nil {
		return nil, err
	}

	store, closer, err := OpenStore(ctx, cfg.Storage, cfg.Model.Region, logger)
	if err != nil {
		return nil, err
	}

	catalog := spotify.NewClient(nil, spotify.Config{
		ClientID:          cfg.Spotify.ClientID,
		ClientSecret:      cfg.Spotify.ClientSecret,
		RequestsPerSecond: cfg.Spotify.RequestsPerSecond,
		MaxRetries:        cfg.Spotify.MaxRetries,
		RetryBackoff:      time.Duration(cfg.Spotify.RetryBackoffMs) * time.Millisecond,
		Timeout:           time.Duration(cfg.Spotify.TimeoutSeconds) * time.Second,
	}, logger)

	a := Assemble(cfg, logger, Ports{
		Completion: completion,
		Searcher:   catalog,
		Playlists:  catalog,
		Store:      store,
		Fetcher:    web.NewFetcher(nil),
	}, timeout)
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	logger.Info("app ready",
		"provider", cfg.Model.Provider,
		"model", cfg.Model.TextModel(),
		"storage", cfg.Storage.Driver,
		"app_credentials", cfg.Spotify.HasAppCredentials(),
	)
	return a, nil
}

// Ports are the adapters the services run on.
type Ports struct {
	Completion ports.CompletionService
	Searcher   ports.CatalogSearcher
	Playlists  ports.PlaylistService
	Store      Store
	Fetcher    ports.ImageFetcher
}

// Assemble builds the service graph on p without touching the network.
func Assemble(cfg *config.Config, logger *log.Logger, p Ports, timeout time.Duration) *App {
	invoker := services.NewInvoker(p.Completion, cfg.Model.CallTimeout(), logger)
	interpreter := services.NewInterpreter(invoker, cfg.Model.TextModel(), cfg.Model.MaxRetries, logger)
	resolver := services.NewResolver(p.Searcher, logger)
	publisher := services.NewPublisher(p.Playlists, logger)

	a := &App{Config: cfg, Logger: logger}
	a.Orchestrator = services.NewOrchestrator(interpreter, resolver, publisher, p.Store, timeout, logger)
	a.Images = services.NewImageFlow(a.Orchestrator, invoker, p.Fetcher, cfg.Model.VisionModel(), cfg.Model.MaxRetries, logger)
	a.Chat = services.NewConversation(a.Orchestrator, invoker, p.Store, cfg.Model.TextModel(), logger)
	a.Knowledge = services.NewKnowledge(invoker, cfg.Model.TextModel(), cfg.Model.MaxRetries, logger)
	return a
}

// Handler returns the HTTP surface over the wired services.
func (a *App) Handler() *rest.Handler {
	return rest.NewHandler(rest.Services{
		Playlists: a.Orchestrator,
		Images:    a.Images,
		Chat:      a.Chat,
		Knowledge: a.Knowledge,
	}, a.Config.Pipeline.DefaultLimit, a.Logger)
}

// Close releases storage connections.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

func newCompletion(ctx context.Context, cfg config.ModelConfig, logger *log.Logger) (ports.CompletionService, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.NewClient(cfg.OllamaHost), nil
	case config.ProviderBedrock:
		client, err := bedrock.New(ctx, cfg.Region, logger)
		if err != nil {
			return nil, fmt.Errorf("app: bedrock client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("app: unknown model provider %q", cfg.Provider)
	}
}

// OpenStore connects the configured storage driver. The returned closer may
// be nil.
func OpenStore(ctx context.Context, cfg config.StorageConfig, region string, logger *log.Logger) (Store, func() error, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		s, err := sqlite.NewAdapter(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("app: sqlite: %w", err)
		}
		return s, s.Close, nil
	case config.DriverPostgres:
		s, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("app: postgres: %w", err)
		}
		return s, s.Close, nil
	case config.DriverDynamoDB:
		s, err := dynamodb.New(ctx, region, cfg.DynamoDBTable, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("app: dynamodb: %w", err)
		}
		return s, nil, nil
	case config.DriverMemory:
		return memory.NewStore(), nil, nil
	default:
		return nil, nil, fmt.Errorf("app: unknown storage driver %q", cfg.Driver)
	}
}
