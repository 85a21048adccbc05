package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/ewilliams-labs/aidj/internal/core/domain"
	"github.com/ewilliams-labs/aidj/internal/core/ports"
	"github.com/ewilliams-labs/aidj/internal/logging"
)

// GenerateInput is the caller-facing request for a prompt playlist.
type GenerateInput struct {
	OwnerID      string
	Prompt       string
	DesiredCount int
	// SearchAuth is the user's catalog token. It is used for search and
	// publishing; DryRun requests may leave it nil.
	SearchAuth oauth2.TokenSource
	// DryRun stops after resolution without creating a playlist.
	DryRun bool
}

// GenerateOutput is the success payload.
type GenerateOutput struct {
	RequestID   string                 `json:"request_id"`
	PlaylistID  string                 `json:"playlist_id,omitempty"`
	PlaylistURL string                 `json:"playlist_url,omitempty"`
	Name        string                 `json:"playlist_name"`
	TrackCount  int                    `json:"tracks_count"`
	Tracks      []domain.ResolvedTrack `json:"tracks"`
	Parameters  map[string]any         `json:"parameters"`
	ModelID     string                 `json:"model_used"`
}

// Orchestrator runs the prompt to playlist pipeline and records history.
type Orchestrator struct {
	interpreter *Interpreter
	resolver    *Resolver
	publisher   *Publisher
	history     ports.HistoryStore
	timeout     time.Duration
	now         func() time.Time
	logger      *log.Logger
}

// NewOrchestrator wires the pipeline stages. A zero timeout leaves the caller's
// deadline untouched.
func NewOrchestrator(interpreter *Interpreter, resolver *Resolver, publisher *Publisher, history ports.HistoryStore, timeout time.Duration, logger *log.Logger) *Orchestrator {
	return &Orchestrator{
		interpreter: interpreter,
		resolver:    resolver,
		publisher:   publisher,
		history:     history,
		timeout:     timeout,
		now:         time.Now,
		logger:      logging.Component(logger, "orchestrator"),
	}
}

// pipelineRun is the shared body of the prompt, image and chat entry points.
type pipelineRun struct {
	ownerID      string
	request      domain.InterpretationRequest
	auth         oauth2.TokenSource
	dryRun       bool
	extra        map[string]any
	fallbackName string
}

// Generate interprets in.Prompt, resolves the suggestions and publishes the
// playlist. Errors classify through domain.StatusCode.
func (o *Orchestrator) Generate(ctx context.Context, in GenerateInput) (GenerateOutput, error) {
	if strings.TrimSpace(in.OwnerID) == "" {
		return GenerateOutput{}, &domain.InputError{Field: "user_id"}
	}
	req, err := domain.NewInterpretationRequest(in.Prompt, in.DesiredCount)
	if err != nil {
		return GenerateOutput{}, err
	}
	if in.SearchAuth == nil && !in.DryRun {
		return GenerateOutput{}, &domain.InputError{Field: "spotify_access_token"}
	}

	return o.run(ctx, pipelineRun{
		ownerID: in.OwnerID,
		request: req,
		auth:    in.SearchAuth,
		dryRun:  in.DryRun,
	})
}

func (o *Orchestrator) run(ctx context.Context, p pipelineRun) (GenerateOutput, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	logger := o.logger.With("request_id", p.request.RequestID, "owner", p.ownerID)
	logger.Info("interpreting prompt", "count", p.request.DesiredCount)

	result := o.interpreter.Interpret(ctx, p.request)
	if result.PlaylistName == domain.DefaultPlaylistName && p.fallbackName != "" {
		result.PlaylistName = p.fallbackName
	}

	params := result.ParameterMap()
	for k, v := range p.extra {
		params[k] = v
	}

	tracks := o.resolver.Resolve(ctx, result.Songs, p.auth)
	if tracks.Len() == 0 {
		return GenerateOutput{}, &domain.NoMatchesError{
			ModelID:     o.interpreter.ModelID(),
			Prompt:      p.request.RawPrompt,
			Suggestions: result.Songs,
			Parameters:  params,
		}
	}

	out := GenerateOutput{
		RequestID:  p.request.RequestID,
		Name:       result.PlaylistName,
		TrackCount: tracks.Len(),
		Tracks:     tracks.Tracks(),
		Parameters: params,
		ModelID:    o.interpreter.ModelID(),
	}
	if p.dryRun {
		return out, nil
	}

	published, err := o.publisher.Publish(ctx, p.ownerID, result.PlaylistName, tracks.URIs(), p.auth)
	if err != nil {
		logger.Error("publish failed", "err", err)
		return GenerateOutput{}, fmt.Errorf("service: %w", err)
	}
	out.PlaylistID = published.ID
	out.PlaylistURL = published.URL

	o.record(ctx, logger, domain.PlaylistRecord{
		OwnerID:      p.ownerID,
		PlaylistURL:  published.URL,
		SourcePrompt: p.request.RawPrompt,
		Parameters:   params,
		CreatedAt:    o.now().UTC(),
	})

	logger.Info("playlist published", "url", published.URL, "tracks", tracks.Len())
	return out, nil
}

// record appends to the owner's history. The playlist already exists, so a
// store failure is logged and dropped.
func (o *Orchestrator) record(ctx context.Context, logger *log.Logger, rec domain.PlaylistRecord) {
	if o.history == nil {
		return
	}
	if err := o.history.AppendHistory(ctx, rec.OwnerID, rec); err != nil {
		logger.Warn("history write failed", "err", err)
	}
}

// History lists the owner's recorded playlists, oldest first.
func (o *Orchestrator) History(ctx context.Context, ownerID string) ([]domain.PlaylistRecord, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, &domain.InputError{Field: "user_id"}
	}
	if o.history == nil {
		return []domain.PlaylistRecord{}, nil
	}
	records, err := o.history.GetHistory(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("service: load history: %w", err)
	}
	return records, nil
}
