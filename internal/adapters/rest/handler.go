package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ewilliams-labs/aidj/internal/core/domain"
	"github.com/ewilliams-labs/aidj/internal/core/services"
	"github.com/ewilliams-labs/aidj/internal/logging"
)

// PlaylistGenerator runs the prompt pipeline and lists history.
type PlaylistGenerator interface {
	Generate(ctx context.Context, in services.GenerateInput) (services.GenerateOutput, error)
	History(ctx context.Context, ownerID string) ([]domain.PlaylistRecord, error)
}

// ImageGenerator runs the image pipeline.
type ImageGenerator interface {
	Generate(ctx context.Context, in services.ImageInput) (services.ImageOutput, error)
}

// ChatResponder answers one conversation turn.
type ChatResponder interface {
	Reply(ctx context.Context, in services.ChatInput) (services.ChatReply, error)
}

// KnowledgeAsker answers music questions.
type KnowledgeAsker interface {
	Ask(ctx context.Context, query string) (domain.KnowledgeAnswer, error)
}

// Services groups the core operations exposed over HTTP. Nil members answer
// 501.
type Services struct {
	Playlists PlaylistGenerator
	Images    ImageGenerator
	Chat      ChatResponder
	Knowledge KnowledgeAsker
}

// Handler manages the HTTP interface for our application.
type Handler struct {
	svc          Services
	defaultLimit int
	router       *http.ServeMux
	logger       *log.Logger
}

// NewHandler initializes the HTTP adapter and sets up routes. defaultLimit
// replaces a missing limit in generation requests.
func NewHandler(svc Services, defaultLimit int, logger *log.Logger) *Handler {
	h := &Handler{
		svc:          svc,
		defaultLimit: defaultLimit,
		router:       http.NewServeMux(),
		logger:       logging.Component(logger, "http"),
	}
	h.routes()
	return h
}

// ServeHTTP satisfies the http.Handler interface and logs each request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	h.router.ServeHTTP(rec, r)
	h.logger.Info("request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"duration", time.Since(start).Round(time.Millisecond),
	)
}

func (h *Handler) routes() {
	h.router.HandleFunc("GET /health", h.HealthCheck)

	h.router.HandleFunc("POST /playlists", h.GeneratePlaylist)
	h.router.HandleFunc("POST /playlists/image", h.GenerateFromImage)
	h.router.HandleFunc("GET /users/{id}/playlists", h.ListHistory)

	h.router.HandleFunc("POST /chat", h.Chat)
	h.router.HandleFunc("POST /knowledge", h.AskKnowledge)
}

// HealthCheck is a simple endpoint to verify the API is running.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) limit(n int) int {
	if n == 0 {
		return h.defaultLimit
	}
	return n
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
