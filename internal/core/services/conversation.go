package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/ewilliams-labs/aidj/internal/core/domain"
	"github.com/ewilliams-labs/aidj/internal/core/ports"
	"github.com/ewilliams-labs/aidj/internal/logging"
)

const (
	greeting        = "¡Hola! Describime qué tipo de música te gustaría y voy a hacerte algunas preguntas para crear la playlist perfecta."
	creatingMessage = "¡Creando tu playlist!"
	chatPlaylist    = "AI DJ - Chat Playlist"

	followUpMaxTokens   = 150
	followUpTemperature = 0.8
	previewTracks       = 10
)

var fallbackQuestions = []string{
	"¿Qué artistas o bandas te gustan de ese estilo? O decime 'si' si ya estás listo.",
	"¿De qué época preferís la música? ¿Clásicos o más reciente? O decime 'si' para crear.",
	"¿Qué energía buscás? ¿Tranquilo o más intenso? O decime 'si' cuando quieras.",
}

const followUpTemplate = `Based on this music request: "%s"

Generate ONE follow-up question to refine the playlist. Ask about one of:
- specific artists they like in that genre
- time period or era (80s, 90s, modern)
- energy level (chill, energetic, intense)
- mood or occasion (workout, study, party, relax)
- language preference
- artists to avoid

Be conversational and natural in Spanish. End with: "O decime 'si' si ya estás listo para crear la playlist."

Question:`

// ChatInput is one user message in a playlist conversation.
type ChatInput struct {
	OwnerID      string
	SessionID    string
	Message      string
	DesiredCount int
	SearchAuth   oauth2.TokenSource
}

// ChatReply is the assistant side of a conversation turn.
type ChatReply struct {
	Message          string                 `json:"message"`
	SessionID        string                 `json:"session_id"`
	ConversationMode bool                   `json:"conversation_mode"`
	PlaylistCreated  bool                   `json:"playlist_created,omitempty"`
	PlaylistURL      string                 `json:"playlist_url,omitempty"`
	TrackCount       int                    `json:"tracks_count,omitempty"`
	Tracks           []domain.ResolvedTrack `json:"tracks,omitempty"`
	Error            string                 `json:"error,omitempty"`
}

// Conversation refines a playlist request over several turns and runs the
// pipeline once the user confirms.
type Conversation struct {
	orchestrator *Orchestrator
	invoker      *Invoker
	sessions     ports.SessionStore
	modelID      string
	classify     domain.IntentClassifier
	logger       *log.Logger
}

// NewConversation returns a Conversation using keyword intent detection.
func NewConversation(orchestrator *Orchestrator, invoker *Invoker, sessions ports.SessionStore, modelID string, logger *log.Logger) *Conversation {
	return &Conversation{
		orchestrator: orchestrator,
		invoker:      invoker,
		sessions:     sessions,
		modelID:      modelID,
		classify:     domain.KeywordIntent,
		logger:       logging.Component(logger, "conversation"),
	}
}

// Reply handles one user message. Pipeline problems are reported in the reply
// text; only invalid input returns an error.
func (c *Conversation) Reply(ctx context.Context, in ChatInput) (ChatReply, error) {
	if strings.TrimSpace(in.OwnerID) == "" {
		return ChatReply{}, &domain.InputError{Field: "user_id"}
	}
	if strings.TrimSpace(in.Message) == "" {
		return ChatReply{}, &domain.InputError{Field: "message"}
	}
	if in.SearchAuth == nil {
		return ChatReply{}, &domain.InputError{Field: "spotify_access_token"}
	}

	sessionID := in.SessionID
	if sessionID == "" {
		sessionID = "session-" + uuid.NewString()
	}
	logger := c.logger.With("session", sessionID, "owner", in.OwnerID)

	history := c.loadTurns(ctx, logger, sessionID)

	var assistant string
	if len(history) > 0 && c.classify(in.Message) {
		prompt := strings.Join(domain.UserMessages(history, 0), " ")
		assistant = domain.ReadyMarker + " " + prompt
		c.saveTurn(ctx, logger, sessionID, history, in.Message, creatingMessage)
	} else {
		if len(history) == 0 {
			assistant = greeting
		} else {
			assistant = c.followUp(ctx, logger, history)
		}
		c.saveTurn(ctx, logger, sessionID, history, in.Message, assistant)
	}

	reply := ChatReply{SessionID: sessionID, ConversationMode: true}

	idx := strings.Index(assistant, domain.ReadyMarker)
	if idx < 0 {
		reply.Message = assistant
		return reply, nil
	}

	prompt := strings.TrimSpace(assistant[idx+len(domain.ReadyMarker):])
	return c.create(ctx, logger, in, prompt, reply), nil
}

func (c *Conversation) create(ctx context.Context, logger *log.Logger, in ChatInput, prompt string, reply ChatReply) ChatReply {
	req, err := domain.NewInterpretationRequest(prompt, in.DesiredCount)
	if err != nil {
		reply.Message = "No entendí qué música querés. ¿Podrías describirla de otra manera?"
		return reply
	}

	logger.Info("creating playlist from conversation", "count", req.DesiredCount)
	out, err := c.orchestrator.run(ctx, pipelineRun{
		ownerID:      in.OwnerID,
		request:      req,
		auth:         in.SearchAuth,
		extra:        map[string]any{"source": "conversation"},
		fallbackName: chatPlaylist,
	})

	var noMatches *domain.NoMatchesError
	var publishErr *domain.PublishError
	switch {
	case err == nil:
		reply.Message = fmt.Sprintf("✅ ¡Playlist creada exitosamente! Agregué %d canciones basadas en nuestra conversación.", out.TrackCount)
		reply.PlaylistCreated = true
		reply.PlaylistURL = out.PlaylistURL
		reply.TrackCount = out.TrackCount
		reply.Tracks = out.Tracks[:min(previewTracks, len(out.Tracks))]
	case errors.As(err, &noMatches) && len(noMatches.Suggestions) == 0:
		reply.Message = "Estoy teniendo problemas técnicos para generar la playlist en este momento (demasiadas solicitudes). Por favor, intentá de nuevo en unos segundos. 🙏"
	case errors.As(err, &noMatches):
		reply.Message = "No encontré suficientes canciones que coincidan con esas preferencias. ¿Podrías describirlo de otra manera?"
	case errors.As(err, &publishErr):
		reply.Message = "Encontré canciones perfectas, pero hubo un error al crear la playlist en Spotify. Por favor, intentá de nuevo."
		reply.Error = err.Error()
	default:
		reply.Message = "Entendí que querés crear la playlist, pero encontré un error técnico. Por favor intentá de nuevo o describí la música de otra forma."
		reply.Error = err.Error()
	}
	return reply
}

func (c *Conversation) followUp(ctx context.Context, logger *log.Logger, history []domain.Turn) string {
	summary := strings.Join(domain.UserMessages(history, 3), " ")
	text, err := c.invoker.Invoke(ctx, c.modelID, ports.CompletionRequest{
		Messages:    []ports.Message{{Role: domain.RoleUser, Content: fmt.Sprintf(followUpTemplate, summary)}},
		MaxTokens:   followUpMaxTokens,
		Temperature: followUpTemperature,
	}, 1)
	if err == nil && strings.TrimSpace(text) != "" {
		return strings.TrimSpace(text)
	}

	logger.Warn("follow-up question failed, using canned question", "err", err)
	return fallbackQuestions[len(history)%len(fallbackQuestions)]
}

func (c *Conversation) loadTurns(ctx context.Context, logger *log.Logger, sessionID string) []domain.Turn {
	if c.sessions == nil {
		return nil
	}
	turns, err := c.sessions.GetTurns(ctx, sessionID)
	if err != nil {
		logger.Warn("load conversation failed", "err", err)
		return nil
	}
	return turns
}

func (c *Conversation) saveTurn(ctx context.Context, logger *log.Logger, sessionID string, history []domain.Turn, user, assistant string) {
	if c.sessions == nil {
		return
	}
	turns := make([]domain.Turn, 0, len(history)+2)
	turns = append(turns, history...)
	turns = append(turns,
		domain.Turn{Role: domain.RoleUser, Content: user},
		domain.Turn{Role: domain.RoleAssistant, Content: assistant},
	)
	if err := c.sessions.SaveTurns(ctx, sessionID, domain.CapTurns(turns)); err != nil {
		logger.Warn("save conversation failed", "err", err)
	}
}
