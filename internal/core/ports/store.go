package ports

import (
	"context"

	"github.com/ewilliams-labs/aidj/internal/core/domain"
)

// HistoryStore keeps the append-only playlist history per owner.
type HistoryStore interface {
	GetHistory(ctx context.Context, ownerID string) ([]domain.PlaylistRecord, error)
	AppendHistory(ctx context.Context, ownerID string, record domain.PlaylistRecord) error
}

// SessionStore keeps conversation turns per chat session.
type SessionStore interface {
	GetTurns(ctx context.Context, sessionID string) ([]domain.Turn, error)
	SaveTurns(ctx context.Context, sessionID string, turns []domain.Turn) error
}
