// Package memory holds history and conversations in process memory. It backs
// dry runs and tests; nothing survives a restart.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/ewilliams-labs/aidj/internal/core/domain"
	"github.com/ewilliams-labs/aidj/internal/core/ports"
)

type Store struct {
	mu       sync.RWMutex
	history  map[string][]domain.PlaylistRecord
	sessions map[string][]domain.Turn
}

var (
	_ ports.HistoryStore = (*Store)(nil)
	_ ports.SessionStore = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		history:  make(map[string][]domain.PlaylistRecord),
		sessions: make(map[string][]domain.Turn),
	}
}

func (s *Store) GetHistory(ctx context.Context, ownerID string) ([]domain.PlaylistRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.history[ownerID])
	if out == nil {
		out = []domain.PlaylistRecord{}
	}
	return out, nil
}

func (s *Store) AppendHistory(ctx context.Context, ownerID string, record domain.PlaylistRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.OwnerID = ownerID
	s.history[ownerID] = append(s.history[ownerID], record)
	return nil
}

func (s *Store) GetTurns(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.sessions[sessionID]), nil
}

func (s *Store) SaveTurns(ctx context.Context, sessionID string, turns []domain.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = slices.Clone(domain.CapTurns(turns))
	return nil
}
