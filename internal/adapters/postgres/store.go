// Package postgres stores playlist history and conversations in PostgreSQL
// through the pgx database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ewilliams-labs/aidj/internal/core/domain"
	"github.com/ewilliams-labs/aidj/internal/core/ports"
)

// Store implements the history and session ports.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ ports.HistoryStore = (*Store)(nil)
	_ ports.SessionStore = (*Store)(nil)
)

// New wraps an open database.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Open connects to dsn, waiting for the server to accept connections, and
// creates the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	const (
		pingTimeout    = 5 * time.Second
		maxWait        = 30 * time.Second
		initialBackoff = 500 * time.Millisecond
		maxBackoff     = 5 * time.Second
	)

	deadline := time.Now().Add(maxWait)
	backoff := initialBackoff
	for {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err = db.PingContext(pingCtx)
		cancel()
		if err == nil {
			break
		}
		if ctx.Err() != nil || time.Now().After(deadline) {
			_ = db.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		time.Sleep(backoff)
		backoff = min(backoff*2, maxBackoff)
	}

	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS playlist_history (
	id BIGSERIAL PRIMARY KEY,
	owner_id TEXT NOT NULL,
	playlist_url TEXT NOT NULL,
	prompt TEXT NOT NULL,
	parameters JSONB,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_playlist_history_owner ON playlist_history (owner_id);
CREATE TABLE IF NOT EXISTS conversation_sessions (
	session_id TEXT PRIMARY KEY,
	turns JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);`

// GetHistory returns the owner's playlists oldest first.
func (s *Store) GetHistory(ctx context.Context, ownerID string) ([]domain.PlaylistRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT playlist_url, prompt, parameters, created_at
		FROM playlist_history
		WHERE owner_id = $1
		ORDER BY id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	records := []domain.PlaylistRecord{}
	for rows.Next() {
		var (
			rec    domain.PlaylistRecord
			params []byte
		)
		if err := rows.Scan(&rec.PlaylistURL, &rec.SourcePrompt, &params, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if len(params) > 0 {
			if err := json.Unmarshal(params, &rec.Parameters); err != nil {
				return nil, fmt.Errorf("decode parameters: %w", err)
			}
		}
		rec.OwnerID = ownerID
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return records, nil
}

// AppendHistory inserts one row per playlist.
func (s *Store) AppendHistory(ctx context.Context, ownerID string, record domain.PlaylistRecord) error {
	params, err := json.Marshal(record.Parameters)
	if err != nil {
		return fmt.Errorf("encode parameters: %w", err)
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO playlist_history (owner_id, playlist_url, prompt, parameters, created_at)
		VALUES ($1, $2, $3, $4::jsonb, $5)
	`, ownerID, record.PlaylistURL, record.SourcePrompt, string(params), createdAt.UTC()); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

// GetTurns returns nil for an unknown session.
func (s *Store) GetTurns(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT turns
		FROM conversation_sessions
		WHERE session_id = $1
	`, sessionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}

	var turns []domain.Turn
	if err := json.Unmarshal(raw, &turns); err != nil {
		return nil, fmt.Errorf("decode conversation: %w", err)
	}
	return turns, nil
}

// SaveTurns upserts the capped conversation.
func (s *Store) SaveTurns(ctx context.Context, sessionID string, turns []domain.Turn) error {
	raw, err := json.Marshal(domain.CapTurns(turns))
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_sessions (session_id, turns, updated_at)
		VALUES ($1, $2::jsonb, $3)
		ON CONFLICT (session_id) DO UPDATE SET turns = EXCLUDED.turns, updated_at = EXCLUDED.updated_at
	`, sessionID, string(raw), s.now().UTC()); err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}
