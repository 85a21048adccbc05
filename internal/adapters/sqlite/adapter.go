// Package sqlite provides a SQLite-backed implementation of the history and
// conversation store ports, used by the CLI and local server.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // Import the driver anonymously

	"github.com/ewilliams-labs/aidj/internal/core/domain"
	"github.com/ewilliams-labs/aidj/internal/core/ports"
)

// Adapter implements the store ports for SQLite
type Adapter struct {
	db *sql.DB
}

var (
	_ ports.HistoryStore = (*Adapter)(nil)
	_ ports.SessionStore = (*Adapter)(nil)
)

// NewAdapter creates a connection and runs the schema migration
func NewAdapter(storagePath string) (*Adapter, error) {
	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	// :memory: databases are per connection
	db.SetMaxOpenConns(1)

	// Verify connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	adapter := &Adapter{db: db}

	if err := adapter.migrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return adapter, nil
}

// Close ensures the DB connection is closed gracefully
func (a *Adapter) Close() error {
	return a.db.Close()
}

// GetHistory returns the owner's playlists oldest first. An unknown owner has
// an empty history.
func (a *Adapter) GetHistory(ctx context.Context, ownerID string) ([]domain.PlaylistRecord, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT playlist_url, prompt, parameters, created_at
		FROM playlist_history
		WHERE owner_id = ?
		ORDER BY id ASC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	records := []domain.PlaylistRecord{}
	for rows.Next() {
		var (
			rec       domain.PlaylistRecord
			params    sql.NullString
			createdAt string
		)
		if err := rows.Scan(&rec.PlaylistURL, &rec.SourcePrompt, &params, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		if params.Valid && params.String != "" {
			if err := json.Unmarshal([]byte(params.String), &rec.Parameters); err != nil {
				return nil, fmt.Errorf("failed to decode parameters: %w", err)
			}
		}
		if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at %q: %w", createdAt, err)
		}
		rec.OwnerID = ownerID
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}

	return records, nil
}

// AppendHistory inserts one record. Concurrent appends for the same owner
// each get their own row, so none is lost.
func (a *Adapter) AppendHistory(ctx context.Context, ownerID string, record domain.PlaylistRecord) error {
	params, err := json.Marshal(record.Parameters)
	if err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	if _, err := a.db.ExecContext(ctx, `
		INSERT INTO playlist_history (owner_id, playlist_url, prompt, parameters, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, ownerID, record.PlaylistURL, record.SourcePrompt, string(params), createdAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}

// GetTurns returns the stored conversation, or nil for a new session.
func (a *Adapter) GetTurns(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	var raw string
	err := a.db.QueryRowContext(ctx, "SELECT turns FROM conversation_sessions WHERE session_id = ?", sessionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	var turns []domain.Turn
	if err := json.Unmarshal([]byte(raw), &turns); err != nil {
		return nil, fmt.Errorf("failed to decode conversation: %w", err)
	}
	return turns, nil
}

// SaveTurns replaces the stored conversation.
func (a *Adapter) SaveTurns(ctx context.Context, sessionID string, turns []domain.Turn) error {
	raw, err := json.Marshal(domain.CapTurns(turns))
	if err != nil {
		return fmt.Errorf("failed to encode conversation: %w", err)
	}

	if _, err := a.db.ExecContext(ctx, `
		INSERT INTO conversation_sessions (session_id, turns, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET turns=excluded.turns, updated_at=excluded.updated_at;
	`, sessionID, string(raw), time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}

func (a *Adapter) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS playlist_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id TEXT NOT NULL,
		playlist_url TEXT NOT NULL,
		prompt TEXT NOT NULL,
		parameters TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_playlist_history_owner ON playlist_history(owner_id);

	CREATE TABLE IF NOT EXISTS conversation_sessions (
		session_id TEXT PRIMARY KEY,
		turns TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := a.db.Exec(query)
	return err
}
