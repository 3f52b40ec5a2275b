// Package store provides SQLite-backed persistence for the session audit
// trail. Only lifecycle events are recorded; message bodies never touch
// disk.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/NicolasHaas/linechat/pkg/model"
)

const dbTimeLayout = "2006-01-02 15:04:05"

// EventStore records and queries session lifecycle events.
// Implementations include the default SQLite store and an in-memory store
// for tests.
type EventStore interface {
	RecordEvent(ev model.SessionEvent) error
	ListEvents(limit int) ([]model.SessionEvent, error)
	CountByType(t model.EventType) (int64, error)
	Close() error
}

// Store is the SQLite EventStore.
type Store struct {
	db *sql.DB
}

var _ EventStore = (*Store)(nil)

// New opens (or creates) a SQLite database and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}

	ctx := context.Background()

	// Enable WAL mode for better concurrent read performance
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set WAL: %w", err)
	}
	// Set busy timeout to avoid "database is locked" under concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set busy_timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS session_events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT    NOT NULL,
		username   TEXT    NOT NULL DEFAULT '',
		type       TEXT    NOT NULL,
		detail     TEXT    NOT NULL DEFAULT '',
		created_at TEXT    NOT NULL DEFAULT (datetime('now'))
	);
	CREATE INDEX IF NOT EXISTS idx_session_events_type ON session_events(type);
	CREATE INDEX IF NOT EXISTS idx_session_events_session ON session_events(session_id);
	`
	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// RecordEvent appends one event to the audit trail.
func (s *Store) RecordEvent(ev model.SessionEvent) error {
	if !ev.Type.Valid() {
		return fmt.Errorf("store: record event: unknown type %q", ev.Type)
	}
	created := ev.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO session_events (session_id, username, type, detail, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		ev.SessionID, ev.Username, string(ev.Type), ev.Detail,
		created.UTC().Format(dbTimeLayout))
	if err != nil {
		return fmt.Errorf("store: record event: %w", err)
	}
	return nil
}

// ListEvents returns the most recent events, newest first. A limit <= 0
// returns all events.
func (s *Store) ListEvents(limit int) ([]model.SessionEvent, error) {
	q := `SELECT id, session_id, username, type, detail, created_at
	      FROM session_events ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(context.Background(), q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []model.SessionEvent
	for rows.Next() {
		var ev model.SessionEvent
		var typ, created string
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.Username, &typ, &ev.Detail, &created); err != nil {
			return nil, fmt.Errorf("store: scan event: %w", err)
		}
		ev.Type = model.EventType(typ)
		ev.CreatedAt, _ = time.Parse(dbTimeLayout, created)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list events: %w", err)
	}
	return events, nil
}

// CountByType returns how many events of the given type were recorded.
func (s *Store) CountByType(t model.EventType) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM session_events WHERE type = ?`, string(t)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count events: %w", err)
	}
	return n, nil
}
