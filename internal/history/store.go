// Package history persists build events to SQLite so past builds can be
// inspected after the fact.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Event type names recorded by the builder.
const (
	EventBuildStarted      = "BuildStarted"
	EventItemBuilt         = "ItemBuilt"
	EventItemFailed        = "ItemFailed"
	EventJournalReconciled = "JournalReconciled"
	EventBuildFinished     = "BuildFinished"
)

// Event is one recorded build event.
type Event struct {
	ID        int64
	BuildID   string
	Type      string
	Timestamp time.Time
	Payload   json.RawMessage
}

// BuildSummary condenses the events of one build for listings.
type BuildSummary struct {
	BuildID    string    `json:"build_id"`
	StartedAt  time.Time `json:"started_at"`
	Outcome    string    `json:"outcome"`
	ItemsBuilt int       `json:"items_built"`
	Failures   int       `json:"failures"`
}

// Store defines the persistence interface for build events.
type Store interface {
	Append(ctx context.Context, buildID, eventType string, payload any) error
	ByBuild(ctx context.Context, buildID string) ([]Event, error)
	RecentBuilds(ctx context.Context, limit int) ([]BuildSummary, error)
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (or creates) the build history database. Use
// ":memory:" for an in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		build_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		payload BLOB
	);
	CREATE INDEX IF NOT EXISTS idx_build_id ON events(build_id);
	CREATE INDEX IF NOT EXISTS idx_event_type ON events(event_type);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append records one event. The payload is JSON-marshaled; nil is allowed.
func (s *SQLiteStore) Append(ctx context.Context, buildID, eventType string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var payloadJSON []byte
	if payload != nil {
		var err error
		payloadJSON, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO events (build_id, event_type, timestamp, payload) VALUES (?, ?, ?, ?)",
		buildID, eventType, time.Now().Unix(), payloadJSON,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ByBuild retrieves all events for one build in insertion order.
func (s *SQLiteStore) ByBuild(ctx context.Context, buildID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, build_id, event_type, timestamp, payload FROM events WHERE build_id = ? ORDER BY id",
		buildID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// RecentBuilds summarizes the most recent builds, newest first.
func (s *SQLiteStore) RecentBuilds(ctx context.Context, limit int) ([]BuildSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT build_id, MIN(timestamp),
			SUM(CASE WHEN event_type = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN event_type = ? THEN 1 ELSE 0 END)
		FROM events
		GROUP BY build_id
		ORDER BY MIN(id) DESC
		LIMIT ?`,
		EventItemBuilt, EventItemFailed, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	var summaries []BuildSummary
	for rows.Next() {
		var sum BuildSummary
		var started int64
		if err := rows.Scan(&sum.BuildID, &started, &sum.ItemsBuilt, &sum.Failures); err != nil {
			return nil, fmt.Errorf("scan build summary: %w", err)
		}
		sum.StartedAt = time.Unix(started, 0)
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate builds: %w", err)
	}

	for i := range summaries {
		summaries[i].Outcome, err = s.buildOutcome(ctx, summaries[i].BuildID)
		if err != nil {
			return nil, err
		}
	}
	return summaries, nil
}

func (s *SQLiteStore) buildOutcome(ctx context.Context, buildID string) (string, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM events WHERE build_id = ? AND event_type = ? ORDER BY id DESC LIMIT 1",
		buildID, EventBuildFinished,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return "interrupted", nil
	}
	if err != nil {
		return "", fmt.Errorf("query outcome: %w", err)
	}

	var finished struct {
		Outcome string `json:"outcome"`
	}
	if err := json.Unmarshal(payload, &finished); err != nil {
		return "unknown", nil
	}
	return finished.Outcome, nil
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var e Event
		var timestampUnix int64
		if err := rows.Scan(&e.ID, &e.BuildID, &e.Type, &timestampUnix, (*[]byte)(&e.Payload)); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Timestamp = time.Unix(timestampUnix, 0)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return events, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// NoopStore discards all events; used when no history path is configured.
type NoopStore struct{}

func (NoopStore) Append(context.Context, string, string, any) error { return nil }
func (NoopStore) ByBuild(context.Context, string) ([]Event, error)  { return nil, nil }
func (NoopStore) RecentBuilds(context.Context, int) ([]BuildSummary, error) {
	return nil, nil
}
func (NoopStore) Close() error { return nil }
