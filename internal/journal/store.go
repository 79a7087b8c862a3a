// Package journal keeps a local history of relay, network and automation
// events in SQLite. It is write-mostly and never feeds back into control.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Event types.
const (
	TypeRelay      = "RELAY"
	TypeNetwork    = "NETWORK"
	TypeAutomation = "AUTOMATION"
	TypeSystem     = "SYSTEM"
)

const (
	driverName   = "sqlite"
	timeLayout   = "2006-01-02 15:04:05"
	defaultLimit = 100
	maxLimit     = 1000
)

const schemaEvents = `
CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    occurred_at TIMESTAMP NOT NULL,
    type TEXT NOT NULL,
    message TEXT NOT NULL,
    meta TEXT
);
`

const schemaEventsIndex = `
CREATE INDEX IF NOT EXISTS events_occurred_at ON events (occurred_at);
`

// Entry is one journal record.
type Entry struct {
	ID         string         `json:"id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Type       string         `json:"type"`
	Message    string         `json:"message"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// Filter narrows List. Zero values mean all types and the default limit.
type Filter struct {
	Type  string
	Limit int
}

// Store persists entries.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database. The schema must already exist.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens or creates the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	for i, stmt := range []string{schemaEvents, schemaEventsIndex} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return NewStore(db), nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append inserts e, filling in a missing ID and timestamp.
func (s *Store) Append(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}

	var meta *string
	if len(e.Meta) > 0 {
		b, err := json.Marshal(e.Meta)
		if err != nil {
			return fmt.Errorf("marshal meta: %w", err)
		}
		m := string(b)
		meta = &m
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, occurred_at, type, message, meta)
		VALUES (?, ?, ?, ?, ?)
	`,
		e.ID,
		e.OccurredAt.UTC().Format(timeLayout),
		strings.ToUpper(strings.TrimSpace(e.Type)),
		e.Message,
		meta,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// List returns the newest entries first.
func (s *Store) List(ctx context.Context, f Filter) ([]Entry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	var (
		q    = `SELECT id, occurred_at, type, message, meta FROM events`
		args []any
	)
	if typ := strings.ToUpper(strings.TrimSpace(f.Type)); typ != "" {
		q += " WHERE type = ?"
		args = append(args, typ)
	}
	q += " ORDER BY occurred_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e    Entry
			meta sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.OccurredAt, &e.Type, &e.Message, &meta); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.OccurredAt = e.OccurredAt.UTC()
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &e.Meta); err != nil {
				e.Meta = map[string]any{"raw": meta.String}
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}
