// Package history persists freeze records so site authors can inspect past
// builds (duration, files written, outcome).
package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// BuildRecord is one completed freeze.
type BuildRecord struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Files     int
	Output    string
	Outcome   string // success|failed
}

// Store records builds in SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates a build history store. Use ":memory:" for an in-memory
// database, or a file path for persistent storage.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		files INTEGER NOT NULL,
		output TEXT NOT NULL,
		outcome TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_builds_started_at ON builds(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// NewBuildID returns a fresh build identifier.
func NewBuildID() string {
	return uuid.NewString()
}

// Record inserts a completed build. A zero ID gets a fresh one.
func (s *Store) Record(ctx context.Context, rec BuildRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = NewBuildID()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO builds (id, started_at, duration_ms, files, output, outcome) VALUES (?, ?, ?, ?, ?, ?)",
		rec.ID, rec.StartedAt.Unix(), rec.Duration.Milliseconds(), rec.Files, rec.Output, rec.Outcome,
	)
	if err != nil {
		return fmt.Errorf("insert build record: %w", err)
	}
	return nil
}

// Recent returns up to limit builds, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]BuildRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, started_at, duration_ms, files, output, outcome FROM builds ORDER BY started_at DESC, id LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	var records []BuildRecord
	for rows.Next() {
		var rec BuildRecord
		var started int64
		var durationMS int64
		if err := rows.Scan(&rec.ID, &started, &durationMS, &rec.Files, &rec.Output, &rec.Outcome); err != nil {
			return nil, fmt.Errorf("scan build row: %w", err)
		}
		rec.StartedAt = time.Unix(started, 0)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
