// Package history persists prompt/response exchanges in a local SQLite
// database so past runs can be reviewed from the command line.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure Go driver
)

const (
	SourcePrompt = "prompt"
	SourceChat   = "chat"
	SourceTask   = "task"
)

type Exchange struct {
	ID          string
	CreatedAt   time.Time
	Source      string
	Model       string
	Temperature float32
	Prompt      string
	Response    string
	EvalCount   int
	Duration    time.Duration
}

const schema = `
CREATE TABLE IF NOT EXISTS exchanges (
    id TEXT PRIMARY KEY,
    created_at INTEGER NOT NULL,  -- Unix timestamp
    source TEXT NOT NULL,
    model TEXT NOT NULL,
    temperature REAL NOT NULL,
    prompt TEXT NOT NULL,
    response TEXT NOT NULL,
    eval_count INTEGER NOT NULL DEFAULT 0,
    duration_ms INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_exchanges_created_at ON exchanges(created_at);
`

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the exchange database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer, so keep one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts one exchange. A zero ID or timestamp is filled in.
func (s *Store) Record(ex Exchange) error {
	if ex.ID == "" {
		ex.ID = uuid.NewString()
	}
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO exchanges (id, created_at, source, model, temperature, prompt, response, eval_count, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ex.ID, ex.CreatedAt.Unix(), ex.Source, ex.Model, ex.Temperature,
		ex.Prompt, ex.Response, ex.EvalCount, ex.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record exchange: %w", err)
	}
	return nil
}

// Recent returns up to n exchanges, newest first.
func (s *Store) Recent(n int) ([]Exchange, error) {
	rows, err := s.db.Query(
		`SELECT id, created_at, source, model, temperature, prompt, response, eval_count, duration_ms
		 FROM exchanges ORDER BY created_at DESC, id LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query exchanges: %w", err)
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		var ex Exchange
		var createdAt int64
		var durationMS int64
		if err := rows.Scan(&ex.ID, &createdAt, &ex.Source, &ex.Model, &ex.Temperature,
			&ex.Prompt, &ex.Response, &ex.EvalCount, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan exchange: %w", err)
		}
		ex.CreatedAt = time.Unix(createdAt, 0)
		ex.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, ex)
	}
	return out, rows.Err()
}

// Clear deletes all exchanges and reports how many were removed.
func (s *Store) Clear() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM exchanges`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear exchanges: %w", err)
	}
	return res.RowsAffected()
}
