// Package history persists completed tool-call runs so past executions
// can be inspected after the fact.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/relayforge/relay/internal/core"
	_ "modernc.org/sqlite"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

// Run is one recorded execution.
type Run struct {
	ID         string        `json:"id"`
	Subagent   string        `json:"subagent"`
	SessionID  string        `json:"session_id,omitempty"`
	Status     string        `json:"status"`
	ExitCode   int           `json:"exit_code"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
	Content    string        `json:"content,omitempty"`
}

// Store records runs in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	// WAL keeps concurrent readers cheap.
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	if _, err := db.Exec(migrationV1); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating history database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores the outcome of one tool call and returns the run id.
func (s *Store) Record(ctx context.Context, result *core.ToolCallResult) (string, error) {
	run := Run{
		ID:         uuid.NewString(),
		Subagent:   result.Request.ToolName,
		SessionID:  result.Request.SessionID(),
		Status:     string(result.Status),
		StartedAt:  result.StartTime,
		FinishedAt: result.EndTime,
		Duration:   result.Duration,
		Content:    result.Content,
	}
	if code, ok := result.Metadata["exit_code"].(int); ok {
		run.ExitCode = code
	}
	if result.Error != nil {
		run.Error = result.Error.Message
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, subagent, session_id, status, exit_code,
			started_at, finished_at, duration_ms, error, content)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Subagent, run.SessionID, run.Status, run.ExitCode,
		run.StartedAt, run.FinishedAt, run.Duration.Milliseconds(),
		run.Error, run.Content,
	)
	if err != nil {
		return "", fmt.Errorf("recording run: %w", err)
	}
	return run.ID, nil
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subagent, session_id, status, exit_code,
			started_at, finished_at, duration_ms, error, content
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var durationMS int64
		if err := rows.Scan(&r.ID, &r.Subagent, &r.SessionID, &r.Status, &r.ExitCode,
			&r.StartedAt, &r.FinishedAt, &durationMS, &r.Error, &r.Content); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Export writes the most recent runs to path as JSON, atomically.
func (s *Store) Export(ctx context.Context, path string, limit int) error {
	runs, err := s.List(ctx, limit)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding runs: %w", err)
	}
	if err := atomicWriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	return nil
}
