// Package sqlite implements eventlog.Log on SQLite via modernc.org/sqlite,
// a pure Go driver, so file-backed persistence needs no cgo. Events are
// stored as wire-encoded JSON documents keyed by their ULID, which sorts by
// creation time.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/braidworks/braid/core"
	"github.com/braidworks/braid/eventlog"
	"github.com/braidworks/braid/wire"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS events (
  id TEXT PRIMARY KEY,
  run_id TEXT NOT NULL,
  seq INTEGER NOT NULL,
  kind TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_run_seq ON events(run_id, seq);
`

// Log is a file-backed eventlog.Log. It owns its database handle; Close
// releases it.
type Log struct {
	db *sql.DB
}

// Open opens (creating if needed) the event log at path. Parent directories
// are created automatically.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", stmt, err)
		}
	}

	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Log{db: db}, nil
}

// Migrate applies the event log schema. It is idempotent.
func Migrate(db *sql.DB) error {
	statements := strings.Split(schemaSQL, ";")
	for _, raw := range statements {
		stmt := strings.TrimSpace(raw)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w (statement=%q)", err, stmt)
		}
	}
	return nil
}

// Append implements eventlog.Log. Re-appending an already stored event id is
// a no-op.
func (l *Log) Append(ctx context.Context, ev core.Event) error {
	doc, err := wire.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	_, err = l.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO events (id, run_id, seq, kind, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.RunID, ev.Seq, string(ev.Kind()), string(doc), ev.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Read implements eventlog.Log.
func (l *Log) Read(ctx context.Context, runID string) ([]core.Event, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT payload FROM events WHERE run_id = ? ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []core.Event
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev, err := wire.Unmarshal([]byte(doc))
		if err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	if len(out) == 0 {
		return nil, eventlog.ErrNotFound
	}
	return out, nil
}

// Runs implements eventlog.Log. Runs are ordered by their first event's
// ULID, which sorts by creation time.
func (l *Log) Runs(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT run_id FROM events GROUP BY run_id ORDER BY MIN(id) ASC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var runID string
		if err := rows.Scan(&runID); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, runID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// Close implements eventlog.Log.
func (l *Log) Close() error { return l.db.Close() }
