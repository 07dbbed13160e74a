// Package journal keeps a durable record of service state transitions in
// SQLite. A transition (Up→Down or Down→Up) is a first-class event; the
// journal is what lets the status view say how long a service has been in
// its current state across daemon restarts.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS transitions (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    service     TEXT    NOT NULL,
    from_status TEXT    NOT NULL,
    to_status   TEXT    NOT NULL,
    reason      TEXT    NOT NULL DEFAULT '',
    latency_ms  INTEGER NOT NULL DEFAULT 0,
    at          TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transitions_service_at ON transitions(service, at DESC);
`

// Transition is one recorded state change.
type Transition struct {
	ID        int64
	Service   string
	From      string
	To        string
	Reason    string
	LatencyMs int64
	At        time.Time
}

// DB wraps the SQLite journal.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the journal at path and applies the schema.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal at %q: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Record persists one transition.
func (d *DB) Record(ctx context.Context, t Transition) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO transitions (service, from_status, to_status, reason, latency_ms, at) VALUES (?, ?, ?, ?, ?, ?)`,
		t.Service, t.From, t.To, t.Reason, t.LatencyMs,
		t.At.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording transition for %q: %w", t.Service, err)
	}
	return nil
}

// LastTransition returns the most recent transition for a service, or nil
// if none has been recorded.
func (d *DB) LastTransition(ctx context.Context, service string) (*Transition, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, service, from_status, to_status, reason, latency_ms, at FROM transitions WHERE service = ? ORDER BY at DESC, id DESC LIMIT 1`,
		service,
	)
	t, err := scanTransition(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying last transition for %q: %w", service, err)
	}
	return t, nil
}

// Recent returns the latest transitions across all services, newest first.
func (d *DB) Recent(ctx context.Context, limit int) ([]Transition, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, service, from_status, to_status, reason, latency_ms, at FROM transitions ORDER BY at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying recent transitions: %w", err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		t, err := scanTransition(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transition row: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transition rows: %w", err)
	}
	return out, nil
}

// Prune deletes transitions older than the cutoff.
func (d *DB) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM transitions WHERE at < ?`,
		olderThan.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning transitions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransition(row scanner) (*Transition, error) {
	var t Transition
	var at string
	if err := row.Scan(&t.ID, &t.Service, &t.From, &t.To, &t.Reason, &t.LatencyMs, &at); err != nil {
		return nil, err
	}
	parsed, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339, at)
		if err != nil {
			return nil, fmt.Errorf("parsing at %q: %w", at, err)
		}
	}
	t.At = parsed
	return &t, nil
}
