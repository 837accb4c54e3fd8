// Package journal persists arbiter decisions and position lifecycle events
// to SQLite for audit and replay verification. The event log plus the
// single-sequencer arbiter makes every decision reproducible after the fact.
package journal

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"dualstrat/internal/model"
)

// Journal is a single-writer SQLite journal.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// Open creates or opens the journal database at path, applying WAL mode and
// the schema.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("journal dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS decisions (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		signal_id   TEXT NOT NULL,
		strategy    TEXT NOT NULL,
		instrument  TEXT NOT NULL,
		status      TEXT NOT NULL,
		reason      TEXT,
		size        INTEGER NOT NULL,
		decided_at  DATETIME NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_decisions_instrument ON decisions(instrument);
	CREATE INDEX IF NOT EXISTS idx_decisions_decided_at ON decisions(decided_at);

	CREATE TABLE IF NOT EXISTS events (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type  TEXT NOT NULL,
		symbol      TEXT NOT NULL,
		payload     TEXT NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_events_symbol ON events(symbol);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	slog.Info("journal opened", "path", path)
	return &Journal{db: db}, nil
}

// RecordDecision persists one arbiter verdict.
func (j *Journal) RecordDecision(d model.ArbiterDecision) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT INTO decisions (signal_id, strategy, instrument, status, reason, size, decided_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.SignalID, d.StrategyID, d.Instrument, d.Status, d.Reason,
		d.ResultingPos, d.DecidedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// RecordEvent persists one lifecycle event as JSON.
func (j *Journal) RecordEvent(eventType, symbol string, payload []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT INTO events (event_type, symbol, payload) VALUES (?, ?, ?)`,
		eventType, symbol, string(payload),
	)
	return err
}

// RecentDecisions returns the last N decisions, newest first.
func (j *Journal) RecentDecisions(limit int) ([]model.ArbiterDecision, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT signal_id, strategy, instrument, status, reason, size, decided_at
		 FROM decisions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ArbiterDecision
	for rows.Next() {
		var d model.ArbiterDecision
		var decidedAt string
		if err := rows.Scan(&d.SignalID, &d.StrategyID, &d.Instrument,
			&d.Status, &d.Reason, &d.ResultingPos, &decidedAt); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339, decidedAt); err == nil {
			d.DecidedAt = ts
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
