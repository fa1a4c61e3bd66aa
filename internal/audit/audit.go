// Package audit provides SQLite-backed durable storage for enforcement
// history: one row per run, one row per decision.
//
// The audit log is an observer, not a collaborator: the engine's outcome
// never depends on it, and callers are expected to log and continue when
// recording fails rather than abort a run whose repairs already landed.
package audit

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/wardenhq/warden/internal/engine"
)

//go:embed schema.sql
var schemaSQL string

// Log is the audit store handle.
type Log struct {
	db *sql.DB
}

// Open creates or opens the audit database at path. The database is
// configured with WAL mode for concurrent reads, NORMAL synchronous mode,
// a 5-second busy timeout, and foreign key enforcement. Idempotent.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect audit log: %w", err)
	}

	// One writer at a time avoids SQLITE_BUSY on the single-connection
	// usage pattern the engine has.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Log{db: db}, nil
}

// schemaVersion is the current audit schema. Stored in PRAGMA user_version
// so future versions can migrate in place.
const schemaVersion = 1

func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("audit log schema version %d is newer than supported version %d", version, schemaVersion)
	}
	if version == schemaVersion {
		return nil
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply audit schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (l *Log) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Record stores a completed run and all its decisions in one transaction.
func (l *Log) Record(ctx context.Context, res *engine.RunResult) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, actor, commit_sha, parent_sha, started, finished,
		                  skipped, skip_reason, corrections, committed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, res.Actor, res.Commit, res.Parent,
		res.Started.Format(time.RFC3339Nano), res.Finished.Format(time.RFC3339Nano),
		boolInt(res.Skipped), res.SkipReason, len(res.Corrections), boolInt(res.Committed))
	if err != nil {
		return fmt.Errorf("record run %s: %w", res.RunID, err)
	}

	for _, d := range res.Decisions {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO decisions (run_id, kind, path, old_path, outcome, grant_kind, reason, repair)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			res.RunID, string(d.Kind), d.Path, d.OldPath,
			string(d.Outcome), string(d.Grant), d.Reason, string(d.Repair))
		if err != nil {
			return fmt.Errorf("record decision %s: %w", d.Path, err)
		}
	}

	return tx.Commit()
}

// RunSummary is one row of enforcement history.
type RunSummary struct {
	RunID       string
	Actor       string
	Commit      string
	Started     time.Time
	Skipped     bool
	Corrections int
	Committed   bool
}

// RecentRuns returns the most recent runs, newest first.
func (l *Log) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, actor, commit_sha, started, skipped, corrections, committed
		FROM runs ORDER BY started DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var started string
		var skipped, committed int
		if err := rows.Scan(&r.RunID, &r.Actor, &r.Commit, &started, &skipped, &r.Corrections, &committed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Started, _ = time.Parse(time.RFC3339Nano, started)
		r.Skipped = skipped != 0
		r.Committed = committed != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// Decisions returns all decisions recorded for a run, in insertion order.
func (l *Log) Decisions(ctx context.Context, runID string) ([]engine.Decision, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT kind, path, old_path, outcome, grant_kind, reason, repair
		FROM decisions WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []engine.Decision
	for rows.Next() {
		var d engine.Decision
		var kind, outcome, grant, repair string
		if err := rows.Scan(&kind, &d.Path, &d.OldPath, &outcome, &grant, &d.Reason, &repair); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		d.Kind = engine.Kind(kind)
		d.Outcome = engine.Outcome(outcome)
		d.Grant = engine.Grant(grant)
		d.Repair = engine.Repair(repair)
		out = append(out, d)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
