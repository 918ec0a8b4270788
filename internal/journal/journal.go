// Package journal keeps an append-only SQLite log of row outcomes so runs
// can be audited after the result cells have been overwritten.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	appLog "sheetcal/internal/log"
	"sheetcal/internal/model"
)

type DB struct {
	*sql.DB
	now func() time.Time
}

// Entry is one journaled outcome.
type Entry struct {
	ID         int64        `json:"id"`
	RunID      string       `json:"run_id"`
	RecordedAt time.Time    `json:"recorded_at"`
	Result     model.Result `json:"result"`
}

// Open opens or creates the journal database and runs migrations.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	j := &DB{DB: db, now: time.Now}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *DB) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		row_num INTEGER NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL,
		result_text TEXT NOT NULL,
		new_event_id TEXT NOT NULL DEFAULT '',
		clear_event_id INTEGER NOT NULL DEFAULT 0,
		recorded_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS outcomes_run ON outcomes (run_id);`

	if _, err := j.Exec(query); err != nil {
		return fmt.Errorf("failed to run migration: %w", err)
	}
	appLog.Debug("journal tables initialized")
	return nil
}

// Record appends one outcome.
func (j *DB) Record(ctx context.Context, runID string, res model.Result) error {
	query := `INSERT INTO outcomes (run_id, row_num, title, kind, result_text, new_event_id, clear_event_id, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := j.ExecContext(ctx, query,
		runID,
		res.Row,
		res.Title,
		string(res.Kind),
		res.Outcome.ResultText,
		res.Outcome.NewEventID,
		res.Outcome.ClearEventID,
		j.now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Recent returns the newest entries first.
func (j *DB) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	return j.query(ctx, `SELECT id, run_id, row_num, title, kind, result_text, new_event_id, clear_event_id, recorded_at
		FROM outcomes ORDER BY id DESC LIMIT ?`, limit)
}

// Run returns the entries of one run in row order.
func (j *DB) Run(ctx context.Context, runID string) ([]Entry, error) {
	return j.query(ctx, `SELECT id, run_id, row_num, title, kind, result_text, new_event_id, clear_event_id, recorded_at
		FROM outcomes WHERE run_id = ? ORDER BY id`, runID)
}

func (j *DB) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := j.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			kind     string
			recorded string
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Result.Row, &e.Result.Title, &kind,
			&e.Result.Outcome.ResultText, &e.Result.Outcome.NewEventID, &e.Result.Outcome.ClearEventID, &recorded); err != nil {
			return nil, err
		}
		e.Result.Kind = model.Kind(kind)
		e.Result.Outcome.ResetAction = true
		e.RecordedAt, _ = time.Parse(time.RFC3339Nano, recorded)
		out = append(out, e)
	}
	return out, rows.Err()
}
