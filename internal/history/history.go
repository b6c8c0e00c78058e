// Package history keeps a ledger of past testenv runs in SQLite, locally or
// on a libSQL server.
package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		command TEXT NOT NULL,
		work_dir TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS stages (
		run_id TEXT NOT NULL REFERENCES runs(id),
		position INTEGER NOT NULL,
		stage TEXT NOT NULL,
		status TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, position)
	)`,
	`CREATE INDEX IF NOT EXISTS runs_started_at ON runs (started_at)`,
}

// Run statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one CLI invocation.
type Run struct {
	ID        string
	Command   string
	WorkDir   string
	StartedAt time.Time
	Duration  time.Duration
	Status    string
	Error     string
	Stages    []Stage
}

// Stage is the outcome of one stage of a run.
type Stage struct {
	Name     string
	Status   string
	Duration time.Duration
	Error    string
}

// NewRun starts a run record with a fresh id.
func NewRun(command, workDir string, startedAt time.Time) Run {
	return Run{ID: uuid.NewString(), Command: command, WorkDir: workDir, StartedAt: startedAt}
}

// Finish sets the status, error and duration of r.
func (r *Run) Finish(err error, finishedAt time.Time) {
	r.Duration = finishedAt.Sub(r.StartedAt)
	r.Status = StatusSucceeded
	r.Error = ""
	if err != nil {
		r.Status = StatusFailed
		r.Error = err.Error()
	}
}

type runRow struct {
	ID         string `db:"id"`
	Command    string `db:"command"`
	WorkDir    string `db:"work_dir"`
	StartedAt  int64  `db:"started_at"`
	DurationMs int64  `db:"duration_ms"`
	Status     string `db:"status"`
	Error      string `db:"error"`
}

type stageRow struct {
	RunID      string `db:"run_id"`
	Position   int    `db:"position"`
	Stage      string `db:"stage"`
	Status     string `db:"status"`
	DurationMs int64  `db:"duration_ms"`
	Error      string `db:"error"`
}

// Ledger stores runs.
type Ledger struct {
	db *sqlx.DB
}

// driverFor picks the SQL driver for a ledger location.
func driverFor(url string) string {
	lower := strings.ToLower(url)
	for _, prefix := range []string{"libsql://", "http://", "https://", "ws://", "wss://"} {
		if strings.HasPrefix(lower, prefix) {
			return "libsql"
		}
	}
	return "sqlite"
}

// Open opens the ledger at url, creating the file and tables when missing.
// url is a SQLite file path or a libsql:// URL.
func Open(ctx context.Context, url string) (*Ledger, error) {
	driverName := driverFor(url)
	if driverName == "sqlite" {
		path := strings.TrimPrefix(url, "file:")
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}

	db, err := sqlx.Open(driverName, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	if driverName == "sqlite" {
		// one writer at a time for a local file
		db.SetMaxOpenConns(1)
	}
	for _, statement := range schema {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to initialize history: %w", err)
		}
	}
	return &Ledger{db: db}, nil
}

// Close closes the ledger.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record stores a finished run and its stages in one transaction.
func (l *Ledger) Record(ctx context.Context, run Run) error {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.NamedExecContext(ctx, `INSERT INTO runs (id, command, work_dir, started_at, duration_ms, status, error)
		VALUES (:id, :command, :work_dir, :started_at, :duration_ms, :status, :error)`, runRow{
		ID:         run.ID,
		Command:    run.Command,
		WorkDir:    run.WorkDir,
		StartedAt:  run.StartedAt.UnixMilli(),
		DurationMs: run.Duration.Milliseconds(),
		Status:     run.Status,
		Error:      run.Error,
	})
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	for i, stage := range run.Stages {
		_, err := tx.NamedExecContext(ctx, `INSERT INTO stages (run_id, position, stage, status, duration_ms, error)
			VALUES (:run_id, :position, :stage, :status, :duration_ms, :error)`, stageRow{
			RunID:      run.ID,
			Position:   i,
			Stage:      stage.Name,
			Status:     stage.Status,
			DurationMs: stage.Duration.Milliseconds(),
			Error:      stage.Error,
		})
		if err != nil {
			return fmt.Errorf("failed to record stage %s: %w", stage.Name, err)
		}
	}
	return tx.Commit()
}

// Recent returns up to limit runs, newest first, with their stages.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []runRow
	err := l.db.SelectContext(ctx, &rows, `SELECT id, command, work_dir, started_at, duration_ms, status, error
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	runs := make([]Run, 0, len(rows))
	for _, row := range rows {
		run := Run{
			ID:        row.ID,
			Command:   row.Command,
			WorkDir:   row.WorkDir,
			StartedAt: time.UnixMilli(row.StartedAt),
			Duration:  time.Duration(row.DurationMs) * time.Millisecond,
			Status:    row.Status,
			Error:     row.Error,
		}

		var stages []stageRow
		err := l.db.SelectContext(ctx, &stages, `SELECT run_id, position, stage, status, duration_ms, error
			FROM stages WHERE run_id = ? ORDER BY position`, row.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to read stages of run %s: %w", row.ID, err)
		}
		for _, s := range stages {
			run.Stages = append(run.Stages, Stage{
				Name:     s.Stage,
				Status:   s.Status,
				Duration: time.Duration(s.DurationMs) * time.Millisecond,
				Error:    s.Error,
			})
		}
		runs = append(runs, run)
	}
	return runs, nil
}
