package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite" // pure Go driver, registered as "sqlite"
)

// MaxHistoryRuns bounds the runs kept; older ones are deleted on Record.
const MaxHistoryRuns = 500

// Run statuses.
const (
	StatusOK              = "ok"
	StatusKeywordsAborted = "keywords_aborted"
	StatusFailed          = "failed"
)

// Run is one recorded index run.
type Run struct {
	ID          string
	StartedAt   time.Time
	Duration    time.Duration
	Output      string
	OutputBytes int64
	Files       int
	Nodes       int
	Keywords    int
	Matches     int
	Tags        int
	Warnings    int
	Errors      int
	Status      string

	// Diagnostics counts reported problems by error code.
	Diagnostics map[string]int
}

// HistoryStore persists runs in SQLite.
type HistoryStore struct {
	db *sql.DB
}

// DefaultHistoryPath returns ~/.kbi/history.db.
func DefaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".kbi", "history.db")
	}
	return filepath.Join(home, ".kbi", "history.db")
}

// OpenHistory opens (creating if needed) the history database at path.
func OpenHistory(path string) (*HistoryStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	// Single writer; concurrent kbi runs wait on the busy timeout.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &HistoryStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		started_at INTEGER NOT NULL,
		duration_ns INTEGER NOT NULL,
		output TEXT NOT NULL,
		output_bytes INTEGER NOT NULL DEFAULT 0,
		files INTEGER NOT NULL DEFAULT 0,
		nodes INTEGER NOT NULL DEFAULT 0,
		keywords INTEGER NOT NULL DEFAULT 0,
		matches INTEGER NOT NULL DEFAULT 0,
		tags INTEGER NOT NULL DEFAULT 0,
		warnings INTEGER NOT NULL DEFAULT 0,
		errors INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_diagnostics (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		code TEXT NOT NULL,
		count INTEGER NOT NULL,
		PRIMARY KEY (run_id, code)
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	return nil
}

// Record stores run and trims the table to MaxHistoryRuns.
func (s *HistoryStore) Record(ctx context.Context, run Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, duration_ns, output, output_bytes,
			files, nodes, keywords, matches, tags, warnings, errors, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt.UnixNano(), int64(run.Duration), run.Output, run.OutputBytes,
		run.Files, run.Nodes, run.Keywords, run.Matches, run.Tags, run.Warnings, run.Errors, run.Status)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if len(run.Diagnostics) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_diagnostics (run_id, code, count) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		codes := make([]string, 0, len(run.Diagnostics))
		for code := range run.Diagnostics {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		for _, code := range codes {
			if _, err := stmt.ExecContext(ctx, run.ID, code, run.Diagnostics[code]); err != nil {
				return fmt.Errorf("insert diagnostic count: %w", err)
			}
		}
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM runs
		WHERE seq NOT IN (SELECT seq FROM runs ORDER BY seq DESC LIMIT ?)
	`, MaxHistoryRuns)
	if err != nil {
		return fmt.Errorf("trim history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// List returns up to limit runs, newest first.
func (s *HistoryStore) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = MaxHistoryRuns
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, duration_ns, output, output_bytes,
			files, nodes, keywords, matches, tags, warnings, errors, status
		FROM runs
		ORDER BY seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, duration int64
		if err := rows.Scan(&r.ID, &started, &duration, &r.Output, &r.OutputBytes,
			&r.Files, &r.Nodes, &r.Keywords, &r.Matches, &r.Tags, &r.Warnings, &r.Errors, &r.Status); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.Unix(0, started)
		r.Duration = time.Duration(duration)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		diags, err := s.diagnostics(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Diagnostics = diags
	}
	return runs, nil
}

func (s *HistoryStore) diagnostics(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code, count FROM run_diagnostics WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("query diagnostics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out map[string]int
	for rows.Next() {
		var code string
		var n int
		if err := rows.Scan(&code, &n); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		if out == nil {
			out = make(map[string]int)
		}
		out[code] = n
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}
