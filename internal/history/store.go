package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"meetexport/internal/export"
	"meetexport/internal/fileutil"
	"meetexport/internal/services"
)

// Store persists run history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

var _ export.Ledger = (*Store)(nil)

// Open initializes or connects to the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file.
func (s *Store) Path() string {
	return s.path
}

// BeginRun records a new run.
func (s *Store) BeginRun(ctx context.Context, run export.RunInfo) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, outcome, total, output_dir) VALUES (?, ?, ?, ?, ?)`,
		run.RunID, formatTime(run.StartedAt), OutcomeRunning, run.Total, run.OutputDir,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordItem stores one item result and updates the run counters. Written
// files are hashed so later edits can be detected.
func (s *Store) RecordItem(ctx context.Context, runID string, position int, result export.Result) error {
	var outputDir string
	if err := s.db.QueryRowContext(ctx, `SELECT output_dir FROM runs WHERE id = ?`, runID).Scan(&outputDir); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return services.Wrap(services.ErrNotFound, "history", "record", fmt.Sprintf("run %s", runID), nil)
		}
		return fmt.Errorf("lookup run: %w", err)
	}

	var digest string
	if result.Complete && result.Filename != "" {
		sum, err := fileutil.SHA256File(filepath.Join(outputDir, result.Filename))
		if err != nil {
			return fmt.Errorf("hash export: %w", err)
		}
		digest = sum
	}

	var checksJSON []byte
	if result.Verdict != nil {
		encoded, err := json.Marshal(result.Verdict.Checks)
		if err != nil {
			return fmt.Errorf("encode checks: %w", err)
		}
		checksJSON = encoded
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO run_items (
            run_id, position, item_id, title, complete, filename, sha256,
            error_message, error_kind, attempts, content_length, checks_json, recorded_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, position, result.ItemID, result.Title, boolToInt(result.Complete),
		nullableString(result.Filename), nullableString(digest),
		nullableString(result.Error), nullableString(result.Kind()),
		result.Attempts, result.ContentLength, nullableString(string(checksJSON)),
		formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("insert run item: %w", err)
	}

	column := "completed"
	if !result.Complete {
		column = "failed"
	}
	if _, err := tx.ExecContext(ctx, `UPDATE runs SET `+column+` = `+column+` + 1 WHERE id = ?`, runID); err != nil {
		return fmt.Errorf("update run counters: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run item: %w", err)
	}
	return nil
}

// FinishRun records the final outcome.
func (s *Store) FinishRun(ctx context.Context, runID, outcome string, finishedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET outcome = ?, finished_at = ? WHERE id = ?`,
		outcome, formatTime(finishedAt), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return services.Wrap(services.ErrNotFound, "history", "finish", fmt.Sprintf("run %s", runID), nil)
	}
	return nil
}

const runColumns = "id, started_at, finished_at, outcome, total, completed, failed, output_dir"

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns a run and its items. id may be an unambiguous prefix of the
// full run id.
func (s *Store) GetRun(ctx context.Context, id string) (Run, []ItemRecord, error) {
	if id == "" {
		return Run{}, nil, services.Wrap(services.ErrNotFound, "history", "get", "empty run id", nil)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ? OR substr(id, 1, ?) = ? LIMIT 2`, id, len(id), id)
	if err != nil {
		return Run{}, nil, fmt.Errorf("get run: %w", err)
	}
	var matches []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return Run{}, nil, fmt.Errorf("scan run: %w", err)
		}
		matches = append(matches, run)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Run{}, nil, fmt.Errorf("get run: %w", err)
	}
	switch len(matches) {
	case 0:
		return Run{}, nil, services.Wrap(services.ErrNotFound, "history", "get", fmt.Sprintf("no run matches %q", id), nil)
	case 2:
		return Run{}, nil, fmt.Errorf("run id %q is ambiguous", id)
	}

	items, err := s.runItems(ctx, matches[0].ID)
	if err != nil {
		return Run{}, nil, err
	}
	return matches[0], items, nil
}

func (s *Store) runItems(ctx context.Context, runID string) ([]ItemRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, position, item_id, title, complete, filename, sha256, error_message,
            error_kind, attempts, content_length, checks_json, recorded_at
        FROM run_items WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("list run items: %w", err)
	}
	defer rows.Close()

	var items []ItemRecord
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
