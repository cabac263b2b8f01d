package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// a single writer avoids SQLITE_BUSY between the runner and the API
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	schema := `
	-- API keys
	CREATE TABLE IF NOT EXISTS api_keys (
		id TEXT PRIMARY KEY,
		key_hash TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL,
		last_used_at TEXT,
		revoked_at TEXT
	);

	-- Verification runs
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		network TEXT NOT NULL,
		chain_id INTEGER NOT NULL DEFAULT 0,
		explorer_url TEXT NOT NULL DEFAULT '',
		dry_run INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		total INTEGER NOT NULL DEFAULT 0,
		already_verified INTEGER NOT NULL DEFAULT 0,
		submitted_ok INTEGER NOT NULL DEFAULT 0,
		submitted_failed INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		started_at TEXT NOT NULL,
		finished_at TEXT
	);

	-- Per-artifact results
	CREATE TABLE IF NOT EXISTS results (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		file TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		contract TEXT NOT NULL DEFAULT '',
		outcome TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
	CREATE INDEX IF NOT EXISTS idx_runs_network ON runs(network);
	CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// CreateRun inserts a run in the running state. ID and StartedAt are filled
// in when empty.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = generateID()
	}
	if run.StartedAt == "" {
		run.StartedAt = now()
	}
	run.Status = RunRunning

	query := `INSERT INTO runs (id, network, chain_id, explorer_url, dry_run, status, started_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, run.ID, run.Network, run.ChainID, run.ExplorerURL, run.DryRun, run.Status, run.StartedAt)
	return err
}

// RecordResult stores one artifact result.
func (s *SQLiteStore) RecordResult(ctx context.Context, r *ResultRecord) error {
	if r.ID == "" {
		r.ID = generateID()
	}
	if r.CreatedAt == "" {
		r.CreatedAt = now()
	}

	query := `INSERT INTO results (id, run_id, file, address, contract, outcome, reason, error, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, r.ID, r.RunID, r.File, r.Address, r.Contract, r.Outcome, r.Reason, r.Error, r.CreatedAt)
	if err != nil && strings.Contains(err.Error(), "FOREIGN KEY") {
		return fmt.Errorf("run %s: %w", r.RunID, ErrNotFound)
	}
	return err
}

// FinishRun stores the final status and counters of a running run.
func (s *SQLiteStore) FinishRun(ctx context.Context, run *Run) error {
	if run.FinishedAt == "" {
		run.FinishedAt = now()
	}

	query := `
		UPDATE runs SET status = ?, error = ?, total = ?, already_verified = ?, submitted_ok = ?,
			submitted_failed = ?, skipped = ?, failed = ?, finished_at = ?
		WHERE id = ? AND status = ?
	`
	c := run.Counts
	res, err := s.db.ExecContext(ctx, query, run.Status, run.Error, c.Total, c.AlreadyVerified, c.SubmittedOK,
		c.SubmittedFailed, c.Skipped, c.Failed, run.FinishedAt, run.ID, RunRunning)
	if err != nil {
		return err
	}
	return finishResult(res, func() error {
		_, err := s.GetRun(ctx, run.ID)
		return err
	})
}

// finishResult distinguishes a missing run from one already finished.
func finishResult(res sql.Result, exists func() error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if err := exists(); err != nil {
		return err
	}
	return ErrRunFinished
}

const runColumns = `id, network, chain_id, explorer_url, dry_run, status, error, total, already_verified,
	submitted_ok, submitted_failed, skipped, failed, started_at, COALESCE(finished_at, '')`

// GetRun returns a run with its results.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanSQLiteRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, run_id, file, address, contract, outcome, reason, error, created_at FROM results WHERE run_id = ? ORDER BY file`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var r ResultRecord
		if err := rows.Scan(&r.ID, &r.RunID, &r.File, &r.Address, &r.Contract, &r.Outcome, &r.Reason, &r.Error, &r.CreatedAt); err != nil {
			return nil, err
		}
		run.Results = append(run.Results, r)
	}
	return run, rows.Err()
}

// ListRuns lists runs, newest first, with cursor-based pagination. The
// cursor is the started_at of the last run on the previous page.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter, pagination PaginationParams) (*PaginatedResult[Run], error) {
	limit := normalizeLimit(pagination.Limit)

	var (
		where []string
		args  []any
	)
	if filter.Network != "" {
		where = append(where, "network = ?")
		args = append(args, filter.Network)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if pagination.Cursor != "" {
		where = append(where, "started_at < ?")
		args = append(args, pagination.Cursor)
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return paginate(runs, limit, func(r Run) string { return r.StartedAt }), nil
}

// paginate trims the look-ahead row and computes the next cursor.
func paginate[T any](items []T, limit int, cursor func(T) string) *PaginatedResult[T] {
	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}
	var next string
	if hasMore && len(items) > 0 {
		next = cursor(items[len(items)-1])
	}
	return &PaginatedResult[T]{Data: items, HasMore: hasMore, NextCursor: next}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRun(row scanner) (*Run, error) {
	var run Run
	err := row.Scan(&run.ID, &run.Network, &run.ChainID, &run.ExplorerURL, &run.DryRun, &run.Status, &run.Error,
		&run.Counts.Total, &run.Counts.AlreadyVerified, &run.Counts.SubmittedOK, &run.Counts.SubmittedFailed,
		&run.Counts.Skipped, &run.Counts.Failed, &run.StartedAt, &run.FinishedAt)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// CreateAPIKey creates a new API key and returns the raw key once.
func (s *SQLiteStore) CreateAPIKey(ctx context.Context, name string) (string, error) {
	key := generateAPIKey()
	_, err := s.db.ExecContext(ctx, "INSERT INTO api_keys (id, key_hash, name, created_at) VALUES (?, ?, ?, ?)",
		generateID(), hashAPIKey(key), name, now())
	if err != nil {
		return "", err
	}
	return key, nil
}

// ValidateAPIKey validates an API key
func (s *SQLiteStore) ValidateAPIKey(ctx context.Context, key string) (*APIKey, error) {
	var ak APIKey
	err := s.db.QueryRowContext(ctx, "SELECT id, key_hash, name, created_at FROM api_keys WHERE key_hash = ? AND revoked_at IS NULL", hashAPIKey(key)).Scan(
		&ak.ID, &ak.KeyHash, &ak.Name, &ak.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	// Update last used
	_, _ = s.db.ExecContext(ctx, "UPDATE api_keys SET last_used_at = ? WHERE id = ?", now(), ak.ID)
	return &ak, nil
}

// ListAPIKeys lists all API keys, including revoked ones
func (s *SQLiteStore) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, key_hash, name, created_at, COALESCE(last_used_at, ''), COALESCE(revoked_at, '') FROM api_keys ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		var k APIKey
		if err := rows.Scan(&k.ID, &k.KeyHash, &k.Name, &k.CreatedAt, &k.LastUsedAt, &k.RevokedAt); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// RevokeAPIKey revokes an API key
func (s *SQLiteStore) RevokeAPIKey(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE api_keys SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL", now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
