package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new Postgres store
func NewPostgresStore(url string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema := `
	-- API keys
	CREATE TABLE IF NOT EXISTS api_keys (
		id UUID PRIMARY KEY,
		key_hash TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_used_at TIMESTAMPTZ,
		revoked_at TIMESTAMPTZ
	);

	-- Verification runs
	CREATE TABLE IF NOT EXISTS runs (
		id UUID PRIMARY KEY,
		network TEXT NOT NULL,
		chain_id BIGINT NOT NULL DEFAULT 0,
		explorer_url TEXT NOT NULL DEFAULT '',
		dry_run BOOLEAN NOT NULL DEFAULT FALSE,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		total INTEGER NOT NULL DEFAULT 0,
		already_verified INTEGER NOT NULL DEFAULT 0,
		submitted_ok INTEGER NOT NULL DEFAULT 0,
		submitted_failed INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ
	);

	-- Per-artifact results
	CREATE TABLE IF NOT EXISTS results (
		id UUID PRIMARY KEY,
		run_id UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		file TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		contract TEXT NOT NULL DEFAULT '',
		outcome TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
	CREATE INDEX IF NOT EXISTS idx_runs_network ON runs(network);
	CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// CreateRun inserts a run in the running state.
func (s *PostgresStore) CreateRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = generateID()
	}
	if run.StartedAt == "" {
		run.StartedAt = now()
	}
	run.Status = RunRunning

	startedAt, err := parseTime(run.StartedAt)
	if err != nil {
		return err
	}
	query := `INSERT INTO runs (id, network, chain_id, explorer_url, dry_run, status, started_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = s.db.ExecContext(ctx, query, run.ID, run.Network, int64(run.ChainID), run.ExplorerURL, run.DryRun, run.Status, startedAt)
	return err
}

// RecordResult stores one artifact result.
func (s *PostgresStore) RecordResult(ctx context.Context, r *ResultRecord) error {
	if r.ID == "" {
		r.ID = generateID()
	}
	if r.CreatedAt == "" {
		r.CreatedAt = now()
	}
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return err
	}

	query := `INSERT INTO results (id, run_id, file, address, contract, outcome, reason, error, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = s.db.ExecContext(ctx, query, r.ID, r.RunID, r.File, r.Address, r.Contract, r.Outcome, r.Reason, r.Error, createdAt)
	if err != nil && strings.Contains(err.Error(), "foreign key") {
		return fmt.Errorf("run %s: %w", r.RunID, ErrNotFound)
	}
	return err
}

// FinishRun stores the final status and counters of a running run.
func (s *PostgresStore) FinishRun(ctx context.Context, run *Run) error {
	if run.FinishedAt == "" {
		run.FinishedAt = now()
	}
	finishedAt, err := parseTime(run.FinishedAt)
	if err != nil {
		return err
	}

	query := `
		UPDATE runs SET status = $1, error = $2, total = $3, already_verified = $4, submitted_ok = $5,
			submitted_failed = $6, skipped = $7, failed = $8, finished_at = $9
		WHERE id = $10 AND status = $11
	`
	c := run.Counts
	res, err := s.db.ExecContext(ctx, query, run.Status, run.Error, c.Total, c.AlreadyVerified, c.SubmittedOK,
		c.SubmittedFailed, c.Skipped, c.Failed, finishedAt, run.ID, RunRunning)
	if err != nil {
		return err
	}
	return finishResult(res, func() error {
		_, err := s.GetRun(ctx, run.ID)
		return err
	})
}

// GetRun returns a run with its results.
func (s *PostgresStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumnsPG+` FROM runs WHERE id::text = $1`, id)
	run, err := scanPostgresRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, run_id, file, address, contract, outcome, reason, error, created_at FROM results WHERE run_id = $1 ORDER BY file`, run.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var r ResultRecord
		var createdAt time.Time
		if err := rows.Scan(&r.ID, &r.RunID, &r.File, &r.Address, &r.Contract, &r.Outcome, &r.Reason, &r.Error, &createdAt); err != nil {
			return nil, err
		}
		r.CreatedAt = formatTime(createdAt)
		run.Results = append(run.Results, r)
	}
	return run, rows.Err()
}

// ListRuns lists runs, newest first, with cursor-based pagination.
func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter, pagination PaginationParams) (*PaginatedResult[Run], error) {
	limit := normalizeLimit(pagination.Limit)

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Network != "" {
		where = append(where, "network = "+arg(filter.Network))
	}
	if filter.Status != "" {
		where = append(where, "status = "+arg(filter.Status))
	}
	if pagination.Cursor != "" {
		cursor, err := parseTime(pagination.Cursor)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor: %w", err)
		}
		where = append(where, "started_at < "+arg(cursor))
	}

	query := `SELECT ` + runColumnsPG + ` FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC LIMIT " + arg(limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanPostgresRun(rows)
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

const runColumnsPG = `id::text, network, chain_id, explorer_url, dry_run, status, error, total, already_verified,
	submitted_ok, submitted_failed, skipped, failed, started_at, finished_at`

func scanPostgresRun(row scanner) (*Run, error) {
	var (
		run        Run
		chainID    int64
		startedAt  time.Time
		finishedAt sql.NullTime
	)
	err := row.Scan(&run.ID, &run.Network, &chainID, &run.ExplorerURL, &run.DryRun, &run.Status, &run.Error,
		&run.Counts.Total, &run.Counts.AlreadyVerified, &run.Counts.SubmittedOK, &run.Counts.SubmittedFailed,
		&run.Counts.Skipped, &run.Counts.Failed, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	run.ChainID = uint64(chainID)
	run.StartedAt = formatTime(startedAt)
	if finishedAt.Valid {
		run.FinishedAt = formatTime(finishedAt.Time)
	}
	return &run, nil
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeFormat, s)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// CreateAPIKey creates a new API key and returns the raw key once.
func (s *PostgresStore) CreateAPIKey(ctx context.Context, name string) (string, error) {
	key := generateAPIKey()
	_, err := s.db.ExecContext(ctx, "INSERT INTO api_keys (id, key_hash, name) VALUES ($1, $2, $3)", generateID(), hashAPIKey(key), name)
	if err != nil {
		return "", err
	}
	return key, nil
}

// ValidateAPIKey validates an API key
func (s *PostgresStore) ValidateAPIKey(ctx context.Context, key string) (*APIKey, error) {
	var ak APIKey
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, "SELECT id::text, key_hash, name, created_at FROM api_keys WHERE key_hash = $1 AND revoked_at IS NULL", hashAPIKey(key)).Scan(
		&ak.ID, &ak.KeyHash, &ak.Name, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ak.CreatedAt = formatTime(createdAt)
	// Update last used
	_, _ = s.db.ExecContext(ctx, "UPDATE api_keys SET last_used_at = NOW() WHERE id = $1", ak.ID)
	return &ak, nil
}

// ListAPIKeys lists all API keys, including revoked ones
func (s *PostgresStore) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id::text, key_hash, name, created_at, last_used_at, revoked_at FROM api_keys ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		var k APIKey
		var createdAt time.Time
		var lastUsed, revoked sql.NullTime
		if err := rows.Scan(&k.ID, &k.KeyHash, &k.Name, &createdAt, &lastUsed, &revoked); err != nil {
			return nil, err
		}
		k.CreatedAt = formatTime(createdAt)
		if lastUsed.Valid {
			k.LastUsedAt = formatTime(lastUsed.Time)
		}
		if revoked.Valid {
			k.RevokedAt = formatTime(revoked.Time)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// RevokeAPIKey revokes an API key
func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE api_keys SET revoked_at = NOW() WHERE id::text = $1 AND revoked_at IS NULL", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
