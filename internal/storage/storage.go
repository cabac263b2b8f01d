package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pendergraft/contraverify/internal/config"
)

// RunStore records verification runs and their per-artifact results.
type RunStore interface {
	CreateRun(ctx context.Context, run *Run) error
	RecordResult(ctx context.Context, result *ResultRecord) error
	FinishRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter, pagination PaginationParams) (*PaginatedResult[Run], error)
}

// APIKeyStore handles API key operations
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, name string) (key string, err error)
	ValidateAPIKey(ctx context.Context, key string) (*APIKey, error)
	ListAPIKeys(ctx context.Context) ([]APIKey, error)
	RevokeAPIKey(ctx context.Context, id string) error
}

// Store combines all storage interfaces with lifecycle methods.
// Consumers define their own minimal interfaces based on their actual usage.
type Store interface {
	RunStore
	APIKeyStore

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}

// Run statuses
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunAborted   = "aborted"
)

// Run is one invocation of the verifier over one network directory.
type Run struct {
	ID          string
	Network     string
	ChainID     uint64
	ExplorerURL string
	DryRun      bool
	Status      string
	Error       string
	Counts      RunCounts
	StartedAt   string
	FinishedAt  string
	Results     []ResultRecord // populated by GetRun only
}

// RunCounts are per-outcome totals for a run.
type RunCounts struct {
	Total           int
	AlreadyVerified int
	SubmittedOK     int
	SubmittedFailed int
	Skipped         int
	Failed          int
}

// ResultRecord is the stored outcome for one artifact.
type ResultRecord struct {
	ID        string
	RunID     string
	File      string
	Address   string
	Contract  string
	Outcome   string
	Reason    string
	Error     string
	CreatedAt string
}

// APIKey represents an API key
type APIKey struct {
	ID         string
	Name       string
	KeyHash    string
	CreatedAt  string
	LastUsedAt string
	RevokedAt  string
}

// RunFilter contains filter options for listing runs
type RunFilter struct {
	Network string
	Status  string
}

// PaginationParams contains pagination options
type PaginationParams struct {
	Limit  int
	Cursor string
}

// PaginatedResult contains paginated results
type PaginatedResult[T any] struct {
	Data       []T
	HasMore    bool
	NextCursor string
}

// New creates a new store based on configuration
func New(cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		return NewSQLiteStore(cfg.SQLite.Path, logger)
	case "postgres":
		return NewPostgresStore(cfg.Postgres.URL, logger)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
