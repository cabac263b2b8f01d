package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration. It is built once at process entry
// and passed explicitly to every component.
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Auth      AuthConfig
	Logging   LoggingConfig
	RateLimit RateLimitConfig
	Security  SecurityConfig
	Proxy     ProxyConfig
	Verify    VerifyConfig
	Metrics   MetricsConfig

	// Project is the contraverify.toml content, or the built-in defaults.
	Project *Project
	// ProjectPath is where Project was loaded from; empty for defaults.
	ProjectPath string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int
	Host           string
	ReadTimeout    int // seconds
	WriteTimeout   int // seconds
	IdleTimeout    int // seconds
	RequestTimeout int // seconds
}

// StorageConfig holds verification history storage configuration
type StorageConfig struct {
	Enabled  bool
	Type     string // "sqlite" or "postgres"
	Postgres PostgresConfig
	SQLite   SQLiteConfig
}

// PostgresConfig holds Postgres connection settings
type PostgresConfig struct {
	URL string
}

// SQLiteConfig holds SQLite settings
type SQLiteConfig struct {
	Path string
}

// AuthConfig holds authentication settings for the HTTP API
type AuthConfig struct {
	Type string   // "none" or "api-key"
	Keys []string // raw keys, hashed at startup
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string
	Format string // "text" or "json"
}

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	Enabled        bool
	RequestsPerMin int
	WritesPerMin   int
	BurstSize      int
	CleanupMinutes int
}

// SecurityConfig holds security filter settings
type SecurityConfig struct {
	FilterEnabled bool
	MaxBodySizeMB int
}

// ProxyConfig holds trusted proxy settings for X-Forwarded-For handling
type ProxyConfig struct {
	TrustProxy     bool
	TrustedProxies []string // CIDR notation
}

// VerifyConfig holds verifier and explorer client settings
type VerifyConfig struct {
	DeploymentsRoot string
	ExplorerRate    float64 // requests per second
	ExplorerTimeout time.Duration
	ExplorerRetries int
	PollInterval    time.Duration
	PollAttempts    int
	// CheckBytecode compares on-chain code with the artifact before submitting.
	CheckBytecode bool
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled bool
}

// LoadDotenv loads a .env file into the process environment. Variables that
// are already set win. A missing file is not an error.
func LoadDotenv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load loads configuration from environment variables and the project file.
// projectPath may be empty, in which case contraverify.toml is looked up in
// the working directory and built-in defaults apply when it is absent.
func Load(projectPath string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnvInt("CONTRAVERIFY_PORT", 8080),
			Host:           getEnv("CONTRAVERIFY_HOST", "0.0.0.0"),
			ReadTimeout:    getEnvInt("CONTRAVERIFY_READ_TIMEOUT", 30),
			WriteTimeout:   getEnvInt("CONTRAVERIFY_WRITE_TIMEOUT", 600),
			IdleTimeout:    getEnvInt("CONTRAVERIFY_IDLE_TIMEOUT", 120),
			RequestTimeout: getEnvInt("CONTRAVERIFY_REQUEST_TIMEOUT", 600),
		},
		Storage: StorageConfig{
			Enabled: getEnvBool("CONTRAVERIFY_HISTORY", true),
			Type:    getEnv("CONTRAVERIFY_STORAGE_TYPE", "sqlite"),
			Postgres: PostgresConfig{
				URL: getEnv("CONTRAVERIFY_DATABASE_URL", ""),
			},
			SQLite: SQLiteConfig{
				Path: getEnv("CONTRAVERIFY_SQLITE_PATH", "./.contraverify/history.db"),
			},
		},
		Auth: AuthConfig{
			Type: getEnv("CONTRAVERIFY_AUTH_TYPE", "api-key"),
			Keys: getEnvStringSlice("CONTRAVERIFY_API_KEYS", nil),
		},
		Logging: LoggingConfig{
			Level:  getEnv("CONTRAVERIFY_LOG_LEVEL", "info"),
			Format: getEnv("CONTRAVERIFY_LOG_FORMAT", "text"),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvBool("CONTRAVERIFY_RATE_LIMIT_ENABLED", true),
			RequestsPerMin: getEnvInt("CONTRAVERIFY_RATE_LIMIT_RPM", 120),
			WritesPerMin:   getEnvInt("CONTRAVERIFY_RATE_LIMIT_WRITES_RPM", 6),
			BurstSize:      getEnvInt("CONTRAVERIFY_RATE_LIMIT_BURST", 20),
			CleanupMinutes: getEnvInt("CONTRAVERIFY_RATE_LIMIT_CLEANUP_MINUTES", 10),
		},
		Security: SecurityConfig{
			FilterEnabled: getEnvBool("CONTRAVERIFY_SECURITY_FILTER_ENABLED", true),
			MaxBodySizeMB: getEnvInt("CONTRAVERIFY_MAX_BODY_SIZE_MB", 1),
		},
		Proxy: ProxyConfig{
			TrustProxy:     getEnvBool("CONTRAVERIFY_TRUST_PROXY", false),
			TrustedProxies: getEnvStringSlice("CONTRAVERIFY_TRUSTED_PROXIES", []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}),
		},
		Verify: VerifyConfig{
			DeploymentsRoot: getEnv("CONTRAVERIFY_DEPLOYMENTS_ROOT", ""),
			ExplorerRate:    getEnvFloat("CONTRAVERIFY_EXPLORER_RPS", 5),
			ExplorerTimeout: getEnvDuration("CONTRAVERIFY_EXPLORER_TIMEOUT", 30*time.Second),
			ExplorerRetries: getEnvInt("CONTRAVERIFY_EXPLORER_RETRIES", 2),
			PollInterval:    getEnvDuration("CONTRAVERIFY_POLL_INTERVAL", 5*time.Second),
			PollAttempts:    getEnvInt("CONTRAVERIFY_POLL_ATTEMPTS", 12),
			CheckBytecode:   getEnvBool("CONTRAVERIFY_CHECK_BYTECODE", false),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("CONTRAVERIFY_METRICS_ENABLED", true),
		},
	}

	// If a database URL is set, default to postgres
	if cfg.Storage.Postgres.URL != "" && os.Getenv("CONTRAVERIFY_STORAGE_TYPE") == "" {
		cfg.Storage.Type = "postgres"
	}

	project, path, err := LoadProject(projectPath)
	if err != nil {
		return nil, err
	}
	cfg.Project = project
	cfg.ProjectPath = path

	if cfg.Verify.DeploymentsRoot == "" {
		cfg.Verify.DeploymentsRoot = project.DeploymentsDir
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvUint(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseUint(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		v := strings.ToLower(value)
		return v == "true" || v == "1" || v == "on"
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
