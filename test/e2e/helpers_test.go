//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/contraverify/internal/addressbook"
	"github.com/pendergraft/contraverify/internal/config"
	"github.com/pendergraft/contraverify/internal/server"
	"github.com/pendergraft/contraverify/internal/storage"
	"github.com/pendergraft/contraverify/pkg/client"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	network = "local"
	chainID = 31337

	tokenAddr = "0x000000000000000000000000000000000000dEaD"
	vaultAddr = "0x0000000000000000000000000000000000000001"
	proxyAddr = "0x0000000000000000000000000000000000000002"

	solcInputHash = "4f1c2b9a"
)

// TestContext holds shared test infrastructure
type TestContext struct {
	PostgresContainer *postgres.PostgresContainer
	ConnString        string
	ProjectDir        string
	Explorer          *fakeExplorer
	TestServer        *httptest.Server
	Store             storage.Store
}

// setupPostgresE starts a Postgres container and returns the connection string
func setupPostgresE(ctx context.Context) (*postgres.PostgresContainer, string, error) {
	postgresContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("contraverify"),
		postgres.WithUsername("contraverify"),
		postgres.WithPassword("contraverify"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	connString, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = postgresContainer.Terminate(ctx)
		return nil, "", fmt.Errorf("failed to get postgres connection string: %w", err)
	}

	return postgresContainer, connString, nil
}

// fakeExplorer speaks the etherscan API. Submitted contracts become
// verified on the next status check.
type fakeExplorer struct {
	srv *httptest.Server

	mu        sync.Mutex
	verified  map[string]bool
	pending   map[string]string // guid -> address
	submitted []string
}

func newFakeExplorer() *fakeExplorer {
	f := &fakeExplorer{
		verified: map[string]bool{vaultAddr: true},
		pending:  map[string]string{},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

func (f *fakeExplorer) URL() string { return f.srv.URL + "/api" }

func (f *fakeExplorer) Close() { f.srv.Close() }

func (f *fakeExplorer) Submitted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.submitted...)
}

func (f *fakeExplorer) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	reply := func(status, message, result string) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": status, "message": message, "result": result})
	}

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("action") != "verifysourcecode" {
			reply("0", "NOTOK", "Invalid request")
			return
		}
		addr := r.PostForm.Get("contractaddress")
		if f.verified[addr] {
			reply("0", "NOTOK", "Contract source code already verified")
			return
		}
		guid := uuid.New().String()
		f.pending[guid] = addr
		f.submitted = append(f.submitted, addr)
		reply("1", "OK", guid)
		return
	}

	q := r.URL.Query()
	switch q.Get("action") {
	case "getabi":
		if f.verified[q.Get("address")] {
			reply("1", "OK", "[]")
			return
		}
		reply("0", "NOTOK", "Contract source code not verified")
	case "checkverifystatus":
		addr, ok := f.pending[q.Get("guid")]
		if !ok {
			reply("0", "NOTOK", "Fail - Unable to verify")
			return
		}
		f.verified[addr] = true
		reply("1", "OK", "Pass - Verified")
	default:
		reply("0", "NOTOK", "Unknown action")
	}
}

// writeProjectE writes deployments/local with an unverified contract, a
// verified one and a proxy, plus an address book.
func writeProjectE(explorerURL string) (string, error) {
	dir, err := os.MkdirTemp("", "contraverify-e2e-")
	if err != nil {
		return "", err
	}
	deployments := filepath.Join(dir, "deployments", network)
	if err := os.MkdirAll(filepath.Join(deployments, "solcInputs"), 0o755); err != nil {
		return "", err
	}

	files := map[string]any{
		"Token.json": map[string]any{
			"address":       tokenAddr,
			"abi":           json.RawMessage(`[{"type":"constructor","inputs":[{"name":"supply","type":"uint256"}]}]`),
			"args":          []any{"1000000"},
			"solcInputHash": solcInputHash,
			"metadata":      metadataJSON("contracts/Token.sol", "Token"),
		},
		"Vault.json": map[string]any{
			"address":       vaultAddr,
			"abi":           []any{},
			"solcInputHash": solcInputHash,
			"metadata":      metadataJSON("contracts/Vault.sol", "Vault"),
		},
		"Vault_Proxy.json": map[string]any{
			"address":  proxyAddr,
			"abi":      []any{},
			"metadata": metadataJSON("solc_0.8/proxy/EIP173Proxy.sol", "EIP173Proxy"),
			"userdoc":  map[string]any{"notice": "Proxy implementing EIP173 for ownership management"},
		},
	}
	for name, content := range files {
		data, err := json.Marshal(content)
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(filepath.Join(deployments, name), data, 0o644); err != nil {
			return "", err
		}
	}

	solcInput := `{"language":"Solidity","sources":{"contracts/Token.sol":{"content":"contract Token {}"}},"settings":{}}`
	if err := os.WriteFile(filepath.Join(deployments, "solcInputs", solcInputHash+".json"), []byte(solcInput), 0o644); err != nil {
		return "", err
	}

	book := fmt.Sprintf("token:\n  %s: %q\n  bsc: null\n", network, tokenAddr)
	if err := os.WriteFile(filepath.Join(dir, "addresses.yaml"), []byte(book), 0o644); err != nil {
		return "", err
	}

	return dir, nil
}

func metadataJSON(source, name string) string {
	m := map[string]any{
		"compiler": map[string]any{"version": "0.8.17+commit.8df45f5f"},
		"language": "Solidity",
		"settings": map[string]any{"compilationTarget": map[string]string{source: name}},
	}
	b, _ := json.Marshal(m)
	return string(b)
}

// startServerE starts the contraverify server in-process against Postgres
func startServerE(connString, projectDir, explorerURL string) (*httptest.Server, storage.Store, error) {
	project, err := config.ParseProject(fmt.Sprintf(`
deployments_dir = %q
address_book = %q

[networks.%s]
url = "http://127.0.0.1:1"
chain_id = %d

[etherscan.api_keys]
%s = "e2e-explorer-key"

[[etherscan.custom_chains]]
network = %q
chain_id = %d
api_url = %q
browser_url = "https://local.example"
`, filepath.Join(projectDir, "deployments"), filepath.Join(projectDir, "addresses.yaml"),
		network, chainID, network, network, chainID, explorerURL))
	if err != nil {
		return nil, nil, fmt.Errorf("parsing project: %w", err)
	}

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           8080,
			Host:           "0.0.0.0",
			RequestTimeout: 60,
		},
		Storage: config.StorageConfig{
			Enabled: true,
			Type:    "postgres",
			Postgres: config.PostgresConfig{
				URL: connString,
			},
		},
		Auth:      config.AuthConfig{Type: "api-key"},
		Logging:   config.LoggingConfig{Level: "debug", Format: "text"},
		RateLimit: config.RateLimitConfig{Enabled: false},
		Security:  config.SecurityConfig{FilterEnabled: true, MaxBodySizeMB: 1},
		Proxy:     config.ProxyConfig{TrustProxy: false},
		Verify: config.VerifyConfig{
			DeploymentsRoot: project.DeploymentsDir,
			ExplorerRate:    50,
			ExplorerTimeout: 5 * time.Second,
			ExplorerRetries: 1,
			PollInterval:    10 * time.Millisecond,
			PollAttempts:    5,
		},
		Project: project,
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create store: %w", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	book, err := addressbook.Load(project.AddressBook)
	if err != nil {
		return nil, nil, fmt.Errorf("loading address book: %w", err)
	}

	srv := server.New(cfg, store, book, logger)
	return httptest.NewServer(srv.Handler()), store, nil
}

// newClient creates a new API client for the test server
func newClient(testServer *httptest.Server, apiKey string) *client.Client {
	return client.New(testServer.URL, apiKey)
}

// createTestAPIKey creates a test API key using the store directly
func createTestAPIKey(t *testing.T, store storage.Store, name string) string {
	key, err := store.CreateAPIKey(context.Background(), name)
	require.NoError(t, err, "Failed to create API key")
	return key
}

// assertHTTPError asserts that an error is an APIError with the expected code
func assertHTTPError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	require.Error(t, err, "Expected an error")
	apiErr, ok := err.(*client.APIError)
	require.True(t, ok, "Error should be an APIError")
	require.Equal(t, expectedCode, apiErr.Code, "Error code mismatch")
}
