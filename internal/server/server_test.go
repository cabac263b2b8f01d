package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/contraverify/internal/addressbook"
	"github.com/pendergraft/contraverify/internal/config"
	"github.com/pendergraft/contraverify/internal/networks"
	"github.com/pendergraft/contraverify/internal/storage"
	"github.com/pendergraft/contraverify/internal/verification/domain"
)

type stubVerifier struct {
	calls []domain.RunRequest
}

func (s *stubVerifier) Run(_ context.Context, req domain.RunRequest) (*domain.Summary, error) {
	s.calls = append(s.calls, req)
	if req.Network == "nope" {
		return nil, networks.ErrUnknownNetwork
	}
	return &domain.Summary{Network: req.Network, DryRun: req.DryRun}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "bsc")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Token.json"), []byte(`{"address":"0x0000000000000000000000000000000000000001"}`), 0o644))

	return &config.Config{
		Auth:      config.AuthConfig{Type: "api-key", Keys: []string{"cv_key_static"}},
		RateLimit: config.RateLimitConfig{Enabled: false},
		Security:  config.SecurityConfig{FilterEnabled: true, MaxBodySizeMB: 1},
		Verify:    config.VerifyConfig{DeploymentsRoot: root},
		Project: &config.Project{
			Networks: map[string]config.NetworkConfig{
				"bsc": {URL: "https://bsc.example", ChainID: 56},
			},
		},
	}
}

func newTestServer(t *testing.T, store storage.Store) (*Server, *stubVerifier) {
	t.Helper()
	book, err := addressbook.Parse([]byte("WBNB:\n  bsc: \"0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c\"\n"))
	require.NoError(t, err)

	verifier := &stubVerifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(testConfig(t), store, book, logger, WithVerificationService(verifier))
	return srv, verifier
}

func newTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func do(t *testing.T, srv *Server, method, path, key string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	for _, path := range []string{"/health", "/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	}
}

func TestReadRoutes(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rr := do(t, srv, http.MethodGet, "/api/v1/networks/bsc/deployments", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "0x0000000000000000000000000000000000000001")

	rr = do(t, srv, http.MethodGet, "/api/v1/addresses/WBNB/bsc", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c")

	rr = do(t, srv, http.MethodGet, "/api/v1/runs", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "HISTORY_DISABLED")
}

func TestVerifyRequiresAuth(t *testing.T) {
	srv, verifier := newTestServer(t, nil)

	rr := do(t, srv, http.MethodPost, "/api/v1/networks/bsc/verify", "", `{"dryRun":true}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, srv, http.MethodPost, "/api/v1/networks/bsc/verify", "cv_key_wrong", `{"dryRun":true}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Empty(t, verifier.calls)

	rr = do(t, srv, http.MethodPost, "/api/v1/networks/bsc/verify", "cv_key_static", `{"dryRun":true}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, verifier.calls, 1)
	assert.True(t, verifier.calls[0].DryRun)

	rr = do(t, srv, http.MethodPost, "/api/v1/networks/nope/verify", "cv_key_static", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAuthCheck(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rr := do(t, srv, http.MethodGet, "/api/v1/auth/check", "", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, srv, http.MethodGet, "/api/v1/auth/check", "cv_key_static", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"valid":true`)
}

func TestVerifyAcceptsStoredKeys(t *testing.T) {
	store := newTestStore(t)
	key, err := store.CreateAPIKey(context.Background(), "ci")
	require.NoError(t, err)

	srv, verifier := newTestServer(t, store)

	rr := do(t, srv, http.MethodPost, "/api/v1/networks/bsc/verify", key, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, verifier.calls, 1)

	// history is served once a store is configured
	rr = do(t, srv, http.MethodGet, "/api/v1/runs", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var page struct {
		Data []json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Empty(t, page.Data)
}

func TestAuthDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.Type = "none"
	verifier := &stubVerifier{}
	srv := New(cfg, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), WithVerificationService(verifier))

	rr := do(t, srv, http.MethodPost, "/api/v1/networks/bsc/verify", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, srv, http.MethodGet, "/api/v1/addresses", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "NO_ADDRESS_BOOK")
}

func TestSecurityFilterApplied(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rr := do(t, srv, http.MethodGet, "/.env", "", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rr := do(t, srv, http.MethodOptions, "/api/v1/networks/bsc/verify", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "X-API-Key")
}
