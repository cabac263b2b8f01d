package metrics

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health", "/health"},
		{"/metrics", "/metrics"},
		{"/api/v1/networks", "/api/v1/networks"},
		{"/api/v1/networks/bsc", "/api/v1/networks/{id}"},
		{"/api/v1/networks/bsc/verify", "/api/v1/networks/{id}/verify"},
		{"/api/v1/networks/bsc/deployments/Token", "/api/v1/networks/{id}/deployments/{id}"},
		{"/api/v1/addresses/DuetBond/bsc", "/api/v1/addresses/{id}/{id}"},
		{"/api/v1/runs/5f0c3a1e-8e1b-4c43-9a57-2d4e1e1f6a10", "/api/v1/runs/{id}"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizePath(tt.path))
		})
	}
}

func TestDisabledIsNoop(t *testing.T) {
	Init(false, "contraverify")

	VerificationResult("bsc", "skipped")
	ExplorerRequest("getabi", "ok")
	RunDuration("bsc", time.Second)
	require.NoError(t, WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWriteTextfile(t *testing.T) {
	Init(true, "contraverify")
	defer Init(false, "")

	VerificationResult("bsc", "already-verified")
	VerificationResult("bsc", "already-verified")
	ExplorerRequest("getabi", "ok")

	path := filepath.Join(t.TempDir(), "contraverify.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	body := string(data)
	assert.True(t, strings.Contains(body, `verification_results_total{network="bsc",outcome="already-verified",service="contraverify"} 2`), body)
	assert.Contains(t, body, "explorer_requests_total")
}

func TestMiddlewareCounts(t *testing.T) {
	Init(true, "contraverify")
	defer Init(false, "")

	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/networks/bsc", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	rec = httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `path="/api/v1/networks/{id}"`)
}
