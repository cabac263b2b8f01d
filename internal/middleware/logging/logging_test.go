package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/contraverify/internal/middleware/realip"
)

func testHandler(status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	})
}

// serve runs req through h and returns the decoded log record, or nil when
// nothing was logged.
func serve(t *testing.T, wrap func(*slog.Logger) http.Handler, req *http.Request) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	wrap(logger).ServeHTTP(httptest.NewRecorder(), req)
	if buf.Len() == 0 {
		return nil
	}
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestMiddleware_LogsRequests(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/networks/bsc/deployments", nil)
	req.RemoteAddr = "192.168.1.100:12345"

	entry := serve(t, func(l *slog.Logger) http.Handler {
		return Middleware(l)(testHandler(http.StatusOK, "hello"))
	}, req)
	require.NotNil(t, entry)

	assert.Equal(t, "request", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/api/v1/networks/bsc/deployments", entry["path"])
	assert.Equal(t, float64(http.StatusOK), entry["status"])
	assert.Equal(t, float64(5), entry["bytes"])
	assert.NotEmpty(t, entry["duration"])
	assert.Equal(t, "192.168.1.100", entry["client_ip"])
}

func TestMiddleware_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{status: http.StatusInternalServerError, want: "ERROR"},
		{status: http.StatusBadGateway, want: "ERROR"},
		{status: http.StatusNotFound, want: "WARN"},
		{status: http.StatusUnauthorized, want: "WARN"},
		{status: http.StatusAccepted, want: "INFO"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/networks/bsc/verify", nil)
			entry := serve(t, func(l *slog.Logger) http.Handler {
				return Middleware(l)(testHandler(tt.status, ""))
			}, req)
			require.NotNil(t, entry)
			assert.Equal(t, tt.want, entry["level"])
			assert.Equal(t, float64(tt.status), entry["status"])
		})
	}
}

func TestMiddleware_QuietPaths(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	entry := serve(t, func(l *slog.Logger) http.Handler {
		return Middleware(l)(testHandler(http.StatusOK, "ok"))
	}, req)
	assert.Nil(t, entry)

	assert.Equal(t, slog.LevelDebug, Level("/metrics", http.StatusOK))
	assert.Equal(t, slog.LevelError, Level("/healthz", http.StatusServiceUnavailable))
}

func TestMiddleware_DefaultStatus200(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	entry := serve(t, func(l *slog.Logger) http.Handler {
		return Middleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("no explicit status"))
		}))
	}, req)
	require.NotNil(t, entry)
	assert.Equal(t, float64(http.StatusOK), entry["status"])
	assert.Equal(t, float64(len("no explicit status")), entry["bytes"])
}

func TestMiddleware_RequestID(t *testing.T) {
	t.Run("generated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
		entry := serve(t, func(l *slog.Logger) http.Handler {
			return middleware.RequestID(Middleware(l)(testHandler(http.StatusOK, "")))
		}, req)
		require.NotNil(t, entry)
		assert.NotEmpty(t, entry["request_id"])
	})

	t.Run("from context", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
		req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "req-123"))
		entry := serve(t, func(l *slog.Logger) http.Handler {
			return Middleware(l)(testHandler(http.StatusOK, ""))
		}, req)
		require.NotNil(t, entry)
		assert.Equal(t, "req-123", entry["request_id"])
	})
}

func TestMiddleware_UsesRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	req.RemoteAddr = "10.0.0.1:12345"
	req.Header.Set("X-Forwarded-For", "203.0.113.50")

	entry := serve(t, func(l *slog.Logger) http.Handler {
		rip := realip.Middleware(realip.Config{TrustProxy: true, TrustedProxies: []string{"10.0.0.0/8"}})
		return rip(Middleware(l)(testHandler(http.StatusOK, "")))
	}, req)
	require.NotNil(t, entry)
	assert.Equal(t, "203.0.113.50", entry["client_ip"])
}
