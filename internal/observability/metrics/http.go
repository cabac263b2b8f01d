// Package metrics provides Prometheus instrumentation for contraverify.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Middleware returns HTTP middleware for request metrics.
func Middleware(next http.Handler) http.Handler {
	if !enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			duration := time.Since(start).Seconds()

			// Normalize path to avoid high cardinality from IDs
			path := normalizePath(r.URL.Path)

			httpRequestsTotal.WithLabelValues(
				r.Method,
				path,
				strconv.Itoa(rw.status),
			).Inc()

			httpDuration.WithLabelValues(
				r.Method,
				path,
			).Observe(duration)
		}()

		next.ServeHTTP(rw, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader captures status code.
func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

// normalizePath replaces dynamic path segments with placeholders so label
// cardinality stays bounded. For example:
//
//	/api/v1/addresses/DuetBond/bsc -> /api/v1/addresses/{id}/{id}
//	/api/v1/networks/bsc/verify    -> /api/v1/networks/{id}/verify
func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/api/v1/") {
		return path
	}

	parts := strings.Split(strings.Trim(path[len("/api/v1/"):], "/"), "/")
	normalized := []string{"/api/v1", parts[0]}
	for _, part := range parts[1:] {
		if part == "" {
			continue
		}
		if staticSegments[part] {
			normalized = append(normalized, part)
		} else {
			normalized = append(normalized, "{id}")
		}
	}
	return strings.Join(normalized, "/")
}

// path segments that are part of a route rather than a value
var staticSegments = map[string]bool{
	"verify":      true,
	"results":     true,
	"deployments": true,
}
