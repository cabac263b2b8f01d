// Package server provides the HTTP server setup and wiring.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pendergraft/contraverify/internal/addressbook"
	"github.com/pendergraft/contraverify/internal/auth"
	"github.com/pendergraft/contraverify/internal/config"
	deploymentsDomain "github.com/pendergraft/contraverify/internal/deployments/domain"
	deploymentsTransport "github.com/pendergraft/contraverify/internal/deployments/transport"
	"github.com/pendergraft/contraverify/internal/middleware/logging"
	"github.com/pendergraft/contraverify/internal/middleware/ratelimit"
	"github.com/pendergraft/contraverify/internal/middleware/realip"
	"github.com/pendergraft/contraverify/internal/middleware/security"
	"github.com/pendergraft/contraverify/internal/networks"
	"github.com/pendergraft/contraverify/internal/observability/metrics"
	"github.com/pendergraft/contraverify/internal/rpc"
	"github.com/pendergraft/contraverify/internal/storage"
	verificationDomain "github.com/pendergraft/contraverify/internal/verification/domain"
	verificationTransport "github.com/pendergraft/contraverify/internal/verification/transport"
)

// Server is the HTTP server
type Server struct {
	cfg    *config.Config
	store  storage.Store
	logger *slog.Logger
	router *chi.Mux

	// Services typed via transport interfaces
	deploymentsSvc  deploymentsTransport.Service
	verificationSvc verificationTransport.Service
}

// Option configures a Server.
type Option func(*Server)

// WithVerificationService replaces the runner built from configuration.
func WithVerificationService(svc verificationTransport.Service) Option {
	return func(s *Server) { s.verificationSvc = svc }
}

// WithDeploymentsService replaces the lookup service built from
// configuration.
func WithDeploymentsService(svc deploymentsTransport.Service) Option {
	return func(s *Server) { s.deploymentsSvc = svc }
}

// New creates a new server. store is nil when history is disabled and book
// is nil when no address book is configured.
func New(cfg *config.Config, store storage.Store, book *addressbook.Book, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		store:  store,
		logger: logger,
		router: chi.NewRouter(),
	}

	resolver := networks.NewResolver(cfg.Project, rpc.Prober{})

	deployImpl := deploymentsDomain.NewService(resolver, book, cfg.Verify.DeploymentsRoot)
	s.deploymentsSvc = deploymentsDomain.LoggingMiddleware(logger)(deployImpl)

	var rec verificationDomain.RunRecorder
	if store != nil {
		rec = store
	}
	s.verificationSvc = verificationDomain.NewFromConfig(cfg, resolver, rec, logger)

	for _, opt := range opts {
		opt(s)
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// MetricsHandler returns the metrics HTTP handler for separate metrics server
func (s *Server) MetricsHandler() http.Handler {
	return metrics.Handler()
}

func (s *Server) setupMiddleware() {
	// Order matters! Security middleware runs first to block malicious requests early.

	// 1. Real IP extraction (must be first to set client IP for other middleware)
	s.router.Use(realip.Middleware(realip.Config{
		TrustProxy:     s.cfg.Proxy.TrustProxy,
		TrustedProxies: s.cfg.Proxy.TrustedProxies,
	}))

	// 2. Security filter (blocks malicious patterns, bypasses health checks)
	s.router.Use(security.FilterMiddleware(s.cfg.Security.FilterEnabled))

	// 3. Body size limit
	s.router.Use(security.MaxBodySizeMiddleware(s.cfg.Security.MaxBodySizeMB))

	// 4. Rate limiting (bypasses health checks)
	s.router.Use(ratelimit.Middleware(ratelimit.Config{
		Enabled:        s.cfg.RateLimit.Enabled,
		RequestsPerMin: s.cfg.RateLimit.RequestsPerMin,
		WritesPerMin:   s.cfg.RateLimit.WritesPerMin,
		BurstSize:      s.cfg.RateLimit.BurstSize,
		CleanupMinutes: s.cfg.RateLimit.CleanupMinutes,
	}))

	// 5. Standard middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(logging.Middleware(s.logger))
	s.router.Use(metrics.Middleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	// 6. CORS
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-API-Key")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
}

func (s *Server) setupRoutes() {
	// Health checks
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleHealth)

	if s.cfg.Metrics.Enabled {
		s.router.Handle("/metrics", metrics.Handler())
	}

	deploymentsHandler := deploymentsTransport.NewHandler(s.deploymentsSvc)

	var runs verificationTransport.RunReader
	if s.store != nil {
		runs = s.store
	}
	verificationHandler := verificationTransport.NewHandler(s.verificationSvc, runs)

	// Auth middleware for write operations
	requireAuth := func(r chi.Router) {
		if s.cfg.Auth.Type != "api-key" {
			return
		}
		static := auth.NewStaticKeys(s.cfg.Auth.Keys)
		validators := auth.Chain{static}
		if s.store != nil {
			validators = append(validators, s.store)
		}
		if static.Len() == 0 && s.store == nil {
			s.logger.Warn("api-key auth enabled without keys or key storage, write routes will reject every request")
		}
		r.Use(auth.Middleware(validators, writeError))
	}

	// API v1 routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Read operations - no auth required
		deploymentsHandler.RegisterReadRoutes(r)
		verificationHandler.RegisterReadRoutes(r)

		// Write operations - auth required
		r.Group(func(r chi.Router) {
			requireAuth(r)
			r.Get("/auth/check", s.handleAuthCheck)
			if d := s.cfg.Server.RequestTimeout; d > 0 {
				r.Use(middleware.Timeout(time.Duration(d) * time.Second))
			}
			verificationHandler.RegisterWriteRoutes(r)
		})
	})
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAuthCheck lets clients confirm a key before storing it.
func (s *Server) handleAuthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"valid": true}
	if key := auth.GetAPIKeyFromContext(r.Context()); key != nil {
		resp["name"] = key.Name
	}
	writeJSON(w, http.StatusOK, resp)
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
