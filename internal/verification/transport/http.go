// Package transport provides HTTP handlers for the verification domain.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pendergraft/contraverify/internal/networks"
	"github.com/pendergraft/contraverify/internal/storage"
	"github.com/pendergraft/contraverify/internal/verification/domain"
)

// Service defines the verification service interface for HTTP transport.
type Service interface {
	Run(ctx context.Context, req domain.RunRequest) (*domain.Summary, error)
}

// RunReader defines the run history reads used by the handlers.
type RunReader interface {
	GetRun(ctx context.Context, id string) (*storage.Run, error)
	ListRuns(ctx context.Context, filter storage.RunFilter, pagination storage.PaginationParams) (*storage.PaginatedResult[storage.Run], error)
}

// Handler handles HTTP requests for verification.
type Handler struct {
	svc  Service
	runs RunReader
}

// NewHandler creates a new verification HTTP handler. runs may be nil when
// history is disabled.
func NewHandler(svc Service, runs RunReader) *Handler {
	return &Handler{svc: svc, runs: runs}
}

// RegisterReadRoutes registers the run history routes (no auth required).
func (h *Handler) RegisterReadRoutes(r chi.Router) {
	r.Get("/runs", h.handleListRuns)
	r.Get("/runs/{id}", h.handleGetRun)
}

// RegisterWriteRoutes registers routes that trigger explorer submissions
// (auth required).
func (h *Handler) RegisterWriteRoutes(r chi.Router) {
	r.Post("/networks/{network}/verify", h.handleVerify)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	network := chi.URLParam(r, "network")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body")
		return
	}

	var req VerifyRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
			return
		}
	}

	summary, err := h.svc.Run(r.Context(), req.ToDomain(network))
	if err != nil {
		switch {
		case errors.Is(err, networks.ErrUnknownNetwork):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Network not configured")
		case errors.Is(err, fs.ErrNotExist):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "No deployments for network")
		case errors.Is(err, networks.ErrNoExplorer), errors.Is(err, networks.ErrNoChainID):
			writeError(w, http.StatusUnprocessableEntity, "UNSUPPORTED_NETWORK", err.Error())
		case errors.Is(err, networks.ErrInvalidName):
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to verify deployments")
		}
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, http.StatusNotFound, "HISTORY_DISABLED", "Run history is disabled")
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	result, err := h.runs.ListRuns(r.Context(), storage.RunFilter{
		Network: r.URL.Query().Get("network"),
		Status:  r.URL.Query().Get("status"),
	}, storage.PaginationParams{
		Limit:  limit,
		Cursor: r.URL.Query().Get("cursor"),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list runs")
		return
	}

	data := make([]RunResponse, len(result.Data))
	for i, run := range result.Data {
		data[i] = FromStorage(run)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": data,
		"pagination": map[string]any{
			"limit":      limit,
			"hasMore":    result.HasMore,
			"nextCursor": result.NextCursor,
		},
	})
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, http.StatusNotFound, "HISTORY_DISABLED", "Run history is disabled")
		return
	}

	run, err := h.runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get run")
		return
	}

	writeJSON(w, http.StatusOK, FromStorage(*run))
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}
