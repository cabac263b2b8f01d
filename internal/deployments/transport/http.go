// Package transport provides HTTP handlers for the deployments domain.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pendergraft/contraverify/internal/addressbook"
	"github.com/pendergraft/contraverify/internal/deployments/domain"
)

// Service defines the deployment service interface for HTTP transport.
type Service interface {
	Networks(ctx context.Context) ([]domain.NetworkInfo, error)
	Network(ctx context.Context, name string) (*domain.NetworkInfo, error)
	Deployments(network string) ([]domain.Deployment, error)
	Deployment(network, name string) (*domain.Deployment, error)
	AddressNames() ([]string, error)
	Addresses(name string) ([]addressbook.Entry, error)
	Address(name, network string) (string, error)
}

// Handler handles HTTP requests for networks, deployments and addresses.
type Handler struct {
	svc Service
}

// NewHandler creates a new deployments HTTP handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterReadRoutes registers read-only routes (no auth required).
func (h *Handler) RegisterReadRoutes(r chi.Router) {
	r.Get("/networks", h.handleListNetworks)
	r.Get("/networks/{network}", h.handleGetNetwork)
	r.Get("/networks/{network}/deployments", h.handleListDeployments)
	r.Get("/networks/{network}/deployments/{name}", h.handleGetDeployment)

	r.Get("/addresses", h.handleListAddresses)
	r.Get("/addresses/{name}", h.handleGetAddresses)
	r.Get("/addresses/{name}/{network}", h.handleGetAddress)
}

func (h *Handler) handleListNetworks(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Networks(r.Context())
	if err != nil {
		writeServiceError(w, err, "Failed to list networks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": list})
}

func (h *Handler) handleGetNetwork(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.Network(r.Context(), chi.URLParam(r, "network"))
	if err != nil {
		writeServiceError(w, err, "Failed to get network")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) handleListDeployments(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Deployments(chi.URLParam(r, "network"))
	if err != nil {
		writeServiceError(w, err, "Failed to list deployments")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": list})
}

func (h *Handler) handleGetDeployment(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Deployment(chi.URLParam(r, "network"), chi.URLParam(r, "name"))
	if err != nil {
		writeServiceError(w, err, "Failed to get deployment")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) handleListAddresses(w http.ResponseWriter, r *http.Request) {
	names, err := h.svc.AddressNames()
	if err != nil {
		writeServiceError(w, err, "Failed to list addresses")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": names})
}

func (h *Handler) handleGetAddresses(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Addresses(chi.URLParam(r, "name"))
	if err != nil {
		writeServiceError(w, err, "Failed to get addresses")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": entries})
}

func (h *Handler) handleGetAddress(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	network := chi.URLParam(r, "network")

	addr, err := h.svc.Address(name, network)
	if err != nil {
		writeServiceError(w, err, "Failed to get address")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    name,
		"network": network,
		"address": addr,
	})
}

func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, domain.ErrNoAddressBook):
		writeError(w, http.StatusNotFound, "NO_ADDRESS_BOOK", "No address book configured")
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", fallback)
	}
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
