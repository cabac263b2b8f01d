package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_ListNetworks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/networks" {
			t.Errorf("Expected path /api/v1/networks, got %s", r.URL.Path)
		}
		if r.Method != http.MethodGet {
			t.Errorf("Expected GET method, got %s", r.Method)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"name": "bsc", "chainId": 56, "accounts": 1, "hasApiKey": true},
			},
		})
	}))
	defer server.Close()

	client := New(server.URL, "test-key")
	networks, err := client.ListNetworks(context.Background())
	if err != nil {
		t.Fatalf("ListNetworks() error = %v", err)
	}

	if len(networks) != 1 {
		t.Fatalf("ListNetworks() returned %d networks, want 1", len(networks))
	}
	if networks[0].Name != "bsc" || networks[0].ChainID != 56 {
		t.Errorf("ListNetworks()[0] = %+v, want bsc/56", networks[0])
	}
}

func TestClient_ListDeployments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/networks/bsctest/deployments" {
			t.Errorf("Expected path /api/v1/networks/bsctest/deployments, got %s", r.URL.Path)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"network": "bsctest", "name": "Token", "address": "0x0000000000000000000000000000000000000001"},
				{"network": "bsctest", "name": "Vault_Proxy", "address": "0x0000000000000000000000000000000000000002", "proxy": true},
			},
		})
	}))
	defer server.Close()

	client := New(server.URL, "")
	deployments, err := client.ListDeployments(context.Background(), "bsctest")
	if err != nil {
		t.Fatalf("ListDeployments() error = %v", err)
	}

	if len(deployments) != 2 {
		t.Fatalf("ListDeployments() returned %d deployments, want 2", len(deployments))
	}
	if !deployments[1].Proxy {
		t.Errorf("ListDeployments()[1].Proxy = false, want true")
	}
}

func TestClient_GetAddresses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/addresses/WBNB" {
			t.Errorf("Expected path /api/v1/addresses/WBNB, got %s", r.URL.Path)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"name": "WBNB", "network": "bsc", "address": "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c"},
				{"name": "WBNB", "network": "hardhat", "address": nil},
			},
		})
	}))
	defer server.Close()

	client := New(server.URL, "")
	entries, err := client.GetAddresses(context.Background(), "WBNB")
	if err != nil {
		t.Fatalf("GetAddresses() error = %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("GetAddresses() returned %d entries, want 2", len(entries))
	}
	if entries[0].Address == nil {
		t.Errorf("GetAddresses()[0].Address = nil, want address")
	}
	if entries[1].Address != nil {
		t.Errorf("GetAddresses()[1].Address = %v, want nil", *entries[1].Address)
	}
}

func TestClient_Verify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST method, got %s", r.Method)
		}
		if r.URL.Path != "/api/v1/networks/bsc/verify" {
			t.Errorf("Expected path /api/v1/networks/bsc/verify, got %s", r.URL.Path)
		}
		if r.Header.Get("X-API-Key") != "cv_key_test" {
			t.Errorf("Expected API key header, got %q", r.Header.Get("X-API-Key"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected JSON content type, got %q", r.Header.Get("Content-Type"))
		}

		var req VerifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if !req.DryRun || len(req.Contracts) != 1 || req.Contracts[0] != "Token" {
			t.Errorf("unexpected request body %+v", req)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"runId":   "run-1",
			"network": "bsc",
			"dryRun":  true,
			"counts":  map[string]int{"total": 1, "skipped": 1},
			"results": []map[string]any{
				{"file": "Token.json", "outcome": "skipped", "reason": "dry run"},
			},
		})
	}))
	defer server.Close()

	client := New(server.URL, "cv_key_test")
	summary, err := client.Verify(context.Background(), "bsc", VerifyRequest{DryRun: true, Contracts: []string{"Token"}})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if summary.RunID != "run-1" {
		t.Errorf("Verify().RunID = %s, want run-1", summary.RunID)
	}
	if summary.Counts.Skipped != 1 || len(summary.Results) != 1 {
		t.Errorf("Verify() counts = %+v, results = %d", summary.Counts, len(summary.Results))
	}
}

func TestClient_ListRuns(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/runs" {
			t.Errorf("Expected path /api/v1/runs, got %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("network") != "bsc" || q.Get("limit") != "5" || q.Get("status") != "" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"id": "run-2", "network": "bsc", "status": "completed"},
			},
			"pagination": map[string]any{
				"limit":      5,
				"hasMore":    true,
				"nextCursor": "abc",
			},
		})
	}))
	defer server.Close()

	client := New(server.URL, "")
	resp, err := client.ListRuns(context.Background(), RunFilter{Network: "bsc", Limit: 5})
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}

	if len(resp.Data) != 1 || resp.Data[0].ID != "run-2" {
		t.Errorf("ListRuns() = %+v", resp.Data)
	}
	if !resp.Pagination.HasMore || resp.Pagination.NextCursor != "abc" {
		t.Errorf("ListRuns().Pagination = %+v", resp.Pagination)
	}
}

func TestClient_GetRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/runs/run-3" {
			t.Errorf("Expected path /api/v1/runs/run-3, got %s", r.URL.Path)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"id":     "run-3",
			"status": "completed",
			"results": []map[string]any{
				{"file": "Token.json", "outcome": "submitted-ok"},
			},
		})
	}))
	defer server.Close()

	client := New(server.URL, "")
	run, err := client.GetRun(context.Background(), "run-3")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}

	if len(run.Results) != 1 || run.Results[0].Outcome != "submitted-ok" {
		t.Errorf("GetRun().Results = %+v", run.Results)
	}
}

func TestClient_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{
				"code":    "NOT_FOUND",
				"message": "unknown network",
			},
		})
	}))
	defer server.Close()

	client := New(server.URL, "")
	_, err := client.GetNetwork(context.Background(), "nope")
	if err == nil {
		t.Fatal("Expected error, got nil")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %T", err)
	}
	if apiErr.Code != "NOT_FOUND" {
		t.Errorf("APIError.Code = %s, want NOT_FOUND", apiErr.Code)
	}
	if apiErr.Status != http.StatusNotFound {
		t.Errorf("APIError.Status = %d, want 404", apiErr.Status)
	}
}

func TestClient_ErrorWithoutBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	err := New(server.URL, "").Ping(context.Background())

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.Code != "HTTP_502" {
		t.Errorf("APIError.Code = %s, want HTTP_502", apiErr.Code)
	}
}

func TestClient_CheckAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"code": "UNAUTHORIZED", "message": "Invalid API key"},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"valid": true, "name": "ci"})
	}))
	defer server.Close()

	name, err := New(server.URL, "good").CheckAuth(context.Background())
	if err != nil {
		t.Errorf("CheckAuth() with valid key error = %v", err)
	}
	if name != "ci" {
		t.Errorf("CheckAuth() name = %q, want ci", name)
	}

	_, err = New(server.URL, "bad").CheckAuth(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Errorf("CheckAuth() with invalid key error = %v, want 401 APIError", err)
	}
}
