// Package client provides a Go client for the contraverify API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a contraverify API client
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// New creates a new contraverify client. Verification requests run
// synchronously on the server, so the default timeout is generous.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Network describes a configured network
type Network struct {
	Name            string `json:"name"`
	ChainID         uint64 `json:"chainId"`
	RPC             string `json:"rpc,omitempty"`
	Forking         bool   `json:"forking,omitempty"`
	Accounts        int    `json:"accounts"`
	ExplorerNetwork string `json:"explorerNetwork,omitempty"`
	ExplorerURL     string `json:"explorerUrl,omitempty"`
	BrowserURL      string `json:"browserUrl,omitempty"`
	HasAPIKey       bool   `json:"hasApiKey"`
}

// Deployment is one deployment artifact
type Deployment struct {
	Network  string `json:"network"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Contract string `json:"contract,omitempty"`
	TxHash   string `json:"txHash,omitempty"`
	Proxy    bool   `json:"proxy,omitempty"`
}

// AddressEntry is one address book entry
type AddressEntry struct {
	Name    string  `json:"name"`
	Network string  `json:"network"`
	Address *string `json:"address"`
}

// VerifyRequest selects what a remote run verifies
type VerifyRequest struct {
	DryRun    bool     `json:"dryRun,omitempty"`
	Contracts []string `json:"contracts,omitempty"`
	Exclude   []string `json:"exclude,omitempty"`
}

// Result is the outcome for one artifact
type Result struct {
	File     string `json:"file"`
	Address  string `json:"address,omitempty"`
	Contract string `json:"contract,omitempty"`
	Outcome  string `json:"outcome"`
	Reason   string `json:"reason,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Counts are per-outcome totals
type Counts struct {
	Total           int `json:"total"`
	AlreadyVerified int `json:"alreadyVerified"`
	SubmittedOK     int `json:"submittedOk"`
	SubmittedFailed int `json:"submittedFailed"`
	Skipped         int `json:"skipped"`
	Failed          int `json:"failed"`
}

// Summary is the response of a verification run
type Summary struct {
	RunID       string        `json:"runId,omitempty"`
	Network     string        `json:"network"`
	ChainID     uint64        `json:"chainId"`
	ExplorerURL string        `json:"explorerUrl"`
	DryRun      bool          `json:"dryRun"`
	Aborted     bool          `json:"aborted,omitempty"`
	Counts      Counts        `json:"counts"`
	Results     []Result      `json:"results"`
	StartedAt   time.Time     `json:"startedAt"`
	Duration    time.Duration `json:"duration"`
}

// Run is a recorded verification run
type Run struct {
	ID          string   `json:"id"`
	Network     string   `json:"network"`
	ChainID     uint64   `json:"chainId"`
	ExplorerURL string   `json:"explorerUrl"`
	DryRun      bool     `json:"dryRun"`
	Status      string   `json:"status"`
	Error       string   `json:"error,omitempty"`
	Counts      Counts   `json:"counts"`
	StartedAt   string   `json:"startedAt"`
	FinishedAt  string   `json:"finishedAt,omitempty"`
	Results     []Result `json:"results,omitempty"`
}

// RunFilter narrows ListRuns
type RunFilter struct {
	Network string
	Status  string
	Limit   int
	Cursor  string
}

// ListRunsResponse is the response for listing runs
type ListRunsResponse struct {
	Data       []Run      `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Pagination contains pagination info
type Pagination struct {
	Limit      int    `json:"limit"`
	HasMore    bool   `json:"hasMore"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// APIError represents an API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type dataResponse[T any] struct {
	Data T `json:"data"`
}

// ListNetworks lists the networks the server is configured for
func (c *Client) ListNetworks(ctx context.Context) ([]Network, error) {
	var resp dataResponse[[]Network]
	if err := c.get(ctx, "/api/v1/networks", &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetNetwork describes one network
func (c *Client) GetNetwork(ctx context.Context, network string) (*Network, error) {
	var resp Network
	if err := c.get(ctx, "/api/v1/networks/"+url.PathEscape(network), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListDeployments lists the deployment artifacts of a network
func (c *Client) ListDeployments(ctx context.Context, network string) ([]Deployment, error) {
	var resp dataResponse[[]Deployment]
	path := fmt.Sprintf("/api/v1/networks/%s/deployments", url.PathEscape(network))
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetAddresses returns every network entry of an address book name
func (c *Client) GetAddresses(ctx context.Context, name string) ([]AddressEntry, error) {
	var resp dataResponse[[]AddressEntry]
	if err := c.get(ctx, "/api/v1/addresses/"+url.PathEscape(name), &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Verify runs the verifier on the server and waits for the summary
func (c *Client) Verify(ctx context.Context, network string, req VerifyRequest) (*Summary, error) {
	var resp Summary
	path := fmt.Sprintf("/api/v1/networks/%s/verify", url.PathEscape(network))
	if err := c.post(ctx, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListRuns lists recorded runs, newest first
func (c *Client) ListRuns(ctx context.Context, filter RunFilter) (*ListRunsResponse, error) {
	q := url.Values{}
	if filter.Network != "" {
		q.Set("network", filter.Network)
	}
	if filter.Status != "" {
		q.Set("status", filter.Status)
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Cursor != "" {
		q.Set("cursor", filter.Cursor)
	}
	path := "/api/v1/runs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ListRunsResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetRun gets a run with its results
func (c *Client) GetRun(ctx context.Context, id string) (*Run, error) {
	var resp Run
	if err := c.get(ctx, "/api/v1/runs/"+url.PathEscape(id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckAuth confirms the client's API key is accepted and returns the key's
// name. It returns an APIError with status 401 when the key is rejected.
func (c *Client) CheckAuth(ctx context.Context) (string, error) {
	var resp struct {
		Valid bool   `json:"valid"`
		Name  string `json:"name"`
	}
	if err := c.get(ctx, "/api/v1/auth/check", &resp); err != nil {
		return "", err
	}
	return resp.Name, nil
}

// Ping checks the server health endpoint
func (c *Client) Ping(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	return c.do(req, result)
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result any) error {
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.parseError(resp)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
}

func (c *Client) parseError(resp *http.Response) error {
	var errResp struct {
		Error APIError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Error.Code == "" {
		return &APIError{Status: resp.StatusCode, Code: "HTTP_" + strconv.Itoa(resp.StatusCode), Message: resp.Status}
	}
	errResp.Error.Status = resp.StatusCode
	return &errResp.Error
}
