// Package explorer is a client for Etherscan-compatible block explorer APIs
// (etherscan, bscscan, arbiscan and friends).
package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/pendergraft/contraverify/internal/observability/metrics"
)

const (
	// DefaultRate is the request rate free-tier explorer keys allow.
	DefaultRate = 5
	// DefaultTimeout bounds a single explorer request.
	DefaultTimeout = 30 * time.Second
)

// ErrNotVerified is returned by GetABI when the explorer has no source for
// the address.
var ErrNotVerified = errors.New("contract source code not verified")

// Response is the envelope every explorer endpoint returns.
type Response struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// ResultString returns Result as a string, unquoting it when it is one.
func (r *Response) ResultString() string {
	var s string
	if err := json.Unmarshal(r.Result, &s); err == nil {
		return s
	}
	return string(r.Result)
}

// OK reports whether the explorer accepted the request.
func (r *Response) OK() bool {
	return r.Message == "OK" || strings.HasPrefix(r.Message, "OK-")
}

// APIError is a response the explorer rejected.
type APIError struct {
	Action  string
	Message string
	Result  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("explorer %s: %s: %s", e.Action, e.Message, e.Result)
}

// Client talks to one explorer API endpoint.
type Client struct {
	http    *resty.Client
	submit  *resty.Client // verifysourcecode only; never retried
	apiURL  string
	apiKey  string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLimiter overrides the default request limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.SetTimeout(d)
		c.submit.SetTimeout(d)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRetries retries read requests (getabi, checkverifystatus) that failed
// at the transport level. Submissions are sent once.
func WithRetries(n int) Option {
	return func(c *Client) {
		c.http.SetRetryCount(n).SetRetryWaitTime(time.Second)
	}
}

// NewClient creates a client for apiURL. Trailing slashes on apiURL are
// ignored.
func NewClient(apiURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		http:    resty.New().SetTimeout(DefaultTimeout).SetHeader("Accept", "application/json"),
		submit:  resty.New().SetTimeout(DefaultTimeout).SetHeader("Accept", "application/json"),
		apiURL:  strings.TrimRight(apiURL, "/"),
		apiKey:  apiKey,
		limiter: rate.NewLimiter(rate.Limit(DefaultRate), 1),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIURL returns the normalized endpoint.
func (c *Client) APIURL() string {
	return c.apiURL
}

// GetABI fetches the verified ABI for address. It returns ErrNotVerified
// when the explorer has no verified source.
func (c *Client) GetABI(ctx context.Context, address string) (string, error) {
	resp, err := c.get(ctx, "getabi", map[string]string{"address": address})
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		result := resp.ResultString()
		if strings.Contains(strings.ToLower(result), "not verified") {
			return "", ErrNotVerified
		}
		return "", &APIError{Action: "getabi", Message: resp.Message, Result: result}
	}
	return resp.ResultString(), nil
}

// IsVerified reports whether the explorer already has verified source for
// address. Only a response message of exactly "OK" counts as verified.
func (c *Client) IsVerified(ctx context.Context, address string) (bool, error) {
	resp, err := c.get(ctx, "getabi", map[string]string{"address": address})
	if err != nil {
		return false, err
	}
	return resp.Message == "OK", nil
}

// SourceSubmission is a solidity-standard-json-input verification request.
type SourceSubmission struct {
	Address string
	// ContractName is the fully qualified "<source>:<Contract>" name
	ContractName    string
	CompilerVersion string
	SourceCode      string
	// ConstructorArgs is ABI-encoded hex without 0x
	ConstructorArgs string
}

// VerifySourceCode submits source for verification and returns the GUID to
// poll with CheckVerifyStatus.
func (c *Client) VerifySourceCode(ctx context.Context, sub SourceSubmission) (string, error) {
	form := map[string]string{
		"module":                "contract",
		"action":                "verifysourcecode",
		"apikey":                c.apiKey,
		"contractaddress":       sub.Address,
		"sourceCode":            sub.SourceCode,
		"codeformat":            "solidity-standard-json-input",
		"contractname":          sub.ContractName,
		"compilerversion":       sub.CompilerVersion,
		"constructorArguements": sub.ConstructorArgs,
	}

	resp, err := c.do(ctx, c.submit, "verifysourcecode", func(r *resty.Request) (*resty.Response, error) {
		return r.SetFormData(form).Post(c.apiURL)
	})
	if err != nil {
		return "", err
	}
	result := resp.ResultString()
	if resp.Status != "1" {
		if strings.Contains(strings.ToLower(result), "already verified") {
			return "", ErrAlreadyVerified
		}
		return "", &APIError{Action: "verifysourcecode", Message: resp.Message, Result: result}
	}
	return result, nil
}

// ErrAlreadyVerified is returned when a submission targets verified source.
var ErrAlreadyVerified = errors.New("contract source code already verified")

// Status is the state of a submitted verification.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusFailed   Status = "failed"
)

// CheckVerifyStatus polls the state of a submission.
func (c *Client) CheckVerifyStatus(ctx context.Context, guid string) (Status, string, error) {
	resp, err := c.get(ctx, "checkverifystatus", map[string]string{"guid": guid})
	if err != nil {
		return "", "", err
	}
	return classifyStatus(resp.ResultString()), resp.ResultString(), nil
}

func classifyStatus(result string) Status {
	lower := strings.ToLower(result)
	switch {
	case strings.Contains(lower, "pending"):
		return StatusPending
	case strings.Contains(lower, "pass - verified"), strings.Contains(lower, "already verified"):
		return StatusVerified
	default:
		return StatusFailed
	}
}

func (c *Client) get(ctx context.Context, action string, params map[string]string) (*Response, error) {
	query := map[string]string{
		"module": "contract",
		"action": action,
		"apikey": c.apiKey,
	}
	for k, v := range params {
		query[k] = v
	}
	return c.do(ctx, c.http, action, func(r *resty.Request) (*resty.Response, error) {
		return r.SetQueryParams(query).Get(c.apiURL)
	})
}

func (c *Client) do(ctx context.Context, hc *resty.Client, action string, send func(*resty.Request) (*resty.Response, error)) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	start := time.Now()
	raw, err := send(hc.R().SetContext(ctx))
	if err != nil {
		metrics.ExplorerRequest(action, "error")
		return nil, fmt.Errorf("explorer %s request: %w", action, err)
	}
	c.logger.Debug("explorer request",
		"action", action,
		"status", raw.StatusCode(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if raw.IsError() {
		metrics.ExplorerRequest(action, strconv.Itoa(raw.StatusCode()))
		return nil, fmt.Errorf("explorer %s request: HTTP %d", action, raw.StatusCode())
	}

	var resp Response
	if err := json.Unmarshal(raw.Body(), &resp); err != nil {
		metrics.ExplorerRequest(action, "error")
		return nil, fmt.Errorf("decoding explorer %s response: %w", action, err)
	}
	metrics.ExplorerRequest(action, "ok")
	return &resp, nil
}
