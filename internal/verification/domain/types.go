// Package domain contains the business logic for contract verification.
package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pendergraft/contraverify/internal/artifacts"
)

// Outcome is the result class of one artifact.
type Outcome string

const (
	OutcomeAlreadyVerified Outcome = "already-verified"
	OutcomeSubmittedOK     Outcome = "submitted-ok"
	OutcomeSubmittedFailed Outcome = "submitted-failed"
	OutcomeSkipped         Outcome = "skipped"
	OutcomeFailed          Outcome = "failed"
)

// Skip and failure reasons.
const (
	ReasonNoAddress   = "no-address"
	ReasonKnownProxy  = "known-proxy"
	ReasonDryRun      = "dry-run"
	ReasonParse       = "parse"
	ReasonMetadata    = "metadata"
	ReasonStatusQuery = "status-query"
	ReasonCancelled   = "cancelled"
)

// Result is the outcome for a single artifact file.
type Result struct {
	File     string  `json:"file"`
	Address  string  `json:"address,omitempty"`
	Contract string  `json:"contract,omitempty"`
	Outcome  Outcome `json:"outcome"`
	Reason   string  `json:"reason,omitempty"`
	Error    string  `json:"error,omitempty"`
	Err      error   `json:"-"`
}

// String formats the result as "<file>: <outcome>(<reason>)".
func (r Result) String() string {
	if r.Reason != "" {
		return fmt.Sprintf("%s: %s(%s)", r.File, r.Outcome, r.Reason)
	}
	return fmt.Sprintf("%s: %s", r.File, r.Outcome)
}

// Counts are per-outcome totals.
type Counts struct {
	Total           int `json:"total"`
	AlreadyVerified int `json:"alreadyVerified"`
	SubmittedOK     int `json:"submittedOk"`
	SubmittedFailed int `json:"submittedFailed"`
	Skipped         int `json:"skipped"`
	Failed          int `json:"failed"`
}

// Add counts one result.
func (c *Counts) Add(o Outcome) {
	c.Total++
	switch o {
	case OutcomeAlreadyVerified:
		c.AlreadyVerified++
	case OutcomeSubmittedOK:
		c.SubmittedOK++
	case OutcomeSubmittedFailed:
		c.SubmittedFailed++
	case OutcomeSkipped:
		c.Skipped++
	case OutcomeFailed:
		c.Failed++
	}
}

// HasFailures reports whether any artifact failed or was rejected.
func (c Counts) HasFailures() bool {
	return c.Failed > 0 || c.SubmittedFailed > 0
}

// Summary describes a finished run.
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

// RunRequest selects what to verify.
type RunRequest struct {
	Network   string   `json:"network"`
	DryRun    bool     `json:"dryRun"`
	Contracts []string `json:"contracts,omitempty"`
	Exclude   []string `json:"exclude,omitempty"`
}

func (r RunRequest) discoverOptions() artifacts.DiscoverOptions {
	return artifacts.DiscoverOptions{Contracts: r.Contracts, Exclude: r.Exclude}
}

// SubmitRequest is handed to a Submitter for an unverified contract.
type SubmitRequest struct {
	Address              string
	Contract             string
	ConstructorArguments []json.RawMessage
	Artifact             *artifacts.Artifact
}
