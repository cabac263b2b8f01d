// Package transport provides HTTP request/response types for the verification domain.
package transport

import (
	"github.com/pendergraft/contraverify/internal/storage"
	"github.com/pendergraft/contraverify/internal/verification/domain"
)

// VerifyRequest is the optional HTTP request body for a verification run.
type VerifyRequest struct {
	DryRun    bool     `json:"dryRun"`
	Contracts []string `json:"contracts,omitempty"`
	Exclude   []string `json:"exclude,omitempty"`
}

// ToDomain converts VerifyRequest to domain.RunRequest.
func (r VerifyRequest) ToDomain(network string) domain.RunRequest {
	return domain.RunRequest{
		Network:   network,
		DryRun:    r.DryRun,
		Contracts: r.Contracts,
		Exclude:   r.Exclude,
	}
}

// RunResponse is a stored run.
type RunResponse struct {
	ID          string           `json:"id"`
	Network     string           `json:"network"`
	ChainID     uint64           `json:"chainId"`
	ExplorerURL string           `json:"explorerUrl"`
	DryRun      bool             `json:"dryRun"`
	Status      string           `json:"status"`
	Error       string           `json:"error,omitempty"`
	Counts      domain.Counts    `json:"counts"`
	StartedAt   string           `json:"startedAt"`
	FinishedAt  string           `json:"finishedAt,omitempty"`
	Results     []ResultResponse `json:"results,omitempty"`
}

// ResultResponse is one stored artifact result.
type ResultResponse struct {
	File     string `json:"file"`
	Address  string `json:"address,omitempty"`
	Contract string `json:"contract,omitempty"`
	Outcome  string `json:"outcome"`
	Reason   string `json:"reason,omitempty"`
	Error    string `json:"error,omitempty"`
}

// FromStorage converts a stored run.
func FromStorage(run storage.Run) RunResponse {
	resp := RunResponse{
		ID:          run.ID,
		Network:     run.Network,
		ChainID:     run.ChainID,
		ExplorerURL: run.ExplorerURL,
		DryRun:      run.DryRun,
		Status:      run.Status,
		Error:       run.Error,
		Counts: domain.Counts{
			Total:           run.Counts.Total,
			AlreadyVerified: run.Counts.AlreadyVerified,
			SubmittedOK:     run.Counts.SubmittedOK,
			SubmittedFailed: run.Counts.SubmittedFailed,
			Skipped:         run.Counts.Skipped,
			Failed:          run.Counts.Failed,
		},
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}
	for _, r := range run.Results {
		resp.Results = append(resp.Results, ResultResponse{
			File:     r.File,
			Address:  r.Address,
			Contract: r.Contract,
			Outcome:  r.Outcome,
			Reason:   r.Reason,
			Error:    r.Error,
		})
	}
	return resp
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
