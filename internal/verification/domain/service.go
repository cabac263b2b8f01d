package domain

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/pendergraft/contraverify/internal/artifacts"
	"github.com/pendergraft/contraverify/internal/explorer"
	"github.com/pendergraft/contraverify/internal/networks"
	"github.com/pendergraft/contraverify/internal/observability/metrics"
	"github.com/pendergraft/contraverify/internal/storage"
)

// Explorer is the block-explorer API used by the runner and the default
// submitter. *explorer.Client satisfies it.
type Explorer interface {
	IsVerified(ctx context.Context, address string) (bool, error)
	VerifySourceCode(ctx context.Context, sub explorer.SourceSubmission) (string, error)
	CheckVerifyStatus(ctx context.Context, guid string) (explorer.Status, string, error)
}

// Submitter submits an unverified contract for verification.
type Submitter interface {
	Submit(ctx context.Context, req SubmitRequest) error
}

// ExplorerResolver defines the network lookups the runner needs.
type ExplorerResolver interface {
	Get(name string) (*networks.Network, error)
	ResolveExplorer(ctx context.Context, name string) (*networks.Explorer, error)
}

// RunRecorder defines the storage operations needed to keep run history.
type RunRecorder interface {
	CreateRun(ctx context.Context, run *storage.Run) error
	RecordResult(ctx context.Context, result *storage.ResultRecord) error
	FinishRun(ctx context.Context, run *storage.Run) error
}

// Target is everything a submitter needs to know about the network.
type Target struct {
	Network  *networks.Network
	Dir      string
	Explorer *networks.Explorer
}

// ExplorerFactory builds an explorer client for a resolved endpoint.
type ExplorerFactory func(ex *networks.Explorer) Explorer

// SubmitterFactory builds the submitter for one run.
type SubmitterFactory func(t Target, ex Explorer) Submitter

// Runner verifies the deployment artifacts of a network.
type Runner struct {
	resolver   ExplorerResolver
	explorers  ExplorerFactory
	submitters SubmitterFactory
	recorder   RunRecorder
	root       string
	logger     *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithRecorder records every run in history storage.
func WithRecorder(rec RunRecorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a runner reading artifacts under root.
func NewRunner(root string, resolver ExplorerResolver, explorers ExplorerFactory, submitters SubmitterFactory, opts ...Option) *Runner {
	r := &Runner{
		resolver:   resolver,
		explorers:  explorers,
		submitters: submitters,
		root:       root,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dir returns the artifact directory of network.
func (r *Runner) Dir(network string) string {
	return networks.DeploymentsDir(r.root, network)
}

// Run verifies every artifact of req.Network, one at a time. Per-artifact
// problems are reported in the summary; only directory or network
// resolution errors fail the run.
func (r *Runner) Run(ctx context.Context, req RunRequest) (*Summary, error) {
	if _, err := r.resolver.Get(req.Network); err != nil {
		return nil, err
	}
	paths, err := artifacts.Discover(r.Dir(req.Network), req.discoverOptions())
	if err != nil {
		return nil, err
	}

	s, err := r.Open(ctx, req)
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		s.Verify(ctx, path)
	}
	return s.Close(ctx), nil
}

// Open resolves the network and starts a session.
func (r *Runner) Open(ctx context.Context, req RunRequest) (*Session, error) {
	n, err := r.resolver.Get(req.Network)
	if err != nil {
		return nil, err
	}
	ex, err := r.resolver.ResolveExplorer(ctx, req.Network)
	if err != nil {
		return nil, err
	}

	client := r.explorers(ex)
	target := Target{Network: n, Dir: r.Dir(req.Network), Explorer: ex}
	s := &Session{
		runner:    r,
		req:       req,
		explorer:  client,
		submitter: r.submitters(target, client),
		logger:    r.logger.With("component", "verifier", "network", req.Network),
		summary: Summary{
			Network:     req.Network,
			ChainID:     ex.ChainID,
			ExplorerURL: ex.APIURL,
			DryRun:      req.DryRun,
			StartedAt:   time.Now().UTC(),
		},
	}

	if r.recorder != nil {
		run := &storage.Run{Network: req.Network, ChainID: ex.ChainID, ExplorerURL: ex.APIURL, DryRun: req.DryRun}
		if err := r.recorder.CreateRun(ctx, run); err != nil {
			s.logger.Warn("run history disabled for this run", "error", err)
		} else {
			s.run = run
			s.summary.RunID = run.ID
		}
	}

	s.logger.Info("verification started", "chain_id", ex.ChainID, "explorer", ex.APIURL, "dry_run", req.DryRun)
	return s, nil
}

// Session is an open verification run against one network. Verify may be
// called from several goroutines; artifacts are still processed one at a
// time.
type Session struct {
	runner    *Runner
	req       RunRequest
	explorer  Explorer
	submitter Submitter
	logger    *slog.Logger
	run       *storage.Run

	mu      sync.Mutex
	summary Summary
	closed  bool
}

// Verify processes one artifact file and returns its result.
func (s *Session) Verify(ctx context.Context, path string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res Result
	if err := ctx.Err(); err != nil {
		res = Result{File: filepath.Base(path), Outcome: OutcomeFailed, Reason: ReasonCancelled, Err: err}
		s.summary.Aborted = true
	} else {
		res = s.verify(ctx, path)
	}
	if res.Err != nil {
		res.Error = res.Err.Error()
	}

	s.log(res)
	s.summary.Results = append(s.summary.Results, res)
	s.summary.Counts.Add(res.Outcome)
	metrics.VerificationResult(s.req.Network, string(res.Outcome))
	s.record(ctx, res)
	return res
}

func (s *Session) verify(ctx context.Context, path string) Result {
	res := Result{File: filepath.Base(path)}

	a, err := artifacts.Parse(path)
	if err != nil {
		return failed(res, ReasonParse, err)
	}
	if a.Address == "" {
		return skipped(res, ReasonNoAddress)
	}
	res.Address = a.Address

	contract, err := a.ContractIdentifier()
	if err != nil {
		return failed(res, ReasonMetadata, err)
	}
	res.Contract = contract

	if a.IsKnownProxy() {
		return skipped(res, ReasonKnownProxy)
	}

	verified, err := s.explorer.IsVerified(ctx, a.Address)
	if err != nil {
		return failed(res, ReasonStatusQuery, err)
	}
	if verified {
		res.Outcome = OutcomeAlreadyVerified
		return res
	}

	if s.req.DryRun {
		return skipped(res, ReasonDryRun)
	}

	err = s.submitter.Submit(ctx, SubmitRequest{
		Address:              a.Address,
		Contract:             contract,
		ConstructorArguments: a.ConstructorArguments(),
		Artifact:             a,
	})
	if err != nil {
		res.Outcome = OutcomeSubmittedFailed
		res.Reason = err.Error()
		res.Err = err
		return res
	}
	res.Outcome = OutcomeSubmittedOK
	return res
}

func skipped(res Result, reason string) Result {
	res.Outcome = OutcomeSkipped
	res.Reason = reason
	return res
}

func failed(res Result, reason string, err error) Result {
	res.Outcome = OutcomeFailed
	res.Reason = reason
	res.Err = err
	return res
}

func (s *Session) log(res Result) {
	attrs := []any{"file", res.File, "outcome", res.Outcome}
	if res.Address != "" {
		attrs = append(attrs, "address", res.Address)
	}
	if res.Contract != "" {
		attrs = append(attrs, "contract", res.Contract)
	}

	switch res.Outcome {
	case OutcomeSkipped:
		s.logger.Warn("artifact skipped", append(attrs, "reason", res.Reason)...)
	case OutcomeFailed, OutcomeSubmittedFailed:
		s.logger.Error("artifact failed", append(attrs, "reason", res.Reason, "error", res.Error)...)
	default:
		s.logger.Info("artifact processed", attrs...)
	}
}

func (s *Session) record(ctx context.Context, res Result) {
	if s.run == nil {
		return
	}
	rec := &storage.ResultRecord{
		RunID:    s.run.ID,
		File:     res.File,
		Address:  res.Address,
		Contract: res.Contract,
		Outcome:  string(res.Outcome),
		Reason:   res.Reason,
		Error:    res.Error,
	}
	// History must survive a cancelled run.
	if err := s.runner.recorder.RecordResult(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Warn("recording result", "file", res.File, "error", err)
	}
}

// Summary returns a snapshot of the results so far.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.summary
	out.Results = append([]Result(nil), s.summary.Results...)
	return out
}

// Close finishes the session and returns the summary. Calling Close more
// than once returns the same summary.
func (s *Session) Close(ctx context.Context) *Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		s.summary.Duration = time.Since(s.summary.StartedAt)
		metrics.RunDuration(s.req.Network, s.summary.Duration)
		s.finish(ctx)

		c := s.summary.Counts
		s.logger.Info("verification finished",
			"total", c.Total,
			"already_verified", c.AlreadyVerified,
			"submitted_ok", c.SubmittedOK,
			"submitted_failed", c.SubmittedFailed,
			"skipped", c.Skipped,
			"failed", c.Failed,
			"duration", s.summary.Duration.Round(time.Millisecond),
		)
	}

	out := s.summary
	return &out
}

func (s *Session) finish(ctx context.Context) {
	if s.run == nil {
		return
	}
	c := s.summary.Counts
	s.run.Status = storage.RunCompleted
	if s.summary.Aborted {
		s.run.Status = storage.RunAborted
		s.run.Error = ReasonCancelled
	}
	s.run.Counts = storage.RunCounts{
		Total:           c.Total,
		AlreadyVerified: c.AlreadyVerified,
		SubmittedOK:     c.SubmittedOK,
		SubmittedFailed: c.SubmittedFailed,
		Skipped:         c.Skipped,
		Failed:          c.Failed,
	}
	err := s.runner.recorder.FinishRun(context.WithoutCancel(ctx), s.run)
	if err != nil && !errors.Is(err, storage.ErrRunFinished) {
		s.logger.Warn("finishing run", "run_id", s.run.ID, "error", err)
	}
}
