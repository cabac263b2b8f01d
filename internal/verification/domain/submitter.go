package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pendergraft/contraverify/internal/abiargs"
	"github.com/pendergraft/contraverify/internal/artifacts"
	"github.com/pendergraft/contraverify/internal/bytecode"
	"github.com/pendergraft/contraverify/internal/explorer"
	"github.com/pendergraft/contraverify/internal/validation"
)

// CodeReader fetches deployed runtime code. *rpc.Client satisfies it.
type CodeReader interface {
	CodeAt(ctx context.Context, address common.Address) ([]byte, error)
}

// ErrStillPending is returned when the explorer has not finished checking a
// submission after the configured number of polls.
var ErrStillPending = errors.New("verification still pending")

// EtherscanSubmitter submits Standard JSON input through an Etherscan
// compatible API and waits for the verdict.
type EtherscanSubmitter struct {
	explorer     Explorer
	dir          string
	code         CodeReader
	pollInterval time.Duration
	pollAttempts int
	logger       *slog.Logger
}

// SubmitterConfig holds polling settings and the optional bytecode check.
type SubmitterConfig struct {
	PollInterval time.Duration
	PollAttempts int
	// Code enables a runtime bytecode comparison before submitting.
	Code   CodeReader
	Logger *slog.Logger
}

// NewEtherscanSubmitter creates a submitter reading solc inputs from dir.
func NewEtherscanSubmitter(ex Explorer, dir string, cfg SubmitterConfig) *EtherscanSubmitter {
	s := &EtherscanSubmitter{
		explorer:     ex,
		dir:          dir,
		code:         cfg.Code,
		pollInterval: cfg.PollInterval,
		pollAttempts: cfg.PollAttempts,
		logger:       cfg.Logger,
	}
	if s.pollInterval <= 0 {
		s.pollInterval = 5 * time.Second
	}
	if s.pollAttempts <= 0 {
		s.pollAttempts = 12
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Submit implements Submitter.
func (s *EtherscanSubmitter) Submit(ctx context.Context, req SubmitRequest) error {
	a := req.Artifact
	if a == nil {
		return errors.New("no artifact")
	}

	if s.code != nil && a.DeployedCode != "" {
		deployed, err := s.code.CodeAt(ctx, common.HexToAddress(req.Address))
		if err != nil {
			return err
		}
		if cmp := bytecode.Compare(deployed, a.DeployedCode); cmp.Match == bytecode.MatchNone || cmp.Match == bytecode.MatchNoCode {
			return fmt.Errorf("bytecode check: %s", cmp.Message)
		}
	}

	sub, err := s.prepare(req)
	if err != nil {
		return err
	}

	guid, err := s.explorer.VerifySourceCode(ctx, *sub)
	if errors.Is(err, explorer.ErrAlreadyVerified) {
		s.logger.Info("explorer reports source already verified", "address", req.Address)
		return nil
	}
	if err != nil {
		return err
	}
	s.logger.Debug("submitted for verification", "address", req.Address, "guid", guid)

	return s.wait(ctx, guid)
}

func (s *EtherscanSubmitter) prepare(req SubmitRequest) (*explorer.SourceSubmission, error) {
	a := req.Artifact

	meta, err := a.ParseMetadata()
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateCompilerVersion(meta.Compiler.Version); err != nil {
		return nil, err
	}

	input, err := artifacts.LoadSolcInput(s.dir, a.SolcInputHash)
	if err != nil {
		return nil, err
	}

	args, err := abiargs.EncodeConstructor(a.ABI, req.ConstructorArguments)
	if err != nil {
		return nil, fmt.Errorf("encoding constructor arguments: %w", err)
	}

	return &explorer.SourceSubmission{
		Address:         req.Address,
		ContractName:    req.Contract,
		CompilerVersion: validation.CompilerVersionTag(meta.Compiler.Version),
		SourceCode:      string(input),
		ConstructorArgs: args,
	}, nil
}

func (s *EtherscanSubmitter) wait(ctx context.Context, guid string) error {
	timer := time.NewTimer(s.pollInterval)
	defer timer.Stop()

	for i := 0; i < s.pollAttempts; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		status, msg, err := s.explorer.CheckVerifyStatus(ctx, guid)
		if err != nil {
			return fmt.Errorf("checking verification status: %w", err)
		}
		switch status {
		case explorer.StatusVerified:
			return nil
		case explorer.StatusFailed:
			return fmt.Errorf("verification failed: %s", msg)
		}
		timer.Reset(s.pollInterval)
	}
	return fmt.Errorf("%w after %d checks (guid %s)", ErrStillPending, s.pollAttempts, guid)
}
