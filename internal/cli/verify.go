package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pendergraft/contraverify/internal/explorer"
	"github.com/pendergraft/contraverify/internal/verification/domain"
	"github.com/pendergraft/contraverify/pkg/client"
)

type verifyOptions struct {
	dryRun      bool
	contracts   []string
	exclude     []string
	json        bool
	failOnError bool
	watch       bool
}

func verifyDuetTask() Task {
	var opts verifyOptions

	return Task{
		Name:  "verify:duet",
		Short: "Verify every deployment of the network on its block explorer",
		Long: `Verify the contracts recorded under deployments/<network>.

Each artifact is handled on its own: hardhat-deploy EIP173 proxies and
artifacts without an address are skipped, contracts the explorer already
knows are left alone, and the rest are submitted with the artifact's
constructor arguments. A failing artifact never stops the run.

The command succeeds even when some artifacts fail, unless --fail-on-error
is given.

EXAMPLES:
  # Verify everything deployed to BSC testnet
  contraverify verify:duet --network bsctest

  # See what would be submitted without submitting
  contraverify verify:duet --network bsc --dry-run

  # Only some deployments, machine readable output for CI
  contraverify verify:duet --network bsc --contracts Vault,Oracle --json --fail-on-error

  # Keep verifying artifacts as hardhat-deploy writes them
  contraverify verify:duet --network bsctest --watch

  # Run on a contraverify server
  contraverify verify:duet --network bsc --server https://verify.example.com
`,
		Args: cobra.NoArgs,
		Flags: func(fs *pflag.FlagSet) {
			fs.BoolVar(&opts.dryRun, "dry-run", false, "check verification status without submitting")
			fs.StringSliceVar(&opts.contracts, "contracts", nil, "only these deployment names")
			fs.StringSliceVar(&opts.exclude, "exclude", nil, "skip these deployment names")
			fs.BoolVar(&opts.json, "json", false, "print the summary as JSON")
			fs.BoolVar(&opts.failOnError, "fail-on-error", false, "exit non-zero when any artifact failed")
			fs.BoolVar(&opts.watch, "watch", false, "keep running and verify new or rewritten artifacts")
		},
		Run: func(cmd *cobra.Command, a *app, _ []string) error {
			return runVerifyDuet(cmd, a, opts)
		},
	}
}

func runVerifyDuet(cmd *cobra.Command, a *app, opts verifyOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	req := domain.RunRequest{
		Network:   a.network,
		DryRun:    opts.dryRun,
		Contracts: opts.contracts,
		Exclude:   opts.exclude,
	}

	var summary *domain.Summary
	if serverURL := a.serverURL(); serverURL != "" {
		if opts.watch {
			return errors.New("--watch runs locally and cannot be combined with --server")
		}
		remote, err := client.New(serverURL, a.key(serverURL)).Verify(ctx, req.Network, client.VerifyRequest{
			DryRun:    req.DryRun,
			Contracts: req.Contracts,
			Exclude:   req.Exclude,
		})
		if err != nil {
			return fmt.Errorf("verifying on %s: %w", serverURL, err)
		}
		summary = fromRemote(remote)
	} else {
		store := a.openHistory(ctx)
		if store != nil {
			defer store.Close()
		}

		var rec domain.RunRecorder
		if store != nil {
			rec = store
		}
		runner := domain.NewFromConfig(a.cfg, a.resolver(), rec, a.logger)

		var err error
		if opts.watch {
			fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s, press Ctrl-C to stop\n", runner.Dir(req.Network))
			summary, err = runner.Watch(ctx, req, domain.WatchOptions{
				OnResult: func(r domain.Result) {
					if !opts.json {
						printResult(out, r)
					}
				},
			})
		} else {
			summary, err = runner.Run(ctx, req)
		}
		if err != nil {
			return err
		}
	}

	if opts.json {
		if err := writeJSON(out, summary); err != nil {
			return err
		}
	} else {
		renderSummary(out, summary)
	}

	if opts.failOnError && summary.Counts.HasFailures() {
		return fmt.Errorf("%d of %d artifacts were not verified", summary.Counts.SubmittedFailed+summary.Counts.Failed, summary.Counts.Total)
	}
	return nil
}

func fromRemote(s *client.Summary) *domain.Summary {
	out := &domain.Summary{
		RunID:       s.RunID,
		Network:     s.Network,
		ChainID:     s.ChainID,
		ExplorerURL: s.ExplorerURL,
		DryRun:      s.DryRun,
		Aborted:     s.Aborted,
		Counts: domain.Counts{
			Total:           s.Counts.Total,
			AlreadyVerified: s.Counts.AlreadyVerified,
			SubmittedOK:     s.Counts.SubmittedOK,
			SubmittedFailed: s.Counts.SubmittedFailed,
			Skipped:         s.Counts.Skipped,
			Failed:          s.Counts.Failed,
		},
		StartedAt: s.StartedAt,
		Duration:  s.Duration,
	}
	for _, r := range s.Results {
		out.Results = append(out.Results, domain.Result{
			File:     r.File,
			Address:  r.Address,
			Contract: r.Contract,
			Outcome:  domain.Outcome(r.Outcome),
			Reason:   r.Reason,
			Error:    r.Error,
		})
	}
	return out
}

func verifyStatusTask() Task {
	return Task{
		Name:  "verify:status",
		Short: "Show whether an address is verified on the network's explorer",
		Long: `Query the network's block explorer for the verified ABI of an address.

EXAMPLES:
  contraverify verify:status --network bsc 0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c
`,
		Args: cobra.ExactArgs(1),
		Run:  runVerifyStatus,
	}
}

func runVerifyStatus(cmd *cobra.Command, a *app, args []string) error {
	ctx := cmd.Context()
	address := args[0]

	ex, err := a.resolver().ResolveExplorer(ctx, a.network)
	if err != nil {
		return err
	}
	exOpts := []explorer.Option{explorer.WithLogger(a.logger)}
	if a.cfg.Verify.ExplorerTimeout > 0 {
		exOpts = append(exOpts, explorer.WithTimeout(a.cfg.Verify.ExplorerTimeout))
	}
	if a.cfg.Verify.ExplorerRetries > 0 {
		exOpts = append(exOpts, explorer.WithRetries(a.cfg.Verify.ExplorerRetries))
	}
	c := explorer.NewClient(ex.APIURL, ex.APIKey, exOpts...)

	out := cmd.OutOrStdout()
	abiJSON, err := c.GetABI(ctx, address)
	switch {
	case errors.Is(err, explorer.ErrNotVerified):
		fmt.Fprintf(out, "%s %s is not verified on %s\n", printYellow("✗"), address, ex.APIURL)
		return nil
	case err != nil:
		return fmt.Errorf("querying %s: %w", ex.APIURL, err)
	}

	fmt.Fprintf(out, "%s %s is verified on %s (ABI %d bytes)\n", printGreen("✓"), address, ex.APIURL, len(abiJSON))
	if ex.BrowserURL != "" {
		fmt.Fprintf(out, "  %s/address/%s#code\n", ex.BrowserURL, address)
	}
	return nil
}
