package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pendergraft/contraverify/internal/storage"
	"github.com/pendergraft/contraverify/pkg/client"
)

// openStore opens and migrates the configured history store.
func (a *app) openStore(ctx context.Context) (storage.Store, error) {
	store, err := storage.New(a.cfg.Storage, a.logger.With("component", "storage"))
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return store, nil
}

// openHistory returns the history store, or nil when history is disabled or
// unavailable. Verification runs without it.
func (a *app) openHistory(ctx context.Context) storage.Store {
	if !a.cfg.Storage.Enabled {
		return nil
	}
	store, err := a.openStore(ctx)
	if err != nil {
		a.logger.Warn("run history unavailable", "error", err)
		return nil
	}
	return store
}

func newHistoryCmd(a *app) *cobra.Command {
	var filter client.RunFilter
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded verification runs",
		Long: `List recorded verification runs, newest first, or show the per-artifact
results of one run.

Runs are read from the local history database, or from a contraverify
server when --server (or CONTRAVERIFY_SERVER) is set.

EXAMPLES:
  # Recent runs on every network
  contraverify history

  # Recent BSC runs
  contraverify history --for bsc --limit 5

  # One run in detail
  contraverify history 3f1c9a2e-...

  # Runs recorded by a server
  contraverify history --server https://verify.example.com
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, closeFn, err := a.historySource(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			if len(args) == 1 {
				return runHistoryShow(cmd, src, args[0], jsonOut)
			}
			return runHistoryList(cmd, src, filter, jsonOut)
		},
	}

	cmd.Flags().StringVar(&filter.Network, "for", "", "only runs for this network")
	cmd.Flags().StringVar(&filter.Status, "status", "", "only runs with this status (running, completed, aborted)")
	cmd.Flags().IntVar(&filter.Limit, "limit", 20, "maximum runs to list")
	cmd.Flags().StringVar(&filter.Cursor, "cursor", "", "continue a previous listing")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")

	return cmd
}

// historySource reads runs from a server or the local store.
type historySource interface {
	ListRuns(ctx context.Context, filter client.RunFilter) (*client.ListRunsResponse, error)
	GetRun(ctx context.Context, id string) (*client.Run, error)
}

func (a *app) historySource(ctx context.Context) (historySource, func(), error) {
	if serverURL := a.serverURL(); serverURL != "" {
		return client.New(serverURL, a.key(serverURL)), func() {}, nil
	}
	if !a.cfg.Storage.Enabled {
		return nil, nil, errors.New("run history is disabled (CONTRAVERIFY_HISTORY=false)")
	}
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	return localHistory{store}, func() { store.Close() }, nil
}

type localHistory struct {
	store storage.RunStore
}

func (h localHistory) ListRuns(ctx context.Context, filter client.RunFilter) (*client.ListRunsResponse, error) {
	page, err := h.store.ListRuns(ctx,
		storage.RunFilter{Network: filter.Network, Status: filter.Status},
		storage.PaginationParams{Limit: filter.Limit, Cursor: filter.Cursor},
	)
	if err != nil {
		return nil, err
	}
	resp := &client.ListRunsResponse{
		Data:       make([]client.Run, 0, len(page.Data)),
		Pagination: client.Pagination{Limit: filter.Limit, HasMore: page.HasMore, NextCursor: page.NextCursor},
	}
	for _, run := range page.Data {
		resp.Data = append(resp.Data, toClientRun(run))
	}
	return resp, nil
}

func (h localHistory) GetRun(ctx context.Context, id string) (*client.Run, error) {
	run, err := h.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	out := toClientRun(*run)
	return &out, nil
}

func toClientRun(run storage.Run) client.Run {
	out := client.Run{
		ID:          run.ID,
		Network:     run.Network,
		ChainID:     run.ChainID,
		ExplorerURL: run.ExplorerURL,
		DryRun:      run.DryRun,
		Status:      run.Status,
		Error:       run.Error,
		Counts: client.Counts{
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
		out.Results = append(out.Results, client.Result{
			File:     r.File,
			Address:  r.Address,
			Contract: r.Contract,
			Outcome:  r.Outcome,
			Reason:   r.Reason,
			Error:    r.Error,
		})
	}
	return out
}

func runHistoryList(cmd *cobra.Command, src historySource, filter client.RunFilter, jsonOut bool) error {
	resp, err := src.ListRuns(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		return writeJSON(out, resp)
	}
	if len(resp.Data) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}

	table := newTable(out, "ID", "Network", "Status", "Dry Run", "Total", "Verified", "Failed", "Started")
	for _, run := range resp.Data {
		verified := run.Counts.AlreadyVerified + run.Counts.SubmittedOK
		failed := run.Counts.SubmittedFailed + run.Counts.Failed
		table.Append([]string{
			run.ID,
			run.Network,
			statusText(run.Status),
			yesNo(run.DryRun),
			strconv.Itoa(run.Counts.Total),
			strconv.Itoa(verified),
			strconv.Itoa(failed),
			run.StartedAt,
		})
	}
	table.Render()

	if resp.Pagination.HasMore {
		fmt.Fprintf(out, "More runs: --cursor %s\n", resp.Pagination.NextCursor)
	}
	return nil
}

func runHistoryShow(cmd *cobra.Command, src historySource, id string, jsonOut bool) error {
	run, err := src.GetRun(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("getting run %s: %w", id, err)
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		return writeJSON(out, run)
	}
	printRun(out, run)
	return nil
}

func printRun(w io.Writer, run *client.Run) {
	fmt.Fprintf(w, "%s %s\n", printBold("Run"), run.ID)
	fmt.Fprintf(w, "  Network:  %s (chain %d)\n", printCyan(run.Network), run.ChainID)
	fmt.Fprintf(w, "  Explorer: %s\n", run.ExplorerURL)
	fmt.Fprintf(w, "  Status:   %s\n", statusText(run.Status))
	fmt.Fprintf(w, "  Dry run:  %s\n", yesNo(run.DryRun))
	fmt.Fprintf(w, "  Started:  %s\n", run.StartedAt)
	if run.FinishedAt != "" {
		fmt.Fprintf(w, "  Finished: %s\n", run.FinishedAt)
	}
	if run.Error != "" {
		fmt.Fprintf(w, "  Error:    %s\n", printRed(run.Error))
	}
	fmt.Fprintln(w)

	if len(run.Results) == 0 {
		fmt.Fprintln(w, "No artifact results recorded")
		return
	}
	table := newTable(w, "File", "Address", "Outcome", "Detail")
	for _, r := range run.Results {
		detail := r.Reason
		if r.Error != "" && r.Error != r.Reason {
			detail = r.Error
		}
		table.Append([]string{r.File, r.Address, outcomeStringText(r.Outcome), detail})
	}
	table.Render()
}

func statusText(status string) string {
	switch status {
	case storage.RunCompleted:
		return printGreen(status)
	case storage.RunAborted:
		return printRed(status)
	default:
		return printYellow(status)
	}
}
