package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/pendergraft/contraverify/internal/verification/domain"
)

var (
	printGreen  = color.New(color.FgGreen).SprintFunc()
	printYellow = color.New(color.FgYellow).SprintFunc()
	printRed    = color.New(color.FgRed).SprintFunc()
	printCyan   = color.New(color.FgCyan).SprintFunc()
	printBold   = color.New(color.Bold).SprintFunc()
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func outcomeText(o domain.Outcome) string {
	s := string(o)
	switch o {
	case domain.OutcomeAlreadyVerified, domain.OutcomeSubmittedOK:
		return printGreen(s)
	case domain.OutcomeSkipped:
		return printYellow(s)
	default:
		return printRed(s)
	}
}

func outcomeStringText(s string) string {
	return outcomeText(domain.Outcome(s))
}

func resultDetail(r domain.Result) string {
	if r.Error != "" && r.Error != r.Reason {
		if r.Reason == "" {
			return r.Error
		}
		return r.Reason + ": " + r.Error
	}
	return r.Reason
}

// renderSummary prints one row per artifact followed by the totals.
func renderSummary(w io.Writer, s *domain.Summary) {
	mode := ""
	if s.DryRun {
		mode = printYellow(" (dry run)")
	}
	fmt.Fprintf(w, "%s %s (chain %d) via %s%s\n", printBold("Network"), printCyan(s.Network), s.ChainID, s.ExplorerURL, mode)
	if s.RunID != "" {
		fmt.Fprintf(w, "Run %s\n", s.RunID)
	}

	if len(s.Results) == 0 {
		fmt.Fprintln(w, "No deployment artifacts found")
		return
	}

	table := newTable(w, "File", "Address", "Outcome", "Detail")
	for _, r := range s.Results {
		table.Append([]string{r.File, r.Address, outcomeText(r.Outcome), resultDetail(r)})
	}
	table.Render()

	c := s.Counts
	fmt.Fprintf(w, "%d artifacts: %s already verified, %s submitted, %s submission failed, %s skipped, %s failed (%s)\n",
		c.Total,
		printGreen(strconv.Itoa(c.AlreadyVerified)),
		printGreen(strconv.Itoa(c.SubmittedOK)),
		printRed(strconv.Itoa(c.SubmittedFailed)),
		printYellow(strconv.Itoa(c.Skipped)),
		printRed(strconv.Itoa(c.Failed)),
		s.Duration.Round(time.Millisecond),
	)
	if s.Aborted {
		fmt.Fprintln(w, printRed("Run interrupted before every artifact was processed"))
	}
}

// printResult prints a single line for one artifact, used in watch mode.
func printResult(w io.Writer, r domain.Result) {
	line := fmt.Sprintf("%s %s", outcomeText(r.Outcome), r.File)
	if r.Address != "" {
		line += " " + r.Address
	}
	if d := resultDetail(r); d != "" {
		line += " (" + d + ")"
	}
	fmt.Fprintln(w, line)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
