package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"specgrid/internal/ledger"
	"specgrid/internal/outcome"
)

const shortIDLength = 8

func newReportCommand(ctx *commandContext) *cobra.Command {
	var runID string
	var limit int

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show recent runs, or the failed rows of one run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(func(store *ledger.Store) error {
				out := cmd.OutOrStdout()
				if strings.TrimSpace(runID) == "" {
					return printRuns(cmd.Context(), out, store, limit)
				}
				return printRunFailures(cmd.Context(), out, store, strings.TrimSpace(runID))
			})
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Run ID or unique ID prefix to show failures for")
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of recent runs to list (0 lists every run)")
	return cmd
}

func printRuns(ctx context.Context, out io.Writer, store *ledger.Store, limit int) error {
	runs, err := store.Runs(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}
	rows := make([][]string, 0, len(runs))
	var failed, total int
	var bytes int64
	for _, r := range runs {
		total += r.Total
		failed += r.Failed
		bytes += r.Bytes
		rows = append(rows, []string{
			shortID(r.ID),
			r.Stage,
			string(r.Status),
			strconv.Itoa(r.Total),
			strconv.Itoa(r.Failed),
			fmt.Sprintf("%.1f%%", r.FailureRate()*100),
			humanize.IBytes(uint64(r.Bytes)),
			r.Elapsed.Round(time.Millisecond).String(),
			humanize.Time(r.StartedAt),
		})
	}
	footer := []string{fmt.Sprintf("%d runs", len(runs)), "", "", strconv.Itoa(total), strconv.Itoa(failed), "", humanize.IBytes(uint64(bytes))}
	fmt.Fprintln(out, renderTable([]column{
		leftColumn("Run"),
		leftColumn("Stage"),
		leftColumn("Status"),
		rightColumn("Rows"),
		rightColumn("Failed"),
		rightColumn("Rate"),
		rightColumn("Bytes"),
		rightColumn("Elapsed"),
		leftColumn("Started"),
	}, rows, footer))
	return nil
}

func printRunFailures(ctx context.Context, out io.Writer, store *ledger.Store, id string) error {
	run, err := resolveRun(ctx, store, id)
	if err != nil {
		return err
	}
	stats, err := store.Stats(ctx, run.ID)
	if err != nil {
		return err
	}
	failures, err := store.Failures(ctx, run.ID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Run %s (%s, %s)\n", run.ID, run.Stage, run.Status)
	var counts []string
	for _, kind := range outcome.Kinds {
		if n := stats[kind]; n > 0 {
			counts = append(counts, fmt.Sprintf("%s=%d", kind, n))
		}
	}
	if len(counts) > 0 {
		fmt.Fprintf(out, "Outcomes: %s\n", strings.Join(counts, " "))
	}
	if len(failures) == 0 {
		fmt.Fprintln(out, "No failed rows")
		return nil
	}

	rows := make([][]string, 0, len(failures))
	for _, f := range failures {
		rows = append(rows, []string{
			f.Key.Name(),
			string(f.Kind),
			strconv.Itoa(f.Attempts),
			f.Message,
		})
	}
	fmt.Fprintln(out, renderTable([]column{
		leftColumn("Spectrum"),
		leftColumn("Kind"),
		rightColumn("Attempts"),
		leftColumn("Message"),
	}, rows, nil))
	return nil
}

// resolveRun accepts a full run ID or a prefix matching exactly one run.
func resolveRun(ctx context.Context, store *ledger.Store, id string) (ledger.Run, error) {
	run, ok, err := store.GetRun(ctx, id)
	if err != nil {
		return ledger.Run{}, err
	}
	if ok {
		return run, nil
	}
	runs, err := store.Runs(ctx, 0)
	if err != nil {
		return ledger.Run{}, err
	}
	var matches []ledger.Run
	for _, r := range runs {
		if strings.HasPrefix(r.ID, id) {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return ledger.Run{}, fmt.Errorf("run %s not found", id)
	case 1:
		return matches[0], nil
	default:
		return ledger.Run{}, fmt.Errorf("run prefix %s is ambiguous (%d matches)", id, len(matches))
	}
}

func shortID(id string) string {
	if len(id) <= shortIDLength {
		return id
	}
	return id[:shortIDLength]
}
