package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"specgrid/internal/ledger"
	"specgrid/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check the data root, catalog, archive and ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client := &http.Client{Timeout: cfg.ArchiveTimeout()}
			results := preflight.RunAll(cmd.Context(), cfg, client)

			out := cmd.OutOrStdout()
			colorize := isTerminal(out)
			var lines []string
			lines = append(lines, sectionHeader("Environment", colorize))
			for _, r := range results {
				state := statePass
				if !r.Passed {
					state = stateFail
				}
				lines = append(lines, statusLine(r.Name, state, r.Detail, colorize))
			}
			lines = append(lines, "", sectionHeader("Pipeline", colorize))
			lines = append(lines, pipelineStatusLines(cmd.Context(), ctx, cfg.LedgerPath(), colorize)...)
			fmt.Fprintln(out, strings.Join(lines, "\n"))

			if strict && preflight.Failed(results) {
				return fmt.Errorf("one or more checks failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when any check fails")
	return cmd
}

// pipelineStatusLines renders the latest run of each stage from the ledger.
func pipelineStatusLines(ctx context.Context, c *commandContext, ledgerPath string, colorize bool) []string {
	if _, err := os.Stat(ledgerPath); err != nil {
		return []string{statusLine("runs", stateInfo, "no runs recorded", colorize)}
	}
	var lines []string
	err := c.withLedger(func(store *ledger.Store) error {
		for _, stage := range []string{stageFetch, stageResample, stageFilter} {
			run, ok, err := store.LatestRun(ctx, stage)
			if err != nil {
				return err
			}
			if !ok {
				lines = append(lines, statusLine(stage, stateInfo, "never run", colorize))
				continue
			}
			state := statePass
			if run.Status != ledger.RunFinished || run.Failed > 0 {
				state = stateWarn
			}
			detail := fmt.Sprintf("%s, %d/%d failed, %s",
				run.StartedAt.Local().Format("2006-01-02 15:04"), run.Failed, run.Total, run.Status)
			lines = append(lines, statusLine(stage, state, detail, colorize))
		}
		return nil
	})
	if err != nil {
		lines = append(lines, statusLine("ledger", stateFail, err.Error(), colorize))
	}
	return lines
}
