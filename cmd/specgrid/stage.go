package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"specgrid/internal/catalog"
	"specgrid/internal/cleanse"
	"specgrid/internal/config"
	"specgrid/internal/fetch"
	"specgrid/internal/layout"
	"specgrid/internal/ledger"
	"specgrid/internal/logging"
	"specgrid/internal/outcome"
	"specgrid/internal/resample"
	"specgrid/internal/runlock"
	"specgrid/internal/spectrum"
)

const (
	stageFetch    = "fetch"
	stageResample = "resample"
	stageFilter   = "filter"
)

var errFailureThreshold = errors.New("failure rate exceeds threshold")

// stageFlags are the overrides shared by the row-oriented stage commands.
type stageFlags struct {
	workers       int
	catalogPath   string
	maxRows       int
	failThreshold float64
	retryFailed   bool
}

func (f *stageFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Worker pool size (defaults to the configured value)")
	cmd.Flags().StringVar(&f.catalogPath, "catalog", "", "Catalog CSV path")
	cmd.Flags().IntVar(&f.maxRows, "max-rows", 0, "Process only the first N selected rows (0 keeps every row)")
	cmd.Flags().Float64Var(&f.failThreshold, "fail-threshold", 1, "Failure rate above which the command exits non-zero")
	cmd.Flags().BoolVar(&f.retryFailed, "retry-failed", false, "Only process the rows that failed in the previous run of this stage")
}

// apply returns a copy of cfg with the flags the user set.
func (f *stageFlags) apply(cmd *cobra.Command, cfg *config.Config) (*config.Config, error) {
	out := *cfg
	flags := cmd.Flags()
	if flags.Changed("workers") {
		out.Fetch.Workers = f.workers
		out.Resample.Workers = f.workers
	}
	if flags.Changed("catalog") {
		path, err := config.ExpandPath(f.catalogPath)
		if err != nil {
			return nil, fmt.Errorf("resolve catalog path: %w", err)
		}
		out.Catalog.Path = path
	}
	if flags.Changed("max-rows") {
		out.Catalog.MaxRows = f.maxRows
	}
	if flags.Changed("fail-threshold") {
		out.Run.FailThreshold = f.failThreshold
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

// stageEnv carries everything a stage needs once the data root is locked.
type stageEnv struct {
	cfg     *config.Config
	layout  layout.Layout
	logger  *slog.Logger
	store   *ledger.Store
	out     io.Writer
	printer *message.Printer
}

func (c *commandContext) withStage(cmd *cobra.Command, flags *stageFlags, fn func(context.Context, *stageEnv) error) error {
	base, err := c.ensureConfig()
	if err != nil {
		return err
	}
	cfg := base
	if flags != nil {
		if cfg, err = flags.apply(cmd, base); err != nil {
			return err
		}
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return err
	}

	lock, err := runlock.Acquire(cfg.Paths.DataRoot)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("release data root lock failed", logging.Error(err))
		}
	}()

	return c.withLedger(func(store *ledger.Store) error {
		env := &stageEnv{
			cfg:     cfg,
			layout:  layout.FromConfig(cfg),
			logger:  logger,
			store:   store,
			out:     cmd.OutOrStdout(),
			printer: message.NewPrinter(language.English),
		}
		return fn(cmd.Context(), env)
	})
}

// selectRows loads the catalog and applies the configured selection. With
// retryFailed, only rows that failed in the latest run of stage remain.
func (e *stageEnv) selectRows(ctx context.Context, stage string, retryFailed bool) ([]catalog.Row, error) {
	if strings.TrimSpace(e.cfg.Catalog.Path) == "" {
		return nil, errors.New("catalog path not configured (set catalog.path, SPECGRID_CATALOG or --catalog)")
	}
	all, err := catalog.Load(ctx, e.cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	rows := catalog.Select(all, catalog.Selection{
		MinRedshift: e.cfg.Catalog.MinRedshift,
		SortBySNR:   e.cfg.Catalog.SortBySNR,
		MaxRows:     e.cfg.Catalog.MaxRows,
	})
	e.logger.Info("catalog loaded",
		logging.String(logging.FieldComponent, "catalog"),
		logging.String("path", e.cfg.Catalog.Path),
		logging.Int("rows", len(all)),
		logging.Int("selected", len(rows)),
	)
	if !retryFailed {
		return rows, nil
	}

	prev, ok, err := e.store.LatestRun(ctx, stage)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no previous %s run to retry", stage)
	}
	keys, err := e.store.FailedKeys(ctx, prev.ID)
	if err != nil {
		return nil, err
	}
	failed := make(map[catalog.Key]struct{}, len(keys))
	for _, k := range keys {
		failed[k] = struct{}{}
	}
	retry := rows[:0:0]
	for _, r := range rows {
		if _, ok := failed[r.Key()]; ok {
			retry = append(retry, r)
		}
	}
	return retry, nil
}

// record stores results and the summary. It ignores cancellation of ctx so an
// interrupted run is still recorded.
func (e *stageEnv) record(ctx context.Context, runID string, results []outcome.Result, summary outcome.Summary) error {
	ctx = context.WithoutCancel(ctx)
	if len(results) > 0 {
		if err := e.store.Record(ctx, runID, results); err != nil {
			return err
		}
	}
	return e.store.FinishRun(ctx, runID, summary)
}

func (e *stageEnv) runFetch(ctx context.Context, rows []catalog.Row) (outcome.Summary, error) {
	run, err := e.store.BeginRun(ctx, stageFetch, len(rows))
	if err != nil {
		return outcome.Summary{}, err
	}
	ctx = logging.WithRunID(ctx, run.ID)

	progress := newProgressReporter(e.out, stageFetch, len(rows), logging.WithContext(ctx, e.logger))
	fetcher := fetch.New(e.layout, &http.Client{}, fetch.Options{
		Workers:       e.cfg.Fetch.Workers,
		MinFileSize:   e.cfg.Fetch.MinFileSize,
		RetryAttempts: e.cfg.Fetch.RetryAttempts,
		RetryInterval: e.cfg.RetryInterval(),
		Timeout:       e.cfg.ArchiveTimeout(),
		UserAgent:     e.cfg.Archive.UserAgent,
		Revalidate:    e.cfg.Fetch.RevalidateCached,
		Logger:        e.logger,
		Observe:       progress.observe,
	})
	summary, results := fetcher.Run(ctx, rows)
	progress.finish()

	if err := e.record(ctx, run.ID, results, summary); err != nil {
		return summary, err
	}
	e.printSummary(stageFetch, summary)
	return summary, nil
}

func (e *stageEnv) runResample(ctx context.Context, rows []catalog.Row) (outcome.Summary, error) {
	grid, err := masterGrid(e.cfg)
	if err != nil {
		return outcome.Summary{}, err
	}
	run, err := e.store.BeginRun(ctx, stageResample, len(rows))
	if err != nil {
		return outcome.Summary{}, err
	}
	ctx = logging.WithRunID(ctx, run.ID)

	progress := newProgressReporter(e.out, stageResample, len(rows), logging.WithContext(ctx, e.logger))
	resampler, err := resample.New(e.layout, resample.Options{
		Workers: e.cfg.Resample.Workers,
		Grid:    grid,
		Logger:  e.logger,
		Observe: progress.observe,
	})
	if err != nil {
		return outcome.Summary{}, err
	}
	summary, results := resampler.Run(ctx, rows)
	progress.finish()

	if err := e.record(ctx, run.ID, results, summary); err != nil {
		return summary, err
	}
	e.printSummary(stageResample, summary)
	return summary, nil
}

func (e *stageEnv) runFilter(ctx context.Context) (outcome.Summary, error) {
	start := time.Now()
	grid, err := masterGrid(e.cfg)
	if err != nil {
		return outcome.Summary{}, err
	}
	batch, skipped, err := cleanse.LoadBatch(e.layout.InterpolatedDir(), grid)
	if err != nil {
		return outcome.Summary{}, err
	}
	filtered, report, err := cleanse.Filter(batch, e.cfg.Resample.DiscardFraction)
	if err != nil {
		return outcome.Summary{}, err
	}

	run, err := e.store.BeginRun(ctx, stageFilter, len(batch.Rows)+len(skipped))
	if err != nil {
		return outcome.Summary{}, err
	}
	logger := logging.WithContext(logging.WithStage(logging.WithRunID(ctx, run.ID), stageFilter), e.logger)
	for _, s := range skipped {
		logging.WarnWithContext(logger, "interpolated vector skipped", "filter_skipped",
			logging.Spectrum(s.Name),
			logging.String("reason", s.Reason),
			logging.String(logging.FieldErrorHint, "rerun resample for this spectrum with the current grid"),
			logging.String(logging.FieldImpact, "spectrum excluded from the processed batch"),
		)
	}

	summary := outcome.Summary{
		Total:   len(batch.Rows) + len(skipped),
		Failed:  len(skipped),
		Counts:  map[outcome.Kind]int{outcome.KindOK: len(batch.Rows), outcome.KindParse: len(skipped)},
	}
	if err := e.writeProcessed(logger, filtered); err != nil {
		summary.Failed = summary.Total
		summary.Elapsed = time.Since(start)
		if recErr := e.record(ctx, run.ID, nil, summary); recErr != nil {
			logger.Error("record filter run", logging.Error(recErr))
		}
		return summary, err
	}
	summary.Elapsed = time.Since(start)
	if err := e.record(ctx, run.ID, nil, summary); err != nil {
		return summary, err
	}
	logger.Info("filter finished",
		logging.Int("rows", report.Rows),
		logging.Int("columns_before", report.ColumnsBefore),
		logging.Int("columns_after", report.ColumnsAfter),
		logging.Int("undefined_before", report.UndefinedBefore),
		logging.Int("undefined_after", report.UndefinedAfter),
	)
	e.printFilterReport(report, summary)
	return summary, nil
}

// writeProcessed saves the filtered batch. An empty batch removes any earlier
// output instead.
func (e *stageEnv) writeProcessed(logger *slog.Logger, b cleanse.Batch) error {
	dir := e.layout.ProcessedDir()
	if len(b.Rows) > 0 {
		return cleanse.Save(dir, b)
	}
	removed, err := cleanse.Clear(dir)
	if err != nil {
		return err
	}
	if removed {
		logger.Info("removed processed output from an earlier run", logging.String("dir", dir))
	}
	return nil
}

func (e *stageEnv) printSummary(stage string, s outcome.Summary) {
	var b strings.Builder
	b.WriteString(e.printer.Sprintf("%s: %d rows in %s, %d failed", stage, s.Total, s.Elapsed.Round(time.Millisecond), s.Failed))
	if breakdown := failureBreakdown(e.printer, s.Counts); breakdown != "" {
		b.WriteString(" (" + breakdown + ")")
	}
	if cached := s.Counts[outcome.KindCached]; cached > 0 {
		b.WriteString(e.printer.Sprintf(", %d cached", cached))
	}
	if s.Bytes > 0 {
		b.WriteString(", " + humanize.IBytes(uint64(s.Bytes)) + " downloaded")
	}
	fmt.Fprintln(e.out, b.String())
}

func (e *stageEnv) printFilterReport(r cleanse.Report, s outcome.Summary) {
	fmt.Fprintln(e.out, e.printer.Sprintf(
		"filter: %d spectra in %s, %d of %d columns kept, %d undefined values remain, %d skipped",
		r.Rows, s.Elapsed.Round(time.Millisecond), r.ColumnsAfter, r.ColumnsBefore, r.UndefinedAfter, s.Failed,
	))
}

func failureBreakdown(p *message.Printer, counts map[outcome.Kind]int) string {
	var parts []string
	for _, kind := range outcome.Kinds {
		if !kind.Failed() || counts[kind] == 0 {
			continue
		}
		parts = append(parts, p.Sprintf("%s %d", kind, counts[kind]))
	}
	return strings.Join(parts, ", ")
}

// checkThreshold fails when the failure rate of s exceeds threshold.
func checkThreshold(stage string, s outcome.Summary, threshold float64) error {
	if rate := s.FailureRate(); rate > threshold {
		return fmt.Errorf("%s: %w (%.1f%% > %.1f%%)", stage, errFailureThreshold, rate*100, threshold*100)
	}
	return nil
}

// masterGrid builds the grid from grid_path or the start/stop/step triple.
func masterGrid(cfg *config.Config) (spectrum.Grid, error) {
	if cfg.Resample.GridPath != "" {
		return spectrum.LoadGrid(cfg.Resample.GridPath)
	}
	return spectrum.LinearGrid(cfg.Resample.GridStart, cfg.Resample.GridStop, cfg.Resample.GridStep)
}
