// Package resample converts fetched spectrum files into rest-frame flux
// vectors on the master wavelength grid.
//
// For every row the resampler writes two artifacts, each suffixed with the
// row metadata (plate, mjd, fiberid, redshift, snr): the raw flux as stored in
// the file, and the flux interpolated onto the grid. Artifacts are replaced
// atomically on reprocessing.
package resample

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"specgrid/internal/catalog"
	"specgrid/internal/layout"
	"specgrid/internal/logging"
	"specgrid/internal/outcome"
	"specgrid/internal/pool"
	"specgrid/internal/spectrum"
)

// Reader loads a spectrum file.
type Reader func(path string) (spectrum.Spectrum, error)

// Options configures a Resampler.
type Options struct {
	Workers int
	Grid    spectrum.Grid
	// Reader defaults to spectrum.ReadFITS.
	Reader  Reader
	Logger  *slog.Logger
	Observe func(done, total int, r outcome.Result)
}

// Resampler processes fetched rows.
type Resampler struct {
	layout layout.Layout
	opts   Options
	logger *slog.Logger
}

// New validates the grid and constructs a Resampler.
func New(l layout.Layout, opts Options) (*Resampler, error) {
	if err := opts.Grid.Validate(); err != nil {
		return nil, fmt.Errorf("resampler grid: %w", err)
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Reader == nil {
		opts.Reader = spectrum.ReadFITS
	}
	return &Resampler{
		layout: l,
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "resampler"),
	}, nil
}

// Run processes every row and returns per-row results in input order with
// their aggregate.
func (r *Resampler) Run(ctx context.Context, rows []catalog.Row) (outcome.Summary, []outcome.Result) {
	start := time.Now()
	ctx = logging.WithStage(ctx, "resample")
	logging.WithContext(ctx, r.logger).Info("resample started",
		logging.Int("rows", len(rows)),
		logging.Int("workers", r.opts.Workers),
		logging.Int("grid_points", r.opts.Grid.Len()),
	)

	results := pool.Run(ctx, rows, r.opts.Workers, func(ctx context.Context, _ int, row catalog.Row) outcome.Result {
		return r.ProcessOne(ctx, row)
	}, r.opts.Observe)

	for i, res := range results {
		if res.Kind == "" {
			results[i] = outcome.Result{
				Key:  rows[i].Key(),
				Kind: outcome.KindIO,
				Err:  outcome.Wrap(outcome.ErrIO, "resample", "not started", context.Cause(ctx)),
			}
		}
	}

	summary := outcome.Summarize(results, time.Since(start))
	logging.WithContext(ctx, r.logger).Info("resample finished",
		logging.Int("rows", summary.Total),
		logging.Int("failed", summary.Failed),
		logging.Int("missing", summary.Counts[outcome.KindMissing]),
		logging.Int("parse_errors", summary.Counts[outcome.KindParse]),
		logging.Duration("elapsed", summary.Elapsed),
	)
	return summary, results
}

// ProcessOne resamples a single row.
func (r *Resampler) ProcessOne(ctx context.Context, row catalog.Row) outcome.Result {
	start := time.Now()
	key := row.Key()
	logger := logging.WithContext(logging.WithSpectrum(ctx, key.Name()), r.logger)

	err := r.process(row)
	res := outcome.FromError(key, err)
	res.Attempts = 1
	res.Duration = time.Since(start)
	if res.Failed() {
		logging.WarnWithContext(logger, "resample failed", "resample_"+string(res.Kind),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, hint(res.Kind)),
		)
		return res
	}
	logger.Debug("resample complete", logging.Duration("elapsed", res.Duration))
	return res
}

func (r *Resampler) process(row catalog.Row) error {
	key := row.Key()
	path := r.layout.FITSPath(key)

	spec, err := r.opts.Reader(path)
	if err != nil {
		if errors.Is(err, outcome.ErrMissing) || errors.Is(err, outcome.ErrParse) || errors.Is(err, outcome.ErrIO) {
			return err
		}
		return outcome.Wrap(outcome.ErrParse, "read", path, err)
	}

	interpolated, err := spectrum.Resample(spec, row.Redshift(), r.opts.Grid)
	if err != nil {
		return outcome.Wrap(outcome.ErrParse, "resample", path, err)
	}

	if err := spectrum.SaveVector(r.layout.RawPath(key), spectrum.WithMetadata(spec.Flux, row)); err != nil {
		return outcome.Wrap(outcome.ErrIO, "save raw", r.layout.RawPath(key), err)
	}
	if err := spectrum.SaveVector(r.layout.InterpolatedPath(key), spectrum.WithMetadata(interpolated, row)); err != nil {
		return outcome.Wrap(outcome.ErrIO, "save interpolated", r.layout.InterpolatedPath(key), err)
	}
	return nil
}

func hint(kind outcome.Kind) string {
	switch kind {
	case outcome.KindMissing:
		return "run fetch first or check data_root"
	case outcome.KindParse:
		return "file is not a valid spectrum; delete it and fetch again"
	case outcome.KindIO:
		return "check free space and permissions under data_root"
	default:
		return "check logs for details"
	}
}
