// Package logging assembles structured slog loggers and formatting helpers used
// across the specgrid stages.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context helpers so worker code can tag log lines with the run
// identifier, stage, and spectrum name without threading attributes by hand.
// A no-op logger is provided for tests and for callers that pass nil.
package logging
