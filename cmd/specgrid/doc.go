// Package main hosts the specgrid CLI entrypoint and command graph.
//
// The Cobra-based command tree drives the three pipeline stages (fetch,
// resample, filter) over the configured catalog, records every run in the
// ledger, and renders run reports and environment status. It centralizes
// configuration resolution, logger construction, and the data-root lock so
// subcommands only wire a stage to its inputs.
//
// Keep this package lean: stage behaviour lives in the internal packages.
package main
