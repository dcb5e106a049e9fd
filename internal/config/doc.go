// Package config loads, normalizes, and validates specgrid configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SPECGRID_DATA_ROOT and SPECGRID_CATALOG. The Config type centralizes every
// knob the fetch, resample, and filter stages need, so the data root, archive
// location, pool sizes, and master grid are resolved in one pass and then
// passed to each component explicitly.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
