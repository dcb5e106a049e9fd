// Package preflight provides readiness checks for the archive, the catalog,
// and the filesystem paths specgrid depends on.
//
// The CLI "specgrid status" command runs RunAll and renders each Result. The
// checks never modify anything; a missing data root is reported, not created.
package preflight
