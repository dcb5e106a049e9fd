// Package fetch downloads one spectrum file per catalog row from the archive
// into the local data tree.
//
// Rows run on a bounded worker pool. A row whose file already exists is
// skipped without touching the network. Downloads stream into a temp file
// next to the destination and are renamed into place only once they reach
// the minimum size, so an undersized archive error page never lands at the
// final path. Undersized payloads are retried on a fixed interval; a 404 or a
// transport failure ends the row immediately. Every outcome is returned as an
// outcome.Result; a failing row never affects its siblings.
package fetch
