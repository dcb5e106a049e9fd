// Package ledger persists every stage run and its per-row outcomes in SQLite
// so failed rows can be listed after the process exits.
//
// The database lives at <log_dir>/ledger.db, runs in WAL mode, and retries
// briefly when another specgrid process holds the write lock. Schema changes
// bump schemaVersion (kept in PRAGMA user_version); an older database must be
// deleted.
package ledger
