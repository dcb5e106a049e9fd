package ledger

import (
	"context"
	"fmt"
	"time"

	"specgrid/internal/catalog"
	"specgrid/internal/outcome"
)

const outcomeColumns = "run_id, plate, mjd, fiberid, run2d, kind, message, attempts, bytes, duration_ms"

// Record stores results for runID in one transaction. A row recorded twice
// in the same run keeps the latest result.
func (s *Store) Record(ctx context.Context, runID string, results []outcome.Result) error {
	if len(results) == 0 {
		return nil
	}
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO outcomes (`+outcomeColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (run_id, plate, mjd, fiberid, run2d) DO UPDATE SET
				kind = excluded.kind,
				message = excluded.message,
				attempts = excluded.attempts,
				bytes = excluded.bytes,
				duration_ms = excluded.duration_ms`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range results {
			kind := r.Kind
			if kind == "" {
				kind = outcome.Classify(r.Err)
			}
			if _, err := stmt.ExecContext(ctx,
				runID, r.Key.Plate, r.Key.MJD, r.Key.FiberID, r.Key.Run2D,
				string(kind), r.Message(), r.Attempts, r.Bytes, r.Duration.Milliseconds(),
			); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("record outcomes: %w", err)
	}
	return nil
}

// Failures lists the failed rows of runID ordered by identity.
func (s *Store) Failures(ctx context.Context, runID string) ([]Outcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+outcomeColumns+` FROM outcomes
		WHERE run_id = ? AND kind NOT IN (?, ?)
		ORDER BY plate, mjd, fiberid, run2d`,
		runID, string(outcome.KindOK), string(outcome.KindCached),
	)
	if err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var (
			o          Outcome
			kind       string
			durationMS int64
		)
		if err := rows.Scan(
			&o.RunID,
			&o.Key.Plate,
			&o.Key.MJD,
			&o.Key.FiberID,
			&o.Key.Run2D,
			&kind,
			&o.Message,
			&o.Attempts,
			&o.Bytes,
			&durationMS,
		); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Kind = outcome.Kind(kind)
		o.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, o)
	}
	return out, rows.Err()
}

// FailedKeys returns the identities of the failed rows of runID.
func (s *Store) FailedKeys(ctx context.Context, runID string) ([]catalog.Key, error) {
	failures, err := s.Failures(ctx, runID)
	if err != nil {
		return nil, err
	}
	keys := make([]catalog.Key, 0, len(failures))
	for _, f := range failures {
		keys = append(keys, f.Key)
	}
	return keys, nil
}

// Stats returns a count of the outcomes of runID grouped by kind.
func (s *Store) Stats(ctx context.Context, runID string) (map[outcome.Kind]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(1) FROM outcomes WHERE run_id = ? GROUP BY kind`, runID)
	if err != nil {
		return nil, fmt.Errorf("ledger stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[outcome.Kind]int)
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		stats[outcome.Kind(kind)] = count
	}
	return stats, rows.Err()
}

// CheckHealth returns diagnostic information about the ledger database.
func (s *Store) CheckHealth(ctx context.Context) (Health, error) {
	health := Health{Path: s.path}
	version, err := s.schemaVersion(ctx)
	if err != nil {
		return health, err
	}
	health.SchemaVersion = version
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM runs`).Scan(&health.Runs); err != nil {
		return health, fmt.Errorf("count runs: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM outcomes`).Scan(&health.Outcomes); err != nil {
		return health, fmt.Errorf("count outcomes: %w", err)
	}
	return health, nil
}
