package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"specgrid/internal/outcome"
)

const runColumns = "id, stage, status, total, failed, bytes, elapsed_ms, started_at, finished_at"

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run         Run
		status      string
		elapsedMS   int64
		startedRaw  sql.NullString
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&run.Stage,
		&status,
		&run.Total,
		&run.Failed,
		&run.Bytes,
		&elapsedMS,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return Run{}, err
	}
	run.Status = RunStatus(status)
	run.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	run.StartedAt = parseTime(startedRaw)
	run.FinishedAt = parseTime(finishedRaw)
	return run, nil
}

// BeginRun records the start of a stage run over total rows.
func (s *Store) BeginRun(ctx context.Context, stage string, total int) (Run, error) {
	stage = strings.TrimSpace(stage)
	if stage == "" {
		return Run{}, errors.New("begin run: stage required")
	}
	run := Run{
		ID:        uuid.NewString(),
		Stage:     stage,
		Status:    RunRunning,
		Total:     total,
		StartedAt: s.now().UTC(),
	}
	err := s.execWithRetry(ctx,
		`INSERT INTO runs (id, stage, status, total, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Stage, string(run.Status), run.Total, formatTime(run.StartedAt),
	)
	if err != nil {
		return Run{}, fmt.Errorf("begin run: %w", err)
	}
	return run, nil
}

// FinishRun stores the aggregate of a completed run.
func (s *Store) FinishRun(ctx context.Context, runID string, summary outcome.Summary) error {
	finished := s.now().UTC()
	var updated int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE runs SET status = ?, total = ?, failed = ?, bytes = ?, elapsed_ms = ?, finished_at = ? WHERE id = ?`,
			string(RunFinished), summary.Total, summary.Failed, summary.Bytes,
			summary.Elapsed.Milliseconds(), formatTime(finished), runID,
		)
		if err != nil {
			return err
		}
		updated, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if updated == 0 {
		return fmt.Errorf("finish run: unknown run %s", runID)
	}
	return nil
}

// GetRun fetches a run by identifier. A missing run returns (Run{}, false, nil).
func (s *Store) GetRun(ctx context.Context, runID string) (Run, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, fmt.Errorf("get run: %w", err)
	}
	return run, true, nil
}

// LatestRun returns the most recently started run of stage.
func (s *Store) LatestRun(ctx context.Context, stage string) (Run, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE stage = ? ORDER BY started_at DESC, rowid DESC LIMIT 1`,
		stage,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, fmt.Errorf("latest run: %w", err)
	}
	return run, true, nil
}

// Runs lists the most recent runs, newest first. limit <= 0 lists every run.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
