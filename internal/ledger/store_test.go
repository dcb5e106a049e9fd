package ledger_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"specgrid/internal/catalog"
	"specgrid/internal/ledger"
	"specgrid/internal/outcome"
	"specgrid/internal/testsupport"
)

func key(fiber int) catalog.Key {
	return catalog.Key{Plate: 266, MJD: 51602, FiberID: fiber, Run2D: "26"}
}

func TestRunLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	run, err := store.BeginRun(ctx, "fetch", 3)
	if err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	if run.ID == "" || run.Status != ledger.RunRunning {
		t.Fatalf("unexpected run: %+v", run)
	}

	results := []outcome.Result{
		{Key: key(1), Kind: outcome.KindOK, Attempts: 1, Bytes: 180000, Duration: 1500 * time.Millisecond},
		{Key: key(2), Kind: outcome.KindUndersized, Attempts: 11, Err: outcome.Wrap(outcome.ErrUndersized, "fetch", "512 bytes", nil)},
		{Key: key(3), Kind: outcome.KindCached},
	}
	if err := store.Record(ctx, run.ID, results); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	summary := outcome.Summarize(results, 4*time.Second)
	if err := store.FinishRun(ctx, run.ID, summary); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	got, ok, err := store.GetRun(ctx, run.ID)
	if err != nil || !ok {
		t.Fatalf("GetRun = %v, %v", ok, err)
	}
	if got.Status != ledger.RunFinished || got.Total != 3 || got.Failed != 1 || got.Bytes != 180000 {
		t.Fatalf("unexpected finished run: %+v", got)
	}
	if got.Elapsed != 4*time.Second || got.FinishedAt.IsZero() {
		t.Fatalf("unexpected timing: %+v", got)
	}

	failures, err := store.Failures(ctx, run.ID)
	if err != nil {
		t.Fatalf("Failures failed: %v", err)
	}
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure, got %+v", failures)
	}
	f := failures[0]
	if f.Key != key(2) || f.Kind != outcome.KindUndersized || f.Attempts != 11 || f.Message == "" {
		t.Fatalf("unexpected failure: %+v", f)
	}

	stats, err := store.Stats(ctx, run.ID)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[outcome.KindOK] != 1 || stats[outcome.KindCached] != 1 || stats[outcome.KindUndersized] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}
}

func TestRecordUpsertsByIdentity(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	run, err := store.BeginRun(ctx, "resample", 1)
	if err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	first := []outcome.Result{{Key: key(1), Kind: outcome.KindParse, Err: errors.New("bad header")}}
	second := []outcome.Result{{Key: key(1), Kind: outcome.KindOK}}
	if err := store.Record(ctx, run.ID, first); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := store.Record(ctx, run.ID, second); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	keys, err := store.FailedKeys(ctx, run.ID)
	if err != nil {
		t.Fatalf("FailedKeys failed: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("expected latest result to replace failure, got %v", keys)
	}
}

func TestRecordRejectsUnknownRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)

	err := store.Record(context.Background(), "no-such-run", []outcome.Result{{Key: key(1), Kind: outcome.KindOK}})
	if err == nil {
		t.Fatal("expected foreign key violation for unknown run")
	}
	if err := store.FinishRun(context.Background(), "no-such-run", outcome.Summary{}); err == nil {
		t.Fatal("expected error finishing unknown run")
	}
}

func TestRunsNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	var ids []string
	for _, stage := range []string{"fetch", "resample", "fetch"} {
		run, err := store.BeginRun(ctx, stage, 0)
		if err != nil {
			t.Fatalf("BeginRun failed: %v", err)
		}
		ids = append(ids, run.ID)
		time.Sleep(2 * time.Millisecond)
	}

	runs, err := store.Runs(ctx, 2)
	if err != nil {
		t.Fatalf("Runs failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != ids[2] || runs[1].ID != ids[1] {
		t.Fatalf("unexpected order: %+v", runs)
	}

	latest, ok, err := store.LatestRun(ctx, "fetch")
	if err != nil || !ok || latest.ID != ids[2] {
		t.Fatalf("LatestRun = %+v, %v, %v", latest, ok, err)
	}
	if _, ok, err := store.LatestRun(ctx, "filter"); ok || err != nil {
		t.Fatalf("expected no filter run, got ok=%v err=%v", ok, err)
	}
	if _, err := store.BeginRun(ctx, " ", 0); err == nil {
		t.Fatal("expected error for empty stage")
	}
}

func TestReopenKeepsDataAndChecksHealth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ledger.db")
	store, err := ledger.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	run, err := store.BeginRun(context.Background(), "fetch", 1)
	if err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	store, err = ledger.Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer store.Close()
	if _, ok, err := store.GetRun(context.Background(), run.ID); !ok || err != nil {
		t.Fatalf("expected run to survive reopen: ok=%v err=%v", ok, err)
	}
	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if health.SchemaVersion != 1 || health.Runs != 1 || health.Path != path {
		t.Fatalf("unexpected health: %+v", health)
	}
}

func TestOpenRejectsOtherSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	store, err := ledger.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 9"); err != nil {
		t.Fatalf("stamp version: %v", err)
	}
	_ = db.Close()

	if _, err := ledger.Open(path); !errors.Is(err, ledger.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
