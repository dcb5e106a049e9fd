package main

import (
	"testing"
)

func TestReportListsRunsAndFailures(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"report"}, env.configPath)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	requireContains(t, out, "No runs recorded")

	if _, _, err := runCLI(t, []string{"fetch"}, env.configPath); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	out, _, err = runCLI(t, []string{"report", "--limit", "5"}, env.configPath)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	requireContains(t, out, "fetch")
	requireContains(t, out, "33.3%")

	store := openTestLedger(t, env)
	run, ok, err := store.LatestRun(t.Context(), stageFetch)
	if err != nil || !ok {
		t.Fatalf("LatestRun: ok=%v err=%v", ok, err)
	}

	out, _, err = runCLI(t, []string{"report", "--run", shortID(run.ID)}, env.configPath)
	if err != nil {
		t.Fatalf("report --run: %v", err)
	}
	requireContains(t, out, run.ID)
	requireContains(t, out, "missing=1")
	requireContains(t, out, env.rows[2].Name())

	if _, _, err := runCLI(t, []string{"report", "--run", "does-not-exist"}, env.configPath); err == nil {
		t.Fatal("expected error for unknown run")
	}
}
