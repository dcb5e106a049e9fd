package preflight

import (
	"context"
	"fmt"
	"os"

	"specgrid/internal/ledger"
)

// CheckLedger opens the run ledger when it exists and reports its contents.
// An absent ledger passes: the first recorded run creates it.
func CheckLedger(ctx context.Context, path string) Result {
	const name = "Ledger"

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (not created yet)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}

	store, err := ledger.Open(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	defer store.Close()

	health, err := store.CheckHealth(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("%s (schema v%d, %d runs, %d outcomes)", health.Path, health.SchemaVersion, health.Runs, health.Outcomes),
	}
}
