package runlock_test

import (
	"errors"
	"path/filepath"
	"testing"

	"specgrid/internal/runlock"
)

func TestAcquireIsExclusive(t *testing.T) {
	root := filepath.Join(t.TempDir(), "spectra")

	first, err := runlock.Acquire(root)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if first.Path() != filepath.Join(root, runlock.FileName) {
		t.Fatalf("unexpected lock path %q", first.Path())
	}

	if _, err := runlock.Acquire(root); !errors.Is(err, runlock.ErrHeld) {
		t.Fatalf("second Acquire error = %v, want ErrHeld", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	again, err := runlock.Acquire(root)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	t.Cleanup(func() { _ = again.Release() })
}

func TestReleaseNil(t *testing.T) {
	var l *runlock.Lock
	if err := l.Release(); err != nil {
		t.Fatalf("nil Release: %v", err)
	}
}
