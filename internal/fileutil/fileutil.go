package fileutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// CreateSibling opens a fresh temp file in path's directory, creating the
// directory when needed. Renaming it onto path later is atomic on one filesystem.
func CreateSibling(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.part")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return f, nil
}

// Commit closes tmp and renames it onto path. The temp file is removed on failure.
func Commit(tmp *os.File, path string) error {
	name := tmp.Name()
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(name, 0o644); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// Discard closes and removes tmp.
func Discard(tmp *os.File) {
	if tmp == nil {
		return
	}
	_ = tmp.Close()
	_ = os.Remove(tmp.Name())
}

// WriteAtomic streams write's output to a sibling temp file and renames it
// onto path, so readers never observe a partially written file.
func WriteAtomic(path string, write func(w io.Writer) error) error {
	tmp, err := CreateSibling(path)
	if err != nil {
		return err
	}
	if err := write(tmp); err != nil {
		Discard(tmp)
		return err
	}
	return Commit(tmp, path)
}

// Size returns the size of a regular file at path. ok is false when the path
// does not exist; other stat failures are returned as errors.
func Size(path string) (size int64, ok bool, err error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if !info.Mode().IsRegular() {
		return 0, false, fmt.Errorf("%s is not a regular file", path)
	}
	return info.Size(), true, nil
}

// RemoveIfExists deletes path, ignoring a missing file.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
