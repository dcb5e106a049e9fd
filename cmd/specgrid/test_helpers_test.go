package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"specgrid/internal/catalog"
	"specgrid/internal/config"
	"specgrid/internal/layout"
	"specgrid/internal/ledger"
	"specgrid/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	archive    *testsupport.Archive
	layout     layout.Layout
	rows       []catalog.Row
	configPath string
}

// setupCLITestEnv serves one FITS fixture per row except the last, which the
// archive reports as missing.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	t.Setenv("SPECGRID_DATA_ROOT", "")
	t.Setenv("SPECGRID_ARCHIVE_URL", "")
	t.Setenv("SPECGRID_CATALOG", "")

	rows := []catalog.Row{
		{Plate: 266, MJD: 51602, FiberID: 1, Run2D: "26", Z: 0.05, SNR: 12},
		{Plate: 266, MJD: 51602, FiberID: 2, Run2D: "26", Z: 0.08, SNR: 9},
		{Plate: 266, MJD: 51602, FiberID: 3, Run2D: "26", Z: 0.03, SNR: 4},
	}
	archive := testsupport.NewArchive(t)
	cfg := testsupport.NewConfig(t,
		testsupport.WithArchiveURL(archive.URL()),
		testsupport.WithMinFileSize(1000),
		testsupport.WithGrid(3000, 8000, 10),
		testsupport.WithCatalog(rows...),
	)

	l := layout.FromConfig(cfg)
	fixture := testsupport.SpectrumBytes(t, testsupport.DefaultSpectrum)
	for _, r := range rows[:len(rows)-1] {
		archive.Serve(l.RemotePath(r.Key()), fixture)
	}

	return &cliTestEnv{
		cfg:        cfg,
		archive:    archive,
		layout:     l,
		rows:       rows,
		configPath: testsupport.WriteConfigFile(t, cfg),
	}
}

func (e *cliTestEnv) processedPath(name string) string {
	return filepath.Join(e.layout.ProcessedDir(), name)
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func writeConfigFile(t *testing.T, env *cliTestEnv) string {
	t.Helper()
	return testsupport.WriteConfigFile(t, env.cfg)
}

func openTestLedger(t *testing.T, env *cliTestEnv) *ledger.Store {
	t.Helper()
	return testsupport.MustOpenLedger(t, env.cfg)
}
