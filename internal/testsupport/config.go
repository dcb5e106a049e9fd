package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"specgrid/internal/catalog"
	"specgrid/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Retries are immediate and the worker pools small so tests stay fast.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataRoot = filepath.Join(base, "spectra")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Archive.BaseURL = "http://127.0.0.1:0"
	cfgVal.Fetch.Workers = 4
	cfgVal.Fetch.RetryIntervalMS = 0
	cfgVal.Resample.Workers = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithArchiveURL points the config at a fake archive.
func WithArchiveURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Archive.BaseURL = strings.TrimRight(url, "/")
	}
}

// WithGrid sets a linear master grid.
func WithGrid(start, stop, step float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Resample.GridPath = ""
		b.cfg.Resample.GridStart = start
		b.cfg.Resample.GridStop = stop
		b.cfg.Resample.GridStep = step
	}
}

// WithMinFileSize lowers the download size threshold.
func WithMinFileSize(size int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Fetch.MinFileSize = size
	}
}

// WithCatalog writes rows to a CSV under the base directory and points the
// config at it.
func WithCatalog(rows ...catalog.Row) ConfigOption {
	return func(b *configBuilder) {
		path := filepath.Join(b.baseDir, "catalog.csv")
		WriteCatalog(b.t, path, rows...)
		b.cfg.Catalog.Path = path
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataRoot)
}

// WriteConfigFile writes cfg as TOML beside the data root and returns its path.
func WriteConfigFile(t testing.TB, cfg *config.Config) string {
	t.Helper()

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(BaseDir(cfg), "specgrid.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
