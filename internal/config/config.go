package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the data tree root and log location.
type Paths struct {
	DataRoot string `toml:"data_root"`
	LogDir   string `toml:"log_dir"`
}

// Archive contains configuration for the remote spectrum archive.
type Archive struct {
	BaseURL        string `toml:"base_url"`
	Release        int    `toml:"release"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	UserAgent      string `toml:"user_agent"`
}

// Catalog contains the catalog location and the upstream selection rules.
type Catalog struct {
	Path        string  `toml:"path"`
	MinRedshift float64 `toml:"min_redshift"`
	// MaxRows keeps only the first N selected rows. Zero or negative keeps all.
	MaxRows   int  `toml:"max_rows"`
	SortBySNR bool `toml:"sort_by_snr"`
}

// Fetch contains configuration for the download stage.
type Fetch struct {
	Workers         int   `toml:"workers"`
	MinFileSize     int64 `toml:"min_file_size"`
	RetryAttempts   int   `toml:"retry_attempts"`
	RetryIntervalMS int   `toml:"retry_interval_ms"`
	// RevalidateCached re-checks the size of files already on disk and
	// refetches the ones below MinFileSize.
	RevalidateCached bool `toml:"revalidate_cached"`
}

// Resample contains configuration for the rest-frame resampling stage and
// the master wavelength grid.
type Resample struct {
	Workers int `toml:"workers"`
	// GridPath points at a .npy vector; when set it takes precedence over the
	// start/stop/step triple.
	GridPath        string  `toml:"grid_path"`
	GridStart       float64 `toml:"grid_start"`
	GridStop        float64 `toml:"grid_stop"`
	GridStep        float64 `toml:"grid_step"`
	DiscardFraction float64 `toml:"discard_fraction"`
}

// Run contains whole-run policy.
type Run struct {
	// FailThreshold is the failure rate above which a stage exits non-zero.
	// 1.0 never fails the run.
	FailThreshold float64 `toml:"fail_threshold"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for specgrid.
//
// Configuration sections by subsystem:
//   - Paths: data tree root and log directory
//   - Archive: remote archive host, data release and HTTP settings
//   - Catalog: catalog CSV and selection (redshift cut, SNR order, top-N)
//   - Fetch: download pool size, size threshold and retry budget
//   - Resample: resampling pool size, master grid, undefined-value tolerance
//   - Run: failure-rate policy for the process exit status
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Archive  Archive  `toml:"archive"`
	Catalog  Catalog  `toml:"catalog"`
	Fetch    Fetch    `toml:"fetch"`
	Resample Resample `toml:"resample"`
	Run      Run      `toml:"run"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/specgrid/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("specgrid.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data root and log directory.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataRoot, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ArchiveTimeout returns the per-request HTTP timeout.
func (c *Config) ArchiveTimeout() time.Duration {
	return time.Duration(c.Archive.TimeoutSeconds) * time.Second
}

// RetryInterval returns the pause between download attempts.
func (c *Config) RetryInterval() time.Duration {
	return time.Duration(c.Fetch.RetryIntervalMS) * time.Millisecond
}

// LedgerPath returns the location of the run ledger database.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.LogDir, "ledger.db")
}

// LogPath returns the location of the persistent log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "specgrid.log")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
