package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeArchive()
	if err := c.normalizeCatalog(); err != nil {
		return err
	}
	if err := c.normalizeResample(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("SPECGRID_DATA_ROOT"); ok && strings.TrimSpace(value) != "" {
		c.Paths.DataRoot = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.DataRoot) == "" {
		c.Paths.DataRoot = defaultDataRoot
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	var err error
	if c.Paths.DataRoot, err = expandPath(strings.TrimSpace(c.Paths.DataRoot)); err != nil {
		return fmt.Errorf("paths.data_root: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeArchive() {
	if value, ok := os.LookupEnv("SPECGRID_ARCHIVE_URL"); ok && strings.TrimSpace(value) != "" {
		c.Archive.BaseURL = value
	}
	c.Archive.BaseURL = strings.TrimRight(strings.TrimSpace(c.Archive.BaseURL), "/")
	if c.Archive.BaseURL == "" {
		c.Archive.BaseURL = defaultArchiveBaseURL
	}
	c.Archive.UserAgent = strings.TrimSpace(c.Archive.UserAgent)
	if c.Archive.UserAgent == "" {
		c.Archive.UserAgent = defaultArchiveUserAgent
	}
	if c.Archive.TimeoutSeconds <= 0 {
		c.Archive.TimeoutSeconds = defaultArchiveTimeout
	}
}

func (c *Config) normalizeCatalog() error {
	if c.Catalog.Path == "" {
		if value, ok := os.LookupEnv("SPECGRID_CATALOG"); ok {
			c.Catalog.Path = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.Catalog.Path) == "" {
		c.Catalog.Path = ""
		return nil
	}
	var err error
	if c.Catalog.Path, err = expandPath(strings.TrimSpace(c.Catalog.Path)); err != nil {
		return fmt.Errorf("catalog.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeResample() error {
	c.Resample.GridPath = strings.TrimSpace(c.Resample.GridPath)
	if c.Resample.GridPath == "" {
		return nil
	}
	var err error
	if c.Resample.GridPath, err = expandPath(c.Resample.GridPath); err != nil {
		return fmt.Errorf("resample.grid_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
