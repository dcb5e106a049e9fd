package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateArchive(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	if err := c.validateResample(); err != nil {
		return err
	}
	if err := c.validateRun(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateArchive() error {
	parsed, err := url.Parse(c.Archive.BaseURL)
	if err != nil {
		return fmt.Errorf("archive.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("archive.base_url must be an http(s) URL, got %q", c.Archive.BaseURL)
	}
	if c.Archive.Release <= 0 {
		return errors.New("archive.release must be positive")
	}
	return nil
}

func (c *Config) validateCatalog() error {
	if c.Catalog.MinRedshift < 0 {
		return errors.New("catalog.min_redshift must be >= 0")
	}
	return nil
}

func (c *Config) validateFetch() error {
	if err := ensurePositiveMap(map[string]int{
		"fetch.workers":       c.Fetch.Workers,
		"fetch.min_file_size": int(c.Fetch.MinFileSize),
	}); err != nil {
		return err
	}
	if c.Fetch.RetryAttempts < 0 {
		return errors.New("fetch.retry_attempts must be >= 0")
	}
	if c.Fetch.RetryIntervalMS < 0 {
		return errors.New("fetch.retry_interval_ms must be >= 0")
	}
	return nil
}

func (c *Config) validateResample() error {
	if c.Resample.Workers <= 0 {
		return errors.New("resample.workers must be positive")
	}
	if !(c.Resample.DiscardFraction >= 0 && c.Resample.DiscardFraction <= 1) {
		return errors.New("resample.discard_fraction must be between 0 and 1")
	}
	if strings.TrimSpace(c.Resample.GridPath) != "" {
		return nil
	}
	if c.Resample.GridStart <= 0 {
		return errors.New("resample.grid_start must be positive")
	}
	if c.Resample.GridStop <= c.Resample.GridStart {
		return errors.New("resample.grid_stop must be greater than resample.grid_start")
	}
	if c.Resample.GridStep <= 0 {
		return errors.New("resample.grid_step must be positive")
	}
	return nil
}

func (c *Config) validateRun() error {
	if c.Run.FailThreshold < 0 || c.Run.FailThreshold > 1 {
		return errors.New("run.fail_threshold must be between 0 and 1")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
