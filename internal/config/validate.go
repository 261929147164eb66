package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lilnasy/astro-optimize-pictures/internal/plan"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateProject(); err != nil {
		return err
	}
	if err := c.validateFFmpeg(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Watch.DebounceMillis < 0 {
		return errors.New("watch.debounce_ms must be non-negative")
	}
	return nil
}

func (c *Config) validateProject() error {
	if strings.ContainsAny(c.Project.OptimizedFolder, `/\`) || c.Project.OptimizedFolder == ".." {
		return fmt.Errorf("project.optimized_folder must be a single directory name, got %q", c.Project.OptimizedFolder)
	}
	return nil
}

func (c *Config) validateFFmpeg() error {
	if c.FFmpeg.DownloadTimeout < 0 {
		return errors.New("ffmpeg.download_timeout must be non-negative")
	}
	return nil
}

func (c *Config) validateTranscode() error {
	if len(c.Transcode.Widths) == 0 {
		return errors.New("transcode.widths must list at least one width")
	}
	if _, err := plan.ParseFormat(c.Transcode.Preview.Format); err != nil {
		return fmt.Errorf("transcode.preview.format: %w", err)
	}
	if err := c.TranscodeOptions().Validate(); err != nil {
		return fmt.Errorf("transcode: %w", err)
	}
	return nil
}

func (c *Config) validateWorkers() error {
	if c.Workers.Divisor < 1 {
		return errors.New("workers.divisor must be at least 1")
	}
	if c.Workers.MemoryPerWorkerMiB < 0 {
		return errors.New("workers.memory_per_worker_mib must be non-negative")
	}
	if c.Workers.Concurrency < 0 {
		return errors.New("workers.concurrency must be non-negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be non-negative")
	}
	return nil
}
