package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/lilnasy/astro-optimize-pictures/internal/plan"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeFFmpeg(); err != nil {
		return err
	}
	c.normalizeTranscode()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir()
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Ledger.Path) == "" {
		c.Ledger.Path = defaultLedgerPath
	}
	if c.Ledger.Path, err = expandPath(c.Ledger.Path); err != nil {
		return fmt.Errorf("ledger.path: %w", err)
	}
	if c.Metrics.Textfile = strings.TrimSpace(c.Metrics.Textfile); c.Metrics.Textfile != "" {
		if c.Metrics.Textfile, err = expandPath(c.Metrics.Textfile); err != nil {
			return fmt.Errorf("metrics.textfile: %w", err)
		}
	}
	c.Project.PackageName = strings.TrimSpace(c.Project.PackageName)
	if c.Project.PackageName == "" {
		c.Project.PackageName = defaultPackageName
	}
	c.Project.OptimizedFolder = strings.TrimSpace(c.Project.OptimizedFolder)
	if c.Project.OptimizedFolder == "" {
		c.Project.OptimizedFolder = defaultOptimizedFolder
	}
	return nil
}

func (c *Config) normalizeFFmpeg() error {
	if value, ok := os.LookupEnv("FFMPEG_PATH"); ok && strings.TrimSpace(value) != "" {
		c.FFmpeg.Path = value
	}
	c.FFmpeg.Path = strings.TrimSpace(c.FFmpeg.Path)
	// Bare command names are resolved through PATH later.
	if strings.ContainsAny(c.FFmpeg.Path, `/\`) || strings.HasPrefix(c.FFmpeg.Path, "~") {
		expanded, err := expandPath(c.FFmpeg.Path)
		if err != nil {
			return fmt.Errorf("ffmpeg.path: %w", err)
		}
		c.FFmpeg.Path = expanded
	}
	c.FFmpeg.DownloadURL = strings.TrimSpace(c.FFmpeg.DownloadURL)
	if c.FFmpeg.DownloadTimeout == 0 {
		c.FFmpeg.DownloadTimeout = defaultDownloadTimeout
	}
	markers := c.FFmpeg.ErrorMarkers[:0]
	for _, marker := range c.FFmpeg.ErrorMarkers {
		if marker != "" {
			markers = append(markers, marker)
		}
	}
	c.FFmpeg.ErrorMarkers = markers
	return nil
}

func (c *Config) normalizeTranscode() {
	for _, f := range []*FormatSettings{&c.Transcode.Formats.JPEG, &c.Transcode.Formats.WebP, &c.Transcode.Formats.AVIF} {
		f.Codec = strings.TrimSpace(f.Codec)
	}
	c.Transcode.Preview.Format = strings.ToLower(strings.TrimSpace(c.Transcode.Preview.Format))
	if c.Transcode.Preview.Format == "" {
		c.Transcode.Preview.Format = string(plan.WebP)
	} else if f, err := plan.ParseFormat(c.Transcode.Preview.Format); err == nil {
		c.Transcode.Preview.Format = string(f)
	}
	c.Transcode.Preview.Codec = strings.TrimSpace(c.Transcode.Preview.Codec)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
