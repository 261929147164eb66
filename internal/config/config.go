package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directories owned by the optimizer itself.
type Paths struct {
	LogDir   string `toml:"log_dir"`
	CacheDir string `toml:"cache_dir"`
}

// Project describes where generated files land inside an Astro project.
type Project struct {
	PackageName     string `toml:"package_name"`
	OptimizedFolder string `toml:"optimized_folder"`
}

// FFmpeg contains configuration for locating and driving ffmpeg.
type FFmpeg struct {
	Path            string   `toml:"path"`
	Download        bool     `toml:"download"`
	DownloadURL     string   `toml:"download_url"`
	DownloadTimeout int      `toml:"download_timeout"`
	ErrorMarkers    []string `toml:"error_markers"`
}

// Width is a candidate output width.
type Width struct {
	Width   int  `toml:"width"`
	Enabled bool `toml:"enabled"`
}

// FormatSettings holds the encoder for one output format and the bounds of
// its quality scale.
type FormatSettings struct {
	Enabled bool   `toml:"enabled"`
	Codec   string `toml:"codec"`
	Quality int    `toml:"quality"`
	Minimum int    `toml:"minimum"`
	Maximum int    `toml:"maximum"`
}

// Formats groups the per-format encoder settings.
type Formats struct {
	JPEG FormatSettings `toml:"jpeg"`
	WebP FormatSettings `toml:"webp"`
	AVIF FormatSettings `toml:"avif"`
}

// Preview configures the inline blur-up placeholder.
type Preview struct {
	Format  string `toml:"format"`
	Codec   string `toml:"codec"`
	Quality int    `toml:"quality"`
	Area    int    `toml:"area"`
}

// Transcode contains the output matrix offered for every image.
type Transcode struct {
	Widths    []Width `toml:"widths"`
	Formats   Formats `toml:"formats"`
	Preview   Preview `toml:"preview"`
	MinHeight int     `toml:"min_height"`
}

// Workers sizes the transcode pool. Concurrency, when positive, overrides the
// computed size.
type Workers struct {
	Divisor            int `toml:"divisor"`
	MemoryPerWorkerMiB int `toml:"memory_per_worker_mib"`
	Concurrency        int `toml:"concurrency"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Ledger configures the run history database.
type Ledger struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Metrics configures the Prometheus textfile export.
type Metrics struct {
	Textfile string `toml:"textfile"`
}

// Watch configures watch mode.
type Watch struct {
	DebounceMillis int `toml:"debounce_ms"`
}

// Config encapsulates all configuration values for the optimizer.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Project   Project   `toml:"project"`
	FFmpeg    FFmpeg    `toml:"ffmpeg"`
	Transcode Transcode `toml:"transcode"`
	Workers   Workers   `toml:"workers"`
	Logging   Logging   `toml:"logging"`
	Ledger    Ledger    `toml:"ledger"`
	Metrics   Metrics   `toml:"metrics"`
	Watch     Watch     `toml:"watch"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
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

		decoder := toml.NewDecoder(file).DisallowUnknownFields()
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

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigName)
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

// EnsureDirectories creates the log and cache directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.CacheDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Ledger.Enabled {
		if err := os.MkdirAll(filepath.Dir(c.Ledger.Path), 0o755); err != nil {
			return fmt.Errorf("create ledger directory: %w", err)
		}
	}
	return nil
}

// RunLogDir is the parent of per-run failure transcripts.
func (c *Config) RunLogDir() string {
	return filepath.Join(c.Paths.LogDir, "runs")
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

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, appName)
	}
	return "~/.cache/" + appName
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
