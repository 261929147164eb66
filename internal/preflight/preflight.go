package preflight

import (
	"context"

	"github.com/lilnasy/astro-optimize-pictures/internal/config"
	"github.com/lilnasy/astro-optimize-pictures/internal/ffmpeg"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every applicable check for cfg against the project found
// from dir.
func RunAll(ctx context.Context, cfg *config.Config, dir string) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("Cache directory", cfg.Paths.CacheDir),
		CheckProject(dir),
	}

	locator := ffmpeg.Locator{
		ConfiguredPath: cfg.FFmpeg.Path,
		CacheDir:       cfg.Paths.CacheDir,
	}
	ffmpegResult, binary := CheckFFmpeg(ctx, locator)
	if binary == "" && cfg.FFmpeg.Download {
		results = append(results, CheckDownloadSource(ctx, cfg.FFmpeg.DownloadURL, ""))
		return results
	}
	results = append(results, ffmpegResult)
	if binary != "" {
		results = append(results, CheckEncoders(ctx, binary, cfg.Codecs())...)
	}
	return results
}
