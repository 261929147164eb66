package config

import "github.com/lilnasy/astro-optimize-pictures/internal/plan"

const (
	appName                = "astro-optimize-pictures"
	defaultConfigPath      = "~/.config/" + appName + "/config.toml"
	projectConfigName      = "optimize-pictures.toml"
	defaultLogDir          = "~/.local/share/" + appName + "/logs"
	defaultLedgerPath      = "~/.local/share/" + appName + "/history.db"
	defaultPackageName     = "astro-optimize-images"
	defaultOptimizedFolder = "_optimized_images"
	defaultDownloadTimeout = 300
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	defaultRetentionDays   = 30
	defaultWorkerDivisor   = 2
	defaultWatchDebounceMS = 500
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	opts := plan.DefaultOptions()
	widths := make([]Width, 0, len(opts.Widths))
	for _, w := range opts.Widths {
		widths = append(widths, Width{Width: w.Width, Enabled: w.Enabled})
	}
	format := func(f plan.Format) FormatSettings {
		o := opts.Formats[f]
		return FormatSettings{Enabled: o.Enabled, Codec: o.Codec, Quality: o.Quality, Minimum: o.Minimum, Maximum: o.Maximum}
	}

	return Config{
		Paths: Paths{
			LogDir:   defaultLogDir,
			CacheDir: defaultCacheDir(),
		},
		Project: Project{
			PackageName:     defaultPackageName,
			OptimizedFolder: defaultOptimizedFolder,
		},
		FFmpeg: FFmpeg{
			Download:        true,
			DownloadTimeout: defaultDownloadTimeout,
		},
		Transcode: Transcode{
			Widths: widths,
			Formats: Formats{
				JPEG: format(plan.JPEG),
				WebP: format(plan.WebP),
				AVIF: format(plan.AVIF),
			},
			Preview: Preview{
				Format:  string(opts.Preview.Format),
				Codec:   opts.Preview.Codec,
				Quality: opts.Preview.Quality,
				Area:    opts.Preview.Area,
			},
			MinHeight: opts.MinHeight,
		},
		Workers: Workers{
			Divisor: defaultWorkerDivisor,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultRetentionDays,
		},
		Ledger: Ledger{
			Enabled: true,
			Path:    defaultLedgerPath,
		},
		Watch: Watch{
			DebounceMillis: defaultWatchDebounceMS,
		},
	}
}
