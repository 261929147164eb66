package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lilnasy/astro-optimize-pictures/internal/config"
	"github.com/lilnasy/astro-optimize-pictures/internal/ffmpeg"
	"github.com/lilnasy/astro-optimize-pictures/internal/ledger"
	"github.com/lilnasy/astro-optimize-pictures/internal/logging"
	"github.com/lilnasy/astro-optimize-pictures/internal/manifest"
	"github.com/lilnasy/astro-optimize-pictures/internal/metrics"
	"github.com/lilnasy/astro-optimize-pictures/internal/pipeline"
	"github.com/lilnasy/astro-optimize-pictures/internal/plan"
	"github.com/lilnasy/astro-optimize-pictures/internal/project"
	"github.com/lilnasy/astro-optimize-pictures/internal/watch"
	"github.com/lilnasy/astro-optimize-pictures/internal/workers"
)

type optimizeFlags struct {
	concurrency     int
	widths          []int
	formats         []string
	include         []string
	dryRun          bool
	watch           bool
	quiet           bool
	metricsTextfile string
}

func bindOptimizeFlags(cmd *cobra.Command, flags *optimizeFlags) {
	f := cmd.Flags()
	f.IntVar(&flags.concurrency, "concurrency", 0, "Number of images transcoded at once (default: computed from CPUs and memory)")
	f.IntSliceVar(&flags.widths, "widths", nil, "Output widths, replacing the enabled widths from configuration")
	f.StringSliceVar(&flags.formats, "formats", nil, "Output formats (avif, webp, jpeg), replacing the enabled formats")
	f.StringSliceVar(&flags.include, "include", nil, "Only optimize images matching these glob patterns")
	f.BoolVar(&flags.dryRun, "dry-run", false, "Show which outputs would be transcoded without running ffmpeg")
	f.BoolVar(&flags.watch, "watch", false, "Keep running and re-optimize when source images change")
	f.BoolVarP(&flags.quiet, "quiet", "q", false, "Skip the per-image summary tables")
	f.StringVar(&flags.metricsTextfile, "metrics-textfile", "", "Write Prometheus metrics for the run to this file")
}

func newOptimizeCommand(ctx *commandContext) *cobra.Command {
	var flags optimizeFlags
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Transcode project images and regenerate the manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptimize(cmd, ctx, flags)
		},
	}
	bindOptimizeFlags(cmd, &flags)
	return cmd
}

func runOptimize(cmd *cobra.Command, ctx *commandContext, flags optimizeFlags) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	dir, err := ctx.workDir()
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}
	formats := make([]plan.Format, 0, len(flags.formats))
	for _, value := range flags.formats {
		f, err := plan.ParseFormat(value)
		if err != nil {
			return err
		}
		formats = append(formats, f)
	}

	o := &optimizer{
		cfg:      cfg,
		logger:   logger,
		dir:      dir,
		flags:    flags,
		formats:  formats,
		out:      cmd.OutOrStdout(),
		errOut:   cmd.ErrOrStderr(),
		executor: ctx.executor,
	}
	if !flags.watch {
		return o.once(cmd.Context())
	}
	return o.watch(cmd.Context())
}

// optimizer performs one or more optimization passes over a project.
type optimizer struct {
	cfg      *config.Config
	logger   *slog.Logger
	dir      string
	flags    optimizeFlags
	formats  []plan.Format
	out      io.Writer
	errOut   io.Writer
	executor ffmpeg.Executor
}

func (o *optimizer) watch(ctx context.Context) error {
	if err := o.once(ctx); err != nil {
		return err
	}
	details, err := project.Locate(o.dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(o.out, "Watching %s for changes. Press Ctrl+C to stop.\n", details.SrcDir)
	return watch.Run(ctx, watch.Options{
		Root:       details.SrcDir,
		SkipDirs:   []string{o.cfg.Project.OptimizedFolder},
		Extensions: project.ImageExtensions,
		Debounce:   time.Duration(o.cfg.Watch.DebounceMillis) * time.Millisecond,
		Logger:     o.logger,
	}, o.once)
}

// once runs a full pass. Errors that were already explained to the user are
// wrapped in *reportedError.
func (o *optimizer) once(ctx context.Context) error {
	runID := uuid.NewString()
	logger := logging.WithRunID(o.logger, runID)
	sinks := newTerminalSinks(o.out, o.errOut, o.dir, o.flags.quiet)
	fatal := func(err error) error {
		sinks.ReportError(err)
		return &reportedError{err: err}
	}

	details, err := project.Locate(o.dir)
	if err != nil {
		return fatal(err)
	}
	pkg := o.cfg.Project.PackageName
	manifestPath := details.ManifestPath(pkg)

	unlock, err := acquireRunLock(details.ManifestDir(pkg))
	if err != nil {
		return err
	}
	defer unlock()

	images, err := project.Images(details.SrcDir, project.ScanOptions{
		SkipDirs: []string{o.cfg.Project.OptimizedFolder},
		Include:  o.flags.include,
	})
	if err != nil {
		return fmt.Errorf("discover images: %w", err)
	}
	logger.Info("images discovered",
		logging.String("src_dir", details.SrcDir),
		logging.Int("images", len(images)),
	)

	binary, err := ffmpeg.Locator{
		ConfiguredPath: o.cfg.FFmpeg.Path,
		CacheDir:       o.cfg.Paths.CacheDir,
		AllowDownload:  o.cfg.FFmpeg.Download,
		BaseURL:        o.cfg.FFmpeg.DownloadURL,
		Timeout:        time.Duration(o.cfg.FFmpeg.DownloadTimeout) * time.Second,
		Logger:         logger,
	}.Locate(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fatal(err)
	}
	client, err := ffmpeg.New(binary,
		ffmpeg.WithExecutor(o.executor),
		ffmpeg.WithFatalMarkers(o.cfg.FFmpeg.ErrorMarkers),
		ffmpeg.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	override := o.flags.concurrency
	if override <= 0 {
		override = o.cfg.Workers.Concurrency
	}
	poolSize := workers.Count(workers.System, workers.Sizing{
		Divisor:            o.cfg.Workers.Divisor,
		MemoryPerWorkerMiB: o.cfg.Workers.MemoryPerWorkerMiB,
		Override:           override,
	})

	report, runErr := pipeline.Run(ctx, pipeline.Options{
		Client: client,
		Layout: plan.Layout{
			SourceRoot: details.SrcDir,
			OutputDir:  details.OutputDir(pkg, o.cfg.Project.OptimizedFolder),
		},
		Workers:       poolSize,
		FailureLogDir: o.cfg.RunLogDir(),
		RunID:         runID,
		DryRun:        o.flags.dryRun,
		Logger:        logger,
		Sinks:         sinks,
	}, images, o.cfg.TranscodeOptions(), o.ready)
	sinks.board.finish()
	if runErr != nil {
		return runErr
	}

	if o.flags.dryRun {
		o.printPlanned(report, sinks)
	} else {
		m := manifest.Build(manifest.Options{
			SrcDir: details.SrcDir,
			Dir:    details.ManifestDir(pkg),
			Logger: logger,
		}, report.Optimizations)
		if err := m.Write(manifestPath); err != nil {
			return fmt.Errorf("write manifest: %w", err)
		}
		logger.Info("manifest written",
			logging.String("path", manifestPath),
			logging.Int("entries", len(m.Entries)),
			logging.String(logging.FieldEventType, "manifest_written"),
		)
	}

	o.record(ctx, logger, report, details.Root, manifestPath)
	o.printTotals(report, sinks)
	return nil
}

// ready applies command-line overrides to the configured selection.
func (o *optimizer) ready(_ context.Context, images []string, opts plan.Options) (plan.Selection, error) {
	sel, err := opts.Override(opts.Select(images), o.flags.widths, o.formats)
	if err != nil {
		return plan.Selection{}, err
	}
	if len(sel.Images) == 0 {
		fmt.Fprintln(o.out, "No images found.")
		return sel, nil
	}
	folders := make(map[string]struct{})
	for _, image := range sel.Images {
		folders[filepath.Dir(image)] = struct{}{}
	}
	fmt.Fprintf(o.out, "Ready to optimize %d images in %d folders.\n", len(sel.Images), len(folders))
	return sel, nil
}

// record writes the run to the ledger and the metrics textfile. Failures
// here are logged but never fail the run.
func (o *optimizer) record(ctx context.Context, logger *slog.Logger, report *pipeline.Report, root, manifestPath string) {
	if o.cfg.Ledger.Enabled {
		store, err := ledger.Open(o.cfg.Ledger.Path)
		if err == nil {
			written := manifestPath
			if o.flags.dryRun {
				written = ""
			}
			err = store.RecordRun(ctx, report, root, written, o.flags.dryRun)
			_ = store.Close()
		}
		if err != nil {
			logging.WarnWithContext(logger, "run not recorded in history", "ledger_write_failed",
				logging.Error(err),
				logging.String("path", o.cfg.Ledger.Path),
				logging.String(logging.FieldImpact, "this run is missing from the history command"),
			)
		}
	}

	textfile := strings.TrimSpace(o.flags.metricsTextfile)
	if textfile == "" {
		textfile = o.cfg.Metrics.Textfile
	}
	if textfile != "" {
		m := metrics.NewRun()
		m.Observe(report)
		if err := m.WriteTextfile(textfile); err != nil {
			logging.WarnWithContext(logger, "metrics textfile not written", "metrics_write_failed",
				logging.Error(err),
				logging.String("path", textfile),
			)
		}
	}
}

func (o *optimizer) printPlanned(report *pipeline.Report, sinks *terminalSinks) {
	var rows [][]string
	for _, res := range report.Results {
		for _, task := range res.Planned {
			width := strconv.Itoa(task.Width)
			if task.Preview {
				width = "preview"
			}
			rows = append(rows, []string{sinks.rel(res.Source), upperCase.String(string(task.Format)), width, sinks.rel(task.DestinationPath)})
		}
	}
	if len(rows) == 0 {
		fmt.Fprintln(o.out, "Dry run: every output is up to date.")
		return
	}
	fmt.Fprintln(o.out, renderTable(fmt.Sprintf("Dry run: %d outputs would be transcoded", len(rows)),
		[]string{"Image", "Format", "Width", "Destination"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
}

func (o *optimizer) printTotals(report *pipeline.Report, sinks *terminalSinks) {
	cached, transcoded, failed := report.Totals()
	st := newStyler(o.out)
	line := fmt.Sprintf("%d images: %s new outputs, %d cached", len(report.Results), st.green(strconv.Itoa(transcoded)), cached)
	if failed > 0 {
		line += ", " + st.red(fmt.Sprintf("%d failed", failed))
	}
	if n := report.Failed(); n > 0 {
		line += fmt.Sprintf(" (%d images with errors)", n)
	}
	line += fmt.Sprintf(" in %s.", report.Finished.Sub(report.Started).Round(time.Millisecond))
	fmt.Fprintln(o.out, st.bold(line))
	if sinks.failedTranscodes() > 0 {
		fmt.Fprintf(o.errOut, "\n%s\n", failedOptimizationsNote())
	}
}

// acquireRunLock prevents two runs from writing the same manifest.
func acquireRunLock(dir string) (func(), error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create manifest directory: %w", err)
	}
	lockPath := filepath.Join(dir, ".lock")
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another optimization is already running for this project (lock %s)", lockPath)
	}
	return func() { _ = lock.Unlock() }, nil
}
