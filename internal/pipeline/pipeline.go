package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/lilnasy/astro-optimize-pictures/internal/ffmpeg"
	"github.com/lilnasy/astro-optimize-pictures/internal/logging"
	"github.com/lilnasy/astro-optimize-pictures/internal/plan"
	"github.com/lilnasy/astro-optimize-pictures/internal/progress"
)

// Sinks receive user-facing notifications. Implementations must be safe for
// concurrent use; every method is called from worker goroutines.
type Sinks interface {
	ReportError(err error)
	// ShowProgress consumes events until the channel closes. total counts
	// every task of the image; remaining counts those being transcoded.
	ShowProgress(source string, events <-chan progress.Event, total, remaining int)
	ShowSummary(info ffmpeg.ImageInfo, tasks []plan.Task)
}

// Ready negotiates what to produce once discovery finishes.
type Ready func(ctx context.Context, images []string, opts plan.Options) (plan.Selection, error)

// Optimization is one image that made it through the pipeline.
type Optimization struct {
	Image ffmpeg.ImageInfo
	// Tasks holds produced outputs ordered by format then width, preview last.
	Tasks []plan.Task
}

// Result records what happened to one selected image.
type Result struct {
	Source     string
	Stage      Stage
	Err        error
	Duration   time.Duration
	Cached     int
	Transcoded int
	Failed     int
	// Planned lists the outputs a dry run would transcode.
	Planned []plan.Task
}

// Report is the outcome of a run.
type Report struct {
	RunID         string
	Selection     plan.Selection
	Workers       int
	Optimizations []Optimization
	Results       []Result
	Started       time.Time
	Finished      time.Time
}

// Failed counts images that hit an error.
func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

// Totals sums task outcomes across images.
func (r *Report) Totals() (cached, transcoded, failed int) {
	for _, res := range r.Results {
		cached += res.Cached
		transcoded += res.Transcoded
		failed += res.Failed
	}
	return cached, transcoded, failed
}

// Options configures a run.
type Options struct {
	Client  *ffmpeg.Client
	Layout  plan.Layout
	Workers int
	// FailureLogDir receives one transcript per failed transcode.
	FailureLogDir string
	RunID         string
	DryRun        bool
	Logger        *slog.Logger
	Sinks         Sinks
}

// Run negotiates a selection through ready and optimizes every selected
// image. Per-image failures are reported through Sinks and never abort the
// run; the returned error is reserved for setup problems and cancellation.
func Run(ctx context.Context, opts Options, images []string, options plan.Options, ready Ready) (*Report, error) {
	if opts.Client == nil {
		return nil, errors.New("pipeline: ffmpeg client required")
	}
	if opts.Sinks == nil {
		opts.Sinks = discardSinks{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With(logging.String(logging.FieldComponent, "pipeline"))

	sel := options.Select(images)
	if ready != nil {
		var err error
		sel, err = ready(ctx, images, options)
		if err != nil {
			return nil, fmt.Errorf("select outputs: %w", err)
		}
	}

	workers := max(opts.Workers, 1)
	report := &Report{RunID: opts.RunID, Selection: sel, Workers: workers, Started: time.Now()}
	logger.Info("optimization started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Int("images", len(sel.Images)),
		logging.Int("workers", workers),
		logging.Any("widths", sel.Widths),
		logging.Bool("dry_run", opts.DryRun),
	)

	pool, err := ants.NewPool(workers,
		ants.WithPanicHandler(func(p any) {
			logger.Error("worker panic", logging.Any("panic", p), logging.String(logging.FieldEventType, "worker_panic"))
		}),
		ants.WithLogger(poolLogger{logger}),
	)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []Result
		opt     []Optimization
	)
	collect := func(res Result, o *Optimization) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, res)
		if o != nil {
			opt = append(opt, *o)
		}
	}
	w := &worker{opts: opts, sel: sel, logger: logger}
	for _, source := range sel.Images {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			collect(w.process(ctx, source))
		})
		if submitErr != nil {
			wg.Done()
			logger.Error("submit failed", logging.String(logging.FieldImage, source), logging.Error(submitErr))
			collect(Result{Source: source, Stage: StageProbing, Err: submitErr}, nil)
		}
	}
	wg.Wait()

	slices.SortFunc(results, func(a, b Result) int { return strings.Compare(a.Source, b.Source) })
	slices.SortFunc(opt, func(a, b Optimization) int { return strings.Compare(a.Image.Path, b.Image.Path) })
	report.Results = results
	report.Optimizations = opt
	report.Finished = time.Now()

	cached, transcoded, failed := report.Totals()
	logger.Info("optimization finished",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("images", len(report.Optimizations)),
		logging.Int("failed_images", report.Failed()),
		logging.Int("cached", cached),
		logging.Int("transcoded", transcoded),
		logging.Int("failed_outputs", failed),
		logging.Duration("elapsed", report.Finished.Sub(report.Started)),
	)
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

type poolLogger struct{ logger *slog.Logger }

func (p poolLogger) Printf(format string, args ...any) {
	p.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

type discardSinks struct{}

func (discardSinks) ReportError(error) {}

func (discardSinks) ShowProgress(_ string, events <-chan progress.Event, _, _ int) {
	for range events {
	}
}

func (discardSinks) ShowSummary(ffmpeg.ImageInfo, []plan.Task) {}
