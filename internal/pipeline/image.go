package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/lilnasy/astro-optimize-pictures/internal/cache"
	"github.com/lilnasy/astro-optimize-pictures/internal/failures"
	"github.com/lilnasy/astro-optimize-pictures/internal/logging"
	"github.com/lilnasy/astro-optimize-pictures/internal/plan"
	"github.com/lilnasy/astro-optimize-pictures/internal/progress"
)

type worker struct {
	opts   Options
	sel    plan.Selection
	logger *slog.Logger
}

// process runs one image to completion. The optimization is nil when the
// image must be left out of the manifest.
func (w *worker) process(ctx context.Context, source string) (Result, *Optimization) {
	started := time.Now()
	res := Result{Source: source}
	logger := w.logger.With(logging.String(logging.FieldImage, source))
	finish := func(stage Stage, err error) (Result, *Optimization) {
		res.Stage = stage
		res.Err = err
		res.Duration = time.Since(started)
		return res, nil
	}

	res.Stage = StageProbing
	info, err := w.opts.Client.Probe(ctx, source)
	if err != nil {
		if ctx.Err() == nil {
			w.opts.Sinks.ReportError(err)
			logging.WarnWithContext(logger, "image skipped; probe failed", "probe_failed",
				logging.String(logging.FieldStage, string(StageProbing)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that ffmpeg can decode the file"),
				logging.String(logging.FieldImpact, "image is left out of the manifest"),
			)
		}
		return finish(StageProbing, err)
	}

	tasks := plan.Build(w.opts.Layout, source, info.Width, info.Height, w.sel)
	logger.Debug("tasks planned",
		logging.String(logging.FieldStage, string(StagePlanning)),
		logging.Int("tasks", len(tasks)),
		logging.Int("width", info.Width),
		logging.Int("height", info.Height),
	)

	cached, required, err := cache.Reconcile(tasks)
	if err != nil {
		w.opts.Sinks.ReportError(err)
		logger.Error("reconcile failed", logging.String(logging.FieldStage, string(StageReconciling)), logging.Error(err))
		return finish(StageReconciling, err)
	}
	res.Cached = len(cached)

	if w.opts.DryRun {
		res.Planned = required
		res.Stage = StageDone
		res.Duration = time.Since(started)
		return res, nil
	}

	final := cached
	var transcodeErr error
	if len(required) > 0 {
		var produced []plan.Task
		produced, transcodeErr = w.transcode(ctx, logger, source, len(tasks), required)
		if transcodeErr != nil && ctx.Err() != nil {
			return finish(StageTranscoding, transcodeErr)
		}
		for _, t := range produced {
			switch t.Status {
			case plan.Transcoded:
				res.Transcoded++
				final = append(final, t)
			case plan.Failed:
				res.Failed++
			}
		}
	}

	sortTasks(final)
	w.opts.Sinks.ShowSummary(info, final)

	res.Stage = StageDone
	if transcodeErr != nil {
		res.Stage = StageTranscoding
	}
	res.Err = transcodeErr
	res.Duration = time.Since(started)
	logger.Info("image optimized",
		logging.String(logging.FieldEventType, "image_complete"),
		logging.Int("cached", res.Cached),
		logging.Int("transcoded", res.Transcoded),
		logging.Int("failed", res.Failed),
		logging.Duration("elapsed", res.Duration),
	)
	return res, &Optimization{Image: info, Tasks: final}
}

// transcode runs ffmpeg for the required tasks and restats every
// destination, so outputs written before a fatal error are still kept.
func (w *worker) transcode(ctx context.Context, logger *slog.Logger, source string, total int, required []plan.Task) ([]plan.Task, error) {
	run, err := w.opts.Client.Transcode(ctx, source, required)
	if err != nil {
		w.opts.Sinks.ReportError(err)
		logger.Error("transcode did not start", logging.String(logging.FieldStage, string(StageTranscoding)), logging.Error(err))
		restatted, _ := cache.Restat(required)
		return restatted, err
	}

	forward := make(chan progress.Event, len(required))
	shown := make(chan struct{})
	go func() {
		defer close(shown)
		w.opts.Sinks.ShowProgress(source, forward, total, len(required))
	}()
	for ev := range run.Events() {
		select {
		case forward <- ev:
		default:
			logger.Debug("progress event dropped", logging.String("destination", ev.DestinationPath))
		}
	}
	close(forward)
	<-shown

	waitErr := run.Wait(ctx)
	if waitErr != nil && ctx.Err() == nil {
		var terr *failures.TranscodeError
		if errors.As(waitErr, &terr) {
			if path, logErr := writeFailureLog(w.opts.FailureLogDir, w.opts.RunID, w.opts.Layout.SourceRoot, terr); logErr != nil {
				logger.Warn("failure transcript not written", logging.Error(logErr))
			} else {
				terr.LogPath = path
			}
		}
		w.opts.Sinks.ReportError(waitErr)
		logging.WarnWithContext(logger, "transcode failed; keeping outputs that were written", "transcode_failed",
			logging.String(logging.FieldStage, string(StageTranscoding)),
			logging.Error(waitErr),
			logging.String(logging.FieldErrorHint, "inspect the failure transcript for the ffmpeg error"),
			logging.String(logging.FieldImpact, "some variants of this image are missing"),
		)
	}

	restatted, err := cache.Restat(required)
	if err != nil {
		logger.Warn("restat incomplete", logging.String(logging.FieldStage, string(StageRestatting)), logging.Error(err))
	}
	return restatted, waitErr
}

// sortTasks orders outputs by format, then width, with previews last.
func sortTasks(tasks []plan.Task) {
	slices.SortStableFunc(tasks, func(a, b plan.Task) int {
		if a.Preview != b.Preview {
			if a.Preview {
				return 1
			}
			return -1
		}
		if d := a.Format.Rank() - b.Format.Rank(); d != 0 {
			return d
		}
		return a.Width - b.Width
	})
}
