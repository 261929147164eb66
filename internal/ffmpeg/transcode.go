package ffmpeg

import (
	"context"
	"errors"

	"github.com/lilnasy/astro-optimize-pictures/internal/failures"
	"github.com/lilnasy/astro-optimize-pictures/internal/logging"
	"github.com/lilnasy/astro-optimize-pictures/internal/plan"
	"github.com/lilnasy/astro-optimize-pictures/internal/progress"
)

// Run is an in-flight transcode of one source image.
type Run struct {
	Command string
	source  string
	proc    Process
	stream  *progress.Stream
	client  *Client
}

// Transcode starts one ffmpeg process producing every task for source.
// Callers must drain Events and then call Wait.
func (c *Client) Transcode(ctx context.Context, source string, tasks []plan.Task) (*Run, error) {
	if len(tasks) == 0 {
		return nil, errors.New("transcode: no tasks")
	}
	args := TranscodeArgs(source, tasks)
	command := CommandLine(c.binary, args)
	c.logger.Debug("starting transcode",
		logging.Image(source),
		logging.Int("outputs", len(tasks)),
		logging.String("command", command),
	)
	proc, err := c.exec.Start(ctx, c.binary, args)
	if err != nil {
		return nil, err
	}
	return &Run{
		Command: command,
		source:  source,
		proc:    proc,
		stream:  progress.Parse(proc.Stderr(), c.markers),
		client:  c,
	}, nil
}

// Events yields one event per output ffmpeg starts writing.
func (r *Run) Events() <-chan progress.Event {
	return r.stream.Events()
}

// Log returns the diagnostic transcript of the run.
func (r *Run) Log() *progress.Log {
	return r.stream.Log()
}

// Wait blocks until ffmpeg closes its diagnostic stream and exits. It returns
// a *failures.TranscodeError when a fatal marker was seen; the exit status is
// logged but otherwise ignored.
func (r *Run) Wait(ctx context.Context) error {
	fatal, err := r.stream.Wait(ctx)
	if err != nil && ctx.Err() != nil {
		// The process is killed with ctx; reap it without blocking the caller.
		go func() { _ = r.proc.Wait() }()
		return err
	}
	if exitErr := r.proc.Wait(); exitErr != nil {
		r.client.logger.Debug("ffmpeg exited with error",
			logging.Image(r.source),
			logging.Error(exitErr),
		)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if fatal != nil {
		return &failures.TranscodeError{
			Command:    r.Command,
			SourcePath: r.source,
			Line:       fatal.Line,
			Log:        fatal.Log.String(),
		}
	}
	if err != nil {
		r.client.logger.Warn("ffmpeg diagnostic stream ended early",
			logging.Image(r.source),
			logging.Error(err),
		)
	}
	return nil
}
