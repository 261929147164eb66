package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/lilnasy/astro-optimize-pictures/internal/failures"
	"github.com/lilnasy/astro-optimize-pictures/internal/ffmpeg"
	"github.com/lilnasy/astro-optimize-pictures/internal/pipeline"
	"github.com/lilnasy/astro-optimize-pictures/internal/plan"
	"github.com/lilnasy/astro-optimize-pictures/internal/progress"
)

type fakeProcess struct{ stderr io.Reader }

func (p fakeProcess) Stderr() io.Reader { return p.stderr }
func (p fakeProcess) Wait() error       { return errors.New("exit status 1") }

// fakeFFmpeg answers probes from a size table and writes every requested
// output, except for sources listed in failing.
type fakeFFmpeg struct {
	mu         sync.Mutex
	sizes      map[string][2]int
	failing    map[string]bool
	transcodes int
}

func (f *fakeFFmpeg) Start(_ context.Context, _ string, args []string) (ffmpeg.Process, error) {
	source := args[indexOf(args, "-i")+1]
	if indexOf(args, "-map") < 0 {
		size, ok := f.sizes[source]
		if !ok {
			return fakeProcess{strings.NewReader(source + ": Invalid data found when processing input\n")}, nil
		}
		out := fmt.Sprintf("Input #0, png_pipe, from '%s':\n  Stream #0:0: Video: png, rgb24(pc), %dx%d\n", source, size[0], size[1])
		return fakeProcess{strings.NewReader(out)}, nil
	}

	f.mu.Lock()
	f.transcodes++
	f.mu.Unlock()

	// Each output clause starts with -map and ends with its destination.
	var dests []string
	for i := indexOf(args, "-map") + 1; i < len(args); i++ {
		if args[i] == "-map" {
			dests = append(dests, args[i-1])
		}
	}
	dests = append(dests, args[len(args)-1])
	var b strings.Builder
	if f.failing[source] {
		// ffmpeg leaves an empty file behind for the output it was opening.
		_ = os.WriteFile(dests[0], nil, 0o644)
		b.WriteString("[AVFormatContext @ 0x1] Unknown encoder 'libnope'\n")
		return fakeProcess{strings.NewReader(b.String())}, nil
	}
	for i, dest := range dests {
		if err := os.WriteFile(dest, []byte("variant"), 0o644); err != nil {
			return nil, err
		}
		fmt.Fprintf(&b, "Output #%d, image2, to '%s':\n", i, dest)
	}
	return fakeProcess{strings.NewReader(b.String())}, nil
}

func indexOf(args []string, value string) int {
	for i, a := range args {
		if a == value {
			return i
		}
	}
	return -1
}

type recordingSinks struct {
	mu        sync.Mutex
	errors    []error
	events    map[string][]progress.Event
	summaries map[string][]plan.Task
}

func newRecordingSinks() *recordingSinks {
	return &recordingSinks{events: map[string][]progress.Event{}, summaries: map[string][]plan.Task{}}
}

func (s *recordingSinks) ReportError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, err)
}

func (s *recordingSinks) ShowProgress(source string, events <-chan progress.Event, _, _ int) {
	for ev := range events {
		s.mu.Lock()
		s.events[source] = append(s.events[source], ev)
		s.mu.Unlock()
	}
}

func (s *recordingSinks) ShowSummary(info ffmpeg.ImageInfo, tasks []plan.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[info.Path] = tasks
}

type fixture struct {
	src     string
	out     string
	logs    string
	fake    *fakeFFmpeg
	sinks   *recordingSinks
	options plan.Options
}

func newFixture(t *testing.T, images map[string][2]int) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		src:   filepath.Join(root, "src"),
		out:   filepath.Join(root, "node_modules", "astro-optimize-images", "_optimized_images"),
		logs:  filepath.Join(root, "logs"),
		fake:  &fakeFFmpeg{sizes: map[string][2]int{}, failing: map[string]bool{}},
		sinks: newRecordingSinks(),
	}
	for name, size := range images {
		path := filepath.Join(f.src, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("source image"), 0o644); err != nil {
			t.Fatal(err)
		}
		if size[0] > 0 {
			f.fake.sizes[path] = size
		}
	}
	f.options = plan.DefaultOptions()
	f.options.Widths = []plan.WidthOption{{Width: 640, Enabled: true}, {Width: 1920, Enabled: true}, {Width: 3000, Enabled: true}}
	f.options.Formats[plan.WebP] = plan.FormatOption{Enabled: false, Codec: "libwebp", Quality: 40, Maximum: 100}
	return f
}

func (f *fixture) path(name string) string { return filepath.Join(f.src, name) }

func (f *fixture) run(t *testing.T, images ...string) *pipeline.Report {
	t.Helper()
	client, err := ffmpeg.New("ffmpeg", ffmpeg.WithExecutor(f.fake))
	if err != nil {
		t.Fatal(err)
	}
	var paths []string
	for _, name := range images {
		paths = append(paths, f.path(name))
	}
	report, err := pipeline.Run(context.Background(), pipeline.Options{
		Client:        client,
		Layout:        plan.Layout{SourceRoot: f.src, OutputDir: f.out},
		Workers:       3,
		FailureLogDir: f.logs,
		RunID:         "run-1",
		Sinks:         f.sinks,
	}, paths, f.options, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	return report
}

func TestRunOptimizesAndIsIdempotent(t *testing.T) {
	f := newFixture(t, map[string][2]int{"photo.png": {2000, 1000}, "blog/cover.jpg": {800, 600}})

	first := f.run(t, "photo.png", "blog/cover.jpg")
	if len(first.Optimizations) != 2 || first.Failed() != 0 {
		t.Fatalf("unexpected report: %+v", first.Results)
	}
	photo := first.Optimizations[1]
	if photo.Image.Path != f.path("photo.png") {
		t.Fatalf("optimizations not sorted: %q", photo.Image.Path)
	}
	var widths []int
	for _, task := range photo.Tasks {
		if !task.Preview {
			widths = append(widths, task.Width)
		}
		if !task.New() {
			t.Fatalf("first run task should be new: %+v", task)
		}
	}
	if fmt.Sprint(widths) != "[640 1920 2000]" {
		t.Fatalf("widths = %v", widths)
	}
	if !photo.Tasks[len(photo.Tasks)-1].Preview {
		t.Fatal("preview should be last")
	}
	if got := len(f.sinks.events[f.path("photo.png")]); got != 4 {
		t.Fatalf("progress events = %d, want 4", got)
	}
	if f.fake.transcodes != 2 {
		t.Fatalf("transcodes = %d", f.fake.transcodes)
	}

	second := f.run(t, "photo.png", "blog/cover.jpg")
	if f.fake.transcodes != 2 {
		t.Fatalf("second run transcoded again: %d", f.fake.transcodes)
	}
	_, transcoded, _ := second.Totals()
	if transcoded != 0 {
		t.Fatalf("second run transcoded %d outputs", transcoded)
	}
	for i, o := range second.Optimizations {
		if len(o.Tasks) != len(first.Optimizations[i].Tasks) {
			t.Fatalf("task count changed for %s", o.Image.Path)
		}
		for j, task := range o.Tasks {
			if task.DestinationPath != first.Optimizations[i].Tasks[j].DestinationPath || task.Status != plan.Cached {
				t.Fatalf("task %d of %s differs: %+v", j, o.Image.Path, task)
			}
		}
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	f := newFixture(t, map[string][2]int{
		"good.png":    {1000, 500},
		"broken.png":  {1000, 500},
		"garbage.png": {0, 0},
	})
	f.fake.failing[f.path("broken.png")] = true

	report := f.run(t, "good.png", "broken.png", "garbage.png")
	if report.Failed() != 2 {
		t.Fatalf("failed images = %d, want 2", report.Failed())
	}
	if len(report.Optimizations) != 2 {
		t.Fatalf("optimizations = %d, want good and broken", len(report.Optimizations))
	}
	for _, o := range report.Optimizations {
		if o.Image.Path == f.path("broken.png") && len(o.Tasks) != 0 {
			t.Fatalf("broken image should keep no outputs, got %d", len(o.Tasks))
		}
		if o.Image.Path == f.path("good.png") && len(o.Tasks) == 0 {
			t.Fatal("good image lost its outputs")
		}
	}

	var probeErr *failures.ProbeError
	var transcodeErr *failures.TranscodeError
	for _, err := range f.sinks.errors {
		errors.As(err, &probeErr)
		errors.As(err, &transcodeErr)
	}
	if probeErr == nil || probeErr.Path != f.path("garbage.png") {
		t.Fatalf("expected probe error for garbage.png, got %v", f.sinks.errors)
	}
	if transcodeErr == nil || !strings.Contains(transcodeErr.Line, "Unknown encoder") {
		t.Fatalf("expected transcode error, got %v", f.sinks.errors)
	}
	if transcodeErr.LogPath == "" {
		t.Fatal("expected failure transcript path")
	}
	if base := filepath.Base(transcodeErr.LogPath); !strings.HasPrefix(base, "broken_png-") || filepath.Ext(base) != ".log" {
		t.Fatalf("unexpected transcript name %q", base)
	}
	data, err := os.ReadFile(transcodeErr.LogPath)
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	if !strings.HasPrefix(string(data), "$ ffmpeg ") || !strings.Contains(string(data), "Unknown encoder") {
		t.Fatalf("unexpected transcript: %q", data)
	}
	for _, res := range report.Results {
		switch res.Source {
		case f.path("broken.png"):
			if res.Stage != pipeline.StageTranscoding {
				t.Fatalf("broken image stage = %q, want %q", res.Stage, pipeline.StageTranscoding)
			}
		case f.path("good.png"):
			if res.Stage != pipeline.StageDone {
				t.Fatalf("good image stage = %q", res.Stage)
			}
		}
	}
	if len(f.sinks.events[f.path("broken.png")]) != 0 {
		t.Fatal("broken image should report no progress")
	}

	// The empty leftover is cleared, so the next run retries the image.
	broken := filepath.Join(f.out, "broken-png-15q-640w.jpeg")
	if _, err := os.Stat(broken); !os.IsNotExist(err) {
		t.Fatalf("zero-byte output should be removed, stat err = %v", err)
	}
}

func TestRunAcceptsPathsMentioningErrors(t *testing.T) {
	f := newFixture(t, map[string][2]int{"error-page.png": {1000, 500}, "Errors/hero.png": {1000, 500}})

	report := f.run(t, "error-page.png", "Errors/hero.png")
	if report.Failed() != 0 || len(f.sinks.errors) != 0 {
		t.Fatalf("successful transcodes reported as failed: %v", f.sinks.errors)
	}
	_, transcoded, failed := report.Totals()
	if transcoded == 0 || failed != 0 {
		t.Fatalf("transcoded = %d, failed = %d", transcoded, failed)
	}
	if entries, err := os.ReadDir(f.logs); err == nil && len(entries) != 0 {
		t.Fatalf("unexpected failure transcripts: %v", entries)
	}
}

func TestRunDryRunTranscodesNothing(t *testing.T) {
	f := newFixture(t, map[string][2]int{"photo.png": {2000, 1000}})
	client, err := ffmpeg.New("ffmpeg", ffmpeg.WithExecutor(f.fake))
	if err != nil {
		t.Fatal(err)
	}
	report, err := pipeline.Run(context.Background(), pipeline.Options{
		Client:  client,
		Layout:  plan.Layout{SourceRoot: f.src, OutputDir: f.out},
		Workers: 1,
		DryRun:  true,
	}, []string{f.path("photo.png")}, f.options, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if f.fake.transcodes != 0 {
		t.Fatalf("dry run transcoded %d times", f.fake.transcodes)
	}
	if len(report.Results) != 1 || len(report.Results[0].Planned) != 4 {
		t.Fatalf("planned = %+v", report.Results)
	}
	if len(report.Optimizations) != 0 {
		t.Fatal("dry run should not produce optimizations")
	}
}

func TestRunUsesReadySelection(t *testing.T) {
	f := newFixture(t, map[string][2]int{"a.png": {500, 500}, "b.png": {500, 500}})
	client, err := ffmpeg.New("ffmpeg", ffmpeg.WithExecutor(f.fake))
	if err != nil {
		t.Fatal(err)
	}
	ready := func(_ context.Context, images []string, opts plan.Options) (plan.Selection, error) {
		sel := opts.Select(images[:1])
		return opts.Override(sel, []int{100}, []plan.Format{plan.WebP})
	}
	report, err := pipeline.Run(context.Background(), pipeline.Options{
		Client:  client,
		Layout:  plan.Layout{SourceRoot: f.src, OutputDir: f.out},
		Workers: 2,
	}, []string{f.path("a.png"), f.path("b.png")}, f.options, ready)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(report.Optimizations) != 1 {
		t.Fatalf("optimizations = %d", len(report.Optimizations))
	}
	tasks := report.Optimizations[0].Tasks
	if len(tasks) != 3 || tasks[0].Format != plan.WebP || tasks[0].Width != 100 || tasks[1].Width != 500 {
		t.Fatalf("tasks = %+v", tasks)
	}
}

func TestRunReadyErrorAborts(t *testing.T) {
	f := newFixture(t, nil)
	client, _ := ffmpeg.New("ffmpeg", ffmpeg.WithExecutor(f.fake))
	ready := func(context.Context, []string, plan.Options) (plan.Selection, error) {
		return plan.Selection{}, errors.New("cancelled by user")
	}
	if _, err := pipeline.Run(context.Background(), pipeline.Options{Client: client}, nil, f.options, ready); err == nil {
		t.Fatal("expected ready error")
	}
}
