package progress_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/lilnasy/astro-optimize-pictures/internal/progress"
)

func collect(t *testing.T, s *progress.Stream) []progress.Event {
	t.Helper()
	var events []progress.Event
	for ev := range s.Events() {
		events = append(events, ev)
	}
	return events
}

func waitStream(t *testing.T, s *progress.Stream) *progress.Fatal {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	fatal, err := s.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	return fatal
}

func TestParseEmitsOutputsInAnnouncementOrder(t *testing.T) {
	input := strings.Join([]string{
		"Input #0, png_pipe, from '/src/a.png':",
		"  Stream #0:0: Video: png, rgb24(pc), 2000x1000, 25 tbr",
		"Output #0, webp, to '/out/a-png-40q-640w.webp':",
		"Output #1, image2, to '/out/a-png-15q-640w.jpeg':",
		"frame=    1 fps=0.0 q=-0.0 size=N/A time=00:00:00.04\rframe=    1 fps=0.0 q=-0.0 Lsize=N/A",
		"Output #2, avif, to '/out/a-png-150q-640w.avif':",
	}, "\n")

	s := progress.Parse(strings.NewReader(input), nil)
	events := collect(t, s)
	fatal := waitStream(t, s)

	if fatal != nil {
		t.Fatalf("expected no fatal, got %q", fatal.Line)
	}
	want := []string{"/out/a-png-40q-640w.webp", "/out/a-png-15q-640w.jpeg", "/out/a-png-150q-640w.avif"}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d (%v)", len(want), len(events), events)
	}
	for i, ev := range events {
		if ev.DestinationPath != want[i] {
			t.Fatalf("event %d = %q, want %q", i, ev.DestinationPath, want[i])
		}
	}
}

func TestParseLatchesUnknownEncoderBeforeOutputs(t *testing.T) {
	input := "Unknown encoder 'librav1e'\n"
	s := progress.Parse(strings.NewReader(input), nil)
	events := collect(t, s)
	fatal := waitStream(t, s)

	if len(events) != 0 {
		t.Fatalf("expected zero progress events, got %v", events)
	}
	if fatal == nil {
		t.Fatal("expected fatal to be latched")
	}
	if fatal.Line != "Unknown encoder 'librav1e'" {
		t.Fatalf("unexpected fatal line %q", fatal.Line)
	}
	if !strings.Contains(fatal.Log.String(), "Unknown encoder") {
		t.Fatalf("expected log to contain the triggering chunk, got %q", fatal.Log.String())
	}
}

func TestParseKeepsOnlyFirstFatal(t *testing.T) {
	input := strings.Join([]string{
		"[libwebp @ 0x1] Invalid argument",
		"Conversion failed!",
		"Error while opening encoder",
	}, "\n")
	s := progress.Parse(strings.NewReader(input), nil)
	collect(t, s)
	fatal := waitStream(t, s)
	if fatal == nil || fatal.Line != "[libwebp @ 0x1] Invalid argument" {
		t.Fatalf("expected first fatal line, got %+v", fatal)
	}
	log := fatal.Log.String()
	for _, fragment := range []string{"Invalid argument", "Conversion failed!", "Error while opening encoder"} {
		if !strings.Contains(log, fragment) {
			t.Fatalf("expected log to retain %q, got %q", fragment, log)
		}
	}
}

func TestParseIgnoresMarkersInFileNames(t *testing.T) {
	input := strings.Join([]string{
		"Input #0, png_pipe, from '/home/me/errors-site/src/404-error.png':",
		"  Stream #0:0: Video: png, rgb24(pc), 800x600, 25 tbr",
		"Output #0, image2, to '/home/me/errors-site/out/404-error-png-15q-640w.jpeg':",
		"Output #1, webp, to '/home/me/errors-site/out/Error-png-40q-640w.webp':",
	}, "\n")
	s := progress.Parse(strings.NewReader(input), nil)
	events := collect(t, s)
	fatal := waitStream(t, s)
	if fatal != nil {
		t.Fatalf("expected no fatal, got %q", fatal.Line)
	}
	if len(events) != 2 || events[0].DestinationPath != "/home/me/errors-site/out/404-error-png-15q-640w.jpeg" {
		t.Fatalf("unexpected events %v", events)
	}
}

func TestParseStillLatchesDiagnosticsNamingFiles(t *testing.T) {
	input := "[out#0/image2 @ 0x1] Error opening output /out/error-png-15q-640w.jpeg: Permission denied\n"
	s := progress.Parse(strings.NewReader(input), nil)
	collect(t, s)
	fatal := waitStream(t, s)
	if fatal == nil {
		t.Fatal("expected fatal to be latched")
	}
}

func TestParseDrainsAfterOversizedChunk(t *testing.T) {
	pr, pw := io.Pipe()
	s := progress.Parse(pr, nil)

	written := make(chan error, 1)
	go func() {
		_, err := io.WriteString(pw, strings.Repeat("x", 2<<20)+"\nmore output\n")
		_ = pw.Close()
		written <- err
	}()

	collect(t, s)
	select {
	case err := <-written:
		if err != nil {
			t.Fatalf("writer failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("writer blocked after the parser gave up")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.Wait(ctx); err == nil {
		t.Fatal("expected the oversized chunk to be reported")
	}
}

func TestParseUsesCustomMarkers(t *testing.T) {
	s := progress.Parse(strings.NewReader("everything went sideways\nall good\n"), []string{"sideways"})
	collect(t, s)
	fatal := waitStream(t, s)
	if fatal == nil || fatal.Line != "everything went sideways" {
		t.Fatalf("expected custom marker to latch, got %+v", fatal)
	}
}

func TestLogIsCompleteAfterEOF(t *testing.T) {
	input := "line one\r\nline two\n\nline three"
	s := progress.Parse(strings.NewReader(input), []string{"never-matches"})
	collect(t, s)
	waitStream(t, s)

	select {
	case <-s.Log().Done():
	default:
		t.Fatal("expected log to be finished after Wait")
	}
	data, err := io.ReadAll(s.Log().Reader())
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if got, want := string(data), "line one\nline two\nline three\n"; got != want {
		t.Fatalf("log = %q, want %q", got, want)
	}
}

func TestFatalCellResolvesBeforeEOF(t *testing.T) {
	pr, pw := io.Pipe()
	s := progress.Parse(pr, nil)

	go func() {
		_, _ = io.WriteString(pw, "Could not open file : /out/x.webp\n")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	fatal, err := s.FatalCell().Wait(ctx)
	if err != nil {
		t.Fatalf("fatal cell did not resolve: %v", err)
	}
	if !strings.Contains(fatal.Line, "Could not open file") {
		t.Fatalf("unexpected fatal line %q", fatal.Line)
	}
	select {
	case <-s.Log().Done():
		t.Fatal("log should still be open before EOF")
	default:
	}

	_ = pw.Close()
	collect(t, s)
	waitStream(t, s)
}
