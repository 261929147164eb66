package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/lilnasy/astro-optimize-pictures/internal/failures"
	"github.com/lilnasy/astro-optimize-pictures/internal/ffmpeg"
	"github.com/lilnasy/astro-optimize-pictures/internal/plan"
	"github.com/lilnasy/astro-optimize-pictures/internal/progress"
)

// terminalSinks prints pipeline notifications. Paths are shown relative to
// base.
type terminalSinks struct {
	out    io.Writer
	errOut io.Writer
	base   string
	st     styler
	errSt  styler
	board  *progressBoard

	mu                  sync.Mutex
	transcodeFailures   int
	summariesSuppressed bool
}

func newTerminalSinks(out, errOut io.Writer, base string, quiet bool) *terminalSinks {
	return &terminalSinks{
		out:                 out,
		errOut:              errOut,
		base:                base,
		st:                  newStyler(out),
		errSt:               newStyler(errOut),
		board:               newProgressBoard(errOut),
		summariesSuppressed: quiet,
	}
}

func (s *terminalSinks) ReportError(err error) {
	if errors.Is(err, failures.ErrTranscode) {
		s.mu.Lock()
		s.transcodeFailures++
		s.mu.Unlock()
	}
	msg := failureMessage(err, s.errSt)
	s.board.suspend(func() {
		fmt.Fprintf(s.errOut, "%s\n\n", msg)
	})
}

func (s *terminalSinks) ShowProgress(source string, events <-chan progress.Event, _, remaining int) {
	s.board.expect(remaining)
	rel := s.rel(source)
	for ev := range events {
		s.board.step(rel, s.rel(ev.DestinationPath))
	}
}

func (s *terminalSinks) ShowSummary(info ffmpeg.ImageInfo, tasks []plan.Task) {
	if s.summariesSuppressed {
		return
	}
	rendered := summaryTable(s.rel(info.Path), info, tasks, s.st)
	s.board.suspend(func() {
		fmt.Fprintln(s.out, rendered)
	})
}

func (s *terminalSinks) failedTranscodes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcodeFailures
}

func (s *terminalSinks) rel(path string) string {
	if s.base == "" {
		return path
	}
	if rel, err := filepath.Rel(s.base, path); err == nil {
		return rel
	}
	return path
}

var (
	titleCase = cases.Title(language.Und)
	upperCase = cases.Upper(language.Und)
)

// summaryTable lists every output of one image with its size relative to
// the original.
func summaryTable(name string, info ffmpeg.ImageInfo, tasks []plan.Task, st styler) string {
	title := fmt.Sprintf("%s  %dx%d %s  %s", name, info.Width, info.Height, upperCase.String(info.Format), humanize.Bytes(uint64(max(info.Stat.Size, 0))))
	rows := make([][]string, 0, len(tasks))
	for _, task := range tasks {
		width := strconv.Itoa(task.Width)
		if task.Preview {
			width = "preview"
		}
		size, saved := "-", "-"
		if task.Stat != nil {
			size = humanize.Bytes(uint64(max(task.Stat.Size, 0)))
			saved = savings(info.Stat.Size, task.Stat.Size, st)
		}
		status := titleCase.String(task.Status.String())
		if task.New() {
			status = st.green(status)
		}
		rows = append(rows, []string{upperCase.String(string(task.Format)), width, size, saved, status})
	}
	return renderTable(title,
		[]string{"Format", "Width", "Size", "Saved", "Status"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
	)
}

func savings(original, size int64, st styler) string {
	if original <= 0 {
		return "-"
	}
	pct := 100 * (1 - float64(size)/float64(original))
	text := fmt.Sprintf("%.0f%%", pct)
	if pct < 0 {
		return st.red(text)
	}
	return text
}
