package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// progressBoard tracks outputs being written across every in-flight image.
// On a terminal it draws one shared bar; elsewhere it prints a line per
// output.
type progressBoard struct {
	mu       sync.Mutex
	w        io.Writer
	st       styler
	animated bool
	bar      *progressbar.ProgressBar
	done     int
}

func newProgressBoard(w io.Writer) *progressBoard {
	st := newStyler(w)
	return &progressBoard{w: w, st: st, animated: st.colorize}
}

// expect adds n upcoming outputs.
func (b *progressBoard) expect(n int) {
	if n <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.animated {
		return
	}
	if b.bar == nil {
		b.bar = progressbar.NewOptions(n,
			progressbar.OptionSetWriter(b.w),
			progressbar.OptionSetDescription("optimizing"),
			progressbar.OptionSetItsString("outputs"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionEnableColorCodes(true),
		)
		return
	}
	b.bar.AddMax(n)
}

// step records one written output.
func (b *progressBoard) step(source, destination string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done++
	if b.bar == nil {
		fmt.Fprintf(b.w, "optimized %s to %s\n", source, b.st.green(destination))
		return
	}
	b.bar.Describe(source)
	_ = b.bar.Add(1)
}

// suspend clears the bar while fn prints, then redraws it.
func (b *progressBoard) suspend(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar != nil {
		_ = b.bar.Clear()
	}
	fn()
	if b.bar != nil && !b.bar.IsFinished() {
		_ = b.bar.RenderBlank()
	}
}

// finish removes the bar and returns how many outputs were written.
func (b *progressBoard) finish() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar != nil {
		_ = b.bar.Finish()
		b.bar = nil
	}
	return b.done
}
