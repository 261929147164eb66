package main

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// styler paints text when the destination is a terminal.
type styler struct {
	colorize bool
}

func newStyler(w io.Writer) styler {
	return styler{colorize: shouldColorize(w)}
}

func (s styler) paint(text string, attrs ...color.Attribute) string {
	if !s.colorize {
		return text
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(text)
}

func (s styler) red(text string) string    { return s.paint(text, color.FgRed) }
func (s styler) green(text string) string  { return s.paint(text, color.FgGreen) }
func (s styler) yellow(text string) string { return s.paint(text, color.FgYellow) }
func (s styler) blue(text string) string   { return s.paint(text, color.FgBlue) }
func (s styler) bold(text string) string   { return s.paint(text, color.Bold) }

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
