package plan

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
)

// Layout maps source images to their output location. SourceRoot is the
// directory images are discovered under; OutputDir receives every variant.
type Layout struct {
	SourceRoot string
	OutputDir  string
}

// Destination returns the output path for one variant of source. The source
// extension is part of the name so that photo.png and photo.jpg never share
// outputs.
func (l Layout) Destination(source string, format Format, quality, width int) string {
	dir, stem := l.base(source)
	return filepath.Join(dir, fmt.Sprintf("%s-%dq-%dw.%s", stem, quality, width, format.Extension()))
}

// PreviewDestination returns the output path for the placeholder image. The
// width is part of the name so a new area budget replaces cached previews.
func (l Layout) PreviewDestination(source string, format Format, quality, width int) string {
	dir, stem := l.base(source)
	return filepath.Join(dir, fmt.Sprintf("%s-%dq-preview-%dw.%s", stem, quality, width, format.Extension()))
}

func (l Layout) base(source string) (string, string) {
	ext := filepath.Ext(source)
	stem := strings.TrimSuffix(filepath.Base(source), ext)
	if ext = strings.TrimPrefix(strings.ToLower(ext), "."); ext != "" {
		stem += "-" + ext
	}
	dir := l.OutputDir
	if rel, err := filepath.Rel(l.SourceRoot, filepath.Dir(source)); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
		dir = filepath.Join(dir, rel)
	}
	return dir, stem
}

// Build returns the tasks for one image of the given native dimensions:
// every selected format in canonical order, widths ascending, then the
// preview.
func Build(layout Layout, source string, width, height int, sel Selection) []Task {
	if width <= 0 || height <= 0 {
		return nil
	}
	sel = sel.normalized()
	minHeight := sel.MinHeight
	if minHeight < 1 {
		minHeight = 1
	}

	var tasks []Task
	for _, f := range sel.Formats {
		for _, w := range sel.Widths {
			if w >= width {
				break
			}
			if impliedHeight(w, width, height) < minHeight {
				continue
			}
			tasks = append(tasks, newTask(layout, source, f, w))
		}
		tasks = append(tasks, newTask(layout, source, f, width))
	}

	pw, ph := previewSize(sel.Preview.Area, width, height)
	tasks = append(tasks, Task{
		Format:          sel.Preview.Format,
		Codec:           sel.Preview.Codec,
		Quality:         sel.Preview.Quality,
		Width:           pw,
		Height:          ph,
		DestinationPath: layout.PreviewDestination(source, sel.Preview.Format, sel.Preview.Quality, pw),
		Preview:         true,
	})
	return tasks
}

func newTask(layout Layout, source string, f FormatDetails, width int) Task {
	return Task{
		Format:          f.Format,
		Codec:           f.Codec,
		Quality:         f.Quality,
		Width:           width,
		Height:          AutoHeight,
		DestinationPath: layout.Destination(source, f.Format, f.Quality, width),
	}
}

func impliedHeight(w, width, height int) int {
	return int(math.Round(float64(w) * float64(height) / float64(width)))
}

// previewSize fits area pixels to the source aspect ratio without exceeding
// the source dimensions.
func previewSize(area, width, height int) (int, int) {
	if area <= 0 {
		area = 1024
	}
	ratio := float64(width) / float64(height)
	w := int(math.Round(math.Sqrt(float64(area) * ratio)))
	h := int(math.Round(math.Sqrt(float64(area) / ratio)))
	w = max(1, min(w, width))
	h = max(1, min(h, height))
	return w, h
}
