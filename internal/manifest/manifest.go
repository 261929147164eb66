package manifest

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/image/webp"

	"github.com/lilnasy/astro-optimize-pictures/internal/logging"
	"github.com/lilnasy/astro-optimize-pictures/internal/pipeline"
	"github.com/lilnasy/astro-optimize-pictures/internal/plan"
	"github.com/lilnasy/astro-optimize-pictures/internal/project"
)

// Import binds an identifier to a module specifier.
type Import struct {
	Identifier string
	Specifier  string
}

// Meta describes the original image.
type Meta struct {
	Original string
	Width    int
	Height   int
	Preview  string
}

// Entry is the manifest value for one source image.
type Entry struct {
	Key      string
	Original string
	Meta     Meta
	Variants map[plan.Format]map[int]string
}

// Manifest is the assembled module.
type Manifest struct {
	Imports []Import
	Entries []Entry
}

// Options locates the manifest within the project.
type Options struct {
	// SrcDir is the root that entry keys are relative to.
	SrcDir string
	// Dir is the directory the manifest module is written to; import
	// specifiers are relative to it.
	Dir    string
	Logger *slog.Logger
}

type ticker struct{ n int }

func (t *ticker) next() string {
	t.n++
	return "$" + strconv.Itoa(t.n)
}

// Build assembles a manifest. Images are visited by relative key and tasks
// by format then width; previews are embedded as data URIs rather than
// imported.
func Build(opts Options, optimizations []pipeline.Optimization) *Manifest {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With(logging.String(logging.FieldComponent, "manifest"))

	ordered := slices.Clone(optimizations)
	keyOf := func(o pipeline.Optimization) string { return project.RelativeKey(opts.SrcDir, o.Image.Path) }
	slices.SortStableFunc(ordered, func(a, b pipeline.Optimization) int {
		return strings.Compare(keyOf(a), keyOf(b))
	})

	tick := &ticker{}
	m := &Manifest{}
	for _, o := range ordered {
		original := tick.next()
		m.Imports = append(m.Imports, Import{Identifier: original, Specifier: specifier(opts.Dir, o.Image.Path)})
		entry := Entry{
			Key:      keyOf(o),
			Original: original,
			Meta:     Meta{Original: original, Width: o.Image.Width, Height: o.Image.Height},
			Variants: map[plan.Format]map[int]string{},
		}

		tasks := slices.Clone(o.Tasks)
		slices.SortStableFunc(tasks, func(a, b plan.Task) int {
			if d := a.Format.Rank() - b.Format.Rank(); d != 0 {
				return d
			}
			return a.Width - b.Width
		})
		for _, task := range tasks {
			if !task.Produced() {
				continue
			}
			if task.Preview {
				uri, err := previewURI(task)
				if err != nil {
					logger.Warn("preview not embedded",
						logging.String(logging.FieldImage, o.Image.Path),
						logging.String("preview", task.DestinationPath),
						logging.Error(err),
						logging.String(logging.FieldImpact, "image renders without a blur-up placeholder"),
					)
					continue
				}
				entry.Meta.Preview = uri
				continue
			}
			id := tick.next()
			m.Imports = append(m.Imports, Import{Identifier: id, Specifier: specifier(opts.Dir, task.DestinationPath)})
			if entry.Variants[task.Format] == nil {
				entry.Variants[task.Format] = map[int]string{}
			}
			entry.Variants[task.Format][task.Width] = id
		}
		m.Entries = append(m.Entries, entry)
	}
	return m
}

// previewURI reads a preview and encodes it as a data URI after checking
// that it decodes.
func previewURI(task plan.Task) (string, error) {
	data, err := os.ReadFile(task.DestinationPath)
	if err != nil {
		return "", err
	}
	switch task.Format {
	case plan.WebP:
		_, err = webp.DecodeConfig(bytes.NewReader(data))
	case plan.JPEG:
		_, err = jpeg.DecodeConfig(bytes.NewReader(data))
	}
	if err != nil {
		return "", fmt.Errorf("decode %s preview: %w", task.Format, err)
	}
	return "data:" + task.Format.MIMEType() + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// specifier renders target as a relative module specifier from dir.
func specifier(dir, target string) string {
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return filepath.ToSlash(target)
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "../") {
		return rel
	}
	return "./" + rel
}
