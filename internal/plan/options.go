package plan

import (
	"fmt"
	"slices"
)

// WidthOption is a candidate output width.
type WidthOption struct {
	Width   int
	Enabled bool
}

// FormatOption holds the encoder settings for one format. Minimum and Maximum
// bound the codec's quality scale.
type FormatOption struct {
	Enabled bool
	Codec   string
	Quality int
	Minimum int
	Maximum int
}

// PreviewOption configures the blur-up placeholder. Area is the target pixel
// count of the preview image.
type PreviewOption struct {
	Format  Format
	Codec   string
	Quality int
	Area    int
}

// Options is the full set of choices offered to the user before a run.
type Options struct {
	Widths    []WidthOption
	Formats   map[Format]FormatOption
	Preview   PreviewOption
	MinHeight int
}

// FormatDetails is a format chosen for a run with its resolved encoder.
type FormatDetails struct {
	Format  Format
	Codec   string
	Quality int
}

// Selection is what a run actually produces.
type Selection struct {
	Images    []string
	Widths    []int
	Formats   []FormatDetails
	Preview   PreviewOption
	MinHeight int
}

// DefaultOptions mirrors the built-in configuration.
func DefaultOptions() Options {
	return Options{
		Widths: []WidthOption{
			{100, true}, {256, false}, {320, true}, {426, false},
			{640, true}, {854, false}, {1024, false}, {1280, true},
			{1440, false}, {1920, true}, {2560, false}, {3840, false},
		},
		Formats: map[Format]FormatOption{
			AVIF: {Enabled: false, Codec: "librav1e", Quality: 150, Minimum: 0, Maximum: 255},
			WebP: {Enabled: true, Codec: "libwebp", Quality: 40, Minimum: 0, Maximum: 100},
			JPEG: {Enabled: true, Codec: "mjpeg", Quality: 15, Minimum: 2, Maximum: 31},
		},
		Preview:   PreviewOption{Format: WebP, Codec: "libwebp", Quality: 30, Area: 1024},
		MinHeight: 16,
	}
}

// Validate checks widths and quality bounds.
func (o Options) Validate() error {
	for _, w := range o.Widths {
		if w.Width <= 0 {
			return fmt.Errorf("width %d must be positive", w.Width)
		}
	}
	for _, f := range Formats {
		opt, ok := o.Formats[f]
		if !ok {
			continue
		}
		if opt.Codec == "" {
			return fmt.Errorf("%s: codec must be set", f)
		}
		if opt.Minimum > opt.Maximum {
			return fmt.Errorf("%s: quality bounds %d..%d are inverted", f, opt.Minimum, opt.Maximum)
		}
		if opt.Quality < opt.Minimum || opt.Quality > opt.Maximum {
			return fmt.Errorf("%s: quality %d outside %d..%d", f, opt.Quality, opt.Minimum, opt.Maximum)
		}
	}
	if o.Preview.Area <= 0 {
		return fmt.Errorf("preview area %d must be positive", o.Preview.Area)
	}
	if o.Preview.Codec == "" {
		return fmt.Errorf("preview codec must be set")
	}
	if o.MinHeight < 1 {
		return fmt.Errorf("min height %d must be at least 1", o.MinHeight)
	}
	return nil
}

// Select builds the Selection implied by the enabled flags.
func (o Options) Select(images []string) Selection {
	sel := Selection{
		Images:    slices.Clone(images),
		Preview:   o.Preview,
		MinHeight: o.MinHeight,
	}
	for _, w := range o.Widths {
		if w.Enabled {
			sel.Widths = append(sel.Widths, w.Width)
		}
	}
	for _, f := range Formats {
		if opt, ok := o.Formats[f]; ok && opt.Enabled {
			sel.Formats = append(sel.Formats, FormatDetails{Format: f, Codec: opt.Codec, Quality: opt.Quality})
		}
	}
	return sel.normalized()
}

// Override replaces the widths and formats of a selection. Empty arguments
// keep the current values. Formats take their encoder settings from o.
func (o Options) Override(sel Selection, widths []int, formats []Format) (Selection, error) {
	if len(widths) > 0 {
		for _, w := range widths {
			if w <= 0 {
				return Selection{}, fmt.Errorf("width %d must be positive", w)
			}
		}
		sel.Widths = slices.Clone(widths)
	}
	if len(formats) > 0 {
		sel.Formats = nil
		for _, f := range formats {
			opt, ok := o.Formats[f]
			if !ok {
				return Selection{}, fmt.Errorf("format %s is not configured", f)
			}
			sel.Formats = append(sel.Formats, FormatDetails{Format: f, Codec: opt.Codec, Quality: opt.Quality})
		}
	}
	return sel.normalized(), nil
}

// normalized sorts and de-duplicates widths and formats.
func (s Selection) normalized() Selection {
	widths := slices.Clone(s.Widths)
	slices.Sort(widths)
	s.Widths = slices.Compact(widths)

	formats := slices.Clone(s.Formats)
	slices.SortStableFunc(formats, func(a, b FormatDetails) int {
		return a.Format.Rank() - b.Format.Rank()
	})
	s.Formats = slices.CompactFunc(formats, func(a, b FormatDetails) bool {
		return a.Format == b.Format
	})
	return s
}
