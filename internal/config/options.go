package config

import "github.com/lilnasy/astro-optimize-pictures/internal/plan"

// TranscodeOptions converts the [transcode] section into planner options.
func (c *Config) TranscodeOptions() plan.Options {
	t := c.Transcode
	opts := plan.Options{
		Formats: map[plan.Format]plan.FormatOption{
			plan.JPEG: formatOption(t.Formats.JPEG),
			plan.WebP: formatOption(t.Formats.WebP),
			plan.AVIF: formatOption(t.Formats.AVIF),
		},
		Preview: plan.PreviewOption{
			Format:  plan.Format(t.Preview.Format),
			Codec:   t.Preview.Codec,
			Quality: t.Preview.Quality,
			Area:    t.Preview.Area,
		},
		MinHeight: t.MinHeight,
	}
	for _, w := range t.Widths {
		opts.Widths = append(opts.Widths, plan.WidthOption{Width: w.Width, Enabled: w.Enabled})
	}
	return opts
}

func formatOption(s FormatSettings) plan.FormatOption {
	return plan.FormatOption{Enabled: s.Enabled, Codec: s.Codec, Quality: s.Quality, Minimum: s.Minimum, Maximum: s.Maximum}
}

// Codecs lists the encoders a run may invoke: every enabled format plus the
// preview encoder.
func (c *Config) Codecs() []string {
	f := c.Transcode.Formats
	var codecs []string
	for _, s := range []FormatSettings{f.AVIF, f.WebP, f.JPEG} {
		if s.Enabled {
			codecs = append(codecs, s.Codec)
		}
	}
	return append(codecs, c.Transcode.Preview.Codec)
}
