package plan

import (
	"fmt"
	"strings"
)

// Format is an output container.
type Format string

const (
	JPEG Format = "jpeg"
	WebP Format = "webp"
	AVIF Format = "avif"
)

// Formats lists every format in canonical order.
var Formats = []Format{JPEG, WebP, AVIF}

// Rank orders formats as jpeg < webp < avif; unknown formats sort last.
func (f Format) Rank() int {
	for i, known := range Formats {
		if f == known {
			return i
		}
	}
	return len(Formats)
}

// Extension is the file extension used for outputs of this format.
func (f Format) Extension() string {
	return string(f)
}

// MIMEType returns the media type for data URIs.
func (f Format) MIMEType() string {
	return "image/" + string(f)
}

// ParseFormat accepts a format name, tolerating case and the "jpg" alias.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "jpeg", "jpg":
		return JPEG, nil
	case "webp":
		return WebP, nil
	case "avif":
		return AVIF, nil
	default:
		return "", fmt.Errorf("unsupported format %q", value)
	}
}
