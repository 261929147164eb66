package failures

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfigNotFound  = errors.New("astro config not found")
	ErrProbe           = errors.New("image probe failed")
	ErrToolUnavailable = errors.New("ffmpeg unavailable")
	ErrTranscode       = errors.New("transcode failed")
)

// Kind names a failure variant.
type Kind string

const (
	KindConfigNotFound  Kind = "config_not_found"
	KindProbe           Kind = "image_probe_failed"
	KindToolUnavailable Kind = "tool_unavailable"
	KindTranscode       Kind = "transcode_failed"
)

// Failure is implemented by every error variant in this package.
type Failure interface {
	error
	Kind() Kind
	Fatal() bool
}

// ConfigNotFoundError reports that no astro.config.* file exists in any of
// the searched directories.
type ConfigNotFoundError struct {
	CheckedPaths []string
}

func (e *ConfigNotFoundError) Error() string {
	if len(e.CheckedPaths) == 0 {
		return ErrConfigNotFound.Error()
	}
	return fmt.Sprintf("%s (checked %s)", ErrConfigNotFound, strings.Join(e.CheckedPaths, ", "))
}

func (e *ConfigNotFoundError) Unwrap() error { return ErrConfigNotFound }
func (e *ConfigNotFoundError) Kind() Kind    { return KindConfigNotFound }
func (e *ConfigNotFoundError) Fatal() bool   { return true }

// ProbeError reports an image whose dimensions could not be read.
type ProbeError struct {
	Command string
	Output  string
	Path    string
	Err     error
}

func (e *ProbeError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrProbe, e.Path)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProbeError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrProbe}
	}
	return []error{ErrProbe, e.Err}
}

func (e *ProbeError) Kind() Kind  { return KindProbe }
func (e *ProbeError) Fatal() bool { return false }

// ToolReason classifies why ffmpeg could not be obtained.
type ToolReason string

const (
	ReasonNotFound       ToolReason = "not-found"
	ReasonNoBuild        ToolReason = "no-build"
	ReasonNetwork        ToolReason = "network"
	ReasonDownloadStatus ToolReason = "download"
	ReasonWrite          ToolReason = "write"
)

// ToolError reports that ffmpeg is neither installed nor downloadable.
type ToolError struct {
	Reason   ToolReason
	Platform string
	URL      string
	Path     string
	Status   int
	Err      error
}

func (e *ToolError) Error() string {
	var detail string
	switch e.Reason {
	case ReasonNoBuild:
		detail = fmt.Sprintf("no prebuilt ffmpeg for %s", e.Platform)
	case ReasonNetwork:
		detail = fmt.Sprintf("could not reach %s", e.URL)
	case ReasonDownloadStatus:
		detail = fmt.Sprintf("download from %s returned status %d", e.URL, e.Status)
	case ReasonWrite:
		detail = fmt.Sprintf("could not write ffmpeg to %s", e.Path)
	default:
		detail = "ffmpeg not found on PATH and downloads are disabled"
	}
	if e.Err != nil {
		detail += ": " + e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", ErrToolUnavailable, detail)
}

func (e *ToolError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrToolUnavailable}
	}
	return []error{ErrToolUnavailable, e.Err}
}

func (e *ToolError) Kind() Kind  { return KindToolUnavailable }
func (e *ToolError) Fatal() bool { return true }

// TranscodeError reports the first fatal line ffmpeg printed for a source.
// Log holds the complete stderr transcript; LogPath is set once the
// transcript has been persisted.
type TranscodeError struct {
	Command    string
	SourcePath string
	Line       string
	Log        string
	LogPath    string
}

func (e *TranscodeError) Error() string {
	line := strings.TrimSpace(e.Line)
	if line == "" {
		return fmt.Sprintf("%s: %s", ErrTranscode, e.SourcePath)
	}
	return fmt.Sprintf("%s: %s: %s", ErrTranscode, e.SourcePath, line)
}

func (e *TranscodeError) Unwrap() error { return ErrTranscode }
func (e *TranscodeError) Kind() Kind    { return KindTranscode }
func (e *TranscodeError) Fatal() bool   { return false }

// IsFatal reports whether err should abort the whole run.
func IsFatal(err error) bool {
	var failure Failure
	if errors.As(err, &failure) {
		return failure.Fatal()
	}
	return false
}

// KindOf returns the Kind of the first Failure in err's chain, or "" when
// err carries none.
func KindOf(err error) Kind {
	var failure Failure
	if errors.As(err, &failure) {
		return failure.Kind()
	}
	return ""
}
