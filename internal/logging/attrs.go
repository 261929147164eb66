package logging

import (
	"context"
	"log/slog"
	"time"
)

type Attr = slog.Attr

func Any(key string, value any) Attr { return slog.Any(key, value) }

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

// Image tags a record with the source image it concerns.
func Image(path string) Attr { return slog.String(FieldImage, path) }

// Error renders err under the "error" key; nil is spelled out so a missing
// cause is visible in the file log.
func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

func NewNop() *slog.Logger {
	return slog.New(NoopHandler{})
}

// NewComponentLogger tags logger with a component; a nil logger yields a
// no-op logger.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

// Defaults for WarnWithContext when the caller gives no hint or impact.
const (
	defaultWarnHint   = "rerun with --log-level debug for details"
	defaultWarnImpact = "the optimization run continued"
)

// WarnWithContext logs a warning that always carries event_type, error_hint
// and impact, filling in defaults for any the caller left out.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	present := make(map[string]bool, len(attrs))
	args := make([]any, 0, len(attrs)+3)
	for _, a := range attrs {
		present[a.Key] = true
		args = append(args, a)
	}
	for _, d := range []Attr{
		String(FieldEventType, eventType),
		String(FieldErrorHint, defaultWarnHint),
		String(FieldImpact, defaultWarnImpact),
	} {
		if !present[d.Key] {
			args = append(args, d)
		}
	}
	logger.Warn(msg, args...)
}

// NoopHandler discards all log output.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool { return false }

func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }

func (NoopHandler) WithAttrs([]slog.Attr) slog.Handler { return NoopHandler{} }

func (NoopHandler) WithGroup(string) slog.Handler { return NoopHandler{} }
