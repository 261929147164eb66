package logging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// sink is one named destination of the CLI logger.
type sink struct {
	name    string
	handler slog.Handler
}

// fanoutHandler copies each record to every sink whose level admits it. A
// failing sink never stops delivery to the others; its error is returned
// tagged with the sink name.
type fanoutHandler struct {
	sinks []sink
}

func newFanoutHandler(sinks ...sink) slog.Handler {
	var live []sink
	for _, s := range sinks {
		if s.handler != nil {
			live = append(live, s)
		}
	}
	switch len(live) {
	case 0:
		return NoopHandler{}
	case 1:
		return live[0].handler
	}
	return &fanoutHandler{sinks: live}
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range h.sinks {
		if s.handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	last := len(h.sinks) - 1
	for i, s := range h.sinks {
		if !s.handler.Enabled(ctx, record.Level) {
			continue
		}
		rec := record
		if i < last {
			rec = record.Clone()
		}
		if err := s.handler.Handle(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("%s log: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(func(inner slog.Handler) slog.Handler { return inner.WithAttrs(attrs) })
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	return h.derive(func(inner slog.Handler) slog.Handler { return inner.WithGroup(name) })
}

func (h *fanoutHandler) derive(fn func(slog.Handler) slog.Handler) slog.Handler {
	next := make([]sink, len(h.sinks))
	for i, s := range h.sinks {
		next[i] = sink{name: s.name, handler: fn(s.handler)}
	}
	return &fanoutHandler{sinks: next}
}
