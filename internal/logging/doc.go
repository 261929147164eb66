// Package logging assembles the structured slog loggers used by the
// optimizer.
//
// It owns the console and JSON handlers, level parsing, and output plumbing,
// and exposes a run handler that stamps every record with the run ID so file
// logs from concurrent invocations can be told apart. NewNop serves tests and
// wiring code that must not fail.
package logging
