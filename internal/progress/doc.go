// Package progress turns ffmpeg's diagnostic stream into typed events.
//
// Parse reads the stream once, chunk by chunk, and never waits for EOF before
// acting: every "Output #N" announcement becomes an Event as soon as it is
// read, and the first chunk containing a fatal marker is latched into a
// write-once Cell. All chunks are appended to a Log that callers can persist
// after the stream closes.
package progress
