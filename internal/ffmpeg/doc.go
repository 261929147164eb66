// Package ffmpeg wraps the ffmpeg command line for probing and transcoding
// still images.
//
// A Client issues one process per image: Probe reads the primary video
// stream's format, color, and dimensions from ffmpeg's diagnostic output, and
// Transcode writes every planned variant of an image in a single invocation.
// Success is decided by the progress parser's fatal latch, never by the exit
// status, because ffmpeg's exit codes do not reliably reflect failed outputs.
//
// Locator finds or downloads the binary and is only needed at startup.
package ffmpeg
