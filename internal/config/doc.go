// Package config loads, normalizes, and validates optimizer configuration.
//
// It supplies repository defaults (the width ladder, per-format encoders, and
// worker sizing), expands user paths including tilde shortcuts, reads TOML
// files, and honours the FFMPEG_PATH environment override. The transcode
// section converts directly into planner options via TranscodeOptions.
package config
