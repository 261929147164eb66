// Package preflight provides readiness checks for the tools and paths an
// optimization run depends on.
//
// The doctor command runs RunAll and prints every result. The optimize
// command does not call it; ffmpeg failures there surface as tool errors.
// A missing local ffmpeg is not a failure when downloads are enabled; the
// download source is checked instead.
package preflight
