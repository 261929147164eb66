// Package failures defines the error variants surfaced by an optimization run.
//
// Every variant implements Failure so sinks can classify an error without
// string matching, and each wraps one of the exported sentinels so callers can
// use errors.Is for coarse checks. Fatal variants abort the run before the
// manifest is written; the rest are reported per image.
package failures
