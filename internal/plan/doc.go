// Package plan computes the transcode tasks for one image.
//
// Build is pure: the same source path, dimensions, and Selection always yield
// the same tasks in the same order, with destination paths derived only from
// the source path, format, quality, and width. Widths at or above the native
// width are never planned, so images are not upscaled; the native width is
// always included for every selected format.
package plan
