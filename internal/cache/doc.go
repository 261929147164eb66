// Package cache decides which planned outputs already exist on disk.
//
// A non-empty destination file is a cache hit. A zero-byte file is what an
// interrupted ffmpeg run leaves behind, so it is removed and the task is
// scheduled again.
package cache
