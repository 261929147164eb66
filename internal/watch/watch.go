// Package watch reruns the optimizer when source images change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lilnasy/astro-optimize-pictures/internal/failures"
	"github.com/lilnasy/astro-optimize-pictures/internal/logging"
)

// DefaultDebounce collapses bursts of events such as an editor's save.
const DefaultDebounce = 500 * time.Millisecond

// Options configures a watch loop.
type Options struct {
	Root     string
	SkipDirs []string
	// Extensions lists the lowercase file extensions that trigger a rerun.
	Extensions []string
	Debounce   time.Duration
	Logger     *slog.Logger
}

// Run watches Root recursively and calls onChange after each quiet period
// that follows a relevant change. onChange never runs concurrently with
// itself. Run returns nil when ctx is cancelled and stops early only when
// onChange returns a fatal failure.
func Run(ctx context.Context, opts Options, onChange func(context.Context) error) error {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With(logging.String(logging.FieldComponent, "watch"))
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	w := &tree{watcher: watcher, opts: opts, logger: logger}
	if err := w.addRecursive(opts.Root); err != nil {
		return err
	}
	logger.Info("watching for image changes",
		logging.String("root", opts.Root),
		logging.Duration("debounce", debounce),
		logging.String(logging.FieldEventType, "watch_start"),
	)

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		changed []string
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if !slices.Contains(changed, event.Name) {
				changed = append(changed, event.Name)
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", logging.Error(err))

		case <-fire:
			fire = nil
			logger.Info("changes detected; rerunning",
				logging.Int("paths", len(changed)),
				logging.Any("changed", changed),
				logging.String(logging.FieldEventType, "watch_trigger"),
			)
			changed = nil
			if err := onChange(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				if failures.IsFatal(err) {
					return err
				}
				logger.Warn("rerun failed; still watching", logging.Error(err))
			}
		}
	}
}

type tree struct {
	watcher *fsnotify.Watcher
	opts    Options
	logger  *slog.Logger
}

func (t *tree) skipped(dir string) bool {
	name := filepath.Base(dir)
	return strings.HasPrefix(name, ".") || slices.Contains(t.opts.SkipDirs, name)
}

func (t *tree) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path != root {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && t.skipped(path) {
			return filepath.SkipDir
		}
		if err := t.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// relevant reports whether event should trigger a rerun. New directories are
// added to the watch set and count as a change since they may hold images.
func (t *tree) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	for dir := filepath.Dir(event.Name); dir != t.opts.Root && dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
		if t.skipped(dir) {
			return false
		}
	}
	if event.Op&fsnotify.Create != 0 && isDir(event.Name) {
		if t.skipped(event.Name) {
			return false
		}
		if err := t.addRecursive(event.Name); err != nil {
			t.logger.Warn("new directory not watched", logging.String("path", event.Name), logging.Error(err))
		}
		return true
	}
	if len(t.opts.Extensions) == 0 {
		return true
	}
	return slices.Contains(t.opts.Extensions, strings.ToLower(filepath.Ext(event.Name)))
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
