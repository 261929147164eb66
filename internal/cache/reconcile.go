package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/lilnasy/astro-optimize-pictures/internal/fileutil"
	"github.com/lilnasy/astro-optimize-pictures/internal/plan"
)

// Reconcile partitions tasks into outputs already on disk and outputs that
// still need transcoding. Destination directories are created as a side
// effect because ffmpeg does not create them.
func Reconcile(tasks []plan.Task) (cached, required []plan.Task, err error) {
	dirs := make(map[string]struct{})
	for _, task := range tasks {
		dir := filepath.Dir(task.DestinationPath)
		if _, ok := dirs[dir]; ok {
			continue
		}
		dirs[dir] = struct{}{}
		if err := fileutil.EnsureDir(dir); err != nil {
			return nil, nil, fmt.Errorf("create output directory %s: %w", dir, err)
		}
	}

	for _, task := range tasks {
		st, ok, err := inspect(task.DestinationPath)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			task.Stat = nil
			task.Status = plan.Pending
			required = append(required, task)
			continue
		}
		task.Stat = &st
		task.Status = plan.Cached
		cached = append(cached, task)
	}
	return cached, required, nil
}

// Restat records the outcome of a transcode. Tasks whose destination exists
// and is non-empty become Transcoded; the rest become Failed and any
// zero-byte leftovers are removed.
func Restat(tasks []plan.Task) ([]plan.Task, error) {
	out := make([]plan.Task, 0, len(tasks))
	var errs []error
	for _, task := range tasks {
		st, ok, err := inspect(task.DestinationPath)
		if err != nil {
			errs = append(errs, err)
		}
		if ok {
			task.Stat = &st
			task.Status = plan.Transcoded
		} else {
			task.Stat = nil
			task.Status = plan.Failed
		}
		out = append(out, task)
	}
	return out, errors.Join(errs...)
}

// inspect stats path, deleting it when it is empty. ok is true only for a
// non-empty regular file.
func inspect(path string) (fileutil.Stat, bool, error) {
	st, exists, err := fileutil.StatFile(path)
	if err != nil {
		return fileutil.Stat{}, false, fmt.Errorf("stat %s: %w", path, err)
	}
	if !exists {
		return fileutil.Stat{}, false, nil
	}
	if st.Size == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fileutil.Stat{}, false, fmt.Errorf("remove empty output %s: %w", path, err)
		}
		return fileutil.Stat{}, false, nil
	}
	return st, true, nil
}
