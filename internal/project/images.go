package project

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"slices"
	"strings"
)

// ImageExtensions are the source formats considered for optimization.
var ImageExtensions = []string{".png", ".jpeg", ".jpg", ".avif", ".webp"}

// ScanOptions filters image discovery.
type ScanOptions struct {
	// SkipDirs are directory names never descended into.
	SkipDirs []string
	// Include, when non-empty, keeps only images whose path relative to the
	// root matches one of these patterns (path.Match syntax). A pattern
	// without a slash is matched against the file name.
	Include []string
}

// Images walks root and returns absolute image paths in lexical order.
// Hidden directories and SkipDirs are not descended into.
func Images(root string, opts ScanOptions) ([]string, error) {
	for _, pattern := range opts.Include {
		if _, err := path.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("include pattern %q: %w", pattern, err)
		}
	}

	var images []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if p != root && (strings.HasPrefix(name, ".") || slices.Contains(opts.SkipDirs, name)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !slices.Contains(ImageExtensions, strings.ToLower(filepath.Ext(name))) {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if !included(filepath.ToSlash(rel), opts.Include) {
			return nil
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		images = append(images, abs)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan images in %s: %w", root, err)
	}
	slices.Sort(images)
	return images, nil
}

func included(rel string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	base := rel[strings.LastIndex(rel, "/")+1:]
	for _, pattern := range patterns {
		subject := rel
		if !strings.Contains(pattern, "/") {
			subject = base
		}
		if ok, _ := path.Match(pattern, subject); ok {
			return true
		}
	}
	return false
}

// RelativeKey is the manifest key for an image: its path under srcDir with
// forward slashes.
func RelativeKey(srcDir, image string) string {
	rel, err := filepath.Rel(srcDir, image)
	if err != nil {
		return filepath.ToSlash(image)
	}
	return filepath.ToSlash(rel)
}
