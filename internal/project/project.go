package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"

	"github.com/lilnasy/astro-optimize-pictures/internal/failures"
)

// ConfigFileNames are tried in order within each searched directory.
var ConfigFileNames = []string{
	"astro.config.mjs",
	"astro.config.mts",
	"astro.config.js",
	"astro.config.ts",
	"astro.config.cjs",
	"astro.config.cts",
}

// ConfigFile is a located Astro config.
type ConfigFile struct {
	Path     string
	Contents string
}

// Details are the project directories, all absolute.
type Details struct {
	Root      string
	Config    string
	SrcDir    string
	OutDir    string
	PublicDir string
}

// ManifestDir is the generated package inside node_modules.
func (d Details) ManifestDir(packageName string) string {
	return filepath.Join(d.Root, "node_modules", packageName)
}

// ManifestPath is where the generated manifest module is written.
func (d Details) ManifestPath(packageName string) string {
	return filepath.Join(d.ManifestDir(packageName), "manifest.ts")
}

// OutputDir is where transcoded variants are written.
func (d Details) OutputDir(packageName, optimizedFolder string) string {
	return filepath.Join(d.ManifestDir(packageName), optimizedFolder)
}

// FindConfig searches dir, its parent, and its grandparent. The returned error
// is a *failures.ConfigNotFoundError listing every path checked.
func FindConfig(dir string) (ConfigFile, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return ConfigFile{}, fmt.Errorf("resolve working directory: %w", err)
	}
	dirs := []string{abs, filepath.Dir(abs), filepath.Dir(filepath.Dir(abs))}

	var checked []string
	for _, d := range dirs {
		for _, name := range ConfigFileNames {
			candidate := filepath.Join(d, name)
			// At the filesystem root the parents collapse onto the same paths.
			if slices.Contains(checked, candidate) {
				continue
			}
			checked = append(checked, candidate)
			info, err := os.Stat(candidate)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}
				return ConfigFile{}, fmt.Errorf("stat %s: %w", candidate, err)
			}
			if info.IsDir() {
				continue
			}
			data, err := os.ReadFile(candidate)
			if err != nil {
				return ConfigFile{}, fmt.Errorf("read astro config: %w", err)
			}
			return ConfigFile{Path: candidate, Contents: string(data)}, nil
		}
	}
	return ConfigFile{}, &failures.ConfigNotFoundError{CheckedPaths: checked}
}

var fieldPatterns = map[string]*regexp.Regexp{
	"srcDir":    regexp.MustCompile(`srcDir\s*:\s*["'` + "`" + `]([^"'` + "`" + `]*)["'` + "`" + `]`),
	"outDir":    regexp.MustCompile(`outDir\s*:\s*["'` + "`" + `]([^"'` + "`" + `]*)["'` + "`" + `]`),
	"publicDir": regexp.MustCompile(`publicDir\s*:\s*["'` + "`" + `]([^"'` + "`" + `]*)["'` + "`" + `]`),
}

// Parse extracts the project directories from a config file. Each field is
// matched independently and defaults to ./src, ./dist, and ./public.
func Parse(cfg ConfigFile) Details {
	root := filepath.Dir(cfg.Path)
	field := func(name, fallback string) string {
		value := fallback
		if m := fieldPatterns[name].FindStringSubmatch(cfg.Contents); m != nil && m[1] != "" {
			value = m[1]
		}
		if filepath.IsAbs(value) {
			return filepath.Clean(value)
		}
		return filepath.Join(root, filepath.FromSlash(value))
	}
	return Details{
		Root:      root,
		Config:    cfg.Path,
		SrcDir:    field("srcDir", "./src"),
		OutDir:    field("outDir", "./dist"),
		PublicDir: field("publicDir", "./public"),
	}
}

// Locate combines FindConfig and Parse.
func Locate(dir string) (Details, error) {
	cfg, err := FindConfig(dir)
	if err != nil {
		return Details{}, err
	}
	return Parse(cfg), nil
}
