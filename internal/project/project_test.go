package project_test

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/lilnasy/astro-optimize-pictures/internal/failures"
	"github.com/lilnasy/astro-optimize-pictures/internal/project"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestFindConfigInParent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "astro.config.ts"), "export default {}")
	nested := filepath.Join(root, "src", "pages")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg, err := project.FindConfig(nested)
	if err != nil {
		t.Fatalf("FindConfig: %v", err)
	}
	if cfg.Path != filepath.Join(root, "astro.config.ts") {
		t.Fatalf("path = %q", cfg.Path)
	}
}

func TestFindConfigPrefersEarlierExtension(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "astro.config.ts"), "ts")
	writeFile(t, filepath.Join(root, "astro.config.mjs"), "mjs")

	cfg, err := project.FindConfig(root)
	if err != nil {
		t.Fatalf("FindConfig: %v", err)
	}
	if cfg.Contents != "mjs" {
		t.Fatalf("expected mjs config, got %q", cfg.Contents)
	}
}

func TestFindConfigNotFound(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	_, err := project.FindConfig(dir)
	if !errors.Is(err, failures.ErrConfigNotFound) {
		t.Fatalf("expected config-not-found, got %v", err)
	}
	var notFound *failures.ConfigNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected *ConfigNotFoundError, got %T", err)
	}
	if len(notFound.CheckedPaths) != 3*len(project.ConfigFileNames) {
		t.Fatalf("checked %d paths", len(notFound.CheckedPaths))
	}
	if !failures.IsFatal(err) {
		t.Fatal("config-not-found should be fatal")
	}
}

func TestParseDefaultsAndOverrides(t *testing.T) {
	root := t.TempDir()
	details := project.Parse(project.ConfigFile{
		Path: filepath.Join(root, "astro.config.mjs"),
		Contents: `import { defineConfig } from 'astro/config'
export default defineConfig({
	outDir: "./build",
	srcDir : ` + "`./app`" + `,
})`,
	})
	if details.SrcDir != filepath.Join(root, "app") {
		t.Fatalf("srcDir = %q", details.SrcDir)
	}
	if details.OutDir != filepath.Join(root, "build") {
		t.Fatalf("outDir = %q", details.OutDir)
	}
	if details.PublicDir != filepath.Join(root, "public") {
		t.Fatalf("publicDir = %q", details.PublicDir)
	}
	if got := details.ManifestPath("astro-optimize-images"); got != filepath.Join(root, "node_modules", "astro-optimize-images", "manifest.ts") {
		t.Fatalf("manifest path = %q", got)
	}
}

func TestImagesFiltersAndSorts(t *testing.T) {
	src := t.TempDir()
	for _, name := range []string{
		"b.png",
		"a.JPG",
		"nested/c.webp",
		"nested/notes.txt",
		".hidden/d.png",
		"_optimized_images/e-png-15q-100w.jpeg",
		"nested/f.avif",
	} {
		writeFile(t, filepath.Join(src, name), "x")
	}

	images, err := project.Images(src, project.ScanOptions{SkipDirs: []string{"_optimized_images"}})
	if err != nil {
		t.Fatalf("Images: %v", err)
	}
	want := []string{
		filepath.Join(src, "a.JPG"),
		filepath.Join(src, "b.png"),
		filepath.Join(src, "nested", "c.webp"),
		filepath.Join(src, "nested", "f.avif"),
	}
	if !slices.Equal(images, want) {
		t.Fatalf("images = %v, want %v", images, want)
	}
}

func TestImagesInclude(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "hero.png"), "x")
	writeFile(t, filepath.Join(src, "blog", "cover.png"), "x")
	writeFile(t, filepath.Join(src, "blog", "inline.jpg"), "x")

	images, err := project.Images(src, project.ScanOptions{Include: []string{"blog/*.png", "hero.*"}})
	if err != nil {
		t.Fatalf("Images: %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("images = %v", images)
	}

	if _, err := project.Images(src, project.ScanOptions{Include: []string{"["}}); err == nil {
		t.Fatal("expected malformed pattern to fail")
	}
}

func TestRelativeKey(t *testing.T) {
	src := filepath.Join(string(filepath.Separator), "p", "src")
	if got := project.RelativeKey(src, filepath.Join(src, "assets", "a.png")); got != "assets/a.png" {
		t.Fatalf("key = %q", got)
	}
}
