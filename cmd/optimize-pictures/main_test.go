package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/lilnasy/astro-optimize-pictures/internal/ffmpeg"
	"github.com/lilnasy/astro-optimize-pictures/internal/ledger"
)

type fakeProcess struct{ stderr io.Reader }

func (p fakeProcess) Stderr() io.Reader { return p.stderr }
func (p fakeProcess) Wait() error       { return nil }

// fakeFFmpeg probes every source as 800x600 and writes each requested output.
type fakeFFmpeg struct{}

func (fakeFFmpeg) Start(_ context.Context, _ string, args []string) (ffmpeg.Process, error) {
	source := args[indexOf(args, "-i")+1]
	if indexOf(args, "-map") < 0 {
		out := fmt.Sprintf("Input #0, png_pipe, from '%s':\n  Stream #0:0: Video: png, rgb24(pc), 800x600\n", source)
		return fakeProcess{strings.NewReader(out)}, nil
	}
	var dests []string
	for i := indexOf(args, "-map") + 1; i < len(args); i++ {
		if args[i] == "-map" {
			dests = append(dests, args[i-1])
		}
	}
	dests = append(dests, args[len(args)-1])
	var b strings.Builder
	for i, dest := range dests {
		if err := os.WriteFile(dest, []byte("variant"), 0o644); err != nil {
			return nil, err
		}
		fmt.Fprintf(&b, "Output #%d, image2, to '%s':\n", i, dest)
	}
	return fakeProcess{strings.NewReader(b.String())}, nil
}

func indexOf(args []string, value string) int {
	for i, a := range args {
		if a == value {
			return i
		}
	}
	return -1
}

type cliTestEnv struct {
	base       string
	root       string
	configPath string
	ffmpeg     string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stub")
	}

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("XDG_CACHE_HOME", "")

	env := &cliTestEnv{
		base:       base,
		root:       filepath.Join(base, "site"),
		configPath: filepath.Join(base, "config.toml"),
		ffmpeg:     filepath.Join(base, "bin", "ffmpeg"),
	}
	writeFile(t, env.ffmpeg, "#!/bin/sh\ncat <<'EOF'\n ------\n V....D libwebp  libwebp WebP image\n V..... mjpeg  MJPEG (Motion JPEG)\nEOF\n", 0o755)
	t.Setenv("FFMPEG_PATH", env.ffmpeg)

	writeFile(t, env.configPath, fmt.Sprintf(`[paths]
log_dir = %q
cache_dir = %q

[ledger]
enabled = true
path = %q
`, filepath.Join(base, "logs"), filepath.Join(base, "cache"), filepath.Join(base, "history.db")), 0o644)

	writeFile(t, filepath.Join(env.root, "astro.config.mjs"), "export default { srcDir: './src' }\n", 0o644)
	writeFile(t, filepath.Join(env.root, "src", "images", "a.png"), "source image bytes", 0o644)
	writeFile(t, filepath.Join(env.root, "src", "images", "b.jpg"), "source image bytes", 0o644)
	return env
}

func writeFile(t *testing.T, path, content string, mode os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := buildRootCommand(&commandContext{executor: fakeFFmpeg{}})
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath, "--cwd", env.root}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func TestOptimizeWritesManifestAndHistory(t *testing.T) {
	env := setupCLITestEnv(t)

	out, stderr, err := runCLI(t, env, "--concurrency", "2")
	if err != nil {
		t.Fatalf("optimize: %v\nstderr: %s", err, stderr)
	}
	requireContains(t, out, "Ready to optimize 2 images in 1 folders.")

	manifestPath := filepath.Join(env.root, "node_modules", "astro-optimize-images", "manifest.ts")
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	manifest := string(data)
	requireContains(t, manifest, `"images/a.png"`)
	requireContains(t, manifest, `"images/b.jpg"`)
	requireContains(t, manifest, "} as const")

	out, stderr, err = runCLI(t, env)
	if err != nil {
		t.Fatalf("second optimize: %v\nstderr: %s", err, stderr)
	}
	requireContains(t, out, "0 new outputs")
	again, err := os.ReadFile(manifestPath)
	if err != nil {
		t.Fatalf("reread manifest: %v", err)
	}
	if string(again) != manifest {
		t.Fatal("manifest changed on an idempotent rerun")
	}

	out, _, err = runCLI(t, env, "history", "--output", "json")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var runs []ledger.Run
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("decode history: %v\n%s", err, out)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 recorded runs, got %d", len(runs))
	}
	if runs[0].Transcoded != 0 || runs[1].Transcoded == 0 {
		t.Fatalf("unexpected transcode counts: newest=%d oldest=%d", runs[0].Transcoded, runs[1].Transcoded)
	}

	out, _, err = runCLI(t, env, "history", "--output", "yaml", "--limit", "1")
	if err != nil {
		t.Fatalf("history yaml: %v", err)
	}
	requireContains(t, out, "project_root: "+env.root)
}

func TestOptimizeDryRunLeavesProjectUntouched(t *testing.T) {
	env := setupCLITestEnv(t)

	out, stderr, err := runCLI(t, env, "optimize", "--dry-run", "--formats", "webp", "--widths", "320")
	if err != nil {
		t.Fatalf("dry run: %v\nstderr: %s", err, stderr)
	}
	requireContains(t, out, "Dry run:")
	requireContains(t, out, "a-png-")

	manifestPath := filepath.Join(env.root, "node_modules", "astro-optimize-images", "manifest.ts")
	if _, err := os.Stat(manifestPath); !os.IsNotExist(err) {
		t.Fatalf("dry run wrote a manifest: %v", err)
	}
}

func TestOptimizeReportsMissingProject(t *testing.T) {
	env := setupCLITestEnv(t)
	env.root = t.TempDir()

	_, stderr, err := runCLI(t, env)
	var reported *reportedError
	if !errors.As(err, &reported) {
		t.Fatalf("expected a reported error, got %v", err)
	}
	requireContains(t, stderr, "Could not find an astro configuration file")
	requireContains(t, stderr, " 1) "+filepath.Join(env.root, "astro.config.mjs"))
}

func TestOptimizeRejectsUnknownFormat(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, env, "--formats", "gif"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "Formats: ")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, env, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, env, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}
}

func TestDoctorPassesWithLocalFFmpeg(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "doctor")
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	requireContains(t, out, "Encoder libwebp")
	requireContains(t, out, "All checks passed.")
}

func TestDoctorFailsWithoutProject(t *testing.T) {
	env := setupCLITestEnv(t)
	env.root = t.TempDir()

	out, _, err := runCLI(t, env, "doctor")
	if err == nil {
		t.Fatal("expected doctor to fail")
	}
	requireContains(t, out, "[ERROR]")
}
