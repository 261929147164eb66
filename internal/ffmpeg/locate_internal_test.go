package ffmpeg

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lilnasy/astro-optimize-pictures/internal/failures"
)

func missingLookPath(string) (string, error) { return "", errors.New("not found") }

func TestLocatePrefersConfiguredPath(t *testing.T) {
	l := Locator{
		ConfiguredPath: "/opt/ffmpeg/bin/ffmpeg",
		lookPath: func(name string) (string, error) {
			if name == "/opt/ffmpeg/bin/ffmpeg" {
				return name, nil
			}
			return "/usr/bin/ffmpeg", nil
		},
	}
	got, err := l.Locate(context.Background())
	if err != nil || got != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("Locate = %q, %v", got, err)
	}
}

func TestLocateRejectsBrokenConfiguredPath(t *testing.T) {
	l := Locator{ConfiguredPath: "/nope/ffmpeg", lookPath: missingLookPath}
	_, err := l.Locate(context.Background())
	var toolErr *failures.ToolError
	if !errors.As(err, &toolErr) || toolErr.Reason != failures.ReasonNotFound {
		t.Fatalf("expected not-found ToolError, got %v", err)
	}
}

func TestLocateFallsBackToPath(t *testing.T) {
	l := Locator{CacheDir: t.TempDir(), Platform: "linux/amd64", lookPath: func(string) (string, error) { return "/usr/bin/ffmpeg", nil }}
	got, err := l.Locate(context.Background())
	if err != nil || got != "/usr/bin/ffmpeg" {
		t.Fatalf("Locate = %q, %v", got, err)
	}
}

func TestLocateUsesCachedDownload(t *testing.T) {
	dir := t.TempDir()
	cached := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(cached, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	l := Locator{CacheDir: dir, Platform: "linux/amd64", lookPath: missingLookPath}
	got, err := l.Locate(context.Background())
	if err != nil || got != cached {
		t.Fatalf("Locate = %q, %v", got, err)
	}
}

func TestLocateWithoutDownloadFails(t *testing.T) {
	l := Locator{CacheDir: t.TempDir(), Platform: "linux/amd64", lookPath: missingLookPath}
	if _, err := l.Locate(context.Background()); !errors.Is(err, failures.ErrToolUnavailable) {
		t.Fatalf("expected ErrToolUnavailable, got %v", err)
	}
}

func TestLocateDownloadsBuild(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ffmpeg-linux-x86_64" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("binary"))
	}))
	defer server.Close()

	dir := t.TempDir()
	l := Locator{
		CacheDir:      dir,
		AllowDownload: true,
		BaseURL:       server.URL + "/",
		Platform:      "linux/amd64",
		HTTPClient:    server.Client(),
		lookPath:      missingLookPath,
	}
	got, err := l.Locate(context.Background())
	if err != nil {
		t.Fatalf("Locate returned error: %v", err)
	}
	if got != filepath.Join(dir, "ffmpeg") {
		t.Fatalf("unexpected path %q", got)
	}
	info, err := os.Stat(got)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0o100 == 0 {
		t.Fatalf("expected executable download, got %v", info.Mode())
	}
}

func TestLocateReportsDownloadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	l := Locator{CacheDir: t.TempDir(), AllowDownload: true, BaseURL: server.URL, Platform: "darwin/amd64", HTTPClient: server.Client(), lookPath: missingLookPath}
	_, err := l.Locate(context.Background())
	var toolErr *failures.ToolError
	if !errors.As(err, &toolErr) || toolErr.Reason != failures.ReasonDownloadStatus || toolErr.Status != http.StatusForbidden {
		t.Fatalf("expected download status error, got %v", err)
	}
}

func TestLocateReportsMissingPlatformBuild(t *testing.T) {
	l := Locator{CacheDir: t.TempDir(), AllowDownload: true, Platform: "linux/arm64", lookPath: missingLookPath}
	_, err := l.Locate(context.Background())
	var toolErr *failures.ToolError
	if !errors.As(err, &toolErr) || toolErr.Reason != failures.ReasonNoBuild {
		t.Fatalf("expected no-build error, got %v", err)
	}
}

func TestDownloadURL(t *testing.T) {
	if got := DownloadURL("", "windows/amd64"); got != DefaultDownloadBaseURL+"ffmpeg-windows-x86_64.exe" {
		t.Fatalf("DownloadURL = %q", got)
	}
	if DownloadURL("", "plan9/386") != "" {
		t.Fatal("expected no URL for unsupported platform")
	}
}

func TestPlatformsAreSorted(t *testing.T) {
	got := Platforms()
	want := []string{"darwin/amd64", "linux/amd64", "windows/amd64"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("Platforms() = %v, want %v", got, want)
	}
}
