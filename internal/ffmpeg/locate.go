package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/lilnasy/astro-optimize-pictures/internal/failures"
	"github.com/lilnasy/astro-optimize-pictures/internal/fileutil"
	"github.com/lilnasy/astro-optimize-pictures/internal/logging"
)

// DefaultDownloadBaseURL hosts static ffmpeg builds with the encoders the
// optimizer relies on.
const DefaultDownloadBaseURL = "https://github.com/lilnasy/ffmpeg-actions/releases/download/ffmpeg-2023-05-30-19-42/"

const defaultDownloadTimeout = 5 * time.Minute

var platformAssets = map[string]string{
	"linux/amd64":   "ffmpeg-linux-x86_64",
	"windows/amd64": "ffmpeg-windows-x86_64.exe",
	"darwin/amd64":  "ffmpeg-macos-x86_64",
}

// Locator resolves the ffmpeg binary to use for a run.
type Locator struct {
	// ConfiguredPath is an explicit binary, typically from FFMPEG_PATH.
	ConfiguredPath string
	// CacheDir holds a previously downloaded build.
	CacheDir      string
	AllowDownload bool
	BaseURL       string
	Timeout       time.Duration
	Platform      string
	HTTPClient    *http.Client
	Logger        *slog.Logger

	lookPath func(string) (string, error)
}

// Locate returns an executable ffmpeg path. Lookup order: configured path,
// cached download, PATH, then a fresh download when allowed.
func (l Locator) Locate(ctx context.Context) (string, error) {
	logger := l.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	if configured := strings.TrimSpace(l.ConfiguredPath); configured != "" {
		if resolved, err := l.look(configured); err == nil {
			return resolved, nil
		}
		return "", &failures.ToolError{Reason: failures.ReasonNotFound, Path: configured, Err: fmt.Errorf("configured ffmpeg %q is not executable", configured)}
	}

	if cached := l.cachedPath(); cached != "" {
		if info, err := os.Stat(cached); err == nil && isExecutable(info) {
			logger.Debug("using cached ffmpeg", logging.String("path", cached))
			return cached, nil
		}
	}

	if resolved, err := l.look("ffmpeg"); err == nil {
		return resolved, nil
	}

	if !l.AllowDownload {
		return "", &failures.ToolError{Reason: failures.ReasonNotFound}
	}
	return l.download(ctx, logger)
}

func (l Locator) look(name string) (string, error) {
	if l.lookPath != nil {
		return l.lookPath(name)
	}
	return exec.LookPath(name)
}

func (l Locator) platform() string {
	if l.Platform != "" {
		return l.Platform
	}
	return runtime.GOOS + "/" + runtime.GOARCH
}

func (l Locator) cachedPath() string {
	if strings.TrimSpace(l.CacheDir) == "" {
		return ""
	}
	name := "ffmpeg"
	if strings.HasPrefix(l.platform(), "windows/") {
		name += ".exe"
	}
	return filepath.Join(l.CacheDir, name)
}

// Platforms lists the GOOS/GOARCH pairs with a published build.
func Platforms() []string {
	platforms := make([]string, 0, len(platformAssets))
	for p := range platformAssets {
		platforms = append(platforms, p)
	}
	slices.Sort(platforms)
	return platforms
}

// DownloadURL returns the build URL for platform, or "" when none exists.
func DownloadURL(baseURL, platform string) string {
	asset, ok := platformAssets[platform]
	if !ok {
		return ""
	}
	if baseURL == "" {
		baseURL = DefaultDownloadBaseURL
	}
	return strings.TrimSuffix(baseURL, "/") + "/" + asset
}

func (l Locator) download(ctx context.Context, logger *slog.Logger) (string, error) {
	platform := l.platform()
	url := DownloadURL(l.BaseURL, platform)
	if url == "" {
		return "", &failures.ToolError{Reason: failures.ReasonNoBuild, Platform: platform}
	}
	dest := l.cachedPath()
	if dest == "" {
		return "", &failures.ToolError{Reason: failures.ReasonWrite, URL: url, Err: errors.New("no cache directory configured")}
	}

	client := l.HTTPClient
	if client == nil {
		timeout := l.Timeout
		if timeout <= 0 {
			timeout = defaultDownloadTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	logger.Info("downloading ffmpeg", logging.String("url", url), logging.String("path", dest))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &failures.ToolError{Reason: failures.ReasonNetwork, URL: url, Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", &failures.ToolError{Reason: failures.ReasonNetwork, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &failures.ToolError{Reason: failures.ReasonDownloadStatus, URL: url, Status: resp.StatusCode}
	}

	body := &trackingReader{r: resp.Body}
	var written int64
	err = fileutil.WriteAtomic(dest, 0o755, func(w io.Writer) error {
		n, err := io.Copy(w, body)
		written = n
		return err
	})
	if err != nil {
		if body.err != nil {
			return "", &failures.ToolError{Reason: failures.ReasonNetwork, URL: url, Err: body.err}
		}
		return "", &failures.ToolError{Reason: failures.ReasonWrite, URL: url, Path: dest, Err: err}
	}
	logger.Info("ffmpeg downloaded", logging.String("path", dest), logging.Int64("bytes", written))
	return dest, nil
}

// trackingReader remembers read failures so they can be told apart from
// write failures.
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		t.err = err
	}
	return n, err
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
