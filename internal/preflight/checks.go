package preflight

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/lilnasy/astro-optimize-pictures/internal/deps"
	"github.com/lilnasy/astro-optimize-pictures/internal/failures"
	"github.com/lilnasy/astro-optimize-pictures/internal/ffmpeg"
	"github.com/lilnasy/astro-optimize-pictures/internal/project"
)

const downloadCheckTimeout = 5 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckProject verifies that an Astro config is reachable from dir.
func CheckProject(dir string) Result {
	const name = "Astro project"
	details, err := project.Locate(dir)
	if err != nil {
		var notFound *failures.ConfigNotFoundError
		if errors.As(err, &notFound) {
			return Result{Name: name, Detail: fmt.Sprintf("no astro.config found (checked %d paths)", len(notFound.CheckedPaths))}
		}
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (src %s)", details.Config, details.SrcDir)}
}

// CheckFFmpeg resolves ffmpeg without downloading. The returned path is empty
// when no binary was found.
func CheckFFmpeg(ctx context.Context, locator ffmpeg.Locator) (Result, string) {
	const name = "FFmpeg"
	locator.AllowDownload = false
	path, err := locator.Locate(ctx)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}, ""
	}
	return Result{Name: name, Passed: true, Detail: path}, path
}

// CheckEncoders reports one result per configured encoder.
func CheckEncoders(ctx context.Context, binary string, codecs []string) []Result {
	statuses := deps.CheckEncoders(ctx, binary, codecs)
	results := make([]Result, 0, len(statuses))
	for _, status := range statuses {
		result := Result{Name: "Encoder " + status.Name, Passed: status.Available, Detail: status.Detail}
		if status.Available {
			result.Detail = "available"
		}
		results = append(results, result)
	}
	return results
}

// CheckDownloadSource verifies that a prebuilt ffmpeg exists for platform at
// baseURL. An empty platform means the running one.
func CheckDownloadSource(ctx context.Context, baseURL, platform string) Result {
	const name = "FFmpeg download"
	if platform == "" {
		platform = runtime.GOOS + "/" + runtime.GOARCH
	}
	url := ffmpeg.DownloadURL(strings.TrimSpace(baseURL), platform)
	if url == "" {
		return Result{Name: name, Detail: fmt.Sprintf("no prebuilt ffmpeg for %s; install ffmpeg or set FFMPEG_PATH", platform)}
	}

	checkCtx, cancel := context.WithTimeout(ctx, downloadCheckTimeout)
	defer cancel()

	client := &http.Client{Timeout: downloadCheckTimeout}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, url, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("check failed (%v)", err)}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("check failed (%v)", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{Name: name, Detail: fmt.Sprintf("%s (status %d)", url, resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("not installed; will download %s", url)}
}
