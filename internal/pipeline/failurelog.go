package pipeline

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/lilnasy/astro-optimize-pictures/internal/failures"
	"github.com/lilnasy/astro-optimize-pictures/internal/fileutil"
	"github.com/lilnasy/astro-optimize-pictures/internal/textutil"
)

// writeFailureLog stores the ffmpeg transcript of a failed transcode under
// <dir>/<runID>/<token>.log, command line first.
func writeFailureLog(dir, runID, sourceRoot string, terr *failures.TranscodeError) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", nil
	}
	name := terr.SourcePath
	if rel, err := filepath.Rel(sourceRoot, terr.SourcePath); err == nil && !strings.HasPrefix(rel, "..") {
		name = rel
	}
	path := filepath.Join(dir, textutil.SanitizeToken(runID), textutil.PathToken(filepath.ToSlash(name))+".log")
	err := fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		if _, err := fmt.Fprintf(w, "$ %s\n\n", terr.Command); err != nil {
			return err
		}
		_, err := io.WriteString(w, terr.Log)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("write failure log: %w", err)
	}
	return path, nil
}
