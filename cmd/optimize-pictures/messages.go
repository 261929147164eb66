package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lilnasy/astro-optimize-pictures/internal/failures"
	"github.com/lilnasy/astro-optimize-pictures/internal/ffmpeg"
)

const programName = "astro-optimize-pictures"

// failureMessage explains err to the user with enough context to reproduce
// it.
func failureMessage(err error, st styler) string {
	var (
		notFound  *failures.ConfigNotFoundError
		probe     *failures.ProbeError
		tool      *failures.ToolError
		transcode *failures.TranscodeError
	)
	switch {
	case errors.As(err, &notFound):
		var b strings.Builder
		b.WriteString("Could not find an astro configuration file after looking at these paths:\n")
		for i, path := range notFound.CheckedPaths {
			fmt.Fprintf(&b, " %d) %s\n", i+1, path)
		}
		b.WriteString("\nAre you running this command inside your project?")
		return b.String()

	case errors.As(err, &probe):
		output := strings.TrimSpace(probe.Output)
		if output == "" && probe.Err != nil {
			output = probe.Err.Error()
		}
		return fmt.Sprintf("Getting information for %s from ffmpeg's output failed.\n\nThe full command run was:\n%s\n\nffmpeg's output was:\n%s",
			st.blue(probe.Path), st.yellow(probe.Command), st.red(output))

	case errors.As(err, &tool):
		return toolMessage(tool, st)

	case errors.As(err, &transcode):
		msg := fmt.Sprintf("Transcoding %s failed.\n\nThe full command run was:\n%s\n\nffmpeg's output was:\n%s",
			st.blue(transcode.SourcePath), st.yellow(transcode.Command), st.red(strings.TrimSpace(transcode.Line)))
		if transcode.LogPath != "" {
			msg += fmt.Sprintf("\n\nComplete log written to %s.", transcode.LogPath)
		}
		return msg

	default:
		return st.red(err.Error())
	}
}

func toolMessage(e *failures.ToolError, st styler) string {
	prefix := programName + " uses ffmpeg to process images. "
	switch e.Reason {
	case failures.ReasonNoBuild:
		var b strings.Builder
		fmt.Fprintf(&b, "%sA build of ffmpeg is not available for your platform (%s).\n\n", prefix, e.Platform)
		b.WriteString("Builds are provided for these platforms:\n")
		for _, p := range ffmpeg.Platforms() {
			fmt.Fprintf(&b, " - %s\n", p)
		}
		b.WriteString("\nInstall ffmpeg on your PATH or set FFMPEG_PATH.")
		return b.String()
	case failures.ReasonNetwork:
		return fmt.Sprintf("Could not make a request to %s because of this error:\n%s\n\nAre you able to access that url in a browser?",
			e.URL, st.red(errText(e.Err)))
	case failures.ReasonDownloadStatus:
		return fmt.Sprintf("%sDownloading ffmpeg from %s failed.\n\nThe server responded with status %d.\n\nAre you able to access that url in a browser?",
			prefix, e.URL, e.Status)
	case failures.ReasonWrite:
		return fmt.Sprintf("%sDownloading ffmpeg was successful, but saving it to disk failed.\n\nThis was the error that prevented ffmpeg from being written to %s:\n%s",
			prefix, e.Path, st.red(errText(e.Err)))
	default:
		if e.Path != "" {
			return fmt.Sprintf("%sThe configured binary %s is not executable.\n\nCheck FFMPEG_PATH or ffmpeg.path in your configuration.", prefix, st.blue(e.Path))
		}
		return prefix + "ffmpeg was not found on your PATH and downloads are disabled.\n\nInstall ffmpeg, set FFMPEG_PATH, or enable ffmpeg.download."
	}
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

func failedOptimizationsNote() string {
	return "Optimized versions of the images that failed to transcode will not be available in your project.\n\n" +
		"You can rerun " + programName + " to try again. Only the failed optimizations will be retried."
}
