package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lilnasy/astro-optimize-pictures/internal/plan"
)

// ProbeArgs returns the arguments for a diagnostic-only run over source.
func ProbeArgs(source string) []string {
	return []string{"-hide_banner", "-nostdin", "-i", source}
}

// TranscodeArgs builds one invocation that writes every task's output from a
// single decode of source.
func TranscodeArgs(source string, tasks []plan.Task) []string {
	args := []string{"-hide_banner", "-nostdin", "-y", "-i", source}
	for _, task := range tasks {
		args = append(args,
			"-map", "0:v:0",
			"-frames:v", "1",
			"-c:v", task.Codec,
			"-vf", scaleFilter(task.Width, task.Height),
		)
		args = append(args, qualityArgs(task.Codec, task.Quality)...)
		if task.Format == plan.JPEG {
			args = append(args, "-update", "1")
		}
		args = append(args, task.DestinationPath)
	}
	return args
}

func scaleFilter(width, height int) string {
	return fmt.Sprintf("scale=%d:%d", width, height)
}

// qualityArgs selects the quality flag understood by codec.
func qualityArgs(codec string, quality int) []string {
	q := strconv.Itoa(quality)
	switch codec {
	case "libaom-av1", "libsvtav1":
		return []string{"-b:v", "0", "-crf", q}
	case "librav1e":
		return []string{"-qp", q}
	default:
		return []string{"-q:v", q}
	}
}

// CommandLine renders binary and args for logs and error reports.
func CommandLine(binary string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, quoteArg(binary))
	for _, arg := range args {
		parts = append(parts, quoteArg(arg))
	}
	return strings.Join(parts, " ")
}

func quoteArg(arg string) string {
	if arg == "" {
		return `""`
	}
	if !strings.ContainsAny(arg, " \t\"'\\$") {
		return arg
	}
	return strconv.Quote(arg)
}
