package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"github.com/lilnasy/astro-optimize-pictures/internal/failures"
	"github.com/lilnasy/astro-optimize-pictures/internal/fileutil"
	"github.com/lilnasy/astro-optimize-pictures/internal/logging"
)

var streamPattern = regexp.MustCompile(`(?m)^\s*Stream #0:0(?:\[[^\]]*\])?(?:\([^)]*\))?: Video: (.+?), (\w+(?:\([^)]*\))?), (\d+)x(\d+)`)

// ImageInfo describes a probed source image.
type ImageInfo struct {
	Path   string
	Width  int
	Height int
	Format string
	Color  string
	Stat   fileutil.Stat
}

// Probe reads the dimensions of source from ffmpeg's stream description.
func (c *Client) Probe(ctx context.Context, source string) (ImageInfo, error) {
	args := ProbeArgs(source)
	command := CommandLine(c.binary, args)
	fail := func(output string, err error) (ImageInfo, error) {
		return ImageInfo{}, &failures.ProbeError{Command: command, Output: output, Path: source, Err: err}
	}

	st, ok, err := fileutil.StatFile(source)
	if err != nil {
		return fail("", err)
	}
	if !ok {
		return fail("", fmt.Errorf("file does not exist"))
	}

	c.logger.Debug("probing image", logging.String("command", command))
	proc, err := c.exec.Start(ctx, c.binary, args)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("probe %s: %w", source, err)
	}
	data, readErr := io.ReadAll(proc.Stderr())
	// ffmpeg exits non-zero when no output is given; only the text matters.
	_ = proc.Wait()
	output := string(data)
	if readErr != nil {
		return fail(output, readErr)
	}
	if err := ctx.Err(); err != nil {
		return ImageInfo{}, err
	}

	info, err := ParseStreamInfo(output)
	if err != nil {
		return fail(output, err)
	}
	info.Path = source
	info.Stat = st
	return info, nil
}

// ParseStreamInfo extracts the primary video stream description from a probe
// transcript.
func ParseStreamInfo(output string) (ImageInfo, error) {
	match := streamPattern.FindStringSubmatch(output)
	if match == nil {
		return ImageInfo{}, errors.New("no video stream description found")
	}
	width, err := strconv.Atoi(match[3])
	if err != nil {
		return ImageInfo{}, fmt.Errorf("parse width: %w", err)
	}
	height, err := strconv.Atoi(match[4])
	if err != nil {
		return ImageInfo{}, fmt.Errorf("parse height: %w", err)
	}
	if width <= 0 || height <= 0 {
		return ImageInfo{}, fmt.Errorf("invalid dimensions %dx%d", width, height)
	}
	return ImageInfo{Width: width, Height: height, Format: match[1], Color: match[2]}, nil
}
