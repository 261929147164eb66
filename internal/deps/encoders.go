package deps

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const encoderListTimeout = 10 * time.Second

// ListEncoders returns the video encoder names compiled into the ffmpeg at
// binary.
func ListEncoders(ctx context.Context, binary string) (map[string]struct{}, error) {
	ctx, cancel := context.WithTimeout(ctx, encoderListTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, binary, "-hide_banner", "-encoders").Output() //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("list encoders: %w", err)
	}
	return ParseEncoders(string(out)), nil
}

// ParseEncoders extracts video encoder names from `ffmpeg -encoders` output.
// Entries follow the "------" separator as a six-character capability column
// whose first letter is the media type, then the encoder name.
func ParseEncoders(output string) map[string]struct{} {
	encoders := make(map[string]struct{})
	scanner := bufio.NewScanner(strings.NewReader(output))
	listing := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !listing {
			listing = strings.HasPrefix(line, "------")
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields[0]) != 6 || fields[0][0] != 'V' {
			continue
		}
		encoders[fields[1]] = struct{}{}
	}
	return encoders
}

// CheckEncoders reports, per codec, whether binary can encode with it.
func CheckEncoders(ctx context.Context, binary string, codecs []string) []Status {
	available, err := ListEncoders(ctx, binary)
	results := make([]Status, 0, len(codecs))
	seen := make(map[string]struct{}, len(codecs))
	for _, codec := range codecs {
		codec = strings.TrimSpace(codec)
		if codec == "" {
			continue
		}
		if _, dup := seen[codec]; dup {
			continue
		}
		seen[codec] = struct{}{}
		status := Status{
			Name:        codec,
			Command:     binary,
			Description: "ffmpeg encoder",
		}
		switch {
		case err != nil:
			status.Detail = err.Error()
		default:
			if _, ok := available[codec]; ok {
				status.Available = true
			} else {
				status.Detail = fmt.Sprintf("encoder %q not compiled into %s", codec, binary)
			}
		}
		results = append(results, status)
	}
	return results
}
