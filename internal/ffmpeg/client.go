package ffmpeg

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/lilnasy/astro-optimize-pictures/internal/logging"
	"github.com/lilnasy/astro-optimize-pictures/internal/progress"
)

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithFatalMarkers replaces the substrings that mark a fatal error.
func WithFatalMarkers(markers []string) Option {
	return func(c *Client) {
		if len(markers) > 0 {
			c.markers = append([]string(nil), markers...)
		}
	}
}

// WithLogger attaches a logger for command tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client wraps ffmpeg CLI interactions.
type Client struct {
	binary  string
	exec    Executor
	markers []string
	logger  *slog.Logger
}

// New constructs an ffmpeg client for the given binary path.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("ffmpeg binary required")
	}
	client := &Client{
		binary:  binary,
		exec:    commandExecutor{},
		markers: progress.DefaultFatalMarkers,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Binary returns the ffmpeg executable this client runs.
func (c *Client) Binary() string {
	return c.binary
}
