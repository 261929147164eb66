package progress

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"regexp"
	"strings"
)

// DefaultFatalMarkers are the case-sensitive substrings that mark a chunk as
// a fatal ffmpeg error.
var DefaultFatalMarkers = []string{
	"Error",
	"error",
	"Conversion failed",
	"Could not open file",
	"Invalid argument",
	"Unable to find a suitable output format",
	"At least one output file must be specified",
	"Unknown encoder",
}

var (
	outputPattern = regexp.MustCompile(`Output #\d+, [^\s]+, to '([^']+)':`)
	// fileNamePattern matches the input and output announcements, whose
	// quoted file names are user paths and never diagnostics.
	fileNamePattern = regexp.MustCompile(`((?:Input|Output) #\d+, [^\s]+, (?:from|to) )'.*':`)
)

const maxChunkSize = 1 << 20

// Event announces that ffmpeg started writing an output file.
type Event struct {
	DestinationPath string
}

// Fatal is the first chunk that matched a fatal marker.
type Fatal struct {
	Line string
	Log  *Log
}

// Stream is the parsed view of one diagnostic stream.
type Stream struct {
	events  chan Event
	fatal   *Cell[Fatal]
	log     *Log
	closed  *Cell[error]
	markers []string
}

// Parse starts reading r in the background. Callers must drain Events until
// it closes; the reader blocks while the channel is full.
func Parse(r io.Reader, markers []string) *Stream {
	if len(markers) == 0 {
		markers = DefaultFatalMarkers
	}
	s := &Stream{
		events:  make(chan Event, 16),
		fatal:   NewCell[Fatal](),
		log:     newLog(),
		closed:  NewCell[error](),
		markers: markers,
	}
	go s.run(r)
	return s
}

func (s *Stream) run(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxChunkSize)
	scanner.Split(scanChunks)
	for scanner.Scan() {
		s.consume(scanner.Text())
	}
	if scanner.Err() != nil {
		// Keep the pipe empty so ffmpeg can exit.
		_, _ = io.Copy(io.Discard, r)
	}
	close(s.events)
	s.log.finish()
	s.closed.Set(scanner.Err())
}

func (s *Stream) consume(chunk string) {
	s.log.append(chunk)
	if match := outputPattern.FindStringSubmatch(chunk); match != nil {
		s.events <- Event{DestinationPath: match[1]}
	}
	if _, latched := s.fatal.Get(); latched {
		return
	}
	diagnostic := fileNamePattern.ReplaceAllString(chunk, "$1'':")
	for _, marker := range s.markers {
		if strings.Contains(diagnostic, marker) {
			s.fatal.Set(Fatal{Line: chunk, Log: s.log})
			return
		}
	}
}

// Events yields one Event per announced output, in announcement order. The
// channel closes at EOF.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// FatalCell exposes the fatal latch so callers can react before EOF.
func (s *Stream) FatalCell() *Cell[Fatal] {
	return s.fatal
}

// Log returns the transcript, complete once Log().Done() is closed.
func (s *Stream) Log() *Log {
	return s.log
}

// Wait blocks until EOF and returns the latched fatal chunk, if any. The
// error reports a read failure on the underlying stream.
func (s *Stream) Wait(ctx context.Context) (*Fatal, error) {
	readErr, err := s.closed.Wait(ctx)
	if err != nil {
		return nil, err
	}
	if fatal, ok := s.fatal.Get(); ok {
		return &fatal, readErr
	}
	return nil, readErr
}

// scanChunks splits on either line feed or carriage return; ffmpeg rewrites
// its status line in place with bare carriage returns.
func scanChunks(data []byte, atEOF bool) (int, []byte, error) {
	start := 0
	for start < len(data) && (data[start] == '\n' || data[start] == '\r') {
		start++
	}
	if atEOF && start == len(data) {
		return len(data), nil, nil
	}
	if i := bytes.IndexAny(data[start:], "\r\n"); i >= 0 {
		return start + i + 1, data[start : start+i], nil
	}
	if atEOF {
		return len(data), data[start:], nil
	}
	return start, nil, nil
}
