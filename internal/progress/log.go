package progress

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// Log accumulates every chunk read from a stream. Chunks are stored with a
// trailing newline so the transcript reads like the tool's own output.
type Log struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed *Cell[struct{}]
}

func newLog() *Log {
	return &Log{closed: NewCell[struct{}]()}
}

func (l *Log) append(chunk string) {
	l.mu.Lock()
	l.buf.WriteString(chunk)
	l.buf.WriteByte('\n')
	l.mu.Unlock()
}

func (l *Log) finish() {
	l.closed.Set(struct{}{})
}

// Done is closed once the underlying stream has reached EOF.
func (l *Log) Done() <-chan struct{} {
	return l.closed.Done()
}

// Wait blocks until the log is complete.
func (l *Log) Wait(ctx context.Context) error {
	_, err := l.closed.Wait(ctx)
	return err
}

// Reader returns a reader over the chunks captured so far.
func (l *Log) Reader() io.Reader {
	l.mu.Lock()
	defer l.mu.Unlock()
	return bytes.NewReader(bytes.Clone(l.buf.Bytes()))
}

// WriteTo copies the captured chunks to w.
func (l *Log) WriteTo(w io.Writer) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n, err := w.Write(l.buf.Bytes())
	return int64(n), err
}

// String returns the captured chunks.
func (l *Log) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.String()
}
