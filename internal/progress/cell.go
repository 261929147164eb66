package progress

import (
	"context"
	"sync"
)

// Cell is a write-once value with any number of waiters.
type Cell[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
}

// NewCell returns an empty cell.
func NewCell[T any]() *Cell[T] {
	return &Cell[T]{done: make(chan struct{})}
}

// Set stores v if the cell is empty and reports whether it did.
func (c *Cell[T]) Set(v T) bool {
	stored := false
	c.once.Do(func() {
		c.value = v
		stored = true
		close(c.done)
	})
	return stored
}

// Done is closed once a value has been stored.
func (c *Cell[T]) Done() <-chan struct{} {
	return c.done
}

// Get returns the stored value without blocking.
func (c *Cell[T]) Get() (T, bool) {
	select {
	case <-c.done:
		return c.value, true
	default:
		var zero T
		return zero, false
	}
}

// Wait blocks until a value is stored or ctx ends.
func (c *Cell[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-c.done:
		return c.value, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
