// Package lazy provides a single-initialisation cell for values that are expensive to
// build (e.g. a bus with open connections) and must only be built on first use.
//
// Unlike sync.Once, a Cell does not deadlock if its constructor (directly or indirectly)
// asks the same cell for its value: every Get that arrives while the construction is
// running fails with ErrReentrant. A failed construction is not cached, the next Get
// tries again.
package lazy

import (
	"errors"
	"sync"
)

// ErrReentrant is returned by Get while the value of the Cell is being constructed
var ErrReentrant = errors.New("lazy: re-entrant construction")

// Cell holds a lazily constructed value of type T
type Cell[T any] struct {
	mu           sync.Mutex
	construct    func() (T, error)
	value        T
	done         bool
	constructing bool
}

// New creates a cell that builds its value with construct on the first Get
func New[T any](construct func() (T, error)) *Cell[T] {
	return &Cell[T]{construct: construct}
}

// Get returns the value, constructing it on the first call
func (c *Cell[T]) Get() (T, error) {
	c.mu.Lock()
	if c.done {
		defer c.mu.Unlock()
		return c.value, nil
	}
	if c.constructing {
		c.mu.Unlock()
		var zero T
		return zero, ErrReentrant
	}
	c.constructing = true
	c.mu.Unlock()

	value, err := c.construct()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.constructing = false
	if err != nil {
		return value, err
	}
	c.value = value
	c.done = true
	return value, nil
}

// Loaded reports whether the value was constructed successfully
func (c *Cell[T]) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Reset drops the constructed value, the next Get constructs it again
func (c *Cell[T]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.value = zero
	c.done = false
}
