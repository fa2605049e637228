// Package ringbuf provides a fixed-capacity buffer that overwrites its
// oldest element once full. It is safe for one writer and any number of
// concurrent snapshot readers.
package ringbuf

import "sync"

// Buffer is a bounded FIFO of the most recent Push values. Capacity is fixed
// for the buffer's lifetime; there is no resize.
type Buffer[T any] struct {
	mu    sync.RWMutex
	items []T
	head  int // index of the oldest element
	size  int
}

// New creates a Buffer holding at most capacity elements. A capacity below
// one is treated as one.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Push appends v, evicting the oldest element first when the buffer is full.
func (b *Buffer[T]) Push(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size < len(b.items) {
		b.items[(b.head+b.size)%len(b.items)] = v
		b.size++
		return
	}
	b.items[b.head] = v
	b.head = (b.head + 1) % len(b.items)
}

// Len returns the number of elements currently held.
func (b *Buffer[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items)
}

// Snapshot returns a copy of the contents in arrival order, oldest first.
// The copy is taken at a single consistent point; the caller may use it
// without further synchronization.
func (b *Buffer[T]) Snapshot() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]T, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.items[(b.head+i)%len(b.items)]
	}
	return out
}
