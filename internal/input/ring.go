package input

import "sync"

// Ring is a bounded channel with overwrite-oldest semantics: producers never
// block, and when the buffer is full the oldest value is discarded.
// Readers treat C() as a normal channel.
type Ring[T any] struct {
	mu     sync.Mutex
	ch     chan T
	closed bool
}

// NewRing creates a ring with the given capacity.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("input: ring capacity must be > 0")
	}
	return &Ring[T]{ch: make(chan T, capacity)}
}

func (r *Ring[T]) C() <-chan T {
	return r.ch
}

// Send inserts v, dropping the oldest value if the buffer is full. It reports
// whether a value was dropped. Sending on a closed ring is a no-op.
func (r *Ring[T]) Send(v T) (dropped bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	for {
		select {
		case r.ch <- v:
			return dropped
		default:
			select {
			case <-r.ch:
				dropped = true
			default:
			}
		}
	}
}

func (r *Ring[T]) Len() int {
	return len(r.ch)
}

// Close closes the channel returned by C. It is safe to call more than once.
func (r *Ring[T]) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
}
