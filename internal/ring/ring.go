// Package ring implements two MPSC buffers on top of a shared lock-free CAS
// ring: a lossy bounded ring for read events (losing an occasional access
// record is fine — the frequency sketch is an estimator already) and a
// lossless bounded ring for write events, which the maintenance loop
// (internal/maintenance) drains under the eviction mutex, and which a
// producer that finds full is expected to help drain itself rather than
// silently drop. This package runs no goroutines of its own; draining both
// buffers together under one state machine belongs to internal/maintenance.
package ring

import "sync/atomic"

type slot[T any] struct {
	value T
	seq   atomic.Uint64
}

// Ring is a bounded, lock-free MPSC ring buffer.
type Ring[T any] struct {
	data []slot[T]
	mask uint64
	head atomic.Uint64
	tail atomic.Uint64
}

// New creates a Ring with capacity rounded up to the next power of two
// (minimum 2).
func New[T any](capacity int) *Ring[T] {
	if capacity <= 1 {
		capacity = 2
	}
	capacity--
	capacity |= capacity >> 1
	capacity |= capacity >> 2
	capacity |= capacity >> 4
	capacity |= capacity >> 8
	capacity |= capacity >> 16
	capacity++

	r := &Ring[T]{
		data: make([]slot[T], capacity),
		mask: uint64(capacity - 1),
	}
	for i := range r.data {
		r.data[i].seq.Store(uint64(i))
	}
	return r
}

// Push attempts to add item, returning false if the ring is full.
func (r *Ring[T]) Push(item T) bool {
	for {
		tail := r.tail.Load()
		idx := tail & r.mask
		seq := r.data[idx].seq.Load()

		switch {
		case seq == tail:
			if r.tail.CompareAndSwap(tail, tail+1) {
				r.data[idx].value = item
				r.data[idx].seq.Store(tail + 1)
				return true
			}
		case seq < tail:
			return false
		}
	}
}

// Pop removes and returns the oldest item, or the zero value and false if
// empty. Only safe to call from a single consumer goroutine at a time.
func (r *Ring[T]) Pop() (T, bool) {
	for {
		head := r.head.Load()
		idx := head & r.mask
		seq := r.data[idx].seq.Load()

		switch {
		case seq == head+1:
			if r.head.CompareAndSwap(head, head+1) {
				v := r.data[idx].value
				var zero T
				r.data[idx].value = zero
				r.data[idx].seq.Store(head + uint64(len(r.data)))
				return v, true
			}
		case seq == head:
			var zero T
			return zero, false
		}
	}
}

func (r *Ring[T]) Len() int    { return int(r.tail.Load() - r.head.Load()) }
func (r *Ring[T]) Cap() int    { return len(r.data) }
func (r *Ring[T]) IsEmpty() bool { return r.Len() == 0 }
func (r *Ring[T]) IsFull() bool  { return r.Len() >= len(r.data) }

// ReadBuffer records access events. Add is lossy by design: a full buffer
// means the event is simply dropped — the frequency sketch only needs an
// approximate access count, so a handful of dropped records under
// contention is harmless.
type ReadBuffer[T any] struct {
	ring *Ring[T]
}

// NewReadBuffer creates a ReadBuffer with the given capacity.
func NewReadBuffer[T any](capacity int) *ReadBuffer[T] {
	return &ReadBuffer[T]{ring: New[T](capacity)}
}

// Add records an event, returning false if it was dropped because the
// buffer was full.
func (b *ReadBuffer[T]) Add(event T) bool { return b.ring.Push(event) }

// Drain pops up to max events, calling fn for each, and returns the number
// drained. Only the maintenance loop's single drain goroutine calls this.
func (b *ReadBuffer[T]) Drain(max int, fn func(T)) int {
	n := 0
	for n < max {
		v, ok := b.ring.Pop()
		if !ok {
			break
		}
		fn(v)
		n++
	}
	return n
}

func (b *ReadBuffer[T]) Len() int { return b.ring.Len() }

// WriteBuffer records write events (add/update/delete tasks). Unlike
// ReadBuffer, losing an event is not acceptable — every write must
// eventually be applied to the data structures the drain maintains. Add
// reports false on a full buffer; the caller is expected to run maintenance
// itself until space frees, rather than the buffer silently dropping or
// blocking internally.
type WriteBuffer[T any] struct {
	ring *Ring[T]
}

// NewWriteBuffer creates a WriteBuffer with the given capacity.
func NewWriteBuffer[T any](capacity int) *WriteBuffer[T] {
	return &WriteBuffer[T]{ring: New[T](capacity)}
}

func (b *WriteBuffer[T]) Add(event T) bool { return b.ring.Push(event) }

func (b *WriteBuffer[T]) Drain(max int, fn func(T)) int {
	n := 0
	for n < max {
		v, ok := b.ring.Pop()
		if !ok {
			break
		}
		fn(v)
		n++
	}
	return n
}

func (b *WriteBuffer[T]) Len() int      { return b.ring.Len() }
func (b *WriteBuffer[T]) IsEmpty() bool { return b.ring.IsEmpty() }
