// Package capture holds the page context gathered next to a screenshot:
// console lines, failed network requests and environment metadata, each
// kept in a bounded buffer that drops the oldest entry when full.
package capture

// Ring is a fixed capacity FIFO buffer. Pushing onto a full ring evicts the
// oldest item. The zero value has no capacity and drops everything.
type Ring[T any] struct {
	items   []T
	start   int
	size    int
	dropped int
}

// NewRing creates a ring holding at most capacity items
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Push appends v, evicting the oldest item if the ring is full
func (r *Ring[T]) Push(v T) {
	if len(r.items) == 0 {
		r.dropped++
		return
	}
	if r.size < len(r.items) {
		r.items[(r.start+r.size)%len(r.items)] = v
		r.size++
		return
	}
	r.items[r.start] = v
	r.start = (r.start + 1) % len(r.items)
	r.dropped++
}

// Items returns a copy of the buffered items, oldest first
func (r *Ring[T]) Items() []T {
	ret := make([]T, r.size)
	for i := range ret {
		ret[i] = r.items[(r.start+i)%len(r.items)]
	}
	return ret
}

func (r *Ring[T]) Len() int { return r.size }
func (r *Ring[T]) Cap() int { return len(r.items) }

// Dropped counts the items evicted since creation or the last Reset
func (r *Ring[T]) Dropped() int { return r.dropped }

// Reset empties the ring keeping its capacity
func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.items {
		r.items[i] = zero
	}
	r.start, r.size, r.dropped = 0, 0, 0
}
