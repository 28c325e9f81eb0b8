package pace

// ring is a bounded FIFO buffer. Once full, new values overwrite the oldest.
type ring[T any] struct {
	data []T
	size int
	pos  int
	full bool
}

func newRing[T any](size int) ring[T] {
	return ring[T]{
		data: make([]T, size),
		size: size,
	}
}

func (r *ring[T]) add(v T) {
	r.data[r.pos] = v
	r.pos++
	if r.pos >= r.size {
		r.pos = 0
		r.full = true
	}
}

func (r *ring[T]) len() int {
	if r.full {
		return r.size
	}
	return r.pos
}

// values returns the buffered elements oldest-first.
func (r *ring[T]) values() []T {
	if !r.full {
		out := make([]T, r.pos)
		copy(out, r.data[:r.pos])
		return out
	}
	out := make([]T, 0, r.size)
	out = append(out, r.data[r.pos:]...)
	out = append(out, r.data[:r.pos]...)
	return out
}
