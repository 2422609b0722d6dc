// Package scratch provides reusable per-goroutine work buffers.
//
// A Buffer is owned by exactly one execution context at a time. It keeps
// its backing storage across cycles and reallocates only when the required
// length changes, so steady-state streaming allocates nothing.
package scratch

// Buffer is a lazily allocated, reusable block of elements.
type Buffer[T any] struct {
	data []T
}

// Take returns a slice of exactly n elements. Consecutive calls with the
// same n return the same backing storage; a different n reallocates.
// Contents are undefined after a reallocation.
func (b *Buffer[T]) Take(n int) []T {
	if len(b.data) != n {
		b.data = make([]T, n)
	}
	return b.data
}

// Release drops the backing storage. The next Take allocates fresh.
func (b *Buffer[T]) Release() {
	b.data = nil
}
