// Package flowqueue implements the elastic, flow-controlled queues that
// connect the engine's asynchronous stages.
//
// Each queue has exactly one writer and one reader. Reads block until at
// least one element is available; partial reads are legal and expected.
// Write-side flow control is chosen by the caller: the blocking Write is
// for contexts that may wait (the processing driver), WriteOrDrop is for
// real-time capture callbacks that must never block, and pull-based
// producers pace themselves on Len before writing.
package flowqueue

import (
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"unsafe"

	"github.com/smallnest/ringbuffer"
)

// ErrClosed is returned from reads and writes interrupted by CloseNow.
var ErrClosed = errors.New("flowqueue: queue closed")

// Element restricts queues to the two sample kinds the engine moves:
// I/Q samples and processed mono samples.
type Element interface {
	~complex64 | ~float32
}

// Queue is a bounded-storage, watermark-governed single-producer
// single-consumer sample queue. The backing ring is sized well above the
// highest watermark, so under a drop policy occupancy is bounded by the
// watermark, not by ring exhaustion.
type Queue[T Element] struct {
	rb       *ringbuffer.RingBuffer
	logger   *slog.Logger
	overruns atomic.Uint64
}

// New creates a queue able to hold capacity elements.
func New[T Element](name string, capacity int) *Queue[T] {
	rb := ringbuffer.New(capacity * elemSize[T]())
	rb.SetBlocking(true)
	return &Queue[T]{
		rb:     rb,
		logger: slog.Default().With("queue", name),
	}
}

// Read fills p with up to len(p) elements, blocking until at least one is
// available. Returns io.EOF once the queue is closed and drained, so the
// reading goroutine can exit its loop.
func (q *Queue[T]) Read(p []T) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	es := elemSize[T]()
	b := asBytes(p)
	n, err := q.rb.Read(b)
	if rem := n % es; rem != 0 && err == nil {
		// The writer was caught mid-element; finish it so callers only
		// ever observe whole samples.
		var m int
		m, err = io.ReadFull(q.rb, b[n:n+es-rem])
		n += m
	}
	return n / es, err
}

// Write appends all of p, blocking while the ring is full. Returns an
// error once the queue is closed.
func (q *Queue[T]) Write(p []T) error {
	_, err := q.rb.Write(asBytes(p))
	return err
}

// WriteOrDrop appends p unless the occupied length already exceeds
// watermark elements, in which case the whole slice is discarded and an
// overrun is recorded. Never blocks as long as the ring capacity exceeds
// watermark+len(p), which the engine's sizing guarantees.
func (q *Queue[T]) WriteOrDrop(p []T, watermark int) bool {
	if q.Len() > watermark {
		n := q.overruns.Add(1)
		if n%32 == 1 {
			q.logger.Warn("overrun, dropping samples",
				"dropped", len(p),
				"occupied", q.Len(),
				"watermark", watermark,
				"overruns", n,
			)
		}
		return false
	}
	if _, err := q.rb.Write(asBytes(p)); err != nil {
		return false
	}
	return true
}

// Len reports the occupied length in elements.
func (q *Queue[T]) Len() int {
	return q.rb.Length() / elemSize[T]()
}

// Overruns reports how many writes have been dropped so far.
func (q *Queue[T]) Overruns() uint64 {
	return q.overruns.Load()
}

// Close ends the write side. A blocked reader drains what remains and
// then sees io.EOF. A writer blocked on a full ring is NOT released;
// only a reader draining it frees it, so Close is for orderly producer
// shutdown, not teardown.
func (q *Queue[T]) Close() {
	q.rb.CloseWriter()
}

// CloseNow shuts the queue down immediately: buffered elements are
// discarded and both a blocked reader and a blocked writer return
// ErrClosed. Session teardown uses this, since at that point a stalled
// consumer must not keep the producer pinned inside Write.
func (q *Queue[T]) CloseNow() {
	q.rb.CloseWithError(ErrClosed)
}

func elemSize[T Element]() int {
	var z T
	return int(unsafe.Sizeof(z))
}

// asBytes views a sample slice as its raw bytes for the ring buffer.
// The slice header is reinterpreted, not copied.
func asBytes[T Element](p []T) []byte {
	if len(p) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&p[0])), len(p)*elemSize[T]())
}
