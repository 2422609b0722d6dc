package flowqueue

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderPreservedAcrossPartialReads(t *testing.T) {
	q := New[complex64]("test", 1024)

	written := make([]complex64, 100)
	for i := range written {
		written[i] = complex(float32(i), -float32(i))
	}
	require.NoError(t, q.Write(written))

	var read []complex64
	buf := make([]complex64, 7)
	for len(read) < len(written) {
		n, err := q.Read(buf)
		require.NoError(t, err)
		require.Greater(t, n, 0)
		read = append(read, buf[:n]...)
	}
	assert.Equal(t, written, read)
}

func TestReadBlocksUntilDataArrives(t *testing.T) {
	q := New[float32]("test", 64)

	done := make(chan int)
	go func() {
		buf := make([]float32, 8)
		n, _ := q.Read(buf)
		done <- n
	}()

	select {
	case <-done:
		t.Fatal("read returned with no data in the queue")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, q.Write([]float32{1, 2, 3}))
	select {
	case n := <-done:
		assert.Equal(t, 3, n, "partial read should return what is available")
	case <-time.After(time.Second):
		t.Fatal("read did not unblock after write")
	}
}

func TestCloseUnblocksReader(t *testing.T) {
	q := New[float32]("test", 64)

	done := make(chan error)
	go func() {
		buf := make([]float32, 8)
		_, err := q.Read(buf)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, io.EOF)
	case <-time.After(time.Second):
		t.Fatal("read did not unblock after close")
	}
}

func TestCloseNowUnblocksWriter(t *testing.T) {
	q := New[float32]("test", 8)

	// Fill the ring, then a second write blocks until the reader drains
	// it; with a stalled reader only CloseNow can release the writer.
	require.NoError(t, q.Write(make([]float32, 8)))
	done := make(chan error)
	go func() {
		done <- q.Write(make([]float32, 4))
	}()

	select {
	case err := <-done:
		t.Fatalf("write into a full ring returned early: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	q.CloseNow()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("blocked writer was not released by CloseNow")
	}
}

func TestCloseNowFailsReaderWithoutDraining(t *testing.T) {
	q := New[float32]("test", 64)
	require.NoError(t, q.Write([]float32{1, 2, 3}))

	q.CloseNow()

	n, err := q.Read(make([]float32, 8))
	assert.Zero(t, n, "buffered elements are discarded")
	assert.ErrorIs(t, err, ErrClosed)
	assert.False(t, q.WriteOrDrop([]float32{4}, 64))
}

func TestWriteOrDropBoundsOccupancy(t *testing.T) {
	const (
		frames    = 100
		watermark = 2 * frames
	)
	q := New[complex64]("test", 16*frames)
	block := make([]complex64, frames)

	// A producer far outpacing the consumer must stay bounded by the
	// watermark plus at most one in-flight buffer, indefinitely.
	dropped := 0
	for i := 0; i < 1000; i++ {
		if !q.WriteOrDrop(block, watermark) {
			dropped++
		}
		assert.LessOrEqual(t, q.Len(), watermark+frames)
	}
	assert.Greater(t, dropped, 0)
	assert.Equal(t, uint64(dropped), q.Overruns())
}

func TestWriteOrDropRecoversWhenReaderCatchesUp(t *testing.T) {
	const frames = 50
	q := New[complex64]("test", 16*frames)
	block := make([]complex64, frames)

	for i := 0; i < 3; i++ {
		q.WriteOrDrop(block, frames)
	}
	require.Greater(t, q.Overruns(), uint64(0))

	// Drain, then writes are accepted again.
	buf := make([]complex64, 16*frames)
	for q.Len() > 0 {
		_, err := q.Read(buf[:q.Len()])
		require.NoError(t, err)
	}
	assert.True(t, q.WriteOrDrop(block, frames))
}

func TestSingleProducerSingleConsumerThroughput(t *testing.T) {
	const total = 50_000
	q := New[float32]("test", 4096)

	var wg sync.WaitGroup
	wg.Add(1)
	var sum float64
	go func() {
		defer wg.Done()
		buf := make([]float32, 512)
		for {
			n, err := q.Read(buf)
			for _, v := range buf[:n] {
				sum += float64(v)
			}
			if err != nil {
				return
			}
		}
	}()

	block := make([]float32, 128)
	for i := range block {
		block[i] = 1
	}
	for written := 0; written < total; written += len(block) {
		require.NoError(t, q.Write(block))
	}
	q.Close()
	wg.Wait()

	assert.Equal(t, float64(total), sum)
}
