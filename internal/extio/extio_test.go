package extio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycleOrdering(t *testing.T) {
	p := &SimPlugin{Rate: 96_000}

	assert.ErrorIs(t, p.Open(), ErrNotLoaded)
	require.NoError(t, p.LoadLibrary("sim"))
	assert.ErrorIs(t, p.Start(), ErrNotOpen)

	require.NoError(t, p.Open())
	assert.True(t, p.IsOpen())
	require.NoError(t, p.Start())
	require.NoError(t, p.Close())
	assert.False(t, p.IsOpen())
}

func TestPushDeliversToHandler(t *testing.T) {
	p := &SimPlugin{Rate: 96_000, BlockSize: 256}
	require.NoError(t, p.LoadLibrary("sim"))
	require.NoError(t, p.Open())

	var received []complex64
	p.SetSampleHandler(func(samples []complex64) {
		received = append(received, samples...)
	})

	// Not started yet: nothing is delivered.
	assert.False(t, p.Push())
	assert.Empty(t, received)

	require.NoError(t, p.Start())
	assert.True(t, p.Push())
	assert.Len(t, received, 256)

	require.NoError(t, p.Stop())
	assert.False(t, p.Push(), "no delivery after Stop")
	assert.Len(t, received, 256)
}

func TestBlocksAreDeterministic(t *testing.T) {
	run := func() []complex64 {
		p := &SimPlugin{Rate: 96_000, BlockSize: 128}
		require.NoError(t, p.LoadLibrary("sim"))
		require.NoError(t, p.Open())
		require.NoError(t, p.Start())

		var got []complex64
		p.SetSampleHandler(func(samples []complex64) {
			got = append(got, samples...)
		})
		for i := 0; i < 5; i++ {
			p.Push()
		}
		return got
	}

	assert.Equal(t, run(), run())
}

func TestUnregisteredHandlerIsNeverCalled(t *testing.T) {
	p := &SimPlugin{Rate: 96_000, BlockSize: 64}
	require.NoError(t, p.LoadLibrary("sim"))
	require.NoError(t, p.Open())
	require.NoError(t, p.Start())

	called := false
	p.SetSampleHandler(func([]complex64) { called = true })
	p.SetSampleHandler(nil)

	assert.False(t, p.Push())
	assert.False(t, called)
}

func TestTickerDeliveryStopsWithStop(t *testing.T) {
	p := &SimPlugin{Rate: 96_000, BlockSize: 32, PushInterval: time.Millisecond}
	require.NoError(t, p.LoadLibrary("sim"))
	require.NoError(t, p.Open())

	blocks := make(chan []complex64, 64)
	p.SetSampleHandler(func(samples []complex64) {
		select {
		case blocks <- samples:
		default:
		}
	})

	require.NoError(t, p.Start())
	select {
	case <-blocks:
	case <-time.After(time.Second):
		t.Fatal("no block delivered by the push loop")
	}
	require.NoError(t, p.Stop())
}
