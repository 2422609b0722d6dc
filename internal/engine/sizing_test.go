package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecimationStagesBoundsAndMaximality(t *testing.T) {
	rates := []int{8_000, 22_050, 24_000, 44_100, 48_000, 96_000, 192_000, 250_000, 1_000_000, 2_400_000, 8_000_000}
	floors := []int{8_000, 24_000, 32_000, 48_000}
	caps := []int{1, 2, 16, 64, 1024}

	for _, rate := range rates {
		for _, floor := range floors {
			for _, maxDecimation := range caps {
				s := decimationStages(rate, floor, maxDecimation)

				if rate <= floor {
					assert.Equal(t, 0, s, "rate=%d floor=%d cap=%d", rate, floor, maxDecimation)
					continue
				}

				factor := 1 << s
				assert.LessOrEqual(t, factor, maxDecimation,
					"rate=%d floor=%d cap=%d", rate, floor, maxDecimation)
				assert.GreaterOrEqual(t, rate, floor*factor,
					"rate=%d floor=%d cap=%d", rate, floor, maxDecimation)

				// Maximality: one more stage would break a constraint.
				next := factor << 1
				broken := next > maxDecimation || rate < floor*next
				assert.True(t, broken, "stage count not maximal: rate=%d floor=%d cap=%d s=%d",
					rate, floor, maxDecimation, s)
			}
		}
	}
}

func TestFramesPerBufferIsMultipleOfFactor(t *testing.T) {
	for _, tc := range []struct {
		bufferMs, rate, stages int
	}{
		{100, 96_000, 2},
		{100, 48_000, 0},
		{35, 44_100, 3},
		{1, 2_400_000, 6},
		{250, 8_000, 0},
	} {
		frames := framesPerBuffer(tc.bufferMs, tc.rate, tc.stages)
		assert.Zero(t, frames%(1<<tc.stages),
			"bufferMs=%d rate=%d stages=%d frames=%d", tc.bufferMs, tc.rate, tc.stages, frames)
		assert.LessOrEqual(t, frames, tc.bufferMs*tc.rate/1000)
	}
}

func TestConfigureComputesOutputSizing(t *testing.T) {
	e := New(nil, nil, DefaultConfig())

	require.NoError(t, e.configureLocked(96_000, 100, false))
	assert.Equal(t, 2, e.stages)
	assert.Equal(t, 9600, e.frames)
	assert.Equal(t, 2400, e.outFrames)
	assert.Equal(t, 24_000, e.outRate)
}

func TestConfigureCombinedForcesZeroStages(t *testing.T) {
	e := New(nil, nil, DefaultConfig())

	require.NoError(t, e.configureLocked(96_000, 100, true))
	assert.Equal(t, 0, e.stages)
	assert.Equal(t, e.frames, e.outFrames)
	assert.Equal(t, e.sessionRate, e.outRate)
}

func TestConfigureRejectsDegenerateSizing(t *testing.T) {
	e := New(nil, nil, DefaultConfig())

	assert.Error(t, e.configureLocked(0, 100, false))
	assert.Error(t, e.configureLocked(-48_000, 100, false))
	// A buffer shorter than one frame is unusable.
	assert.Error(t, e.configureLocked(1, 100, false))
}

func TestClampReadSize(t *testing.T) {
	// Backlog drains in large reads.
	assert.Equal(t, 5000, clampReadSize(5000, 1000, 9600))
	// Backlog never exceeds what is still needed.
	assert.Equal(t, 600, clampReadSize(5000, 1000, 600))
	// An empty queue still requests the minimum, guaranteeing progress.
	assert.Equal(t, 1000, clampReadSize(0, 1000, 9600))
	// The minimum itself is capped by the remainder.
	assert.Equal(t, 200, clampReadSize(0, 1000, 200))
}
