package sample

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutputGainCurve(t *testing.T) {
	// Unity at the control midpoint.
	assert.InDelta(t, 1.0, OutputGain(10), 1e-6)
	// Silence at zero.
	assert.InDelta(t, 0.0, OutputGain(0), 1e-9)
	// Strictly increasing along the control range.
	prev := float32(0)
	for g := 1; g <= 13; g++ {
		cur := OutputGain(float64(g))
		assert.Greater(t, cur, prev, "gain must increase at setting %d", g)
		prev = cur
	}
}

func TestInputGain(t *testing.T) {
	assert.InDelta(t, 1.0, InputGain(0), 1e-6)
	assert.InDelta(t, 2.0, InputGain(6.0206), 1e-3)
	assert.InDelta(t, 0.5, InputGain(-6.0206), 1e-3)
}

func TestSwapIQIsInvolution(t *testing.T) {
	s := []complex64{complex(1, -2), complex(0.5, 0.25), complex(-3, 7)}
	orig := append([]complex64(nil), s...)

	SwapIQ(s)
	assert.Equal(t, complex64(complex(-2, 1)), s[0])

	SwapIQ(s)
	assert.Equal(t, orig, s)
}

func TestDeinterleave(t *testing.T) {
	src := []float32{1, 2, 3, 4, 5, 6}
	dst := make([]complex64, 3)

	Deinterleave(dst, src, 0.5)

	assert.Equal(t, []complex64{
		complex(0.5, 1),
		complex(1.5, 2),
		complex(2.5, 3),
	}, dst)
}

func TestExpandMonoLayout(t *testing.T) {
	src := []float32{0.25, -0.5, 1}

	for _, channels := range []int{1, 2, 4} {
		dst := make([]float32, channels*len(src))
		gain := float32(2)

		ExpandMono(dst, src, channels, gain)

		for i, v := range src {
			for c := 0; c < channels; c++ {
				assert.Equal(t, v*gain, dst[channels*i+c],
					"channels=%d frame=%d channel=%d", channels, i, c)
			}
		}
	}
}

func TestScale(t *testing.T) {
	s := []complex64{complex(1, -1), complex(2, 4)}
	Scale(s, 0.5)
	assert.Equal(t, []complex64{complex(0.5, -0.5), complex(1, 2)}, s)
}
