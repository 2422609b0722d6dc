// Package sample defines the sample representations moved through the
// streaming engine and the conversions applied at its boundaries.
//
// An I/Q sample is a complex64: the real part carries the in-phase
// component, the imaginary part the quadrature component. Processed audio
// is mono float32, expanded to the output channel layout at render time.
// Native device buffers are interleaved float32.
package sample

import "math"

// InputGain derives the fixed input scaling factor from a decibel setting.
// Fixed at session construction; all capture adapters apply it before
// samples enter the engine.
func InputGain(db float64) float32 {
	return float32(math.Pow(10, db/20))
}

// OutputGain maps the audio gain control onto a perceptual volume curve.
// A setting of 10 yields unity gain.
func OutputGain(g float64) float32 {
	return float32(math.Pow(g/10, 10))
}

// SwapIQ exchanges the I and Q components of every sample in place.
// Applying it twice restores the original buffer.
func SwapIQ(s []complex64) {
	for i, c := range s {
		s[i] = complex(imag(c), real(c))
	}
}

// Deinterleave converts a native interleaved stereo buffer into I/Q
// samples, applying the input gain. Left channel is I, right channel is Q.
// dst must hold len(src)/2 samples.
func Deinterleave(dst []complex64, src []float32, gain float32) {
	for i := range dst {
		dst[i] = complex(src[2*i]*gain, src[2*i+1]*gain)
	}
}

// Scale multiplies every sample by gain in place.
func Scale(s []complex64, gain float32) {
	for i := range s {
		s[i] *= complex(gain, 0)
	}
}

// ExpandMono duplicates a mono buffer across the output channel layout,
// applying the output gain. dst must hold channels*len(src) values.
func ExpandMono(dst, src []float32, channels int, gain float32) {
	for i, v := range src {
		p := v * gain
		for c := 0; c < channels; c++ {
			dst[channels*i+c] = p
		}
	}
}
