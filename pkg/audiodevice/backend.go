// Package audiodevice abstracts the sound-device backend the streaming
// engine runs against.
//
// A Backend opens callback-driven streams: capture streams push native
// interleaved float32 buffers at the device's own cadence, playback
// streams pull them, and duplex streams do both inside one synchronous
// callback sharing a single device clock. The engine never talks to a
// concrete driver directly, so tests can substitute the ManualBackend.
package audiodevice

// CaptureFunc is invoked by a capture stream with a native interleaved
// buffer of frames*channels samples. The buffer is only valid for the
// duration of the call.
type CaptureFunc func(in []float32, frames int)

// RenderFunc is invoked by a playback stream and must fully populate the
// native interleaved buffer of frames*channels samples.
type RenderFunc func(out []float32, frames int)

// DuplexFunc is invoked by a duplex stream with both the capture and the
// render buffer for the same frame count.
type DuplexFunc func(out, in []float32, frames int)

// Stream is an open device stream. Callbacks fire between Start and Stop.
// Close releases the underlying device; the stream is unusable afterwards.
type Stream interface {
	Start() error
	Stop() error
	Close()
}

// Backend opens device streams. deviceID selects a device by identifier
// or name; the empty string selects the system default.
type Backend interface {
	OpenCapture(deviceID string, sampleRate, channels, frames int, fn CaptureFunc) (Stream, error)
	OpenPlayback(deviceID string, sampleRate, channels, frames int, fn RenderFunc) (Stream, error)
	OpenDuplex(deviceID string, sampleRate, channels, frames int, fn DuplexFunc) (Stream, error)
}

// DeviceInfo describes an enumerable device.
type DeviceInfo struct {
	ID        string
	Name      string
	IsDefault bool
}
