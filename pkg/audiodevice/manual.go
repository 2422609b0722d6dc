package audiodevice

import "sync"

// ManualBackend is a Backend whose streams are driven explicitly instead
// of by a hardware clock. Tests and offline tools pump capture data in and
// pull render data out at whatever cadence they choose.
type ManualBackend struct {
	mu       sync.Mutex
	capture  *ManualStream
	playback *ManualStream
	duplex   *ManualStream
}

func NewManualBackend() *ManualBackend {
	return &ManualBackend{}
}

func (b *ManualBackend) OpenCapture(deviceID string, sampleRate, channels, frames int, fn CaptureFunc) (Stream, error) {
	s := newManualStream(deviceID, sampleRate, channels, frames)
	s.capture = fn
	b.mu.Lock()
	b.capture = s
	b.mu.Unlock()
	return s, nil
}

func (b *ManualBackend) OpenPlayback(deviceID string, sampleRate, channels, frames int, fn RenderFunc) (Stream, error) {
	s := newManualStream(deviceID, sampleRate, channels, frames)
	s.render = fn
	b.mu.Lock()
	b.playback = s
	b.mu.Unlock()
	return s, nil
}

func (b *ManualBackend) OpenDuplex(deviceID string, sampleRate, channels, frames int, fn DuplexFunc) (Stream, error) {
	s := newManualStream(deviceID, sampleRate, channels, frames)
	s.duplex = fn
	b.mu.Lock()
	b.duplex = s
	b.mu.Unlock()
	return s, nil
}

// Capture returns the most recently opened capture stream, or nil.
func (b *ManualBackend) Capture() *ManualStream {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capture
}

// Playback returns the most recently opened playback stream, or nil.
func (b *ManualBackend) Playback() *ManualStream {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.playback
}

// Duplex returns the most recently opened duplex stream, or nil.
func (b *ManualBackend) Duplex() *ManualStream {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.duplex
}

// ManualStream is a device stream without a device. Its callbacks fire
// only when the owner calls Push, Pull or Cycle, and only while started.
type ManualStream struct {
	DeviceID   string
	SampleRate int
	Channels   int
	Frames     int

	mu      sync.Mutex
	started bool
	closed  bool

	capture CaptureFunc
	render  RenderFunc
	duplex  DuplexFunc
}

func newManualStream(deviceID string, sampleRate, channels, frames int) *ManualStream {
	return &ManualStream{
		DeviceID:   deviceID,
		SampleRate: sampleRate,
		Channels:   channels,
		Frames:     frames,
	}
}

func (s *ManualStream) Start() error {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	return nil
}

func (s *ManualStream) Stop() error {
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
	return nil
}

func (s *ManualStream) Close() {
	s.mu.Lock()
	s.started = false
	s.closed = true
	s.mu.Unlock()
}

func (s *ManualStream) running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started && !s.closed
}

// Push delivers a native interleaved capture buffer, as a capture device
// callback would. Returns false if the stream is not running.
func (s *ManualStream) Push(in []float32, frames int) bool {
	if !s.running() || s.capture == nil {
		return false
	}
	s.capture(in, frames)
	return true
}

// Pull requests frames of rendered audio, as a playback device callback
// would, and returns the interleaved result. Returns nil if the stream is
// not running. Blocks for however long the render callback blocks.
func (s *ManualStream) Pull(frames int) []float32 {
	if !s.running() || s.render == nil {
		return nil
	}
	out := make([]float32, frames*s.Channels)
	s.render(out, frames)
	return out
}

// Cycle runs one synchronous duplex callback: in is captured, the
// rendered result is returned. Returns nil if the stream is not running.
func (s *ManualStream) Cycle(in []float32, frames int) []float32 {
	if !s.running() || s.duplex == nil {
		return nil
	}
	out := make([]float32, frames*s.Channels)
	s.duplex(out, in, frames)
	return out
}
