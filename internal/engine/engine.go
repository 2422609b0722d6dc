// Package engine implements the streaming core: the mode/session state
// machine, the flow-controlled queues connecting the capture, processing
// and render stages, and the gain and format conversions applied at the
// boundaries.
//
// A session is configured by one of the Open calls, activated by Play and
// torn down by Stop. Up to three concurrent contexts run while streaming:
// the capture callback (device or plugin clocked), the render callback
// (device clocked) and the processing driver goroutine. In combined-device
// mode capture and render collapse into one synchronous duplex callback
// and both queues and the driver are elided.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lightcurve-labs/iqstream/internal/extio"
	"github.com/lightcurve-labs/iqstream/internal/filesource"
	"github.com/lightcurve-labs/iqstream/internal/flowqueue"
	"github.com/lightcurve-labs/iqstream/internal/scratch"
	"github.com/lightcurve-labs/iqstream/pkg/audiodevice"
	"github.com/lightcurve-labs/iqstream/pkg/sample"
)

const (
	// Capture runs stereo (I left, Q right); render duplicates mono
	// across a stereo layout.
	deviceChannels = 2

	// Occupancy thresholds, as multiples of one buffer. A live capture
	// callback drops early; plugin pushes tolerate more backlog; the
	// file feeder paces itself in between.
	lowWatermarkMult  = 2
	paceWatermarkMult = 4
	highWatermarkMult = 8

	// Ring capacity must dominate the highest watermark plus one buffer
	// so drop policies, not ring exhaustion, bound occupancy.
	queueCapacityMult = 16

	pacePollInterval = time.Millisecond
)

var (
	ErrNotConfigured = errors.New("engine: no session configured, call an Open method first")
	ErrNoPlugin      = errors.New("engine: no external hardware plugin installed")
)

// ProcessFunc is the external signal-processing hook, invoked once per
// cycle with one buffer of I/Q samples. It must fully populate out, whose
// length is the input length divided by 2^stages. Neither slice may be
// retained beyond the call.
type ProcessFunc func(in []complex64, out []float32)

// Config carries the engine's tuning parameters. All values have working
// defaults; see DefaultConfig.
type Config struct {
	// BufferMs is the buffer size used when an Open call passes 0.
	BufferMs int
	// AudioGain is the initial audio gain control setting; 10 is unity.
	AudioGain float64
	// InputGainDB scales capture-side samples, fixed per session.
	InputGainDB float64
	// MinOutputRate is the floor the decimated output rate must stay at
	// or above.
	MinOutputRate int
	// MaxDecimation caps the total decimation factor; power of two.
	MaxDecimation int
	// MinReadSize is the smallest element count the processing driver
	// requests per queue read. A latency/throughput tuning knob, not a
	// correctness requirement.
	MinReadSize int
}

func DefaultConfig() Config {
	return Config{
		BufferMs:      100,
		AudioGain:     10,
		InputGainDB:   0,
		MinOutputRate: 24000,
		MaxDecimation: 1024,
		MinReadSize:   1000,
	}
}

// Engine is the streaming core. One Engine owns at most one live session.
// The control surface (Open/Play/Stop and the observables) is safe for
// concurrent use; session fields are never mutated while streaming.
type Engine struct {
	logger  *slog.Logger
	uuid    uuid.UUID
	cfg     Config
	backend audiodevice.Backend
	plugin  extio.Plugin

	mu      sync.Mutex
	mode    sessionMode
	playing bool
	proc    ProcessFunc

	// Session sizing, written by the Open calls only.
	sessionRate int
	outRate     int
	bufferMs    int
	frames      int
	outFrames   int
	stages      int

	// Watermarks in elements, derived from frames at session start.
	lowWatermark  int
	paceWatermark int
	highWatermark int

	inputGain   float32
	audioGain   float64
	outputGain  atomic.Uint32 // float32 bits, read by render callbacks
	swap        atomic.Bool
	liveRate    atomic.Int64 // output rate while playing, 0 otherwise
	sessionProc ProcessFunc

	inQ  *flowqueue.Queue[complex64]
	outQ *flowqueue.Queue[float32]

	// Each scratch buffer is owned by exactly one streaming context.
	captureScratch scratch.Buffer[complex64]
	feederScratch  scratch.Buffer[complex64]
	driverIn       scratch.Buffer[complex64]
	driverOut      scratch.Buffer[float32]
	renderScratch  scratch.Buffer[float32]

	quit chan struct{}
	wg   sync.WaitGroup
}

// New creates an idle engine on the given device backend. plugin may be
// nil if external hardware sessions are never opened.
func New(backend audiodevice.Backend, plugin extio.Plugin, cfg Config) *Engine {
	id := uuid.New()
	e := &Engine{
		logger:    slog.Default().With("engine uuid", id),
		uuid:      id,
		cfg:       cfg,
		backend:   backend,
		plugin:    plugin,
		inputGain: sample.InputGain(cfg.InputGainDB),
		audioGain: cfg.AudioGain,
	}
	e.outputGain.Store(math.Float32bits(sample.OutputGain(cfg.AudioGain)))
	return e
}

// SetProcessor installs the external processing hook. Must be called
// while no session is playing; without a hook a stride decimating
// passthrough is used.
func (e *Engine) SetProcessor(fn ProcessFunc) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.playing {
		return errors.New("engine: cannot change processor while playing")
	}
	e.proc = fn
	return nil
}

// OpenDevice configures a sound-device session. When inputID and outputID
// name the same physical device the session runs the combined-device path:
// zero decimation, one synchronous callback, no queues.
func (e *Engine) OpenDevice(inputID, outputID string, sampleRate, bufferMs int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.teardownLocked()
	// A failed open must not leave the previous session playable.
	e.mode = nil

	combined := inputID == outputID
	if err := e.configureLocked(sampleRate, bufferMs, combined); err != nil {
		return err
	}
	if combined {
		e.mode = &combinedDevice{deviceID: inputID}
	} else {
		e.mode = &splitDevice{inputID: inputID, outputID: outputID}
	}
	e.logConfigured()
	return nil
}

// OpenFile configures a file playback session. The sample rate comes from
// the recording itself.
func (e *Engine) OpenFile(path, outputID string, bufferMs int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.teardownLocked()
	e.mode = nil

	probe, err := filesource.Open(path)
	if err != nil {
		return err
	}
	rate := probe.SampleRate()
	probe.Close()

	if err := e.configureLocked(rate, bufferMs, false); err != nil {
		return err
	}
	e.mode = &filePlayback{path: path, outputID: outputID}
	e.logConfigured()
	return nil
}

// OpenExternalHardware configures a session fed by the external hardware
// plugin, loading its driver library and querying its sample rate.
func (e *Engine) OpenExternalHardware(libraryPath, outputID string, bufferMs int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.teardownLocked()
	e.mode = nil

	if e.plugin == nil {
		return ErrNoPlugin
	}
	if err := e.plugin.LoadLibrary(libraryPath); err != nil {
		e.logger.Error("could not load hardware library", "library", libraryPath, "err", err)
		return fmt.Errorf("could not load hardware library: %w", err)
	}
	if !e.plugin.IsOpen() {
		if err := e.plugin.Open(); err != nil {
			e.logger.Error("could not open hardware", "err", err)
			return fmt.Errorf("could not open hardware: %w", err)
		}
	}
	rate := int(e.plugin.SampleRate())
	if err := e.configureLocked(rate, bufferMs, false); err != nil {
		if cerr := e.plugin.Close(); cerr != nil {
			e.logger.Error("error closing hardware after failed configure", "err", cerr)
		}
		return err
	}
	e.mode = &externalHardware{libraryPath: libraryPath, outputID: outputID}
	e.logConfigured()
	return nil
}

// Play activates the configured session. A no-op while already playing.
func (e *Engine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.playing {
		return nil
	}
	if e.mode == nil {
		return ErrNotConfigured
	}

	e.sessionProc = e.proc
	if e.sessionProc == nil {
		e.sessionProc = stridePassthrough(e.stages)
	}
	e.quit = make(chan struct{})

	if err := e.mode.start(e); err != nil {
		e.logger.Error("session start failed", "mode", e.mode.name(), "err", err)
		e.teardownLocked()
		return err
	}
	e.playing = true
	e.liveRate.Store(int64(e.outRate))
	e.logger.Info("session playing",
		"mode", e.mode.name(),
		"sampleRate", e.sessionRate,
		"outputRate", e.outRate,
	)
	return nil
}

// Stop tears the active session down and returns the engine to idle.
// Safe to call at any time; fully complete when it returns.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.teardownLocked()
}

// teardownLocked halts the session in dependency order: upstream sources
// first so no further writes occur, then the queues so blocked readers
// and writers unblock, then the worker goroutines, then the sinks and
// buffers. The queues are closed hard: with the render side possibly
// stalled, a graceful close would leave the driver pinned in its output
// write and Stop would never join it.
func (e *Engine) teardownLocked() {
	e.liveRate.Store(0)
	if e.quit != nil {
		close(e.quit)
		e.quit = nil
	}
	if e.mode != nil {
		e.mode.haltSource(e)
	}
	if e.inQ != nil {
		e.inQ.CloseNow()
	}
	if e.outQ != nil {
		e.outQ.CloseNow()
	}
	e.wg.Wait()
	if e.mode != nil {
		e.mode.closeSink(e)
	}
	e.inQ, e.outQ = nil, nil
	e.captureScratch.Release()
	e.feederScratch.Release()
	e.driverIn.Release()
	e.driverOut.Release()
	e.renderScratch.Release()
	if e.playing {
		e.playing = false
		e.logger.Info("session stopped")
	}
}

// configureLocked runs the sizing arithmetic and stores the session
// dimensions. Combined-device sessions force zero decimation so input and
// output sizing match.
func (e *Engine) configureLocked(sampleRate, bufferMs int, combined bool) error {
	if sampleRate <= 0 {
		return fmt.Errorf("engine: invalid sample rate %d", sampleRate)
	}
	if bufferMs <= 0 {
		bufferMs = e.cfg.BufferMs
	}

	stages := 0
	if !combined {
		stages = decimationStages(sampleRate, e.cfg.MinOutputRate, e.cfg.MaxDecimation)
	}
	frames := framesPerBuffer(bufferMs, sampleRate, stages)
	if frames <= 0 {
		return fmt.Errorf("engine: buffer of %d ms is too small at %d Hz", bufferMs, sampleRate)
	}

	e.sessionRate = sampleRate
	e.bufferMs = bufferMs
	e.stages = stages
	e.frames = frames
	e.outFrames = frames >> stages
	e.outRate = sampleRate >> stages
	return nil
}

func (e *Engine) logConfigured() {
	e.logger.Debug("session configured",
		"mode", e.mode.name(),
		"sampleRate", e.sessionRate,
		"bufferMs", e.bufferMs,
		"frames", e.frames,
		"stages", e.stages,
		"outputRate", e.outRate,
		"outputFrames", e.outFrames,
	)
}

// startQueuesLocked creates the session queues and derives the watermark
// thresholds from the configured buffer size.
func (e *Engine) startQueuesLocked() {
	e.lowWatermark = lowWatermarkMult * e.frames
	e.paceWatermark = paceWatermarkMult * e.frames
	e.highWatermark = highWatermarkMult * e.frames
	e.inQ = flowqueue.New[complex64]("iq input", queueCapacityMult*e.frames)
	e.outQ = flowqueue.New[float32]("processed output", queueCapacityMult*e.outFrames)
}

func (e *Engine) startDriverLocked() {
	e.wg.Add(1)
	go e.runDriver()
}

// openRenderLocked opens and starts the playback stream at the decimated
// output rate.
func (e *Engine) openRenderLocked(outputID string) (audiodevice.Stream, error) {
	stream, err := e.backend.OpenPlayback(outputID, e.outRate, deviceChannels, e.outFrames, e.renderInto)
	if err != nil {
		return nil, fmt.Errorf("could not open output device: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("could not start output device: %w", err)
	}
	return stream, nil
}

// --------------------------------------------------------------------------------
// Observables

// SampleRate reports the output sample rate of the live session, or 0
// when idle.
func (e *Engine) SampleRate() int {
	return int(e.liveRate.Load())
}

// IsPlaying reports whether a session is live.
func (e *Engine) IsPlaying() bool {
	return e.SampleRate() != 0
}

// BufferSizeFrames reports the configured input buffer length in frames.
func (e *Engine) BufferSizeFrames() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

// BufferSizeMs reports the configured buffer size in milliseconds.
func (e *Engine) BufferSizeMs() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bufferMs
}

// DecimationStageCount reports the number of halving stages the session
// was sized for.
func (e *Engine) DecimationStageCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stages
}

// AudioGain returns the current audio gain control setting.
func (e *Engine) AudioGain() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.audioGain
}

// SetAudioGain updates the audio gain control. Takes effect on the next
// rendered buffer, also while playing.
func (e *Engine) SetAudioGain(g float64) {
	e.mu.Lock()
	e.audioGain = g
	e.mu.Unlock()
	e.outputGain.Store(math.Float32bits(sample.OutputGain(g)))
}

// SwapIQ reports whether the swap-I/Q transform is enabled.
func (e *Engine) SwapIQ() bool {
	return e.swap.Load()
}

// SetSwapIQ toggles the swap-I/Q transform. Takes effect on the next
// processed buffer, also while playing.
func (e *Engine) SetSwapIQ(v bool) {
	e.swap.Store(v)
}

// InputOverruns reports how many capture-side writes the live session has
// dropped. Informational; resets with each session.
func (e *Engine) InputOverruns() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inQ == nil {
		return 0
	}
	return e.inQ.Overruns()
}

func (e *Engine) loadOutputGain() float32 {
	return math.Float32frombits(e.outputGain.Load())
}

// stridePassthrough is the hook used when none is installed: it meets the
// sizing contract by taking the real part of every 2^stages-th sample.
func stridePassthrough(stages int) ProcessFunc {
	factor := 1 << stages
	return func(in []complex64, out []float32) {
		for i := range out {
			out[i] = real(in[i*factor])
		}
	}
}
