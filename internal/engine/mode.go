package engine

import (
	"fmt"

	"github.com/lightcurve-labs/iqstream/internal/filesource"
	"github.com/lightcurve-labs/iqstream/pkg/audiodevice"
)

// sessionMode is the tagged representation of the active operating mode.
// Each variant owns its runtime handles and implements the three phases
// the controller sequences: start, halt the upstream source, close the
// downstream sink. Keeping the phases on the variant means a new mode
// cannot silently skip a teardown step.
type sessionMode interface {
	name() string
	start(e *Engine) error
	// haltSource stops the sample producer so no further queue writes
	// occur. Runs before the queues are closed.
	haltSource(e *Engine)
	// closeSink releases the render side. Runs after the worker
	// goroutines have exited.
	closeSink(e *Engine)
}

// --------------------------------------------------------------------------------
// combinedDevice: source and sink are one physical device sharing a clock.
// No queues, no driver goroutine; everything happens inside the duplex
// callback.

type combinedDevice struct {
	deviceID string
	stream   audiodevice.Stream
}

func (m *combinedDevice) name() string { return "combined device" }

func (m *combinedDevice) start(e *Engine) error {
	stream, err := e.backend.OpenDuplex(m.deviceID, e.sessionRate, deviceChannels, e.frames, e.duplexCycle)
	if err != nil {
		return fmt.Errorf("could not open duplex device: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("could not start duplex device: %w", err)
	}
	m.stream = stream
	return nil
}

func (m *combinedDevice) haltSource(e *Engine) {
	if m.stream == nil {
		return
	}
	if err := m.stream.Stop(); err != nil {
		e.logger.Error("error stopping duplex device", "err", err)
	}
	m.stream.Close()
	m.stream = nil
}

func (m *combinedDevice) closeSink(e *Engine) {}

// --------------------------------------------------------------------------------
// splitDevice: separate capture and render devices on independent clocks,
// decoupled by the queues and the processing driver.

type splitDevice struct {
	inputID  string
	outputID string
	capture  audiodevice.Stream
	render   audiodevice.Stream
}

func (m *splitDevice) name() string { return "split device" }

func (m *splitDevice) start(e *Engine) error {
	e.startQueuesLocked()
	e.startDriverLocked()

	render, err := e.openRenderLocked(m.outputID)
	if err != nil {
		return err
	}
	m.render = render

	capture, err := e.backend.OpenCapture(m.inputID, e.sessionRate, deviceChannels, e.frames, e.deviceCapture)
	if err != nil {
		return fmt.Errorf("could not open input device: %w", err)
	}
	if err := capture.Start(); err != nil {
		capture.Close()
		return fmt.Errorf("could not start input device: %w", err)
	}
	m.capture = capture
	return nil
}

func (m *splitDevice) haltSource(e *Engine) {
	if m.capture == nil {
		return
	}
	if err := m.capture.Stop(); err != nil {
		e.logger.Error("error stopping input device", "err", err)
	}
	m.capture.Close()
	m.capture = nil
}

func (m *splitDevice) closeSink(e *Engine) {
	if m.render == nil {
		return
	}
	if err := m.render.Stop(); err != nil {
		e.logger.Error("error stopping output device", "err", err)
	}
	m.render.Close()
	m.render = nil
}

// --------------------------------------------------------------------------------
// filePlayback: a feeder goroutine pulls from the recording under the
// pacing policy; render runs on the output device clock.

type filePlayback struct {
	path     string
	outputID string
	reader   *filesource.Reader
	render   audiodevice.Stream
}

func (m *filePlayback) name() string { return "file playback" }

func (m *filePlayback) start(e *Engine) error {
	reader, err := filesource.Open(m.path)
	if err != nil {
		return err
	}
	m.reader = reader

	e.startQueuesLocked()
	e.startDriverLocked()

	render, err := e.openRenderLocked(m.outputID)
	if err != nil {
		return err
	}
	m.render = render

	e.wg.Add(1)
	go e.runFileFeeder(reader, e.quit)
	return nil
}

func (m *filePlayback) haltSource(e *Engine) {
	if m.reader == nil {
		return
	}
	m.reader.Close()
	m.reader = nil
}

func (m *filePlayback) closeSink(e *Engine) {
	if m.render == nil {
		return
	}
	if err := m.render.Stop(); err != nil {
		e.logger.Error("error stopping output device", "err", err)
	}
	m.render.Close()
	m.render = nil
}

// --------------------------------------------------------------------------------
// externalHardware: the plugin pushes pre-converted samples at its own
// cadence; registration is paired with unregistration in haltSource so a
// late notification cannot fire into a torn-down session.

type externalHardware struct {
	libraryPath string
	outputID    string
	render      audiodevice.Stream
}

func (m *externalHardware) name() string { return "external hardware" }

func (m *externalHardware) start(e *Engine) error {
	e.startQueuesLocked()
	e.startDriverLocked()

	render, err := e.openRenderLocked(m.outputID)
	if err != nil {
		return err
	}
	m.render = render

	e.plugin.SetSampleHandler(e.pluginCapture)
	if err := e.plugin.Start(); err != nil {
		e.plugin.SetSampleHandler(nil)
		return fmt.Errorf("could not start hardware: %w", err)
	}
	return nil
}

func (m *externalHardware) haltSource(e *Engine) {
	if e.plugin == nil {
		return
	}
	if err := e.plugin.Stop(); err != nil {
		e.logger.Error("error stopping hardware", "err", err)
	}
	e.plugin.SetSampleHandler(nil)
}

func (m *externalHardware) closeSink(e *Engine) {
	if m.render == nil {
		return
	}
	if err := m.render.Stop(); err != nil {
		e.logger.Error("error stopping output device", "err", err)
	}
	m.render.Close()
	m.render = nil
}
