package engine

import (
	"time"

	"github.com/lightcurve-labs/iqstream/internal/filesource"
	"github.com/lightcurve-labs/iqstream/pkg/sample"
)

// deviceCapture is the capture adapter for a live input device. It runs
// inside the device callback, so it converts, gains and hands off without
// ever blocking: past the low watermark the buffer is dropped instead.
func (e *Engine) deviceCapture(in []float32, frames int) {
	iq := e.captureScratch.Take(frames)
	sample.Deinterleave(iq, in[:frames*deviceChannels], e.inputGain)
	e.inQ.WriteOrDrop(iq, e.lowWatermark)
}

// pluginCapture is the capture adapter for plugin push notifications.
// Samples arrive pre-converted; the plugin is not bound to the session
// clock, so it tolerates a deeper backlog before dropping.
func (e *Engine) pluginCapture(samples []complex64) {
	e.inQ.WriteOrDrop(samples, e.highWatermark)
}

// runFileFeeder is the capture adapter for file playback. A pull-based
// producer can exert backpressure instead of dropping: it reads ahead
// only while the queue sits below the pacing watermark, otherwise it
// yields briefly and rechecks.
func (e *Engine) runFileFeeder(reader *filesource.Reader, quit chan struct{}) {
	defer e.wg.Done()

	for {
		select {
		case <-quit:
			return
		default:
		}

		if e.inQ.Len() > e.paceWatermark {
			select {
			case <-quit:
				return
			case <-time.After(pacePollInterval):
			}
			continue
		}

		buf := e.feederScratch.Take(e.frames)
		n, err := reader.Read(buf)
		if err != nil {
			// Reader closed by teardown.
			return
		}
		sample.Scale(buf[:n], e.inputGain)
		if err := e.inQ.Write(buf[:n]); err != nil {
			return
		}
	}
}
