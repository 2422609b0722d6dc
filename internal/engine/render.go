package engine

import "github.com/lightcurve-labs/iqstream/pkg/sample"

// renderInto is the render adapter, invoked by the output device callback.
// It blocks until the requested frame count has been read from the output
// queue, then expands the mono result across the output channel layout
// under the current gain. Once the queue closes, the tail is silence.
func (e *Engine) renderInto(out []float32, frames int) {
	mono := e.renderScratch.Take(frames)

	filled := 0
	for filled < frames {
		n, err := e.outQ.Read(mono[filled:frames])
		filled += n
		if err != nil {
			break
		}
	}
	for i := filled; i < frames; i++ {
		mono[i] = 0
	}

	channels := len(out) / frames
	sample.ExpandMono(out[:frames*channels], mono[:frames], channels, e.loadOutputGain())
}

// duplexCycle is the combined-device path: capture, processing and render
// inside one synchronous callback on the shared device clock. No queues,
// no driver goroutine, zero decimation.
func (e *Engine) duplexCycle(out, in []float32, frames int) {
	iq := e.driverIn.Take(frames)
	mono := e.driverOut.Take(frames)

	sample.Deinterleave(iq, in[:frames*deviceChannels], e.inputGain)
	if e.swap.Load() {
		sample.SwapIQ(iq)
	}
	e.sessionProc(iq, mono)

	channels := len(out) / frames
	sample.ExpandMono(out[:frames*channels], mono, channels, e.loadOutputGain())
}
