package engine

import "github.com/lightcurve-labs/iqstream/pkg/sample"

// runDriver is the processing driver: a dedicated goroutine that drains
// the input queue one buffer at a time, runs the processing hook, and
// pushes the result downstream. It exits when either queue closes.
func (e *Engine) runDriver() {
	defer e.wg.Done()

	frames := e.frames
	proc := e.sessionProc
	minRead := max(e.cfg.MinReadSize, 1)
	in := e.driverIn.Take(frames)
	out := e.driverOut.Take(e.outFrames)

	filled := 0
	for {
		// Adaptive read sizing: a large backlog drains in few big reads,
		// while a near-empty queue still makes progress off whatever the
		// blocking read returns.
		req := clampReadSize(e.inQ.Len(), minRead, frames-filled)
		n, err := e.inQ.Read(in[filled : filled+req])
		filled += n
		if err != nil {
			return
		}
		if filled < frames {
			continue
		}
		filled = 0

		if e.swap.Load() {
			sample.SwapIQ(in)
		}
		proc(in, out)

		// The driver is not a real-time callback; blocking here is the
		// intended backpressure towards the capture side.
		if err := e.outQ.Write(out); err != nil {
			return
		}
	}
}

// clampReadSize bounds a read request between the minimum element count
// and whatever is still needed to complete the buffer.
func clampReadSize(available, minimum, remaining int) int {
	return min(max(available, minimum), remaining)
}
