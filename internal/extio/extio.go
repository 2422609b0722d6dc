// Package extio defines the contract the engine consumes from an external
// radio-hardware plugin: a dynamically loaded driver exposing start/stop,
// a sample rate query, and an asynchronous samples-available notification
// delivering pre-converted I/Q blocks at the hardware's own cadence.
//
// The engine registers a sample handler before starting the hardware and
// unregisters it during teardown, so a late notification can never fire
// into a torn-down session.
package extio

import (
	"errors"
	"sync"
	"time"
)

// SampleHandler receives a block of I/Q samples pushed by the hardware.
// The slice is only valid for the duration of the call.
type SampleHandler func(samples []complex64)

// Plugin is the capability contract of an external-hardware driver.
type Plugin interface {
	// LoadLibrary binds the plugin to its driver library.
	LoadLibrary(path string) error
	// Open prepares the hardware; SampleRate is valid afterwards.
	Open() error
	IsOpen() bool
	// Start begins delivery of samples-available notifications.
	Start() error
	// Stop halts delivery. No handler is invoked after Stop returns.
	Stop() error
	SampleRate() float64
	// SetSampleHandler registers the notification target. Passing nil
	// unregisters it.
	SetSampleHandler(h SampleHandler)
	Close() error
}

var (
	ErrNotLoaded = errors.New("extio: no driver library loaded")
	ErrNotOpen   = errors.New("extio: hardware not open")
)

// SimPlugin is a deterministic in-process Plugin used by tests and the
// examples. It synthesizes a repeating I/Q ramp; with a non-zero push
// interval it delivers blocks from its own goroutine, mimicking real
// hardware cadence, and with a zero interval blocks are delivered only
// through Push.
type SimPlugin struct {
	Rate         float64
	BlockSize    int
	PushInterval time.Duration

	mu      sync.Mutex
	loaded  bool
	open    bool
	running bool
	handler SampleHandler
	phase   int

	quit chan struct{}
	wg   sync.WaitGroup
}

func (p *SimPlugin) LoadLibrary(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loaded = true
	return nil
}

func (p *SimPlugin) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return ErrNotLoaded
	}
	p.open = true
	return nil
}

func (p *SimPlugin) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

func (p *SimPlugin) SampleRate() float64 {
	return p.Rate
}

func (p *SimPlugin) SetSampleHandler(h SampleHandler) {
	p.mu.Lock()
	p.handler = h
	p.mu.Unlock()
}

func (p *SimPlugin) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return ErrNotOpen
	}
	if p.running {
		return nil
	}
	p.running = true
	if p.PushInterval > 0 {
		p.quit = make(chan struct{})
		p.wg.Add(1)
		go p.pushLoop(p.quit)
	}
	return nil
}

func (p *SimPlugin) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	quit := p.quit
	p.quit = nil
	p.mu.Unlock()

	if quit != nil {
		close(quit)
	}
	p.wg.Wait()
	return nil
}

func (p *SimPlugin) Close() error {
	if err := p.Stop(); err != nil {
		return err
	}
	p.mu.Lock()
	p.open = false
	p.mu.Unlock()
	return nil
}

// Push synthesizes one block and delivers it to the registered handler,
// as a hardware notification would. Reports whether a handler ran.
func (p *SimPlugin) Push() bool {
	p.mu.Lock()
	if !p.running || p.handler == nil {
		p.mu.Unlock()
		return false
	}
	handler := p.handler
	block := p.nextBlockLocked()
	p.mu.Unlock()

	handler(block)
	return true
}

// nextBlockLocked produces the next slice of the repeating ramp. The
// sequence depends only on how many samples have been produced, so two
// runs over the same span are identical.
func (p *SimPlugin) nextBlockLocked() []complex64 {
	n := p.BlockSize
	if n <= 0 {
		n = 1024
	}
	block := make([]complex64, n)
	for i := range block {
		v := float32((p.phase+i)%1000) / 1000
		block[i] = complex(v, -v)
	}
	p.phase += n
	return block
}

func (p *SimPlugin) pushLoop(quit chan struct{}) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.PushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			p.Push()
		}
	}
}
