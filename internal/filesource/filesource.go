// Package filesource reads I/Q recordings for file playback sessions.
//
// Recordings are stereo WAV files with the in-phase component on the left
// channel and the quadrature component on the right, the common on-disk
// format for baseband captures. Reads are blocking pulls; at end of file
// the reader rewinds and keeps producing until closed, so a session loops
// the recording.
package filesource

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Reader is a pull-based I/Q sample source backed by a WAV recording.
type Reader struct {
	logger *slog.Logger
	path   string

	mu         sync.Mutex
	fileHandle *os.File
	decoder    *wav.Decoder
	pcm        *goaudio.IntBuffer
	closed     bool

	sampleRate int
	scale      float32
}

// Open validates the recording at path and positions the reader at the
// start of its sample data.
func Open(path string) (*Reader, error) {
	logger := slog.Default().With("file source", path)

	f, err := os.Open(path)
	if err != nil {
		logger.Error("could not open recording", "err", err)
		return nil, fmt.Errorf("could not open recording: %w", err)
	}

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		f.Close()
		logger.Error("could not decode recording", "err", decoder.Err())
		return nil, errors.New("not a valid WAV recording")
	}
	if decoder.NumChans != 2 {
		f.Close()
		logger.Error("recording is not two-channel I/Q", "channels", decoder.NumChans)
		return nil, fmt.Errorf("recording must be two-channel I/Q, has %d channels", decoder.NumChans)
	}

	logger.Debug("opened recording",
		"sampleRate", decoder.SampleRate,
		"bitDepth", decoder.BitDepth,
	)

	return &Reader{
		logger:     logger,
		path:       path,
		fileHandle: f,
		decoder:    decoder,
		sampleRate: int(decoder.SampleRate),
		scale:      1 / float32(int(1)<<(decoder.BitDepth-1)),
	}, nil
}

// SampleRate reports the recording's sample rate.
func (r *Reader) SampleRate() int {
	return r.sampleRate
}

// Read fills dst with I/Q samples in the internal float range, blocking on
// file I/O. Rewinds transparently at end of file. Returns io.EOF only
// once the reader has been closed.
func (r *Reader) Read(dst []complex64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		if r.closed {
			return 0, io.EOF
		}

		if r.pcm == nil || len(r.pcm.Data) != len(dst)*2 {
			r.pcm = &goaudio.IntBuffer{Data: make([]int, len(dst)*2)}
		}

		n, err := r.decoder.PCMBuffer(r.pcm)
		if err != nil && !errors.Is(err, io.EOF) {
			r.logger.Error("error while reading recording", "err", err)
			return 0, fmt.Errorf("error while reading recording: %w", err)
		}
		if n == 0 {
			if err := r.rewindLocked(); err != nil {
				return 0, err
			}
			continue
		}

		frames := n / 2
		for i := 0; i < frames; i++ {
			dst[i] = complex(
				float32(r.pcm.Data[2*i])*r.scale,
				float32(r.pcm.Data[2*i+1])*r.scale,
			)
		}
		return frames, nil
	}
}

// rewindLocked reopens the recording at the start of its sample data.
func (r *Reader) rewindLocked() error {
	r.fileHandle.Close()

	f, err := os.Open(r.path)
	if err != nil {
		r.logger.Error("could not rewind recording", "err", err)
		return fmt.Errorf("could not rewind recording: %w", err)
	}
	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		f.Close()
		return errors.New("recording became unreadable during rewind")
	}

	r.fileHandle = f
	r.decoder = decoder
	r.logger.Debug("rewound recording")
	return nil
}

// Close releases the recording. Reads on regular files always complete,
// so this never waits long; a concurrent Read returns io.EOF on its next
// iteration.
func (r *Reader) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.fileHandle.Close()
}
