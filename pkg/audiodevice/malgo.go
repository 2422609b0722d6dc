package audiodevice

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unsafe"

	"github.com/gen2brain/malgo"
)

// MalgoBackend is the real device backend, built on miniaudio via malgo.
// One backend owns one miniaudio context; streams opened from it share it.
type MalgoBackend struct {
	logger *slog.Logger
	ctx    *malgo.AllocatedContext

	closeOnce sync.Once
}

// NewMalgoBackend initializes a miniaudio context with the platform's
// default driver backend.
func NewMalgoBackend() (*MalgoBackend, error) {
	logger := slog.Default().With("component", "malgo backend")

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("miniaudio", "message", strings.TrimSpace(message))
	})
	if err != nil {
		logger.Error("failed to initialize miniaudio context", "err", err)
		return nil, fmt.Errorf("failed to initialize miniaudio context: %w", err)
	}

	return &MalgoBackend{logger: logger, ctx: ctx}, nil
}

// Close releases the miniaudio context. All streams opened from this
// backend must be closed first.
func (b *MalgoBackend) Close() {
	b.closeOnce.Do(func() {
		_ = b.ctx.Uninit()
		b.ctx.Free()
	})
}

// ListCaptureDevices enumerates the available capture devices.
func (b *MalgoBackend) ListCaptureDevices() ([]DeviceInfo, error) {
	return b.listDevices(malgo.Capture)
}

// ListPlaybackDevices enumerates the available playback devices.
func (b *MalgoBackend) ListPlaybackDevices() ([]DeviceInfo, error) {
	return b.listDevices(malgo.Playback)
}

func (b *MalgoBackend) listDevices(kind malgo.DeviceType) ([]DeviceInfo, error) {
	infos, err := b.ctx.Devices(kind)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	devices := make([]DeviceInfo, 0, len(infos))
	for _, info := range infos {
		id, err := hexToASCII(info.ID.String())
		if err != nil {
			b.logger.Warn("skipping device with undecodable id", "name", info.Name(), "err", err)
			continue
		}
		devices = append(devices, DeviceInfo{
			ID:        id,
			Name:      info.Name(),
			IsDefault: info.IsDefault == 1,
		})
	}
	return devices, nil
}

func (b *MalgoBackend) OpenCapture(deviceID string, sampleRate, channels, frames int, fn CaptureFunc) (Stream, error) {
	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.Capture.Format = malgo.FormatF32
	config.Capture.Channels = uint32(channels)
	config.SampleRate = uint32(sampleRate)
	config.PeriodSizeInFrames = uint32(frames)
	config.Alsa.NoMMap = 1

	if deviceID != "" {
		ptr, err := b.resolveDevice(malgo.Capture, deviceID)
		if err != nil {
			return nil, err
		}
		config.Capture.DeviceID = ptr
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			fn(bytesToFloat32(pInput), int(frameCount))
		},
	}
	return b.initStream(config, callbacks, "capture", deviceID)
}

func (b *MalgoBackend) OpenPlayback(deviceID string, sampleRate, channels, frames int, fn RenderFunc) (Stream, error) {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatF32
	config.Playback.Channels = uint32(channels)
	config.SampleRate = uint32(sampleRate)
	config.PeriodSizeInFrames = uint32(frames)
	config.Alsa.NoMMap = 1

	if deviceID != "" {
		ptr, err := b.resolveDevice(malgo.Playback, deviceID)
		if err != nil {
			return nil, err
		}
		config.Playback.DeviceID = ptr
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, frameCount uint32) {
			fn(bytesToFloat32(pOutput), int(frameCount))
		},
	}
	return b.initStream(config, callbacks, "playback", deviceID)
}

func (b *MalgoBackend) OpenDuplex(deviceID string, sampleRate, channels, frames int, fn DuplexFunc) (Stream, error) {
	config := malgo.DefaultDeviceConfig(malgo.Duplex)
	config.Capture.Format = malgo.FormatF32
	config.Capture.Channels = uint32(channels)
	config.Playback.Format = malgo.FormatF32
	config.Playback.Channels = uint32(channels)
	config.SampleRate = uint32(sampleRate)
	config.PeriodSizeInFrames = uint32(frames)
	config.Alsa.NoMMap = 1

	if deviceID != "" {
		capturePtr, err := b.resolveDevice(malgo.Capture, deviceID)
		if err != nil {
			return nil, err
		}
		playbackPtr, err := b.resolveDevice(malgo.Playback, deviceID)
		if err != nil {
			return nil, err
		}
		config.Capture.DeviceID = capturePtr
		config.Playback.DeviceID = playbackPtr
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, pInput []byte, frameCount uint32) {
			fn(bytesToFloat32(pOutput), bytesToFloat32(pInput), int(frameCount))
		},
	}
	return b.initStream(config, callbacks, "duplex", deviceID)
}

// resolveDevice matches a device by decoded identifier or name substring.
func (b *MalgoBackend) resolveDevice(kind malgo.DeviceType, deviceID string) (unsafe.Pointer, error) {
	infos, err := b.ctx.Devices(kind)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for _, info := range infos {
		decoded, err := hexToASCII(info.ID.String())
		if err != nil {
			continue
		}
		if decoded == deviceID || strings.Contains(info.Name(), deviceID) {
			return info.ID.Pointer(), nil
		}
	}
	return nil, fmt.Errorf("no device matching %q", deviceID)
}

func (b *MalgoBackend) initStream(config malgo.DeviceConfig, callbacks malgo.DeviceCallbacks, kind, deviceID string) (Stream, error) {
	device, err := malgo.InitDevice(b.ctx.Context, config, callbacks)
	if err != nil {
		b.logger.Error("device init failed", "kind", kind, "device", deviceID, "err", err)
		return nil, fmt.Errorf("failed to open %s device: %w", kind, err)
	}
	b.logger.Debug("device opened",
		"kind", kind,
		"device", deviceID,
		"sampleRate", config.SampleRate,
		"periodFrames", config.PeriodSizeInFrames,
	)
	return &malgoStream{device: device}, nil
}

type malgoStream struct {
	device    *malgo.Device
	closeOnce sync.Once
}

func (s *malgoStream) Start() error {
	return s.device.Start()
}

func (s *malgoStream) Stop() error {
	return s.device.Stop()
}

func (s *malgoStream) Close() {
	s.closeOnce.Do(func() {
		s.device.Uninit()
	})
}

// hexToASCII decodes miniaudio's hex-encoded device identifiers.
func hexToASCII(hexStr string) (string, error) {
	decoded, err := hex.DecodeString(hexStr)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(decoded), "\x00"), nil
}

// bytesToFloat32 views a native sample buffer as float32 without copying.
func bytesToFloat32(b []byte) []float32 {
	if len(b) < 4 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/4)
}
