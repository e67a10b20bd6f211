package capture

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/malgo"

	"github.com/hammamikhairi/voiceask/internal/domain"
	"github.com/hammamikhairi/voiceask/internal/logger"
)

// Device opens a microphone stream. onChunk is called from the device's
// own goroutine with raw PCM in arrival order until the stream is stopped.
type Device interface {
	Open(ctx context.Context, format domain.AudioFormat, onChunk func([]byte)) (Stream, error)
}

// Stream is an open capture. After Stop returns no more chunks are
// delivered and the device is released.
type Stream interface {
	Stop() error
}

// ── malgo ────────────────────────────────────────────────────────

// MalgoDevice captures from a system microphone through miniaudio.
type MalgoDevice struct {
	name string // substring match on the device name, empty = default
	log  *logger.Logger
}

// NewMalgoDevice creates a miniaudio capture device. If name is
// non-empty, the first capture device whose name contains it
// (case-insensitive) is used.
func NewMalgoDevice(name string, log *logger.Logger) *MalgoDevice {
	return &MalgoDevice{name: name, log: log}
}

// Open initialises miniaudio and starts capturing.
func (d *MalgoDevice) Open(ctx context.Context, format domain.AudioFormat, onChunk func([]byte)) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		d.log.Debug("malgo: %s", strings.TrimSpace(msg))
	})
	if err != nil {
		return nil, fmt.Errorf("malgo init context: %w", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(format.Channels)
	cfg.SampleRate = uint32(format.SampleRate)
	cfg.Alsa.NoMMap = 1

	if d.name != "" {
		info, err := findDevice(mctx, d.name)
		if err != nil {
			freeContext(mctx)
			return nil, err
		}
		id := info.ID
		cfg.Capture.DeviceID = id.Pointer()
		d.log.Info("capture: using device %q", info.Name())
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) {
			onChunk(in)
		},
	}

	dev, err := malgo.InitDevice(mctx.Context, cfg, callbacks)
	if err != nil {
		freeContext(mctx)
		return nil, fmt.Errorf("malgo init device: %w", err)
	}

	if err := dev.Start(); err != nil {
		dev.Uninit()
		freeContext(mctx)
		return nil, fmt.Errorf("malgo start device: %w", err)
	}

	return &malgoStream{ctx: mctx, dev: dev}, nil
}

type malgoStream struct {
	ctx *malgo.AllocatedContext
	dev *malgo.Device
}

func (s *malgoStream) Stop() error {
	err := s.dev.Stop()
	s.dev.Uninit()
	freeContext(s.ctx)
	return err
}

// ListDevices returns the names of the available capture devices.
func ListDevices(log *logger.Logger) ([]string, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		log.Debug("malgo: %s", strings.TrimSpace(msg))
	})
	if err != nil {
		return nil, fmt.Errorf("malgo init context: %w", err)
	}
	defer freeContext(mctx)

	devices, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("malgo devices: %w", err)
	}
	names := make([]string, 0, len(devices))
	for _, d := range devices {
		names = append(names, d.Name())
	}
	return names, nil
}

func findDevice(mctx *malgo.AllocatedContext, name string) (malgo.DeviceInfo, error) {
	devices, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceInfo{}, fmt.Errorf("malgo devices: %w", err)
	}
	want := strings.ToLower(name)
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.Name()), want) {
			return d, nil
		}
	}
	return malgo.DeviceInfo{}, fmt.Errorf("no capture device matching %q", name)
}

func freeContext(mctx *malgo.AllocatedContext) {
	_ = mctx.Uninit()
	mctx.Free()
}
