// Package capture owns the microphone. It records one question at a time
// and hands back the finished recording as a single blob.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hammamikhairi/voiceask/internal/domain"
	"github.com/hammamikhairi/voiceask/internal/logger"
)

// Compile-time interface check.
var _ domain.AudioCapture = (*Controller)(nil)

// ErrAlreadyRecording is returned by Begin while a recording is running.
var ErrAlreadyRecording = errors.New("capture: already recording")

// Controller accumulates microphone chunks between Begin and End.
type Controller struct {
	device Device
	format domain.AudioFormat
	log    *logger.Logger

	mu        sync.Mutex
	stream    Stream
	chunks    [][]byte
	size      int
	accepting bool // chunks are appended while true
	recording bool
	startedAt time.Time
}

// NewController creates a capture controller for the given device. The
// device is opened with domain.DefaultAudioFormat, the rate the player
// runs at.
func NewController(device Device, log *logger.Logger) *Controller {
	return &Controller{
		device: device,
		format: domain.DefaultAudioFormat,
		log:    log,
	}
}

// Begin opens the device and starts buffering. A device that cannot be
// opened yields an error wrapping domain.ErrCaptureUnavailable and leaves
// the controller idle.
func (c *Controller) Begin(ctx context.Context) error {
	c.mu.Lock()
	if c.recording || c.accepting {
		c.mu.Unlock()
		return ErrAlreadyRecording
	}
	c.chunks = nil
	c.size = 0
	c.accepting = true
	c.mu.Unlock()

	stream, err := c.device.Open(ctx, c.format, c.onChunk)
	if err != nil {
		c.mu.Lock()
		c.accepting = false
		c.chunks = nil
		c.size = 0
		c.mu.Unlock()
		c.log.Warn("capture: open failed: %v", err)
		return fmt.Errorf("%w: %v", domain.ErrCaptureUnavailable, err)
	}

	c.mu.Lock()
	c.stream = stream
	c.recording = true
	c.startedAt = time.Now()
	c.mu.Unlock()

	c.log.Info("capture: recording started (%d Hz, %d ch)", c.format.SampleRate, c.format.Channels)
	return nil
}

// End stops the device and returns everything buffered, in arrival order.
// When no recording is running it does nothing and returns false.
func (c *Controller) End() (*domain.Blob, bool) {
	c.mu.Lock()
	if !c.recording {
		c.mu.Unlock()
		return nil, false
	}
	c.recording = false
	stream := c.stream
	c.stream = nil
	started := c.startedAt
	c.mu.Unlock()

	// Stop first so chunks already in flight still land in the buffer.
	if err := stream.Stop(); err != nil {
		c.log.Warn("capture: stopping device: %v", err)
	}

	c.mu.Lock()
	c.accepting = false
	chunks, size := c.chunks, c.size
	c.chunks = nil
	c.size = 0
	c.mu.Unlock()

	data := make([]byte, 0, size)
	for _, ch := range chunks {
		data = append(data, ch...)
	}
	blob := domain.NewBlob(data, c.format)

	c.log.Info("capture: recording stopped after %s (%d chunks, %d bytes, %s of audio)",
		time.Since(started).Round(time.Millisecond), len(chunks), len(data), blob.Duration().Round(time.Millisecond))
	return blob, true
}

// Recording reports whether a recording is running.
func (c *Controller) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording
}

// onChunk runs on the device callback goroutine. The device may reuse
// its buffer, so the data is copied.
func (c *Controller) onChunk(data []byte) {
	if len(data) == 0 {
		return
	}
	buf := make([]byte, len(data))
	copy(buf, data)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.accepting {
		return
	}
	c.chunks = append(c.chunks, buf)
	c.size += len(buf)
}
