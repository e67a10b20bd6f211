package capture

import (
	"context"
	"sync"

	"github.com/hammamikhairi/voiceask/internal/domain"
)

// FakeDevice is a scripted Device for tests and for running without a
// microphone. Chunks queued with Push are delivered on the next Open;
// Emit delivers a chunk to the currently open stream.
type FakeDevice struct {
	mu      sync.Mutex
	OpenErr error
	// Hold, when set, keeps Open blocked until it is closed.
	Hold    chan struct{}
	pending [][]byte
	onChunk func([]byte)
	opens   int
	stops   int
}

// Push queues chunks to be delivered as soon as the device is opened.
func (f *FakeDevice) Push(chunks ...[]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, chunks...)
}

// Emit delivers a chunk to the open stream. It reports false when no
// stream is open.
func (f *FakeDevice) Emit(chunk []byte) bool {
	f.mu.Lock()
	cb := f.onChunk
	f.mu.Unlock()
	if cb == nil {
		return false
	}
	cb(chunk)
	return true
}

// Open implements Device.
func (f *FakeDevice) Open(ctx context.Context, _ domain.AudioFormat, onChunk func([]byte)) (Stream, error) {
	f.mu.Lock()
	hold := f.Hold
	f.mu.Unlock()
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	f.opens++
	if f.OpenErr != nil {
		err := f.OpenErr
		f.mu.Unlock()
		return nil, err
	}
	f.onChunk = onChunk
	pending := f.pending
	f.pending = nil
	f.mu.Unlock()

	for _, ch := range pending {
		onChunk(ch)
	}
	return &fakeStream{dev: f}, nil
}

// Counts returns how many times the device was opened and stopped.
func (f *FakeDevice) Counts() (opens, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens, f.stops
}

type fakeStream struct {
	dev  *FakeDevice
	once sync.Once
}

func (s *fakeStream) Stop() error {
	s.once.Do(func() {
		s.dev.mu.Lock()
		s.dev.onChunk = nil
		s.dev.stops++
		s.dev.mu.Unlock()
	})
	return nil
}
