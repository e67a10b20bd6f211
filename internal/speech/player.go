package speech

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/hammamikhairi/voiceask/internal/encoder"
	"github.com/hammamikhairi/voiceask/internal/logger"
)

// AudioSink plays WAV data.
type AudioSink interface {
	// Play blocks until playback finishes or ctx is cancelled. started is
	// called once the first samples are queued; it may be nil.
	Play(ctx context.Context, wav []byte, started func()) error
}

// Compile-time interface check.
var _ AudioSink = (*Player)(nil)

// Player handles audio playback of WAV/PCM data via oto. One system
// audio context is shared by synthesized answers and recorded questions.
type Player struct {
	ctx    *oto.Context
	log    *logger.Logger
	mu     sync.Mutex
	active *oto.Player // currently playing, nil when idle
}

// NewPlayer creates an audio player. Initializes the system audio context.
// Returns an error if the audio device is unavailable.
func NewPlayer(log *logger.Logger) (*Player, error) {
	op := &oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: ChannelCount,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-readyChan

	log.Debug("audio player initialized (rate=%d, channels=%d)", SampleRate, ChannelCount)
	return &Player{ctx: ctx, log: log}, nil
}

// Play plays WAV audio. Only one sound plays at a time: starting a new
// one interrupts the previous.
func (p *Player) Play(ctx context.Context, wavData []byte, started func()) error {
	pcm, err := encoder.ExtractPCM(wavData)
	if err != nil {
		return err
	}

	p.Stop()

	player := p.ctx.NewPlayer(bytes.NewReader(pcm))

	p.mu.Lock()
	p.active = player
	p.mu.Unlock()

	player.Play()
	p.log.Debug("audio player: playing %d bytes of PCM", len(pcm))
	if started != nil {
		started()
	}

	// Wait for playback to complete or be interrupted.
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
		case <-time.After(10 * time.Millisecond):
		}
	}

	p.mu.Lock()
	if p.active == player {
		p.active = nil
	}
	p.mu.Unlock()

	if err := player.Close(); err != nil {
		return err
	}
	return ctx.Err()
}

// PlayFile plays a WAV file from disk.
func (p *Player) PlayFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("audio player: %w", err)
	}
	return p.Play(ctx, data, nil)
}

// Stop interrupts the currently playing audio, if any. Safe to call
// concurrently and when nothing is playing.
func (p *Player) Stop() {
	p.mu.Lock()
	active := p.active
	p.mu.Unlock()

	if active != nil {
		active.Pause()
		p.log.Debug("audio player: interrupted")
	}
}
