package speech

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hammamikhairi/voiceask/internal/domain"
	"github.com/hammamikhairi/voiceask/internal/logger"
)

// Compile-time interface check.
var _ domain.Speaker = (*Mouth)(nil)

// Utterance is one request to the speech engine.
type Utterance struct {
	Text  string
	Voice *domain.Voice // nil = engine default
	Pitch float64
	Rate  float64
}

// Synthesizer renders and plays utterances.
type Synthesizer interface {
	// Voices returns the engine's voice catalog.
	Voices(ctx context.Context) ([]domain.Voice, error)
	// Speak blocks until the utterance has finished playing or ctx is
	// cancelled. started is called once, when audio begins.
	Speak(ctx context.Context, u Utterance, started func()) error
}

// MouthOption configures the Mouth.
type MouthOption func(*Mouth)

// WithPitch sets the utterance pitch, clamped to [0, 2].
func WithPitch(p float64) MouthOption {
	return func(m *Mouth) {
		m.pitch = clamp(p, MinPitch, MaxPitch)
	}
}

// WithRate sets the utterance rate, clamped to [0.1, 10].
func WithRate(r float64) MouthOption {
	return func(m *Mouth) {
		m.rate = clamp(r, MinRate, MaxRate)
	}
}

// WithVoiceRules replaces the voice preference order.
func WithVoiceRules(rules ...VoiceRule) MouthOption {
	return func(m *Mouth) {
		m.rules = rules
	}
}

// Mouth speaks one utterance at a time. Speaking new text stops the
// current utterance first and waits until it has fully stopped.
type Mouth struct {
	synth Synthesizer
	log   *logger.Logger
	rules []VoiceRule
	pitch float64
	rate  float64

	speakMu sync.Mutex // serialises Speak and Stop

	mu       sync.Mutex
	listener domain.SpeechListener
	voices   []domain.Voice
	voice    *domain.Voice
	nextID   uint64
	activeID uint64
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewMouth creates a speech controller on top of a synthesizer.
func NewMouth(synth Synthesizer, log *logger.Logger, opts ...MouthOption) *Mouth {
	m := &Mouth{
		synth: synth,
		log:   log,
		rules: DefaultRules(DefaultLocale, DefaultLabels),
		pitch: DefaultTone,
		rate:  DefaultTone,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetListener registers the receiver of utterance notifications.
func (m *Mouth) SetListener(l domain.SpeechListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listener = l
}

// ── Voice catalog ────────────────────────────────────────────────

// LoadVoices fetches the catalog in the background. Until it arrives,
// utterances use the engine default voice. Non-blocking.
func (m *Mouth) LoadVoices(ctx context.Context) {
	go func() {
		voices, err := m.synth.Voices(ctx)
		if err != nil {
			m.log.Warn("mouth: loading voices failed, using engine default: %v", err)
			return
		}
		m.SetVoices(voices)
	}()
}

// SetVoices installs a new catalog and reruns voice selection. Call it
// whenever the platform reports a catalog change.
func (m *Mouth) SetVoices(voices []domain.Voice) {
	selected := SelectVoice(voices, m.rules)

	m.mu.Lock()
	m.voices = append([]domain.Voice(nil), voices...)
	m.voice = selected
	m.mu.Unlock()

	if selected != nil {
		m.log.Info("mouth: %d voices available, selected %s (%s)", len(voices), selected.Name, selected.Locale)
	} else {
		m.log.Info("mouth: %d voices available, no rule matched, using engine default", len(voices))
	}
}

// Voices returns the current catalog.
func (m *Mouth) Voices() []domain.Voice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Voice(nil), m.voices...)
}

// Voice returns the selected voice, or nil for the engine default.
func (m *Mouth) Voice() *domain.Voice {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.voice == nil {
		return nil
	}
	v := *m.voice
	return &v
}

// ── Speaking ─────────────────────────────────────────────────────

// Speak stops any current utterance, then starts speaking text. It
// returns the utterance ID used in listener callbacks. Non-blocking
// apart from waiting for the previous utterance to stop.
func (m *Mouth) Speak(text string) uint64 {
	m.speakMu.Lock()
	defer m.speakMu.Unlock()

	m.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.activeID = id
	m.cancel = cancel
	m.done = done
	u := Utterance{Text: text, Voice: m.voice, Pitch: m.pitch, Rate: m.rate}
	listener := m.listener
	m.mu.Unlock()

	m.log.Debug("mouth: utterance %d (%d chars): %s", id, len(text), truncate(text, 60))
	go m.run(ctx, id, u, listener, done)
	return id
}

// Stop cancels the current utterance and waits until it has stopped.
// Safe to call when nothing is speaking.
func (m *Mouth) Stop() {
	m.speakMu.Lock()
	defer m.speakMu.Unlock()
	m.stopLocked()
}

// Speaking reports whether an utterance is in progress.
func (m *Mouth) Speaking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done != nil
}

// stopLocked must be called with speakMu held.
func (m *Mouth) stopLocked() {
	m.mu.Lock()
	cancel, done, id := m.cancel, m.done, m.activeID
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.log.Debug("mouth: utterance %d stopped", id)
}

// run drives one utterance and reports its lifecycle. An utterance
// cancelled before audio began produces no notification at all.
func (m *Mouth) run(ctx context.Context, id uint64, u Utterance, l domain.SpeechListener, done chan struct{}) {
	defer func() {
		m.mu.Lock()
		if m.done == done {
			m.cancel()
			m.cancel = nil
			m.done = nil
		}
		m.mu.Unlock()
		close(done)
	}()

	var started atomic.Bool
	err := m.synth.Speak(ctx, u, func() {
		if started.CompareAndSwap(false, true) && l != nil {
			l.SpeechStarted(id)
		}
	})

	switch {
	case ctx.Err() != nil:
		if started.Load() && l != nil {
			l.SpeechEnded(id)
		}
	case err != nil:
		m.log.Error("mouth: utterance %d failed: %v", id, err)
		if l != nil {
			if !errors.Is(err, domain.ErrSpeechPlayback) {
				err = fmt.Errorf("%w: %v", domain.ErrSpeechPlayback, err)
			}
			l.SpeechFailed(id, err)
		}
	default:
		if l != nil {
			l.SpeechEnded(id)
		}
	}
}

// truncate shortens a string for logging.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
