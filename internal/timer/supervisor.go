// Package timer implements the background watchdog that keeps an eye on
// the published session: it stops recordings that run too long and
// tells the user when the assistant is slow to answer.
package timer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hammamikhairi/voiceask/internal/domain"
	"github.com/hammamikhairi/voiceask/internal/logger"
)

// CaptureStopper ends the recording of one session generation, leaving
// any newer recording alone. Implemented by the engine.
type CaptureStopper interface {
	StopRecording(ctx context.Context, generation uint64) error
}

// Option configures the supervisor.
type Option func(*Supervisor)

// WithTickInterval sets how often the supervisor checks the session.
func WithTickInterval(d time.Duration) Option {
	return func(s *Supervisor) {
		s.tickInterval = d
	}
}

// WithMaxRecording sets the longest allowed recording. Zero disables the
// limit.
func WithMaxRecording(d time.Duration) Option {
	return func(s *Supervisor) {
		s.maxRecording = d
	}
}

// WithWarnBefore sets how long before the limit the user is warned.
func WithWarnBefore(d time.Duration) Option {
	return func(s *Supervisor) {
		s.warnBefore = d
	}
}

// WithSlowUploadAfter sets how long an upload may run before the user is
// told the assistant is still working. Zero disables the notice.
func WithSlowUploadAfter(d time.Duration) Option {
	return func(s *Supervisor) {
		s.slowUploadAfter = d
	}
}

// Supervisor polls the session store on a ticker. Each notice fires at
// most once per session generation.
type Supervisor struct {
	store           domain.SessionStore
	stopper         CaptureStopper
	notifier        domain.Notifier
	log             *logger.Logger
	tickInterval    time.Duration
	maxRecording    time.Duration
	warnBefore      time.Duration
	slowUploadAfter time.Duration

	// Generations already handled, touched only by the loop.
	warnedGen  uint64
	stoppedGen uint64
	slowGen    uint64

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a watchdog with the given dependencies and options.
func New(store domain.SessionStore, stopper CaptureStopper, notifier domain.Notifier, log *logger.Logger, opts ...Option) *Supervisor {
	s := &Supervisor{
		store:           store,
		stopper:         stopper,
		notifier:        notifier,
		log:             log,
		tickInterval:    250 * time.Millisecond,
		maxRecording:    2 * time.Minute,
		warnBefore:      10 * time.Second,
		slowUploadAfter: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the background loop. Non-blocking.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.log.Warn("watchdog already running")
		return
	}

	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(childCtx, s.done)

	s.log.Info("watchdog started (tick=%s, max recording=%s)", s.tickInterval, s.maxRecording)
}

// Stop shuts the loop down and waits for it to exit.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	done := s.done
	s.running = false
	s.mu.Unlock()

	<-done
	s.log.Info("watchdog stopped")
}

func (s *Supervisor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs one cycle against the latest snapshot.
func (s *Supervisor) tick(ctx context.Context) {
	state, err := s.store.Load(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return
	}
	if err != nil {
		s.log.Error("watchdog: loading session: %v", err)
		return
	}

	elapsed := time.Since(state.PhaseSince)

	switch state.Phase {
	case domain.PhaseRecording:
		s.checkRecording(ctx, state, elapsed)
	case domain.PhaseUploading:
		s.checkUpload(ctx, state, elapsed)
	}
}

func (s *Supervisor) checkRecording(ctx context.Context, state *domain.SessionState, elapsed time.Duration) {
	if s.maxRecording <= 0 {
		return
	}

	if elapsed >= s.maxRecording {
		if s.stoppedGen == state.Generation {
			return
		}
		s.stoppedGen = state.Generation
		s.log.Info("watchdog: recording %d hit the %s limit", state.Generation, s.maxRecording)

		msg := fmt.Sprintf("[Recording] Stopped after %s.", formatRemaining(s.maxRecording))
		if err := s.notifier.NotifyUrgent(ctx, msg); err != nil {
			s.log.Error("watchdog: notifying recording stop: %v", err)
		}
		if err := s.stopper.StopRecording(ctx, state.Generation); err != nil {
			s.log.Error("watchdog: ending capture: %v", err)
		}
		return
	}

	// Warn once, only for limits long enough that a warning means something.
	remaining := s.maxRecording - elapsed
	if s.warnedGen != state.Generation && remaining <= s.warnBefore && s.maxRecording > s.warnBefore*2 {
		s.warnedGen = state.Generation
		msg := fmt.Sprintf("[Recording] %s left.", formatRemaining(remaining))
		if err := s.notifier.Notify(ctx, msg); err != nil {
			s.log.Error("watchdog: warning notify: %v", err)
		}
	}
}

func (s *Supervisor) checkUpload(ctx context.Context, state *domain.SessionState, elapsed time.Duration) {
	if s.slowUploadAfter <= 0 || elapsed < s.slowUploadAfter || s.slowGen == state.Generation {
		return
	}
	s.slowGen = state.Generation
	msg := fmt.Sprintf("Still waiting for the assistant (%s)...", formatRemaining(elapsed))
	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.log.Error("watchdog: slow upload notify: %v", err)
	}
}

// formatRemaining returns a human-friendly duration. Rounds to the
// nearest minute once there's at least 1 minute.
func formatRemaining(d time.Duration) string {
	d = d.Round(time.Second)
	totalSec := int(d.Seconds())
	if totalSec < 60 {
		if totalSec == 1 {
			return "1 second"
		}
		return fmt.Sprintf("%d seconds", totalSec)
	}
	m := (totalSec + 30) / 60
	if m == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}
