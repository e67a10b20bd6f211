// Package engine implements the question/answer session state machine.
//
// One goroutine (Run) owns the SessionState. User actions and async
// completions are posted to an unbounded inbox and applied in order, so
// no controller ever mutates the state directly.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hammamikhairi/voiceask/internal/conversation"
	"github.com/hammamikhairi/voiceask/internal/domain"
	"github.com/hammamikhairi/voiceask/internal/logger"
)

// ErrStopped is returned by actions posted after Run has exited.
var ErrStopped = errors.New("engine stopped")

// Compile-time interface check.
var _ domain.SpeechListener = (*Engine)(nil)

// Observer is told about transitions and request outcomes. Used for
// metrics; must not block.
type Observer interface {
	PhaseChanged(from, to domain.Phase)
	UploadFinished(outcome string, latency time.Duration)
	StaleDiscarded(kind string)
}

// Upload outcomes reported to the Observer.
const (
	OutcomeOK        = "ok"
	OutcomeServer    = "server_error"
	OutcomeTransport = "transport_error"
)

// Option configures the engine.
type Option func(*Engine)

// WithObserver registers an Observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// WithUploadTimeout bounds each inference request. Zero leaves it to the
// client.
func WithUploadTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.uploadTimeout = d
	}
}

// Engine drives one session through capture, upload and speech.
// It depends only on interfaces and is fully testable with fakes.
type Engine struct {
	capture  domain.AudioCapture
	stash    domain.AudioStash
	client   domain.InferenceClient
	speaker  domain.Speaker
	store    domain.SessionStore
	log      *logger.Logger
	observer Observer

	uploadTimeout time.Duration

	inbox   inbox
	stopped chan struct{}
	running atomic.Bool

	published atomic.Pointer[domain.SessionState]
	updates   chan struct{}

	// Owned by the Run goroutine.
	state          *domain.SessionState
	runCtx         context.Context
	granting       bool
	stopAfterGrant bool
	pendingBegin   []chan error
	speechID       uint64
}

// New creates an engine with the session in Idle. The engine registers
// itself as the speaker's listener.
func New(
	capture domain.AudioCapture,
	stash domain.AudioStash,
	client domain.InferenceClient,
	speaker domain.Speaker,
	store domain.SessionStore,
	log *logger.Logger,
	opts ...Option,
) *Engine {
	now := time.Now()
	e := &Engine{
		capture:  capture,
		stash:    stash,
		client:   client,
		speaker:  speaker,
		store:    store,
		log:      log,
		observer: nopObserver{},
		inbox:    inbox{wake: make(chan struct{}, 1)},
		stopped:  make(chan struct{}),
		updates:  make(chan struct{}, 1),
		state: &domain.SessionState{
			ID:            generateID(),
			Phase:         domain.PhaseIdle,
			StatusMessage: LineReady(),
			PhaseSince:    now,
			UpdatedAt:     now,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.published.Store(e.state.Clone())
	speaker.SetListener(e)
	return e
}

// Snapshot returns a copy of the latest published state.
func (e *Engine) Snapshot() *domain.SessionState {
	return e.published.Load().Clone()
}

// Updates signals after every published transition. Signals coalesce;
// read Snapshot for the current state.
func (e *Engine) Updates() <-chan struct{} {
	return e.updates
}

// Run processes events until ctx is cancelled. On exit it stops speech,
// releases the microphone and removes the playable audio file.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("engine: already running")
	}
	defer close(e.stopped)

	e.runCtx = ctx
	e.publish(ctx)
	e.log.Info("engine: session %s started", e.state.ID)

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return nil
		case <-e.inbox.wake:
		}
		for _, ev := range e.inbox.drain() {
			e.handle(ctx, ev)
		}
	}
}

func (e *Engine) shutdown() {
	e.speaker.Stop()
	e.capture.End()
	if ref := e.state.PlayableAudioRef; ref != "" {
		e.stash.Release(ref)
	}
	for _, reply := range e.pendingBegin {
		reply <- ErrStopped
	}
	for _, ev := range e.inbox.drain() {
		if a, ok := ev.(actionEvent); ok {
			a.reply <- ErrStopped
		}
	}
	e.log.Info("engine: session %s stopped", e.state.ID)
}

// ── Actions ──────────────────────────────────────────────────────

type action int

const (
	actBegin action = iota
	actEnd
	actToggle
	actSubmit
	actStopSpeaking
	actRepeat
	actStopGeneration
)

func (a action) String() string {
	switch a {
	case actBegin:
		return "begin_capture"
	case actEnd:
		return "end_capture"
	case actToggle:
		return "toggle_capture"
	case actSubmit:
		return "submit"
	case actStopSpeaking:
		return "stop_speaking"
	case actRepeat:
		return "repeat"
	case actStopGeneration:
		return "stop_generation"
	default:
		return "unknown"
	}
}

// BeginCapture cancels any speech, clears the previous cycle and opens
// the microphone. It returns once the device has been granted or
// refused. A no-op while already recording or waiting for a grant.
func (e *Engine) BeginCapture(ctx context.Context) error {
	return e.do(ctx, actBegin)
}

// EndCapture stops recording and keeps the question for submission.
// While the microphone is still opening, the recording is ended as soon
// as it starts. A no-op otherwise when not recording.
func (e *Engine) EndCapture(ctx context.Context) error {
	return e.do(ctx, actEnd)
}

// StopRecording ends the recording only if it still belongs to the given
// session generation. Used by callers acting on an older snapshot.
func (e *Engine) StopRecording(ctx context.Context, generation uint64) error {
	return e.post(ctx, actionEvent{action: actStopGeneration, gen: generation})
}

// ToggleCapture ends the recording if one is running, otherwise begins
// one. Pressed again while the microphone is still opening, it cancels
// the recording as soon as the device is granted.
func (e *Engine) ToggleCapture(ctx context.Context) error {
	return e.do(ctx, actToggle)
}

// Submit sends the recorded question. It returns once the upload has
// started; the answer arrives through the state. Returns
// domain.ErrNothingToSubmit outside Recorded.
func (e *Engine) Submit(ctx context.Context) error {
	return e.do(ctx, actSubmit)
}

// StopSpeaking silences the current answer. A no-op when not speaking.
func (e *Engine) StopSpeaking(ctx context.Context) error {
	return e.do(ctx, actStopSpeaking)
}

// Repeat speaks the last answer again. Returns domain.ErrNothingToRepeat
// when there is none or another operation holds the session.
func (e *Engine) Repeat(ctx context.Context) error {
	return e.do(ctx, actRepeat)
}

func (e *Engine) do(ctx context.Context, a action) error {
	return e.post(ctx, actionEvent{action: a})
}

func (e *Engine) post(ctx context.Context, ev actionEvent) error {
	select {
	case <-e.stopped:
		return ErrStopped
	default:
	}

	reply := make(chan error, 1)
	ev.reply = reply
	e.inbox.post(ev)

	select {
	case err := <-reply:
		return err
	case <-e.stopped:
		select {
		case err := <-reply:
			return err
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ── Speech notifications ─────────────────────────────────────────

// SpeechStarted implements domain.SpeechListener.
func (e *Engine) SpeechStarted(id uint64) {
	e.inbox.post(speechEvent{id: id, kind: speechStarted})
}

// SpeechEnded implements domain.SpeechListener.
func (e *Engine) SpeechEnded(id uint64) {
	e.inbox.post(speechEvent{id: id, kind: speechEnded})
}

// SpeechFailed implements domain.SpeechListener.
func (e *Engine) SpeechFailed(id uint64, err error) {
	e.inbox.post(speechEvent{id: id, kind: speechFailed, err: err})
}

// ── Event handling ───────────────────────────────────────────────

func (e *Engine) handle(ctx context.Context, ev event) {
	switch ev := ev.(type) {
	case actionEvent:
		e.handleAction(ctx, ev)
	case grantEvent:
		e.handleGrant(ctx, ev)
	case uploadEvent:
		e.handleUpload(ctx, ev)
	case speechEvent:
		e.handleSpeech(ctx, ev)
	}
}

func (e *Engine) handleAction(ctx context.Context, ev actionEvent) {
	e.log.Debug("engine: action %s in phase %s", ev.action, e.state.Phase)

	a := ev.action
	if a == actToggle {
		switch {
		case e.state.Phase == domain.PhaseRecording:
			a = actEnd
		case e.granting:
			e.stopAfterGrant = !e.stopAfterGrant
			ev.reply <- nil
			return
		default:
			a = actBegin
		}
	}

	switch a {
	case actBegin:
		e.beginCapture(ctx, ev.reply)
	case actEnd:
		ev.reply <- e.endCapture(ctx)
	case actSubmit:
		ev.reply <- e.submit(ctx)
	case actStopSpeaking:
		ev.reply <- e.stopSpeaking(ctx)
	case actRepeat:
		ev.reply <- e.repeat(ctx)
	case actStopGeneration:
		if ev.gen != e.state.Generation {
			e.log.Info("engine: ignoring stop for generation %d (current %d)", ev.gen, e.state.Generation)
			e.observer.StaleDiscarded("stop")
			ev.reply <- nil
			return
		}
		ev.reply <- e.endCapture(ctx)
	}
}

// beginCapture resets the session and asks for the microphone. The reply
// is held until the grant arrives.
func (e *Engine) beginCapture(ctx context.Context, reply chan error) {
	if e.granting {
		e.stopAfterGrant = false
		e.pendingBegin = append(e.pendingBegin, reply)
		return
	}
	if e.state.Phase == domain.PhaseRecording {
		reply <- nil
		return
	}

	e.speaker.Stop()
	e.speechID = 0

	e.transition(ctx, func(s *domain.SessionState) {
		s.Generation++
		s.Phase = domain.PhaseIdle
		s.CapturedAudio = nil
		s.ResponseText = ""
		s.StatusMessage = LineRequestingMic()
	})

	e.granting = true
	e.pendingBegin = append(e.pendingBegin, reply)

	gen := e.state.Generation
	go func() {
		err := e.capture.Begin(e.runCtx)
		e.inbox.post(grantEvent{gen: gen, err: err})
	}()
}

func (e *Engine) handleGrant(ctx context.Context, ev grantEvent) {
	e.granting = false
	stop := e.stopAfterGrant
	e.stopAfterGrant = false
	replies := e.pendingBegin
	e.pendingBegin = nil

	// Generation only moves while no grant is pending, so a mismatch
	// means the state was reset underneath us.
	if ev.gen != e.state.Generation {
		e.observer.StaleDiscarded("grant")
		if ev.err == nil {
			e.capture.End()
		}
		for _, r := range replies {
			r <- nil
		}
		return
	}

	if ev.err != nil {
		e.log.Warn("engine: microphone refused: %v", ev.err)
		e.fail(ctx, ev.err)
	} else {
		e.transition(ctx, func(s *domain.SessionState) {
			s.Phase = domain.PhaseRecording
			s.StatusMessage = LineRecording()
		})
		if stop {
			e.log.Info("engine: recording cancelled while the microphone was opening")
			e.endCapture(ctx)
		}
	}

	// Only the caller that triggered the grant sees the error.
	for i, r := range replies {
		if i == 0 {
			r <- ev.err
		} else {
			r <- nil
		}
	}
}

func (e *Engine) endCapture(ctx context.Context) error {
	if e.granting {
		e.stopAfterGrant = true
		return nil
	}
	if e.state.Phase != domain.PhaseRecording {
		return nil
	}

	blob, ok := e.capture.End()
	if !ok || blob.Empty() {
		e.transition(ctx, func(s *domain.SessionState) {
			s.Phase = domain.PhaseIdle
			s.StatusMessage = LineEmptyRecording()
		})
		return nil
	}

	ref, err := e.stash.Stash(blob)
	if err != nil {
		e.log.Warn("engine: recorded question not playable: %v", err)
		ref = ""
	}

	e.transition(ctx, func(s *domain.SessionState) {
		s.Phase = domain.PhaseRecorded
		s.CapturedAudio = blob
		s.PlayableAudioRef = ref
		s.StatusMessage = LineRecorded()
	})
	e.log.Info("engine: recorded %s of audio (%d bytes)", blob.Duration().Round(time.Millisecond), blob.Len())
	return nil
}

func (e *Engine) submit(ctx context.Context) error {
	if e.state.Phase != domain.PhaseRecorded || e.state.CapturedAudio == nil {
		return domain.ErrNothingToSubmit
	}

	blob := e.state.CapturedAudio
	gen := e.state.Generation

	e.transition(ctx, func(s *domain.SessionState) {
		s.Phase = domain.PhaseUploading
		s.StatusMessage = LineUploading()
	})

	go func() {
		reqCtx := e.runCtx
		if e.uploadTimeout > 0 {
			var cancel context.CancelFunc
			reqCtx, cancel = context.WithTimeout(reqCtx, e.uploadTimeout)
			defer cancel()
		}
		start := time.Now()
		answer, err := e.client.Submit(reqCtx, blob)
		e.inbox.post(uploadEvent{gen: gen, answer: answer, err: err, latency: time.Since(start)})
	}()
	return nil
}

func (e *Engine) handleUpload(ctx context.Context, ev uploadEvent) {
	e.observer.UploadFinished(uploadOutcome(ev.err), ev.latency)

	if ev.gen != e.state.Generation || e.state.Phase != domain.PhaseUploading {
		e.log.Info("engine: discarding stale response (generation %d, current %d, phase %s)",
			ev.gen, e.state.Generation, e.state.Phase)
		e.observer.StaleDiscarded("upload")
		return
	}

	if ev.err != nil {
		e.log.Warn("engine: upload failed: %v", ev.err)
		e.fail(ctx, ev.err)
		return
	}

	text := conversation.Sanitize(ev.answer.Text)
	e.log.Info("engine: answer received in %s (request %s)", ev.latency.Round(time.Millisecond), ev.answer.RequestID)

	if text == "" {
		e.transition(ctx, func(s *domain.SessionState) {
			s.Phase = domain.PhaseIdle
			s.StatusMessage = LineEmptyAnswer()
		})
		return
	}

	e.transition(ctx, func(s *domain.SessionState) {
		s.Phase = domain.PhaseAwaitingSpeech
		s.ResponseText = text
		s.StatusMessage = LineAnswerReceived()
	})
	e.speak(ctx, text)
}

func (e *Engine) speak(ctx context.Context, text string) {
	e.speechID = e.speaker.Speak(text)
	e.transition(ctx, func(s *domain.SessionState) {
		s.Phase = domain.PhaseSpeaking
		s.StatusMessage = LineSpeaking()
	})
}

func (e *Engine) stopSpeaking(ctx context.Context) error {
	if e.state.Phase != domain.PhaseSpeaking {
		return nil
	}
	e.speaker.Stop()
	e.speechID = 0
	e.transition(ctx, func(s *domain.SessionState) {
		s.Phase = domain.PhaseIdle
		s.StatusMessage = LineStopped()
	})
	return nil
}

func (e *Engine) repeat(ctx context.Context) error {
	switch e.state.Phase {
	case domain.PhaseIdle, domain.PhaseFailed, domain.PhaseSpeaking:
	default:
		return domain.ErrNothingToRepeat
	}
	if e.state.ResponseText == "" || e.granting {
		return domain.ErrNothingToRepeat
	}
	e.speak(ctx, e.state.ResponseText)
	return nil
}

func (e *Engine) handleSpeech(ctx context.Context, ev speechEvent) {
	if ev.id != e.speechID || e.state.Phase != domain.PhaseSpeaking {
		e.log.Debug("engine: ignoring %s for utterance %d (current %d)", ev.kind, ev.id, e.speechID)
		if ev.kind != speechStarted {
			e.observer.StaleDiscarded("speech")
		}
		return
	}

	switch ev.kind {
	case speechStarted:
		e.log.Debug("engine: utterance %d started", ev.id)
	case speechEnded:
		e.speechID = 0
		e.transition(ctx, func(s *domain.SessionState) {
			s.Phase = domain.PhaseIdle
			s.StatusMessage = LineAnswered()
		})
	case speechFailed:
		e.speechID = 0
		err := ev.err
		if !errors.Is(err, domain.ErrSpeechPlayback) {
			err = fmt.Errorf("%w: %v", domain.ErrSpeechPlayback, err)
		}
		e.fail(ctx, err)
	}
}

// ── Transitions ──────────────────────────────────────────────────

func (e *Engine) fail(ctx context.Context, err error) {
	msg := domain.Describe(err)
	e.transition(ctx, func(s *domain.SessionState) {
		s.Phase = domain.PhaseFailed
		s.ErrorMessage = msg
		s.StatusMessage = LineError(msg)
	})
}

// transition applies mutate to the state and normalises the fields that
// follow the phase: captured audio exists only while Recorded or
// Uploading, and the error message only in Failed. The playable file is
// released as soon as it is no longer referenced.
func (e *Engine) transition(ctx context.Context, mutate func(s *domain.SessionState)) {
	prev := e.state.Clone()
	s := e.state
	mutate(s)

	if !s.Phase.HoldsAudio() {
		s.CapturedAudio = nil
	}
	if s.CapturedAudio == nil {
		s.PlayableAudioRef = ""
	}
	if s.Phase != domain.PhaseFailed {
		s.ErrorMessage = ""
	}
	if prev.PlayableAudioRef != "" && prev.PlayableAudioRef != s.PlayableAudioRef {
		e.stash.Release(prev.PlayableAudioRef)
	}

	now := time.Now()
	if s.Phase != prev.Phase {
		s.PhaseSince = now
		e.observer.PhaseChanged(prev.Phase, s.Phase)
		e.log.Debug("engine: %s -> %s (generation %d)", prev.Phase, s.Phase, s.Generation)
	}
	s.UpdatedAt = now

	if err := s.Validate(); err != nil {
		e.log.Error("engine: invalid state after transition: %v", err)
	}
	e.publish(ctx)
}

func (e *Engine) publish(ctx context.Context) {
	snap := e.state.Clone()
	e.published.Store(snap)
	if err := e.store.Save(ctx, snap.Clone()); err != nil {
		e.log.Warn("engine: saving snapshot: %v", err)
	}
	select {
	case e.updates <- struct{}{}:
	default:
	}
}

func uploadOutcome(err error) string {
	var srv *domain.ServerError
	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &srv):
		return OutcomeServer
	default:
		return OutcomeTransport
	}
}

type nopObserver struct{}

func (nopObserver) PhaseChanged(from, to domain.Phase) {}

func (nopObserver) UploadFinished(outcome string, d time.Duration) {}

func (nopObserver) StaleDiscarded(kind string) {}

// ── Inbox ────────────────────────────────────────────────────────

type event interface{}

type actionEvent struct {
	action action
	gen    uint64 // actStopGeneration only
	reply  chan error
}

type grantEvent struct {
	gen uint64
	err error
}

type uploadEvent struct {
	gen     uint64
	answer  *domain.Answer
	err     error
	latency time.Duration
}

type speechKind int

const (
	speechStarted speechKind = iota
	speechEnded
	speechFailed
)

func (k speechKind) String() string {
	switch k {
	case speechStarted:
		return "start"
	case speechEnded:
		return "end"
	default:
		return "error"
	}
}

type speechEvent struct {
	id   uint64
	kind speechKind
	err  error
}

// inbox is an unbounded FIFO. post never blocks.
type inbox struct {
	mu    sync.Mutex
	queue []event
	wake  chan struct{}
}

func (q *inbox) post(ev event) {
	q.mu.Lock()
	q.queue = append(q.queue, ev)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *inbox) drain() []event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.queue
	q.queue = nil
	return out
}
