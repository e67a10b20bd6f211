package speech

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hammamikhairi/voiceask/internal/domain"
	"github.com/hammamikhairi/voiceask/internal/logger"
)

// fakeSynth plays for a fixed duration, or fails on request.
type fakeSynth struct {
	mu         sync.Mutex
	playFor    time.Duration
	failBefore error // returned before audio starts
	failAfter  error // returned after audio starts
	voices     []domain.Voice
	spoken     []Utterance
	active     int
	maxActive  int
}

func (f *fakeSynth) Voices(ctx context.Context) ([]domain.Voice, error) {
	return f.voices, nil
}

func (f *fakeSynth) Speak(ctx context.Context, u Utterance, started func()) error {
	f.mu.Lock()
	f.spoken = append(f.spoken, u)
	failBefore, failAfter, playFor := f.failBefore, f.failAfter, f.playFor
	f.mu.Unlock()

	if failBefore != nil {
		return failBefore
	}

	f.mu.Lock()
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	started()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(playFor):
	}
	return failAfter
}

func (f *fakeSynth) utterances() []Utterance {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Utterance(nil), f.spoken...)
}

// recorder collects listener callbacks.
type recorder struct {
	mu     sync.Mutex
	events []string
	errs   map[uint64]error
	ch     chan string
}

func newRecorder() *recorder {
	return &recorder{errs: make(map[uint64]error), ch: make(chan string, 64)}
}

func (r *recorder) add(ev string) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	r.ch <- ev
}

func (r *recorder) SpeechStarted(id uint64) { r.add(fmt.Sprintf("start:%d", id)) }
func (r *recorder) SpeechEnded(id uint64)   { r.add(fmt.Sprintf("end:%d", id)) }
func (r *recorder) SpeechFailed(id uint64, err error) {
	r.mu.Lock()
	r.errs[id] = err
	r.mu.Unlock()
	r.add(fmt.Sprintf("fail:%d", id))
}

func (r *recorder) wait(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-r.ch:
		if got != want {
			t.Fatalf("got event %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func (r *recorder) expectNone(t *testing.T) {
	t.Helper()
	select {
	case got := <-r.ch:
		t.Fatalf("unexpected event %q", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func setupMouth(t *testing.T, synth *fakeSynth, opts ...MouthOption) (*Mouth, *recorder) {
	t.Helper()
	log := logger.New(logger.LevelOff, nil)
	m := NewMouth(synth, log, opts...)
	rec := newRecorder()
	m.SetListener(rec)
	return m, rec
}

func TestSpeakLifecycle(t *testing.T) {
	synth := &fakeSynth{playFor: 10 * time.Millisecond}
	m, rec := setupMouth(t, synth)

	id := m.Speak("hello")
	rec.wait(t, fmt.Sprintf("start:%d", id))
	rec.wait(t, fmt.Sprintf("end:%d", id))
	rec.expectNone(t)

	if u := synth.utterances(); len(u) != 1 || u[0].Text != "hello" {
		t.Errorf("utterances = %+v", u)
	}
}

func TestSpeakInterruptsPrevious(t *testing.T) {
	synth := &fakeSynth{playFor: time.Hour}
	m, rec := setupMouth(t, synth)

	first := m.Speak("first")
	rec.wait(t, fmt.Sprintf("start:%d", first))

	second := m.Speak("second")
	if second == first {
		t.Fatal("utterance IDs must differ")
	}
	// The first utterance had started, so it ends before the second starts.
	rec.wait(t, fmt.Sprintf("end:%d", first))
	rec.wait(t, fmt.Sprintf("start:%d", second))

	m.Stop()
	rec.wait(t, fmt.Sprintf("end:%d", second))

	synth.mu.Lock()
	defer synth.mu.Unlock()
	if synth.maxActive != 1 {
		t.Fatalf("%d utterances played at once", synth.maxActive)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	m, rec := setupMouth(t, &fakeSynth{playFor: time.Hour})

	m.Stop() // nothing speaking

	id := m.Speak("x")
	rec.wait(t, fmt.Sprintf("start:%d", id))
	m.Stop()
	m.Stop()
	rec.wait(t, fmt.Sprintf("end:%d", id))
	rec.expectNone(t)

	if m.Speaking() {
		t.Fatal("still speaking after Stop")
	}
}

func TestSpeakFailureBeforeStart(t *testing.T) {
	m, rec := setupMouth(t, &fakeSynth{failBefore: errors.New("synthesis refused")})

	id := m.Speak("x")
	rec.wait(t, fmt.Sprintf("fail:%d", id))

	rec.mu.Lock()
	err := rec.errs[id]
	rec.mu.Unlock()
	if !errors.Is(err, domain.ErrSpeechPlayback) {
		t.Fatalf("expected ErrSpeechPlayback, got %v", err)
	}
}

func TestSpeakFailureAfterStart(t *testing.T) {
	m, rec := setupMouth(t, &fakeSynth{playFor: time.Millisecond, failAfter: errors.New("device lost")})

	id := m.Speak("x")
	rec.wait(t, fmt.Sprintf("start:%d", id))
	rec.wait(t, fmt.Sprintf("fail:%d", id))
	rec.expectNone(t)
}

func TestProsodyClamped(t *testing.T) {
	synth := &fakeSynth{}
	m, rec := setupMouth(t, synth, WithPitch(5), WithRate(0))

	id := m.Speak("x")
	rec.wait(t, fmt.Sprintf("start:%d", id))
	rec.wait(t, fmt.Sprintf("end:%d", id))

	u := synth.utterances()[0]
	if u.Pitch != MaxPitch || u.Rate != MinRate {
		t.Fatalf("pitch=%g rate=%g, want %g/%g", u.Pitch, u.Rate, MaxPitch, MinRate)
	}
}

func TestVoiceAppliedAfterCatalogLoads(t *testing.T) {
	synth := &fakeSynth{voices: []domain.Voice{
		{ID: "de-DE-KatjaNeural", Name: "Katja (Female)", Locale: "de-DE", Gender: "Female"},
		{ID: "en-US-GuyNeural", Name: "Guy (Male)", Locale: "en-US", Gender: "Male"},
		{ID: "en-US-AvaNeural", Name: "Ava (Female)", Locale: "en-US", Gender: "Female"},
	}}
	m, rec := setupMouth(t, synth)

	// Before the catalog arrives the engine default is used.
	id := m.Speak("before")
	rec.wait(t, fmt.Sprintf("start:%d", id))
	rec.wait(t, fmt.Sprintf("end:%d", id))
	if v := synth.utterances()[0].Voice; v != nil {
		t.Fatalf("expected default voice, got %+v", v)
	}

	m.SetVoices(synth.voices)
	id = m.Speak("after")
	rec.wait(t, fmt.Sprintf("start:%d", id))
	rec.wait(t, fmt.Sprintf("end:%d", id))

	v := synth.utterances()[1].Voice
	if v == nil || v.ID != "en-US-AvaNeural" {
		t.Fatalf("selected voice = %+v, want en-US-AvaNeural", v)
	}
	if len(m.Voices()) != 3 {
		t.Errorf("Voices() = %d entries", len(m.Voices()))
	}
}

func TestLoadVoicesAsync(t *testing.T) {
	synth := &fakeSynth{voices: []domain.Voice{{ID: "en-US-JennyNeural", Name: "Jenny (Female)", Locale: "en-US"}}}
	m, _ := setupMouth(t, synth)

	m.LoadVoices(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for m.Voice() == nil {
		if time.Now().After(deadline) {
			t.Fatal("voice catalog never loaded")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if m.Voice().ID != "en-US-JennyNeural" {
		t.Fatalf("selected %+v", m.Voice())
	}
}
