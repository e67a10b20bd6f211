package speech

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hammamikhairi/voiceask/internal/logger"
)

// fakeSink records what it was asked to play.
type fakeSink struct {
	mu     sync.Mutex
	played [][]byte
	err    error
}

func (s *fakeSink) Play(ctx context.Context, wav []byte, started func()) error {
	s.mu.Lock()
	s.played = append(s.played, wav)
	s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if started != nil {
		started()
	}
	return nil
}

func newAzureServer(t *testing.T, synthCalls *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/cognitiveservices/voices/list", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[
			{"ShortName":"en-US-AvaNeural","DisplayName":"Ava","Gender":"Female","Locale":"en-US"},
			{"ShortName":"en-US-GuyNeural","DisplayName":"Guy","Gender":"Male","Locale":"en-US"}
		]`)
	})
	mux.HandleFunc("/cognitiveservices/v1", func(w http.ResponseWriter, r *http.Request) {
		synthCalls.Add(1)
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/ssml+xml" {
			t.Errorf("Content-Type = %q", ct)
		}
		if f := r.Header.Get("X-Microsoft-OutputFormat"); f != DefaultAudioFormat {
			t.Errorf("output format = %q", f)
		}
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "fail me") {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, "bad ssml")
			return
		}
		io.WriteString(w, "RIFF-audio")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAzureListVoices(t *testing.T) {
	var calls atomic.Int32
	srv := newAzureServer(t, &calls)
	log := logger.New(logger.LevelOff, nil)

	c := NewAzureClient("key", "westeurope", log, WithBaseURL(srv.URL+"/"))
	voices, err := c.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != 2 {
		t.Fatalf("got %d voices", len(voices))
	}
	if voices[0].ID != "en-US-AvaNeural" || voices[0].Name != "Ava (Female)" || voices[0].Gender != "Female" {
		t.Errorf("unexpected voice %+v", voices[0])
	}

	bad := NewAzureClient("wrong", "westeurope", log, WithBaseURL(srv.URL))
	if _, err := bad.ListVoices(context.Background()); err == nil {
		t.Fatal("expected error for rejected key")
	}
}

func TestAzureSynthesizerCaches(t *testing.T) {
	var calls atomic.Int32
	srv := newAzureServer(t, &calls)
	log := logger.New(logger.LevelOff, nil)

	client := NewAzureClient("key", "westeurope", log, WithBaseURL(srv.URL))
	sink := &fakeSink{}
	synth := NewAzureSynthesizer(client, NewAudioCache("", false, log), sink, log)

	u := Utterance{Text: "The answer is four.", Pitch: 1, Rate: 1}
	for i := 0; i < 2; i++ {
		var started bool
		if err := synth.Speak(context.Background(), u, func() { started = true }); err != nil {
			t.Fatalf("Speak #%d: %v", i, err)
		}
		if !started {
			t.Fatalf("Speak #%d never started", i)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("synthesized %d times, want 1", n)
	}
	if len(sink.played) != 2 || string(sink.played[1]) != "RIFF-audio" {
		t.Fatalf("sink played %q", sink.played)
	}

	// A different rate is a different cache variant.
	u.Rate = 1.5
	if err := synth.Speak(context.Background(), u, nil); err != nil {
		t.Fatal(err)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("synthesized %d times, want 2", n)
	}
}

func TestAzureSynthesizerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := newAzureServer(t, &calls)
	log := logger.New(logger.LevelOff, nil)
	client := NewAzureClient("key", "westeurope", log, WithBaseURL(srv.URL))

	sink := &fakeSink{}
	synth := NewAzureSynthesizer(client, nil, sink, log)
	err := synth.Speak(context.Background(), Utterance{Text: "fail me", Pitch: 1, Rate: 1}, nil)
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Fatalf("expected azure 400 error, got %v", err)
	}
	if len(sink.played) != 0 {
		t.Fatal("nothing should play after a synthesis error")
	}

	sinkErr := errors.New("no output device")
	synth = NewAzureSynthesizer(client, nil, &fakeSink{err: sinkErr}, log)
	if err := synth.Speak(context.Background(), Utterance{Text: "ok", Pitch: 1, Rate: 1}, nil); !errors.Is(err, sinkErr) {
		t.Fatalf("expected sink error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := synth.Speak(ctx, Utterance{Text: "late", Pitch: 1, Rate: 1}, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
