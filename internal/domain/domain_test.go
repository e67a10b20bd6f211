package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"capture", fmt.Errorf("%w: permission denied", ErrCaptureUnavailable), "Could not access microphone."},
		{"server", &ServerError{Status: 500, Message: "overloaded"}, "overloaded"},
		{"server empty", &ServerError{Status: 502}, "Server error"},
		{"wrapped server", fmt.Errorf("submit: %w", &ServerError{Status: 400, Message: "No audio file part"}), "No audio file part"},
		{"transport", &TransportError{Op: "post", Err: errors.New("connection refused")}, "Request failed: connection refused"},
		{"speech bare", ErrSpeechPlayback, "Speech playback failed."},
		{"speech detail", fmt.Errorf("%w: device lost", ErrSpeechPlayback), "Speech playback failed: device lost"},
		{"other", errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Describe(tt.err); got != tt.want {
				t.Errorf("Describe() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTransportErrorUnwrap(t *testing.T) {
	inner := errors.New("eof")
	err := fmt.Errorf("submit: %w", &TransportError{Op: "read", Err: inner})

	if !errors.Is(err, inner) {
		t.Fatal("expected errors.Is to reach the inner error")
	}
	var tr *TransportError
	if !errors.As(err, &tr) || tr.Op != "read" {
		t.Fatalf("errors.As failed: %v", err)
	}
}

func TestPhaseFlags(t *testing.T) {
	busy := map[Phase]bool{PhaseRecording: true, PhaseUploading: true, PhaseSpeaking: true}
	audio := map[Phase]bool{PhaseRecorded: true, PhaseUploading: true}

	for p := PhaseIdle; p <= PhaseFailed; p++ {
		if p.Busy() != busy[p] {
			t.Errorf("%s.Busy() = %v", p, p.Busy())
		}
		if p.HoldsAudio() != audio[p] {
			t.Errorf("%s.HoldsAudio() = %v", p, p.HoldsAudio())
		}
		if p.String() == "unknown" {
			t.Errorf("phase %d has no name", p)
		}
	}
}

func TestValidate(t *testing.T) {
	blob := NewBlob([]byte{1, 2}, DefaultAudioFormat)

	tests := []struct {
		name    string
		state   SessionState
		wantErr bool
	}{
		{"idle ok", SessionState{Phase: PhaseIdle, StatusMessage: "ready"}, false},
		{"no status", SessionState{Phase: PhaseIdle}, true},
		{"recorded with audio", SessionState{Phase: PhaseRecorded, StatusMessage: "s", CapturedAudio: blob, PlayableAudioRef: "/tmp/a.wav"}, false},
		{"recorded without audio", SessionState{Phase: PhaseRecorded, StatusMessage: "s"}, true},
		{"idle with audio", SessionState{Phase: PhaseIdle, StatusMessage: "s", CapturedAudio: blob}, true},
		{"failed without message", SessionState{Phase: PhaseFailed, StatusMessage: "s"}, true},
		{"failed ok", SessionState{Phase: PhaseFailed, StatusMessage: "Error: x", ErrorMessage: "x"}, false},
		{"error outside failed", SessionState{Phase: PhaseIdle, StatusMessage: "s", ErrorMessage: "x"}, true},
		{"ref without audio", SessionState{Phase: PhaseIdle, StatusMessage: "s", PlayableAudioRef: "/tmp/a.wav"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.state.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBlob(t *testing.T) {
	// One second of silence plus one sample of 0x0102.
	data := make([]byte, DefaultAudioFormat.BytesPerSecond())
	data = append(data, 0x02, 0x01)
	b := NewBlob(data, DefaultAudioFormat)

	if b.Empty() {
		t.Fatal("blob should not be empty")
	}
	if d := b.Duration().Truncate(time.Millisecond); d != time.Second {
		t.Errorf("Duration() = %s, want 1s", d)
	}
	s := b.Samples()
	if len(s) != 24001 || s[len(s)-1] != 0x0102 {
		t.Errorf("unexpected samples: len=%d last=%#x", len(s), s[len(s)-1])
	}
}
