package domain

import (
	"fmt"
	"time"
)

// Phase is the step of the question/answer cycle the session is in.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRecording
	PhaseRecorded
	PhaseUploading
	PhaseAwaitingSpeech
	PhaseSpeaking
	PhaseFailed
)

// String returns a human-readable phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRecording:
		return "recording"
	case PhaseRecorded:
		return "recorded"
	case PhaseUploading:
		return "uploading"
	case PhaseAwaitingSpeech:
		return "awaiting_speech"
	case PhaseSpeaking:
		return "speaking"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Busy reports whether the phase holds one of the exclusive resources:
// the microphone, the inference request, or the speech engine.
func (p Phase) Busy() bool {
	return p == PhaseRecording || p == PhaseUploading || p == PhaseSpeaking
}

// HoldsAudio reports whether captured audio may be present in this phase.
func (p Phase) HoldsAudio() bool {
	return p == PhaseRecorded || p == PhaseUploading
}

// SessionState is the single record describing the interaction. It is
// created once at startup and overwritten in place for the lifetime of
// the process. Only the engine mutates it; everyone else gets a copy.
type SessionState struct {
	ID         string
	Generation uint64 // bumped on every new capture; tags async work
	Phase      Phase

	CapturedAudio    *Blob
	PlayableAudioRef string // local WAV file of CapturedAudio
	ResponseText     string // sanitized answer

	StatusMessage string
	ErrorMessage  string

	PhaseSince time.Time
	UpdatedAt  time.Time
}

// Clone returns a shallow copy. Blob is immutable, so sharing it is fine.
func (s *SessionState) Clone() *SessionState {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// Validate checks the structural invariants of the record and returns
// the first violation found.
func (s *SessionState) Validate() error {
	if s.StatusMessage == "" {
		return fmt.Errorf("phase %s: empty status message", s.Phase)
	}
	if (s.ErrorMessage != "") != (s.Phase == PhaseFailed) {
		return fmt.Errorf("phase %s: error message %q", s.Phase, s.ErrorMessage)
	}
	if (s.CapturedAudio != nil) != s.Phase.HoldsAudio() {
		return fmt.Errorf("phase %s: captured audio present=%v", s.Phase, s.CapturedAudio != nil)
	}
	if s.PlayableAudioRef != "" && s.CapturedAudio == nil {
		return fmt.Errorf("phase %s: playable ref without captured audio", s.Phase)
	}
	return nil
}
