package domain

import "context"

// AudioCapture owns the microphone. Begin acquires it and starts
// buffering; End releases it and hands back everything buffered as one
// blob. End when not recording is a no-op returning false.
type AudioCapture interface {
	Begin(ctx context.Context) error
	End() (*Blob, bool)
	Recording() bool
}

// AudioStash turns a blob into something the local player can open.
// The returned reference stays valid until Release.
type AudioStash interface {
	Stash(blob *Blob) (string, error)
	Release(ref string)
}

// InferenceClient sends a recorded question and returns the answer.
// Exactly one attempt is made per call.
type InferenceClient interface {
	Submit(ctx context.Context, audio *Blob) (*Answer, error)
}

// Speaker speaks one utterance at a time. Speak stops whatever was
// playing before starting the new text and returns the utterance ID used
// in listener callbacks.
type Speaker interface {
	Speak(text string) uint64
	Stop()
	SetListener(l SpeechListener)
}

// SpeechListener receives utterance lifecycle notifications. Every
// utterance that started gets exactly one of SpeechEnded or SpeechFailed.
// Implementations must not block.
type SpeechListener interface {
	SpeechStarted(id uint64)
	SpeechEnded(id uint64)
	SpeechFailed(id uint64, err error)
}

// SessionStore keeps the latest published session snapshot. Readers such
// as the display poll it.
type SessionStore interface {
	Save(ctx context.Context, state *SessionState) error
	Load(ctx context.Context) (*SessionState, error)
}

// IntentParser converts raw user input into structured intents.
type IntentParser interface {
	Parse(ctx context.Context, input string, state *SessionState) (*Intent, error)
}

// Notifier delivers messages to the user.
type Notifier interface {
	Notify(ctx context.Context, message string) error
	NotifyUrgent(ctx context.Context, message string) error
}
