package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors used across layers.
var (
	ErrNotFound           = errors.New("not found")
	ErrCaptureUnavailable = errors.New("microphone unavailable")
	ErrSpeechPlayback     = errors.New("speech playback failed")
	ErrNothingToSubmit    = errors.New("no recorded question to submit")
	ErrNothingToRepeat    = errors.New("no answer to repeat")
)

// ServerError is returned when the inference service answered with a
// failure status. Message is shown to the user verbatim.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string { return e.Message }

// TransportError is returned when a request could not be completed or
// its response could not be understood.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Describe turns an error from any stage into the message shown in the
// Failed phase.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var srv *ServerError
	var tr *TransportError
	switch {
	case errors.Is(err, ErrCaptureUnavailable):
		return "Could not access microphone."
	case errors.As(err, &srv):
		if srv.Message == "" {
			return "Server error"
		}
		return srv.Message
	case errors.As(err, &tr):
		return "Request failed: " + tr.Err.Error()
	case errors.Is(err, ErrSpeechPlayback):
		detail := strings.TrimPrefix(err.Error(), ErrSpeechPlayback.Error())
		detail = strings.TrimPrefix(detail, ": ")
		if detail == "" {
			return "Speech playback failed."
		}
		return "Speech playback failed: " + detail
	default:
		return err.Error()
	}
}
