package domain

// IntentType classifies what the user wants to do.
type IntentType int

const (
	IntentUnknown IntentType = iota
	IntentToggleRecording
	IntentStartRecording
	IntentStopRecording
	IntentSubmit       // send the recorded question
	IntentPlayback     // replay the recorded question locally
	IntentStopSpeaking // silence the current answer
	IntentRepeat       // speak the last answer again
	IntentCopy         // copy the last answer to the clipboard
	IntentVoices
	IntentDevices
	IntentStatus
	IntentHelp
	IntentQuit
)

// String returns a human-readable intent type.
func (i IntentType) String() string {
	switch i {
	case IntentToggleRecording:
		return "toggle_recording"
	case IntentStartRecording:
		return "start_recording"
	case IntentStopRecording:
		return "stop_recording"
	case IntentSubmit:
		return "submit"
	case IntentPlayback:
		return "playback"
	case IntentStopSpeaking:
		return "stop_speaking"
	case IntentRepeat:
		return "repeat"
	case IntentCopy:
		return "copy"
	case IntentVoices:
		return "voices"
	case IntentDevices:
		return "devices"
	case IntentStatus:
		return "status"
	case IntentHelp:
		return "help"
	case IntentQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// Intent represents a parsed user action.
type Intent struct {
	Type    IntentType
	Payload string // raw input for unknown intents
}

// intentNames maps snake_case names to IntentType values.
var intentNames = map[string]IntentType{
	"toggle_recording": IntentToggleRecording,
	"start_recording":  IntentStartRecording,
	"stop_recording":   IntentStopRecording,
	"submit":           IntentSubmit,
	"playback":         IntentPlayback,
	"stop_speaking":    IntentStopSpeaking,
	"repeat":           IntentRepeat,
	"copy":             IntentCopy,
	"voices":           IntentVoices,
	"devices":          IntentDevices,
	"status":           IntentStatus,
	"help":             IntentHelp,
	"quit":             IntentQuit,
	"unknown":          IntentUnknown,
}

// IntentFromString converts a snake_case intent name to an IntentType.
// Returns IntentUnknown for unrecognized names.
func IntentFromString(name string) IntentType {
	if t, ok := intentNames[name]; ok {
		return t
	}
	return IntentUnknown
}
