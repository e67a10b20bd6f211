package engine

// Status lines shown by the presentation surface. Keep them short; the
// status bar has one row.

// ── Rest ─────────────────────────────────────────────────────────

func LineReady() string {
	return "Press ctrl+r or type \"record\" to ask a question."
}

func LineAnswered() string {
	return "Done. Press ctrl+r to ask another question."
}

func LineStopped() string {
	return "Stopped speaking."
}

// ── Capture ──────────────────────────────────────────────────────

func LineRequestingMic() string {
	return "Requesting microphone..."
}

func LineRecording() string {
	return "Recording..."
}

func LineRecorded() string {
	return "Recording finished. Press ctrl+s to ask the AI."
}

func LineEmptyRecording() string {
	return "Nothing was recorded. Try again."
}

// ── Answer ───────────────────────────────────────────────────────

func LineUploading() string {
	return "Sending audio to the assistant..."
}

func LineAnswerReceived() string {
	return "AI response received."
}

func LineSpeaking() string {
	return "AI response received. Speaking..."
}

func LineEmptyAnswer() string {
	return "The assistant returned an empty answer."
}

// LineError is the status shown in the Failed phase.
func LineError(msg string) string {
	return "Error: " + msg
}
