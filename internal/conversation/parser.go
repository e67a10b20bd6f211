// Package conversation turns typed input into intents, prepares answers
// for speech, and prints notifications.
package conversation

import (
	"context"
	"regexp"
	"strings"

	"github.com/hammamikhairi/voiceask/internal/domain"
	"github.com/hammamikhairi/voiceask/internal/logger"
)

// Compile-time interface check.
var _ domain.IntentParser = (*KeywordParser)(nil)

// KeywordParser matches user input to intents using keywords and simple patterns.
type KeywordParser struct {
	log      *logger.Logger
	patterns []patternRule
}

type patternRule struct {
	regex  *regexp.Regexp
	intent domain.IntentType
}

// NewKeywordParser creates a keyword-based intent parser.
func NewKeywordParser(log *logger.Logger) *KeywordParser {
	p := &KeywordParser{log: log}
	p.patterns = []patternRule{
		{regexp.MustCompile(`(?i)^(r|rec|record|start recording|listen)$`), domain.IntentStartRecording},
		{regexp.MustCompile(`(?i)^(stop recording|done|finish|end)$`), domain.IntentStopRecording},
		{regexp.MustCompile(`(?i)^(t|toggle)$`), domain.IntentToggleRecording},
		{regexp.MustCompile(`(?i)^(ask|ask ai|send|submit|go)$`), domain.IntentSubmit},
		{regexp.MustCompile(`(?i)^(play|playback|listen back|replay question)$`), domain.IntentPlayback},
		{regexp.MustCompile(`(?i)^(stop|shh|hush|silence|quiet)$`), domain.IntentStopSpeaking},
		{regexp.MustCompile(`(?i)^(repeat|again|say that again|what\??)$`), domain.IntentRepeat},
		{regexp.MustCompile(`(?i)^(copy|yank|clip)$`), domain.IntentCopy},
		{regexp.MustCompile(`(?i)^(voices?|list voices)$`), domain.IntentVoices},
		{regexp.MustCompile(`(?i)^(devices?|mics?|list devices)$`), domain.IntentDevices},
		{regexp.MustCompile(`(?i)^(status|where|info|state)$`), domain.IntentStatus},
		{regexp.MustCompile(`(?i)^(help|h|\?)$`), domain.IntentHelp},
		{regexp.MustCompile(`(?i)^(quit|exit|q|bye)$`), domain.IntentQuit},
	}
	return p
}

// Parse converts user input into an intent. The session state is used to
// resolve "stop", which ends a recording when one is running and silences
// speech otherwise.
func (p *KeywordParser) Parse(ctx context.Context, input string, state *domain.SessionState) (*domain.Intent, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return &domain.Intent{Type: domain.IntentUnknown}, nil
	}

	p.log.Debug("parsing input: %q", trimmed)

	// Key bindings send canonical names prefixed with '/'.
	if name, ok := strings.CutPrefix(trimmed, "/"); ok {
		if t := domain.IntentFromString(name); t != domain.IntentUnknown {
			return &domain.Intent{Type: t}, nil
		}
	}

	for _, rule := range p.patterns {
		if rule.regex.MatchString(trimmed) {
			intent := rule.intent
			if intent == domain.IntentStopSpeaking && state != nil && state.Phase == domain.PhaseRecording {
				intent = domain.IntentStopRecording
			}
			p.log.Debug("matched intent: %s", intent)
			return &domain.Intent{Type: intent}, nil
		}
	}

	p.log.Debug("no match, returning unknown intent")
	return &domain.Intent{Type: domain.IntentUnknown, Payload: trimmed}, nil
}
