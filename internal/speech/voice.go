package speech

import (
	"strings"

	"github.com/hammamikhairi/voiceask/internal/domain"
)

// VoiceRule is one preference in the voice selection order.
type VoiceRule func(v domain.Voice) bool

// DefaultRules returns the standard preference order:
//  1. target locale with a feminine label
//  2. any feminine label
//  3. target locale
//
// When nothing matches, the engine default voice is used.
func DefaultRules(locale string, labels []string) []VoiceRule {
	return []VoiceRule{
		func(v domain.Voice) bool { return matchLocale(v, locale) && hasLabel(v, labels) },
		func(v domain.Voice) bool { return hasLabel(v, labels) },
		func(v domain.Voice) bool { return matchLocale(v, locale) },
	}
}

// SelectVoice applies rules in order and returns the first voice that
// satisfies the earliest matching rule, or nil.
func SelectVoice(voices []domain.Voice, rules []VoiceRule) *domain.Voice {
	for _, rule := range rules {
		for i := range voices {
			if rule(voices[i]) {
				v := voices[i]
				return &v
			}
		}
	}
	return nil
}

func matchLocale(v domain.Voice, locale string) bool {
	return locale != "" && strings.EqualFold(v.Locale, locale)
}

// hasLabel reports whether the voice name or gender contains one of the
// labels, ignoring case.
func hasLabel(v domain.Voice, labels []string) bool {
	hay := strings.ToLower(v.Name + " " + v.Gender)
	for _, l := range labels {
		l = strings.ToLower(strings.TrimSpace(l))
		if l != "" && strings.Contains(hay, l) {
			return true
		}
	}
	return false
}
