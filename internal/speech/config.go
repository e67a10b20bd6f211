package speech

import "github.com/hammamikhairi/voiceask/internal/domain"

// Default voice used by Azure when the catalog has not loaded or no
// rule matched.
// Full list: https://learn.microsoft.com/en-us/azure/ai-services/speech-service/language-support
const DefaultVoice = "en-US-AvaNeural"

// Audio format requested from Azure and expected by the player.
const DefaultAudioFormat = "riff-24khz-16bit-mono-pcm"

// Audio parameters matching the default format.
var (
	SampleRate   = domain.DefaultAudioFormat.SampleRate
	ChannelCount = domain.DefaultAudioFormat.Channels
	BitDepth     = domain.DefaultAudioFormat.BitDepth
)

// Voice selection defaults.
const DefaultLocale = "en-US"

// DefaultLabels are matched against voice names when looking for a
// feminine voice.
var DefaultLabels = []string{"female", "woman"}

// Prosody bounds accepted by the speech engine.
const (
	MinPitch    = 0.0
	MaxPitch    = 2.0
	MinRate     = 0.1
	MaxRate     = 10.0
	DefaultTone = 1.0
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
