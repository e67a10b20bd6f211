// Package speech speaks answers aloud. A Mouth owns the single active
// utterance and reports its lifecycle; synthesizers do the rendering.
package speech

import (
	"context"

	"github.com/hammamikhairi/voiceask/internal/domain"
	"github.com/hammamikhairi/voiceask/internal/logger"
)

// Compile-time interface check.
var _ Synthesizer = (*Silent)(nil)

// Silent is a synthesizer that produces no audio. Used when speech is
// disabled or no speech service is configured; utterances start and end
// immediately.
type Silent struct {
	log *logger.Logger
}

// NewSilent creates a silent synthesizer.
func NewSilent(log *logger.Logger) *Silent {
	return &Silent{log: log}
}

// Voices returns an empty catalog.
func (s *Silent) Voices(ctx context.Context) ([]domain.Voice, error) {
	return nil, nil
}

// Speak reports the utterance as started and finishes at once.
func (s *Silent) Speak(ctx context.Context, u Utterance, started func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.log.Debug("speech silent: would say %q", truncate(u.Text, 80))
	started()
	return nil
}
