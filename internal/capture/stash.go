package capture

import (
	"fmt"
	"os"

	"github.com/hammamikhairi/voiceask/internal/domain"
	"github.com/hammamikhairi/voiceask/internal/encoder"
	"github.com/hammamikhairi/voiceask/internal/logger"
)

// Compile-time interface check.
var _ domain.AudioStash = (*TempStash)(nil)

// TempStash writes recordings to temporary WAV files so they can be
// played back before they are sent.
type TempStash struct {
	dir string
	log *logger.Logger
}

// NewTempStash creates a stash in dir. An empty dir means os.TempDir.
func NewTempStash(dir string, log *logger.Logger) *TempStash {
	return &TempStash{dir: dir, log: log}
}

// Stash writes the blob and returns the file path.
func (s *TempStash) Stash(blob *domain.Blob) (string, error) {
	wav, err := encoder.WAV{}.Encode(blob)
	if err != nil {
		return "", fmt.Errorf("capture: stash: %w", err)
	}

	f, err := os.CreateTemp(s.dir, "voiceask-question-*.wav")
	if err != nil {
		return "", fmt.Errorf("capture: stash: %w", err)
	}
	if _, err := f.Write(wav); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("capture: stash: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("capture: stash: %w", err)
	}

	s.log.Debug("capture: stashed %d bytes at %s", len(wav), f.Name())
	return f.Name(), nil
}

// Release deletes a stashed file. Unknown or empty refs are ignored.
func (s *TempStash) Release(ref string) {
	if ref == "" {
		return
	}
	if err := os.Remove(ref); err != nil && !os.IsNotExist(err) {
		s.log.Warn("capture: releasing %s: %v", ref, err)
		return
	}
	s.log.Debug("capture: released %s", ref)
}
