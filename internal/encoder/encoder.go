// Package encoder wraps recorded PCM in a container the inference
// service and the local player understand.
package encoder

import (
	"fmt"
	"strings"

	"github.com/hammamikhairi/voiceask/internal/domain"
)

// Container encodes a blob into an upload-ready file.
type Container interface {
	Encode(blob *domain.Blob) ([]byte, error)
	ContentType() string
	Extension() string
}

// ForFormat returns the container for a configured format name.
func ForFormat(name string) (Container, error) {
	switch strings.ToLower(name) {
	case "", "wav":
		return WAV{}, nil
	case "flac":
		return NewFLAC(), nil
	default:
		return nil, fmt.Errorf("encoder: unsupported format %q", name)
	}
}
