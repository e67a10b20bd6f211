package encoder

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"

	"github.com/hammamikhairi/voiceask/internal/domain"
)

// DefaultBlockSize is the number of samples per FLAC frame.
const DefaultBlockSize = 4096

// FLAC compresses mono 16-bit recordings losslessly. Uploads shrink to
// roughly half the size of WAV.
type FLAC struct {
	BlockSize int
}

// NewFLAC returns a FLAC container with the default block size.
func NewFLAC() FLAC { return FLAC{BlockSize: DefaultBlockSize} }

func (FLAC) ContentType() string { return "audio/flac" }
func (FLAC) Extension() string   { return "flac" }

// Encode returns the blob as a FLAC stream.
func (c FLAC) Encode(blob *domain.Blob) ([]byte, error) {
	f := blob.Format
	if f.Channels != 1 || f.BitDepth != 16 {
		return nil, fmt.Errorf("encoder: flac needs mono 16-bit audio, got %d ch / %d bit", f.Channels, f.BitDepth)
	}
	blockSize := c.BlockSize
	if blockSize < 16 || blockSize > 65535 {
		return nil, errors.New("encoder: flac block size out of range")
	}

	samples := blob.Samples()

	var buf bytes.Buffer
	info := &meta.StreamInfo{
		BlockSizeMin:  uint16(blockSize),
		BlockSizeMax:  uint16(blockSize),
		SampleRate:    uint32(f.SampleRate),
		NChannels:     uint8(f.Channels),
		BitsPerSample: uint8(f.BitDepth),
		NSamples:      uint64(len(samples)),
	}
	enc, err := flac.NewEncoder(&buf, info)
	if err != nil {
		return nil, fmt.Errorf("encoder: creating flac encoder: %w", err)
	}
	enc.EnablePredictionAnalysis(true)

	for start := 0; start < len(samples); start += blockSize {
		end := min(start+blockSize, len(samples))
		block := samples[start:end]

		samples32 := make([]int32, len(block))
		for i, s := range block {
			samples32[i] = int32(s)
		}

		fr := &frame.Frame{
			Header: frame.Header{
				BlockSize:     uint16(len(block)),
				SampleRate:    uint32(f.SampleRate),
				Channels:      frame.ChannelsMono,
				BitsPerSample: uint8(f.BitDepth),
			},
			Subframes: []*frame.Subframe{{
				SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
				Samples:   samples32,
				NSamples:  len(block),
			}},
		}
		if err := enc.WriteFrame(fr); err != nil {
			return nil, fmt.Errorf("encoder: writing flac frame: %w", err)
		}
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoder: closing flac stream: %w", err)
	}
	return buf.Bytes(), nil
}
