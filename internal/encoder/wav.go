package encoder

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/hammamikhairi/voiceask/internal/domain"
)

const wavHeaderSize = 44

// WAV writes a canonical 44-byte RIFF header followed by the PCM data.
type WAV struct{}

func (WAV) ContentType() string { return "audio/wav" }
func (WAV) Extension() string   { return "wav" }

// Encode returns the blob as a WAV file.
func (WAV) Encode(blob *domain.Blob) ([]byte, error) {
	f := blob.Format
	if f.SampleRate <= 0 || f.Channels <= 0 || f.BitDepth%8 != 0 || f.BitDepth == 0 {
		return nil, errors.New("encoder: invalid audio format")
	}

	pcm := blob.Bytes()
	blockAlign := f.Channels * f.BitDepth / 8

	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(pcm))

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(f.Channels))
	binary.Write(&buf, binary.LittleEndian, uint32(f.SampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(f.SampleRate*blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(f.BitDepth))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes(), nil
}

// ExtractPCM strips the RIFF header from WAV data and returns the
// samples of the data chunk.
func ExtractPCM(wav []byte) ([]byte, error) {
	if len(wav) < wavHeaderSize {
		return nil, errors.New("wav data too short")
	}

	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, errors.New("not a valid WAV file")
	}

	// Walk chunks to find "data".
	pos := 12
	for pos+8 <= len(wav) {
		chunkID := string(wav[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[pos+4 : pos+8]))

		if chunkID == "data" {
			start := pos + 8
			end := start + chunkSize
			if end > len(wav) {
				end = len(wav)
			}
			return wav[start:end], nil
		}

		pos += 8 + chunkSize
		// Chunks are word-aligned.
		if chunkSize%2 != 0 {
			pos++
		}
	}

	return nil, errors.New("data chunk not found in WAV")
}
