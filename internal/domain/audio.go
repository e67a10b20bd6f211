package domain

import "time"

// AudioFormat describes interleaved little-endian PCM.
type AudioFormat struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// DefaultAudioFormat is what the microphone is opened with. It matches
// the playback context so recorded questions can be replayed as-is.
var DefaultAudioFormat = AudioFormat{
	SampleRate: 24000,
	Channels:   1,
	BitDepth:   16,
}

// BytesPerSecond returns the PCM byte rate.
func (f AudioFormat) BytesPerSecond() int {
	return f.SampleRate * f.Channels * f.BitDepth / 8
}

// Blob is one finished recording. The byte slice is never modified after
// construction.
type Blob struct {
	data   []byte
	Format AudioFormat
}

// NewBlob wraps PCM data. The slice is owned by the blob from now on.
func NewBlob(data []byte, format AudioFormat) *Blob {
	return &Blob{data: data, Format: format}
}

// Bytes returns the raw PCM. Callers must not modify it.
func (b *Blob) Bytes() []byte { return b.data }

// Len returns the size in bytes.
func (b *Blob) Len() int { return len(b.data) }

// Empty reports whether the recording holds no audio.
func (b *Blob) Empty() bool { return len(b.data) == 0 }

// Duration returns the playing time of the recording.
func (b *Blob) Duration() time.Duration {
	bps := b.Format.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(len(b.data)) * time.Second / time.Duration(bps)
}

// Samples decodes 16-bit PCM into samples. Returns nil for other depths.
func (b *Blob) Samples() []int16 {
	if b.Format.BitDepth != 16 {
		return nil
	}
	out := make([]int16, len(b.data)/2)
	for i := range out {
		out[i] = int16(uint16(b.data[2*i]) | uint16(b.data[2*i+1])<<8)
	}
	return out
}

// Voice is one entry of the speech engine's catalog.
type Voice struct {
	ID     string
	Name   string
	Locale string
	Gender string
}

// Answer is a successful reply from the inference service.
type Answer struct {
	Text      string
	RequestID string
	Latency   time.Duration
}
