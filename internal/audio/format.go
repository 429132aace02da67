package audio

import (
	"fmt"
	"time"
)

// Codec identifies the byte-level encoding of an audio buffer.
type Codec int

const (
	CodecPCM Codec = iota
	CodecMuLaw
)

// String returns the codec name.
func (c Codec) String() string {
	switch c {
	case CodecPCM:
		return "pcm"
	case CodecMuLaw:
		return "mulaw"
	default:
		return fmt.Sprintf("codec(%d)", int(c))
	}
}

// Format describes how a raw audio buffer is interpreted. It is an
// immutable value type.
type Format struct {
	Codec       Codec
	SampleRate  int
	Channels    int
	SampleWidth int // bytes per sample
}

// The two formats spoken by the relay: μ-law 8 kHz mono on the telephony
// leg and PCM16 24 kHz mono on the conversational leg.
var (
	TelephonyFormat    = Format{Codec: CodecMuLaw, SampleRate: 8000, Channels: 1, SampleWidth: 1}
	ConversationFormat = Format{Codec: CodecPCM, SampleRate: 24000, Channels: 1, SampleWidth: 2}
)

// FrameBytes returns the number of bytes in a frame of the given duration.
func (f Format) FrameBytes(durationMs int) int {
	return f.SampleRate * durationMs / 1000 * f.SampleWidth * f.Channels
}

// Frame is a raw audio buffer together with its format.
type Frame struct {
	Data   []byte
	Format Format
}

// Aligned reports whether the buffer holds a whole number of samples.
func (f Frame) Aligned() bool {
	unit := f.Format.SampleWidth * f.Format.Channels
	return unit > 0 && len(f.Data)%unit == 0
}

// Duration returns the playback duration of the frame.
func (f Frame) Duration() time.Duration {
	unit := f.Format.SampleWidth * f.Format.Channels
	if unit == 0 || f.Format.SampleRate == 0 {
		return 0
	}
	samples := len(f.Data) / unit
	return time.Duration(samples) * time.Second / time.Duration(f.Format.SampleRate)
}
