package vad

import "math"

// DefaultThreshold is the RMS energy above which a frame counts as speech.
// Tuned for telephony audio where the noise floor sits well below it.
const DefaultThreshold = 500.0

// validRates are the sample rates a detector accepts. Frames must carry
// 10, 20 or 30 ms of PCM16 audio at one of these rates.
var validRates = map[int]bool{
	8000:  true,
	16000: true,
	32000: true,
	48000: true,
}

// Detector classifies a single PCM16 frame as speech or non-speech.
// Implementations must be safe for concurrent use.
type Detector interface {
	// IsSpeech reports whether the frame contains speech. Frames with an
	// unsupported length or sample rate are classified as non-speech.
	IsSpeech(frame []byte, sampleRate int) bool
}

// EnergyDetector classifies frames by RMS energy against a fixed
// threshold. The zero value is not usable; construct with
// NewEnergyDetector.
type EnergyDetector struct {
	threshold float64
}

// NewEnergyDetector creates a detector with the given RMS threshold.
// Non-positive thresholds fall back to DefaultThreshold.
func NewEnergyDetector(threshold float64) *EnergyDetector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &EnergyDetector{threshold: threshold}
}

// IsSpeech reports whether the frame's RMS energy reaches the threshold.
func (d *EnergyDetector) IsSpeech(frame []byte, sampleRate int) bool {
	if !validFrameLength(len(frame), sampleRate) {
		return false
	}
	return rms(frame) >= d.threshold
}

// validFrameLength reports whether n bytes form a 10, 20 or 30 ms PCM16
// frame at the given rate.
func validFrameLength(n, sampleRate int) bool {
	if !validRates[sampleRate] || n == 0 || n%2 != 0 {
		return false
	}
	for _, ms := range []int{10, 20, 30} {
		if n == sampleRate*ms/1000*2 {
			return true
		}
	}
	return false
}

func rms(frame []byte) float64 {
	samples := len(frame) / 2
	if samples == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < samples; i++ {
		s := float64(int16(frame[i*2]) | int16(frame[i*2+1])<<8)
		sum += s * s
	}
	return math.Sqrt(sum / float64(samples))
}

// Segment is a half-open range [Start, End) of frame indices that contains
// speech.
type Segment struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// DetectSpeechSegments runs the detector over consecutive frames and
// returns the speech segments, each widened by paddingFrames on both sides
// and clamped to the frame range. Segments whose padded ranges overlap are
// merged. A segment still open at the end of the input is closed at
// len(frames).
func DetectSpeechSegments(d Detector, frames [][]byte, sampleRate, paddingFrames int) []Segment {
	if d == nil || len(frames) == 0 {
		return nil
	}
	if paddingFrames < 0 {
		paddingFrames = 0
	}

	var segments []Segment
	start := -1

	for i, frame := range frames {
		if d.IsSpeech(frame, sampleRate) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			segments = appendPadded(segments, start, i, paddingFrames, len(frames))
			start = -1
		}
	}
	if start >= 0 {
		segments = appendPadded(segments, start, len(frames), paddingFrames, len(frames))
	}

	return segments
}

func appendPadded(segments []Segment, start, end, padding, total int) []Segment {
	start -= padding
	if start < 0 {
		start = 0
	}
	end += padding
	if end > total {
		end = total
	}

	// Merge with the previous segment when the padded ranges overlap.
	if n := len(segments); n > 0 && segments[n-1].End > start {
		if end > segments[n-1].End {
			segments[n-1].End = end
		}
		return segments
	}
	return append(segments, Segment{Start: start, End: end})
}
