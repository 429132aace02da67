package audio

import "fmt"

// Resample converts PCM audio between sample rates using linear
// interpolation between the two nearest source samples. Positions at or
// beyond the end of the input clamp to the last available sample.
//
// The conversion is approximate: there is no band-limiting or
// anti-aliasing filter. That is acceptable for telephony-grade voice but
// not for high-fidelity audio.
//
// sampleWidth selects 16-bit (2) or 32-bit (4) little-endian signed
// samples; other widths are rejected. Input is assumed mono; output keeps
// the input width and endianness. Degenerate inputs (zero or one sample)
// return best-effort output without error.
func Resample(pcm []byte, fromRate, toRate, sampleWidth int) ([]byte, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates: %d -> %d", fromRate, toRate)
	}
	if sampleWidth != 2 && sampleWidth != 4 {
		return nil, fmt.Errorf("unsupported sample width %d (want 2 or 4)", sampleWidth)
	}

	if fromRate == toRate {
		out := make([]byte, len(pcm))
		copy(out, pcm)
		return out, nil
	}

	samples := len(pcm) / sampleWidth
	if samples == 0 {
		return []byte{}, nil
	}

	ratio := float64(toRate) / float64(fromRate)
	outSamples := int(float64(samples) * ratio)
	out := make([]byte, outSamples*sampleWidth)

	for i := 0; i < outSamples; i++ {
		srcPos := float64(i) / ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		if srcIdx >= samples {
			srcIdx = samples - 1
			frac = 0
		}
		nextIdx := srcIdx + 1
		if nextIdx >= samples {
			nextIdx = samples - 1
		}

		a := readSample(pcm, srcIdx, sampleWidth)
		b := readSample(pcm, nextIdx, sampleWidth)
		v := float64(a) + (float64(b)-float64(a))*frac
		writeSample(out, i, sampleWidth, int64(v))
	}

	return out, nil
}

func readSample(pcm []byte, idx, width int) int64 {
	off := idx * width
	if width == 2 {
		return int64(int16(pcm[off]) | int16(pcm[off+1])<<8)
	}
	return int64(int32(pcm[off]) | int32(pcm[off+1])<<8 | int32(pcm[off+2])<<16 | int32(pcm[off+3])<<24)
}

func writeSample(out []byte, idx, width int, v int64) {
	off := idx * width
	if width == 2 {
		out[off] = byte(v)
		out[off+1] = byte(v >> 8)
		return
	}
	out[off] = byte(v)
	out[off+1] = byte(v >> 8)
	out[off+2] = byte(v >> 16)
	out[off+3] = byte(v >> 24)
}
