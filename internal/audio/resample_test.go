package audio

import (
	"bytes"
	"testing"
)

func TestResampleIdentity(t *testing.T) {
	pcm := pcm16Bytes([]int16{100, -200, 300, -400, 500})

	out, err := Resample(pcm, 8000, 8000, 2)
	if err != nil {
		t.Fatalf("Resample failed: %v", err)
	}
	if !bytes.Equal(out, pcm) {
		t.Error("identity resample altered the data")
	}

	// Must be a copy, not an alias.
	out[0] ^= 0xFF
	if out[0] == pcm[0] {
		t.Error("identity resample aliases the input buffer")
	}
}

func TestResampleUpsampleLength(t *testing.T) {
	// 160 samples at 8 kHz is 20 ms; at 24 kHz that is 480 samples.
	pcm := pcm16Bytes(make([]int16, 160))

	out, err := Resample(pcm, 8000, 24000, 2)
	if err != nil {
		t.Fatalf("Resample failed: %v", err)
	}
	if got := len(out) / 2; got != 480 {
		t.Errorf("expected 480 samples, got %d", got)
	}
}

func TestResampleDownsampleLength(t *testing.T) {
	pcm := pcm16Bytes(make([]int16, 480))

	out, err := Resample(pcm, 24000, 8000, 2)
	if err != nil {
		t.Fatalf("Resample failed: %v", err)
	}
	if got := len(out) / 2; got != 160 {
		t.Errorf("expected 160 samples, got %d", got)
	}
}

func TestResampleRoundTripLength(t *testing.T) {
	for _, n := range []int{1, 7, 160, 161, 320} {
		pcm := pcm16Bytes(make([]int16, n))

		up, err := Resample(pcm, 8000, 24000, 2)
		if err != nil {
			t.Fatalf("upsample failed: %v", err)
		}
		down, err := Resample(up, 24000, 8000, 2)
		if err != nil {
			t.Fatalf("downsample failed: %v", err)
		}

		got := len(down) / 2
		if got < n-1 || got > n+1 {
			t.Errorf("n=%d: round trip yielded %d samples, want within ±1", n, got)
		}
	}
}

func TestResampleInterpolates(t *testing.T) {
	// Upsampling a two-point ramp must produce values between the
	// endpoints, in order.
	pcm := pcm16Bytes([]int16{0, 3000})

	out, err := Resample(pcm, 8000, 24000, 2)
	if err != nil {
		t.Fatalf("Resample failed: %v", err)
	}

	samples := pcm16Samples(out)
	if len(samples) != 6 {
		t.Fatalf("expected 6 samples, got %d", len(samples))
	}
	for i := 1; i < len(samples); i++ {
		if samples[i] < samples[i-1] {
			t.Errorf("sample %d: %d < %d, ramp not monotonic", i, samples[i], samples[i-1])
		}
	}
	if samples[0] != 0 {
		t.Errorf("first sample should be the first input, got %d", samples[0])
	}
}

func TestResampleDegenerateInputs(t *testing.T) {
	out, err := Resample(nil, 8000, 24000, 2)
	if err != nil {
		t.Fatalf("empty input: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("empty input produced %d bytes", len(out))
	}

	out, err = Resample(pcm16Bytes([]int16{1234}), 8000, 24000, 2)
	if err != nil {
		t.Fatalf("single sample: %v", err)
	}
	for _, s := range pcm16Samples(out) {
		if s != 1234 {
			t.Errorf("single-sample upsample should repeat the sample, got %d", s)
		}
	}
}

func TestResampleRejectsBadArguments(t *testing.T) {
	if _, err := Resample([]byte{0, 0}, 0, 8000, 2); err == nil {
		t.Error("expected error for zero source rate")
	}
	if _, err := Resample([]byte{0, 0}, 8000, -1, 2); err == nil {
		t.Error("expected error for negative target rate")
	}
	if _, err := Resample([]byte{0, 0}, 8000, 24000, 3); err == nil {
		t.Error("expected error for unsupported sample width")
	}
}

func TestResampleWidth4(t *testing.T) {
	in := []byte{
		0x00, 0x10, 0x00, 0x00,
		0x00, 0x20, 0x00, 0x00,
	}

	out, err := Resample(in, 8000, 16000, 4)
	if err != nil {
		t.Fatalf("Resample failed: %v", err)
	}
	if len(out) != 16 {
		t.Fatalf("expected 16 bytes, got %d", len(out))
	}
}

func pcm16Bytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

func pcm16Samples(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return out
}
