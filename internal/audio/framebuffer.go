package audio

import (
	"fmt"
	"sync"
)

// FrameBuffer accumulates raw audio bytes and hands them back as
// fixed-duration frames. It is bounded: when an append would exceed the
// configured capacity the oldest bytes are evicted so the newest audio
// always survives. Safe for concurrent use.
type FrameBuffer struct {
	mu      sync.Mutex
	data    []byte
	maxSize int
}

// NewFrameBuffer creates a buffer holding at most maxSize bytes.
func NewFrameBuffer(maxSize int) (*FrameBuffer, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("invalid buffer capacity %d", maxSize)
	}
	return &FrameBuffer{
		data:    make([]byte, 0, maxSize),
		maxSize: maxSize,
	}, nil
}

// Append adds audio bytes to the buffer, evicting the oldest bytes if the
// capacity would be exceeded.
func (b *FrameBuffer) Append(data []byte) {
	if len(data) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(data) >= b.maxSize {
		// The new chunk alone fills the buffer; keep only its tail.
		b.data = b.data[:0]
		b.data = append(b.data, data[len(data)-b.maxSize:]...)
		return
	}

	if over := len(b.data) + len(data) - b.maxSize; over > 0 {
		b.data = b.data[:copy(b.data, b.data[over:])]
	}
	b.data = append(b.data, data...)
}

// Chunk removes and returns all complete frames of the given duration.
// A frame is durationMs worth of samples at sampleRate with sampleWidth
// bytes per sample. Bytes that do not fill a whole frame stay buffered
// for the next call.
func (b *FrameBuffer) Chunk(durationMs, sampleRate, sampleWidth int) [][]byte {
	frameBytes := sampleRate * durationMs / 1000 * sampleWidth
	if frameBytes <= 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.data) / frameBytes
	if n == 0 {
		return nil
	}

	frames := make([][]byte, n)
	for i := 0; i < n; i++ {
		frame := make([]byte, frameBytes)
		copy(frame, b.data[i*frameBytes:])
		frames[i] = frame
	}

	remainder := len(b.data) - n*frameBytes
	b.data = b.data[:copy(b.data, b.data[n*frameBytes:n*frameBytes+remainder])]
	return frames
}

// Clear discards all buffered audio.
func (b *FrameBuffer) Clear() {
	b.mu.Lock()
	b.data = b.data[:0]
	b.mu.Unlock()
}

// Size returns the number of buffered bytes.
func (b *FrameBuffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}
