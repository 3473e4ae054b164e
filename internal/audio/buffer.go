// Package audio holds the shared capture buffer and WAV encoding helpers.
package audio

import "sync"

// SampleRate is the nominal rate of every buffer in this package.
const SampleRate = 16000

// Buffer is an append-only sequence of mono float32 samples shared between
// one writer (the capture callback) and one reader (the session controller).
//
// With a zero limit every sample is retained for the life of the process.
// With a positive limit only the most recent limit samples are visible; older
// samples are compacted away lazily and counted in the offset so positions stay
// on the absolute timeline.
type Buffer struct {
	mu      sync.RWMutex
	samples []float32
	dropped int64
	limit   int
}

// NewBuffer creates an empty buffer. limit <= 0 keeps everything.
func NewBuffer(limit int) *Buffer {
	if limit < 0 {
		limit = 0
	}
	return &Buffer{
		samples: make([]float32, 0, SampleRate*4),
		limit:   limit,
	}
}

// Append copies in onto the end of the buffer. It never blocks on anything
// but the buffer lock and is safe to call from a real-time callback.
func (b *Buffer) Append(in []float32) {
	if len(in) == 0 {
		return
	}
	b.mu.Lock()
	b.samples = append(b.samples, in...)
	if b.limit > 0 && len(b.samples) >= 2*b.limit {
		drop := len(b.samples) - b.limit
		n := copy(b.samples, b.samples[drop:])
		b.samples = b.samples[:n]
		b.dropped += int64(drop)
	}
	b.mu.Unlock()
}

// View calls fn with the retained samples and their offset (samples dropped
// before the first retained one) while holding the read lock. fn must not
// retain the slice or call back into the buffer.
func (b *Buffer) View(fn func(samples []float32, offset int64) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	start := b.visibleStart()
	return fn(b.samples[start:], b.dropped+int64(start))
}

// Snapshot returns a copy of the retained samples and their offset.
func (b *Buffer) Snapshot() ([]float32, int64) {
	var out []float32
	var off int64
	_ = b.View(func(samples []float32, offset int64) error {
		out = make([]float32, len(samples))
		copy(out, samples)
		off = offset
		return nil
	})
	return out, off
}

// Len returns the number of retained samples.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.samples) - b.visibleStart()
}

// Total returns the number of samples ever appended. It never decreases.
func (b *Buffer) Total() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped + int64(len(b.samples))
}

// Offset returns the number of samples that precede the retained window.
func (b *Buffer) Offset() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped + int64(b.visibleStart())
}

// Duration returns the retained audio length in seconds.
func (b *Buffer) Duration() float64 {
	return float64(b.Len()) / SampleRate
}

// visibleStart must be called with the lock held.
func (b *Buffer) visibleStart() int {
	if b.limit > 0 && len(b.samples) > b.limit {
		return len(b.samples) - b.limit
	}
	return 0
}
