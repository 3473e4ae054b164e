package testutil

import (
	"sync"

	"github.com/tiroq/dictaphone/internal/asr"
)

// FakeEngine is a deterministic asr.Engine. By default it produces one segment
// per Chunk samples of input, named by Words in order; Script overrides that
// with a fixed result per call.
type FakeEngine struct {
	mu sync.Mutex

	Words  []string
	Chunk  int // samples per generated segment; default 16000 (one second)
	Script [][]asr.Segment
	Err    error

	calls   int
	lastLen int
}

// Name returns "fake".
func (f *FakeEngine) Name() string { return "fake" }

// Transcribe returns the scripted or generated segments for samples.
func (f *FakeEngine) Transcribe(samples []float32) ([]asr.Segment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(samples) == 0 {
		return nil, nil
	}
	call := f.calls
	f.calls++
	f.lastLen = len(samples)

	if f.Err != nil {
		return nil, asr.Inference(f.Name(), f.Err)
	}

	if call < len(f.Script) {
		out := make([]asr.Segment, len(f.Script[call]))
		copy(out, f.Script[call])
		return out, nil
	}

	chunk := f.Chunk
	if chunk <= 0 {
		chunk = 16000
	}
	var out []asr.Segment
	for i, off := 0, 0; off < len(samples); i, off = i+1, off+chunk {
		end := off + chunk
		if end > len(samples) {
			end = len(samples)
		}
		text := "word"
		if i < len(f.Words) {
			text = f.Words[i]
		}
		out = append(out, asr.Segment{
			Text:  text,
			Start: asr.TicksFromSamples(int64(off), 16000),
			Stop:  asr.TicksFromSamples(int64(end), 16000),
		})
	}
	return out, nil
}

// HealthCheck always reports healthy.
func (f *FakeEngine) HealthCheck() (*asr.HealthStatus, error) {
	return &asr.HealthStatus{OK: true, Backend: f.Name(), Message: "healthy"}, nil
}

// Calls returns how many non-empty buffers were transcribed.
func (f *FakeEngine) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// LastLen returns the sample count of the last transcribed buffer.
func (f *FakeEngine) LastLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastLen
}

// SetErr changes the failure returned by subsequent calls.
func (f *FakeEngine) SetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Err = err
}
