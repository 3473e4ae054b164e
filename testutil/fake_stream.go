package testutil

import (
	"sync"
)

// FakeStream stands in for a PortAudio input stream. Tests drive the capture
// callback with Emit and the error callback with Fail.
type FakeStream struct {
	mu       sync.Mutex
	onFrames func([]float32)
	onError  func(error)

	StartErr error
	StopErr  error

	starts int
	stops  int
	closed bool
	active bool
}

// Attach records the callbacks the recorder registered when opening the stream.
func (f *FakeStream) Attach(onFrames func([]float32), onError func(error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onFrames = onFrames
	f.onError = onError
}

// Start marks the stream active unless StartErr is set.
func (f *FakeStream) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.StartErr != nil {
		return f.StartErr
	}
	f.active = true
	return nil
}

// Stop marks the stream paused unless StopErr is set.
func (f *FakeStream) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	if f.StopErr != nil {
		return f.StopErr
	}
	f.active = false
	return nil
}

// Close marks the stream closed.
func (f *FakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.active = false
	return nil
}

// Emit delivers samples through the capture callback when the stream is
// active, as a real device would. It reports whether samples were delivered.
func (f *FakeStream) Emit(samples []float32) bool {
	f.mu.Lock()
	cb := f.onFrames
	active := f.active
	f.mu.Unlock()
	if cb == nil || !active {
		return false
	}
	cb(samples)
	return true
}

// Fail delivers err through the asynchronous error callback.
func (f *FakeStream) Fail(err error) {
	f.mu.Lock()
	cb := f.onError
	f.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

// Starts returns how many times Start was called.
func (f *FakeStream) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

// Stops returns how many times Stop was called.
func (f *FakeStream) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

// Closed reports whether Close was called.
func (f *FakeStream) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Active reports whether the stream is currently delivering frames.
func (f *FakeStream) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// Tone returns n samples of a constant value.
func Tone(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}
