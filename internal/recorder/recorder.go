// Package recorder owns the default input stream and the shared capture
// buffer, and gates start/stop through the recording state machine.
package recorder

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/tiroq/dictaphone/internal/audio"
	"github.com/tiroq/dictaphone/internal/diaglog"
	"github.com/tiroq/dictaphone/internal/metrics"
	"github.com/tiroq/dictaphone/internal/statemachine"
)

// Stream parameters of the default input device.
const (
	Channels        = 1
	SampleRate      = audio.SampleRate
	FramesPerBuffer = 1024
)

// asyncErrorQueue bounds the stream errors waiting to be logged.
const asyncErrorQueue = 32

var (
	// ErrDevice reports that no input device was available or the stream
	// could not be opened.
	ErrDevice = errors.New("audio device unavailable")
	// ErrStreamControl reports that the device refused to start or pause.
	ErrStreamControl = errors.New("stream control failed")
	// ErrInputOverflow and ErrInputUnderflow are delivered asynchronously
	// when the device reports dropped input.
	ErrInputOverflow  = errors.New("input overflow")
	ErrInputUnderflow = errors.New("input underflow")
)

// StreamConfig describes the stream requested from the device.
type StreamConfig struct {
	Channels        int
	SampleRate      int
	FramesPerBuffer int
}

// DefaultStreamConfig returns mono 16 kHz with 1024-frame callbacks.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Channels:        Channels,
		SampleRate:      SampleRate,
		FramesPerBuffer: FramesPerBuffer,
	}
}

// Stream is an opened input stream. Stop pauses delivery; Start resumes it.
type Stream interface {
	Start() error
	Stop() error
	Close() error
}

// Opener opens an input stream that calls onFrames with each batch of
// samples and onError with asynchronous stream errors. Both callbacks run on
// the device's real-time thread.
type Opener func(cfg StreamConfig, onFrames func([]float32), onError func(error)) (Stream, error)

// Snapshot is the read-only view handed to a StopFunc. Samples aliases the
// buffer and is only valid for the duration of the call.
type Snapshot struct {
	Samples   []float32
	Offset    int64 // samples dropped before Samples[0]
	StartedAt time.Time
	SessionID string
}

// StopFunc consumes the captured audio after the stream is paused.
type StopFunc func(Snapshot) error

// Recorder captures from one input stream into one buffer.
type Recorder struct {
	opMu    sync.Mutex   // serialises Start/Stop/Close
	stateMu sync.RWMutex // guards sm
	sm      *statemachine.StateMachine

	stream Stream
	buf    *audio.Buffer

	errs    chan error
	done    chan struct{}
	wg      sync.WaitGroup
	closed  bool
	logger  *diaglog.Logger
	metrics *metrics.Metrics
	limit   int
	now     func() time.Time
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithBufferLimit keeps only the most recent n samples. n <= 0 keeps all.
func WithBufferLimit(n int) Option {
	return func(r *Recorder) { r.limit = n }
}

// WithLogger injects a diaglog.Logger.
func WithLogger(l *diaglog.Logger) Option {
	return func(r *Recorder) { r.logger = l }
}

// WithMetrics injects the Prometheus instruments.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// WithClock replaces the time source of the state machine.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// New opens the input stream through open and starts the error drain. The
// stream is opened paused; call Start to begin capturing.
func New(open Opener, opts ...Option) (*Recorder, error) {
	r := &Recorder{
		sm:   statemachine.NewStateMachine(),
		errs: make(chan error, asyncErrorQueue),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.now != nil {
		r.sm.SetClock(r.now)
	}
	r.buf = audio.NewBuffer(r.limit)

	stream, err := open(DefaultStreamConfig(), r.onFrames, r.onError)
	if err != nil {
		if errors.Is(err, ErrDevice) {
			return nil, fmt.Errorf("recorder: %w", err)
		}
		return nil, fmt.Errorf("recorder: %w: %w", ErrDevice, err)
	}
	r.stream = stream

	r.wg.Add(1)
	go r.drainErrors()

	return r, nil
}

// onFrames runs on the real-time thread.
func (r *Recorder) onFrames(in []float32) {
	r.buf.Append(in)
	r.metrics.RecordFrames(len(in))
}

// onError runs on the real-time thread and never blocks.
func (r *Recorder) onError(err error) {
	select {
	case r.errs <- err:
	default:
	}
}

func (r *Recorder) drainErrors() {
	defer r.wg.Done()
	for {
		select {
		case err := <-r.errs:
			log.Printf("[recorder] stream error: %v", err)
			r.logger.Log(diaglog.LogEntry{
				Component: diaglog.ComponentRecorder,
				Event:     diaglog.EventStreamError,
				SessionID: r.SessionID(),
				Reason:    err.Error(),
			})
			r.metrics.RecordStreamError(errorKind(err))
		case <-r.done:
			return
		}
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrInputOverflow):
		return "overflow"
	case errors.Is(err, ErrInputUnderflow):
		return "underflow"
	default:
		return "other"
	}
}

// Start begins a capture session. Starting while already recording returns
// statemachine.ErrAlreadyRecording and changes nothing.
func (r *Recorder) Start() error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	r.stateMu.RLock()
	err := r.sm.CanStart()
	r.stateMu.RUnlock()
	if err != nil {
		r.reject(diaglog.EventRecordingStartRejected, "start", err)
		return err
	}
	if r.closed {
		return fmt.Errorf("recorder: start: %w: recorder closed", ErrStreamControl)
	}

	if err := r.stream.Start(); err != nil {
		r.reject(diaglog.EventRecordingStartRejected, "start", err)
		return fmt.Errorf("recorder: start stream: %w: %w", ErrStreamControl, err)
	}

	r.stateMu.Lock()
	st := r.sm.StartRecording()
	r.stateMu.Unlock()

	r.logger.Log(diaglog.LogEntry{
		Component: diaglog.ComponentRecorder,
		Event:     diaglog.EventRecordingStart,
		SessionID: st.SessionID,
		Payload:   map[string]interface{}{"buffer_samples": r.buf.Total()},
	})
	r.metrics.RecordSessionStarted()
	return nil
}

// StopWithoutCallback pauses the stream and ends the session, returning when
// it started. Stopping while idle returns statemachine.ErrAlreadyStopped. The
// buffer is never cleared.
func (r *Recorder) StopWithoutCallback() (time.Time, error) {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	prev, err := r.stopLocked()
	if err != nil {
		return time.Time{}, err
	}
	return prev.StartedAt, nil
}

// Stop ends the session like StopWithoutCallback and then calls fn with the
// captured audio while the buffer is read-locked. fn's error is returned.
// fn must not call back into the Recorder.
func (r *Recorder) Stop(fn StopFunc) error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	prev, err := r.stopLocked()
	if err != nil {
		return err
	}
	return r.buf.View(func(samples []float32, offset int64) error {
		return fn(Snapshot{
			Samples:   samples,
			Offset:    offset,
			StartedAt: prev.StartedAt,
			SessionID: prev.SessionID,
		})
	})
}

// View calls fn with the captured audio while idle. It is the re-run path
// after a failed transcription and returns ErrAlreadyRecording mid-session.
func (r *Recorder) View(fn StopFunc) error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	r.stateMu.RLock()
	err := r.sm.CanStart()
	r.stateMu.RUnlock()
	if err != nil {
		return err
	}
	return r.buf.View(func(samples []float32, offset int64) error {
		return fn(Snapshot{Samples: samples, Offset: offset})
	})
}

// stopLocked must be called with opMu held.
func (r *Recorder) stopLocked() (statemachine.State, error) {
	r.stateMu.RLock()
	err := r.sm.CanStop()
	r.stateMu.RUnlock()
	if err != nil {
		r.reject(diaglog.EventRecordingStopRejected, "stop", err)
		return statemachine.State{}, err
	}

	if err := r.stream.Stop(); err != nil {
		r.reject(diaglog.EventRecordingStopRejected, "stop", err)
		return statemachine.State{}, fmt.Errorf("recorder: pause stream: %w: %w", ErrStreamControl, err)
	}

	r.stateMu.Lock()
	dur := r.sm.RecordingDuration()
	prev, err := r.sm.StopRecording()
	r.stateMu.Unlock()
	if err != nil {
		return statemachine.State{}, err
	}

	r.logger.Log(diaglog.LogEntry{
		Component: diaglog.ComponentRecorder,
		Event:     diaglog.EventRecordingStop,
		SessionID: prev.SessionID,
		Payload: map[string]interface{}{
			"duration_ms":    dur.Milliseconds(),
			"buffer_samples": r.buf.Total(),
		},
	})
	r.metrics.RecordSessionStopped(dur.Seconds())
	r.metrics.SetBufferSamples(r.buf.Len())
	return prev, nil
}

func (r *Recorder) reject(event, command string, err error) {
	r.logger.Log(diaglog.LogEntry{
		Component: diaglog.ComponentRecorder,
		Event:     event,
		SessionID: r.SessionID(),
		Reason:    err.Error(),
	})
	r.metrics.RecordRejected(command)
}

// IsRecording reports whether a session is active.
func (r *Recorder) IsRecording() bool {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.sm.IsRecording()
}

// State returns the current recording state.
func (r *Recorder) State() statemachine.State {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.sm.Current()
}

// SessionID returns the active session ID, or "" when idle.
func (r *Recorder) SessionID() string {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.sm.SessionID()
}

// Elapsed returns how long the active session has been recording.
func (r *Recorder) Elapsed() time.Duration {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.sm.RecordingDuration()
}

// Buffer returns the capture buffer.
func (r *Recorder) Buffer() *audio.Buffer {
	return r.buf
}

// Close pauses an active session, closes the stream and stops the error
// drain. Captured audio stays readable through Buffer.
func (r *Recorder) Close() error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if r.IsRecording() {
		if _, err := r.stopLocked(); err != nil {
			log.Printf("[recorder] stop on close: %v", err)
		}
	}
	err := r.stream.Close()
	close(r.done)
	r.wg.Wait()
	if err != nil {
		return fmt.Errorf("recorder: close stream: %w", err)
	}
	return nil
}
