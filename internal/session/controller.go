// Package session drives push-to-talk dictation: it toggles capture, runs the
// engine over the whole buffer on stop and merges the result into the history.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tiroq/dictaphone/internal/asr"
	"github.com/tiroq/dictaphone/internal/audio"
	"github.com/tiroq/dictaphone/internal/diaglog"
	"github.com/tiroq/dictaphone/internal/metrics"
	"github.com/tiroq/dictaphone/internal/recorder"
	"github.com/tiroq/dictaphone/internal/statemachine"
	"github.com/tiroq/dictaphone/internal/transcript"
)

// ErrBusy is returned by Retranscribe while a session is recording.
var ErrBusy = errors.New("session: recording in progress")

// Capture is the part of recorder.Recorder the controller drives.
type Capture interface {
	Start() error
	Stop(fn recorder.StopFunc) error
	View(fn recorder.StopFunc) error
	IsRecording() bool
	State() statemachine.State
}

// Action is what Toggle did.
type Action string

const (
	ActionStarted Action = "started"
	ActionStopped Action = "stopped"
)

// Session summarises the most recent transcription run.
type Session struct {
	ID        string        `json:"id,omitempty"`
	StartedAt time.Time     `json:"started_at,omitempty"`
	StoppedAt time.Time     `json:"stopped_at"`
	Samples   int           `json:"samples"`
	Offset    int64         `json:"offset,omitempty"`
	Segments  int           `json:"segments"`
	Engine    string        `json:"engine"`
	Elapsed   time.Duration `json:"elapsed"`
	Err       string        `json:"error,omitempty"`
}

// Controller owns the transcript history. Toggle, Retranscribe and the
// accessors may be called from any goroutine; Toggle blocks for the whole
// transcription.
type Controller struct {
	rec    Capture
	engine asr.Engine

	mu      sync.Mutex
	history transcript.History
	last    Session

	logger  *diaglog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger injects a diaglog.Logger.
func WithLogger(l *diaglog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithMetrics injects the Prometheus instruments.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates a controller with an empty history.
func New(rec Capture, engine asr.Engine, opts ...Option) *Controller {
	c := &Controller{
		rec:    rec,
		engine: engine,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Toggle starts capture when idle and stops and transcribes when recording.
// The returned Action names the transition that was attempted; on error the
// history is left untouched.
func (c *Controller) Toggle() (Action, error) {
	if c.rec.IsRecording() {
		return ActionStopped, c.Stop()
	}
	return ActionStarted, c.Start()
}

// Start begins a capture session.
func (c *Controller) Start() error {
	return c.rec.Start()
}

// Stop ends the session and transcribes the whole buffer.
func (c *Controller) Stop() error {
	return c.rec.Stop(func(s recorder.Snapshot) error {
		return c.transcribe(s)
	})
}

// Retranscribe runs the engine again over the buffer while idle, typically
// after an inference failure.
func (c *Controller) Retranscribe() error {
	if c.rec.IsRecording() {
		return ErrBusy
	}
	err := c.rec.View(func(s recorder.Snapshot) error {
		return c.transcribe(s)
	})
	if errors.Is(err, statemachine.ErrAlreadyRecording) {
		return ErrBusy
	}
	return err
}

func (c *Controller) transcribe(s recorder.Snapshot) error {
	c.logger.Log(diaglog.LogEntry{
		Component: diaglog.ComponentSession,
		Event:     diaglog.EventTranscribeStart,
		SessionID: s.SessionID,
		Payload:   map[string]interface{}{"samples": len(s.Samples), "engine": c.engine.Name()},
	})

	started := c.now()
	segments, err := c.engine.Transcribe(s.Samples)
	elapsed := c.now().Sub(started)

	run := Session{
		ID:        s.SessionID,
		StartedAt: s.StartedAt,
		StoppedAt: started,
		Samples:   len(s.Samples),
		Offset:    s.Offset,
		Engine:    c.engine.Name(),
		Elapsed:   elapsed,
	}

	if err != nil {
		run.Err = err.Error()
		c.mu.Lock()
		c.last = run
		c.mu.Unlock()

		c.logger.Log(diaglog.LogEntry{
			Component: diaglog.ComponentSession,
			Event:     diaglog.EventTranscribeFailed,
			SessionID: s.SessionID,
			Reason:    err.Error(),
		})
		c.metrics.RecordTranscription(run.Engine, 0, elapsed.Seconds(), err)
		return fmt.Errorf("session: transcribe: %w", err)
	}

	if delta := asr.TicksFromSamples(s.Offset, audio.SampleRate); delta != 0 {
		for i := range segments {
			segments[i] = segments[i].Shift(delta)
		}
	}
	if !asr.Ordered(segments) {
		asr.SortSegments(segments)
	}
	run.Segments = len(segments)

	c.mu.Lock()
	c.history.Merge(segments)
	boundary := c.history.Boundary
	c.last = run
	c.mu.Unlock()

	c.logger.Log(diaglog.LogEntry{
		Component: diaglog.ComponentSession,
		Event:     diaglog.EventTranscribeDone,
		SessionID: s.SessionID,
		Payload: map[string]interface{}{
			"segments":   len(segments),
			"boundary":   boundary,
			"elapsed_ms": elapsed.Milliseconds(),
		},
	})
	c.metrics.RecordTranscription(run.Engine, len(segments), elapsed.Seconds(), nil)
	c.metrics.SetBoundary(boundary)
	return nil
}

// Running reports whether capture is active.
func (c *Controller) Running() bool {
	return c.rec.IsRecording()
}

// EngineName names the engine that transcribes for this controller.
func (c *Controller) EngineName() string {
	return c.engine.Name()
}

// State returns the recorder's state.
func (c *Controller) State() statemachine.State {
	return c.rec.State()
}

// History returns a copy of the transcript history.
func (c *Controller) History() transcript.History {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Clone()
}

// Lines returns the classified display lines of the latest run.
func (c *Controller) Lines() []transcript.Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Lines()
}

// ClipboardText joins the texts of the latest run with single spaces.
func (c *Controller) ClipboardText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Text()
}

// LastSession returns a summary of the most recent transcription run.
func (c *Controller) LastSession() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
