package statemachine

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrAlreadyStopped is returned when a stop is requested while idle.
	ErrAlreadyStopped = errors.New("stream is already stopped")
	// ErrAlreadyRecording is returned when a start is requested while recording.
	ErrAlreadyRecording = errors.New("already recording")
)

// Phase is the coarse recording phase.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRecording Phase = "recording"
)

// State is the current recording state. StartedAt and SessionID are only
// meaningful while Phase is PhaseRecording.
type State struct {
	Phase     Phase     `json:"phase"`
	StartedAt time.Time `json:"started_at,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
}

// Recording reports whether the state is PhaseRecording.
func (s State) Recording() bool {
	return s.Phase == PhaseRecording
}

// StateMachine tracks the Idle/Recording lifecycle of one capture device.
// It is not safe for concurrent use; the owner serialises access.
type StateMachine struct {
	state State
	now   func() time.Time
	newID func() string
}

// NewStateMachine creates a state machine in the idle phase
func NewStateMachine() *StateMachine {
	return &StateMachine{
		state: State{Phase: PhaseIdle},
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
}

// SetClock replaces the time source. Used by tests.
func (sm *StateMachine) SetClock(now func() time.Time) {
	sm.now = now
}

// CanStart returns ErrAlreadyRecording if a session is active.
func (sm *StateMachine) CanStart() error {
	if sm.state.Recording() {
		return ErrAlreadyRecording
	}
	return nil
}

// CanStop returns ErrAlreadyStopped if no session is active.
func (sm *StateMachine) CanStop() error {
	if !sm.state.Recording() {
		return ErrAlreadyStopped
	}
	return nil
}

// StartRecording enters the recording phase with a fresh session ID.
// Callers check CanStart first and only commit once the device confirmed.
func (sm *StateMachine) StartRecording() State {
	sm.state = State{
		Phase:     PhaseRecording,
		StartedAt: sm.now(),
		SessionID: sm.newID(),
	}
	return sm.state
}

// StopRecording returns to idle and reports the state that was active.
func (sm *StateMachine) StopRecording() (State, error) {
	if err := sm.CanStop(); err != nil {
		return State{}, err
	}
	prev := sm.state
	sm.state = State{Phase: PhaseIdle}
	return prev, nil
}

// Current returns the current state
func (sm *StateMachine) Current() State {
	return sm.state
}

// IsRecording returns current recording status
func (sm *StateMachine) IsRecording() bool {
	return sm.state.Recording()
}

// SessionID returns the active session ID, or "" when idle
func (sm *StateMachine) SessionID() string {
	return sm.state.SessionID
}

// RecordingDuration returns how long current recording has been active
func (sm *StateMachine) RecordingDuration() time.Duration {
	if !sm.state.Recording() {
		return 0
	}
	return sm.now().Sub(sm.state.StartedAt)
}
