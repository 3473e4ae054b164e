package recorder

import (
	"errors"
	"testing"
	"time"

	"github.com/tiroq/dictaphone/internal/metrics"
	"github.com/tiroq/dictaphone/internal/statemachine"
	"github.com/tiroq/dictaphone/testutil"
)

func newTestRecorder(t *testing.T, opts ...Option) (*Recorder, *testutil.FakeStream) {
	t.Helper()
	fs := &testutil.FakeStream{}
	open := func(cfg StreamConfig, onFrames func([]float32), onError func(error)) (Stream, error) {
		if cfg != DefaultStreamConfig() {
			t.Errorf("unexpected stream config %+v", cfg)
		}
		fs.Attach(onFrames, onError)
		return fs, nil
	}
	r, err := New(open, opts...)
	testutil.AssertNoError(t, err, "New")
	t.Cleanup(func() { _ = r.Close() })
	return r, fs
}

func TestDefaultStreamConfig(t *testing.T) {
	cfg := DefaultStreamConfig()
	testutil.AssertEqual(t, 1, cfg.Channels, "channels")
	testutil.AssertEqual(t, 16000, cfg.SampleRate, "sample rate")
	testutil.AssertEqual(t, 1024, cfg.FramesPerBuffer, "frames per buffer")
}

func TestNewDeviceError(t *testing.T) {
	open := func(StreamConfig, func([]float32), func(error)) (Stream, error) {
		return nil, errors.New("no default input device")
	}
	_, err := New(open)
	testutil.AssertTrue(t, errors.Is(err, ErrDevice), "ErrDevice on open failure")
	testutil.AssertErrorContains(t, err, "no default input device", "cause preserved")
}

func TestStartStopReturnsStartTimestamp(t *testing.T) {
	started := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	r, fs := newTestRecorder(t, WithClock(func() time.Time { return started }))

	testutil.AssertNoError(t, r.Start(), "Start")
	testutil.AssertTrue(t, r.IsRecording(), "recording after Start")
	testutil.AssertTrue(t, fs.Active(), "stream active after Start")
	testutil.AssertNotEqual(t, "", r.SessionID(), "session ID assigned")

	got, err := r.StopWithoutCallback()
	testutil.AssertNoError(t, err, "StopWithoutCallback")
	testutil.AssertTrue(t, got.Equal(started), "returned start timestamp")
	testutil.AssertFalse(t, r.IsRecording(), "idle after stop")
	testutil.AssertFalse(t, fs.Active(), "stream paused after stop")
	testutil.AssertEqual(t, statemachine.PhaseIdle, r.State().Phase, "phase")
}

func TestDoubleStopFails(t *testing.T) {
	r, fs := newTestRecorder(t)

	testutil.AssertNoError(t, r.Start(), "Start")
	_, err := r.StopWithoutCallback()
	testutil.AssertNoError(t, err, "first stop")

	_, err = r.StopWithoutCallback()
	testutil.AssertTrue(t, errors.Is(err, statemachine.ErrAlreadyStopped), "second stop is ErrAlreadyStopped")
	testutil.AssertEqual(t, 1, fs.Stops(), "stream paused once")
}

func TestStopBeforeStartFails(t *testing.T) {
	r, fs := newTestRecorder(t)

	err := r.Stop(func(Snapshot) error {
		t.Fatal("callback must not run when idle")
		return nil
	})
	testutil.AssertTrue(t, errors.Is(err, statemachine.ErrAlreadyStopped), "ErrAlreadyStopped")
	testutil.AssertEqual(t, 0, fs.Stops(), "stream untouched")
}

func TestStartWhileRecordingIsRejected(t *testing.T) {
	r, fs := newTestRecorder(t)

	testutil.AssertNoError(t, r.Start(), "Start")
	id := r.SessionID()

	err := r.Start()
	testutil.AssertTrue(t, errors.Is(err, statemachine.ErrAlreadyRecording), "ErrAlreadyRecording")
	testutil.AssertEqual(t, 1, fs.Starts(), "stream started once")
	testutil.AssertEqual(t, id, r.SessionID(), "session unchanged")
}

func TestStartStreamFailure(t *testing.T) {
	r, fs := newTestRecorder(t)
	fs.StartErr = errors.New("device busy")

	err := r.Start()
	testutil.AssertTrue(t, errors.Is(err, ErrStreamControl), "ErrStreamControl")
	testutil.AssertFalse(t, r.IsRecording(), "state unchanged")
}

func TestPauseFailureKeepsRecording(t *testing.T) {
	r, fs := newTestRecorder(t)
	testutil.AssertNoError(t, r.Start(), "Start")
	fs.StopErr = errors.New("device gone")

	_, err := r.StopWithoutCallback()
	testutil.AssertTrue(t, errors.Is(err, ErrStreamControl), "ErrStreamControl")
	testutil.AssertTrue(t, r.IsRecording(), "state unchanged on pause failure")
}

func TestBufferAccumulatesAcrossSessions(t *testing.T) {
	r, fs := newTestRecorder(t)

	testutil.AssertFalse(t, fs.Emit(testutil.Tone(10, 0.5)), "no frames before start")

	testutil.AssertNoError(t, r.Start(), "Start")
	fs.Emit(testutil.Tone(100, 0.1))
	_, err := r.StopWithoutCallback()
	testutil.AssertNoError(t, err, "stop")
	first := r.Buffer().Total()
	testutil.AssertEqual(t, int64(100), first, "samples after first session")

	testutil.AssertFalse(t, fs.Emit(testutil.Tone(10, 0.5)), "no frames while paused")

	testutil.AssertNoError(t, r.Start(), "Start again")
	fs.Emit(testutil.Tone(50, 0.2))

	var snapLen int
	var snapOffset int64
	err = r.Stop(func(s Snapshot) error {
		snapLen = len(s.Samples)
		snapOffset = s.Offset
		testutil.AssertEqual(t, float32(0.1), s.Samples[0], "first session kept")
		testutil.AssertEqual(t, float32(0.2), s.Samples[149], "second session appended")
		return nil
	})
	testutil.AssertNoError(t, err, "Stop")
	testutil.AssertEqual(t, 150, snapLen, "snapshot covers both sessions")
	testutil.AssertEqual(t, int64(0), snapOffset, "nothing dropped")
	testutil.AssertTrue(t, r.Buffer().Total() >= first, "total never decreases")
}

func TestStopCallbackReceivesSession(t *testing.T) {
	started := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	r, fs := newTestRecorder(t, WithClock(func() time.Time { return started }))
	testutil.AssertNoError(t, r.Start(), "Start")
	id := r.SessionID()
	fs.Emit(testutil.Tone(16, 0.3))

	boom := errors.New("callback failed")
	err := r.Stop(func(s Snapshot) error {
		testutil.AssertEqual(t, id, s.SessionID, "session ID")
		testutil.AssertTrue(t, s.StartedAt.Equal(started), "started at")
		return boom
	})
	testutil.AssertTrue(t, errors.Is(err, boom), "callback error returned")
	testutil.AssertFalse(t, r.IsRecording(), "stopped even when callback fails")
	testutil.AssertEqual(t, 16, r.Buffer().Len(), "buffer kept")
}

func TestViewWhileRecordingIsRejected(t *testing.T) {
	r, _ := newTestRecorder(t)
	testutil.AssertNoError(t, r.Start(), "Start")

	err := r.View(func(Snapshot) error { return nil })
	testutil.AssertTrue(t, errors.Is(err, statemachine.ErrAlreadyRecording), "ErrAlreadyRecording")
}

func TestBufferLimitKeepsAbsoluteOffset(t *testing.T) {
	r, fs := newTestRecorder(t, WithBufferLimit(100))
	testutil.AssertNoError(t, r.Start(), "Start")
	fs.Emit(testutil.Tone(250, 0.1))

	err := r.Stop(func(s Snapshot) error {
		testutil.AssertEqual(t, 100, len(s.Samples), "retained samples")
		testutil.AssertEqual(t, int64(150), s.Offset, "dropped samples")
		return nil
	})
	testutil.AssertNoError(t, err, "Stop")
	testutil.AssertEqual(t, int64(250), r.Buffer().Total(), "total counts dropped samples")
}

func TestAsyncStreamErrorsAreLogged(t *testing.T) {
	lc := testutil.NewLogCapture()
	lc.Start()
	defer lc.Stop()

	m := metrics.NewMetrics()
	r, fs := newTestRecorder(t, WithMetrics(m))
	testutil.AssertNoError(t, r.Start(), "Start")

	fs.Fail(ErrInputOverflow)
	testutil.WaitForCondition(t, func() bool {
		return lc.Contains("stream error: input overflow")
	}, time.Second, "stream error logged")
	testutil.AssertTrue(t, r.IsRecording(), "stream errors never stop capture")
}

func TestAsyncErrorsNeverBlock(t *testing.T) {
	lc := testutil.NewLogCapture()
	lc.Start()
	defer lc.Stop()

	r, fs := newTestRecorder(t)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10*asyncErrorQueue; i++ {
			fs.Fail(ErrInputUnderflow)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("error callback blocked")
	}
	testutil.AssertNoError(t, r.Start(), "Start after error burst")
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrInputOverflow, "overflow"},
		{ErrInputUnderflow, "underflow"},
		{errors.New("host error"), "other"},
	}
	for _, tt := range tests {
		testutil.AssertEqual(t, tt.want, errorKind(tt.err), tt.err.Error())
	}
}

func TestCloseStopsActiveSession(t *testing.T) {
	r, fs := newTestRecorder(t)
	testutil.AssertNoError(t, r.Start(), "Start")

	testutil.AssertNoError(t, r.Close(), "Close")
	testutil.AssertTrue(t, fs.Closed(), "stream closed")
	testutil.AssertFalse(t, r.IsRecording(), "idle after close")
	testutil.AssertNoError(t, r.Close(), "second Close")

	err := r.Start()
	testutil.AssertTrue(t, errors.Is(err, ErrStreamControl), "start after close")
}
