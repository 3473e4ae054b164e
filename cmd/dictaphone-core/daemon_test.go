package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tiroq/dictaphone/internal/asr"
	"github.com/tiroq/dictaphone/internal/clipboard"
	"github.com/tiroq/dictaphone/internal/config"
	"github.com/tiroq/dictaphone/internal/diaglog"
	"github.com/tiroq/dictaphone/internal/ipc"
	"github.com/tiroq/dictaphone/internal/notify"
	"github.com/tiroq/dictaphone/internal/recorder"
	"github.com/tiroq/dictaphone/internal/session"
	"github.com/tiroq/dictaphone/testutil"
)

var logs = testutil.NewLogCapture()

func TestMain(m *testing.M) {
	outLog = logs.Logger(logPrefix + " ")
	errLog = logs.Logger(logPrefix + " ERROR: ")
	os.Exit(m.Run())
}

type memClipboard struct {
	text string
	err  error
}

func (c *memClipboard) WriteAll(text string) error {
	if c.err != nil {
		return c.err
	}
	c.text = text
	return nil
}

type daemonHarness struct {
	d      *daemon
	stream *testutil.FakeStream
	engine *testutil.FakeEngine
	clip   *memClipboard
}

func newDaemonHarness(t *testing.T, cfg *config.Config) *daemonHarness {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	fs := &testutil.FakeStream{}
	open := func(_ recorder.StreamConfig, onFrames func([]float32), onError func(error)) (recorder.Stream, error) {
		fs.Attach(onFrames, onError)
		return fs, nil
	}
	rec, err := recorder.New(open)
	testutil.AssertNoError(t, err, "recorder.New")
	t.Cleanup(func() { _ = rec.Close() })

	engine := &testutil.FakeEngine{Words: []string{"hello", "world", "again"}}
	logger := diaglog.NewNoOp()
	d := newDaemon(cfg, rec, session.New(rec, engine, session.WithLogger(logger)), notify.New("test", 0), logger)
	clip := &memClipboard{}
	d.clip = clipboard.NewWithWriter(clip)

	return &daemonHarness{d: d, stream: fs, engine: engine, clip: clip}
}

// dictate runs one toggle-start, one second of audio, toggle-stop.
func (h *daemonHarness) dictate(t *testing.T) {
	t.Helper()
	h.d.handleCommand(ipc.CmdToggle)
	testutil.AssertTrue(t, h.d.ctl.Running(), "recording after first toggle")
	testutil.AssertTrue(t, h.stream.Emit(testutil.Tone(16000, 0.1)), "emit while recording")
	h.d.handleCommand(ipc.CmdToggle)
	testutil.AssertFalse(t, h.d.ctl.Running(), "idle after second toggle")
}

func TestToggleTwiceClassifiesNewLines(t *testing.T) {
	h := newDaemonHarness(t, config.Default())

	h.dictate(t)
	h.dictate(t)

	st := h.d.status()
	testutil.AssertEqual(t, 2, len(st.Lines), "line count")
	testutil.AssertTrue(t, st.Lines[0].New, "line ending on the boundary is new")
	testutil.AssertTrue(t, st.Lines[1].New, "line after boundary is new")
	testutil.AssertEqual(t, int64(100), st.Boundary, "boundary")
	testutil.AssertEqual(t, int64(32000), st.BufferSamples, "buffer samples")

	h.dictate(t)
	st = h.d.status()
	testutil.AssertEqual(t, 3, len(st.Lines), "line count after third run")
	testutil.AssertEqual(t, "hello", st.Lines[0].Text, "first line text")
	testutil.AssertFalse(t, st.Lines[0].New, "line before the boundary is confirmed")
	testutil.AssertEqual(t, "world", st.Lines[1].Text, "second line text")
	testutil.AssertTrue(t, st.Lines[1].New, "line ending on the boundary is new")
	testutil.AssertTrue(t, st.Lines[2].New, "line after the boundary is new")
	testutil.AssertEqual(t, int64(200), st.Boundary, "boundary after third run")
	testutil.AssertEqual(t, "stop", st.LastAction, "last action")
	testutil.AssertEqual(t, "", st.LastError, "last error")
	testutil.AssertEqual(t, "fake", st.Engine, "engine")
}

func TestStopWhileIdleIsReportedNotFatal(t *testing.T) {
	h := newDaemonHarness(t, config.Default())

	logs.Reset()
	quit := h.d.handleCommand(ipc.CmdStop)
	testutil.AssertFalse(t, quit, "stop must not quit")
	testutil.AssertTrue(t, logs.Contains("ERROR: Could not stop recording: stream is already stopped"), "error logged")
	testutil.AssertEqual(t, 1, logs.Count("ERROR: "), "one error line")
	lines := logs.Lines()
	testutil.AssertTrue(t, len(lines) >= 2, "command and error logged")
	testutil.AssertStringContains(t, lines[0], "[EVENT] Received command: stop", "command logged first")
	testutil.AssertStringContains(t, h.d.lastError, "already stopped", "last error")

	entries := h.d.notes.Entries()
	testutil.AssertTrue(t, len(entries) > 0, "notification recorded")
	testutil.AssertEqual(t, notify.LevelError, entries[len(entries)-1].Level, "notification level")
}

func TestStartWhileRecordingIsReported(t *testing.T) {
	h := newDaemonHarness(t, config.Default())

	h.d.handleCommand(ipc.CmdStart)
	h.d.handleCommand(ipc.CmdStart)
	testutil.AssertStringContains(t, h.d.lastError, "already recording", "last error")
	testutil.AssertTrue(t, h.d.ctl.Running(), "still recording")
}

func TestCopyJoinsSegmentTexts(t *testing.T) {
	h := newDaemonHarness(t, config.Default())

	h.d.handleCommand(ipc.CmdCopy)
	testutil.AssertEqual(t, "", h.clip.text, "nothing copied before a transcript")
	entries := h.d.notes.Entries()
	testutil.AssertEqual(t, "Nothing to copy", entries[len(entries)-1].Message, "empty copy notification")

	h.dictate(t)
	h.dictate(t)
	h.d.handleCommand(ipc.CmdCopy)
	testutil.AssertEqual(t, "hello world", h.clip.text, "clipboard text")
}

func TestCopyOnStop(t *testing.T) {
	cfg := config.Default()
	cfg.Output.CopyOnStop = true
	h := newDaemonHarness(t, cfg)

	h.dictate(t)
	testutil.AssertEqual(t, "hello", h.clip.text, "clipboard after stop")
}

func TestRetryAfterInferenceFailure(t *testing.T) {
	h := newDaemonHarness(t, config.Default())
	h.engine.SetErr(errors.New("model crashed"))

	h.dictate(t)
	testutil.AssertStringContains(t, h.d.lastError, "model crashed", "failure surfaced")
	testutil.AssertEqual(t, 0, len(h.d.status().Lines), "no lines after failure")

	h.engine.SetErr(nil)
	h.d.handleCommand(ipc.CmdRetry)
	testutil.AssertEqual(t, "", h.d.lastError, "error cleared")
	testutil.AssertEqual(t, 1, len(h.d.status().Lines), "lines after retry")
}

func TestToggleReportsEachDirection(t *testing.T) {
	h := newDaemonHarness(t, config.Default())
	h.engine.SetErr(errors.New("model crashed"))
	logs.Reset()

	h.d.handleCommand(ipc.CmdToggle)
	testutil.AssertEqual(t, "start", h.d.lastAction, "first toggle starts")
	testutil.AssertTrue(t, logs.Contains("[EVENT] Recording started"), "start logged")
	testutil.AssertTrue(t, h.stream.Emit(testutil.Tone(16000, 0.1)), "emit while recording")

	h.d.handleCommand(ipc.CmdToggle)
	testutil.AssertEqual(t, "stop", h.d.lastAction, "second toggle stops")
	testutil.AssertFalse(t, h.d.ctl.Running(), "idle even though transcription failed")
	testutil.AssertTrue(t, logs.Contains("ERROR: Could not stop recording"), "stop failure reported as a stop")
	testutil.AssertStringContains(t, h.d.lastError, "model crashed", "inference error kept")
	entries := h.d.notes.Entries()
	testutil.AssertEqual(t, notify.LevelError, entries[len(entries)-1].Level, "error notification")
}

func TestRetryWhileRecordingIsBusy(t *testing.T) {
	h := newDaemonHarness(t, config.Default())
	h.d.handleCommand(ipc.CmdStart)
	h.d.handleCommand(ipc.CmdRetry)
	testutil.AssertStringContains(t, h.d.lastError, "recording in progress", "retry rejected")
}

func TestExportWritesTranscriptAudioAndMetadata(t *testing.T) {
	cfg := config.Default()
	cfg.Output.Dir = t.TempDir()
	cfg.Output.Formats = []string{"txt", "srt"}
	cfg.Output.SaveAudio = true
	h := newDaemonHarness(t, cfg)

	h.dictate(t)

	base := h.d.lastExport
	testutil.AssertTrue(t, base != "", "export recorded")
	for _, ext := range []string{".txt", ".srt", ".wav", ".meta.json"} {
		if _, err := os.Stat(base + ext); err != nil {
			t.Errorf("missing %s: %v", ext, err)
		}
	}

	data, err := os.ReadFile(base + ".txt")
	testutil.AssertNoError(t, err, "read txt")
	testutil.AssertStringContains(t, string(data), "[0 - 100]: hello", "txt line")

	meta, err := os.ReadFile(base + ".meta.json")
	testutil.AssertNoError(t, err, "read meta")
	testutil.AssertJSONContainsKey(t, string(meta), "asr", "meta asr")

	// A second export in the same second must not overwrite the first
	h.dictate(t)
	testutil.AssertNotEqual(t, base, h.d.lastExport, "unique export base")
	testutil.AssertEqual(t, cfg.Output.Dir, filepath.Dir(h.d.lastExport), "export dir")
}

func TestStatusWrittenToDisk(t *testing.T) {
	h := newDaemonHarness(t, config.Default())
	h.dictate(t)
	h.d.writeStatus()

	st, err := ipc.ReadStatus()
	testutil.AssertNoError(t, err, "read status")
	testutil.AssertEqual(t, 1, len(st.Lines), "lines on disk")
	testutil.AssertEqual(t, os.Getpid(), st.PID, "pid")
}

func TestQuitCommand(t *testing.T) {
	h := newDaemonHarness(t, config.Default())
	testutil.AssertTrue(t, h.d.handleCommand(ipc.CmdQuit), "quit")
}

func TestShutdownStopsActiveSession(t *testing.T) {
	h := newDaemonHarness(t, config.Default())
	h.d.handleCommand(ipc.CmdStart)
	h.stream.Emit(testutil.Tone(16000, 0.1))

	h.d.shutdown("test")
	testutil.AssertFalse(t, h.d.ctl.Running(), "stopped on shutdown")
	testutil.AssertEqual(t, 1, h.engine.Calls(), "transcribed on shutdown")
}

func TestModelArg(t *testing.T) {
	testutil.AssertEqual(t, "", modelArg(nil), "no args")
	testutil.AssertEqual(t, "ggml-base.en.bin", modelArg([]string{"ggml-base.en.bin"}), "model only")
	testutil.AssertEqual(t, "m.bin", modelArg([]string{"--verbose", "m.bin"}), "skips flags")
}

func TestBuildEngines(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.Backend = config.BackendVosk
	cfg.Engine.Fallback = config.BackendRemote
	cfg.Engine.Remote.BaseURL = "http://127.0.0.1:1"

	set, err := buildEngines(cfg, diaglog.NewNoOp())
	testutil.AssertNoError(t, err, "buildEngines")
	defer set.Close()

	testutil.AssertEqual(t, "vosk", set.chain.Name(), "primary")
	testutil.AssertNotNil(t, set.chain.Fallback(), "fallback")
	var names []string
	for _, e := range set.chain.Engines() {
		names = append(names, e.Name())
	}
	testutil.AssertEqual(t, config.BackendVosk+","+config.BackendRemote, strings.Join(names, ","), "engines in fallback order")
}

func TestBuildEnginesMissingModel(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.Whisper.ModelPath = filepath.Join(t.TempDir(), "missing.bin")

	_, err := buildEngines(cfg, diaglog.NewNoOp())
	testutil.AssertErrorIs(t, err, asr.ErrModel, "missing whisper model")
}

func TestRotateLogIfNeeded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "core.out.log")

	testutil.AssertNoError(t, rotateLogIfNeeded(path, 10), "missing log")

	testutil.AssertNoError(t, os.WriteFile(path, []byte("0123456789abc"), 0644), "write log")
	testutil.AssertNoError(t, rotateLogIfNeeded(path, 10), "rotate")

	_, err := os.Stat(path + ".old")
	testutil.AssertNoError(t, err, "rotated file")
	_, err = os.Stat(path)
	testutil.AssertTrue(t, os.IsNotExist(err), "original moved")
}
