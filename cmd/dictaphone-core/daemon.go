package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tiroq/dictaphone/internal/audio"
	"github.com/tiroq/dictaphone/internal/clipboard"
	"github.com/tiroq/dictaphone/internal/config"
	"github.com/tiroq/dictaphone/internal/diaglog"
	"github.com/tiroq/dictaphone/internal/fileutil"
	"github.com/tiroq/dictaphone/internal/ipc"
	"github.com/tiroq/dictaphone/internal/notify"
	"github.com/tiroq/dictaphone/internal/recorder"
	"github.com/tiroq/dictaphone/internal/session"
	"github.com/tiroq/dictaphone/internal/statemachine"
	"github.com/tiroq/dictaphone/internal/transcript"
)

// daemon owns the session controller and everything the command loop
// touches. All methods run on the command loop goroutine.
type daemon struct {
	cfg    *config.Config
	rec    *recorder.Recorder
	ctl    *session.Controller
	notes  *notify.Notifier
	clip   *clipboard.Copier
	logger *diaglog.Logger
	now    func() time.Time

	lastAction string
	lastError  string
	lastExport string
}

func newDaemon(cfg *config.Config, rec *recorder.Recorder, ctl *session.Controller, notes *notify.Notifier, logger *diaglog.Logger) *daemon {
	return &daemon{
		cfg:    cfg,
		rec:    rec,
		ctl:    ctl,
		notes:  notes,
		clip:   clipboard.New(),
		logger: logger,
		now:    time.Now,
	}
}

// handleCommand executes one command and reports whether the daemon should exit.
func (d *daemon) handleCommand(cmd ipc.Command) bool {
	outLog.Printf("[EVENT] Received command: %s", cmd)
	d.logger.Log(diaglog.LogEntry{
		Component: diaglog.ComponentCommands,
		Event:     diaglog.EventCommandReceived,
		SessionID: d.rec.SessionID(),
		Payload:   map[string]interface{}{"command": string(cmd)},
	})

	switch cmd {
	case ipc.CmdStart:
		d.start()

	case ipc.CmdStop:
		d.stop()

	case ipc.CmdToggle:
		d.toggle()

	case ipc.CmdCopy:
		d.copy()

	case ipc.CmdRetry:
		d.lastAction = "retry"
		if err := d.ctl.Retranscribe(); err != nil {
			d.report("Re-transcription failed", err)
			return false
		}
		d.transcribed()

	case ipc.CmdQuit:
		outLog.Println("[EVENT] Quit command received - shutting down")
		return true

	default:
		errLog.Printf("Unknown command: %s", cmd)
	}
	return false
}

func (d *daemon) start() {
	d.finish(session.ActionStarted, d.ctl.Start())
}

func (d *daemon) stop() {
	d.finish(session.ActionStopped, d.ctl.Stop())
}

// toggle flips the recording state; the controller picks the direction.
func (d *daemon) toggle() {
	action, err := d.ctl.Toggle()
	d.finish(action, err)
}

// finish reports the outcome of a start or stop attempt.
func (d *daemon) finish(action session.Action, err error) {
	switch action {
	case session.ActionStarted:
		d.lastAction = "start"
		if err != nil {
			d.report("Could not start recording", err)
			return
		}
		d.lastError = ""
		outLog.Printf("[EVENT] Recording started (session=%s)", d.rec.SessionID())
		d.notes.Info("Recording started")

	case session.ActionStopped:
		d.lastAction = "stop"
		if err != nil {
			d.report("Could not stop recording", err)
			return
		}
		d.transcribed()
	}
}

// transcribed runs after a successful transcription: notify, copy and export.
func (d *daemon) transcribed() {
	d.lastError = ""
	last := d.ctl.LastSession()
	outLog.Printf("[EVENT] Transcribed %d samples into %d segments with %s in %s",
		last.Samples, last.Segments, last.Engine, last.Elapsed)
	d.notes.Info(fmt.Sprintf("Recording stopped: %d segments", last.Segments))

	if d.cfg.Output.CopyOnStop && last.Segments > 0 {
		d.copy()
	}
	if d.cfg.Output.Dir != "" {
		if err := d.export(last); err != nil {
			d.report("Could not save transcript", err)
		}
	}
}

func (d *daemon) copy() {
	err := d.clip.Copy(d.ctl.ClipboardText())
	if err != nil {
		if errors.Is(err, clipboard.ErrEmpty) {
			d.notes.Info("Nothing to copy")
			return
		}
		d.report("Could not copy transcript", err)
		return
	}
	d.logger.Log(diaglog.LogEntry{
		Component: diaglog.ComponentCore,
		Event:     diaglog.EventClipboardCopy,
		SessionID: d.ctl.LastSession().ID,
	})
	d.notes.Info("Copied to clipboard")
}

// export writes the transcript files, the optional WAV and the metadata sidecar.
func (d *daemon) export(last session.Session) error {
	if err := os.MkdirAll(d.cfg.Output.Dir, 0755); err != nil {
		return err
	}

	started := last.StartedAt
	if started.IsZero() {
		started = last.StoppedAt
	}
	exts := []string{".meta.json", ".wav"}
	for _, f := range d.cfg.Output.Formats {
		exts = append(exts, "."+f)
	}
	base := fileutil.UniqueBase(d.cfg.Output.Dir, fileutil.SessionBasename(started, ""), exts)

	history := d.ctl.History()
	written, err := transcript.WriteAll(base, history.Segments, d.cfg.Output.Formats)
	if err != nil {
		return err
	}

	meta := &fileutil.SessionMetadata{
		Version:      Version,
		SessionID:    last.ID,
		StartedAt:    last.StartedAt,
		StoppedAt:    last.StoppedAt,
		SampleRate:   audio.SampleRate,
		Samples:      last.Samples,
		BufferOffset: last.Offset,
		Boundary:     history.Boundary,
		ASR: &fileutil.ASRMeta{
			Engine:        last.Engine,
			Segments:      last.Segments,
			NewSegments:   countNew(history),
			Success:       last.Err == "",
			Error:         last.Err,
			ElapsedMs:     last.Elapsed.Milliseconds(),
			TranscribedAt: last.StoppedAt.Add(last.Elapsed),
		},
	}
	if !last.StartedAt.IsZero() {
		dur := last.StoppedAt.Sub(last.StartedAt)
		meta.Duration = dur.String()
		meta.DurationMs = dur.Milliseconds()
	}
	meta.TranscriptFiles = written

	if d.cfg.Output.SaveAudio {
		samples, _ := d.rec.Buffer().Snapshot()
		if err := audio.WriteWAVFile(base+".wav", samples, audio.SampleRate); err != nil {
			return err
		}
		meta.AudioFile = base + ".wav"
	}

	if err := fileutil.WriteMetadata(base, meta); err != nil {
		return err
	}

	d.lastExport = base
	outLog.Printf("[EVENT] Transcript written: %s", base)
	d.logger.Log(diaglog.LogEntry{
		Component: diaglog.ComponentCore,
		Event:     diaglog.EventTranscriptExport,
		SessionID: last.ID,
		Payload: map[string]interface{}{
			"base":    base,
			"formats": d.cfg.Output.Formats,
			"audio":   d.cfg.Output.SaveAudio,
		},
	})
	return nil
}

func countNew(h transcript.History) int {
	n := 0
	for _, l := range h.Lines() {
		if l.New {
			n++
		}
	}
	return n
}

// report surfaces err to the user. Start/stop misuse is expected and is not
// sent to Sentry.
func (d *daemon) report(msg string, err error) {
	d.lastError = err.Error()
	errLog.Printf("%s: %v", msg, err)
	d.notes.Error(fmt.Sprintf("%s: %v", msg, err))

	switch {
	case errors.Is(err, statemachine.ErrAlreadyStopped),
		errors.Is(err, statemachine.ErrAlreadyRecording),
		errors.Is(err, session.ErrBusy):
	default:
		captureError(err)
	}
}

// shutdown stops and transcribes an active session before exit.
func (d *daemon) shutdown(reason string) {
	if d.ctl.Running() {
		outLog.Printf("[SHUTDOWN] Recording is active - stopping before shutdown (reason=%s)...", reason)
		d.stop()
	}
	d.writeStatus()
	outLog.Println("[SHUTDOWN] Shutting down gracefully")
	outLog.Println("===========================================")
}

func (d *daemon) status() *ipc.StatusSnapshot {
	history := d.ctl.History()
	st := d.ctl.State()

	lines := make([]ipc.StatusLine, 0, len(history.Segments))
	for _, l := range history.Lines() {
		lines = append(lines, ipc.StatusLine{
			Start: l.Segment.Start,
			Stop:  l.Segment.Stop,
			Text:  l.Segment.Text,
			New:   l.New,
		})
	}

	return &ipc.StatusSnapshot{
		Recording:      st.Recording(),
		SessionID:      st.SessionID,
		StartedAt:      st.StartedAt,
		ElapsedSeconds: d.rec.Elapsed().Seconds(),
		Engine:         d.ctl.EngineName(),
		BufferSamples:  d.rec.Buffer().Total(),
		Boundary:       history.Boundary,
		Lines:          lines,
		Notifications:  d.notes.Entries(),
		LastTranscript: d.lastExport,
		LastAction:     d.lastAction,
		LastError:      d.lastError,
		Timestamp:      d.now(),
		PID:            os.Getpid(),
	}
}

func (d *daemon) writeStatus() {
	if err := ipc.WriteStatus(d.status()); err != nil {
		errLog.Printf("Failed to write status: %v", err)
	}
}
