package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/tiroq/dictaphone/internal/ipc"
	"github.com/tiroq/dictaphone/internal/notify"
	"github.com/tiroq/dictaphone/testutil"
)

func TestRenderMarksNewLines(t *testing.T) {
	st := &ipc.StatusSnapshot{
		Engine:        "whisper",
		Boundary:      100,
		BufferSamples: 32000,
		Lines: []ipc.StatusLine{
			{Start: 0, Stop: 100, Text: "hello"},
			{Start: 100, Stop: 200, Text: "world", New: true},
		},
	}

	var buf bytes.Buffer
	renderStatus(&buf, st, false)
	out := buf.String()

	testutil.AssertStringContains(t, out, "  [0 - 100]: hello", "plain line")
	testutil.AssertStringContains(t, out, "+ [100 - 200]: world", "new line marker")
	testutil.AssertStringContains(t, out, "○ Idle", "idle indicator")
	testutil.AssertStringContains(t, out, "buffer: 2.0s", "buffer seconds")
	testutil.AssertStringNotContains(t, out, "\033[", "no escapes without color")
}

func TestRenderColorHighlightsOnlyNew(t *testing.T) {
	st := &ipc.StatusSnapshot{
		Lines: []ipc.StatusLine{
			{Start: 0, Stop: 100, Text: "hello"},
			{Start: 100, Stop: 200, Text: "world", New: true},
		},
	}

	var buf bytes.Buffer
	renderStatus(&buf, st, true)
	out := buf.String()

	testutil.AssertStringContains(t, out, ansiNew+"[100 - 200]: world"+ansiReset, "highlighted new line")
	testutil.AssertFalse(t, strings.Contains(out, ansiNew+"[0 - 100]"), "plain line not highlighted")
}

func TestRenderRecordingAndNotifications(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var notes []notify.Notification
	for i := 0; i < 7; i++ {
		notes = append(notes, notify.Notification{
			Time:    base.Add(time.Duration(i) * time.Second),
			Level:   notify.LevelInfo,
			Message: "note " + string(rune('a'+i)),
		})
	}
	st := &ipc.StatusSnapshot{
		Recording:      true,
		SessionID:      "abc",
		ElapsedSeconds: 65.4,
		LastError:      "stream is already stopped",
		Notifications:  notes,
	}

	var buf bytes.Buffer
	renderStatus(&buf, st, false)
	out := buf.String()

	testutil.AssertStringContains(t, out, "(no transcript yet)", "empty transcript")
	testutil.AssertStringContains(t, out, "● Recording 01:05 (session abc)", "recording indicator")
	testutil.AssertStringContains(t, out, "error: stream is already stopped", "last error")
	testutil.AssertStringNotContains(t, out, "note a", "oldest notification trimmed")
	testutil.AssertStringNotContains(t, out, "note b", "second oldest trimmed")
	testutil.AssertStringContains(t, out, "note g", "newest notification shown")
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		sec  float64
		want string
	}{
		{0, "00:00"},
		{9.6, "00:10"},
		{61, "01:01"},
		{600, "10:00"},
	}
	for _, tt := range tests {
		if got := formatElapsed(tt.sec); got != tt.want {
			t.Errorf("formatElapsed(%v) = %q, want %q", tt.sec, got, tt.want)
		}
	}
}
