package main

import (
	"fmt"
	"io"
	"time"

	"github.com/tiroq/dictaphone/internal/audio"
	"github.com/tiroq/dictaphone/internal/ipc"
)

const (
	ansiReset = "\033[0m"
	ansiNew   = "\033[1;32m"
	ansiRed   = "\033[31m"
	ansiDim   = "\033[2m"

	// notificationsShown is how many of the newest notifications are printed
	notificationsShown = 5
)

// renderStatus prints the transcript with new lines highlighted, then the
// recording state and the newest notifications. Without color, new lines are
// marked with "+".
func renderStatus(w io.Writer, st *ipc.StatusSnapshot, color bool) {
	if len(st.Lines) == 0 {
		fmt.Fprintln(w, "(no transcript yet)")
	}
	for _, l := range st.Lines {
		line := fmt.Sprintf("[%d - %d]: %s", l.Start, l.Stop, l.Text)
		switch {
		case l.New && color:
			fmt.Fprintln(w, ansiNew+line+ansiReset)
		case l.New:
			fmt.Fprintln(w, "+ "+line)
		case color:
			fmt.Fprintln(w, line)
		default:
			fmt.Fprintln(w, "  "+line)
		}
	}
	fmt.Fprintln(w)

	if st.Recording {
		fmt.Fprintf(w, "● Recording %s (session %s)\n", formatElapsed(st.ElapsedSeconds), st.SessionID)
	} else {
		fmt.Fprintln(w, "○ Idle")
	}
	fmt.Fprintf(w, "engine: %s  buffer: %.1fs  boundary: %d\n",
		st.Engine, float64(st.BufferSamples)/audio.SampleRate, st.Boundary)
	if st.LastTranscript != "" {
		fmt.Fprintf(w, "saved: %s\n", st.LastTranscript)
	}
	if st.LastError != "" {
		if color {
			fmt.Fprintln(w, ansiRed+"error: "+st.LastError+ansiReset)
		} else {
			fmt.Fprintln(w, "error: "+st.LastError)
		}
	}

	notes := st.Notifications
	if len(notes) > notificationsShown {
		notes = notes[len(notes)-notificationsShown:]
	}
	if len(notes) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Notifications:")
	}
	for _, n := range notes {
		ts := n.Time.Local().Format("15:04:05")
		if color {
			ts = ansiDim + ts + ansiReset
		}
		fmt.Fprintf(w, "  %s %-5s %s\n", ts, n.Level, n.Message)
	}
}

func formatElapsed(sec float64) string {
	d := time.Duration(sec * float64(time.Second)).Round(time.Second)
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
