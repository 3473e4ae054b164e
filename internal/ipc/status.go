package ipc

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/tiroq/dictaphone/internal/fileutil"
	"github.com/tiroq/dictaphone/internal/notify"
)

// StatusLine is one transcript line as shown by the control client.
type StatusLine struct {
	Start int64  `json:"start"`
	Stop  int64  `json:"stop"`
	Text  string `json:"text"`
	New   bool   `json:"new"` // transcribed after the previous run's boundary
}

// StatusSnapshot represents the complete daemon state at a point in time
type StatusSnapshot struct {
	Recording      bool                  `json:"recording"`            // Capture active
	SessionID      string                `json:"session_id,omitempty"` // Active session
	StartedAt      time.Time             `json:"started_at,omitempty"` // Active session start
	ElapsedSeconds float64               `json:"elapsed_seconds"`      // Active session length
	Engine         string                `json:"engine"`               // Transcription engine in use
	BufferSamples  int64                 `json:"buffer_samples"`       // Samples captured since startup
	Boundary       int64                 `json:"boundary"`             // Stop tick of the previous run's last segment
	Lines          []StatusLine          `json:"lines"`                // Latest transcript
	Notifications  []notify.Notification `json:"notifications"`        // Newest last
	LastTranscript string                `json:"last_transcript_path"` // Most recent export, if any
	LastAction     string                `json:"last_action"`          // Last action taken
	LastError      string                `json:"last_error"`           // Last error message
	Timestamp      time.Time             `json:"timestamp"`            // Snapshot time
	PID            int                   `json:"pid,omitempty"`        // Daemon process
}

// StatusPath returns the path of status.json
func StatusPath() string {
	return filepath.Join(Dir(), "status.json")
}

// WriteStatus replaces status.json so readers see either the old or the new
// snapshot.
func WriteStatus(status *StatusSnapshot) error {
	return fileutil.AtomicWriteJSON(StatusPath(), status)
}

// ReadStatus loads StatusSnapshot from ~/.cache/dictaphone/status.json
func ReadStatus() (*StatusSnapshot, error) {
	data, err := os.ReadFile(StatusPath())
	if err != nil {
		return nil, err
	}

	var status StatusSnapshot
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, err
	}

	return &status, nil
}
