// Package diaglog provides structured NDJSON diagnostic logging for the
// dictation daemon. Activated by DICTAPHONE_DEBUG=true. When the env var is
// absent, all Log calls are no-ops and no file is created.
package diaglog

import (
	"encoding/json"
	"os"
	"strconv"
	"sync"
	"time"
)

// ── Component labels ─────────────────────────────────────────────────────────

const (
	ComponentRecorder   = "recorder"
	ComponentEngine     = "asr-engine"
	ComponentSession    = "session"
	ComponentCommands   = "command-watcher"
	ComponentDiagExport = "diag-export"
	ComponentCore       = "dictaphone-core"
)

// ── Event names ──────────────────────────────────────────────────────────────

const (
	EventRecordingStart         = "recording_start"
	EventRecordingStartRejected = "recording_start_rejected"
	EventRecordingStop          = "recording_stop"
	EventRecordingStopRejected  = "recording_stop_rejected"
	EventStreamError            = "stream_error"
	EventTranscribeStart        = "transcribe_start"
	EventTranscribeDone         = "transcribe_done"
	EventTranscribeFailed       = "transcribe_failed"
	EventTranscribeRetry        = "transcribe_retry"
	EventEngineHealthCheck      = "engine_health_check"
	EventCommandReceived        = "command_received"
	EventClipboardCopy          = "clipboard_copy"
	EventTranscriptExport       = "transcript_export"
)

// defaultMaxSize is the size at which the log rotates; DICTAPHONE_LOG_MAX_BYTES
// overrides it.
const defaultMaxSize = 10 * 1024 * 1024

// ── LogEntry ─────────────────────────────────────────────────────────────────

// LogEntry is one structured event record written as a single JSON line.
type LogEntry struct {
	Timestamp string      `json:"ts"`                   // RFC3339Nano
	Component string      `json:"component"`            // see Component* constants
	Event     string      `json:"event"`                // see Event* constants
	SessionID string      `json:"session_id,omitempty"` // recording session
	Reason    string      `json:"reason,omitempty"`
	Payload   interface{} `json:"payload,omitempty"` // redacted before write
}

// ── Logger ───────────────────────────────────────────────────────────────────

// Logger writes LogEntry values to a rotating NDJSON file. When debug mode is
// disabled every Log call is a no-op.
type Logger struct {
	mu      sync.Mutex
	out     *rotatingFile
	enabled bool
}

// New opens (or creates) the NDJSON log file at path. If debug mode is
// disabled, path is ignored and a no-op logger is returned.
func New(path string) (*Logger, error) {
	if !IsDebugEnabled() {
		return &Logger{enabled: false}, nil
	}
	out, err := openRotating(path, maxSizeFromEnv())
	if err != nil {
		return nil, err
	}
	return &Logger{out: out, enabled: true}, nil
}

// Log serialises entry to JSON and appends it as one line. Sensitive payload fields are redacted before serialisation.
func (l *Logger) Log(entry LogEntry) {
	if l == nil || !l.enabled {
		return
	}
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if entry.Payload != nil {
		entry.Payload = Redact(entry.Payload)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(data)
}

// Enabled reports whether entries are actually written.
func (l *Logger) Enabled() bool {
	return l != nil && l.enabled
}

// Close flushes and closes the underlying file. Safe on nil/disabled logger.
func (l *Logger) Close() error {
	if l == nil || !l.enabled || l.out == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}

// IsDebugEnabled reports whether DICTAPHONE_DEBUG is set to "true".
func IsDebugEnabled() bool {
	return os.Getenv("DICTAPHONE_DEBUG") == "true"
}

// LogPath returns DICTAPHONE_LOG_PATH or the default /tmp location.
func LogPath() string {
	if p := os.Getenv("DICTAPHONE_LOG_PATH"); p != "" {
		return p
	}
	return "/tmp/dictaphone-debug.log"
}

// NewNoOp returns a logger where every Log call is a no-op. Use as a safe
// fallback when New fails (e.g., disk full, permissions error).
func NewNoOp() *Logger {
	return &Logger{enabled: false}
}

func maxSizeFromEnv() int64 {
	if v := os.Getenv("DICTAPHONE_LOG_MAX_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return defaultMaxSize
}
