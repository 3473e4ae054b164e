// Package fileutil names exported session files and writes their metadata
// sidecar.
package fileutil

import (
	"path/filepath"
	"time"
)

// SessionMetadata is the sidecar written alongside each exported session.
type SessionMetadata struct {
	Version         string    `json:"version"`
	SessionID       string    `json:"session_id"`
	StartedAt       time.Time `json:"started_at"`
	StoppedAt       time.Time `json:"stopped_at"`
	Duration        string    `json:"duration"`
	DurationMs      int64     `json:"duration_ms"`
	SampleRate      int       `json:"sample_rate"`
	Samples         int       `json:"samples"`
	BufferOffset    int64     `json:"buffer_offset"`
	Boundary        int64     `json:"boundary"`
	AudioFile       string    `json:"audio_file,omitempty"`
	TranscriptFiles []string  `json:"transcript_files"`
	ASR             *ASRMeta  `json:"asr,omitempty"`
}

// ASRMeta captures transcription details for the sidecar.
type ASRMeta struct {
	Engine        string    `json:"engine"`
	Segments      int       `json:"segments"`
	NewSegments   int       `json:"new_segments"`
	Success       bool      `json:"success"`
	Error         string    `json:"error,omitempty"`
	ElapsedMs     int64     `json:"elapsed_ms"`
	TranscribedAt time.Time `json:"transcribed_at,omitempty"`
}

// WriteMetadata writes the <base>.meta.json sidecar for path.
func WriteMetadata(path string, meta *SessionMetadata) error {
	return AtomicWriteJSON(MetadataPath(path), meta)
}

// MetadataPath returns <basepath>.meta.json for an export file or base path.
func MetadataPath(path string) string {
	switch filepath.Ext(path) {
	case ".txt", ".srt", ".vtt", ".wav":
		path = path[:len(path)-len(filepath.Ext(path))]
	}
	return path + ".meta.json"
}
