package diaglog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Version is injected at link time from the main package; defaults to "dev".
var Version = "dev"

// DiagBundle is the first line written to the export file (valid NDJSON).
type DiagBundle struct {
	ExportedAt string `json:"exported_at"`
	AppVersion string `json:"dictaphone_version"`
	GoVersion  string `json:"go_version"`
	OS         string `json:"os"`
	Arch       string `json:"arch"`
	LogFile    string `json:"log_file"`
	SessionID  string `json:"session_id,omitempty"`
	EntryCount int    `json:"entry_count"`
}

// Export copies the log at logPath, preceded by its rotated backup when one
// exists, into dest/dictaphone-diag-<ts>.ndjson behind a DiagBundle header
// line. It returns the written path and the number of entries copied.
func Export(logPath, dest string) (path string, lines int, err error) {
	return export(logPath, dest, "")
}

// ExportSession is Export restricted to the entries of one recording session.
// Lines that are not valid JSON are dropped.
func ExportSession(logPath, dest, sessionID string) (string, int, error) {
	if sessionID == "" {
		return "", 0, errors.New("session id is required")
	}
	return export(logPath, dest, sessionID)
}

func export(logPath, dest, sessionID string) (string, int, error) {
	if _, err := os.Stat(logPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", 0, fmt.Errorf("log file not found at %s: %w", logPath, os.ErrNotExist)
		}
		return "", 0, fmt.Errorf("log file unreadable: %w", err)
	}

	var rawLines [][]byte
	for _, p := range generations(logPath) {
		lines, err := readEntries(p, sessionID)
		if err != nil {
			return "", 0, fmt.Errorf("log file unreadable: %w", err)
		}
		rawLines = append(rawLines, lines...)
	}

	tstamp := time.Now().UTC().Format("20060102T150405")
	outPath := filepath.Join(dest, "dictaphone-diag-"+tstamp+".ndjson")

	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return "", 0, fmt.Errorf("output file could not be created: %w", err)
	}
	defer func() { _ = out.Close() }()

	bundle := DiagBundle{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		AppVersion: Version,
		GoVersion:  runtime.Version(),
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
		LogFile:    logPath,
		SessionID:  sessionID,
		EntryCount: len(rawLines),
	}
	header, merr := json.Marshal(bundle)
	if merr != nil {
		return "", 0, merr
	}
	if _, err := out.Write(append(header, '\n')); err != nil {
		return "", 0, err
	}

	w := bufio.NewWriter(out)
	for _, line := range rawLines {
		if _, err := w.Write(append(line, '\n')); err != nil {
			return "", 0, err
		}
	}
	if err := w.Flush(); err != nil {
		return "", 0, err
	}

	return outPath, len(rawLines), nil
}

// readEntries returns the lines of one log generation, keeping only those of
// sessionID when it is set. Each generation is capped by the rotation limit,
// so holding it in memory is fine.
func readEntries(path, sessionID string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), defaultMaxSize)
	for scanner.Scan() {
		if sessionID != "" && !belongsTo(scanner.Bytes(), sessionID) {
			continue
		}
		lines = append(lines, append([]byte(nil), scanner.Bytes()...))
	}
	return lines, scanner.Err()
}

func belongsTo(line []byte, sessionID string) bool {
	var e struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(line, &e); err != nil {
		return false
	}
	return e.SessionID == sessionID
}
