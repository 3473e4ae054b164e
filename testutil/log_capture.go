package testutil

import (
	"bytes"
	"io"
	"log"
	"strings"
	"sync"
)

// LogCapture collects log output. It captures the standard logger between
// Start and Stop, and backs any number of loggers returned by Logger.
type LogCapture struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	original io.Writer
}

// NewLogCapture creates an empty capture.
func NewLogCapture() *LogCapture {
	return &LogCapture{original: log.Writer()}
}

// Write appends p; the drain goroutines of the code under test write here
// concurrently with the test's reads.
func (lc *LogCapture) Write(p []byte) (int, error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.buf.Write(p)
}

// Start redirects the standard logger into the capture.
func (lc *LogCapture) Start() {
	log.SetOutput(lc)
}

// Stop restores the standard logger's previous output.
func (lc *LogCapture) Stop() {
	log.SetOutput(lc.original)
}

// Logger returns a logger writing into the capture.
func (lc *LogCapture) Logger(prefix string) *log.Logger {
	return log.New(lc, prefix, 0)
}

// String returns all captured output.
func (lc *LogCapture) String() string {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.buf.String()
}

// Reset clears the capture.
func (lc *LogCapture) Reset() {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.buf.Reset()
}

// Contains reports whether the output contains substr.
func (lc *LogCapture) Contains(substr string) bool {
	return strings.Contains(lc.String(), substr)
}

// Count returns how many times substr appears.
func (lc *LogCapture) Count(substr string) int {
	return strings.Count(lc.String(), substr)
}

// Lines returns the captured output split into non-empty lines.
func (lc *LogCapture) Lines() []string {
	var out []string
	for _, l := range strings.Split(lc.String(), "\n") {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}
