// Package asr defines the speech-to-text engine contract and the segment model
// shared by every engine implementation.
package asr

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

var (
	// ErrInference wraps any failure of a model invocation. The audio buffer
	// is untouched, so the same request can be retried.
	ErrInference = errors.New("inference failed")
	// ErrModel reports a model that could not be loaded at construction.
	ErrModel = errors.New("model unavailable")
)

// TicksPerSecond is the resolution of Segment.Start and Segment.Stop.
const TicksPerSecond = 100

// Segment is one timestamped unit of transcribed text. Start and Stop are
// centisecond offsets from the beginning of the transcribed buffer.
type Segment struct {
	Text  string `json:"text"`
	Start int64  `json:"start"`
	Stop  int64  `json:"stop"`
}

// String renders the display/export line format.
func (s Segment) String() string {
	return fmt.Sprintf("[%d - %d]: %s", s.Start, s.Stop, s.Text)
}

// Shift moves the segment by delta ticks.
func (s Segment) Shift(delta int64) Segment {
	s.Start += delta
	s.Stop += delta
	return s
}

// HealthStatus reports engine health.
type HealthStatus struct {
	OK      bool
	Backend string
	Message string
	Latency time.Duration
}

// Engine converts a complete mono 16 kHz sample buffer into ordered segments.
// Implementations hold no per-call state: every Transcribe starts fresh and
// uses greedy single-hypothesis decoding. An empty buffer yields no segments.
type Engine interface {
	Name() string
	Transcribe(samples []float32) ([]Segment, error)
	HealthCheck() (*HealthStatus, error)
}

// Ordered reports whether segments are sorted by non-decreasing Start.
func Ordered(segments []Segment) bool {
	return sort.SliceIsSorted(segments, func(i, j int) bool {
		return segments[i].Start < segments[j].Start
	})
}

// SortSegments stably orders segments by Start, keeping engine order for ties.
func SortSegments(segments []Segment) {
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Start < segments[j].Start
	})
}

// TicksFromSeconds converts fractional seconds to ticks.
func TicksFromSeconds(sec float64) int64 {
	return int64(math.Round(sec * TicksPerSecond))
}

// TicksFromDuration converts a duration to ticks, truncating below 10ms.
func TicksFromDuration(d time.Duration) int64 {
	return int64(d / (time.Second / TicksPerSecond))
}

// TicksFromSamples converts a sample count at sampleRate to ticks.
func TicksFromSamples(n int64, sampleRate int) int64 {
	if sampleRate <= 0 {
		return 0
	}
	return n * TicksPerSecond / int64(sampleRate)
}

// DurationFromTicks converts ticks back to a duration.
func DurationFromTicks(ticks int64) time.Duration {
	return time.Duration(ticks) * (time.Second / TicksPerSecond)
}

// Inference wraps err with ErrInference and a backend prefix.
func Inference(backend string, err error) error {
	return fmt.Errorf("%s: %w: %w", backend, ErrInference, err)
}
