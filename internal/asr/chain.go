package asr

import (
	"errors"
	"fmt"
)

// ErrNoEngine is returned when a Chain is built without a primary engine.
var ErrNoEngine = errors.New("asr: no engine configured")

// Chain is an Engine that tries its engines in order, primary first, and
// returns the first success. It is fixed at construction, so it needs no
// locking.
type Chain struct {
	engines []Engine
}

// NewChain builds a chain from primary and optional fallbacks. Nil fallbacks
// are skipped; an engine name may appear only once.
func NewChain(primary Engine, fallbacks ...Engine) (*Chain, error) {
	if primary == nil {
		return nil, ErrNoEngine
	}
	c := &Chain{engines: []Engine{primary}}
	seen := map[string]bool{primary.Name(): true}
	for _, e := range fallbacks {
		if e == nil {
			continue
		}
		if seen[e.Name()] {
			return nil, fmt.Errorf("asr: engine %q listed twice", e.Name())
		}
		seen[e.Name()] = true
		c.engines = append(c.engines, e)
	}
	return c, nil
}

// Name reports the primary engine's name.
func (c *Chain) Name() string { return c.engines[0].Name() }

// Fallback returns the first fallback, or nil.
func (c *Chain) Fallback() Engine {
	if len(c.engines) < 2 {
		return nil
	}
	return c.engines[1]
}

// Engines returns the chain in the order it is tried.
func (c *Chain) Engines() []Engine {
	return append([]Engine(nil), c.engines...)
}

// HealthCheck reports the primary engine's health.
func (c *Chain) HealthCheck() (*HealthStatus, error) {
	return c.engines[0].HealthCheck()
}

// Transcribe runs the engines in order until one succeeds. An empty buffer
// returns no segments without calling any engine. Segments are ordered by
// Start; when every engine fails, all their errors are returned joined.
func (c *Chain) Transcribe(samples []float32) ([]Segment, error) {
	if len(samples) == 0 {
		return nil, nil
	}
	var errs []error
	for _, e := range c.engines {
		segments, err := e.Transcribe(samples)
		if err == nil {
			SortSegments(segments)
			return segments, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
	}
	return nil, fmt.Errorf("asr: transcription failed: %w", errors.Join(errs...))
}
