// Package whisper runs a local whisper.cpp model through its Go bindings.
package whisper

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/tiroq/dictaphone/internal/asr"
)

// Config configures the local whisper engine.
type Config struct {
	ModelPath string
	Language  string // default "en"
	Threads   uint   // 0 keeps the library default
}

// Engine is an asr.Engine backed by a loaded whisper.cpp model. The model is
// loaded once; every Transcribe call gets a fresh decoding context.
type Engine struct {
	cfg   Config
	mu    sync.Mutex
	model whisperlib.Model
}

// New loads the model at cfg.ModelPath. A missing or unreadable model
// returns an error wrapping asr.ErrModel.
func New(cfg Config) (*Engine, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("whisper: %w: no model path configured", asr.ErrModel)
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("whisper: %w: %w", asr.ErrModel, err)
	}

	model, err := whisperlib.New(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: %w: load %q: %w", asr.ErrModel, cfg.ModelPath, err)
	}
	return &Engine{cfg: cfg, model: model}, nil
}

// Name returns the backend identifier.
func (e *Engine) Name() string {
	return "whisper"
}

// Transcribe decodes samples greedily and returns segments with centisecond
// timestamps relative to the start of samples.
func (e *Engine) Transcribe(samples []float32) ([]asr.Segment, error) {
	if len(samples) == 0 {
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.model == nil {
		return nil, asr.Inference(e.Name(), errors.New("model closed"))
	}

	ctx, err := e.model.NewContext()
	if err != nil {
		return nil, asr.Inference(e.Name(), fmt.Errorf("create context: %w", err))
	}
	if e.model.IsMultilingual() {
		if err := ctx.SetLanguage(e.cfg.Language); err != nil {
			return nil, asr.Inference(e.Name(), fmt.Errorf("set language %q: %w", e.cfg.Language, err))
		}
	}
	if e.cfg.Threads > 0 {
		ctx.SetThreads(e.cfg.Threads)
	}

	if err := ctx.Process(samples, nil, nil, nil); err != nil {
		return nil, asr.Inference(e.Name(), fmt.Errorf("process: %w", err))
	}

	var segments []asr.Segment
	for {
		seg, err := ctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, asr.Inference(e.Name(), fmt.Errorf("next segment: %w", err))
		}
		segments = append(segments, asr.Segment{
			Text:  strings.TrimSpace(seg.Text),
			Start: asr.TicksFromDuration(seg.Start),
			Stop:  asr.TicksFromDuration(seg.End),
		})
	}
	asr.SortSegments(segments)
	return segments, nil
}

// HealthCheck reports whether the model is loaded.
func (e *Engine) HealthCheck() (*asr.HealthStatus, error) {
	start := time.Now()
	e.mu.Lock()
	loaded := e.model != nil
	e.mu.Unlock()

	msg := "model loaded: " + e.cfg.ModelPath
	if !loaded {
		msg = "model closed"
	}
	return &asr.HealthStatus{
		OK:      loaded,
		Backend: e.Name(),
		Message: msg,
		Latency: time.Since(start),
	}, nil
}

// Close releases the model.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model == nil {
		return nil
	}
	err := e.model.Close()
	e.model = nil
	return err
}
