package whisper

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/tiroq/dictaphone/internal/asr"
)

func TestNewMissingModel(t *testing.T) {
	_, err := New(Config{ModelPath: filepath.Join(t.TempDir(), "ggml-missing.bin")})
	if !errors.Is(err, asr.ErrModel) {
		t.Fatalf("expected ErrModel, got %v", err)
	}
}

func TestNewEmptyPath(t *testing.T) {
	_, err := New(Config{})
	if !errors.Is(err, asr.ErrModel) {
		t.Fatalf("expected ErrModel, got %v", err)
	}
}

func TestClosedEngine(t *testing.T) {
	e := &Engine{cfg: Config{ModelPath: "ggml-base.en.bin"}}

	segs, err := e.Transcribe(nil)
	if err != nil || segs != nil {
		t.Errorf("empty buffer: got %v, %v", segs, err)
	}

	_, err = e.Transcribe([]float32{0.1})
	if !errors.Is(err, asr.ErrInference) {
		t.Errorf("expected ErrInference from closed engine, got %v", err)
	}

	hs, err := e.HealthCheck()
	if err != nil {
		t.Fatal(err)
	}
	if hs.OK {
		t.Error("closed engine must report unhealthy")
	}
	if err := e.Close(); err != nil {
		t.Errorf("Close on closed engine: %v", err)
	}
}

var _ asr.Engine = (*Engine)(nil)
