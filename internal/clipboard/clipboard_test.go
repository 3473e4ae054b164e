package clipboard

import (
	"errors"
	"testing"
)

type memWriter struct {
	text string
	err  error
}

func (m *memWriter) WriteAll(text string) error {
	if m.err != nil {
		return m.err
	}
	m.text = text
	return nil
}

func TestCopy(t *testing.T) {
	w := &memWriter{}
	if err := NewWithWriter(w).Copy("a b"); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if w.text != "a b" {
		t.Errorf("clipboard = %q, want %q", w.text, "a b")
	}
}

func TestCopyEmpty(t *testing.T) {
	w := &memWriter{text: "previous"}
	err := NewWithWriter(w).Copy("")
	if !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
	if w.text != "previous" {
		t.Error("empty copy must leave the clipboard alone")
	}
}

func TestCopyWriterError(t *testing.T) {
	cause := errors.New("xclip missing")
	err := NewWithWriter(&memWriter{err: cause}).Copy("x")
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}
