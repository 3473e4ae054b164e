// Package clipboard copies transcript text to the system clipboard.
package clipboard

import (
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
)

// ErrEmpty is returned when there is no text to copy.
var ErrEmpty = errors.New("clipboard: nothing to copy")

// Writer writes text into the system clipboard.
type Writer interface {
	WriteAll(text string) error
}

type systemWriter struct{}

func (systemWriter) WriteAll(text string) error {
	return clipboard.WriteAll(text)
}

// Copier copies text through a Writer.
type Copier struct {
	w Writer
}

// New returns a Copier backed by the system clipboard.
func New() *Copier {
	return &Copier{w: systemWriter{}}
}

// NewWithWriter returns a Copier backed by w.
func NewWithWriter(w Writer) *Copier {
	return &Copier{w: w}
}

// Copy writes text to the clipboard. Empty text is rejected with ErrEmpty so
// a stray copy command does not wipe the user's clipboard.
func (c *Copier) Copy(text string) error {
	if text == "" {
		return ErrEmpty
	}
	if err := c.w.WriteAll(text); err != nil {
		return fmt.Errorf("clipboard: write: %w", err)
	}
	return nil
}
