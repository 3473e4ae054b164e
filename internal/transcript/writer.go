package transcript

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tiroq/dictaphone/internal/asr"
	"github.com/tiroq/dictaphone/internal/fileutil"
)

// DefaultFormat is written when no format is requested.
const DefaultFormat = "txt"

// renderFunc encodes a segment list in one export format.
type renderFunc func(w io.Writer, segments []asr.Segment) error

var renderers = map[string]renderFunc{
	"txt": renderText,
	"srt": renderSRT,
	"vtt": renderVTT,
}

// Supported reports whether format names a known export format.
func Supported(format string) bool {
	_, ok := renderers[format]
	return ok
}

// Render writes segments to w in the given format.
func Render(w io.Writer, format string, segments []asr.Segment) error {
	render, ok := renderers[format]
	if !ok {
		return fmt.Errorf("unknown format %q", format)
	}
	bw := bufio.NewWriter(w)
	if err := render(bw, segments); err != nil {
		return err
	}
	return bw.Flush()
}

// WriteFile renders segments into path, replacing it atomically.
func WriteFile(path, format string, segments []asr.Segment) error {
	if !Supported(format) {
		return fmt.Errorf("unknown format %q", format)
	}
	return fileutil.AtomicWrite(path, func(f *os.File) error {
		return Render(f, format, segments)
	})
}

// WriteAll writes <base>.<format> for every format, defaulting to txt. A
// failing format does not stop the others; the paths written so far are
// returned together with the joined errors.
func WriteAll(base string, segments []asr.Segment, formats []string) ([]string, error) {
	if len(formats) == 0 {
		formats = []string{DefaultFormat}
	}
	var (
		written []string
		errs    []error
	)
	for _, format := range formats {
		path := base + "." + format
		if err := WriteFile(path, format, segments); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", format, err))
			continue
		}
		written = append(written, path)
	}
	if err := errors.Join(errs...); err != nil {
		return written, fmt.Errorf("transcript export: %w", err)
	}
	return written, nil
}

// renderText emits one "[start - stop]: text" line per segment, in ticks.
func renderText(w io.Writer, segments []asr.Segment) error {
	for _, seg := range segments {
		if _, err := fmt.Fprintln(w, seg.String()); err != nil {
			return err
		}
	}
	return nil
}

func renderSRT(w io.Writer, segments []asr.Segment) error {
	for i, seg := range segments {
		sep := ""
		if i > 0 {
			sep = "\n"
		}
		_, err := fmt.Fprintf(w, "%s%d\n%s --> %s\n%s\n", sep, i+1,
			clock(seg.Start, ','), clock(seg.Stop, ','), seg.Text)
		if err != nil {
			return err
		}
	}
	return nil
}

func renderVTT(w io.Writer, segments []asr.Segment) error {
	if _, err := io.WriteString(w, "WEBVTT\n"); err != nil {
		return err
	}
	for _, seg := range segments {
		_, err := fmt.Fprintf(w, "\n%s --> %s\n%s\n",
			clock(seg.Start, '.'), clock(seg.Stop, '.'), seg.Text)
		if err != nil {
			return err
		}
	}
	return nil
}

// clock formats a tick as HH:MM:SS<sep>mmm. SRT uses ',' and WebVTT '.'.
func clock(tick int64, sep byte) string {
	ms := asr.DurationFromTicks(tick).Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", ms/3600000, ms/60000%60, ms/1000%60, sep, ms%1000)
}
