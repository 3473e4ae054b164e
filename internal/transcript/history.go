// Package transcript keeps the merged transcription history and writes it out
// in text and subtitle formats.
package transcript

import (
	"strings"

	"github.com/tiroq/dictaphone/internal/asr"
)

// History is the latest transcription result plus the boundary separating
// text already seen in the previous run from newly transcribed text.
type History struct {
	Segments []asr.Segment `json:"segments"`
	Boundary int64         `json:"boundary"`
}

// Line is one display line of the history.
type Line struct {
	Segment asr.Segment `json:"segment"`
	New     bool        `json:"new"`
}

// String renders "[start - stop]: text".
func (l Line) String() string {
	return l.Segment.String()
}

// Merge replaces the segments with the result of a new run. The boundary
// becomes the Stop of the last segment of the outgoing run; it never moves
// backwards, and an empty outgoing run leaves it unchanged.
func (h *History) Merge(segments []asr.Segment) {
	if n := len(h.Segments); n > 0 {
		if last := h.Segments[n-1].Stop; last > h.Boundary {
			h.Boundary = last
		}
	}
	h.Segments = segments
}

// IsNew reports whether seg is highlighted as new. Only segments that end
// before the boundary, or straddle it, count as already confirmed; a segment
// ending exactly on the boundary is new.
func (h History) IsNew(seg asr.Segment) bool {
	confirmed := seg.Stop < h.Boundary || (seg.Stop > h.Boundary && seg.Start < h.Boundary)
	return !confirmed
}

// Lines classifies every segment for display.
func (h History) Lines() []Line {
	lines := make([]Line, len(h.Segments))
	for i, seg := range h.Segments {
		lines[i] = Line{Segment: seg, New: h.IsNew(seg)}
	}
	return lines
}

// Clone returns a copy that shares no memory with h.
func (h History) Clone() History {
	out := History{Boundary: h.Boundary}
	if h.Segments != nil {
		out.Segments = make([]asr.Segment, len(h.Segments))
		copy(out.Segments, h.Segments)
	}
	return out
}

// Text joins all segment texts with single spaces.
func (h History) Text() string {
	return JoinText(h.Segments)
}

// JoinText joins segment texts with single spaces.
func JoinText(segments []asr.Segment) string {
	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Text
	}
	return strings.Join(texts, " ")
}
