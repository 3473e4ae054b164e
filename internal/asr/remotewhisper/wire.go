package remotewhisper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/tiroq/dictaphone/internal/asr"
)

// maxErrorBody bounds how much of a failed response is quoted in errors.
const maxErrorBody = 200

// form builds the multipart upload. Decoding is pinned to greedy,
// temperature 0 so reruns over the same buffer agree.
func (c *Client) form(filename string, wav []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return nil, "", fmt.Errorf("write audio: %w", err)
	}
	fields := [][2]string{
		{"model", c.cfg.Model},
		{"language", c.cfg.Language},
		{"timestamps", "true"},
		{"best_of", "1"},
		{"temperature", "0"},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f[0], err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// transcript is the JSON body of a successful transcription.
type transcript struct {
	Text     string       `json:"text"`
	Segments []apiSegment `json:"segments"`
	Language string       `json:"language"`
	Duration float64      `json:"duration"`
	Model    string       `json:"model"`
}

type apiSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// segments converts the response to ticks, ordered by start. A service that
// returns only a top-level text yields one segment spanning the duration.
func (t *transcript) segments() []asr.Segment {
	if len(t.Segments) == 0 {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			return nil
		}
		return []asr.Segment{{Text: text, Start: 0, Stop: asr.TicksFromSeconds(t.Duration)}}
	}
	out := make([]asr.Segment, 0, len(t.Segments))
	for _, s := range t.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		out = append(out, asr.Segment{
			Text:  text,
			Start: asr.TicksFromSeconds(s.Start),
			Stop:  asr.TicksFromSeconds(s.End),
		})
	}
	asr.SortSegments(out)
	return out
}

func decodeTranscript(r io.Reader) (*transcript, error) {
	var t transcript
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &t, nil
}

func decodeHealth(r io.Reader) (bool, error) {
	var h struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(r).Decode(&h); err != nil {
		return false, err
	}
	return h.OK, nil
}

// statusError is a non-2xx response.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

// transportError is a request that never produced a response.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return "http request: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// checkStatus returns a *statusError quoting the start of the body for any
// non-2xx response.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody+1))
	msg := strings.TrimSpace(string(body))
	if len(body) > maxErrorBody {
		msg = strings.TrimSpace(string(body[:maxErrorBody])) + "..."
	}
	return &statusError{Code: resp.StatusCode, Body: msg}
}
