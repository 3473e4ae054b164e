// Package vosk is an asr.Engine that streams the recorded buffer to a
// vosk-server WebSocket endpoint and collects its final word-level results.
package vosk

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tiroq/dictaphone/internal/asr"
	"github.com/tiroq/dictaphone/internal/audio"
	"github.com/tiroq/dictaphone/internal/diaglog"
)

// chunkSamples is the number of samples sent per binary frame (0.25s).
const chunkSamples = 4000

// Config configures the vosk-server client.
type Config struct {
	URL            string // e.g. ws://localhost:2700
	SampleRate     int    // default audio.SampleRate
	TimeoutSeconds int    // default 60
}

// Engine dials a fresh connection per Transcribe call.
type Engine struct {
	cfg    Config
	dialer *websocket.Dialer

	logger   *diaglog.Logger
	loggerMu sync.RWMutex
}

// voskResult mirrors one message from vosk-server.
type voskResult struct {
	Text   string `json:"text"`
	Result []struct {
		Word  string  `json:"word"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Conf  float64 `json:"conf"`
	} `json:"result"`
	Partial string `json:"partial"`
}

// New creates a vosk engine. No connection is made until Transcribe.
func New(cfg Config) *Engine {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.SampleRate
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 60
	}
	return &Engine{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// SetLogger injects a diaglog.Logger for debug logging.
func (e *Engine) SetLogger(l *diaglog.Logger) {
	e.loggerMu.Lock()
	e.logger = l
	e.loggerMu.Unlock()
}

func (e *Engine) log(entry diaglog.LogEntry) {
	e.loggerMu.RLock()
	l := e.logger
	e.loggerMu.RUnlock()
	if l == nil {
		return
	}
	entry.Component = diaglog.ComponentEngine
	l.Log(entry)
}

// Name returns the backend identifier.
func (e *Engine) Name() string {
	return "vosk"
}

// Transcribe streams samples as 16-bit PCM and returns one segment per final
// utterance reported by the server.
func (e *Engine) Transcribe(samples []float32) ([]asr.Segment, error) {
	if len(samples) == 0 {
		return nil, nil
	}

	conn, _, err := e.dialer.Dial(e.cfg.URL, nil)
	if err != nil {
		return nil, asr.Inference(e.Name(), fmt.Errorf("connect %s: %w", e.cfg.URL, err))
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Duration(e.cfg.TimeoutSeconds) * time.Second)
	_ = conn.SetReadDeadline(deadline)
	_ = conn.SetWriteDeadline(deadline)

	done := make(chan struct{})
	var (
		segments []asr.Segment
		readErr  error
	)
	go func() {
		defer close(done)
		segments, readErr = readResults(conn)
	}()

	if err := e.send(conn, samples); err != nil {
		conn.Close()
		<-done
		return nil, asr.Inference(e.Name(), err)
	}
	<-done

	if readErr != nil {
		return nil, asr.Inference(e.Name(), readErr)
	}
	asr.SortSegments(segments)

	e.log(diaglog.LogEntry{
		Event:   diaglog.EventTranscribeDone,
		Payload: map[string]interface{}{"segments": len(segments)},
	})
	return segments, nil
}

func (e *Engine) send(conn *websocket.Conn, samples []float32) error {
	config := map[string]interface{}{
		"config": map[string]interface{}{
			"sample_rate": e.cfg.SampleRate,
			"words":       1,
		},
	}
	if err := conn.WriteJSON(config); err != nil {
		return fmt.Errorf("send config: %w", err)
	}

	frame := make([]byte, chunkSamples*2)
	for off := 0; off < len(samples); off += chunkSamples {
		end := off + chunkSamples
		if end > len(samples) {
			end = len(samples)
		}
		n := encodePCM16(frame, samples[off:end])
		if err := conn.WriteMessage(websocket.BinaryMessage, frame[:n]); err != nil {
			return fmt.Errorf("send audio: %w", err)
		}
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"eof" : 1}`)); err != nil {
		return fmt.Errorf("send eof: %w", err)
	}
	return nil
}

// readResults reads until the server closes the connection after eof.
func readResults(conn *websocket.Conn) ([]asr.Segment, error) {
	var (
		segments []asr.Segment
		lastStop int64
	)
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return segments, nil
			}
			return nil, fmt.Errorf("read result: %w", err)
		}

		var result voskResult
		if err := json.Unmarshal(message, &result); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		text := strings.TrimSpace(result.Text)
		if text == "" {
			continue
		}

		seg := asr.Segment{Text: text, Start: lastStop, Stop: lastStop}
		if n := len(result.Result); n > 0 {
			seg.Start = asr.TicksFromSeconds(result.Result[0].Start)
			seg.Stop = asr.TicksFromSeconds(result.Result[n-1].End)
		}
		lastStop = seg.Stop
		segments = append(segments, seg)
	}
}

// encodePCM16 writes samples as little-endian int16 into dst and returns the
// number of bytes written.
func encodePCM16(dst []byte, samples []float32) int {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(audio.FloatToPCM16(s)))
	}
	return len(samples) * 2
}

// HealthCheck dials the server and closes the connection immediately.
func (e *Engine) HealthCheck() (*asr.HealthStatus, error) {
	start := time.Now()
	conn, _, err := e.dialer.Dial(e.cfg.URL, nil)
	latency := time.Since(start)
	if err != nil {
		return &asr.HealthStatus{
			OK:      false,
			Backend: e.Name(),
			Message: fmt.Sprintf("health check failed: %v", err),
			Latency: latency,
		}, nil
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	return &asr.HealthStatus{
		OK:      true,
		Backend: e.Name(),
		Message: "healthy",
		Latency: latency,
	}, nil
}
