// Package remotewhisper is an asr.Engine that uploads the recorded buffer to
// a Whisper-compatible HTTP service.
package remotewhisper

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tiroq/dictaphone/internal/asr"
	"github.com/tiroq/dictaphone/internal/audio"
	"github.com/tiroq/dictaphone/internal/diaglog"
)

const (
	transcribePath = "/v1/transcribe"
	healthPath     = "/v1/health"
)

// Config configures the remote Whisper API client.
type Config struct {
	BaseURL        string
	Token          string // optional, sent as Bearer
	TimeoutSeconds int    // default 120
	Retries        int    // default 3
	Model          string // default "small"
	Language       string // default "en"
	SampleRate     int    // default audio.SampleRate
}

func (cfg *Config) applyDefaults() {
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 120
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.Model == "" {
		cfg.Model = "small"
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.SampleRate
	}
}

// Client is an asr.Engine backed by a remote Whisper HTTP API.
type Client struct {
	cfg         Config
	client      *http.Client
	backoffBase time.Duration

	mu     sync.RWMutex
	logger *diaglog.Logger
}

// NewClient returns a client for cfg with defaults filled in.
func NewClient(cfg Config) *Client {
	cfg.applyDefaults()
	return &Client{
		cfg:         cfg,
		backoffBase: time.Second,
		client:      &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
	}
}

// SetLogger injects a diaglog.Logger for debug logging.
func (c *Client) SetLogger(l *diaglog.Logger) {
	c.mu.Lock()
	c.logger = l
	c.mu.Unlock()
}

func (c *Client) log(event string, payload map[string]interface{}) {
	c.mu.RLock()
	l := c.logger
	c.mu.RUnlock()
	l.Log(diaglog.LogEntry{Component: diaglog.ComponentEngine, Event: event, Payload: payload})
}

// Name returns the backend identifier.
func (c *Client) Name() string {
	return "remote_whisper_api"
}

// Transcribe uploads samples as a 16-bit WAV. The audio never touches disk.
// An empty buffer returns no segments without a request.
func (c *Client) Transcribe(samples []float32) ([]asr.Segment, error) {
	if len(samples) == 0 {
		return nil, nil
	}
	wav, err := audio.EncodeWAV(samples, c.cfg.SampleRate)
	if err != nil {
		return nil, asr.Inference(c.Name(), err)
	}
	return c.upload("dictation.wav", wav)
}

// TranscribeFile uploads an existing audio file.
func (c *Client) TranscribeFile(path string) ([]asr.Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, asr.Inference(c.Name(), fmt.Errorf("read audio file: %w", err))
	}
	return c.upload(filepath.Base(path), data)
}

// upload posts the form, retrying transient failures with exponential
// backoff. The body is built once and replayed on every attempt.
func (c *Client) upload(filename string, data []byte) ([]asr.Segment, error) {
	body, contentType, err := c.form(filename, data)
	if err != nil {
		return nil, asr.Inference(c.Name(), err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			wait := c.backoff(attempt)
			c.log(diaglog.EventTranscribeRetry, map[string]interface{}{
				"attempt":    attempt,
				"backoff_ms": wait.Milliseconds(),
				"error":      lastErr.Error(),
			})
			time.Sleep(wait)
		}

		segments, err := c.post(body, contentType)
		if err == nil {
			return segments, nil
		}
		if !retryable(err) {
			return nil, asr.Inference(c.Name(), fmt.Errorf("transcribe %s: %w", filename, err))
		}
		lastErr = err
	}
	return nil, asr.Inference(c.Name(),
		fmt.Errorf("transcribe %s: all %d retries exhausted: %w", filename, c.cfg.Retries, lastErr))
}

func (c *Client) post(body []byte, contentType string) ([]asr.Segment, error) {
	req, err := c.request(http.MethodPost, transcribePath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	result, err := decodeTranscript(resp.Body)
	if err != nil {
		return nil, err
	}

	segments := result.segments()
	c.log(diaglog.EventTranscribeDone, map[string]interface{}{
		"segments": len(segments),
		"model":    result.Model,
		"language": result.Language,
	})
	return segments, nil
}

// HealthCheck queries the service health endpoint. Transport and protocol
// problems are reported as an unhealthy status, not as an error.
func (c *Client) HealthCheck() (*asr.HealthStatus, error) {
	start := time.Now()
	status := &asr.HealthStatus{Backend: c.Name()}

	req, err := c.request(http.MethodGet, healthPath, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	status.Latency = time.Since(start)
	if err != nil {
		status.Message = fmt.Sprintf("health check failed: %v", err)
		return status, nil
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		status.Message = "unhealthy: " + err.Error()
		return status, nil
	}
	ok, err := decodeHealth(resp.Body)
	switch {
	case err != nil:
		status.Message = fmt.Sprintf("invalid health response: %v", err)
	case !ok:
		status.Message = "service reports not ok"
	default:
		status.OK = true
		status.Message = "healthy"
	}
	return status, nil
}

func (c *Client) request(method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequest(method, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	return req, nil
}

// backoff is base * 2^(attempt-1) plus up to 25% jitter.
func (c *Client) backoff(attempt int) time.Duration {
	delay := c.backoffBase
	if delay <= 0 {
		delay = time.Second
	}
	delay <<= attempt - 1
	return delay + time.Duration(rand.Int63n(int64(delay/4)+1))
}

// retryable reports whether err is worth another attempt: network failures,
// 5xx responses and 429.
func retryable(err error) bool {
	var te *transportError
	if errors.As(err, &te) {
		return true
	}
	var se *statusError
	return errors.As(err, &se) && (se.Code >= 500 || se.Code == http.StatusTooManyRequests)
}
