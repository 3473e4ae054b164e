// Package metrics exposes the daemon's Prometheus instruments.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for the dictation daemon.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Capture metrics
	FramesCaptured  prometheus.Counter
	SamplesCaptured prometheus.Counter
	StreamErrors    *prometheus.CounterVec
	BufferSamples   prometheus.Gauge
	Recording       prometheus.Gauge

	// Session metrics
	SessionsStarted  prometheus.Counter
	SessionsStopped  prometheus.Counter
	RejectedCommands *prometheus.CounterVec
	SessionDuration  prometheus.Histogram

	// Transcription metrics
	TranscriptionRequests *prometheus.CounterVec
	TranscriptionFailures *prometheus.CounterVec
	TranscriptionDuration prometheus.Histogram
	SegmentsProduced      prometheus.Counter
	TranscriptBoundary    prometheus.Gauge
}

// NewMetrics creates all metrics on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		FramesCaptured: f.NewCounter(prometheus.CounterOpts{
			Name: "dictaphone_frames_captured_total",
			Help: "Total number of capture callbacks delivered by the input stream",
		}),
		SamplesCaptured: f.NewCounter(prometheus.CounterOpts{
			Name: "dictaphone_samples_captured_total",
			Help: "Total number of mono samples appended to the buffer",
		}),
		StreamErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dictaphone_stream_errors_total",
			Help: "Asynchronous input stream errors by kind",
		}, []string{"kind"}),
		BufferSamples: f.NewGauge(prometheus.GaugeOpts{
			Name: "dictaphone_buffer_samples",
			Help: "Samples currently retained in the capture buffer",
		}),
		Recording: f.NewGauge(prometheus.GaugeOpts{
			Name: "dictaphone_recording",
			Help: "1 while a capture session is active",
		}),

		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "dictaphone_sessions_started_total",
			Help: "Total number of capture sessions started",
		}),
		SessionsStopped: f.NewCounter(prometheus.CounterOpts{
			Name: "dictaphone_sessions_stopped_total",
			Help: "Total number of capture sessions stopped",
		}),
		RejectedCommands: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dictaphone_rejected_commands_total",
			Help: "Start/stop requests rejected by the state machine",
		}, []string{"command"}),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dictaphone_session_duration_seconds",
			Help:    "Length of capture sessions",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4 minutes
		}),

		TranscriptionRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dictaphone_transcription_requests_total",
			Help: "Total number of transcription runs by engine",
		}, []string{"engine"}),
		TranscriptionFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dictaphone_transcription_failures_total",
			Help: "Total number of failed transcription runs by engine",
		}, []string{"engine"}),
		TranscriptionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dictaphone_transcription_duration_seconds",
			Help:    "Wall time of transcription runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~1.5 minutes
		}),
		SegmentsProduced: f.NewCounter(prometheus.CounterOpts{
			Name: "dictaphone_segments_produced_total",
			Help: "Total number of transcript segments produced",
		}),
		TranscriptBoundary: f.NewGauge(prometheus.GaugeOpts{
			Name: "dictaphone_transcript_boundary_ticks",
			Help: "Stop tick of the last segment of the previous transcription run",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// RecordFrames counts one capture callback of n samples.
func (m *Metrics) RecordFrames(n int) {
	if m == nil {
		return
	}
	m.FramesCaptured.Inc()
	m.SamplesCaptured.Add(float64(n))
}

// RecordStreamError counts an asynchronous stream error.
func (m *Metrics) RecordStreamError(kind string) {
	if m == nil {
		return
	}
	m.StreamErrors.WithLabelValues(kind).Inc()
}

// SetBufferSamples sets the retained buffer size.
func (m *Metrics) SetBufferSamples(n int) {
	if m == nil {
		return
	}
	m.BufferSamples.Set(float64(n))
}

// RecordSessionStarted increments the started counter and raises the recording gauge.
func (m *Metrics) RecordSessionStarted() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
	m.Recording.Set(1)
}

// RecordSessionStopped increments the stopped counter and records duration.
func (m *Metrics) RecordSessionStopped(durationSeconds float64) {
	if m == nil {
		return
	}
	m.SessionsStopped.Inc()
	m.Recording.Set(0)
	m.SessionDuration.Observe(durationSeconds)
}

// RecordRejected counts a start or stop rejected by the state machine.
func (m *Metrics) RecordRejected(command string) {
	if m == nil {
		return
	}
	m.RejectedCommands.WithLabelValues(command).Inc()
}

// RecordTranscription records one transcription run.
func (m *Metrics) RecordTranscription(engine string, segments int, durationSeconds float64, err error) {
	if m == nil {
		return
	}
	m.TranscriptionRequests.WithLabelValues(engine).Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
	if err != nil {
		m.TranscriptionFailures.WithLabelValues(engine).Inc()
		return
	}
	m.SegmentsProduced.Add(float64(segments))
}

// SetBoundary sets the transcript boundary gauge.
func (m *Metrics) SetBoundary(ticks int64) {
	if m == nil {
		return
	}
	m.TranscriptBoundary.Set(float64(ticks))
}
