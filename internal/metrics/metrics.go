// Package metrics holds the daemon's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "orb"

// Metrics contains every collector the daemon records into.
type Metrics struct {
	registry *prometheus.Registry

	BackendRequests *prometheus.CounterVec
	BackendDuration *prometheus.HistogramVec

	CaptureSessions *prometheus.CounterVec
	CaptureFailures *prometheus.CounterVec
	CaptureBytes    prometheus.Histogram

	Intents            *prometheus.CounterVec
	DispatchFailures   prometheus.Counter
	SkippedSubmissions prometheus.Counter
	Transcriptions     *prometheus.CounterVec

	RefreshFailures prometheus.Counter
	SpeechLevel     prometheus.Gauge
	FeedClients     prometheus.Gauge
}

// New registers all collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		BackendRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Backend API requests by endpoint and status code (0 = transport error)",
		}, []string{"endpoint", "status_code"}),
		BackendDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Backend API request latency",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		}, []string{"endpoint"}),

		CaptureSessions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_sessions_total",
			Help:      "Recording sessions started by encoder path",
		}, []string{"kind"}),
		CaptureFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_failures_total",
			Help:      "Recording failures by reason",
		}, []string{"reason"}),
		CaptureBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "capture_blob_bytes",
			Help:      "Size of finished recordings",
			Buckets:   prometheus.ExponentialBuckets(4096, 2, 12), // 4KB to ~8MB
		}),

		Intents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_total",
			Help:      "Dispatched utterances by resolved intent",
		}, []string{"intent"}),
		DispatchFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_failures_total",
			Help:      "Utterances aborted by a backend error",
		}),
		SkippedSubmissions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_skipped_total",
			Help:      "Voice submissions dropped because another submission was in flight",
		}),
		Transcriptions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcriptions_total",
			Help:      "Speech-to-text calls by outcome",
		}, []string{"outcome"}),

		RefreshFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_failures_total",
			Help:      "Dashboard refreshes that failed",
		}),
		SpeechLevel: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "speech_level",
			Help:      "Current speech envelope level in [0,1]",
		}),
		FeedClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_clients",
			Help:      "Connected websocket feed clients",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveBackend records one backend call.
func (m *Metrics) ObserveBackend(endpoint string, status int, elapsed time.Duration) {
	m.BackendRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	m.BackendDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// RecordCapture records a finished recording.
func (m *Metrics) RecordCapture(kind string, size int) {
	m.CaptureSessions.WithLabelValues(kind).Inc()
	m.CaptureBytes.Observe(float64(size))
}

// RecordCaptureFailure counts a recording that produced nothing usable.
func (m *Metrics) RecordCaptureFailure(reason string) {
	m.CaptureFailures.WithLabelValues(reason).Inc()
}

// RecordIntent counts one dispatched utterance.
func (m *Metrics) RecordIntent(kind string) {
	m.Intents.WithLabelValues(kind).Inc()
}

// RecordDispatchFailure counts one aborted dispatch.
func (m *Metrics) RecordDispatchFailure() {
	m.DispatchFailures.Inc()
}

// RecordSkipped counts one dropped voice submission.
func (m *Metrics) RecordSkipped() {
	m.SkippedSubmissions.Inc()
}

// RecordTranscription counts one speech-to-text call.
func (m *Metrics) RecordTranscription(outcome string) {
	m.Transcriptions.WithLabelValues(outcome).Inc()
}

// RecordRefreshFailure counts one failed dashboard refresh.
func (m *Metrics) RecordRefreshFailure() {
	m.RefreshFailures.Inc()
}

// SetSpeechLevel publishes the envelope level.
func (m *Metrics) SetSpeechLevel(level float64) {
	m.SpeechLevel.Set(level)
}

// SetFeedClients publishes the websocket client count.
func (m *Metrics) SetFeedClients(n int) {
	m.FeedClients.Set(float64(n))
}
