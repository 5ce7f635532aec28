package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// UploadsTotal counts image analyses by outcome.
	UploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agrodetect",
		Subsystem: "analysis",
		Name:      "uploads_total",
		Help:      "Total number of image analyses, labeled by result.",
	}, []string{"result"})

	// AnalysisDurationSeconds is the time from upload to response.
	AnalysisDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "agrodetect",
		Subsystem: "analysis",
		Name:      "duration_seconds",
		Help:      "End-to-end time of an image analysis (inference + advisory + persistence).",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 45, 60, 90},
	})

	// InferenceDurationSeconds is the latency of the ML inference service.
	InferenceDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "agrodetect",
		Subsystem: "inference",
		Name:      "request_duration_seconds",
		Help:      "Latency of ML inference requests, labeled by result.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"result"})

	// LLMRequestsTotal counts LLM generate calls by operation and result.
	LLMRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agrodetect",
		Subsystem: "llm",
		Name:      "requests_total",
		Help:      "Total number of LLM generate calls, labeled by operation and result.",
	}, []string{"operation", "result"})

	// AdvisoryFallbackTotal counts advisories replaced by the deterministic fallback.
	AdvisoryFallbackTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agrodetect",
		Subsystem: "llm",
		Name:      "advisory_fallback_total",
		Help:      "Total number of advisories served from the fallback, labeled by reason.",
	}, []string{"reason"})

	// PersistErrorTotal counts scan records that could not be stored.
	PersistErrorTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "agrodetect",
		Subsystem: "store",
		Name:      "persist_error_total",
		Help:      "Total number of scan records dropped because persistence failed.",
	})

	// PublishErrorTotal counts scan notifications the broker did not accept.
	PublishErrorTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "agrodetect",
		Subsystem: "rabbitmq",
		Name:      "publish_error_total",
		Help:      "Total number of scan notifications that failed to publish.",
	})

	// RabbitMQConnected is 1 when the publisher holds an open channel.
	RabbitMQConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "agrodetect",
		Subsystem: "rabbitmq",
		Name:      "connected",
		Help:      "Whether the scan publisher is currently connected (best-effort).",
	})

	// LiveClients is the number of open websocket feeds.
	LiveClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "agrodetect",
		Subsystem: "websocket",
		Name:      "clients",
		Help:      "Current number of connected live-feed clients.",
	})

	// EspHeartbeatsTotal counts heartbeats by transport.
	EspHeartbeatsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agrodetect",
		Subsystem: "esp",
		Name:      "heartbeats_total",
		Help:      "Total number of ESP heartbeats received, labeled by transport (http, mqtt).",
	}, []string{"transport"})
)

// Register registers the service metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			UploadsTotal,
			AnalysisDurationSeconds,
			InferenceDurationSeconds,
			LLMRequestsTotal,
			AdvisoryFallbackTotal,
			PersistErrorTotal,
			PublishErrorTotal,
			RabbitMQConnected,
			LiveClients,
			EspHeartbeatsTotal,
		)
	})
}
