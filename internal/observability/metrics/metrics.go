// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tablecast"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Capture pipeline metrics (device agent)
	SegmentsRotated   prometheus.Counter
	SegmentsDiscarded prometheus.Counter
	SegmentsEvicted   prometheus.Counter
	QueueDepth        prometheus.Gauge
	DrainRuns         prometheus.Counter
	DrainFailures     prometheus.Counter
	UploadLatency     prometheus.Histogram

	// Connection metrics (device agent)
	ProbeFailures    prometheus.Counter
	ConnectionState  prometheus.Gauge
	ProbeLatency     prometheus.Histogram

	// Ingestion metrics (server)
	SegmentsIngested  prometheus.Counter
	SegmentsRejected  *prometheus.CounterVec
	IngestBytes       prometheus.Counter
	TranscribeErrors  *prometheus.CounterVec
	TranscribeLatency *prometheus.HistogramVec
	SummariesRolled   prometheus.Counter
	SummaryErrors     prometheus.Counter

	// Nudge metrics (server)
	NudgesCreated    *prometheus.CounterVec
	NudgesDelivered  prometheus.Counter
	NudgesAcked      prometheus.Counter
	NudgesRateLimited *prometheus.CounterVec
	PlaybookRuns     prometheus.Counter
	PlaybookNudges   prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		SegmentsRotated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_rotated_total",
			Help:      "Total number of audio segments closed by rotation",
		}),
		SegmentsDiscarded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_discarded_total",
			Help:      "Total number of segments discarded below the minimum size threshold",
		}),
		SegmentsEvicted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_evicted_total",
			Help:      "Total number of buffered segments evicted by the bounded queue",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upload_queue_depth",
			Help:      "Number of segments currently buffered for upload",
		}),
		DrainRuns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drain_runs_total",
			Help:      "Total number of queue drain attempts",
		}),
		DrainFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drain_failures_total",
			Help:      "Total number of drains stopped by an upload failure",
		}),
		UploadLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_latency_seconds",
			Help:      "Segment upload latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),

		ProbeFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_failures_total",
			Help:      "Total number of failed connection probes",
		}),
		ConnectionState: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "Current connection state (0=connected, 1=degraded, 2=offline)",
		}),
		ProbeLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_latency_seconds",
			Help:      "Connection probe round-trip latency in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 3},
		}),

		SegmentsIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_ingested_total",
			Help:      "Total number of audio segments accepted by the backend",
		}),
		SegmentsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_rejected_total",
			Help:      "Total number of segments rejected by the backend",
		}, []string{"reason"}),
		IngestBytes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_bytes_total",
			Help:      "Total audio bytes accepted by the backend",
		}),
		TranscribeErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcribe_errors_total",
			Help:      "Total number of transcription errors",
		}, []string{"provider"}),
		TranscribeLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcribe_latency_seconds",
			Help:      "Transcription latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"provider"}),
		SummariesRolled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_rolled_total",
			Help:      "Total number of rolling summaries produced",
		}),
		SummaryErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_errors_total",
			Help:      "Total number of summarization errors",
		}),

		NudgesCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nudges_created_total",
			Help:      "Total number of nudges created",
		}, []string{"kind"}),
		NudgesDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nudges_delivered_total",
			Help:      "Total number of nudges marked delivered on poll",
		}),
		NudgesAcked: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nudges_acked_total",
			Help:      "Total number of nudges acknowledged",
		}),
		NudgesRateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nudges_rate_limited_total",
			Help:      "Total number of nudge creations rejected by the rate limiter",
		}, []string{"kind"}),
		PlaybookRuns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playbook_runs_total",
			Help:      "Total number of playbook runs started",
		}),
		PlaybookNudges: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playbook_nudges_total",
			Help:      "Total number of nudges created by playbook runs",
		}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordRotation records a closed segment, discarded or kept.
func (m *Metrics) RecordRotation(kept bool) {
	m.SegmentsRotated.Inc()
	if !kept {
		m.SegmentsDiscarded.Inc()
	}
}

// RecordEviction records a queue eviction and the new depth.
func (m *Metrics) RecordEviction(depth int) {
	m.SegmentsEvicted.Inc()
	m.QueueDepth.Set(float64(depth))
}

// RecordQueueDepth records the current queue depth.
func (m *Metrics) RecordQueueDepth(depth int) {
	m.QueueDepth.Set(float64(depth))
}

// RecordDrain records a drain attempt and whether it stopped on failure.
func (m *Metrics) RecordDrain(failed bool) {
	m.DrainRuns.Inc()
	if failed {
		m.DrainFailures.Inc()
	}
}

// RecordProbe records a probe result.
func (m *Metrics) RecordProbe(latencySeconds float64, failed bool) {
	if failed {
		m.ProbeFailures.Inc()
		return
	}
	m.ProbeLatency.Observe(latencySeconds)
}

// RecordConnectionState records the current connection classification.
func (m *Metrics) RecordConnectionState(state int) {
	m.ConnectionState.Set(float64(state))
}

// RecordIngest records an accepted segment.
func (m *Metrics) RecordIngest(bytes int) {
	m.SegmentsIngested.Inc()
	m.IngestBytes.Add(float64(bytes))
}

// RecordIngestRejected records a rejected segment.
func (m *Metrics) RecordIngestRejected(reason string) {
	m.SegmentsRejected.WithLabelValues(reason).Inc()
}

// RecordTranscribe records a transcription attempt.
func (m *Metrics) RecordTranscribe(provider string, err error, latencySeconds float64) {
	if err != nil {
		m.TranscribeErrors.WithLabelValues(provider).Inc()
		return
	}
	m.TranscribeLatency.WithLabelValues(provider).Observe(latencySeconds)
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
