// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "interview_assist"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsTotal   prometheus.Counter
	SessionsActive  prometheus.Gauge
	SessionsFailed  *prometheus.CounterVec
	SessionDuration prometheus.Histogram

	// Transcript metrics
	Transcripts *prometheus.CounterVec

	// Segmentation metrics
	BuffersStarted prometheus.Counter
	Flushes        *prometheus.CounterVec
	Emissions      *prometheus.CounterVec

	// Dispatch metrics
	DispatchCalls         *prometheus.CounterVec
	DispatchLatency       prometheus.Histogram
	DispatchQueueDepth    prometheus.Gauge
	DispatchStuckReleases prometheus.Counter

	// Conversation history metrics
	HistoryTurns         prometheus.Gauge
	HistoryPersistErrors prometheus.Counter

	// Audio metrics
	AudioBytesReceived  prometheus.Counter
	AudioFramesReceived prometheus.Counter
	AudioLimitExceeded  *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// STT metrics
	STTErrors *prometheus.CounterVec

	// UI metrics
	UIClients       prometheus.Gauge
	UIEventsDropped prometheus.Counter

	// gRPC metrics
	GRPCCalls         *prometheus.CounterVec
	GRPCStreamsActive prometheus.Gauge
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = New(prometheus.DefaultRegisterer)

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Session metrics
		SessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of listening sessions started",
		}),
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently running sessions",
		}),
		SessionsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_failed_total",
			Help:      "Total number of sessions stopped by an error",
		}, []string{"error_kind"}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of listening sessions in seconds",
			Buckets:   []float64{10, 30, 60, 300, 900, 1800, 3600, 7200},
		}),

		// Transcript metrics
		Transcripts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_total",
			Help:      "Total number of transcript events received",
		}, []string{"final", "role"}),

		// Segmentation metrics
		BuffersStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "question_buffers_started_total",
			Help:      "Total number of candidate question buffers created",
		}),
		Flushes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "question_flushes_total",
			Help:      "Total number of question buffers flushed",
		}, []string{"reason"}),
		Emissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "question_emissions_total",
			Help:      "Emission gate decisions on flushed questions",
		}, []string{"outcome"}),

		// Dispatch metrics
		DispatchCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_calls_total",
			Help:      "Total number of answer backend calls by result",
		}, []string{"result"}),
		DispatchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_latency_seconds",
			Help:      "Answer backend call latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		DispatchQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatch_queue_depth",
			Help:      "Number of questions waiting for the in-flight call",
		}),
		DispatchStuckReleases: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_stuck_releases_total",
			Help:      "Total number of in-flight calls released after the stuck timeout",
		}),

		// Conversation history metrics
		HistoryTurns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_turns",
			Help:      "Number of turns in the conversation history",
		}),
		HistoryPersistErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_persist_errors_total",
			Help:      "Total number of failed history loads or saves",
		}),

		// Audio metrics
		AudioBytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes received",
		}),
		AudioFramesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_received_total",
			Help:      "Total audio frames received",
		}),
		AudioLimitExceeded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_limit_exceeded_total",
			Help:      "Total number of times audio ingest limits were exceeded",
		}, []string{"limit_type"}),

		// Kafka publish metrics
		KafkaPublishTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		// STT metrics
		STTErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_errors_total",
			Help:      "Total number of STT errors",
		}, []string{"provider", "error_type"}),

		// UI metrics
		UIClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ui_clients",
			Help:      "Number of connected UI websocket clients",
		}),
		UIEventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ui_events_dropped_total",
			Help:      "Total number of UI events dropped for slow clients",
		}),

		// gRPC metrics
		GRPCCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_calls_total",
			Help:      "Total number of gRPC calls handled",
		}, []string{"method", "code"}),
		GRPCStreamsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "grpc_streams_active",
			Help:      "Number of currently open gRPC streams",
		}),
	}
}

// RecordSessionStart records a new session starting.
func (m *Metrics) RecordSessionStart() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session ending. errorKind is empty on a clean stop.
func (m *Metrics) RecordSessionEnd(errorKind string, durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(durationSeconds)
	if errorKind != "" {
		m.SessionsFailed.WithLabelValues(errorKind).Inc()
	}
}

// RecordTranscript records a transcript event and the role it was attributed to.
func (m *Metrics) RecordTranscript(final bool, role string) {
	f := "false"
	if final {
		f = "true"
	}
	m.Transcripts.WithLabelValues(f, role).Inc()
}

// RecordBufferStarted records a new candidate question buffer.
func (m *Metrics) RecordBufferStarted() {
	m.BuffersStarted.Inc()
}

// RecordFlush records a flushed buffer.
func (m *Metrics) RecordFlush(reason string) {
	m.Flushes.WithLabelValues(reason).Inc()
}

// RecordEmission records an emission gate decision.
func (m *Metrics) RecordEmission(outcome string) {
	m.Emissions.WithLabelValues(outcome).Inc()
}

// RecordDispatch records a finished backend call.
func (m *Metrics) RecordDispatch(result string, latencySeconds float64) {
	m.DispatchCalls.WithLabelValues(result).Inc()
	m.DispatchLatency.Observe(latencySeconds)
}

// SetQueueDepth records the current dispatch queue length.
func (m *Metrics) SetQueueDepth(n int) {
	m.DispatchQueueDepth.Set(float64(n))
}

// RecordStuckRelease records a call released after the stuck timeout.
func (m *Metrics) RecordStuckRelease() {
	m.DispatchStuckReleases.Inc()
}

// SetHistoryTurns records the history size.
func (m *Metrics) SetHistoryTurns(n int) {
	m.HistoryTurns.Set(float64(n))
}

// RecordHistoryPersistError records a failed history load or save.
func (m *Metrics) RecordHistoryPersistError() {
	m.HistoryPersistErrors.Inc()
}

// RecordAudioReceived records audio bytes and frames received.
func (m *Metrics) RecordAudioReceived(bytes int) {
	m.AudioBytesReceived.Add(float64(bytes))
	m.AudioFramesReceived.Inc()
}

// RecordLimitExceeded records when an audio ingest limit is exceeded.
func (m *Metrics) RecordLimitExceeded(limitType string) {
	m.AudioLimitExceeded.WithLabelValues(limitType).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordSTTError records an STT error.
func (m *Metrics) RecordSTTError(provider, errorType string) {
	m.STTErrors.WithLabelValues(provider, errorType).Inc()
}

// RecordUIClient records a UI client connecting (+1) or leaving (-1).
func (m *Metrics) RecordUIClient(delta int) {
	m.UIClients.Add(float64(delta))
}

// RecordUIEventDropped records an event not delivered to a slow client.
func (m *Metrics) RecordUIEventDropped() {
	m.UIEventsDropped.Inc()
}

// RecordGRPCCall records a finished gRPC call.
func (m *Metrics) RecordGRPCCall(method, code string) {
	m.GRPCCalls.WithLabelValues(method, code).Inc()
}
