package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// value reads the current value of a counter or gauge
func value(t *testing.T, c prometheus.Metric) float64 {
	t.Helper()
	var pb dto.Metric
	if err := c.Write(&pb); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if pb.Counter != nil {
		return pb.GetCounter().GetValue()
	}
	return pb.GetGauge().GetValue()
}

func newTestMetrics() *Metrics {
	return New(prometheus.NewRegistry())
}

func TestRecordSession(t *testing.T) {
	m := newTestMetrics()

	m.RecordSessionStart()
	m.RecordSessionStart()
	m.RecordSessionEnd("", 12)
	m.RecordSessionEnd("provider_connection", 3)

	if got := value(t, m.SessionsTotal); got != 2 {
		t.Errorf("sessions_total = %v, want 2", got)
	}
	if got := value(t, m.SessionsActive); got != 0 {
		t.Errorf("sessions_active = %v, want 0", got)
	}
	if got := value(t, m.SessionsFailed.WithLabelValues("provider_connection")); got != 1 {
		t.Errorf("sessions_failed_total = %v, want 1", got)
	}
}

func TestRecordSegmentation(t *testing.T) {
	m := newTestMetrics()

	m.RecordTranscript(true, "interviewer")
	m.RecordTranscript(false, "interviewer")
	m.RecordBufferStarted()
	m.RecordFlush("pause")
	m.RecordFlush("pause")
	m.RecordEmission("duplicate")

	if got := value(t, m.Transcripts.WithLabelValues("true", "interviewer")); got != 1 {
		t.Errorf("final transcripts = %v, want 1", got)
	}
	if got := value(t, m.Flushes.WithLabelValues("pause")); got != 2 {
		t.Errorf("pause flushes = %v, want 2", got)
	}
	if got := value(t, m.Emissions.WithLabelValues("duplicate")); got != 1 {
		t.Errorf("duplicate emissions = %v, want 1", got)
	}
}

func TestRecordDispatch(t *testing.T) {
	m := newTestMetrics()

	m.RecordDispatch("success", 1.5)
	m.SetQueueDepth(3)
	m.RecordStuckRelease()

	if got := value(t, m.DispatchCalls.WithLabelValues("success")); got != 1 {
		t.Errorf("dispatch_calls_total = %v, want 1", got)
	}
	if got := value(t, m.DispatchQueueDepth); got != 3 {
		t.Errorf("dispatch_queue_depth = %v, want 3", got)
	}
	if got := value(t, m.DispatchStuckReleases); got != 1 {
		t.Errorf("dispatch_stuck_releases_total = %v, want 1", got)
	}
}

func TestRecordKafkaPublish(t *testing.T) {
	m := newTestMetrics()

	m.RecordKafkaPublish("questions", "question", nil, 0.01)
	m.RecordKafkaPublish("questions", "question", errors.New("broker down"), 0.5)

	if got := value(t, m.KafkaPublishTotal.WithLabelValues("questions", "question")); got != 2 {
		t.Errorf("kafka_publish_total = %v, want 2", got)
	}
	if got := value(t, m.KafkaPublishErrors.WithLabelValues("questions", "question")); got != 1 {
		t.Errorf("kafka_publish_errors_total = %v, want 1", got)
	}
}

func TestNew_IndependentRegistries(t *testing.T) {
	// Registering twice on separate registries must not panic
	a := newTestMetrics()
	b := newTestMetrics()

	a.RecordAudioReceived(320)
	if got := value(t, b.AudioBytesReceived); got != 0 {
		t.Errorf("expected independent metrics, got %v", got)
	}
}
