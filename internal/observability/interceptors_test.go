package observability

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"interview-assist-service/internal/observability/metrics"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var pb dto.Metric
	if err := c.Write(&pb); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return pb.GetCounter().GetValue()
}

func TestUnaryServerInterceptor_RecordsCode(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	interceptor := UnaryServerInterceptor(m)
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	resp, err := interceptor(context.Background(), "req", info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return "resp", nil
	})
	if err != nil || resp != "resp" {
		t.Fatalf("unexpected result %v, %v", resp, err)
	}

	_, err = interceptor(context.Background(), "req", info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.NotFound, "unknown service")
	})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound to pass through, got %v", err)
	}

	if got := counterValue(t, m.GRPCCalls.WithLabelValues(info.FullMethod, "OK")); got != 1 {
		t.Errorf("OK calls = %v, want 1", got)
	}
	if got := counterValue(t, m.GRPCCalls.WithLabelValues(info.FullMethod, "NotFound")); got != 1 {
		t.Errorf("NotFound calls = %v, want 1", got)
	}
}

func TestStreamServerInterceptor_TracksActive(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	interceptor := StreamServerInterceptor(m)
	info := &grpc.StreamServerInfo{FullMethod: "/grpc.health.v1.Health/Watch"}

	var activeDuring float64
	err := interceptor(nil, nil, info, func(srv interface{}, ss grpc.ServerStream) error {
		var pb dto.Metric
		m.GRPCStreamsActive.Write(&pb)
		activeDuring = pb.GetGauge().GetValue()
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if activeDuring != 1 {
		t.Errorf("expected 1 active stream during handler, got %v", activeDuring)
	}

	var pb dto.Metric
	m.GRPCStreamsActive.Write(&pb)
	if pb.GetGauge().GetValue() != 0 {
		t.Errorf("expected 0 active streams after handler, got %v", pb.GetGauge().GetValue())
	}
}
