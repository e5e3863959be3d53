package observability

import (
	"context"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"interview-assist-service/internal/observability/logging"
	"interview-assist-service/internal/observability/metrics"
)

// healthPrefix marks probe traffic, which is logged at trace level only.
const healthPrefix = "/grpc.health.v1.Health/"

// UnaryServerInterceptor returns a gRPC unary interceptor for metrics and logging.
func UnaryServerInterceptor(m *metrics.Metrics) grpc.UnaryServerInterceptor {
	logger := logging.WithComponent("grpc")
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err).String()
		m.RecordGRPCCall(info.FullMethod, code)

		ev := logger.Debug()
		if strings.HasPrefix(info.FullMethod, healthPrefix) {
			ev = logger.Trace()
		}
		ev.Str("method", info.FullMethod).
			Str("code", code).
			Dur("duration", time.Since(start)).
			Msg("gRPC unary call")
		return resp, err
	}
}

// StreamServerInterceptor returns a gRPC stream interceptor for metrics and logging.
// Health Watch streams count toward GRPCStreamsActive like any other stream.
func StreamServerInterceptor(m *metrics.Metrics) grpc.StreamServerInterceptor {
	logger := logging.WithComponent("grpc")
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		m.GRPCStreamsActive.Inc()
		defer m.GRPCStreamsActive.Dec()

		err := handler(srv, ss)

		code := status.Code(err).String()
		m.RecordGRPCCall(info.FullMethod, code)

		logger.Info().
			Str("method", info.FullMethod).
			Str("code", code).
			Dur("duration", time.Since(start)).
			Bool("success", err == nil).
			Msg("gRPC stream completed")
		return err
	}
}
