package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"interview-assist-service/internal/app"
	"interview-assist-service/internal/config"
	apphttp "interview-assist-service/internal/http"
	"interview-assist-service/internal/observability"
	"interview-assist-service/internal/observability/logging"
	"interview-assist-service/internal/observability/metrics"
	"interview-assist-service/internal/observability/reporting"
)

const serviceName = "interview.assist.SessionService"

func main() {
	// Optional local overrides
	if err := godotenv.Load(); err == nil {
		log.Info().Msg("Loaded environment from .env")
	}

	cfg := config.Load()

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Observability.LogLevel
	logCfg.Format = cfg.Observability.LogFormat
	logging.Init(logCfg)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	if err := reporting.Init(reporting.Config{
		DSN:              cfg.Observability.SentryDSN,
		Environment:      cfg.Service.Environment,
		Release:          cfg.Service.Principal,
		TracesSampleRate: cfg.Observability.SentrySampleRate,
	}); err != nil {
		log.Warn().Err(err).Msg("Sentry init failed, continuing without error reporting")
	}
	defer reporting.Flush(2 * time.Second)

	application := app.New(cfg, metrics.DefaultMetrics)
	if err := application.Start(context.Background()); err != nil {
		reporting.Capture(err, map[string]string{"phase": "startup"})
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	// Metrics and health
	obsServer := observability.NewServer(":"+cfg.Service.MetricsPort, nil, application.Ready)
	obsServer.Start()

	// gRPC health and reflection
	lis, err := net.Listen("tcp", ":"+cfg.Service.GRPCPort)
	if err != nil {
		log.Fatal().Err(err).Str("port", cfg.Service.GRPCPort).Msg("Failed to listen")
	}
	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(observability.UnaryServerInterceptor(application.Metrics)),
		grpc.StreamInterceptor(observability.StreamServerInterceptor(application.Metrics)),
	)
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(serviceName, grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	go func() {
		log.Info().Str("port", cfg.Service.GRPCPort).Msg("gRPC health server started")
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatal().Err(err).Msg("gRPC serve failed")
		}
	}()

	// Session control, event and audio endpoints
	httpServer := &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           apphttp.NewRouter(application),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("port", cfg.Service.HTTPPort).Msg("Interview assist service started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP serve failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("Shutting down")
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(serviceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown error")
	}
	application.Shutdown(ctx)
	grpcServer.GracefulStop()
	if err := obsServer.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Observability server shutdown error")
	}
}
