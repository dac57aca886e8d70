package app

import (
	"context"
	"errors"
	"fmt"
	"github.com/Avi18971911/telemetry-core/internal/config"
	ingestionService "github.com/Avi18971911/telemetry-core/internal/ingestion/service"
	"github.com/Avi18971911/telemetry-core/internal/metrics"
	logsServer "github.com/Avi18971911/telemetry-core/internal/otel_server/log/server"
	metricsServer "github.com/Avi18971911/telemetry-core/internal/otel_server/metric/server"
	traceServer "github.com/Avi18971911/telemetry-core/internal/otel_server/trace/server"
	perfService "github.com/Avi18971911/telemetry-core/internal/performance/service"
	"github.com/Avi18971911/telemetry-core/internal/query_server/router"
	"github.com/Avi18971911/telemetry-core/internal/query_server/service/telemetry"
	traceService "github.com/Avi18971911/telemetry-core/internal/trace/service"
	protoLogs "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	protoMetrics "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	protoTrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	_ "google.golang.org/grpc/encoding/gzip"
	"net"
	"net/http"
	"time"
)

const readHeaderTimeout = 10 * time.Second

// Servers exposes the bound listener addresses once the application has started.
type Servers struct {
	grpcServer *grpc.Server
	httpServer *http.Server
	grpcAddr   net.Addr
	httpAddr   net.Addr
}

func (s *Servers) GRPCAddr() net.Addr {
	return s.grpcAddr
}

func (s *Servers) HTTPAddr() net.Addr {
	return s.httpAddr
}

func newGRPCServer(
	backends *Backends,
	aggregator perfService.PerformanceAggregator,
	qm ingestionService.IngestionQueueManager,
	logger *zap.Logger,
) *grpc.Server {
	srv := grpc.NewServer()
	protoTrace.RegisterTraceServiceServer(srv, traceServer.NewTraceServiceServerImpl(backends.Traces, aggregator, logger))
	protoLogs.RegisterLogsServiceServer(srv, logsServer.NewLogServiceServerImpl(qm, logger))
	protoMetrics.RegisterMetricsServiceServer(srv, metricsServer.NewMetricServiceServerImpl(qm, logger))
	return srv
}

// provideServers builds the OTLP gRPC receiver and the HTTP query API. Both listen on start
// and are shut down together on stop.
func provideServers(
	lc fx.Lifecycle,
	cfg *config.Config,
	backends *Backends,
	aggregator perfService.PerformanceAggregator,
	qm ingestionService.IngestionQueueManager,
	qs telemetry.TelemetryQueryService,
	recorder traceService.SpanRecorder,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Servers {
	servers := &Servers{
		grpcServer: newGRPCServer(backends, aggregator, qm, logger),
		httpServer: &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           router.CreateRouter(qs, recorder, m, logger),
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return servers.start(cfg, logger)
		},
		OnStop: func(ctx context.Context) error {
			return servers.stop(ctx, logger)
		},
	})
	return servers
}

func (s *Servers) start(cfg *config.Config, logger *zap.Logger) error {
	grpcListener, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.GRPCAddr, err)
	}
	httpListener, err := net.Listen("tcp", cfg.Server.HTTPAddr)
	if err != nil {
		_ = grpcListener.Close()
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.HTTPAddr, err)
	}
	s.grpcAddr = grpcListener.Addr()
	s.httpAddr = httpListener.Addr()

	go func() {
		logger.Info("gRPC service started, listening for OpenTelemetry data", zap.Stringer("addr", s.grpcAddr))
		if err := s.grpcServer.Serve(grpcListener); err != nil {
			logger.Error("gRPC server stopped", zap.Error(err))
		}
	}()
	go func() {
		logger.Info("Starting query server", zap.Stringer("addr", s.httpAddr))
		if err := s.httpServer.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Query server stopped", zap.Error(err))
		}
	}()
	return nil
}

func (s *Servers) stop(ctx context.Context, logger *zap.Logger) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.httpServer.Shutdown(ctx)
	})
	g.Go(func() error {
		stopped := make(chan struct{})
		go func() {
			s.grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-ctx.Done():
			s.grpcServer.Stop()
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("error shutting down servers: %w", err)
	}
	logger.Info("Servers stopped")
	return nil
}
