package app

import (
	"context"
	"fmt"
	"github.com/Avi18971911/telemetry-core/internal/config"
	"github.com/Avi18971911/telemetry-core/internal/event_bus"
	"github.com/Avi18971911/telemetry-core/internal/export"
	ingestionService "github.com/Avi18971911/telemetry-core/internal/ingestion/service"
	"github.com/Avi18971911/telemetry-core/internal/logging"
	"github.com/Avi18971911/telemetry-core/internal/metrics"
	perfService "github.com/Avi18971911/telemetry-core/internal/performance/service"
	"github.com/Avi18971911/telemetry-core/internal/query_server/service/telemetry"
	traceModel "github.com/Avi18971911/telemetry-core/internal/trace/model"
	traceService "github.com/Avi18971911/telemetry-core/internal/trace/service"
	"github.com/asaskevich/EventBus"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func provideLogger(lc fx.Lifecycle, cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.NewLogger(cfg.Logging, cfg.Tracing.ServiceName)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			// stderr does not support fsync on every platform
			_ = logger.Sync()
			return nil
		},
	})
	return logger, nil
}

func provideMetrics(cfg *config.Config) *metrics.Metrics {
	return metrics.NewMetrics(cfg.Tracing.ServiceName, cfg.Metrics.EnableDefaultCollectors)
}

func provideAggregator(backends *Backends, logger *zap.Logger) perfService.PerformanceAggregator {
	if backends.Cache != nil {
		return perfService.NewPerformanceAggregator(backends.Cache, logger)
	}
	return perfService.NewPerformanceAggregator(nil, logger)
}

func provideEventBus(logger *zap.Logger) event_bus.TelemetryEventBus[traceModel.Span] {
	return event_bus.NewTelemetryEventBus[traceModel.Span](EventBus.New(), logger)
}

func provideSpanRecorder(
	cfg *config.Config,
	backends *Backends,
	aggregator perfService.PerformanceAggregator,
	bus event_bus.TelemetryEventBus[traceModel.Span],
	m *metrics.Metrics,
	logger *zap.Logger,
) traceService.SpanRecorder {
	// the exporter is the only subscriber
	var spanBus event_bus.TelemetryEventBus[traceModel.Span]
	if cfg.Tracing.ExportEnabled {
		spanBus = bus
	}
	return traceService.NewSpanRecorderImpl(
		cfg.Tracing.ServiceName,
		backends.Traces,
		aggregator,
		spanBus,
		m,
		nil,
		logger,
	)
}

// provideQueueManager starts the consumers with the application and drains them on stop.
func provideQueueManager(
	lc fx.Lifecycle,
	cfg *config.Config,
	backends *Backends,
	m *metrics.Metrics,
	logger *zap.Logger,
) (ingestionService.IngestionQueueManager, error) {
	qm, err := ingestionService.NewQueueManagerImpl(
		cfg.QueueConfig(),
		backends.Metrics,
		backends.Logs,
		m,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ingestion queues: %w", err)
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return qm.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return qm.Stop(ctx)
		},
	})
	return qm, nil
}

func provideQueryService(
	backends *Backends,
	aggregator perfService.PerformanceAggregator,
	qm ingestionService.IngestionQueueManager,
	logger *zap.Logger,
) telemetry.TelemetryQueryService {
	return telemetry.NewTelemetryQueryServiceImpl(
		backends.Traces,
		backends.Logs,
		backends.Metrics,
		aggregator,
		qm,
		logger,
	)
}

// registerSpanExporter ships finished spans to an OTLP/HTTP collector when export is enabled.
func registerSpanExporter(
	lc fx.Lifecycle,
	cfg *config.Config,
	bus event_bus.TelemetryEventBus[traceModel.Span],
	logger *zap.Logger,
) {
	if !cfg.Tracing.ExportEnabled {
		return
	}
	var exporter *export.SpanExporterImpl
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			otlp, err := export.NewOTLPExporter(ctx, cfg.Tracing.ExportEndpoint, cfg.Tracing.ExportInsecure)
			if err != nil {
				return err
			}
			exporter = export.NewSpanExporterImpl(otlp, bus, logger)
			logger.Info("Exporting finished spans", zap.String("endpoint", cfg.Tracing.ExportEndpoint))
			return exporter.Start()
		},
		OnStop: func(ctx context.Context) error {
			if exporter == nil {
				return nil
			}
			return exporter.Shutdown(ctx)
		},
	})
}
