package telemetry

import (
	"context"
	"errors"
	"fmt"
	"github.com/Avi18971911/telemetry-core/internal/db/storage"
	ingestionModel "github.com/Avi18971911/telemetry-core/internal/ingestion/model"
	ingestionService "github.com/Avi18971911/telemetry-core/internal/ingestion/service"
	perfModel "github.com/Avi18971911/telemetry-core/internal/performance/model"
	perfService "github.com/Avi18971911/telemetry-core/internal/performance/service"
	traceModel "github.com/Avi18971911/telemetry-core/internal/trace/model"
	"go.uber.org/zap"
)

// scanLimit bounds how many spans are read for a trace or for percentiles; percentiles use
// the most recent spans.
const scanLimit = 10000

var (
	ErrSpanNotFound      = errors.New("span not found")
	ErrOperationRequired = errors.New("operation name is required")
)

type IngestionStatsProvider interface {
	Stats() ingestionService.IngestionStats
}

// TelemetryQueryService is the read side over storage and the performance aggregator. It
// never mutates state.
type TelemetryQueryService interface {
	GetTrace(ctx context.Context, tenantID string, traceID string) ([]traceModel.Span, error)
	GetSpan(ctx context.Context, tenantID string, traceID string, spanID string) (traceModel.Span, error)
	GetPerformance(operationName string) (perfModel.PerformanceRecord, bool)
	GetAllPerformance() map[string]perfModel.PerformanceRecord
	// GetSlowTraces returns spans of at least thresholdMs, slowest first.
	GetSlowTraces(ctx context.Context, tenantID string, thresholdMs float64, limit int) ([]traceModel.Span, error)
	// GetErrorTraces returns failed spans, most recent first.
	GetErrorTraces(ctx context.Context, tenantID string, limit int) ([]traceModel.Span, error)
	GetLatencyPercentiles(ctx context.Context, tenantID string, operationName string) (perfModel.LatencyPercentiles, error)
	QueryLogs(ctx context.Context, query storage.LogQuery) ([]ingestionModel.LogEntry, error)
	QueryMetrics(ctx context.Context, query storage.MetricQuery) ([]ingestionModel.Metric, error)
	GetIngestionStats() ingestionService.IngestionStats
}

type TelemetryQueryServiceImpl struct {
	traces     storage.TraceStorage
	logs       storage.LogStorage
	metrics    storage.MetricStorage
	aggregator perfService.PerformanceAggregator
	ingestion  IngestionStatsProvider
	logger     *zap.Logger
}

func NewTelemetryQueryServiceImpl(
	traces storage.TraceStorage,
	logs storage.LogStorage,
	metrics storage.MetricStorage,
	aggregator perfService.PerformanceAggregator,
	ingestion IngestionStatsProvider,
	logger *zap.Logger,
) *TelemetryQueryServiceImpl {
	return &TelemetryQueryServiceImpl{
		traces:     traces,
		logs:       logs,
		metrics:    metrics,
		aggregator: aggregator,
		ingestion:  ingestion,
		logger:     logger,
	}
}

func (tqs *TelemetryQueryServiceImpl) GetTrace(
	ctx context.Context,
	tenantID string,
	traceID string,
) ([]traceModel.Span, error) {
	spans, err := tqs.traces.QueryTraceSpans(ctx, storage.TraceQuery{
		TenantID: tenantID,
		TraceID:  traceID,
		Limit:    scanLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("error getting trace %s: %w", traceID, err)
	}
	return spans, nil
}

func (tqs *TelemetryQueryServiceImpl) GetSpan(
	ctx context.Context,
	tenantID string,
	traceID string,
	spanID string,
) (traceModel.Span, error) {
	spans, err := tqs.traces.QueryTraceSpans(ctx, storage.TraceQuery{
		TenantID: tenantID,
		TraceID:  traceID,
		SpanID:   spanID,
		Limit:    1,
	})
	if err != nil {
		return traceModel.Span{}, fmt.Errorf("error getting span %s: %w", spanID, err)
	}
	if len(spans) == 0 {
		return traceModel.Span{}, ErrSpanNotFound
	}
	return spans[0], nil
}

func (tqs *TelemetryQueryServiceImpl) GetPerformance(operationName string) (perfModel.PerformanceRecord, bool) {
	return tqs.aggregator.Read(operationName)
}

func (tqs *TelemetryQueryServiceImpl) GetAllPerformance() map[string]perfModel.PerformanceRecord {
	return tqs.aggregator.ReadAll()
}

func (tqs *TelemetryQueryServiceImpl) GetSlowTraces(
	ctx context.Context,
	tenantID string,
	thresholdMs float64,
	limit int,
) ([]traceModel.Span, error) {
	spans, err := tqs.traces.QueryTraceSpans(ctx, storage.TraceQuery{
		TenantID:      tenantID,
		MinDurationMs: thresholdMs,
		Order:         storage.OrderByDurationDesc,
		Limit:         resultLimit(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("error getting slow traces: %w", err)
	}
	return spans, nil
}

func (tqs *TelemetryQueryServiceImpl) GetErrorTraces(
	ctx context.Context,
	tenantID string,
	limit int,
) ([]traceModel.Span, error) {
	spans, err := tqs.traces.QueryTraceSpans(ctx, storage.TraceQuery{
		TenantID: tenantID,
		Status:   traceModel.StatusError,
		Order:    storage.OrderByStartTimeDesc,
		Limit:    resultLimit(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("error getting error traces: %w", err)
	}
	return spans, nil
}

func (tqs *TelemetryQueryServiceImpl) GetLatencyPercentiles(
	ctx context.Context,
	tenantID string,
	operationName string,
) (perfModel.LatencyPercentiles, error) {
	if operationName == "" {
		return perfModel.LatencyPercentiles{}, ErrOperationRequired
	}
	spans, err := tqs.traces.QueryTraceSpans(ctx, storage.TraceQuery{
		TenantID:      tenantID,
		OperationName: operationName,
		Order:         storage.OrderByStartTimeDesc,
		Limit:         scanLimit,
	})
	if err != nil {
		return perfModel.LatencyPercentiles{}, fmt.Errorf("error getting spans of %s: %w", operationName, err)
	}
	durations := make([]float64, 0, len(spans))
	for _, span := range spans {
		if span.IsFinished() {
			durations = append(durations, span.DurationMs)
		}
	}
	return perfService.Percentiles(operationName, durations), nil
}

func (tqs *TelemetryQueryServiceImpl) QueryLogs(
	ctx context.Context,
	query storage.LogQuery,
) ([]ingestionModel.LogEntry, error) {
	entries, err := tqs.logs.QueryLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying logs: %w", err)
	}
	return entries, nil
}

func (tqs *TelemetryQueryServiceImpl) QueryMetrics(
	ctx context.Context,
	query storage.MetricQuery,
) ([]ingestionModel.Metric, error) {
	metrics, err := tqs.metrics.QueryMetrics(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying metrics: %w", err)
	}
	return metrics, nil
}

func (tqs *TelemetryQueryServiceImpl) GetIngestionStats() ingestionService.IngestionStats {
	if tqs.ingestion == nil {
		return ingestionService.IngestionStats{}
	}
	return tqs.ingestion.Stats()
}

func resultLimit(limit int) int {
	if limit <= 0 {
		return storage.DefaultQueryLimit
	}
	if limit > scanLimit {
		return scanLimit
	}
	return limit
}
