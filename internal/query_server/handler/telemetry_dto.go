package handler

import (
	"github.com/Avi18971911/telemetry-core/internal/db/storage"
	ingestionModel "github.com/Avi18971911/telemetry-core/internal/ingestion/model"
	ingestionService "github.com/Avi18971911/telemetry-core/internal/ingestion/service"
	perfModel "github.com/Avi18971911/telemetry-core/internal/performance/model"
	traceModel "github.com/Avi18971911/telemetry-core/internal/trace/model"
	"time"
)

// TraceResponseDTO represents every span of one trace
// @swagger:model TraceResponseDTO
type TraceResponseDTO struct {
	TraceID string            `json:"trace_id"`
	Spans   []traceModel.Span `json:"spans"`
}

// SpansResponseDTO represents a ranked list of spans
// @swagger:model SpansResponseDTO
type SpansResponseDTO struct {
	Spans []traceModel.Span `json:"spans"`
}

// PerformanceResponseDTO maps operation names to their aggregated statistics
// @swagger:model PerformanceResponseDTO
type PerformanceResponseDTO struct {
	Operations map[string]perfModel.PerformanceRecord `json:"operations"`
}

// LogSearchRequestDTO represents the optional filters of a log search
// @swagger:model LogSearchRequestDTO
type LogSearchRequestDTO struct {
	Levels    []ingestionModel.Level `json:"levels,omitempty"`
	Service   string                 `json:"service,omitempty"`
	StartTime *time.Time             `json:"start_time,omitempty"`
	EndTime   *time.Time             `json:"end_time,omitempty"`
	Limit     int                    `json:"limit,omitempty"`
}

// MetricSearchRequestDTO represents the optional filters of a metric search
// @swagger:model MetricSearchRequestDTO
type MetricSearchRequestDTO struct {
	MetricNames []string   `json:"metric_names,omitempty"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Limit       int        `json:"limit,omitempty"`
}

// LogsResponseDTO represents the logs matching a search
// @swagger:model LogsResponseDTO
type LogsResponseDTO struct {
	Logs []ingestionModel.LogEntry `json:"logs"`
}

// MetricsResponseDTO represents the metrics matching a search
// @swagger:model MetricsResponseDTO
type MetricsResponseDTO struct {
	Metrics []ingestionModel.Metric `json:"metrics"`
}

// HealthResponseDTO reports liveness and the state of the ingestion queues
// @swagger:model HealthResponseDTO
type HealthResponseDTO struct {
	Status    string                          `json:"status"`
	Ingestion ingestionService.IngestionStats `json:"ingestion"`
}

func (req LogSearchRequestDTO) toQuery(tenantID string) storage.LogQuery {
	return storage.LogQuery{
		TenantID:  tenantID,
		Levels:    req.Levels,
		Service:   req.Service,
		TimeRange: storage.TimeRange{StartTime: req.StartTime, EndTime: req.EndTime},
		Limit:     req.Limit,
	}
}

func (req MetricSearchRequestDTO) toQuery(tenantID string) storage.MetricQuery {
	return storage.MetricQuery{
		TenantID:    tenantID,
		MetricNames: req.MetricNames,
		TimeRange:   storage.TimeRange{StartTime: req.StartTime, EndTime: req.EndTime},
		Limit:       req.Limit,
	}
}

func nonNil[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}
