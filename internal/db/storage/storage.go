package storage

import (
	"context"
	"errors"
	ingestionModel "github.com/Avi18971911/telemetry-core/internal/ingestion/model"
	traceModel "github.com/Avi18971911/telemetry-core/internal/trace/model"
	"sort"
	"time"
)

const DefaultQueryLimit = 100

var (
	ErrTenantRequired = errors.New("tenant_id is required for telemetry queries")
	ErrInvalidQuery   = errors.New("invalid telemetry query")
	// ErrTenantConflict is returned when a write would replace telemetry owned by another tenant.
	ErrTenantConflict = errors.New("identifier is owned by another tenant")
)

// SpanOrder is the order adapters sort spans in before the limit is applied.
type SpanOrder string

const (
	OrderByStartTime     SpanOrder = ""
	OrderByStartTimeDesc SpanOrder = "start_time_desc"
	OrderByDurationDesc  SpanOrder = "duration_desc"
)

func (o SpanOrder) Valid() bool {
	switch o {
	case OrderByStartTime, OrderByStartTimeDesc, OrderByDurationDesc:
		return true
	}
	return false
}

type TimeRange struct {
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

func (tr TimeRange) Contains(t time.Time) bool {
	if tr.StartTime != nil && t.Before(*tr.StartTime) {
		return false
	}
	if tr.EndTime != nil && t.After(*tr.EndTime) {
		return false
	}
	return true
}

type MetricQuery struct {
	TenantID    string   `json:"tenant_id"`
	MetricNames []string `json:"metric_names,omitempty"`
	TimeRange
	Limit int `json:"limit,omitempty"`
}

type LogQuery struct {
	TenantID string                 `json:"tenant_id"`
	Levels   []ingestionModel.Level `json:"levels,omitempty"`
	Service  string                 `json:"service,omitempty"`
	TimeRange
	Limit int `json:"limit,omitempty"`
}

type TraceQuery struct {
	TenantID      string            `json:"tenant_id"`
	TraceID       string            `json:"trace_id,omitempty"`
	SpanID        string            `json:"span_id,omitempty"`
	ServiceName   string            `json:"service_name,omitempty"`
	OperationName string            `json:"operation_name,omitempty"`
	Status        traceModel.Status `json:"status,omitempty"`
	MinDurationMs float64           `json:"min_duration_ms,omitempty"`
	TimeRange
	Order SpanOrder `json:"order,omitempty"`
	Limit int       `json:"limit,omitempty"`
}

type MetricStorage interface {
	StoreMetric(ctx context.Context, metric ingestionModel.Metric) error
	QueryMetrics(ctx context.Context, query MetricQuery) ([]ingestionModel.Metric, error)
}

type LogStorage interface {
	StoreLog(ctx context.Context, entry ingestionModel.LogEntry) error
	QueryLogs(ctx context.Context, query LogQuery) ([]ingestionModel.LogEntry, error)
}

type TraceStorage interface {
	StoreTraceSpan(ctx context.Context, span traceModel.Span) error
	QueryTraceSpans(ctx context.Context, query TraceQuery) ([]traceModel.Span, error)
}

// BulkMetricStorage is implemented by adapters able to persist a whole batch in one call.
type BulkMetricStorage interface {
	StoreMetrics(ctx context.Context, metrics []ingestionModel.Metric) error
}

type BulkLogStorage interface {
	StoreLogs(ctx context.Context, entries []ingestionModel.LogEntry) error
}

// Validate rejects queries without a tenant and normalises the limit.
func (q *MetricQuery) Validate() error {
	if q.TenantID == "" {
		return ErrTenantRequired
	}
	return normaliseCommon(&q.TimeRange, &q.Limit)
}

func (q *LogQuery) Validate() error {
	if q.TenantID == "" {
		return ErrTenantRequired
	}
	for _, level := range q.Levels {
		if !level.Valid() {
			return ErrInvalidQuery
		}
	}
	return normaliseCommon(&q.TimeRange, &q.Limit)
}

func (q *TraceQuery) Validate() error {
	if q.TenantID == "" {
		return ErrTenantRequired
	}
	if q.Status != "" && !q.Status.Valid() {
		return ErrInvalidQuery
	}
	if q.MinDurationMs < 0 || !q.Order.Valid() {
		return ErrInvalidQuery
	}
	return normaliseCommon(&q.TimeRange, &q.Limit)
}

func normaliseCommon(tr *TimeRange, limit *int) error {
	if tr.StartTime != nil && tr.EndTime != nil && tr.EndTime.Before(*tr.StartTime) {
		return ErrInvalidQuery
	}
	if *limit < 0 {
		return ErrInvalidQuery
	}
	if *limit == 0 {
		*limit = DefaultQueryLimit
	}
	return nil
}

func ContainsLevel(levels []ingestionModel.Level, level ingestionModel.Level) bool {
	if len(levels) == 0 {
		return true
	}
	for _, l := range levels {
		if l == level {
			return true
		}
	}
	return false
}

func ContainsName(names []string, name string) bool {
	if len(names) == 0 {
		return true
	}
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// MatchesSpan applies every TraceQuery filter except the tenant, which adapters
// partition on before matching.
func (q *TraceQuery) MatchesSpan(span traceModel.Span) bool {
	if q.TraceID != "" && span.TraceID != q.TraceID {
		return false
	}
	if q.SpanID != "" && span.SpanID != q.SpanID {
		return false
	}
	if q.ServiceName != "" && span.ServiceName != q.ServiceName {
		return false
	}
	if q.OperationName != "" && span.OperationName != q.OperationName {
		return false
	}
	if q.Status != "" && span.Status != q.Status {
		return false
	}
	if q.MinDurationMs > 0 && span.DurationMs < q.MinDurationMs {
		return false
	}
	return q.TimeRange.Contains(span.StartTime)
}

// SortSpans orders spans in place. Ties fall back to start time and then span id so results
// are stable across adapters.
func SortSpans(spans []traceModel.Span, order SpanOrder) {
	sort.SliceStable(spans, func(i, j int) bool {
		a, b := spans[i], spans[j]
		switch order {
		case OrderByDurationDesc:
			if a.DurationMs != b.DurationMs {
				return a.DurationMs > b.DurationMs
			}
			return a.StartTime.After(b.StartTime)
		case OrderByStartTimeDesc:
			if !a.StartTime.Equal(b.StartTime) {
				return a.StartTime.After(b.StartTime)
			}
			return a.SpanID > b.SpanID
		default:
			if !a.StartTime.Equal(b.StartTime) {
				return a.StartTime.Before(b.StartTime)
			}
			return a.SpanID < b.SpanID
		}
	})
}
