package memory

import (
	"context"
	"fmt"
	"github.com/Avi18971911/telemetry-core/internal/db/storage"
	ingestionModel "github.com/Avi18971911/telemetry-core/internal/ingestion/model"
	traceModel "github.com/Avi18971911/telemetry-core/internal/trace/model"
	"sort"
	"sync"
)

// TelemetryStorage keeps metrics, logs and spans in per-tenant maps. It backs development
// mode and tests.
type TelemetryStorage struct {
	metrics map[string][]ingestionModel.Metric
	logs    map[string][]ingestionModel.LogEntry
	spans   map[string]map[string][]traceModel.Span
	mu      sync.RWMutex
}

func NewTelemetryStorage() *TelemetryStorage {
	return &TelemetryStorage{
		metrics: make(map[string][]ingestionModel.Metric),
		logs:    make(map[string][]ingestionModel.LogEntry),
		spans:   make(map[string]map[string][]traceModel.Span),
	}
}

func (ts *TelemetryStorage) StoreMetric(_ context.Context, metric ingestionModel.Metric) error {
	if metric.TenantID == "" {
		return fmt.Errorf("error storing metric %s: %w", metric.Name, storage.ErrTenantRequired)
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.metrics[metric.TenantID] = append(ts.metrics[metric.TenantID], metric)
	return nil
}

func (ts *TelemetryStorage) StoreMetrics(ctx context.Context, metrics []ingestionModel.Metric) error {
	for _, metric := range metrics {
		if err := ts.StoreMetric(ctx, metric); err != nil {
			return err
		}
	}
	return nil
}

func (ts *TelemetryStorage) QueryMetrics(
	_ context.Context,
	query storage.MetricQuery,
) ([]ingestionModel.Metric, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	var result []ingestionModel.Metric
	for _, metric := range ts.metrics[query.TenantID] {
		if storage.ContainsName(query.MetricNames, metric.Name) && query.TimeRange.Contains(metric.Timestamp) {
			result = append(result, metric)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	return limit(result, query.Limit), nil
}

func (ts *TelemetryStorage) StoreLog(_ context.Context, entry ingestionModel.LogEntry) error {
	if entry.TenantID == "" {
		return fmt.Errorf("error storing log %s: %w", entry.Id, storage.ErrTenantRequired)
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.logs[entry.TenantID] = append(ts.logs[entry.TenantID], entry)
	return nil
}

func (ts *TelemetryStorage) StoreLogs(ctx context.Context, entries []ingestionModel.LogEntry) error {
	for _, entry := range entries {
		if err := ts.StoreLog(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

func (ts *TelemetryStorage) QueryLogs(
	_ context.Context,
	query storage.LogQuery,
) ([]ingestionModel.LogEntry, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	var result []ingestionModel.LogEntry
	for _, entry := range ts.logs[query.TenantID] {
		if !storage.ContainsLevel(query.Levels, entry.Level) {
			continue
		}
		if query.Service != "" && entry.Service != query.Service {
			continue
		}
		if query.TimeRange.Contains(entry.Timestamp) {
			result = append(result, entry)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	return limit(result, query.Limit), nil
}

func (ts *TelemetryStorage) StoreTraceSpan(_ context.Context, span traceModel.Span) error {
	if span.TenantID == "" {
		return fmt.Errorf("error storing span %s: %w", span.SpanID, storage.ErrTenantRequired)
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	traces, ok := ts.spans[span.TenantID]
	if !ok {
		traces = make(map[string][]traceModel.Span)
		ts.spans[span.TenantID] = traces
	}
	// a re-sent span replaces the stored copy
	spans := traces[span.TraceID]
	for i := range spans {
		if spans[i].SpanID == span.SpanID {
			spans[i] = span.Clone()
			return nil
		}
	}
	traces[span.TraceID] = append(spans, span.Clone())
	return nil
}

func (ts *TelemetryStorage) QueryTraceSpans(
	_ context.Context,
	query storage.TraceQuery,
) ([]traceModel.Span, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	traces := ts.spans[query.TenantID]
	var candidates [][]traceModel.Span
	if query.TraceID != "" {
		candidates = [][]traceModel.Span{traces[query.TraceID]}
	} else {
		for _, spans := range traces {
			candidates = append(candidates, spans)
		}
	}
	var result []traceModel.Span
	for _, spans := range candidates {
		for _, span := range spans {
			if query.MatchesSpan(span) {
				result = append(result, span.Clone())
			}
		}
	}
	storage.SortSpans(result, query.Order)
	return limit(result, query.Limit), nil
}

func limit[T any](values []T, n int) []T {
	if n > 0 && len(values) > n {
		return values[:n]
	}
	return values
}
