package memory

import (
	"context"
	"fmt"
	"github.com/Avi18971911/telemetry-core/internal/db/storage"
	ingestionModel "github.com/Avi18971911/telemetry-core/internal/ingestion/model"
	traceModel "github.com/Avi18971911/telemetry-core/internal/trace/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestTelemetryStorage_Spans(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(120 * time.Millisecond)

	t.Run("Round trip returns an equal span", func(t *testing.T) {
		ts := NewTelemetryStorage()
		span := traceModel.Span{
			TraceID:       "trace-1",
			SpanID:        "span-1",
			OperationName: "checkout",
			ServiceName:   "api",
			TenantID:      "tenant-a",
			UserID:        "user-1",
			StartTime:     start,
			EndTime:       &end,
			DurationMs:    120,
			Status:        traceModel.StatusError,
			ErrorMessage:  "card declined",
			Tags:          map[string]interface{}{"cart_size": 3},
		}
		require.NoError(t, ts.StoreTraceSpan(ctx, span))

		res, err := ts.QueryTraceSpans(ctx, storage.TraceQuery{TenantID: "tenant-a", TraceID: "trace-1", SpanID: "span-1"})
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, span, res[0])
	})

	t.Run("Queries never cross tenants", func(t *testing.T) {
		ts := NewTelemetryStorage()
		require.NoError(t, ts.StoreTraceSpan(ctx, traceModel.Span{TraceID: "trace-1", SpanID: "a", TenantID: "tenant-a", StartTime: start}))
		require.NoError(t, ts.StoreTraceSpan(ctx, traceModel.Span{TraceID: "trace-1", SpanID: "b", TenantID: "tenant-b", StartTime: start}))

		res, err := ts.QueryTraceSpans(ctx, storage.TraceQuery{TenantID: "tenant-b", TraceID: "trace-1"})
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, "b", res[0].SpanID)

		_, err = ts.QueryTraceSpans(ctx, storage.TraceQuery{TraceID: "trace-1"})
		assert.ErrorIs(t, err, storage.ErrTenantRequired)
	})

	t.Run("Rejects spans without tenant", func(t *testing.T) {
		ts := NewTelemetryStorage()
		err := ts.StoreTraceSpan(ctx, traceModel.Span{TraceID: "t", SpanID: "s"})
		assert.ErrorIs(t, err, storage.ErrTenantRequired)
	})

	t.Run("Orders spans by start time", func(t *testing.T) {
		ts := NewTelemetryStorage()
		require.NoError(t, ts.StoreTraceSpan(ctx, traceModel.Span{TraceID: "t", SpanID: "late", TenantID: "x", StartTime: start.Add(time.Second)}))
		require.NoError(t, ts.StoreTraceSpan(ctx, traceModel.Span{TraceID: "t", SpanID: "early", TenantID: "x", StartTime: start}))
		res, err := ts.QueryTraceSpans(ctx, storage.TraceQuery{TenantID: "x", TraceID: "t"})
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, "early", res[0].SpanID)
	})

	t.Run("Storing the same span twice keeps one copy", func(t *testing.T) {
		ts := NewTelemetryStorage()
		span := traceModel.Span{TraceID: "t", SpanID: "s", TenantID: "x", StartTime: start, Status: traceModel.StatusError}
		require.NoError(t, ts.StoreTraceSpan(ctx, span))
		span.Status = traceModel.StatusOK
		require.NoError(t, ts.StoreTraceSpan(ctx, span))

		res, err := ts.QueryTraceSpans(ctx, storage.TraceQuery{TenantID: "x", TraceID: "t"})
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, traceModel.StatusOK, res[0].Status)
	})

	t.Run("Same identifiers under another tenant do not replace the span", func(t *testing.T) {
		ts := NewTelemetryStorage()
		require.NoError(t, ts.StoreTraceSpan(ctx, traceModel.Span{TraceID: "t", SpanID: "s", TenantID: "x", OperationName: "mine", StartTime: start}))
		require.NoError(t, ts.StoreTraceSpan(ctx, traceModel.Span{TraceID: "t", SpanID: "s", TenantID: "y", OperationName: "theirs", StartTime: start}))

		res, err := ts.QueryTraceSpans(ctx, storage.TraceQuery{TenantID: "x", TraceID: "t", SpanID: "s"})
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, "mine", res[0].OperationName)
	})

	t.Run("Order is applied before the limit", func(t *testing.T) {
		ts := NewTelemetryStorage()
		for i := 0; i < 5; i++ {
			require.NoError(t, ts.StoreTraceSpan(ctx, traceModel.Span{
				TraceID:    fmt.Sprintf("t%d", i),
				SpanID:     fmt.Sprintf("s%d", i),
				TenantID:   "x",
				StartTime:  start.Add(time.Duration(i) * time.Second),
				DurationMs: float64(10 * (i % 3)),
			}))
		}

		newest, err := ts.QueryTraceSpans(ctx, storage.TraceQuery{TenantID: "x", Order: storage.OrderByStartTimeDesc, Limit: 2})
		require.NoError(t, err)
		require.Len(t, newest, 2)
		assert.Equal(t, "s4", newest[0].SpanID)
		assert.Equal(t, "s3", newest[1].SpanID)

		slowest, err := ts.QueryTraceSpans(ctx, storage.TraceQuery{TenantID: "x", Order: storage.OrderByDurationDesc, Limit: 1})
		require.NoError(t, err)
		require.Len(t, slowest, 1)
		assert.Equal(t, "s2", slowest[0].SpanID)
	})
}

func TestTelemetryStorage_LogsAndMetrics(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("Filters logs by level and service", func(t *testing.T) {
		ts := NewTelemetryStorage()
		require.NoError(t, ts.StoreLogs(ctx, []ingestionModel.LogEntry{
			{Id: "1", TenantID: "x", Level: ingestionModel.ErrorLevel, Service: "api", Timestamp: now},
			{Id: "2", TenantID: "x", Level: ingestionModel.InfoLevel, Service: "api", Timestamp: now},
			{Id: "3", TenantID: "x", Level: ingestionModel.ErrorLevel, Service: "web", Timestamp: now},
			{Id: "4", TenantID: "y", Level: ingestionModel.ErrorLevel, Service: "api", Timestamp: now},
		}))
		res, err := ts.QueryLogs(ctx, storage.LogQuery{
			TenantID: "x",
			Levels:   []ingestionModel.Level{ingestionModel.ErrorLevel},
			Service:  "api",
		})
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, "1", res[0].Id)
	})

	t.Run("Filters metrics by name and time and applies the limit", func(t *testing.T) {
		ts := NewTelemetryStorage()
		for i := 0; i < 5; i++ {
			require.NoError(t, ts.StoreMetric(ctx, ingestionModel.Metric{
				Name:      "latency",
				Type:      ingestionModel.Gauge,
				Value:     float64(i),
				Timestamp: now.Add(time.Duration(i) * time.Minute),
				TenantID:  "x",
			}))
		}
		require.NoError(t, ts.StoreMetric(ctx, ingestionModel.Metric{Name: "other", TenantID: "x", Timestamp: now}))

		from := now.Add(time.Minute)
		res, err := ts.QueryMetrics(ctx, storage.MetricQuery{
			TenantID:    "x",
			MetricNames: []string{"latency"},
			TimeRange:   storage.TimeRange{StartTime: &from},
			Limit:       2,
		})
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, 4.0, res[0].Value)
		assert.Equal(t, 3.0, res[1].Value)
	})
}
