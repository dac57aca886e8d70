package handler

import (
	"context"
	"encoding/json"
	"github.com/Avi18971911/telemetry-core/internal/correlation"
	"github.com/Avi18971911/telemetry-core/internal/db/memory"
	ingestionModel "github.com/Avi18971911/telemetry-core/internal/ingestion/model"
	perfService "github.com/Avi18971911/telemetry-core/internal/performance/service"
	"github.com/Avi18971911/telemetry-core/internal/query_server/service/telemetry"
	traceModel "github.com/Avi18971911/telemetry-core/internal/trace/model"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

var baseTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newQueryService(t *testing.T) telemetry.TelemetryQueryService {
	store := memory.NewTelemetryStorage()
	ctx := context.Background()
	for _, s := range []traceModel.Span{
		finishedSpan("t1", "s1", "checkout", 0, 120, traceModel.StatusError),
		finishedSpan("t1", "s2", "charge", time.Millisecond, 40, traceModel.StatusOK),
		finishedSpan("t2", "s3", "checkout", time.Second, 2500, traceModel.StatusOK),
	} {
		require.NoError(t, store.StoreTraceSpan(ctx, s))
	}
	require.NoError(t, store.StoreLog(ctx, ingestionModel.LogEntry{
		Id: "l1", Timestamp: baseTime, Level: ingestionModel.ErrorLevel, Message: "boom", TenantID: "acme", Service: "shop",
	}))
	require.NoError(t, store.StoreLog(ctx, ingestionModel.LogEntry{
		Id: "l2", Timestamp: baseTime, Level: ingestionModel.InfoLevel, Message: "fine", TenantID: "acme", Service: "shop",
	}))
	require.NoError(t, store.StoreMetric(ctx, ingestionModel.Metric{
		Name: "cpu", Type: ingestionModel.Gauge, Value: 0.5, Timestamp: baseTime, TenantID: "acme",
	}))

	aggregator := perfService.NewPerformanceAggregator(nil, zap.NewNop())
	aggregator.Update(ctx, "checkout", 120, false)
	return telemetry.NewTelemetryQueryServiceImpl(store, store, store, aggregator, nil, zap.NewNop())
}

func finishedSpan(traceID string, spanID string, op string, offset time.Duration, durationMs float64, status traceModel.Status) traceModel.Span {
	start := baseTime.Add(offset)
	end := start.Add(time.Duration(durationMs * float64(time.Millisecond)))
	return traceModel.Span{
		TraceID:       traceID,
		SpanID:        spanID,
		OperationName: op,
		ServiceName:   "shop",
		TenantID:      "acme",
		StartTime:     start,
		EndTime:       &end,
		DurationMs:    durationMs,
		Status:        status,
	}
}

func tenantRequest(method string, target string, body string, vars map[string]string) *http.Request {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	r = r.WithContext(correlation.NewContext(r.Context(), correlation.Context{TenantID: "acme"}))
	if vars != nil {
		r = mux.SetURLVars(r, vars)
	}
	return r
}

func TestTraceHandlers(t *testing.T) {
	qs := newQueryService(t)
	logger := zap.NewNop()

	t.Run("TraceHandler returns the spans of the trace", func(t *testing.T) {
		w := httptest.NewRecorder()
		TraceHandler(qs, logger)(w, tenantRequest(http.MethodGet, "/traces/t1", "", map[string]string{"trace_id": "t1"}))

		require.Equal(t, http.StatusOK, w.Code)
		var res TraceResponseDTO
		require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
		assert.Equal(t, "t1", res.TraceID)
		assert.Len(t, res.Spans, 2)
	})

	t.Run("Missing tenant is a bad request", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/traces/t1", nil), map[string]string{"trace_id": "t1"})
		TraceHandler(qs, logger)(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var res ErrorMessage
		require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
		assert.Contains(t, res.Message, correlation.TenantIDHeader)
	})

	t.Run("Unknown trace yields an empty list", func(t *testing.T) {
		w := httptest.NewRecorder()
		TraceHandler(qs, logger)(w, tenantRequest(http.MethodGet, "/traces/nope", "", map[string]string{"trace_id": "nope"}))

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"trace_id":"nope","spans":[]}`, w.Body.String())
	})

	t.Run("SpanHandler finds one span and 404s otherwise", func(t *testing.T) {
		w := httptest.NewRecorder()
		SpanHandler(qs, logger)(w, tenantRequest(http.MethodGet, "/", "", map[string]string{"trace_id": "t1", "span_id": "s2"}))
		require.Equal(t, http.StatusOK, w.Code)
		var span traceModel.Span
		require.NoError(t, json.NewDecoder(w.Body).Decode(&span))
		assert.Equal(t, "charge", span.OperationName)

		w = httptest.NewRecorder()
		SpanHandler(qs, logger)(w, tenantRequest(http.MethodGet, "/", "", map[string]string{"trace_id": "t1", "span_id": "zz"}))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("SlowTracesHandler applies the threshold", func(t *testing.T) {
		w := httptest.NewRecorder()
		SlowTracesHandler(qs, logger)(w, tenantRequest(http.MethodGet, "/traces/slow?threshold_ms=100&limit=5", "", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var res SpansResponseDTO
		require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
		require.Len(t, res.Spans, 2)
		assert.Equal(t, "s3", res.Spans[0].SpanID)
		assert.Equal(t, "s1", res.Spans[1].SpanID)
	})

	t.Run("SlowTracesHandler rejects malformed parameters", func(t *testing.T) {
		w := httptest.NewRecorder()
		SlowTracesHandler(qs, logger)(w, tenantRequest(http.MethodGet, "/traces/slow?threshold_ms=abc", "", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = httptest.NewRecorder()
		SlowTracesHandler(qs, logger)(w, tenantRequest(http.MethodGet, "/traces/slow?limit=-1", "", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("ErrorTracesHandler returns failed spans", func(t *testing.T) {
		w := httptest.NewRecorder()
		ErrorTracesHandler(qs, logger)(w, tenantRequest(http.MethodGet, "/traces/errors", "", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var res SpansResponseDTO
		require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
		require.Len(t, res.Spans, 1)
		assert.Equal(t, traceModel.StatusError, res.Spans[0].Status)
	})
}

func TestPerformanceHandlers(t *testing.T) {
	qs := newQueryService(t)
	logger := zap.NewNop()

	t.Run("Returns every operation without a filter", func(t *testing.T) {
		w := httptest.NewRecorder()
		PerformanceHandler(qs, logger)(w, httptest.NewRequest(http.MethodGet, "/performance", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var res PerformanceResponseDTO
		require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
		require.Contains(t, res.Operations, "checkout")
		assert.Equal(t, int64(1), res.Operations["checkout"].FailedRequests)
	})

	t.Run("Unknown operation is not found", func(t *testing.T) {
		w := httptest.NewRecorder()
		PerformanceHandler(qs, logger)(w, httptest.NewRequest(http.MethodGet, "/performance?operation=login", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Percentiles come from stored spans", func(t *testing.T) {
		w := httptest.NewRecorder()
		PercentilesHandler(qs, logger)(w, tenantRequest(http.MethodGet, "/", "", map[string]string{"operation": "checkout"}))

		require.Equal(t, http.StatusOK, w.Code)
		var res map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
		assert.Equal(t, float64(2), res["sample_count"])
		assert.Equal(t, float64(2500), res["p99"])
	})
}

func TestSearchHandlers(t *testing.T) {
	qs := newQueryService(t)
	logger := zap.NewNop()

	t.Run("Filters logs by level", func(t *testing.T) {
		w := httptest.NewRecorder()
		LogSearchHandler(qs, logger)(w, tenantRequest(http.MethodPost, "/logs/search", `{"levels":["error"]}`, nil))

		require.Equal(t, http.StatusOK, w.Code)
		var res LogsResponseDTO
		require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
		require.Len(t, res.Logs, 1)
		assert.Equal(t, "boom", res.Logs[0].Message)
	})

	t.Run("Empty body means no filters", func(t *testing.T) {
		w := httptest.NewRecorder()
		LogSearchHandler(qs, logger)(w, tenantRequest(http.MethodPost, "/logs/search", "", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var res LogsResponseDTO
		require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
		assert.Len(t, res.Logs, 2)
	})

	t.Run("Unknown level is a bad request", func(t *testing.T) {
		w := httptest.NewRecorder()
		LogSearchHandler(qs, logger)(w, tenantRequest(http.MethodPost, "/logs/search", `{"levels":["loud"]}`, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Malformed payload is a bad request", func(t *testing.T) {
		w := httptest.NewRecorder()
		MetricSearchHandler(qs, logger)(w, tenantRequest(http.MethodPost, "/metrics/search", `{`, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Filters metrics by name", func(t *testing.T) {
		w := httptest.NewRecorder()
		MetricSearchHandler(qs, logger)(w, tenantRequest(http.MethodPost, "/metrics/search", `{"metric_names":["cpu"]}`, nil))

		require.Equal(t, http.StatusOK, w.Code)
		var res MetricsResponseDTO
		require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
		require.Len(t, res.Metrics, 1)
		assert.Equal(t, 0.5, res.Metrics[0].Value)
	})
}

func TestHealthHandler(t *testing.T) {
	w := httptest.NewRecorder()
	HealthHandler(newQueryService(t), zap.NewNop())(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var res HealthResponseDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.Equal(t, "ok", res.Status)
}
