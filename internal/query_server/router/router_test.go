package router

import (
	"context"
	"errors"
	"github.com/Avi18971911/telemetry-core/internal/correlation"
	"github.com/Avi18971911/telemetry-core/internal/db/memory"
	"github.com/Avi18971911/telemetry-core/internal/db/storage"
	"github.com/Avi18971911/telemetry-core/internal/metrics"
	perfService "github.com/Avi18971911/telemetry-core/internal/performance/service"
	"github.com/Avi18971911/telemetry-core/internal/query_server/service/telemetry"
	traceModel "github.com/Avi18971911/telemetry-core/internal/trace/model"
	traceService "github.com/Avi18971911/telemetry-core/internal/trace/service"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"net/http"
	"net/http/httptest"
	"testing"
)

type brokenTraceStorage struct{}

func (brokenTraceStorage) StoreTraceSpan(context.Context, traceModel.Span) error {
	return errors.New("down")
}

func (brokenTraceStorage) QueryTraceSpans(context.Context, storage.TraceQuery) ([]traceModel.Span, error) {
	return nil, errors.New("down")
}

type routerFixture struct {
	handler  http.Handler
	recorded *memory.TelemetryStorage
	metrics  *metrics.Metrics
}

func newRouterFixture(queryTraces storage.TraceStorage) routerFixture {
	logger := zap.NewNop()
	recorded := memory.NewTelemetryStorage()
	if queryTraces == nil {
		queryTraces = recorded
	}
	aggregator := perfService.NewPerformanceAggregator(nil, logger)
	m := metrics.NewMetrics("test", false)
	recorder := traceService.NewSpanRecorderImpl("query-api", recorded, aggregator, nil, m, nil, logger)
	qs := telemetry.NewTelemetryQueryServiceImpl(queryTraces, recorded, recorded, aggregator, nil, logger)
	return routerFixture{
		handler:  CreateRouter(qs, recorder, m, logger),
		recorded: recorded,
		metrics:  m,
	}
}

func (f routerFixture) serverSpans(t *testing.T, traceID string) []traceModel.Span {
	spans, err := f.recorded.QueryTraceSpans(context.Background(), storage.TraceQuery{TenantID: "acme", TraceID: traceID})
	require.NoError(t, err)
	return spans
}

func TestCreateRouter_Correlation(t *testing.T) {
	t.Run("Continues the inbound trace and echoes its ids", func(t *testing.T) {
		f := newRouterFixture(nil)
		r := httptest.NewRequest(http.MethodGet, "/traces/abc123", nil)
		r.Header.Set(correlation.TraceIDHeader, "abc123")
		r.Header.Set(correlation.ParentSpanIDHeader, "caller01")
		r.Header.Set(correlation.TenantIDHeader, "acme")
		w := httptest.NewRecorder()

		f.handler.ServeHTTP(w, r)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "abc123", w.Header().Get(correlation.TraceIDHeader))
		spanID := w.Header().Get(correlation.SpanIDHeader)
		assert.NotEmpty(t, spanID)
		assert.NotEmpty(t, w.Header().Get(correlation.RequestIDHeader))

		spans := f.serverSpans(t, "abc123")
		require.Len(t, spans, 1)
		assert.Equal(t, spanID, spans[0].SpanID)
		assert.Equal(t, "caller01", spans[0].ParentSpanID)
		assert.Equal(t, "GET /traces/{trace_id}", spans[0].OperationName)
		assert.Equal(t, traceModel.StatusOK, spans[0].Status)
	})

	t.Run("Starts a new trace when none is propagated", func(t *testing.T) {
		f := newRouterFixture(nil)
		r := httptest.NewRequest(http.MethodGet, "/traces/errors", nil)
		r.Header.Set(correlation.TenantIDHeader, "acme")
		w := httptest.NewRecorder()

		f.handler.ServeHTTP(w, r)

		require.Equal(t, http.StatusOK, w.Code)
		traceID := w.Header().Get(correlation.TraceIDHeader)
		assert.Len(t, traceID, 32)
		spans := f.serverSpans(t, traceID)
		require.Len(t, spans, 1)
		assert.True(t, spans[0].IsRoot())
		assert.Equal(t, "GET /traces/errors", spans[0].OperationName)
	})

	t.Run("Server errors mark the span as failed", func(t *testing.T) {
		f := newRouterFixture(brokenTraceStorage{})
		r := httptest.NewRequest(http.MethodGet, "/traces/t1", nil)
		r.Header.Set(correlation.TraceIDHeader, "feed01")
		r.Header.Set(correlation.TenantIDHeader, "acme")
		w := httptest.NewRecorder()

		f.handler.ServeHTTP(w, r)

		require.Equal(t, http.StatusInternalServerError, w.Code)
		spans := f.serverSpans(t, "feed01")
		require.Len(t, spans, 1)
		assert.Equal(t, traceModel.StatusError, spans[0].Status)
		assert.Contains(t, spans[0].ErrorMessage, "500")
	})

	t.Run("Client errors keep the span successful", func(t *testing.T) {
		f := newRouterFixture(nil)
		r := httptest.NewRequest(http.MethodGet, "/traces/t1/spans/missing", nil)
		r.Header.Set(correlation.TraceIDHeader, "feed02")
		r.Header.Set(correlation.TenantIDHeader, "acme")
		w := httptest.NewRecorder()

		f.handler.ServeHTTP(w, r)

		require.Equal(t, http.StatusNotFound, w.Code)
		spans := f.serverSpans(t, "feed02")
		require.Len(t, spans, 1)
		assert.Equal(t, traceModel.StatusOK, spans[0].Status)
	})
}

func TestCreateRouter_Routes(t *testing.T) {
	t.Run("Static trace routes win over the trace id route", func(t *testing.T) {
		f := newRouterFixture(nil)
		r := httptest.NewRequest(http.MethodGet, "/traces/slow?threshold_ms=1", nil)
		r.Header.Set(correlation.TenantIDHeader, "acme")
		w := httptest.NewRecorder()

		f.handler.ServeHTTP(w, r)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"spans":[]}`, w.Body.String())
	})

	t.Run("Health is served without recording a span", func(t *testing.T) {
		f := newRouterFixture(nil)
		r := httptest.NewRequest(http.MethodGet, "/health", nil)
		r.Header.Set(correlation.TenantIDHeader, "acme")
		w := httptest.NewRecorder()

		f.handler.ServeHTTP(w, r)

		require.Equal(t, http.StatusOK, w.Code)
		traceID := w.Header().Get(correlation.TraceIDHeader)
		require.NotEmpty(t, traceID)
		assert.Empty(t, f.serverSpans(t, traceID))
	})

	t.Run("Requests are counted per route and exposed on /metrics", func(t *testing.T) {
		f := newRouterFixture(nil)
		for i := 0; i < 2; i++ {
			f.handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/performance", nil))
		}

		assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.HTTPRequests.WithLabelValues("/performance", "200")))

		w := httptest.NewRecorder()
		f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "telemetry_core_http_requests_total")
	})

	t.Run("Unknown methods are not routed", func(t *testing.T) {
		f := newRouterFixture(nil)
		w := httptest.NewRecorder()
		f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/performance", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}
