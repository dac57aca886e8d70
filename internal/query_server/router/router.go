package router

import (
	"github.com/Avi18971911/telemetry-core/internal/metrics"
	"github.com/Avi18971911/telemetry-core/internal/query_server/handler"
	"github.com/Avi18971911/telemetry-core/internal/query_server/service/telemetry"
	traceService "github.com/Avi18971911/telemetry-core/internal/trace/service"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"net/http"
)

const (
	healthRoute  = "/health"
	metricsRoute = "/metrics"
)

func CreateRouter(
	queryService telemetry.TelemetryQueryService,
	recorder traceService.SpanRecorder,
	m *metrics.Metrics,
	logger *zap.Logger,
) http.Handler {
	r := mux.NewRouter()

	// Static /traces routes must be registered before /traces/{trace_id}.
	r.Handle("/traces/slow", handler.SlowTracesHandler(queryService, logger)).Methods("GET")
	r.Handle("/traces/errors", handler.ErrorTracesHandler(queryService, logger)).Methods("GET")
	r.Handle("/traces/{trace_id}", handler.TraceHandler(queryService, logger)).Methods("GET")
	r.Handle("/traces/{trace_id}/spans/{span_id}", handler.SpanHandler(queryService, logger)).Methods("GET")

	r.Handle("/performance", handler.PerformanceHandler(queryService, logger)).Methods("GET")
	r.Handle(
		"/performance/{operation}/percentiles",
		handler.PercentilesHandler(queryService, logger),
	).Methods("GET")

	r.Handle("/logs/search", handler.LogSearchHandler(queryService, logger)).Methods("POST")
	r.Handle("/metrics/search", handler.MetricSearchHandler(queryService, logger)).Methods("POST")

	r.Handle(healthRoute, handler.HealthHandler(queryService, logger)).Methods("GET")
	if m != nil {
		r.Handle(metricsRoute, m.Handler()).Methods("GET")
		r.Use(MetricsMiddleware(m))
	}

	if recorder != nil {
		untraced := map[string]bool{healthRoute: true, metricsRoute: true}
		r.Use(CorrelationMiddleware(recorder, untraced, logger))
	}

	return r
}
