package handler

import (
	"errors"
	"github.com/Avi18971911/telemetry-core/internal/db/storage"
	"github.com/Avi18971911/telemetry-core/internal/query_server/service/telemetry"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"net/http"
	"strconv"
)

// TraceHandler creates a handler for getting every span of a trace.
// @Summary Get all spans of a trace.
// @Tags traces
// @Produce json
// @Param trace_id path string true "The trace identifier"
// @Success 200 {object} TraceResponseDTO "Spans of the trace"
// @Failure 400 {object} ErrorMessage "Missing tenant"
// @Failure 500 {object} ErrorMessage "Internal server error"
// @Router /traces/{trace_id} [get]
func TraceHandler(
	qs telemetry.TelemetryQueryService,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := requireTenant(w, r, logger)
		if !ok {
			return
		}
		traceID := mux.Vars(r)["trace_id"]

		spans, err := qs.GetTrace(r.Context(), tenantID, traceID)
		if err != nil {
			writeQueryError(w, r, err, logger)
			return
		}
		writeJSON(w, TraceResponseDTO{TraceID: traceID, Spans: nonNil(spans)}, logger)
	}
}

// SpanHandler creates a handler for getting a single span.
// @Summary Get one span of a trace.
// @Tags traces
// @Produce json
// @Param trace_id path string true "The trace identifier"
// @Param span_id path string true "The span identifier"
// @Success 200 {object} model.Span "The span"
// @Failure 404 {object} ErrorMessage "Span not found"
// @Router /traces/{trace_id}/spans/{span_id} [get]
func SpanHandler(
	qs telemetry.TelemetryQueryService,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := requireTenant(w, r, logger)
		if !ok {
			return
		}
		vars := mux.Vars(r)

		span, err := qs.GetSpan(r.Context(), tenantID, vars["trace_id"], vars["span_id"])
		if errors.Is(err, telemetry.ErrSpanNotFound) {
			HttpError(w, "Span not found", http.StatusNotFound, logger)
			return
		}
		if err != nil {
			writeQueryError(w, r, err, logger)
			return
		}
		writeJSON(w, span, logger)
	}
}

// SlowTracesHandler creates a handler for spans slower than a threshold.
// @Summary Get spans slower than a threshold, slowest first.
// @Tags traces
// @Produce json
// @Param threshold_ms query number false "Minimum duration in milliseconds"
// @Param limit query int false "Maximum number of spans"
// @Success 200 {object} SpansResponseDTO "Slow spans"
// @Failure 400 {object} ErrorMessage "Invalid parameters"
// @Router /traces/slow [get]
func SlowTracesHandler(
	qs telemetry.TelemetryQueryService,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := requireTenant(w, r, logger)
		if !ok {
			return
		}
		threshold, err := floatParam(r, "threshold_ms", 1000)
		if err != nil {
			HttpError(w, "Invalid threshold_ms", http.StatusBadRequest, logger)
			return
		}
		limit, err := intParam(r, "limit", storage.DefaultQueryLimit)
		if err != nil {
			HttpError(w, "Invalid limit", http.StatusBadRequest, logger)
			return
		}

		spans, err := qs.GetSlowTraces(r.Context(), tenantID, threshold, limit)
		if err != nil {
			writeQueryError(w, r, err, logger)
			return
		}
		writeJSON(w, SpansResponseDTO{Spans: nonNil(spans)}, logger)
	}
}

// ErrorTracesHandler creates a handler for failed spans.
// @Summary Get failed spans, most recent first.
// @Tags traces
// @Produce json
// @Param limit query int false "Maximum number of spans"
// @Success 200 {object} SpansResponseDTO "Failed spans"
// @Router /traces/errors [get]
func ErrorTracesHandler(
	qs telemetry.TelemetryQueryService,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := requireTenant(w, r, logger)
		if !ok {
			return
		}
		limit, err := intParam(r, "limit", storage.DefaultQueryLimit)
		if err != nil {
			HttpError(w, "Invalid limit", http.StatusBadRequest, logger)
			return
		}

		spans, err := qs.GetErrorTraces(r.Context(), tenantID, limit)
		if err != nil {
			writeQueryError(w, r, err, logger)
			return
		}
		writeJSON(w, SpansResponseDTO{Spans: nonNil(spans)}, logger)
	}
}

func floatParam(r *http.Request, name string, fallback float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 {
		return 0, storage.ErrInvalidQuery
	}
	return value, nil
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, storage.ErrInvalidQuery
	}
	return value, nil
}
