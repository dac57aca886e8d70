package handler

import (
	"encoding/json"
	"github.com/Avi18971911/telemetry-core/internal/query_server/service/telemetry"
	"go.uber.org/zap"
	"io"
	"net/http"
)

// LogSearchHandler creates a handler for searching logs using search parameters.
// @Summary Search the logs of the calling tenant.
// @Tags logs
// @Accept json
// @Produce json
// @Param search body LogSearchRequestDTO false "The optional search parameters"
// @Success 200 {object} LogsResponseDTO "Matching logs, most recent first"
// @Failure 400 {object} ErrorMessage "Invalid request payload"
// @Failure 500 {object} ErrorMessage "Internal server error"
// @Router /logs/search [post]
func LogSearchHandler(
	qs telemetry.TelemetryQueryService,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := requireTenant(w, r, logger)
		if !ok {
			return
		}
		var req LogSearchRequestDTO
		if !decodeBody(w, r, &req, logger) {
			return
		}

		entries, err := qs.QueryLogs(r.Context(), req.toQuery(tenantID))
		if err != nil {
			writeQueryError(w, r, err, logger)
			return
		}
		writeJSON(w, LogsResponseDTO{Logs: nonNil(entries)}, logger)
	}
}

// MetricSearchHandler creates a handler for searching metrics using search parameters.
// @Summary Search the metrics of the calling tenant.
// @Tags metrics
// @Accept json
// @Produce json
// @Param search body MetricSearchRequestDTO false "The optional search parameters"
// @Success 200 {object} MetricsResponseDTO "Matching metrics, most recent first"
// @Failure 400 {object} ErrorMessage "Invalid request payload"
// @Router /metrics/search [post]
func MetricSearchHandler(
	qs telemetry.TelemetryQueryService,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := requireTenant(w, r, logger)
		if !ok {
			return
		}
		var req MetricSearchRequestDTO
		if !decodeBody(w, r, &req, logger) {
			return
		}

		metrics, err := qs.QueryMetrics(r.Context(), req.toQuery(tenantID))
		if err != nil {
			writeQueryError(w, r, err, logger)
			return
		}
		writeJSON(w, MetricsResponseDTO{Metrics: nonNil(metrics)}, logger)
	}
}

// decodeBody accepts an empty body as "no filters".
func decodeBody(w http.ResponseWriter, r *http.Request, req interface{}, logger *zap.Logger) bool {
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			logger.Error("Error encountered when closing request body", zap.Error(err))
		}
	}(r.Body)

	err := json.NewDecoder(r.Body).Decode(req)
	if err != nil && err != io.EOF {
		logger.Error("Error encountered when decoding request body", zap.Error(err))
		HttpError(w, "Invalid request payload", http.StatusBadRequest, logger)
		return false
	}
	return true
}
