package handler

import (
	"errors"
	perfModel "github.com/Avi18971911/telemetry-core/internal/performance/model"
	"github.com/Avi18971911/telemetry-core/internal/query_server/service/telemetry"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"net/http"
)

// PerformanceHandler creates a handler for the aggregated performance statistics.
// @Summary Get performance statistics of one or every operation.
// @Tags performance
// @Produce json
// @Param operation query string false "Restrict the result to one operation"
// @Success 200 {object} PerformanceResponseDTO "Statistics keyed by operation"
// @Failure 404 {object} ErrorMessage "Operation never recorded"
// @Router /performance [get]
func PerformanceHandler(
	qs telemetry.TelemetryQueryService,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		operation := r.URL.Query().Get("operation")
		if operation == "" {
			writeJSON(w, PerformanceResponseDTO{Operations: qs.GetAllPerformance()}, logger)
			return
		}

		record, ok := qs.GetPerformance(operation)
		if !ok {
			HttpError(w, "No statistics for operation "+operation, http.StatusNotFound, logger)
			return
		}
		writeJSON(
			w,
			PerformanceResponseDTO{Operations: map[string]perfModel.PerformanceRecord{operation: record}},
			logger,
		)
	}
}

// PercentilesHandler creates a handler for the latency percentiles of an operation.
// @Summary Get p50, p95 and p99 of the stored durations of an operation.
// @Tags performance
// @Produce json
// @Param operation path string true "The operation name"
// @Success 200 {object} model.LatencyPercentiles "Latency percentiles"
// @Failure 400 {object} ErrorMessage "Missing tenant"
// @Router /performance/{operation}/percentiles [get]
func PercentilesHandler(
	qs telemetry.TelemetryQueryService,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := requireTenant(w, r, logger)
		if !ok {
			return
		}

		percentiles, err := qs.GetLatencyPercentiles(r.Context(), tenantID, mux.Vars(r)["operation"])
		if errors.Is(err, telemetry.ErrOperationRequired) {
			HttpError(w, err.Error(), http.StatusBadRequest, logger)
			return
		}
		if err != nil {
			writeQueryError(w, r, err, logger)
			return
		}
		writeJSON(w, percentiles, logger)
	}
}
