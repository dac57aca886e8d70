package handler

import (
	"github.com/Avi18971911/telemetry-core/internal/query_server/service/telemetry"
	"go.uber.org/zap"
	"net/http"
)

const statusOK = "ok"

// HealthHandler creates a handler reporting liveness and ingestion queue state.
// @Summary Liveness and ingestion statistics.
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponseDTO "Service is up"
// @Router /health [get]
func HealthHandler(
	qs telemetry.TelemetryQueryService,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, HealthResponseDTO{Status: statusOK, Ingestion: qs.GetIngestionStats()}, logger)
	}
}
