package handler

import (
	"encoding/json"
	"errors"
	"github.com/Avi18971911/telemetry-core/internal/correlation"
	"github.com/Avi18971911/telemetry-core/internal/db/storage"
	"go.uber.org/zap"
	"net/http"
)

// ErrorMessage is the body of every non-2xx response
// @swagger:model ErrorMessage
type ErrorMessage struct {
	// A human readable description of the failure
	Message string `json:"message"`
}

func HttpError(w http.ResponseWriter, message string, code int, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorMessage{Message: message}); err != nil {
		logger.Error("Error encountered when encoding error response", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, body interface{}, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Error encountered when encoding response", zap.Error(err))
	}
}

// requireTenant writes a 400 and returns false when the request carries no tenant.
func requireTenant(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	tenantID := correlation.TenantID(r.Context())
	if tenantID == "" {
		HttpError(w, correlation.TenantIDHeader+" header is required", http.StatusBadRequest, logger)
		return "", false
	}
	return tenantID, true
}

func writeQueryError(w http.ResponseWriter, r *http.Request, err error, logger *zap.Logger) {
	if errors.Is(err, storage.ErrInvalidQuery) || errors.Is(err, storage.ErrTenantRequired) {
		HttpError(w, err.Error(), http.StatusBadRequest, logger)
		return
	}
	logger.Error(
		"Error encountered when querying telemetry",
		append(correlation.ZapFields(r.Context()), zap.Error(err))...,
	)
	HttpError(w, "Internal server error", http.StatusInternalServerError, logger)
}
