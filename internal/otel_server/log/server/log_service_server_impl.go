package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"github.com/Avi18971911/telemetry-core/internal/ingestion/model"
	"github.com/Avi18971911/telemetry-core/internal/otel_server/common"
	protoLogs "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	v1 "go.opentelemetry.io/proto/otlp/logs/v1"
	"go.uber.org/zap"
	"time"
)

var errQueueRejected = errors.New("log queue rejected entry")

type LogSubmitter interface {
	SubmitLog(entry model.LogEntry) (bool, error)
}

// LogServiceServerImpl receives OTLP log records and hands them to the ingestion queue.
type LogServiceServerImpl struct {
	protoLogs.UnimplementedLogsServiceServer
	submitter LogSubmitter
	logger    *zap.Logger
}

func NewLogServiceServerImpl(
	submitter LogSubmitter,
	logger *zap.Logger,
) *LogServiceServerImpl {
	logger.Info("Creating new LogServiceServerImpl")
	return &LogServiceServerImpl{
		submitter: submitter,
		logger:    logger,
	}
}

func (lss *LogServiceServerImpl) Export(
	ctx context.Context,
	req *protoLogs.ExportLogsServiceRequest,
) (*protoLogs.ExportLogsServiceResponse, error) {
	var rejected int64
	var lastErr error
	for _, resourceLogs := range req.GetResourceLogs() {
		tenantID := common.TenantID(ctx, resourceLogs.GetResource())
		serviceName := common.ServiceName(resourceLogs.GetResource())
		for _, scopeLogs := range resourceLogs.GetScopeLogs() {
			component := scopeLogs.GetScope().GetName()
			for _, record := range scopeLogs.GetLogRecords() {
				entry := typeLog(record, tenantID, serviceName, component)
				accepted, err := lss.submitter.SubmitLog(entry)
				if err != nil || !accepted {
					if err == nil {
						err = errQueueRejected
					}
					rejected++
					lastErr = err
				}
			}
		}
	}

	response := &protoLogs.ExportLogsServiceResponse{}
	if rejected > 0 {
		lss.logger.Warn("Rejected OTLP log records", zap.Int64("rejected", rejected), zap.Error(lastErr))
		response.PartialSuccess = &protoLogs.ExportLogsPartialSuccess{
			RejectedLogRecords: rejected,
			ErrorMessage:       fmt.Sprintf("%d log records rejected: %v", rejected, lastErr),
		}
	}
	return response, nil
}

func typeLog(record *v1.LogRecord, tenantID string, serviceName string, component string) model.LogEntry {
	timestamp := record.GetTimeUnixNano()
	if timestamp == 0 {
		timestamp = record.GetObservedTimeUnixNano()
	}
	ts := common.UnixNano(timestamp)
	if timestamp == 0 {
		ts = time.Now().UTC()
	}
	message := record.GetBody().GetStringValue()

	return model.LogEntry{
		Id:            generateLogId(tenantID, ts, message),
		Timestamp:     ts,
		Level:         getSeverity(record.GetSeverityNumber()),
		Message:       message,
		TenantID:      tenantID,
		Service:       serviceName,
		Component:     component,
		Fields:        common.Attributes(record.GetAttributes()),
		RequestID:     common.StringAttribute(record.GetAttributes(), common.RequestAttribute),
		CorrelationID: hex.EncodeToString(record.GetTraceId()),
		UserID:        common.StringAttribute(record.GetAttributes(), common.UserAttribute),
	}
}

func getSeverity(severityNumber v1.SeverityNumber) model.Level {
	switch {
	case severityNumber == v1.SeverityNumber_SEVERITY_NUMBER_UNSPECIFIED:
		return model.InfoLevel
	case severityNumber < v1.SeverityNumber_SEVERITY_NUMBER_INFO:
		return model.DebugLevel
	case severityNumber < v1.SeverityNumber_SEVERITY_NUMBER_WARN:
		return model.InfoLevel
	case severityNumber < v1.SeverityNumber_SEVERITY_NUMBER_ERROR:
		return model.WarnLevel
	default:
		return model.ErrorLevel
	}
}

// redelivered records keep their id so they replace rather than duplicate
func generateLogId(tenantID string, timestamp time.Time, message string) string {
	data := fmt.Sprintf("%s:%s:%s", tenantID, timestamp.Format(time.RFC3339Nano), message)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
