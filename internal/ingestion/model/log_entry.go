package model

import (
	"context"
	"errors"
	"fmt"
	"github.com/Avi18971911/telemetry-core/internal/correlation"
	"github.com/google/uuid"
	"time"
)

type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

var ErrInvalidLogEntry = errors.New("invalid log entry")

type LogEntry struct {
	Id            string                 `json:"_id,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
	Level         Level                  `json:"level"`
	Message       string                 `json:"message"`
	TenantID      string                 `json:"tenant_id"`
	Service       string                 `json:"service"`
	Component     string                 `json:"component,omitempty"`
	Fields        map[string]interface{} `json:"fields,omitempty"`
	RequestID     string                 `json:"request_id,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	UserID        string                 `json:"user_id,omitempty"`
}

// NewLogEntry builds an entry for the tenant of ctx and copies the request, trace and
// user identifiers of the correlation context when they are present.
func NewLogEntry(
	ctx context.Context,
	level Level,
	service string,
	component string,
	message string,
	fields map[string]interface{},
) (LogEntry, error) {
	c := correlation.Snapshot(ctx)
	entry := LogEntry{
		Id:            uuid.NewString(),
		Timestamp:     time.Now().UTC(),
		Level:         level,
		Message:       message,
		TenantID:      c.TenantID,
		Service:       service,
		Component:     component,
		Fields:        fields,
		RequestID:     c.RequestID,
		CorrelationID: c.TraceID,
		UserID:        c.UserID,
	}
	if err := entry.Validate(); err != nil {
		return LogEntry{}, err
	}
	return entry, nil
}

func (l LogEntry) Validate() error {
	if l.TenantID == "" {
		return fmt.Errorf("log entry has no tenant: %w", ErrInvalidLogEntry)
	}
	if !l.Level.Valid() {
		return fmt.Errorf("log entry has unknown level %q: %w", l.Level, ErrInvalidLogEntry)
	}
	if l.Timestamp.IsZero() {
		return fmt.Errorf("log entry has no timestamp: %w", ErrInvalidLogEntry)
	}
	return nil
}

func (l Level) Valid() bool {
	switch l {
	case DebugLevel, InfoLevel, WarnLevel, ErrorLevel:
		return true
	default:
		return false
	}
}
