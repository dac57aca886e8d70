package model

import "time"

type Status string

const (
	StatusOK    Status = "OK"
	StatusError Status = "ERROR"
)

func (s Status) Valid() bool {
	return s == StatusOK || s == StatusError
}

// Span is active while EndTime is nil and write-once after it has been finished.
// An empty ParentSpanID marks the root span of a trace.
type Span struct {
	TraceID       string                 `json:"trace_id"`
	SpanID        string                 `json:"span_id"`
	ParentSpanID  string                 `json:"parent_span_id,omitempty"`
	OperationName string                 `json:"operation_name"`
	ServiceName   string                 `json:"service_name"`
	TenantID      string                 `json:"tenant_id"`
	UserID        string                 `json:"user_id,omitempty"`
	StartTime     time.Time              `json:"start_time"`
	EndTime       *time.Time             `json:"end_time,omitempty"`
	DurationMs    float64                `json:"duration_ms"`
	Status        Status                 `json:"status,omitempty"`
	ErrorMessage  string                 `json:"error_message,omitempty"`
	Tags          map[string]interface{} `json:"tags,omitempty"`
}

func (s Span) IsRoot() bool {
	return s.ParentSpanID == ""
}

func (s Span) IsFinished() bool {
	return s.EndTime != nil
}

// Clone returns a copy that shares no mutable state with s.
func (s Span) Clone() Span {
	c := s
	if s.EndTime != nil {
		end := *s.EndTime
		c.EndTime = &end
	}
	if s.Tags != nil {
		c.Tags = make(map[string]interface{}, len(s.Tags))
		for k, v := range s.Tags {
			c.Tags[k] = v
		}
	}
	return c
}
