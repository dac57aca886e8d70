package correlation

import (
	"context"
	"net/http"
)

const (
	TraceIDHeader      = "X-Trace-ID"
	SpanIDHeader       = "X-Span-ID"
	ParentSpanIDHeader = "X-Parent-Span-ID"
	TenantIDHeader     = "X-Tenant-ID"
	UserIDHeader       = "X-User-ID"
	RequestIDHeader    = "X-Request-ID"
)

// FromHeaders seeds a correlation Context from inbound propagation headers. Malformed
// identifiers are ignored; a missing or ignored trace id is replaced by a fresh one.
// The caller's span (X-Parent-Span-ID, falling back to X-Span-ID) becomes the current
// span so that the first span opened for this request is its child.
func FromHeaders(h http.Header) Context {
	c := Context{
		TraceID:   validOrEmpty("trace_id", h.Get(TraceIDHeader)),
		TenantID:  validOrEmpty("tenant_id", h.Get(TenantIDHeader)),
		UserID:    validOrEmpty("user_id", h.Get(UserIDHeader)),
		RequestID: validOrEmpty("request_id", h.Get(RequestIDHeader)),
	}
	if c.TraceID == "" {
		c.TraceID = NewTraceID()
	} else {
		c.SpanID = validOrEmpty("parent_span_id", h.Get(ParentSpanIDHeader))
		if c.SpanID == "" {
			c.SpanID = validOrEmpty("span_id", h.Get(SpanIDHeader))
		}
	}
	if c.RequestID == "" {
		c.RequestID = NewRequestID()
	}
	return c
}

// InjectHeaders writes the correlation of ctx onto outbound headers. The current span is
// sent as X-Parent-Span-ID for the downstream service.
func InjectHeaders(ctx context.Context, h http.Header) {
	c := Snapshot(ctx)
	setIfPresent(h, TraceIDHeader, c.TraceID)
	setIfPresent(h, SpanIDHeader, c.SpanID)
	setIfPresent(h, ParentSpanIDHeader, c.SpanID)
	setIfPresent(h, TenantIDHeader, c.TenantID)
	setIfPresent(h, UserIDHeader, c.UserID)
	setIfPresent(h, RequestIDHeader, c.RequestID)
}

func validOrEmpty(kind string, value string) string {
	if value == "" {
		return ""
	}
	if err := ValidateID(kind, value); err != nil {
		return ""
	}
	return value
}

func setIfPresent(h http.Header, key string, value string) {
	if value != "" {
		h.Set(key, value)
	}
}
