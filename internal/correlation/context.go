package correlation

import (
	"context"
	"go.uber.org/zap"
)

type contextKey struct{}

// Context holds the identifiers of one logical request. Values are never mutated in place:
// every setter returns a derived context.Context carrying a copy.
type Context struct {
	TraceID      string `json:"trace_id,omitempty"`
	SpanID       string `json:"span_id,omitempty"`
	ParentSpanID string `json:"parent_span_id,omitempty"`
	TenantID     string `json:"tenant_id,omitempty"`
	UserID       string `json:"user_id,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
}

func NewContext(ctx context.Context, c Context) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// Snapshot returns a copy of the correlation fields carried by ctx, or the zero value.
func Snapshot(ctx context.Context) Context {
	if ctx == nil {
		return Context{}
	}
	c, ok := ctx.Value(contextKey{}).(Context)
	if !ok {
		return Context{}
	}
	return c
}

// Clear detaches all correlation fields from the returned context.
func Clear(ctx context.Context) context.Context {
	return NewContext(ctx, Context{})
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	c := Snapshot(ctx)
	c.TraceID = traceID
	return NewContext(ctx, c)
}

func TraceID(ctx context.Context) string {
	return Snapshot(ctx).TraceID
}

// WithSpanID makes spanID the current span. The previous current span becomes its parent.
func WithSpanID(ctx context.Context, spanID string) context.Context {
	c := Snapshot(ctx)
	c.ParentSpanID = c.SpanID
	c.SpanID = spanID
	return NewContext(ctx, c)
}

func SpanID(ctx context.Context) string {
	return Snapshot(ctx).SpanID
}

func ParentSpanID(ctx context.Context) string {
	return Snapshot(ctx).ParentSpanID
}

func WithTenantID(ctx context.Context, tenantID string) context.Context {
	c := Snapshot(ctx)
	c.TenantID = tenantID
	return NewContext(ctx, c)
}

func TenantID(ctx context.Context) string {
	return Snapshot(ctx).TenantID
}

func WithUserID(ctx context.Context, userID string) context.Context {
	c := Snapshot(ctx)
	c.UserID = userID
	return NewContext(ctx, c)
}

func UserID(ctx context.Context) string {
	return Snapshot(ctx).UserID
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	c := Snapshot(ctx)
	c.RequestID = requestID
	return NewContext(ctx, c)
}

func RequestID(ctx context.Context) string {
	return Snapshot(ctx).RequestID
}

// ZapFields returns the non-empty correlation identifiers as log fields.
func ZapFields(ctx context.Context) []zap.Field {
	c := Snapshot(ctx)
	fields := make([]zap.Field, 0, 5)
	if c.TraceID != "" {
		fields = append(fields, zap.String("trace_id", c.TraceID))
	}
	if c.SpanID != "" {
		fields = append(fields, zap.String("span_id", c.SpanID))
	}
	if c.TenantID != "" {
		fields = append(fields, zap.String("tenant_id", c.TenantID))
	}
	if c.UserID != "" {
		fields = append(fields, zap.String("user_id", c.UserID))
	}
	if c.RequestID != "" {
		fields = append(fields, zap.String("request_id", c.RequestID))
	}
	return fields
}
