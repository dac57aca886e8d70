package correlation

import (
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"net/http"
	"sync"
	"testing"
)

func TestContext(t *testing.T) {
	t.Run("Returns zero value when nothing is set", func(t *testing.T) {
		assert.Equal(t, Context{}, Snapshot(context.Background()))
		assert.Equal(t, "", TraceID(context.Background()))
	})

	t.Run("Setters return derived contexts without touching the parent", func(t *testing.T) {
		parent := WithTraceID(context.Background(), "trace-1")
		child := WithTenantID(parent, "tenant-a")
		child = WithUserID(child, "user-7")

		assert.Equal(t, "trace-1", TraceID(child))
		assert.Equal(t, "tenant-a", TenantID(child))
		assert.Equal(t, "user-7", UserID(child))
		assert.Equal(t, "", TenantID(parent))
		assert.Equal(t, "", UserID(parent))
	})

	t.Run("WithSpanID pushes the previous span as parent", func(t *testing.T) {
		ctx := WithSpanID(context.Background(), "span-a")
		ctx = WithSpanID(ctx, "span-b")
		assert.Equal(t, "span-b", SpanID(ctx))
		assert.Equal(t, "span-a", ParentSpanID(ctx))
	})

	t.Run("Clear removes all fields", func(t *testing.T) {
		ctx := NewContext(context.Background(), Context{TraceID: "t", SpanID: "s", TenantID: "x"})
		assert.Equal(t, Context{}, Snapshot(Clear(ctx)))
	})

	t.Run("Concurrent requests never observe each other", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make(chan error, 50)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				traceID := NewTraceID()
				ctx := WithTraceID(context.Background(), traceID)
				ctx = WithSpanID(ctx, NewSpanID())
				if TraceID(ctx) != traceID {
					errs <- errors.New("trace id leaked between requests")
				}
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Error(err)
		}
	})

	t.Run("ZapFields skips empty identifiers", func(t *testing.T) {
		ctx := NewContext(context.Background(), Context{TraceID: "t", TenantID: "x"})
		fields := ZapFields(ctx)
		assert.Len(t, fields, 2)
		assert.Equal(t, "trace_id", fields[0].Key)
		assert.Equal(t, "tenant_id", fields[1].Key)
	})
}

func TestIDs(t *testing.T) {
	t.Run("Generates hex ids of the expected length", func(t *testing.T) {
		assert.Len(t, NewTraceID(), 32)
		assert.Len(t, NewSpanID(), 16)
		assert.NotEqual(t, NewTraceID(), NewTraceID())
	})

	t.Run("Rejects malformed ids", func(t *testing.T) {
		assert.ErrorIs(t, ValidateID("trace_id", ""), ErrInvalidID)
		assert.ErrorIs(t, ValidateID("trace_id", "bad id"), ErrInvalidID)
		assert.ErrorIs(t, ValidateID("trace_id", "a/b"), ErrInvalidID)
		assert.NoError(t, ValidateID("trace_id", NewTraceID()))
		assert.NoError(t, ValidateID("request_id", NewRequestID()))
	})
}

func TestHeaders(t *testing.T) {
	t.Run("Seeds context from propagation headers", func(t *testing.T) {
		h := http.Header{}
		h.Set(TraceIDHeader, "abc123")
		h.Set(ParentSpanIDHeader, "parent1")
		h.Set(TenantIDHeader, "tenant-a")
		h.Set(UserIDHeader, "user-1")

		c := FromHeaders(h)
		assert.Equal(t, "abc123", c.TraceID)
		assert.Equal(t, "parent1", c.SpanID)
		assert.Equal(t, "tenant-a", c.TenantID)
		assert.Equal(t, "user-1", c.UserID)
		assert.NotEmpty(t, c.RequestID)
	})

	t.Run("Generates a trace id when absent or malformed", func(t *testing.T) {
		c := FromHeaders(http.Header{})
		assert.Len(t, c.TraceID, 32)
		assert.Equal(t, "", c.SpanID)

		h := http.Header{}
		h.Set(TraceIDHeader, "not valid!")
		h.Set(ParentSpanIDHeader, "parent1")
		c = FromHeaders(h)
		assert.Len(t, c.TraceID, 32)
		assert.Equal(t, "", c.SpanID)
	})

	t.Run("Injects current span as the downstream parent", func(t *testing.T) {
		ctx := NewContext(context.Background(), Context{TraceID: "t1", SpanID: "s1", TenantID: "x"})
		h := http.Header{}
		InjectHeaders(ctx, h)
		assert.Equal(t, "t1", h.Get(TraceIDHeader))
		assert.Equal(t, "s1", h.Get(ParentSpanIDHeader))
		assert.Equal(t, "x", h.Get(TenantIDHeader))
		assert.Equal(t, "", h.Get(UserIDHeader))

		roundTrip := FromHeaders(h)
		assert.Equal(t, "t1", roundTrip.TraceID)
		assert.Equal(t, "s1", roundTrip.SpanID)
	})
}
