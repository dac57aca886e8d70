package service

import (
	"context"
	"errors"
	"fmt"
	"github.com/Avi18971911/telemetry-core/internal/correlation"
	"github.com/Avi18971911/telemetry-core/internal/db/storage"
	"github.com/Avi18971911/telemetry-core/internal/event_bus"
	"github.com/Avi18971911/telemetry-core/internal/metrics"
	perfService "github.com/Avi18971911/telemetry-core/internal/performance/service"
	"github.com/Avi18971911/telemetry-core/internal/trace/model"
	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
	"sync"
	"time"
)

const storeTimeout = 5 * time.Second

var (
	ErrEmptyOperationName  = errors.New("operation name must not be empty")
	ErrInvalidStatus       = errors.New("span status must be OK or ERROR")
	ErrSpanAlreadyFinished = errors.New("span has already been finished")
	ErrSpanAborted         = errors.New("traced function exited without returning")
)

type SpanRecorder interface {
	// StartSpan opens a child of the current span of ctx, or a new trace when ctx carries none.
	// The returned context carries the new span as current.
	StartSpan(ctx context.Context, operationName string, tags map[string]interface{}) (context.Context, *SpanHandle, error)
	// FinishSpan closes the span exactly once. Storage failures are logged, never returned.
	FinishSpan(ctx context.Context, handle *SpanHandle, status model.Status, spanErr error) error
	// WithSpan runs fn inside a span and returns the error of fn unchanged.
	WithSpan(ctx context.Context, operationName string, fn func(ctx context.Context) error) error
}

// SpanHandle is the mutable side of an active span. Once finished it rejects further changes.
type SpanHandle struct {
	mu       sync.Mutex
	span     model.Span
	finished bool
}

func (h *SpanHandle) SetTag(key string, value interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finished {
		return
	}
	if h.span.Tags == nil {
		h.span.Tags = make(map[string]interface{})
	}
	h.span.Tags[key] = value
}

func (h *SpanHandle) TraceID() string {
	return h.span.TraceID
}

func (h *SpanHandle) SpanID() string {
	return h.span.SpanID
}

// Span returns a copy of the current state of the span.
func (h *SpanHandle) Span() model.Span {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.span.Clone()
}

type SpanRecorderImpl struct {
	serviceName string
	store       storage.TraceStorage
	aggregator  perfService.PerformanceAggregator
	bus         event_bus.TelemetryEventBus[model.Span]
	metrics     *metrics.Metrics
	clock       clockz.Clock
	logger      *zap.Logger
}

// NewSpanRecorderImpl builds a recorder. bus and m may be nil.
func NewSpanRecorderImpl(
	serviceName string,
	store storage.TraceStorage,
	aggregator perfService.PerformanceAggregator,
	bus event_bus.TelemetryEventBus[model.Span],
	m *metrics.Metrics,
	clock clockz.Clock,
	logger *zap.Logger,
) *SpanRecorderImpl {
	if clock == nil {
		clock = clockz.RealClock
	}
	return &SpanRecorderImpl{
		serviceName: serviceName,
		store:       store,
		aggregator:  aggregator,
		bus:         bus,
		metrics:     m,
		clock:       clock,
		logger:      logger,
	}
}

func (sr *SpanRecorderImpl) StartSpan(
	ctx context.Context,
	operationName string,
	tags map[string]interface{},
) (context.Context, *SpanHandle, error) {
	if operationName == "" {
		return ctx, nil, ErrEmptyOperationName
	}

	c := correlation.Snapshot(ctx)
	if c.TraceID == "" {
		c.TraceID = correlation.NewTraceID()
		ctx = correlation.WithTraceID(ctx, c.TraceID)
	} else if err := correlation.ValidateID("trace_id", c.TraceID); err != nil {
		return ctx, nil, err
	}
	if c.SpanID != "" {
		if err := correlation.ValidateID("parent_span_id", c.SpanID); err != nil {
			return ctx, nil, err
		}
	}

	span := model.Span{
		TraceID:       c.TraceID,
		SpanID:        correlation.NewSpanID(),
		ParentSpanID:  c.SpanID,
		OperationName: operationName,
		ServiceName:   sr.serviceName,
		TenantID:      c.TenantID,
		UserID:        c.UserID,
		StartTime:     sr.clock.Now().UTC(),
	}
	if len(tags) > 0 {
		span.Tags = make(map[string]interface{}, len(tags))
		for k, v := range tags {
			span.Tags[k] = v
		}
	}

	return correlation.WithSpanID(ctx, span.SpanID), &SpanHandle{span: span}, nil
}

func (sr *SpanRecorderImpl) FinishSpan(
	ctx context.Context,
	handle *SpanHandle,
	status model.Status,
	spanErr error,
) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}

	handle.mu.Lock()
	if handle.finished {
		handle.mu.Unlock()
		return ErrSpanAlreadyFinished
	}
	end := sr.clock.Now().UTC()
	duration := end.Sub(handle.span.StartTime)
	if duration < 0 {
		duration = 0
	}
	handle.span.EndTime = &end
	handle.span.DurationMs = float64(duration) / float64(time.Millisecond)
	handle.span.Status = status
	if status == model.StatusError {
		handle.span.ErrorMessage = errorMessage(spanErr)
	}
	handle.finished = true
	span := handle.span.Clone()
	handle.mu.Unlock()

	sr.record(ctx, span)
	return nil
}

func (sr *SpanRecorderImpl) record(ctx context.Context, span model.Span) {
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	if err := sr.store.StoreTraceSpan(storeCtx, span); err != nil {
		if sr.metrics != nil {
			sr.metrics.SpanStoreFailures.Inc()
		}
		sr.logger.Error(
			"Failed to store finished span",
			zap.String("trace_id", span.TraceID),
			zap.String("span_id", span.SpanID),
			zap.String("operation_name", span.OperationName),
			zap.Error(err),
		)
	}
	if sr.metrics != nil {
		sr.metrics.SpansRecorded.WithLabelValues(string(span.Status)).Inc()
	}

	sr.aggregator.Update(storeCtx, span.OperationName, span.DurationMs, span.Status == model.StatusOK)

	if sr.bus != nil {
		if err := sr.bus.Publish(event_bus.SpanFinishedTopic, span); err != nil {
			sr.logger.Error("Failed to publish finished span", zap.String("span_id", span.SpanID), zap.Error(err))
		}
	}
}

func (sr *SpanRecorderImpl) WithSpan(
	ctx context.Context,
	operationName string,
	fn func(ctx context.Context) error,
) (err error) {
	spanCtx, handle, startErr := sr.StartSpan(ctx, operationName, nil)
	if startErr != nil {
		return startErr
	}

	returned := false
	defer func() {
		if returned {
			return
		}
		// fn panicked or called runtime.Goexit
		r := recover()
		if r != nil {
			_ = sr.FinishSpan(ctx, handle, model.StatusError, fmt.Errorf("panic: %v", r))
			panic(r)
		}
		_ = sr.FinishSpan(ctx, handle, model.StatusError, ErrSpanAborted)
	}()

	err = fn(spanCtx)
	returned = true
	if err != nil {
		_ = sr.FinishSpan(ctx, handle, model.StatusError, err)
	} else {
		_ = sr.FinishSpan(ctx, handle, model.StatusOK, nil)
	}
	return err
}

func errorMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
