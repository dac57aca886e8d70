package server

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"github.com/Avi18971911/telemetry-core/internal/correlation"
	"github.com/Avi18971911/telemetry-core/internal/db/storage"
	"github.com/Avi18971911/telemetry-core/internal/otel_server/common"
	perfService "github.com/Avi18971911/telemetry-core/internal/performance/service"
	"github.com/Avi18971911/telemetry-core/internal/trace/model"
	protoTrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	v1 "go.opentelemetry.io/proto/otlp/trace/v1"
	"go.uber.org/zap"
	"time"
)

const storeTimeout = 5 * time.Second

var ErrMalformedSpan = errors.New("malformed OTLP span")

// TraceServiceServerImpl receives OTLP spans and writes them straight to trace storage.
type TraceServiceServerImpl struct {
	protoTrace.UnimplementedTraceServiceServer
	store      storage.TraceStorage
	aggregator perfService.PerformanceAggregator
	logger     *zap.Logger
}

func NewTraceServiceServerImpl(
	store storage.TraceStorage,
	aggregator perfService.PerformanceAggregator,
	logger *zap.Logger,
) *TraceServiceServerImpl {
	logger.Info("Creating new TraceServiceServerImpl")
	return &TraceServiceServerImpl{
		store:      store,
		aggregator: aggregator,
		logger:     logger,
	}
}

func (tss *TraceServiceServerImpl) Export(
	ctx context.Context,
	req *protoTrace.ExportTraceServiceRequest,
) (*protoTrace.ExportTraceServiceResponse, error) {
	var rejected int64
	var lastErr error
	for _, resourceSpans := range req.GetResourceSpans() {
		tenantID := common.TenantID(ctx, resourceSpans.GetResource())
		spans, malformed, malformedErr := getTypedSpans(resourceSpans, tenantID)
		if tenantID == "" {
			tss.logger.Warn("Skipping resource spans without tenant", zap.Int("span_count", len(spans)+malformed))
			rejected += int64(len(spans) + malformed)
			lastErr = storage.ErrTenantRequired
			continue
		}
		if malformed > 0 {
			tss.logger.Warn(
				"Rejecting malformed OTLP spans",
				zap.String("tenant_id", tenantID),
				zap.Int("span_count", malformed),
				zap.Error(malformedErr),
			)
			rejected += int64(malformed)
			lastErr = malformedErr
		}

		for _, span := range spans {
			storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
			err := tss.store.StoreTraceSpan(storeCtx, span)
			cancel()
			if err != nil {
				tss.logger.Error(
					"Failed to store OTLP span",
					zap.String("tenant_id", tenantID),
					zap.String("trace_id", span.TraceID),
					zap.Error(err),
				)
				rejected++
				lastErr = err
				continue
			}
			if tss.aggregator != nil {
				tss.aggregator.Update(ctx, span.OperationName, span.DurationMs, span.Status == model.StatusOK)
			}
		}
	}

	response := &protoTrace.ExportTraceServiceResponse{}
	if rejected > 0 {
		response.PartialSuccess = &protoTrace.ExportTracePartialSuccess{
			RejectedSpans: rejected,
			ErrorMessage:  fmt.Sprintf("%d spans rejected: %v", rejected, lastErr),
		}
	}
	return response, nil
}

// getTypedSpans converts the spans of one resource. Malformed spans are left out and
// counted; the last conversion error is returned alongside.
func getTypedSpans(resourceSpans *v1.ResourceSpans, tenantID string) ([]model.Span, int, error) {
	serviceName := common.ServiceName(resourceSpans.GetResource())
	var typedSpans []model.Span
	var malformed int
	var lastErr error
	for _, scopeSpans := range resourceSpans.GetScopeSpans() {
		for _, span := range scopeSpans.GetSpans() {
			typedSpan, err := getTypedSpan(span, serviceName, tenantID)
			if err != nil {
				malformed++
				lastErr = err
				continue
			}
			typedSpans = append(typedSpans, typedSpan)
		}
	}
	return typedSpans, malformed, lastErr
}

func getTypedSpan(span *v1.Span, serviceName string, tenantID string) (model.Span, error) {
	traceID := hex.EncodeToString(span.GetTraceId())
	if err := correlation.ValidateID("trace_id", traceID); err != nil {
		return model.Span{}, fmt.Errorf("%w: %w", ErrMalformedSpan, err)
	}
	spanID := hex.EncodeToString(span.GetSpanId())
	if err := correlation.ValidateID("span_id", spanID); err != nil {
		return model.Span{}, fmt.Errorf("%w: %w", ErrMalformedSpan, err)
	}
	if span.GetName() == "" {
		return model.Span{}, fmt.Errorf("%w: span %s has no name", ErrMalformedSpan, spanID)
	}
	if span.GetStartTimeUnixNano() == 0 || span.GetEndTimeUnixNano() == 0 {
		return model.Span{}, fmt.Errorf("%w: span %s has no start or end time", ErrMalformedSpan, spanID)
	}

	startTime := common.UnixNano(span.GetStartTimeUnixNano())
	endTime := common.UnixNano(span.GetEndTimeUnixNano())
	duration := endTime.Sub(startTime)
	if duration < 0 {
		duration = 0
	}
	status, errorMessage := getStatus(span)
	tags := common.Attributes(span.GetAttributes())

	return model.Span{
		TraceID:       traceID,
		SpanID:        spanID,
		ParentSpanID:  hex.EncodeToString(span.GetParentSpanId()),
		OperationName: span.GetName(),
		ServiceName:   serviceName,
		TenantID:      tenantID,
		UserID:        common.StringAttribute(span.GetAttributes(), common.UserAttribute),
		StartTime:     startTime,
		EndTime:       &endTime,
		DurationMs:    float64(duration) / float64(time.Millisecond),
		Status:        status,
		ErrorMessage:  errorMessage,
		Tags:          tags,
	}, nil
}

// unset is treated as OK
func getStatus(span *v1.Span) (model.Status, string) {
	if span.GetStatus().GetCode() == v1.Status_STATUS_CODE_ERROR {
		message := span.GetStatus().GetMessage()
		if message == "" {
			message = "unknown error"
		}
		return model.StatusError, message
	}
	return model.StatusOK, ""
}
