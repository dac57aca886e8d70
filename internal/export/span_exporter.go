package export

import (
	"context"
	"crypto/sha256"
	"fmt"
	"github.com/Avi18971911/telemetry-core/internal/event_bus"
	"github.com/Avi18971911/telemetry-core/internal/trace/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/instrumentation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"sort"
	"time"
)

const (
	exportTimeout = 10 * time.Second
	scopeName     = "github.com/Avi18971911/telemetry-core"
)

// NewOTLPExporter ships spans to an OTLP/HTTP collector, e.g. "localhost:4318".
func NewOTLPExporter(ctx context.Context, endpoint string, insecure bool) (sdktrace.SpanExporter, error) {
	options := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	if insecure {
		options = append(options, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter for %s: %w", endpoint, err)
	}
	return exporter, nil
}

type SpanExporterImpl struct {
	exporter sdktrace.SpanExporter
	bus      event_bus.TelemetryEventBus[model.Span]
	logger   *zap.Logger
}

func NewSpanExporterImpl(
	exporter sdktrace.SpanExporter,
	bus event_bus.TelemetryEventBus[model.Span],
	logger *zap.Logger,
) *SpanExporterImpl {
	return &SpanExporterImpl{
		exporter: exporter,
		bus:      bus,
		logger:   logger,
	}
}

// Start subscribes the exporter to finished spans.
func (se *SpanExporterImpl) Start() error {
	if err := se.bus.Subscribe(event_bus.SpanFinishedTopic, se.Export, true); err != nil {
		return fmt.Errorf("failed to start span exporter: %w", err)
	}
	return nil
}

// Export sends a single finished span. Failures are returned to the bus, which logs them.
func (se *SpanExporterImpl) Export(span model.Span) error {
	if !span.IsFinished() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
	defer cancel()
	if err := se.exporter.ExportSpans(ctx, []sdktrace.ReadOnlySpan{ToReadOnlySpan(span)}); err != nil {
		return fmt.Errorf("failed to export span %s: %w", span.SpanID, err)
	}
	return nil
}

func (se *SpanExporterImpl) Shutdown(ctx context.Context) error {
	se.bus.Wait()
	return se.exporter.Shutdown(ctx)
}

func ToReadOnlySpan(span model.Span) sdktrace.ReadOnlySpan {
	traceID := toTraceID(span.TraceID)
	stub := tracetest.SpanStub{
		Name: span.OperationName,
		SpanContext: trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    traceID,
			SpanID:     toSpanID(span.SpanID),
			TraceFlags: trace.FlagsSampled,
		}),
		SpanKind:   trace.SpanKindInternal,
		StartTime:  span.StartTime,
		Attributes: toAttributes(span),
		Status:     toStatus(span),
		Resource: resource.NewSchemaless(
			attribute.String("service.name", span.ServiceName),
			attribute.String("tenant.id", span.TenantID),
		),
		InstrumentationScope: instrumentation.Scope{Name: scopeName},
	}
	if span.EndTime != nil {
		stub.EndTime = *span.EndTime
	}
	if !span.IsRoot() {
		stub.Parent = trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    traceID,
			SpanID:     toSpanID(span.ParentSpanID),
			TraceFlags: trace.FlagsSampled,
			Remote:     true,
		})
	}
	return stub.Snapshot()
}

func toStatus(span model.Span) sdktrace.Status {
	switch span.Status {
	case model.StatusOK:
		return sdktrace.Status{Code: codes.Ok}
	case model.StatusError:
		return sdktrace.Status{Code: codes.Error, Description: span.ErrorMessage}
	default:
		return sdktrace.Status{Code: codes.Unset}
	}
}

func toAttributes(span model.Span) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("tenant.id", span.TenantID)}
	if span.UserID != "" {
		attrs = append(attrs, attribute.String("user.id", span.UserID))
	}

	keys := make([]string, 0, len(span.Tags))
	for k := range span.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, toAttribute(k, span.Tags[k]))
	}
	return attrs
}

func toAttribute(key string, value interface{}) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	default:
		return attribute.String(key, fmt.Sprint(v))
	}
}

// ids that are not already OTel hex ids are hashed so the mapping stays stable
func toTraceID(id string) trace.TraceID {
	if traceID, err := trace.TraceIDFromHex(id); err == nil {
		return traceID
	}
	var traceID trace.TraceID
	sum := sha256.Sum256([]byte(id))
	copy(traceID[:], sum[:len(traceID)])
	return traceID
}

func toSpanID(id string) trace.SpanID {
	if spanID, err := trace.SpanIDFromHex(id); err == nil {
		return spanID
	}
	var spanID trace.SpanID
	sum := sha256.Sum256([]byte(id))
	copy(spanID[:], sum[:len(spanID)])
	return spanID
}
