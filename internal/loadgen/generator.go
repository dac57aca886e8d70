package loadgen

import (
	"context"
	"encoding/hex"
	"fmt"
	"github.com/Avi18971911/telemetry-core/internal/correlation"
	"github.com/Avi18971911/telemetry-core/internal/otel_server/common"
	protoLogs "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	protoMetrics "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	protoTrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonv1 "go.opentelemetry.io/proto/otlp/common/v1"
	logsv1 "go.opentelemetry.io/proto/otlp/logs/v1"
	metricsv1 "go.opentelemetry.io/proto/otlp/metrics/v1"
	resourcev1 "go.opentelemetry.io/proto/otlp/resource/v1"
	tracev1 "go.opentelemetry.io/proto/otlp/trace/v1"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

var operations = []string{"checkout", "login", "search", "add_to_cart"}

type Config struct {
	QueryURL    string
	TenantID    string
	ServiceName string
	Users       int
	Interval    time.Duration
	// ErrorRate is the share of generated operations that fail, in [0, 1].
	ErrorRate float64
}

type Results struct {
	Iterations      int64
	Failures        int64
	AvgQueryLatency time.Duration
}

// Generator emits synthetic OTLP traces, logs and metrics for one tenant and exercises the
// query API with propagated correlation headers.
type Generator struct {
	traces     protoTrace.TraceServiceClient
	logs       protoLogs.LogsServiceClient
	metrics    protoMetrics.MetricsServiceClient
	httpClient *http.Client
	config     Config
	logger     *zap.Logger

	mu           sync.Mutex
	rand         *rand.Rand
	iterations   int64
	failures     int64
	queryLatency time.Duration
}

func NewGenerator(conn grpc.ClientConnInterface, config Config, logger *zap.Logger) *Generator {
	if config.Users <= 0 {
		config.Users = 1
	}
	return &Generator{
		traces:     protoTrace.NewTraceServiceClient(conn),
		logs:       protoLogs.NewLogsServiceClient(conn),
		metrics:    protoMetrics.NewMetricsServiceClient(conn),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		config:     config,
		logger:     logger,
		rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run starts one worker per user and returns once ctx is done.
func (g *Generator) Run(ctx context.Context) Results {
	var group errgroup.Group
	for i := 0; i < g.config.Users; i++ {
		group.Go(func() error {
			g.worker(ctx)
			return nil
		})
	}
	_ = group.Wait()
	return g.Results()
}

func (g *Generator) worker(ctx context.Context) {
	ticker := time.NewTicker(g.config.Interval)
	defer ticker.Stop()
	for {
		if err := g.EmitOnce(ctx); err != nil && ctx.Err() == nil {
			g.logger.Warn("Load generation iteration failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (g *Generator) Results() Results {
	g.mu.Lock()
	defer g.mu.Unlock()
	res := Results{Iterations: g.iterations, Failures: g.failures}
	if g.iterations > 0 {
		res.AvgQueryLatency = g.queryLatency / time.Duration(g.iterations)
	}
	return res
}

// EmitOnce sends one root span with a child span, a log per span and a latency gauge, then
// queries the trace back through the query API as a child of the generated root span.
func (g *Generator) EmitOnce(ctx context.Context) error {
	op, rootMs, childMs, failed := g.pick()
	ctx = correlation.NewContext(ctx, correlation.Context{
		TraceID:   correlation.NewTraceID(),
		TenantID:  g.config.TenantID,
		RequestID: correlation.NewRequestID(),
	})
	rootID := correlation.NewSpanID()
	childID := correlation.NewSpanID()
	traceID := correlation.TraceID(ctx)
	end := time.Now()
	rootStart := end.Add(-time.Duration(rootMs * float64(time.Millisecond)))
	childStart := rootStart.Add(time.Millisecond)

	outgoing := metadata.AppendToOutgoingContext(ctx, common.TenantMetadataKey, g.config.TenantID)
	resource := &resourcev1.Resource{Attributes: []*commonv1.KeyValue{
		stringAttr(common.ServiceAttribute, g.config.ServiceName),
	}}

	spans := []*tracev1.Span{
		g.span(traceID, rootID, "", op, rootStart, end, failed),
		g.span(traceID, childID, rootID, op+".db", childStart, childStart.Add(time.Duration(childMs*float64(time.Millisecond))), false),
	}
	if _, err := g.traces.Export(outgoing, &protoTrace.ExportTraceServiceRequest{
		ResourceSpans: []*tracev1.ResourceSpans{{
			Resource:   resource,
			ScopeSpans: []*tracev1.ScopeSpans{{Spans: spans}},
		}},
	}); err != nil {
		return g.fail(fmt.Errorf("failed to export spans: %w", err))
	}

	severity := logsv1.SeverityNumber_SEVERITY_NUMBER_INFO
	message := op + " completed"
	if failed {
		severity = logsv1.SeverityNumber_SEVERITY_NUMBER_ERROR
		message = op + " failed"
	}
	if _, err := g.logs.Export(outgoing, &protoLogs.ExportLogsServiceRequest{
		ResourceLogs: []*logsv1.ResourceLogs{{
			Resource: resource,
			ScopeLogs: []*logsv1.ScopeLogs{{
				Scope: &commonv1.InstrumentationScope{Name: "loadgen"},
				LogRecords: []*logsv1.LogRecord{{
					TimeUnixNano:   uint64(end.UnixNano()),
					SeverityNumber: severity,
					Body:           &commonv1.AnyValue{Value: &commonv1.AnyValue_StringValue{StringValue: message}},
					TraceId:        mustHex(traceID),
					SpanId:         mustHex(rootID),
					Attributes:     []*commonv1.KeyValue{stringAttr(common.RequestAttribute, correlation.RequestID(ctx))},
				}},
			}},
		}},
	}); err != nil {
		return g.fail(fmt.Errorf("failed to export logs: %w", err))
	}

	if _, err := g.metrics.Export(outgoing, &protoMetrics.ExportMetricsServiceRequest{
		ResourceMetrics: []*metricsv1.ResourceMetrics{{
			Resource: resource,
			ScopeMetrics: []*metricsv1.ScopeMetrics{{
				Metrics: []*metricsv1.Metric{{
					Name: op + ".latency_ms",
					Data: &metricsv1.Metric_Gauge{Gauge: &metricsv1.Gauge{
						DataPoints: []*metricsv1.NumberDataPoint{{
							TimeUnixNano: uint64(end.UnixNano()),
							Value:        &metricsv1.NumberDataPoint_AsDouble{AsDouble: rootMs},
						}},
					}},
				}},
			}},
		}},
	}); err != nil {
		return g.fail(fmt.Errorf("failed to export metrics: %w", err))
	}

	latency, err := g.queryTrace(correlation.WithSpanID(ctx, rootID), traceID)
	if err != nil {
		return g.fail(err)
	}

	g.mu.Lock()
	g.iterations++
	g.queryLatency += latency
	g.mu.Unlock()
	return nil
}

func (g *Generator) queryTrace(ctx context.Context, traceID string) (time.Duration, error) {
	if g.config.QueryURL == "" {
		return 0, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.config.QueryURL+"/traces/"+traceID, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build query request: %w", err)
	}
	correlation.InjectHeaders(ctx, req.Header)

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to query trace %s: %w", traceID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("query for trace %s returned %d", traceID, resp.StatusCode)
	}
	return time.Since(start), nil
}

func (g *Generator) pick() (op string, rootMs float64, childMs float64, failed bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	op = operations[g.rand.Intn(len(operations))]
	rootMs = 20 + g.rand.Float64()*480
	childMs = rootMs * (0.2 + g.rand.Float64()*0.6)
	failed = g.rand.Float64() < g.config.ErrorRate
	return op, rootMs, childMs, failed
}

func (g *Generator) span(
	traceID string,
	spanID string,
	parentID string,
	name string,
	start time.Time,
	end time.Time,
	failed bool,
) *tracev1.Span {
	span := &tracev1.Span{
		TraceId:           mustHex(traceID),
		SpanId:            mustHex(spanID),
		Name:              name,
		Kind:              tracev1.Span_SPAN_KIND_SERVER,
		StartTimeUnixNano: uint64(start.UnixNano()),
		EndTimeUnixNano:   uint64(end.UnixNano()),
		Status:            &tracev1.Status{Code: tracev1.Status_STATUS_CODE_OK},
	}
	if parentID != "" {
		span.ParentSpanId = mustHex(parentID)
		span.Kind = tracev1.Span_SPAN_KIND_INTERNAL
	}
	if failed {
		span.Status = &tracev1.Status{Code: tracev1.Status_STATUS_CODE_ERROR, Message: name + " failed"}
	}
	return span
}

func (g *Generator) fail(err error) error {
	g.mu.Lock()
	g.failures++
	g.mu.Unlock()
	return err
}

func stringAttr(key string, value string) *commonv1.KeyValue {
	return &commonv1.KeyValue{Key: key, Value: &commonv1.AnyValue{Value: &commonv1.AnyValue_StringValue{StringValue: value}}}
}

// ids produced by correlation.NewTraceID and NewSpanID are always valid hex
func mustHex(id string) []byte {
	b, err := hex.DecodeString(id)
	if err != nil {
		panic(fmt.Sprintf("invalid hex id %q: %v", id, err))
	}
	return b
}
