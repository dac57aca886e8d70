package loadgen

import (
	"context"
	"github.com/Avi18971911/telemetry-core/internal/correlation"
	"github.com/Avi18971911/telemetry-core/internal/db/memory"
	"github.com/Avi18971911/telemetry-core/internal/db/storage"
	ingestionModel "github.com/Avi18971911/telemetry-core/internal/ingestion/model"
	logsServer "github.com/Avi18971911/telemetry-core/internal/otel_server/log/server"
	metricsServer "github.com/Avi18971911/telemetry-core/internal/otel_server/metric/server"
	traceServer "github.com/Avi18971911/telemetry-core/internal/otel_server/trace/server"
	traceModel "github.com/Avi18971911/telemetry-core/internal/trace/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protoLogs "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	protoMetrics "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	protoTrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type recordingSubmitter struct {
	mu      sync.Mutex
	logs    []ingestionModel.LogEntry
	metrics []ingestionModel.Metric
}

func (s *recordingSubmitter) SubmitLog(entry ingestionModel.LogEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	return true, nil
}

func (s *recordingSubmitter) SubmitMetric(metric ingestionModel.Metric) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, metric)
	return true, nil
}

type receiverFixture struct {
	conn      *grpc.ClientConn
	spans     *memory.TelemetryStorage
	submitter *recordingSubmitter
}

func newReceiverFixture(t *testing.T) receiverFixture {
	logger := zap.NewNop()
	spans := memory.NewTelemetryStorage()
	submitter := &recordingSubmitter{}

	srv := grpc.NewServer()
	protoTrace.RegisterTraceServiceServer(srv, traceServer.NewTraceServiceServerImpl(spans, nil, logger))
	protoLogs.RegisterLogsServiceServer(srv, logsServer.NewLogServiceServerImpl(submitter, logger))
	protoMetrics.RegisterMetricsServiceServer(srv, metricsServer.NewMetricServiceServerImpl(submitter, logger))
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		_ = srv.Serve(listener)
	}()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient(listener.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return receiverFixture{conn: conn, spans: spans, submitter: submitter}
}

func TestGenerator_EmitOnce(t *testing.T) {
	t.Run("Sends a two span trace with its log and metric", func(t *testing.T) {
		f := newReceiverFixture(t)
		g := NewGenerator(f.conn, Config{TenantID: "acme", ServiceName: "shop", ErrorRate: 1}, zap.NewNop())

		require.NoError(t, g.EmitOnce(context.Background()))

		spans, err := f.spans.QueryTraceSpans(context.Background(), storage.TraceQuery{TenantID: "acme"})
		require.NoError(t, err)
		require.Len(t, spans, 2)
		var root, child traceModel.Span
		for _, s := range spans {
			if s.IsRoot() {
				root = s
			} else {
				child = s
			}
		}
		assert.Equal(t, root.TraceID, child.TraceID)
		assert.Equal(t, root.SpanID, child.ParentSpanID)
		assert.Equal(t, traceModel.StatusError, root.Status)
		assert.Equal(t, "shop", root.ServiceName)

		require.Len(t, f.submitter.logs, 1)
		assert.Equal(t, ingestionModel.ErrorLevel, f.submitter.logs[0].Level)
		assert.Equal(t, root.TraceID, f.submitter.logs[0].CorrelationID)
		require.Len(t, f.submitter.metrics, 1)
		assert.Equal(t, ingestionModel.Gauge, f.submitter.metrics[0].Type)
		assert.Equal(t, root.OperationName+".latency_ms", f.submitter.metrics[0].Name)

		assert.Equal(t, Results{Iterations: 1}, g.Results())
	})

	t.Run("Queries the trace as a child of the generated root span", func(t *testing.T) {
		f := newReceiverFixture(t)
		var mu sync.Mutex
		var headers http.Header
		var path string
		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			headers = r.Header.Clone()
			path = r.URL.Path
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
		}))
		defer api.Close()
		g := NewGenerator(f.conn, Config{QueryURL: api.URL, TenantID: "acme", ServiceName: "shop"}, zap.NewNop())

		require.NoError(t, g.EmitOnce(context.Background()))

		spans, err := f.spans.QueryTraceSpans(context.Background(), storage.TraceQuery{TenantID: "acme"})
		require.NoError(t, err)
		require.Len(t, spans, 2)
		rootID := spans[0].SpanID
		if !spans[0].IsRoot() {
			rootID = spans[1].SpanID
		}

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "/traces/"+spans[0].TraceID, path)
		assert.Equal(t, spans[0].TraceID, headers.Get(correlation.TraceIDHeader))
		assert.Equal(t, rootID, headers.Get(correlation.ParentSpanIDHeader))
		assert.Equal(t, "acme", headers.Get(correlation.TenantIDHeader))
		assert.NotEmpty(t, headers.Get(correlation.RequestIDHeader))
	})

	t.Run("Failed queries are counted", func(t *testing.T) {
		f := newReceiverFixture(t)
		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer api.Close()
		g := NewGenerator(f.conn, Config{QueryURL: api.URL, TenantID: "acme", ServiceName: "shop"}, zap.NewNop())

		assert.Error(t, g.EmitOnce(context.Background()))
		assert.Equal(t, int64(1), g.Results().Failures)
	})
}

func TestGenerator_Run(t *testing.T) {
	f := newReceiverFixture(t)
	g := NewGenerator(f.conn, Config{TenantID: "acme", ServiceName: "shop", Users: 2, Interval: 5 * time.Millisecond}, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	res := g.Run(ctx)

	assert.GreaterOrEqual(t, res.Iterations, int64(2))
}
