package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/Avi18971911/telemetry-core/internal/db/elasticsearch/bootstrapper"
	"github.com/Avi18971911/telemetry-core/internal/db/elasticsearch/client"
	"github.com/Avi18971911/telemetry-core/internal/db/storage"
	traceModel "github.com/Avi18971911/telemetry-core/internal/trace/model"
	"go.uber.org/zap"
	"time"
)

const storageTimeout = 10 * time.Second

type SpanStorageImpl struct {
	tc     client.TelemetryClient
	logger *zap.Logger
}

func NewSpanStorageImpl(tc client.TelemetryClient, logger *zap.Logger) *SpanStorageImpl {
	return &SpanStorageImpl{
		tc:     tc,
		logger: logger,
	}
}

// StoreTraceSpan indexes the span under "<tenant_id>:<trace_id>:<span_id>" so a repeated
// write of the same span replaces the document, and equal ids from another tenant never do.
func (s *SpanStorageImpl) StoreTraceSpan(ctx context.Context, span traceModel.Span) error {
	if span.TenantID == "" {
		return storage.ErrTenantRequired
	}
	metaMap, dataMap, err := client.ToMetaAndDataMap([]traceModel.Span{span})
	if err != nil {
		return fmt.Errorf("error converting span to meta and data map: %w", err)
	}
	metaMap[0] = client.MetaMap{"index": map[string]interface{}{"_id": spanDocumentID(span)}}

	storeCtx, cancel := context.WithTimeout(ctx, storageTimeout)
	defer cancel()
	if err := s.tc.Index(storeCtx, metaMap[0], dataMap[0], bootstrapper.SpanIndexName); err != nil {
		return fmt.Errorf("error indexing span %s: %w", span.SpanID, err)
	}
	return nil
}

func (s *SpanStorageImpl) QueryTraceSpans(
	ctx context.Context,
	query storage.TraceQuery,
) ([]traceModel.Span, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	queryBody, err := json.Marshal(buildTraceSpansQuery(query))
	if err != nil {
		return nil, fmt.Errorf("error marshaling trace span query: %w", err)
	}

	queryCtx, cancel := context.WithTimeout(ctx, storageTimeout)
	defer cancel()
	docs, err := s.tc.Search(queryCtx, string(queryBody), []string{bootstrapper.SpanIndexName}, &query.Limit)
	if err != nil {
		return nil, fmt.Errorf("error searching spans: %w", err)
	}
	spans, err := client.FromDocuments[traceModel.Span](docs)
	if err != nil {
		return nil, fmt.Errorf("error decoding spans: %w", err)
	}
	s.logger.Debug(
		"Queried trace spans",
		zap.String("tenant_id", query.TenantID),
		zap.Int("count", len(spans)),
	)
	return spans, nil
}

func spanDocumentID(span traceModel.Span) string {
	return span.TenantID + ":" + span.TraceID + ":" + span.SpanID
}
