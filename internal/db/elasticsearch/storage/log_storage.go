package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/Avi18971911/telemetry-core/internal/db/elasticsearch/bootstrapper"
	"github.com/Avi18971911/telemetry-core/internal/db/elasticsearch/client"
	"github.com/Avi18971911/telemetry-core/internal/db/storage"
	ingestionModel "github.com/Avi18971911/telemetry-core/internal/ingestion/model"
	"go.uber.org/zap"
)

type LogStorageImpl struct {
	tc     client.TelemetryClient
	logger *zap.Logger
}

func NewLogStorageImpl(tc client.TelemetryClient, logger *zap.Logger) *LogStorageImpl {
	return &LogStorageImpl{
		tc:     tc,
		logger: logger,
	}
}

func (l *LogStorageImpl) StoreLog(ctx context.Context, entry ingestionModel.LogEntry) error {
	return l.StoreLogs(ctx, []ingestionModel.LogEntry{entry})
}

func (l *LogStorageImpl) StoreLogs(ctx context.Context, entries []ingestionModel.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, entry := range entries {
		if entry.TenantID == "" {
			return storage.ErrTenantRequired
		}
	}
	metaMap, dataMap, err := client.ToMetaAndDataMap(entries)
	if err != nil {
		return fmt.Errorf("error converting logs to meta and data map: %w", err)
	}

	storeCtx, cancel := context.WithTimeout(ctx, storageTimeout)
	defer cancel()
	if err := l.tc.BulkIndex(storeCtx, metaMap, dataMap, bootstrapper.LogIndexName); err != nil {
		return fmt.Errorf("error bulk indexing %d logs: %w", len(entries), err)
	}
	return nil
}

func (l *LogStorageImpl) QueryLogs(
	ctx context.Context,
	query storage.LogQuery,
) ([]ingestionModel.LogEntry, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	queryBody, err := json.Marshal(buildLogsQuery(query))
	if err != nil {
		return nil, fmt.Errorf("error marshaling log query: %w", err)
	}

	queryCtx, cancel := context.WithTimeout(ctx, storageTimeout)
	defer cancel()
	docs, err := l.tc.Search(queryCtx, string(queryBody), []string{bootstrapper.LogIndexName}, &query.Limit)
	if err != nil {
		return nil, fmt.Errorf("error searching logs: %w", err)
	}
	entries, err := client.FromDocuments[ingestionModel.LogEntry](docs)
	if err != nil {
		return nil, fmt.Errorf("error decoding logs: %w", err)
	}
	return entries, nil
}
