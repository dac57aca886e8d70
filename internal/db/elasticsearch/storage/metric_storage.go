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

type MetricStorageImpl struct {
	tc     client.TelemetryClient
	logger *zap.Logger
}

func NewMetricStorageImpl(tc client.TelemetryClient, logger *zap.Logger) *MetricStorageImpl {
	return &MetricStorageImpl{
		tc:     tc,
		logger: logger,
	}
}

func (m *MetricStorageImpl) StoreMetric(ctx context.Context, metric ingestionModel.Metric) error {
	return m.StoreMetrics(ctx, []ingestionModel.Metric{metric})
}

func (m *MetricStorageImpl) StoreMetrics(ctx context.Context, metrics []ingestionModel.Metric) error {
	if len(metrics) == 0 {
		return nil
	}
	for _, metric := range metrics {
		if metric.TenantID == "" {
			return storage.ErrTenantRequired
		}
	}
	metaMap, dataMap, err := client.ToMetaAndDataMap(metrics)
	if err != nil {
		return fmt.Errorf("error converting metrics to meta and data map: %w", err)
	}

	storeCtx, cancel := context.WithTimeout(ctx, storageTimeout)
	defer cancel()
	if err := m.tc.BulkIndex(storeCtx, metaMap, dataMap, bootstrapper.MetricIndexName); err != nil {
		return fmt.Errorf("error bulk indexing %d metrics: %w", len(metrics), err)
	}
	return nil
}

func (m *MetricStorageImpl) QueryMetrics(
	ctx context.Context,
	query storage.MetricQuery,
) ([]ingestionModel.Metric, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	queryBody, err := json.Marshal(buildMetricsQuery(query))
	if err != nil {
		return nil, fmt.Errorf("error marshaling metric query: %w", err)
	}

	queryCtx, cancel := context.WithTimeout(ctx, storageTimeout)
	defer cancel()
	docs, err := m.tc.Search(queryCtx, string(queryBody), []string{bootstrapper.MetricIndexName}, &query.Limit)
	if err != nil {
		return nil, fmt.Errorf("error searching metrics: %w", err)
	}
	metrics, err := client.FromDocuments[ingestionModel.Metric](docs)
	if err != nil {
		return nil, fmt.Errorf("error decoding metrics: %w", err)
	}
	return metrics, nil
}
