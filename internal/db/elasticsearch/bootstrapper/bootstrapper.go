package bootstrapper

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"
	"net/http"
	"strings"
	"time"
)

const alreadyExistsError = "resource_already_exists_exception"

type Bootstrapper struct {
	esClient   *elasticsearch.Client
	logger     *zap.Logger
	retries    int
	retryDelay time.Duration
}

func NewBootstrapper(
	esClient *elasticsearch.Client,
	retries int,
	retryDelay time.Duration,
	logger *zap.Logger,
) *Bootstrapper {
	return &Bootstrapper{
		esClient:   esClient,
		logger:     logger,
		retries:    retries,
		retryDelay: retryDelay,
	}
}

// BootstrapElasticsearch creates the span, log and metric indices. Indices that already
// exist are left untouched.
func (bs *Bootstrapper) BootstrapElasticsearch(ctx context.Context) error {
	if err := bs.waitForElasticsearch(ctx); err != nil {
		return fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}

	if err := bs.createIndex(ctx, SpanIndexName, spanIndex); err != nil {
		return fmt.Errorf("error creating span index: %w", err)
	}

	if err := bs.createIndex(ctx, LogIndexName, logIndex); err != nil {
		return fmt.Errorf("error creating log index: %w", err)
	}

	if err := bs.createIndex(ctx, MetricIndexName, metricIndex); err != nil {
		return fmt.Errorf("error creating metric index: %w", err)
	}

	return nil
}

func (bs *Bootstrapper) waitForElasticsearch(ctx context.Context) error {
	for i := 0; i < bs.retries; i++ {
		res, err := bs.esClient.Info(bs.esClient.Info.WithContext(ctx))
		if err == nil {
			status := res.StatusCode
			res.Body.Close()
			if status == http.StatusOK {
				bs.logger.Info("Elasticsearch is available")
				return nil
			}
		}
		bs.logger.Warn(
			"Elasticsearch not available, retrying",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", bs.retries),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(bs.retryDelay):
		}
	}

	return fmt.Errorf("elasticsearch is not available after %d attempts", bs.retries)
}

func (bs *Bootstrapper) createIndex(ctx context.Context, indexName string, index map[string]interface{}) error {
	body, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("error marshaling index input during bootstrap: %w", err)
	}

	res, err := bs.esClient.Indices.Create(
		indexName,
		bs.esClient.Indices.Create.WithBody(strings.NewReader(string(body))),
		bs.esClient.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("error creating index during bootstrap %s: %w", indexName, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		if strings.Contains(res.String(), alreadyExistsError) {
			bs.logger.Info("Index already exists", zap.String("index_name", indexName))
			return nil
		}
		return fmt.Errorf("error response for index %s: %s", indexName, res.String())
	}

	bs.logger.Info("Successfully created index", zap.String("index_name", indexName))
	return nil
}
