package app

import (
	"context"
	"fmt"
	"github.com/Avi18971911/telemetry-core/internal/config"
	"github.com/Avi18971911/telemetry-core/internal/db/cache"
	"github.com/Avi18971911/telemetry-core/internal/db/elasticsearch/bootstrapper"
	"github.com/Avi18971911/telemetry-core/internal/db/elasticsearch/client"
	esStorage "github.com/Avi18971911/telemetry-core/internal/db/elasticsearch/storage"
	"github.com/Avi18971911/telemetry-core/internal/db/memory"
	"github.com/Avi18971911/telemetry-core/internal/db/storage"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/zoobzio/clockz"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Backends are the storage adapters selected by configuration. Cache is nil unless the
// ristretto trace cache is enabled, in which case it also serves spans.
type Backends struct {
	Traces  storage.TraceStorage
	Logs    storage.LogStorage
	Metrics storage.MetricStorage
	Cache   *cache.TraceCache
}

func provideBackends(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*Backends, error) {
	backends := &Backends{}

	switch cfg.Storage.Backend {
	case config.ElasticsearchBackend:
		es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: cfg.Storage.ElasticsearchAddresses})
		if err != nil {
			return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
		}
		bs := bootstrapper.NewBootstrapper(
			es,
			cfg.Storage.BootstrapRetries,
			cfg.Storage.BootstrapRetryDelay,
			logger,
		)
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return bs.BootstrapElasticsearch(ctx)
			},
		})
		tc := client.NewTelemetryClientImpl(es, client.Async)
		backends.Traces = esStorage.NewSpanStorageImpl(tc, logger)
		backends.Logs = esStorage.NewLogStorageImpl(tc, logger)
		backends.Metrics = esStorage.NewMetricStorageImpl(tc, logger)
	default:
		mem := memory.NewTelemetryStorage()
		backends.Traces = mem
		backends.Logs = mem
		backends.Metrics = mem
	}

	if cfg.Storage.CacheEnabled {
		rc, err := cache.NewRistrettoCache(cfg.Storage.CacheMaxItems)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace cache: %w", err)
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				rc.Close()
				return nil
			},
		})
		backends.Cache = cache.NewTraceCache(rc, cfg.Storage.SpanTTL, cfg.Storage.PerfTTL, clockz.RealClock)
		backends.Traces = backends.Cache
	}

	logger.Info(
		"Storage backends selected",
		zap.String("backend", cfg.Storage.Backend),
		zap.Bool("trace_cache", cfg.Storage.CacheEnabled),
	)
	return backends, nil
}
