package config

import (
	"errors"
	"fmt"
	"github.com/Avi18971911/telemetry-core/internal/db/cache"
	ingestionService "github.com/Avi18971911/telemetry-core/internal/ingestion/service"
	"github.com/kelseyhightower/envconfig"
	"time"
)

const (
	MemoryBackend        = "memory"
	ElasticsearchBackend = "elasticsearch"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Server    ServerConfig
	Ingestion IngestionConfig
	Storage   StorageConfig
	Tracing   TracingConfig
	Logging   LogConfig
	Metrics   MetricsConfig
}

type ServerConfig struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8081"`
	GRPCAddr        string        `envconfig:"GRPC_ADDR" default:":4317"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

type IngestionConfig struct {
	QueueCapacity int           `envconfig:"QUEUE_CAPACITY" default:"50000"`
	BatchSize     int           `envconfig:"BATCH_SIZE" default:"1000"`
	BatchTimeout  time.Duration `envconfig:"BATCH_TIMEOUT" default:"1s"`
	IdleInterval  time.Duration `envconfig:"IDLE_INTERVAL" default:"100ms"`
	FlushTimeout  time.Duration `envconfig:"FLUSH_TIMEOUT" default:"10s"`
}

// StorageConfig selects the persistence backend. With CacheEnabled the ristretto trace
// cache serves span reads and mirrors performance records.
type StorageConfig struct {
	Backend                string        `envconfig:"STORAGE_BACKEND" default:"memory"`
	ElasticsearchAddresses []string      `envconfig:"ELASTICSEARCH_ADDRESSES" default:"http://localhost:9200"`
	BootstrapRetries       int           `envconfig:"ELASTICSEARCH_BOOTSTRAP_RETRIES" default:"10"`
	BootstrapRetryDelay    time.Duration `envconfig:"ELASTICSEARCH_BOOTSTRAP_DELAY" default:"3s"`
	CacheEnabled           bool          `envconfig:"CACHE_ENABLED" default:"false"`
	CacheMaxItems          int64         `envconfig:"CACHE_MAX_ITEMS" default:"100000"`
	SpanTTL                time.Duration `envconfig:"SPAN_TTL" default:"24h"`
	PerfTTL                time.Duration `envconfig:"PERF_TTL" default:"1h"`
}

type TracingConfig struct {
	ServiceName    string `envconfig:"SERVICE_NAME" default:"telemetry-core"`
	ExportEnabled  bool   `envconfig:"EXPORT_ENABLED" default:"false"`
	ExportEndpoint string `envconfig:"EXPORT_ENDPOINT" default:"localhost:4318"`
	ExportInsecure bool   `envconfig:"EXPORT_INSECURE" default:"true"`
}

type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

type MetricsConfig struct {
	EnableDefaultCollectors bool `envconfig:"METRICS_DEFAULT_COLLECTORS" default:"true"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func Default() *Config {
	queue := ingestionService.DefaultQueueConfig()
	return &Config{
		Server: ServerConfig{
			HTTPAddr:        ":8081",
			GRPCAddr:        ":4317",
			ShutdownTimeout: 15 * time.Second,
		},
		Ingestion: IngestionConfig{
			QueueCapacity: queue.Capacity,
			BatchSize:     queue.BatchSize,
			BatchTimeout:  queue.BatchTimeout,
			IdleInterval:  queue.IdleInterval,
			FlushTimeout:  queue.FlushTimeout,
		},
		Storage: StorageConfig{
			Backend:                MemoryBackend,
			ElasticsearchAddresses: []string{"http://localhost:9200"},
			BootstrapRetries:       10,
			BootstrapRetryDelay:    3 * time.Second,
			CacheMaxItems:          100000,
			SpanTTL:                cache.DefaultSpanTTL,
			PerfTTL:                cache.DefaultPerformanceTTL,
		},
		Tracing: TracingConfig{
			ServiceName:    "telemetry-core",
			ExportEndpoint: "localhost:4318",
			ExportInsecure: true,
		},
		Logging: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			EnableDefaultCollectors: true,
		},
	}
}

func (c *Config) Validate() error {
	if err := c.QueueConfig().Validate(); err != nil {
		return fmt.Errorf("ingestion: %w", err)
	}
	switch c.Storage.Backend {
	case MemoryBackend:
	case ElasticsearchBackend:
		if len(c.Storage.ElasticsearchAddresses) == 0 {
			return fmt.Errorf("elasticsearch backend needs at least one address: %w", ErrInvalidConfig)
		}
		if c.Storage.BootstrapRetries <= 0 {
			return fmt.Errorf("bootstrap retries must be positive: %w", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("unknown storage backend %q: %w", c.Storage.Backend, ErrInvalidConfig)
	}
	if c.Storage.CacheEnabled && c.Storage.CacheMaxItems <= 0 {
		return fmt.Errorf("cache size must be positive: %w", ErrInvalidConfig)
	}
	if c.Storage.SpanTTL <= 0 || c.Storage.PerfTTL <= 0 {
		return fmt.Errorf("cache ttls must be positive: %w", ErrInvalidConfig)
	}
	if c.Tracing.ServiceName == "" {
		return fmt.Errorf("service name is empty: %w", ErrInvalidConfig)
	}
	if c.Tracing.ExportEnabled && c.Tracing.ExportEndpoint == "" {
		return fmt.Errorf("span export needs an endpoint: %w", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) QueueConfig() ingestionService.QueueConfig {
	return ingestionService.QueueConfig{
		Capacity:     c.Ingestion.QueueCapacity,
		BatchSize:    c.Ingestion.BatchSize,
		BatchTimeout: c.Ingestion.BatchTimeout,
		IdleInterval: c.Ingestion.IdleInterval,
		FlushTimeout: c.Ingestion.FlushTimeout,
	}
}
