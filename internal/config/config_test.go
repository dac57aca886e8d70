package config

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Run("Defaults match Default()", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("Reads overrides from the environment", func(t *testing.T) {
		t.Setenv("QUEUE_CAPACITY", "10")
		t.Setenv("BATCH_TIMEOUT", "250ms")
		t.Setenv("STORAGE_BACKEND", "elasticsearch")
		t.Setenv("ELASTICSEARCH_ADDRESSES", "http://es1:9200,http://es2:9200")
		t.Setenv("SPAN_TTL", "2h")
		t.Setenv("SERVICE_NAME", "checkout")
		t.Setenv("EXPORT_ENABLED", "true")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 10, cfg.Ingestion.QueueCapacity)
		assert.Equal(t, 250*time.Millisecond, cfg.QueueConfig().BatchTimeout)
		assert.Equal(t, ElasticsearchBackend, cfg.Storage.Backend)
		assert.Equal(t, []string{"http://es1:9200", "http://es2:9200"}, cfg.Storage.ElasticsearchAddresses)
		assert.Equal(t, 2*time.Hour, cfg.Storage.SpanTTL)
		assert.Equal(t, "checkout", cfg.Tracing.ServiceName)
		assert.True(t, cfg.Tracing.ExportEnabled)
	})

	t.Run("Rejects malformed values", func(t *testing.T) {
		t.Setenv("BATCH_SIZE", "many")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestConfig_Validate(t *testing.T) {
	t.Run("Default configuration is valid", func(t *testing.T) {
		assert.NoError(t, Default().Validate())
	})

	t.Run("Non-positive capacity is rejected", func(t *testing.T) {
		cfg := Default()
		cfg.Ingestion.QueueCapacity = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("Unknown backend is rejected", func(t *testing.T) {
		cfg := Default()
		cfg.Storage.Backend = "cassandra"
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})

	t.Run("Elasticsearch backend needs addresses", func(t *testing.T) {
		cfg := Default()
		cfg.Storage.Backend = ElasticsearchBackend
		cfg.Storage.ElasticsearchAddresses = nil
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})

	t.Run("Enabled cache needs a size", func(t *testing.T) {
		cfg := Default()
		cfg.Storage.CacheEnabled = true
		cfg.Storage.CacheMaxItems = 0
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})

	t.Run("QueueConfig carries the ingestion settings", func(t *testing.T) {
		cfg := Default()
		cfg.Ingestion.BatchSize = 7
		assert.Equal(t, 7, cfg.QueueConfig().BatchSize)
		assert.Equal(t, 50000, cfg.QueueConfig().Capacity)
	})
}
