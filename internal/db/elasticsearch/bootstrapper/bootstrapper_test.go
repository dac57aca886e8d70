package bootstrapper

import (
	"context"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestBootstrapper_BootstrapElasticsearch(t *testing.T) {
	t.Run("Creates every index and tolerates existing ones", func(t *testing.T) {
		var mu sync.Mutex
		var created []string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Elastic-Product", "Elasticsearch")
			w.Header().Set("Content-Type", "application/json")
			if r.Method == http.MethodGet {
				_, _ = io.WriteString(w, `{"version":{"number":"8.15.0"}}`)
				return
			}
			mu.Lock()
			created = append(created, r.URL.Path)
			mu.Unlock()
			if r.URL.Path == "/"+LogIndexName {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"error":{"type":"resource_already_exists_exception"},"status":400}`)
				return
			}
			_, _ = io.WriteString(w, `{"acknowledged":true}`)
		}))
		defer srv.Close()

		es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
		require.NoError(t, err)
		bs := NewBootstrapper(es, 1, time.Millisecond, zap.NewNop())

		require.NoError(t, bs.BootstrapElasticsearch(context.Background()))
		assert.Equal(t, []string{"/" + SpanIndexName, "/" + LogIndexName, "/" + MetricIndexName}, created)
	})

	t.Run("Gives up after the configured retries", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Elastic-Product", "Elasticsearch")
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}, MaxRetries: 0, DisableRetry: true})
		require.NoError(t, err)
		bs := NewBootstrapper(es, 2, time.Millisecond, zap.NewNop())

		err = bs.BootstrapElasticsearch(context.Background())
		assert.Error(t, err)
	})
}
