//go:build integration

package elasticsearch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"github.com/Avi18971911/telemetry-core/internal/db/elasticsearch/bootstrapper"
	"github.com/elastic/go-elasticsearch/v8"
)

func deleteAllDocuments(es *elasticsearch.Client) error {
	indexes := []string{
		bootstrapper.SpanIndexName,
		bootstrapper.LogIndexName,
		bootstrapper.MetricIndexName,
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"match_all": map[string]interface{}{},
		},
	}
	queryJSON, _ := json.Marshal(query)
	res, err := es.DeleteByQuery(indexes, bytes.NewReader(queryJSON), es.DeleteByQuery.WithRefresh(true))
	if err != nil {
		return fmt.Errorf("failed to delete documents by query: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("failed to delete documents in index %s", res.String())
	}
	return nil
}
