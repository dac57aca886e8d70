package client

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/Avi18971911/telemetry-core/internal/db/elasticsearch/model"
	"strings"
)

func (a *TelemetryClientImpl) Search(
	ctx context.Context,
	query string,
	indices []string,
	queryResultSize *int,
) ([]map[string]interface{}, error) {
	res, err := a.es.Search(
		a.es.Search.WithContext(ctx),
		a.es.Search.WithIndex(indices...),
		a.es.Search.WithBody(strings.NewReader(query)),
		a.es.Search.WithSize(getQuerySize(queryResultSize)),
	)

	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("failed to execute query: %s", res.String())
	}

	var esResponse model.EsResponse
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}

	results := make([]map[string]interface{}, 0, len(esResponse.Hits.HitArray))
	for _, hit := range esResponse.Hits.HitArray {
		var source map[string]interface{}
		if err := json.Unmarshal(hit.Source, &source); err != nil {
			return nil, fmt.Errorf("failed to decode hit source %s: %w", hit.ID, err)
		}
		source["_id"] = hit.ID
		results = append(results, source)
	}

	return results, nil
}

func (a *TelemetryClientImpl) Count(
	ctx context.Context,
	query string,
	indices []string,
) (int64, error) {
	res, err := a.es.Count(
		a.es.Count.WithContext(ctx),
		a.es.Count.WithIndex(indices...),
		a.es.Count.WithBody(strings.NewReader(query)),
	)

	if err != nil {
		return 0, fmt.Errorf("failed to execute query: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, fmt.Errorf("failed to execute query: %s", res.String())
	}

	var countResponse model.CountResponse
	if err := json.NewDecoder(res.Body).Decode(&countResponse); err != nil {
		return 0, fmt.Errorf("failed to decode response body: %w", err)
	}

	return countResponse.Count, nil
}

func getQuerySize(querySize *int) int {
	if querySize == nil {
		return SearchResultSize
	}
	return *querySize
}
