package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/Avi18971911/telemetry-core/internal/db/elasticsearch/model"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"strings"
)

func (a *TelemetryClientImpl) BulkIndex(
	ctx context.Context,
	metaInfo []MetaMap,
	data []DocumentMap,
	index string,
) error {
	body, err := buildBulkBody(metaInfo, data)
	if err != nil {
		return err
	}

	var res *esapi.Response
	if len(index) > 0 {
		res, err = a.es.Bulk(
			bytes.NewReader(body),
			a.es.Bulk.WithIndex(index),
			a.es.Bulk.WithContext(ctx),
			a.es.Bulk.WithRefresh(a.refreshRate),
		)
	} else {
		res, err = a.es.Bulk(
			bytes.NewReader(body),
			a.es.Bulk.WithContext(ctx),
			a.es.Bulk.WithRefresh(a.refreshRate),
		)
	}
	if err != nil {
		return fmt.Errorf("error bulk indexing: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("bulk index error: %s", res.String())
	}

	var bulkResponse model.BulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulkResponse); err != nil {
		return fmt.Errorf("failed to decode bulk response body: %w", err)
	}
	return bulkItemErrors(bulkResponse)
}

func (a *TelemetryClientImpl) Index(
	ctx context.Context,
	metaInfo MetaMap,
	data DocumentMap,
	index string,
) error {
	if metaInfo == nil {
		return a.BulkIndex(ctx, nil, []DocumentMap{data}, index)
	}
	return a.BulkIndex(ctx, []MetaMap{metaInfo}, []DocumentMap{data}, index)
}

func buildBulkBody(metaInfo []MetaMap, data []DocumentMap) ([]byte, error) {
	var buf bytes.Buffer
	for i, d := range data {
		var meta MetaMap
		if metaInfo != nil && i < len(metaInfo) {
			meta = metaInfo[i]
		} else {
			// empty meta for bulk index
			meta = MetaMap{"index": map[string]interface{}{}}
		}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return nil, fmt.Errorf("error marshaling meta to bulk index: %w", err)
		}
		buf.Write(metaJSON)
		buf.WriteByte('\n')

		dataJSON, err := json.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("error marshaling data to bulk index: %w", err)
		}
		buf.Write(dataJSON)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func bulkItemErrors(res model.BulkResponse) error {
	if !res.Errors {
		return nil
	}
	var reasons []string
	for _, item := range res.Items {
		for action, result := range item {
			if result.Error != nil {
				reasons = append(
					reasons,
					fmt.Sprintf("%s %s: %s (%s)", action, result.ID, result.Error.Reason, result.Error.Type),
				)
			}
		}
	}
	return fmt.Errorf("bulk index partially failed for %d items: %s", len(reasons), strings.Join(reasons, "; "))
}
