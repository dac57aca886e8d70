package bootstrapper

const MetricIndexName = "metric_index"

var metricIndex = map[string]interface{}{
	"settings": map[string]interface{}{
		"number_of_shards":   1,
		"number_of_replicas": 1,
	},
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"name": map[string]interface{}{
				"type": "keyword",
			},
			"type": map[string]interface{}{
				"type": "keyword",
			},
			"value": map[string]interface{}{
				"type": "double",
			},
			"timestamp": map[string]interface{}{
				"type": "date",
			},
			"tenant_id": map[string]interface{}{
				"type": "keyword",
			},
			"labels": map[string]interface{}{
				"type": "flattened",
			},
		},
	},
}
