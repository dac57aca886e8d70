package bootstrapper

const SpanIndexName = "span_index"

var spanIndex = map[string]interface{}{
	"settings": map[string]interface{}{
		"number_of_shards":   1,
		"number_of_replicas": 1,
	},
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"trace_id": map[string]string{
				"type": "keyword",
			},
			"span_id": map[string]string{
				"type": "keyword",
			},
			"parent_span_id": map[string]string{
				"type": "keyword",
			},
			"operation_name": map[string]string{
				"type": "keyword",
			},
			"service_name": map[string]string{
				"type": "keyword",
			},
			"tenant_id": map[string]string{
				"type": "keyword",
			},
			"user_id": map[string]string{
				"type": "keyword",
			},
			"start_time": map[string]string{
				"type": "date",
			},
			"end_time": map[string]string{
				"type": "date",
			},
			"duration_ms": map[string]string{
				"type": "double",
			},
			"status": map[string]string{
				"type": "keyword",
			},
			"error_message": map[string]string{
				"type": "text",
			},
			"tags": map[string]interface{}{
				"type":    "object",
				"enabled": false,
			},
		},
	},
}
