package bootstrapper

const LogIndexName = "log_index"

var logIndex = map[string]interface{}{
	"settings": map[string]interface{}{
		"number_of_shards":   1,
		"number_of_replicas": 1,
		"analysis": map[string]interface{}{
			"analyzer": map[string]interface{}{
				"message_analyzer": map[string]interface{}{
					"type":      "custom",
					"tokenizer": "standard",
					"filter":    []string{"lowercase", "stop"},
				},
			},
		},
	},
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"timestamp": map[string]interface{}{
				"type": "date",
			},
			"level": map[string]interface{}{
				"type": "keyword",
			},
			"message": map[string]interface{}{
				"type":     "text",
				"analyzer": "message_analyzer",
			},
			"tenant_id": map[string]interface{}{
				"type": "keyword",
			},
			"service": map[string]interface{}{
				"type": "keyword",
			},
			"component": map[string]interface{}{
				"type": "keyword",
			},
			"request_id": map[string]interface{}{
				"type": "keyword",
			},
			"correlation_id": map[string]interface{}{
				"type": "keyword",
			},
			"user_id": map[string]interface{}{
				"type": "keyword",
			},
			"fields": map[string]interface{}{
				"type":    "object",
				"enabled": false,
			},
		},
	},
}
