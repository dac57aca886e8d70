package storage

import (
	"github.com/Avi18971911/telemetry-core/internal/db/storage"
)

// every query is scoped by a mandatory tenant_id term
func tenantFilter(tenantID string) []map[string]interface{} {
	return []map[string]interface{}{
		{
			"term": map[string]interface{}{
				"tenant_id": tenantID,
			},
		},
	}
}

func rangeFilter(field string, tr storage.TimeRange) map[string]interface{} {
	bounds := map[string]interface{}{}
	if tr.StartTime != nil {
		bounds["gte"] = tr.StartTime.UTC()
	}
	if tr.EndTime != nil {
		bounds["lte"] = tr.EndTime.UTC()
	}
	if len(bounds) == 0 {
		return nil
	}
	return map[string]interface{}{
		"range": map[string]interface{}{
			field: bounds,
		},
	}
}

func termFilter(field string, value string) map[string]interface{} {
	return map[string]interface{}{
		"term": map[string]interface{}{
			field: value,
		},
	}
}

func buildTraceSpansQuery(query storage.TraceQuery) map[string]interface{} {
	filters := tenantFilter(query.TenantID)
	if query.TraceID != "" {
		filters = append(filters, termFilter("trace_id", query.TraceID))
	}
	if query.SpanID != "" {
		filters = append(filters, termFilter("span_id", query.SpanID))
	}
	if query.ServiceName != "" {
		filters = append(filters, termFilter("service_name", query.ServiceName))
	}
	if query.OperationName != "" {
		filters = append(filters, termFilter("operation_name", query.OperationName))
	}
	if query.Status != "" {
		filters = append(filters, termFilter("status", string(query.Status)))
	}
	if query.MinDurationMs > 0 {
		filters = append(filters, map[string]interface{}{
			"range": map[string]interface{}{
				"duration_ms": map[string]interface{}{
					"gte": query.MinDurationMs,
				},
			},
		})
	}
	if r := rangeFilter("start_time", query.TimeRange); r != nil {
		filters = append(filters, r)
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": filters,
			},
		},
		"sort": spanSort(query.Order),
	}
}

// span_id breaks ties so paging through equal timestamps is deterministic
func spanSort(order storage.SpanOrder) []map[string]interface{} {
	field, direction := "start_time", "asc"
	switch order {
	case storage.OrderByStartTimeDesc:
		direction = "desc"
	case storage.OrderByDurationDesc:
		field, direction = "duration_ms", "desc"
	}
	clauses := []map[string]interface{}{
		{field: map[string]interface{}{"order": direction}},
	}
	if field == "duration_ms" {
		clauses = append(clauses, map[string]interface{}{"start_time": map[string]interface{}{"order": "desc"}})
	}
	return append(clauses, map[string]interface{}{"span_id": map[string]interface{}{"order": direction}})
}

func buildLogsQuery(query storage.LogQuery) map[string]interface{} {
	filters := tenantFilter(query.TenantID)
	if len(query.Levels) > 0 {
		levels := make([]string, len(query.Levels))
		for i, level := range query.Levels {
			levels[i] = string(level)
		}
		filters = append(filters, map[string]interface{}{
			"terms": map[string]interface{}{
				"level": levels,
			},
		})
	}
	if query.Service != "" {
		filters = append(filters, termFilter("service", query.Service))
	}
	if r := rangeFilter("timestamp", query.TimeRange); r != nil {
		filters = append(filters, r)
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": filters,
			},
		},
		"sort": []map[string]interface{}{
			{
				"timestamp": map[string]interface{}{
					"order": "desc",
				},
			},
		},
	}
}

func buildMetricsQuery(query storage.MetricQuery) map[string]interface{} {
	filters := tenantFilter(query.TenantID)
	if len(query.MetricNames) > 0 {
		filters = append(filters, map[string]interface{}{
			"terms": map[string]interface{}{
				"name": query.MetricNames,
			},
		})
	}
	if r := rangeFilter("timestamp", query.TimeRange); r != nil {
		filters = append(filters, r)
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": filters,
			},
		},
		"sort": []map[string]interface{}{
			{
				"timestamp": map[string]interface{}{
					"order": "desc",
				},
			},
		},
	}
}
