package model

import "time"

type PerformanceRecord struct {
	OperationName      string    `json:"operation_name"`
	TotalRequests      int64     `json:"total_requests"`
	SuccessfulRequests int64     `json:"successful_requests"`
	FailedRequests     int64     `json:"failed_requests"`
	TotalDuration      float64   `json:"total_duration"`
	MinDuration        float64   `json:"min_duration"`
	MaxDuration        float64   `json:"max_duration"`
	AvgDuration        float64   `json:"avg_duration"`
	SuccessRate        float64   `json:"success_rate"`
	LastUpdated        time.Time `json:"last_updated"`
}

// WithDerived fills AvgDuration and SuccessRate from the running counters.
func (r PerformanceRecord) WithDerived() PerformanceRecord {
	if r.TotalRequests == 0 {
		r.AvgDuration = 0
		r.SuccessRate = 0
		return r
	}
	r.AvgDuration = r.TotalDuration / float64(r.TotalRequests)
	r.SuccessRate = float64(r.SuccessfulRequests) / float64(r.TotalRequests)
	return r
}

type LatencyPercentiles struct {
	OperationName string  `json:"operation_name"`
	SampleCount   int     `json:"sample_count"`
	P50           float64 `json:"p50"`
	P95           float64 `json:"p95"`
	P99           float64 `json:"p99"`
}
