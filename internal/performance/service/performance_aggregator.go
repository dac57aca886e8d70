package service

import (
	"context"
	"github.com/Avi18971911/telemetry-core/internal/performance/model"
	"go.uber.org/zap"
	"sort"
	"sync"
	"time"
)

const sinkTimeout = 2 * time.Second

// PerformanceSink receives a copy of every updated record, e.g. a TTL cache.
type PerformanceSink interface {
	StorePerformanceRecord(ctx context.Context, record model.PerformanceRecord) error
}

type PerformanceAggregator interface {
	Update(ctx context.Context, operationName string, durationMs float64, success bool) model.PerformanceRecord
	Read(operationName string) (model.PerformanceRecord, bool)
	ReadAll() map[string]model.PerformanceRecord
}

type PerformanceAggregatorImpl struct {
	records map[string]*model.PerformanceRecord
	mu      sync.RWMutex
	sink    PerformanceSink
	logger  *zap.Logger
}

// NewPerformanceAggregator creates an in-memory aggregator. sink may be nil.
func NewPerformanceAggregator(sink PerformanceSink, logger *zap.Logger) *PerformanceAggregatorImpl {
	return &PerformanceAggregatorImpl{
		records: make(map[string]*model.PerformanceRecord),
		sink:    sink,
		logger:  logger,
	}
}

func (pa *PerformanceAggregatorImpl) Update(
	ctx context.Context,
	operationName string,
	durationMs float64,
	success bool,
) model.PerformanceRecord {
	pa.mu.Lock()
	record, ok := pa.records[operationName]
	if !ok {
		record = &model.PerformanceRecord{
			OperationName: operationName,
			MinDuration:   durationMs,
			MaxDuration:   durationMs,
		}
		pa.records[operationName] = record
	}
	record.TotalRequests++
	record.TotalDuration += durationMs
	if success {
		record.SuccessfulRequests++
	} else {
		record.FailedRequests++
	}
	if durationMs < record.MinDuration {
		record.MinDuration = durationMs
	}
	if durationMs > record.MaxDuration {
		record.MaxDuration = durationMs
	}
	record.LastUpdated = time.Now().UTC()
	snapshot := record.WithDerived()
	pa.mu.Unlock()

	if pa.sink != nil {
		sinkCtx, cancel := context.WithTimeout(ctx, sinkTimeout)
		defer cancel()
		if err := pa.sink.StorePerformanceRecord(sinkCtx, snapshot); err != nil {
			pa.logger.Error(
				"Failed to mirror performance record",
				zap.String("operation_name", operationName),
				zap.Error(err),
			)
		}
	}
	return snapshot
}

func (pa *PerformanceAggregatorImpl) Read(operationName string) (model.PerformanceRecord, bool) {
	pa.mu.RLock()
	defer pa.mu.RUnlock()
	record, ok := pa.records[operationName]
	if !ok {
		return model.PerformanceRecord{}, false
	}
	return record.WithDerived(), true
}

func (pa *PerformanceAggregatorImpl) ReadAll() map[string]model.PerformanceRecord {
	pa.mu.RLock()
	defer pa.mu.RUnlock()
	result := make(map[string]model.PerformanceRecord, len(pa.records))
	for name, record := range pa.records {
		result[name] = record.WithDerived()
	}
	return result
}

// Percentiles uses index percentiles (sorted[int(n*q)]) rather than interpolation.
func Percentiles(operationName string, durations []float64) model.LatencyPercentiles {
	result := model.LatencyPercentiles{
		OperationName: operationName,
		SampleCount:   len(durations),
	}
	if len(durations) == 0 {
		return result
	}
	sorted := make([]float64, len(durations))
	copy(sorted, durations)
	sort.Float64s(sorted)
	result.P50 = indexPercentile(sorted, 0.50)
	result.P95 = indexPercentile(sorted, 0.95)
	result.P99 = indexPercentile(sorted, 0.99)
	return result
}

func indexPercentile(sorted []float64, q float64) float64 {
	i := int(float64(len(sorted)) * q)
	if i >= len(sorted) {
		i = len(sorted) - 1
	}
	return sorted[i]
}
