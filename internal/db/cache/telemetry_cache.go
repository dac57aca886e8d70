package cache

import (
	"context"
	"errors"
	"fmt"
	"github.com/Avi18971911/telemetry-core/internal/db/storage"
	perfModel "github.com/Avi18971911/telemetry-core/internal/performance/model"
	traceModel "github.com/Avi18971911/telemetry-core/internal/trace/model"
	"github.com/dgraph-io/ristretto"
	"github.com/zoobzio/clockz"
	"sync"
	"time"
)

const (
	DefaultSpanTTL        = 24 * time.Hour
	DefaultPerformanceTTL = time.Hour
	// traces are indexed per tenant in buckets of this width, keyed by write time
	indexBucketWidth = time.Hour
)

var (
	ErrKeyNotFound = errors.New("key not found within the cache")
	ErrSetFailed   = errors.New("failed to set value in cache")
)

func SpanKey(traceID, spanID string) string {
	return fmt.Sprintf("span:%s:%s", traceID, spanID)
}

func TraceKey(traceID string) string {
	return fmt.Sprintf("trace:%s", traceID)
}

func PerformanceKey(operationName string) string {
	return fmt.Sprintf("perf_metrics:%s", operationName)
}

func tenantTracesKey(tenantID string, bucket int64) string {
	return fmt.Sprintf("tenant_traces:%s:%d", tenantID, bucket)
}

// traceSet holds the trace ids a tenant wrote during one index bucket.
type traceSet map[string]struct{}

// TraceCache is a TTL cache backed TraceStorage. Spans expire after spanTTL and performance
// records after perfTTL, which bounds memory for ephemeral deployments. Every value is
// admitted with a cost equal to the number of items it holds.
type TraceCache struct {
	cache   *ristretto.Cache
	spanTTL time.Duration
	perfTTL time.Duration
	clock   clockz.Clock
	// guards read-modify-write of trace lists and in-place updates of index sets
	mu sync.RWMutex
}

func NewTraceCache(
	cache *ristretto.Cache,
	spanTTL time.Duration,
	perfTTL time.Duration,
	clock clockz.Clock,
) *TraceCache {
	if spanTTL <= 0 {
		spanTTL = DefaultSpanTTL
	}
	if perfTTL <= 0 {
		perfTTL = DefaultPerformanceTTL
	}
	if clock == nil {
		clock = clockz.RealClock
	}
	return &TraceCache{
		cache:   cache,
		spanTTL: spanTTL,
		perfTTL: perfTTL,
		clock:   clock,
	}
}

func NewRistrettoCache(maxItems int64) (*ristretto.Cache, error) {
	if maxItems <= 0 {
		return nil, fmt.Errorf("cache size must be positive, got %d", maxItems)
	}
	return ristretto.NewCache(&ristretto.Config{
		NumCounters:        maxItems * 10,
		MaxCost:            maxItems,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
}

// StoreTraceSpan writes span:{trace}:{span} and the ordered trace:{trace} list. A re-sent
// span replaces its earlier copy; a span whose ids are held by another tenant is refused.
func (tc *TraceCache) StoreTraceSpan(_ context.Context, span traceModel.Span) error {
	if span.TenantID == "" {
		return fmt.Errorf("error caching span %s: %w", span.SpanID, storage.ErrTenantRequired)
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()

	spanKey := SpanKey(span.TraceID, span.SpanID)
	cached, err := getTyped[traceModel.Span](tc.cache, spanKey)
	if err != nil && !errors.Is(err, ErrKeyNotFound) {
		return err
	}
	if err == nil && cached.TenantID != span.TenantID {
		return fmt.Errorf("error caching span %s: %w", span.SpanID, storage.ErrTenantConflict)
	}

	existing, err := getTyped[[]traceModel.Span](tc.cache, TraceKey(span.TraceID))
	if err != nil && !errors.Is(err, ErrKeyNotFound) {
		return err
	}
	stored := span.Clone()
	spans := make([]traceModel.Span, 0, len(existing)+1)
	replaced := false
	for _, s := range existing {
		if s.SpanID != span.SpanID {
			spans = append(spans, s)
			continue
		}
		if s.TenantID != span.TenantID {
			return fmt.Errorf("error caching span %s: %w", span.SpanID, storage.ErrTenantConflict)
		}
		spans = append(spans, stored)
		replaced = true
	}
	if !replaced {
		spans = append(spans, stored)
	}
	storage.SortSpans(spans, storage.OrderByStartTime)

	if !tc.cache.SetWithTTL(spanKey, stored, 1, tc.spanTTL) {
		return ErrSetFailed
	}
	if !tc.cache.SetWithTTL(TraceKey(span.TraceID), spans, int64(len(spans)), tc.spanTTL) {
		return ErrSetFailed
	}
	if err := tc.indexTrace(span.TenantID, span.TraceID); err != nil {
		return err
	}
	tc.cache.Wait()
	return nil
}

func (tc *TraceCache) bucket(t time.Time) int64 {
	return t.Truncate(indexBucketWidth).Unix()
}

// indexTrace adds the trace to the tenant's current bucket. A bucket only grows during its
// own window, so it expires at most one span TTL after the window closes.
func (tc *TraceCache) indexTrace(tenantID string, traceID string) error {
	key := tenantTracesKey(tenantID, tc.bucket(tc.clock.Now()))
	traces, err := getTyped[traceSet](tc.cache, key)
	if errors.Is(err, ErrKeyNotFound) {
		traces = traceSet{}
	} else if err != nil {
		return err
	}
	if _, ok := traces[traceID]; ok {
		return nil
	}
	traces[traceID] = struct{}{}
	if !tc.cache.SetWithTTL(key, traces, int64(len(traces)), tc.spanTTL+indexBucketWidth) {
		return ErrSetFailed
	}
	return nil
}

// indexedTraces lists the tenant's trace ids from every bucket that can still reference a
// live trace. Callers hold tc.mu.
func (tc *TraceCache) indexedTraces(tenantID string) ([]string, error) {
	now := tc.clock.Now()
	first := tc.bucket(now.Add(-tc.spanTTL - indexBucketWidth))
	last := tc.bucket(now)
	step := int64(indexBucketWidth / time.Second)

	seen := make(map[string]struct{})
	var traceIDs []string
	for b := first; b <= last; b += step {
		traces, err := getTyped[traceSet](tc.cache, tenantTracesKey(tenantID, b))
		if errors.Is(err, ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for traceID := range traces {
			if _, ok := seen[traceID]; ok {
				continue
			}
			seen[traceID] = struct{}{}
			traceIDs = append(traceIDs, traceID)
		}
	}
	return traceIDs, nil
}

func (tc *TraceCache) QueryTraceSpans(_ context.Context, query storage.TraceQuery) ([]traceModel.Span, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	if query.TraceID != "" && query.SpanID != "" {
		span, err := getTyped[traceModel.Span](tc.cache, SpanKey(query.TraceID, query.SpanID))
		if errors.Is(err, ErrKeyNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if span.TenantID != query.TenantID || !query.MatchesSpan(span) {
			return nil, nil
		}
		return []traceModel.Span{span.Clone()}, nil
	}

	var traceIDs []string
	if query.TraceID != "" {
		traceIDs = []string{query.TraceID}
	} else {
		ids, err := tc.indexedTraces(query.TenantID)
		if err != nil {
			return nil, err
		}
		traceIDs = ids
	}

	var result []traceModel.Span
	for _, traceID := range traceIDs {
		spans, err := getTyped[[]traceModel.Span](tc.cache, TraceKey(traceID))
		if errors.Is(err, ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, span := range spans {
			if span.TenantID == query.TenantID && query.MatchesSpan(span) {
				result = append(result, span.Clone())
			}
		}
	}
	storage.SortSpans(result, query.Order)
	if len(result) > query.Limit {
		result = result[:query.Limit]
	}
	return result, nil
}

// StorePerformanceRecord keeps the newest record per operation; a mirror that arrives
// late with fewer observations does not overwrite a fresher one.
func (tc *TraceCache) StorePerformanceRecord(_ context.Context, record perfModel.PerformanceRecord) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	key := PerformanceKey(record.OperationName)
	existing, err := getTyped[perfModel.PerformanceRecord](tc.cache, key)
	if err == nil && existing.TotalRequests > record.TotalRequests {
		return nil
	}
	if !tc.cache.SetWithTTL(key, record, 1, tc.perfTTL) {
		return ErrSetFailed
	}
	tc.cache.Wait()
	return nil
}

func (tc *TraceCache) GetPerformanceRecord(operationName string) (perfModel.PerformanceRecord, error) {
	return getTyped[perfModel.PerformanceRecord](tc.cache, PerformanceKey(operationName))
}

func getTyped[ValueType any](cache *ristretto.Cache, key string) (ValueType, error) {
	var zero ValueType
	value, found := cache.Get(key)
	if !found {
		return zero, ErrKeyNotFound
	}
	typedValue, ok := value.(ValueType)
	if !ok {
		return zero, fmt.Errorf("value not of expected type %T returned from cache for key %s", value, key)
	}
	return typedValue, nil
}
