package service

import (
	"context"
	"github.com/Avi18971911/telemetry-core/internal/metrics"
	"go.uber.org/zap"
	"sync"
	"sync/atomic"
	"time"
)

type QueueStats struct {
	Kind          string `json:"kind"`
	Capacity      int    `json:"capacity"`
	Depth         int    `json:"depth"`
	Accepted      uint64 `json:"accepted"`
	Dropped       uint64 `json:"dropped"`
	Flushed       uint64 `json:"flushed"`
	FlushFailures uint64 `json:"flush_failures"`
	Batches       uint64 `json:"batches"`
	Discarded     uint64 `json:"discarded"`
	Running       bool   `json:"running"`
}

// batchQueue is a bounded FIFO drained by a single consumer in timed batches.
type batchQueue[ItemType any] struct {
	kind       string
	items      chan ItemType
	config     QueueConfig
	storeOne   func(ctx context.Context, item ItemType) error
	storeBatch func(ctx context.Context, items []ItemType) error
	metrics    *metrics.Metrics
	logger     *zap.Logger

	accepted      atomic.Uint64
	dropped       atomic.Uint64
	flushed       atomic.Uint64
	flushFailures atomic.Uint64
	batches       atomic.Uint64
	discarded     atomic.Uint64
	running       atomic.Bool
	closed        atomic.Bool
	// held shared by offer and exclusively by close, so no item is enqueued after the drain
	closeMu sync.RWMutex
}

func newBatchQueue[ItemType any](
	kind string,
	config QueueConfig,
	storeOne func(ctx context.Context, item ItemType) error,
	storeBatch func(ctx context.Context, items []ItemType) error,
	m *metrics.Metrics,
	logger *zap.Logger,
) *batchQueue[ItemType] {
	return &batchQueue[ItemType]{
		kind:       kind,
		items:      make(chan ItemType, config.Capacity),
		config:     config,
		storeOne:   storeOne,
		storeBatch: storeBatch,
		metrics:    m,
		logger:     logger.With(zap.String("queue", kind)),
	}
}

// offer never blocks. A full or closed queue drops the item.
func (q *batchQueue[ItemType]) offer(item ItemType) bool {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed.Load() {
		q.drop("queue stopped")
		return false
	}
	select {
	case q.items <- item:
		q.accepted.Add(1)
		q.metrics.ItemsAccepted.WithLabelValues(q.kind).Inc()
		q.metrics.QueueDepth.WithLabelValues(q.kind).Set(float64(len(q.items)))
		return true
	default:
		q.drop("queue full")
		return false
	}
}

func (q *batchQueue[ItemType]) drop(reason string) {
	q.dropped.Add(1)
	q.metrics.ItemsDropped.WithLabelValues(q.kind).Inc()
	q.logger.Warn(
		"Dropping telemetry item",
		zap.String("reason", reason),
		zap.Int("capacity", q.config.Capacity),
	)
}

func (q *batchQueue[ItemType]) run(ctx context.Context) {
	defer q.running.Store(false)
	for {
		batch := q.collect(ctx)
		if len(batch) > 0 {
			q.flush(batch)
		}
		if ctx.Err() != nil {
			return
		}
		if len(batch) == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(q.config.IdleInterval):
			}
		}
	}
}

// collect waits at most BatchTimeout for each next item. Cancellation closes the batch with
// whatever has already been dequeued.
func (q *batchQueue[ItemType]) collect(ctx context.Context) []ItemType {
	batch := make([]ItemType, 0, q.config.BatchSize)
	timer := time.NewTimer(q.config.BatchTimeout)
	defer timer.Stop()
	for len(batch) < q.config.BatchSize {
		select {
		case <-ctx.Done():
			return batch
		case item := <-q.items:
			batch = append(batch, item)
			timer.Reset(q.config.BatchTimeout)
		case <-timer.C:
			return batch
		}
	}
	return batch
}

func (q *batchQueue[ItemType]) flush(batch []ItemType) {
	q.metrics.QueueDepth.WithLabelValues(q.kind).Set(float64(len(q.items)))
	flushCtx, cancel := context.WithTimeout(context.Background(), q.config.FlushTimeout)
	defer cancel()

	failed := 0
	if q.storeBatch != nil {
		if err := q.storeBatch(flushCtx, batch); err != nil {
			failed = len(batch)
			q.logger.Error("Failed to flush batch", zap.Int("batch_size", len(batch)), zap.Error(err))
		}
	} else {
		for _, item := range batch {
			if err := q.storeOne(flushCtx, item); err != nil {
				failed++
				q.logger.Error("Failed to store item", zap.Error(err))
			}
		}
	}

	q.batches.Add(1)
	q.flushed.Add(uint64(len(batch) - failed))
	q.flushFailures.Add(uint64(failed))
	q.metrics.BatchesFlushed.WithLabelValues(q.kind).Inc()
	q.metrics.FlushFailures.WithLabelValues(q.kind).Add(float64(failed))
	q.logger.Debug("Flushed batch", zap.Int("batch_size", len(batch)), zap.Int("failed", failed))
}

// close rejects further offers and discards whatever is still queued.
// reject makes every later offer fail without draining what is already queued.
func (q *batchQueue[ItemType]) reject() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	q.closed.Store(true)
}

func (q *batchQueue[ItemType]) close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	q.closed.Store(true)
	for {
		select {
		case <-q.items:
			q.discarded.Add(1)
		default:
			q.metrics.QueueDepth.WithLabelValues(q.kind).Set(0)
			if n := q.discarded.Load(); n > 0 {
				q.logger.Warn("Discarded queued items at shutdown", zap.Uint64("discarded", n))
			}
			return
		}
	}
}

func (q *batchQueue[ItemType]) stats() QueueStats {
	return QueueStats{
		Kind:          q.kind,
		Capacity:      q.config.Capacity,
		Depth:         len(q.items),
		Accepted:      q.accepted.Load(),
		Dropped:       q.dropped.Load(),
		Flushed:       q.flushed.Load(),
		FlushFailures: q.flushFailures.Load(),
		Batches:       q.batches.Load(),
		Discarded:     q.discarded.Load(),
		Running:       q.running.Load(),
	}
}
