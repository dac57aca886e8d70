package service

import (
	"context"
	"errors"
	"fmt"
	"github.com/Avi18971911/telemetry-core/internal/db/storage"
	"github.com/Avi18971911/telemetry-core/internal/ingestion/model"
	"github.com/Avi18971911/telemetry-core/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"sync"
	"time"
)

const (
	DefaultQueueCapacity = 50000
	DefaultBatchSize     = 1000
	DefaultBatchTimeout  = time.Second
	DefaultIdleInterval  = 100 * time.Millisecond
	DefaultFlushTimeout  = 10 * time.Second
)

var (
	ErrInvalidQueueConfig = errors.New("invalid ingestion queue configuration")
	ErrManagerStopped     = errors.New("ingestion queue manager has been stopped")
)

type QueueConfig struct {
	Capacity     int
	BatchSize    int
	BatchTimeout time.Duration
	IdleInterval time.Duration
	FlushTimeout time.Duration
}

func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		Capacity:     DefaultQueueCapacity,
		BatchSize:    DefaultBatchSize,
		BatchTimeout: DefaultBatchTimeout,
		IdleInterval: DefaultIdleInterval,
		FlushTimeout: DefaultFlushTimeout,
	}
}

func (c QueueConfig) Validate() error {
	if c.Capacity <= 0 || c.BatchSize <= 0 {
		return fmt.Errorf("%w: capacity and batch size must be positive", ErrInvalidQueueConfig)
	}
	if c.BatchTimeout <= 0 || c.IdleInterval <= 0 || c.FlushTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidQueueConfig)
	}
	return nil
}

type IngestionStats struct {
	Metrics QueueStats `json:"metrics"`
	Logs    QueueStats `json:"logs"`
}

type IngestionQueueManager interface {
	// SubmitMetric never blocks. accepted is false when the metric queue is full or stopped;
	// err is only returned for invalid metrics.
	SubmitMetric(metric model.Metric) (accepted bool, err error)
	SubmitLog(entry model.LogEntry) (accepted bool, err error)
	Start(ctx context.Context) error
	// Stop is idempotent. Batches already dequeued are flushed, queued items are discarded.
	Stop(ctx context.Context) error
	Stats() IngestionStats
}

type QueueManagerImpl struct {
	metricQueue *batchQueue[model.Metric]
	logQueue    *batchQueue[model.LogEntry]
	logger      *zap.Logger

	mu       sync.Mutex
	started  bool
	stopped  bool
	cancel   context.CancelFunc
	group    *errgroup.Group
	stopOnce sync.Once
	done     chan struct{}
}

// NewQueueManagerImpl wires the queues to storage. Adapters that also implement the bulk
// interfaces receive each batch in a single call.
func NewQueueManagerImpl(
	config QueueConfig,
	metricStorage storage.MetricStorage,
	logStorage storage.LogStorage,
	m *metrics.Metrics,
	logger *zap.Logger,
) (*QueueManagerImpl, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var storeMetrics func(context.Context, []model.Metric) error
	if bulk, ok := metricStorage.(storage.BulkMetricStorage); ok {
		storeMetrics = bulk.StoreMetrics
	}
	var storeLogs func(context.Context, []model.LogEntry) error
	if bulk, ok := logStorage.(storage.BulkLogStorage); ok {
		storeLogs = bulk.StoreLogs
	}

	return &QueueManagerImpl{
		metricQueue: newBatchQueue(metrics.KindMetric, config, metricStorage.StoreMetric, storeMetrics, m, logger),
		logQueue:    newBatchQueue(metrics.KindLog, config, logStorage.StoreLog, storeLogs, m, logger),
		logger:      logger,
		done:        make(chan struct{}),
	}, nil
}

func (qm *QueueManagerImpl) SubmitMetric(metric model.Metric) (bool, error) {
	if err := metric.Validate(); err != nil {
		return false, err
	}
	return qm.metricQueue.offer(metric), nil
}

func (qm *QueueManagerImpl) SubmitLog(entry model.LogEntry) (bool, error) {
	if err := entry.Validate(); err != nil {
		return false, err
	}
	return qm.logQueue.offer(entry), nil
}

// Start spawns one consumer per queue. Items submitted before Start are kept and drained
// once the consumers run.
func (qm *QueueManagerImpl) Start(ctx context.Context) error {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	if qm.stopped {
		return ErrManagerStopped
	}
	if qm.started {
		return nil
	}
	qm.started = true

	consumerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	qm.cancel = cancel
	qm.group = &errgroup.Group{}
	qm.metricQueue.running.Store(true)
	qm.logQueue.running.Store(true)
	qm.group.Go(func() error {
		qm.metricQueue.run(consumerCtx)
		return nil
	})
	qm.group.Go(func() error {
		qm.logQueue.run(consumerCtx)
		return nil
	})
	qm.logger.Info("Ingestion queues started")
	return nil
}

func (qm *QueueManagerImpl) Stop(ctx context.Context) error {
	qm.stopOnce.Do(func() {
		qm.mu.Lock()
		qm.stopped = true
		cancel, group := qm.cancel, qm.group
		qm.mu.Unlock()

		qm.metricQueue.reject()
		qm.logQueue.reject()
		go func() {
			defer close(qm.done)
			if cancel != nil {
				cancel()
				_ = group.Wait()
			}
			qm.metricQueue.close()
			qm.logQueue.close()
			qm.logger.Info("Ingestion queues stopped")
		}()
	})

	select {
	case <-qm.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for ingestion consumers: %w", ctx.Err())
	}
}

func (qm *QueueManagerImpl) Stats() IngestionStats {
	return IngestionStats{
		Metrics: qm.metricQueue.stats(),
		Logs:    qm.logQueue.stats(),
	}
}
