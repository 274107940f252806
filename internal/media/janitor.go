package media

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vidtube/backend/internal/metrics"
)

// JanitorConfig controls the concurrency characteristics of the janitor.
type JanitorConfig struct {
	QueueSize int
	Workers   int
	Timeout   time.Duration
}

// Janitor deletes superseded remote assets in the background. Failures are
// logged and counted, never retried.
type Janitor struct {
	store   ObjectStore
	logger  *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	jobs   chan cleanupJob
	wg     sync.WaitGroup
	once   sync.Once
}

type cleanupJob struct {
	key  string
	kind Kind
}

// NewJanitor starts cfg.Workers goroutines draining the cleanup queue.
func NewJanitor(store ObjectStore, cfg JanitorConfig, logger *slog.Logger) *Janitor {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	j := &Janitor{
		store:   store,
		logger:  logger,
		timeout: cfg.Timeout,
		jobs:    make(chan cleanupJob, cfg.QueueSize),
	}

	j.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go j.worker()
	}

	return j
}

// Enqueue schedules deletion of key without blocking. It reports ErrQueueFull
// when the queue has no room and ErrJanitorClosed after Shutdown.
func (j *Janitor) Enqueue(ctx context.Context, key string, kind Kind) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return ErrJanitorClosed
	}

	select {
	case j.jobs <- cleanupJob{key: key, kind: kind}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting work and waits for queued deletions to finish.
func (j *Janitor) Shutdown(ctx context.Context) error {
	j.once.Do(func() {
		j.mu.Lock()
		j.closed = true
		close(j.jobs)
		j.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (j *Janitor) worker() {
	defer j.wg.Done()
	for job := range j.jobs {
		j.delete(context.Background(), job.key, job.kind)
	}
}

// delete removes one asset, swallowing the error after logging it.
func (j *Janitor) delete(ctx context.Context, key string, kind Kind) {
	if j.store == nil {
		j.logger.Error("asset cleanup skipped", "key", key, "error", ErrStoreUnavailable)
		metrics.AssetCleanupFailures.WithLabelValues(string(kind)).Inc()
		return
	}

	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	if err := j.store.Delete(ctx, key); err != nil {
		j.logger.Error("asset cleanup failed", "key", key, "kind", kind, "error", err)
		metrics.AssetCleanupFailures.WithLabelValues(string(kind)).Inc()
		return
	}
	j.logger.Debug("asset removed", "key", key, "kind", kind)
}
