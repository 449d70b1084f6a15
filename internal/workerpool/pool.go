package workerpool

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// WorkerPool owns QueueCount bounded queues with ThreadsPerQueue workers attached to
// each. Submissions land on a random queue and fall back to linear probing when that
// queue is full.
type WorkerPool struct {
	config   Config
	queues   []*boundedQueue
	workers  []*Worker
	stats    *Stats
	observer Observer
	logger   *zap.Logger
	now      func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	shutdown atomic.Bool
	wg       sync.WaitGroup
}

// Option customizes a WorkerPool.
type Option func(*WorkerPool)

// WithLogger sets the logger for lifecycle events.
func WithLogger(logger *zap.Logger) Option {
	return func(p *WorkerPool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRand injects the generator used to pick the starting queue.
func WithRand(rng *rand.Rand) Option {
	return func(p *WorkerPool) {
		if rng != nil {
			p.rng = rng
		}
	}
}

// WithSeed seeds the queue picker for reproducible placement.
func WithSeed(seed int64) Option {
	return WithRand(rand.New(rand.NewSource(seed)))
}

// WithObserver attaches an Observer such as a metrics exporter.
func WithObserver(observer Observer) Option {
	return func(p *WorkerPool) {
		if observer != nil {
			p.observer = observer
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(p *WorkerPool) { p.now = now }
}

// NewWorkerPool validates cfg and starts QueueCount*ThreadsPerQueue workers. stats must
// have been created for cfg.QueueCount queues.
func NewWorkerPool(cfg Config, stats *Stats, opts ...Option) (*WorkerPool, error) {
	if cfg.RejectPolicy == "" {
		cfg.RejectPolicy = RejectDrop
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if stats == nil {
		return nil, fmt.Errorf("%w: stats sink is required", ErrInvalidConfig)
	}
	if stats.QueueCount() != cfg.QueueCount {
		return nil, fmt.Errorf("%w: stats tracks %d queues, pool has %d",
			ErrInvalidConfig, stats.QueueCount(), cfg.QueueCount)
	}

	wp := &WorkerPool{
		config:   cfg,
		queues:   make([]*boundedQueue, 0, cfg.QueueCount),
		workers:  make([]*Worker, 0, cfg.Workers()),
		stats:    stats,
		observer: noopObserver{},
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(wp)
	}
	if wp.rng == nil {
		wp.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	for i := 0; i < cfg.QueueCount; i++ {
		wp.queues = append(wp.queues, newBoundedQueue(i, cfg.QueueCapacity, stats, wp.now))
	}

	// start workers
	for i, q := range wp.queues {
		for j := 0; j < cfg.ThreadsPerQueue; j++ {
			worker := &Worker{
				ID:       i*cfg.ThreadsPerQueue + j + 1,
				Queue:    i,
				queue:    q,
				stats:    stats,
				observer: wp.observer,
				logger:   wp.logger,
				wg:       &wp.wg,
			}
			wp.workers = append(wp.workers, worker)
			wp.wg.Add(1)
			go worker.start()
		}
	}

	wp.logger.Info("worker pool started",
		zap.Int("queues", cfg.QueueCount),
		zap.Int("threads_per_queue", cfg.ThreadsPerQueue),
		zap.Int("queue_capacity", cfg.QueueCapacity),
		zap.String("reject_policy", string(cfg.RejectPolicy)))

	return wp, nil
}

// Submit places item on the first queue with room, starting from a random one. It
// returns false when the item was rejected; the rejection is recorded in Stats.
func (wp *WorkerPool) Submit(item WorkItem) bool {
	return wp.SubmitContext(context.Background(), item) == nil
}

// SubmitContext is Submit with a typed result. It returns an error wrapping ErrRejected
// when every queue stayed full, ErrPoolShutdown after Shutdown, or ctx.Err() if ctx ends
// during a retry backoff. Every call is counted as one submission, and every non-nil
// result as one rejection.
func (wp *WorkerPool) SubmitContext(ctx context.Context, item WorkItem) error {
	wp.stats.RecordSubmission()

	if item.Payload == nil {
		wp.reject()
		return fmt.Errorf("%w: task %d has no payload", ErrInvalidConfig, item.ID)
	}

	attempts := 1
	if wp.config.RejectPolicy == RejectRetry {
		attempts += wp.config.RetryAttempts
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if wp.shutdown.Load() {
			wp.reject()
			return ErrPoolShutdown
		}
		if attempt > 0 {
			if err := wp.backoff(ctx, attempt); err != nil {
				wp.reject()
				return err
			}
		}
		if wp.place(item) {
			return nil
		}
	}

	wp.reject()
	if wp.shutdown.Load() {
		return ErrPoolShutdown
	}
	wp.logger.Warn("all queues are full", zap.Int("task_id", item.ID))
	return fmt.Errorf("task %d: %w", item.ID, ErrRejected)
}

// place runs one probe round: random start, then linear probing over every queue.
func (wp *WorkerPool) place(item WorkItem) bool {
	n := len(wp.queues)
	start := wp.pickStart(n)

	for offset := 0; offset < n; offset++ {
		index := (start + offset) % n
		q := wp.queues[index]
		if !q.tryEnqueue(item) {
			continue
		}

		wp.observer.RecordAccepted(index)
		wp.observer.RecordQueueDepth(index, q.length())
		wp.logger.Debug("task enqueued", zap.Int("task_id", item.ID), zap.Int("queue", index))
		return true
	}
	return false
}

func (wp *WorkerPool) pickStart(n int) int {
	wp.rngMu.Lock()
	defer wp.rngMu.Unlock()
	return wp.rng.Intn(n)
}

func (wp *WorkerPool) backoff(ctx context.Context, attempt int) error {
	delay := wp.config.RetryBackoff * time.Duration(attempt)
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (wp *WorkerPool) reject() {
	wp.stats.RecordRejection()
	wp.observer.RecordRejected()
}

// Shutdown stops accepting work, wakes every parked worker and waits for all of them to
// return. Workers drain what is still queued before exiting. Calling it twice returns
// ErrAlreadyShutdown and changes nothing.
func (wp *WorkerPool) Shutdown() error {
	if !wp.shutdown.CompareAndSwap(false, true) {
		return ErrAlreadyShutdown
	}

	wp.logger.Info("worker pool shutting down", zap.Int("workers", len(wp.workers)))
	for _, q := range wp.queues {
		q.close()
	}
	wp.wg.Wait()
	wp.logger.Info("worker pool stopped")

	return nil
}

// AwaitCompletion waits until completed+rejected reaches expectedTotal and then shuts the
// pool down. If ctx ends first the pool is left running and ctx.Err() is returned.
func (wp *WorkerPool) AwaitCompletion(ctx context.Context, expectedTotal int64) error {
	if err := wp.stats.WaitSettled(ctx, expectedTotal); err != nil {
		return fmt.Errorf("waiting for %d tasks: %w", expectedTotal, err)
	}
	return wp.Shutdown()
}

// Config returns the validated configuration the pool runs with.
func (wp *WorkerPool) Config() Config {
	return wp.config
}

func (wp *WorkerPool) Stats() *Stats {
	return wp.stats
}

// QueueLengths returns the current length of every queue.
func (wp *WorkerPool) QueueLengths() []int {
	lengths := make([]int, len(wp.queues))
	for i, q := range wp.queues {
		lengths[i] = q.length()
	}
	return lengths
}

// IsShutdown reports whether Shutdown has been called.
func (wp *WorkerPool) IsShutdown() bool {
	return wp.shutdown.Load()
}
