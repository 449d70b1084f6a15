// Package runner drives one complete pool run: build the pool, submit a synthetic
// workload, wait for every task to settle and produce the report.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/NamiraNet/namira-pool/internal/logger"
	"github.com/NamiraNet/namira-pool/internal/report"
	"github.com/NamiraNet/namira-pool/internal/workerpool"
	"github.com/NamiraNet/namira-pool/internal/workload"
)

const progressInterval = 500 * time.Millisecond

type Options struct {
	Pool  workerpool.Config
	Tasks int

	// Sleeper supplies payloads; nil builds one from the default range.
	Sleeper *workload.Sleeper
	// SubmitRate caps submissions per second, 0 means unlimited.
	SubmitRate float64
	// Seed makes queue placement reproducible, 0 means seeded from the clock.
	Seed int64

	RunID string
	// Logger defaults to the process-wide logger.
	Logger   *zap.Logger
	Observer workerpool.Observer
	// Progress receives a live progress line when set.
	Progress io.Writer
}

// Run executes the workload and blocks until every submitted task completed or was
// rejected. If ctx ends first the pool is shut down and the partial report is returned
// together with the context error.
func Run(ctx context.Context, opts Options) (*report.Report, error) {
	if opts.Tasks < 0 {
		return nil, fmt.Errorf("%w: task count must not be negative", workerpool.ErrInvalidConfig)
	}
	if opts.SubmitRate < 0 {
		return nil, fmt.Errorf("%w: submit rate must not be negative", workerpool.ErrInvalidConfig)
	}
	if opts.Logger == nil {
		opts.Logger = logger.Get()
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Sleeper == nil {
		sleeper, err := workload.NewSleeper(workload.DefaultMinSleep, workload.DefaultMaxSleep)
		if err != nil {
			return nil, err
		}
		opts.Sleeper = sleeper
	}

	log := opts.Logger.With(zap.String("run_id", opts.RunID))

	poolOpts := []workerpool.Option{workerpool.WithLogger(log)}
	if opts.Seed != 0 {
		poolOpts = append(poolOpts, workerpool.WithSeed(opts.Seed))
	}
	if opts.Observer != nil {
		poolOpts = append(poolOpts, workerpool.WithObserver(opts.Observer))
	}

	stats := workerpool.NewStats(opts.Pool.QueueCount)
	pool, err := workerpool.NewWorkerPool(opts.Pool, stats, poolOpts...)
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if opts.SubmitRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.SubmitRate), 1)
	}

	startedAt := time.Now()
	stopProgress := startProgress(opts.Progress, stats, int64(opts.Tasks))

	submitted, runErr := submitAll(ctx, pool, opts, limiter, log)
	if runErr == nil {
		runErr = pool.AwaitCompletion(ctx, int64(submitted))
	}
	if runErr != nil {
		log.Warn("run interrupted, shutting down pool", zap.Error(runErr))
		if err := pool.Shutdown(); err != nil && !errors.Is(err, workerpool.ErrAlreadyShutdown) {
			log.Error("failed to shut down pool", zap.Error(err))
		}
	}
	stopProgress()

	r := report.New(opts.RunID, pool.Config(), startedAt, time.Now(), stats.Snapshot())
	log.Info("run finished",
		zap.Int64("completed", r.Stats.Completed),
		zap.Int64("rejected", r.Stats.Rejected),
		zap.Duration("elapsed", r.Elapsed))

	return r, runErr
}

// submitAll returns how many tasks were handed to the pool.
func submitAll(ctx context.Context, pool *workerpool.WorkerPool, opts Options, limiter *rate.Limiter, log *zap.Logger) (int, error) {
	for i := 0; i < opts.Tasks; i++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return i, err
			}
		} else if err := ctx.Err(); err != nil {
			return i, err
		}

		err := pool.SubmitContext(ctx, workerpool.WorkItem{ID: i, Payload: opts.Sleeper.Payload()})
		switch {
		case err == nil, errors.Is(err, workerpool.ErrRejected):
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return i + 1, err
		default:
			log.Error("submission failed", zap.Int("task_id", i), zap.Error(err))
			return i + 1, err
		}
	}
	return opts.Tasks, nil
}

func startProgress(w io.Writer, stats *workerpool.Stats, total int64) (stop func()) {
	if w == nil || total == 0 {
		return func() {}
	}

	done := make(chan struct{})
	finished := make(chan struct{})
	render := func() {
		snap := stats.Snapshot()
		settled := snap.Completed + snap.Rejected
		fmt.Fprintf(w, "\rProgress: %d/%d (%.1f%%) - completed %d, discarded %d",
			settled, total, float64(settled)/float64(total)*100, snap.Completed, snap.Rejected)
	}

	go func() {
		defer close(finished)
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				render()
				fmt.Fprintln(w)
				return
			case <-ticker.C:
				render()
			}
		}
	}()

	return func() {
		close(done)
		<-finished
	}
}
