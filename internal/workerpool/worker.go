package workerpool

import (
	"sync"

	"go.uber.org/zap"
)

// Worker consumes from exactly one queue until that queue is closed and drained.
type Worker struct {
	ID    int
	Queue int

	queue    *boundedQueue
	stats    *Stats
	observer Observer
	logger   *zap.Logger
	wg       *sync.WaitGroup
}

// start runs the Idle -> Running -> Idle loop. A panicking payload is not recovered.
func (w *Worker) start() {
	defer w.wg.Done()

	for {
		item, ok := w.queue.dequeue()
		if !ok {
			w.logger.Debug("worker exiting", zap.Int("worker", w.ID), zap.Int("queue", w.Queue))
			return
		}
		w.execute(item)
	}
}

func (w *Worker) execute(item WorkItem) {
	wait := w.queue.now().Sub(item.enqueuedAt)
	w.stats.RecordWaitTime(wait)
	w.observer.RecordWaitTime(w.Queue, wait)
	w.observer.RecordQueueDepth(w.Queue, w.queue.length())

	w.logger.Debug("task started",
		zap.Int("task_id", item.ID),
		zap.Int("queue", w.Queue),
		zap.Int("worker", w.ID),
		zap.Duration("wait", wait))

	cost := item.Payload()

	w.stats.RecordExecutionTime(cost)
	w.observer.RecordExecutionCost(w.Queue, cost)
	w.stats.RecordCompletion()

	w.logger.Debug("task completed",
		zap.Int("task_id", item.ID),
		zap.Int("queue", w.Queue),
		zap.Float64("cost", cost))
}
