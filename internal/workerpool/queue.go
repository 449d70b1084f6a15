package workerpool

import (
	"sync"
	"time"
)

// boundedQueue is a fixed-capacity FIFO. Producers never block on it; consumers park on
// cond until an item arrives or the queue is closed.
type boundedQueue struct {
	index int
	stats *Stats
	now   func() time.Time

	mu     sync.Mutex
	cond   *sync.Cond
	items  []WorkItem
	head   int
	count  int
	closed bool
}

func newBoundedQueue(index, capacity int, stats *Stats, now func() time.Time) *boundedQueue {
	q := &boundedQueue{
		index: index,
		stats: stats,
		now:   now,
		items: make([]WorkItem, capacity),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// tryEnqueue appends item unless the queue is full or closed. A successful append wakes
// exactly one parked worker.
func (q *boundedQueue) tryEnqueue(item WorkItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || q.count == len(q.items) {
		return false
	}

	item.enqueuedAt = q.now()
	q.items[(q.head+q.count)%len(q.items)] = item
	q.count++
	if q.count == len(q.items) {
		q.stats.MarkQueueFull(q.index)
	}

	q.cond.Signal()
	return true
}

// dequeue removes the head item, parking while the queue is empty. It returns false only
// once the queue is closed and drained, which tells the worker to exit.
func (q *boundedQueue) dequeue() (WorkItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.count == 0 {
		return WorkItem{}, false
	}

	wasFull := q.count == len(q.items)
	item := q.items[q.head]
	q.items[q.head] = WorkItem{}
	q.head = (q.head + 1) % len(q.items)
	q.count--
	if wasFull {
		q.stats.MarkQueueUnfull(q.index)
	}
	return item, true
}

// close stops new enqueues and wakes every parked worker. Broadcast, not Signal: a
// worker left parked here would never be joined.
func (q *boundedQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

func (q *boundedQueue) length() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}
