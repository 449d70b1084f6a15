package workerpool

import (
	"context"
	"sync"
	"time"
)

// Stats accumulates counters and timing samples for a pool. Every metric group has its
// own lock so recording on one queue never waits on bookkeeping for another.
//
// Stats is created by the caller before the pool and is meant to be read after Shutdown.
// The zero value tracks counters and samples but no queues; NewStats sizes it for a pool.
type Stats struct {
	now func() time.Time

	countersMu sync.Mutex
	submitted  int64
	completed  int64
	rejected   int64
	waiters    []settleWaiter

	waitMu    sync.Mutex
	waitTimes []time.Duration

	execMu    sync.Mutex
	execTimes []float64

	fullMu    sync.Mutex
	fullSince []time.Time
	fullTotal []time.Duration
}

type settleWaiter struct {
	target int64
	done   chan struct{}
}

// NewStats creates a Stats sink sized for queueCount queues.
func NewStats(queueCount int) *Stats {
	return newStatsWithClock(queueCount, time.Now)
}

func newStatsWithClock(queueCount int, now func() time.Time) *Stats {
	if queueCount < 0 {
		queueCount = 0
	}
	return &Stats{
		now:       now,
		fullSince: make([]time.Time, queueCount),
		fullTotal: make([]time.Duration, queueCount),
	}
}

func (s *Stats) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

// QueueCount is the number of queues this sink tracks full durations for.
func (s *Stats) QueueCount() int {
	return len(s.fullTotal)
}

func (s *Stats) RecordSubmission() {
	s.countersMu.Lock()
	s.submitted++
	s.countersMu.Unlock()
}

func (s *Stats) RecordRejection() {
	s.countersMu.Lock()
	s.rejected++
	s.releaseWaitersLocked()
	s.countersMu.Unlock()
}

func (s *Stats) RecordCompletion() {
	s.countersMu.Lock()
	s.completed++
	s.releaseWaitersLocked()
	s.countersMu.Unlock()
}

func (s *Stats) RecordWaitTime(d time.Duration) {
	s.waitMu.Lock()
	s.waitTimes = append(s.waitTimes, d)
	s.waitMu.Unlock()
}

func (s *Stats) RecordExecutionTime(cost float64) {
	s.execMu.Lock()
	s.execTimes = append(s.execTimes, cost)
	s.execMu.Unlock()
}

// MarkQueueFull starts the saturation timer of queue i. A second call while the timer
// is already running keeps the original start.
func (s *Stats) MarkQueueFull(i int) {
	s.fullMu.Lock()
	defer s.fullMu.Unlock()

	if i < 0 || i >= len(s.fullSince) || !s.fullSince[i].IsZero() {
		return
	}
	s.fullSince[i] = s.clock()
}

// MarkQueueUnfull stops the saturation timer of queue i and adds the elapsed time to its
// total. Without a running timer the call is a no-op.
func (s *Stats) MarkQueueUnfull(i int) {
	s.fullMu.Lock()
	defer s.fullMu.Unlock()

	if i < 0 || i >= len(s.fullSince) || s.fullSince[i].IsZero() {
		return
	}
	s.fullTotal[i] += s.clock().Sub(s.fullSince[i])
	s.fullSince[i] = time.Time{}
}

// Snapshot computes the report values from the current state. Averages over empty
// sample sets are 0. A queue that is full right now contributes its open interval.
func (s *Stats) Snapshot() Snapshot {
	var snap Snapshot

	s.countersMu.Lock()
	snap.Submitted = s.submitted
	snap.Completed = s.completed
	snap.Rejected = s.rejected
	s.countersMu.Unlock()

	s.waitMu.Lock()
	if n := len(s.waitTimes); n > 0 {
		var total time.Duration
		for _, d := range s.waitTimes {
			total += d
		}
		snap.AvgWait = total / time.Duration(n)
	}
	s.waitMu.Unlock()

	s.execMu.Lock()
	if n := len(s.execTimes); n > 0 {
		var total float64
		for _, c := range s.execTimes {
			total += c
		}
		snap.AvgExec = total / float64(n)
	}
	s.execMu.Unlock()

	s.fullMu.Lock()
	now := s.clock()
	snap.FullDurations = make([]time.Duration, len(s.fullTotal))
	for i, total := range s.fullTotal {
		if !s.fullSince[i].IsZero() {
			total += now.Sub(s.fullSince[i])
		}
		snap.FullDurations[i] = total
		if i == 0 || total > snap.MaxFullDuration {
			snap.MaxFullDuration = total
		}
		if i == 0 || total < snap.MinFullDuration {
			snap.MinFullDuration = total
		}
	}
	s.fullMu.Unlock()

	return snap
}

// WaitSettled blocks until completed+rejected reaches total or ctx is done.
func (s *Stats) WaitSettled(ctx context.Context, total int64) error {
	s.countersMu.Lock()
	if s.completed+s.rejected >= total {
		s.countersMu.Unlock()
		return nil
	}
	w := settleWaiter{target: total, done: make(chan struct{})}
	s.waiters = append(s.waiters, w)
	s.countersMu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		s.dropWaiter(w)
		return ctx.Err()
	}
}

// releaseWaitersLocked closes every waiter whose target has been reached.
// countersMu must be held.
func (s *Stats) releaseWaitersLocked() {
	if len(s.waiters) == 0 {
		return
	}
	settled := s.completed + s.rejected
	pending := s.waiters[:0]
	for _, w := range s.waiters {
		if settled >= w.target {
			close(w.done)
			continue
		}
		pending = append(pending, w)
	}
	s.waiters = pending
}

func (s *Stats) dropWaiter(target settleWaiter) {
	s.countersMu.Lock()
	defer s.countersMu.Unlock()

	for i, w := range s.waiters {
		if w.done == target.done {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			return
		}
	}
}
