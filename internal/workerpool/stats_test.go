package workerpool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestStats_EmptySnapshot(t *testing.T) {
	t.Parallel()

	snap := NewStats(3).Snapshot()
	require.Equal(t, int64(0), snap.Submitted)
	require.Equal(t, int64(0), snap.Completed)
	require.Equal(t, int64(0), snap.Rejected)
	require.Equal(t, time.Duration(0), snap.AvgWait)
	require.Equal(t, float64(0), snap.AvgExec)
	require.Equal(t, time.Duration(0), snap.MaxFullDuration)
	require.Equal(t, time.Duration(0), snap.MinFullDuration)
	require.Len(t, snap.FullDurations, 3)
	require.Equal(t, float64(0), snap.DropRate())
	require.True(t, snap.Settled())
}

func TestStats_Averages(t *testing.T) {
	t.Parallel()

	stats := NewStats(1)
	stats.RecordWaitTime(10 * time.Millisecond)
	stats.RecordWaitTime(30 * time.Millisecond)
	stats.RecordExecutionTime(6000)
	stats.RecordExecutionTime(12000)
	stats.RecordExecutionTime(9000)

	snap := stats.Snapshot()
	require.Equal(t, 20*time.Millisecond, snap.AvgWait)
	require.InDelta(t, 9000, snap.AvgExec, 0.001)
}

func TestStats_Counters(t *testing.T) {
	t.Parallel()

	stats := NewStats(1)
	for i := 0; i < 4; i++ {
		stats.RecordSubmission()
	}
	stats.RecordCompletion()
	stats.RecordCompletion()
	stats.RecordRejection()

	snap := stats.Snapshot()
	require.Equal(t, int64(4), snap.Submitted)
	require.Equal(t, int64(2), snap.Completed)
	require.Equal(t, int64(1), snap.Rejected)
	require.InDelta(t, 0.25, snap.DropRate(), 1e-9)
	require.False(t, snap.Settled())
}

func TestStats_FullDurations(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	stats := newStatsWithClock(3, clock.Now)

	stats.MarkQueueFull(0)
	clock.Advance(2 * time.Second)
	stats.MarkQueueUnfull(0)

	stats.MarkQueueFull(0)
	clock.Advance(time.Second)
	stats.MarkQueueUnfull(0)

	stats.MarkQueueFull(1)
	clock.Advance(500 * time.Millisecond)
	stats.MarkQueueUnfull(1)

	snap := stats.Snapshot()
	require.Equal(t, []time.Duration{3 * time.Second, 500 * time.Millisecond, 0}, snap.FullDurations)
	require.Equal(t, 3*time.Second, snap.MaxFullDuration)
	require.Equal(t, time.Duration(0), snap.MinFullDuration)
}

func TestStats_UnfullWithoutFullIsNoop(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	stats := newStatsWithClock(1, clock.Now)

	clock.Advance(time.Minute)
	stats.MarkQueueUnfull(0)
	stats.MarkQueueUnfull(5)
	stats.MarkQueueFull(-1)

	require.Equal(t, time.Duration(0), stats.Snapshot().MaxFullDuration)
}

func TestStats_RepeatedFullKeepsStart(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	stats := newStatsWithClock(1, clock.Now)

	stats.MarkQueueFull(0)
	clock.Advance(time.Second)
	stats.MarkQueueFull(0)
	clock.Advance(time.Second)
	stats.MarkQueueUnfull(0)

	require.Equal(t, 2*time.Second, stats.Snapshot().FullDurations[0])
}

func TestStats_SnapshotIncludesOpenInterval(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	stats := newStatsWithClock(2, clock.Now)

	stats.MarkQueueFull(1)
	clock.Advance(750 * time.Millisecond)

	snap := stats.Snapshot()
	require.Equal(t, 750*time.Millisecond, snap.FullDurations[1])
	require.Equal(t, 750*time.Millisecond, snap.MaxFullDuration)
	require.Equal(t, time.Duration(0), snap.MinFullDuration)

	clock.Advance(250 * time.Millisecond)
	stats.MarkQueueUnfull(1)
	require.Equal(t, time.Second, stats.Snapshot().FullDurations[1])
}

func TestStats_ConcurrentRecording(t *testing.T) {
	t.Parallel()

	const (
		goroutines = 16
		perG       = 500
	)
	stats := NewStats(4)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perG; i++ {
				stats.RecordSubmission()
				stats.RecordWaitTime(time.Millisecond)
				stats.RecordExecutionTime(2)
				stats.RecordCompletion()
				stats.MarkQueueFull(g % 4)
				stats.MarkQueueUnfull(g % 4)
			}
		}(g)
	}
	wg.Wait()

	snap := stats.Snapshot()
	require.Equal(t, int64(goroutines*perG), snap.Submitted)
	require.Equal(t, int64(goroutines*perG), snap.Completed)
	require.Equal(t, time.Millisecond, snap.AvgWait)
	require.InDelta(t, 2, snap.AvgExec, 1e-9)
	require.GreaterOrEqual(t, snap.MaxFullDuration, snap.MinFullDuration)
}

func TestStats_WaitSettled(t *testing.T) {
	t.Parallel()

	stats := NewStats(1)
	require.Nil(t, stats.WaitSettled(context.Background(), 0))

	donec := make(chan error, 1)
	go func() {
		donec <- stats.WaitSettled(context.Background(), 3)
	}()

	stats.RecordCompletion()
	stats.RecordRejection()
	select {
	case <-donec:
		t.Fatalf("released before the target was reached")
	case <-time.After(20 * time.Millisecond):
	}

	stats.RecordCompletion()
	select {
	case err := <-donec:
		require.Nil(t, err)
	case <-time.After(time.Second):
		t.Fatalf("timed out")
	}
}

func TestStats_WaitSettledContextDone(t *testing.T) {
	t.Parallel()

	stats := NewStats(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.Equal(t, context.DeadlineExceeded, stats.WaitSettled(ctx, 1))

	stats.countersMu.Lock()
	require.Len(t, stats.waiters, 0)
	stats.countersMu.Unlock()
}

func TestStats_ZeroValueUsable(t *testing.T) {
	var s Stats
	s.RecordSubmission()
	s.RecordCompletion()
	s.RecordWaitTime(3 * time.Second)
	s.MarkQueueFull(0)
	s.MarkQueueUnfull(0)

	snap := s.Snapshot()
	require.Equal(t, int64(1), snap.Submitted)
	require.Equal(t, int64(1), snap.Completed)
	require.Equal(t, 3*time.Second, snap.AvgWait)
	require.Empty(t, snap.FullDurations)
	require.Equal(t, 0, s.QueueCount())
}
