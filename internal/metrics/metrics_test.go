package metrics

import (
	"context"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/NamiraNet/namira-pool/internal/workerpool"
)

func TestExporter_RecordMethods(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewExporter(reg, Options{})
	require.Nil(t, err)

	exporter.RecordAccepted(1)
	exporter.RecordAccepted(1)
	exporter.RecordRejected()
	exporter.RecordQueueDepth(2, 7)
	exporter.RecordWaitTime(0, 250*time.Millisecond)
	exporter.RecordExecutionCost(0, 6500)

	require.Equal(t, float64(2), testutil.ToFloat64(exporter.accepted.WithLabelValues("1")))
	require.Equal(t, float64(1), testutil.ToFloat64(exporter.rejected))
	require.Equal(t, float64(7), testutil.ToFloat64(exporter.queueDepth.WithLabelValues("2")))
	require.Equal(t, 5, mustGatherCount(t, reg))
}

func TestExporter_AlreadyRegisteredReuse(t *testing.T) {
	reg := prom.NewRegistry()
	first, err := NewExporter(reg, Options{})
	require.Nil(t, err)
	second, err := NewExporter(reg, Options{})
	require.Nil(t, err)

	first.RecordRejected()
	second.RecordRejected()

	require.Equal(t, float64(2), testutil.ToFloat64(first.rejected))
}

func TestExporter_NilIsNoop(t *testing.T) {
	var e *Exporter
	e.RecordAccepted(0)
	e.RecordRejected()
	e.RecordQueueDepth(0, 1)
	e.RecordWaitTime(0, time.Second)
	e.RecordExecutionCost(0, 1)
}

func TestExporter_WiredIntoPool(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewExporter(reg, Options{Namespace: "test"})
	require.Nil(t, err)

	cfg := workerpool.Config{QueueCount: 2, ThreadsPerQueue: 1, QueueCapacity: 4}
	pool, err := workerpool.NewWorkerPool(cfg, workerpool.NewStats(2), workerpool.WithObserver(exporter))
	require.Nil(t, err)

	for i := 0; i < 6; i++ {
		require.True(t, pool.Submit(workerpool.WorkItem{ID: i, Payload: func() float64 { return 1 }}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.Nil(t, pool.AwaitCompletion(ctx, 6))

	accepted := testutil.ToFloat64(exporter.accepted.WithLabelValues("0")) +
		testutil.ToFloat64(exporter.accepted.WithLabelValues("1"))
	require.Equal(t, float64(6), accepted)
}

func TestStatsPoller(t *testing.T) {
	reg := prom.NewRegistry()
	cfg := workerpool.Config{QueueCount: 1, ThreadsPerQueue: 1, QueueCapacity: 2}
	pool, err := workerpool.NewWorkerPool(cfg, workerpool.NewStats(1))
	require.Nil(t, err)

	poller, err := NewStatsPoller(reg, "", pool, 10*time.Millisecond)
	require.Nil(t, err)

	poller.Start(context.Background())
	poller.Start(context.Background())

	require.True(t, pool.Submit(workerpool.WorkItem{ID: 1, Payload: func() float64 { return 1 }}))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.Nil(t, pool.AwaitCompletion(ctx, 1))

	poller.Stop()
	poller.Stop()

	require.Equal(t, float64(1), testutil.ToFloat64(poller.submitted))
	require.Equal(t, float64(1), testutil.ToFloat64(poller.completed))
	require.Equal(t, float64(0), testutil.ToFloat64(poller.dropRate))
	require.Equal(t, float64(0), testutil.ToFloat64(poller.running))
}

func mustGatherCount(t *testing.T, reg *prom.Registry) int {
	t.Helper()
	count, err := testutil.GatherAndCount(reg)
	require.Nil(t, err)
	return count
}
