package metrics

import (
	"context"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/NamiraNet/namira-pool/internal/workerpool"
)

// SnapshotProvider is satisfied by *workerpool.WorkerPool.
type SnapshotProvider interface {
	Stats() *workerpool.Stats
	IsShutdown() bool
}

// StatsPoller periodically copies a pool's Stats snapshot into gauges.
type StatsPoller struct {
	interval time.Duration
	provider SnapshotProvider

	submitted   prom.Gauge
	completed   prom.Gauge
	dropRate    prom.Gauge
	avgWait     prom.Gauge
	fullSeconds *prom.GaugeVec
	running     prom.Gauge

	stateMu sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewStatsPoller(reg prom.Registerer, namespace string, provider SnapshotProvider, interval time.Duration) (*StatsPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if interval <= 0 {
		interval = time.Second
	}

	gauge := func(name, help string) prom.Gauge {
		return prom.NewGauge(prom.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}
	p := &StatsPoller{
		interval:  interval,
		provider:  provider,
		submitted: gauge("stats_submitted", "Submitted task count snapshot."),
		completed: gauge("stats_completed", "Completed task count snapshot."),
		dropRate:  gauge("stats_drop_rate", "Rejected share of submitted tasks."),
		avgWait:   gauge("stats_avg_wait_seconds", "Mean task wait time."),
		running:   gauge("pool_running", "Pool running state (1=running, 0=stopped)."),
		fullSeconds: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_full_seconds",
			Help:      "Accumulated time a queue spent at capacity.",
		}, []string{"queue"}),
	}

	var err error
	for _, g := range []*prom.Gauge{&p.submitted, &p.completed, &p.dropRate, &p.avgWait, &p.running} {
		if *g, err = registerCollector(reg, *g); err != nil {
			return nil, err
		}
	}
	if p.fullSeconds, err = registerCollector(reg, p.fullSeconds); err != nil {
		return nil, err
	}

	return p, nil
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *StatsPoller) Start(ctx context.Context) {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	if p.done != nil {
		return
	}

	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(pollCtx, p.done)
}

// Stop stops polling after one last collection.
func (p *StatsPoller) Stop() {
	p.stateMu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.stateMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.collectOnce()
}

func (p *StatsPoller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *StatsPoller) collectOnce() {
	snap := p.provider.Stats().Snapshot()

	p.submitted.Set(float64(snap.Submitted))
	p.completed.Set(float64(snap.Completed))
	p.dropRate.Set(snap.DropRate())
	p.avgWait.Set(snap.AvgWait.Seconds())
	for i, d := range snap.FullDurations {
		p.fullSeconds.WithLabelValues(queueLabel(i)).Set(d.Seconds())
	}
	if p.provider.IsShutdown() {
		p.running.Set(0)
	} else {
		p.running.Set(1)
	}
}
