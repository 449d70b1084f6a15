// Package metrics exports worker pool activity to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/NamiraNet/namira-pool/internal/workerpool"
)

const DefaultNamespace = "namira_pool"

// Options controls collector configuration.
type Options struct {
	Namespace   string
	WaitBuckets []float64
	CostBuckets []float64
}

// Exporter adapts workerpool.Observer to Prometheus collectors.
type Exporter struct {
	accepted    *prom.CounterVec
	rejected    prom.Counter
	queueDepth  *prom.GaugeVec
	waitSeconds *prom.HistogramVec
	execCost    *prom.HistogramVec
}

var _ workerpool.Observer = (*Exporter)(nil)

// NewExporter creates and registers the collectors. Registering twice against the same
// registry reuses the collectors already there.
func NewExporter(reg prom.Registerer, opts Options) (*Exporter, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	namespace := opts.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}
	waitBuckets := opts.WaitBuckets
	if len(waitBuckets) == 0 {
		waitBuckets = prom.ExponentialBuckets(0.01, 2, 14)
	}
	costBuckets := opts.CostBuckets
	if len(costBuckets) == 0 {
		costBuckets = prom.LinearBuckets(1000, 1000, 15)
	}

	accepted := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_accepted_total",
		Help:      "Tasks placed on a queue.",
	}, []string{"queue"})
	rejected := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_rejected_total",
		Help:      "Tasks discarded because every queue was full or the pool was shut down.",
	})
	queueDepth := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Items waiting in a queue.",
	}, []string{"queue"})
	waitSeconds := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_wait_seconds",
		Help:      "Time between enqueue and the start of execution.",
		Buckets:   waitBuckets,
	}, []string{"queue"})
	execCost := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_execution_cost",
		Help:      "Cost reported by task payloads.",
		Buckets:   costBuckets,
	}, []string{"queue"})

	var err error
	if accepted, err = registerCollector(reg, accepted); err != nil {
		return nil, err
	}
	if rejected, err = registerCollector(reg, rejected); err != nil {
		return nil, err
	}
	if queueDepth, err = registerCollector(reg, queueDepth); err != nil {
		return nil, err
	}
	if waitSeconds, err = registerCollector(reg, waitSeconds); err != nil {
		return nil, err
	}
	if execCost, err = registerCollector(reg, execCost); err != nil {
		return nil, err
	}

	return &Exporter{
		accepted:    accepted,
		rejected:    rejected,
		queueDepth:  queueDepth,
		waitSeconds: waitSeconds,
		execCost:    execCost,
	}, nil
}

func (e *Exporter) RecordAccepted(queue int) {
	if e == nil {
		return
	}
	e.accepted.WithLabelValues(queueLabel(queue)).Inc()
}

func (e *Exporter) RecordRejected() {
	if e == nil {
		return
	}
	e.rejected.Inc()
}

func (e *Exporter) RecordQueueDepth(queue, depth int) {
	if e == nil {
		return
	}
	e.queueDepth.WithLabelValues(queueLabel(queue)).Set(float64(depth))
}

func (e *Exporter) RecordWaitTime(queue int, d time.Duration) {
	if e == nil {
		return
	}
	e.waitSeconds.WithLabelValues(queueLabel(queue)).Observe(d.Seconds())
}

func (e *Exporter) RecordExecutionCost(queue int, cost float64) {
	if e == nil {
		return
	}
	e.execCost.WithLabelValues(queueLabel(queue)).Observe(cost)
}

func queueLabel(queue int) string {
	return strconv.Itoa(queue)
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
