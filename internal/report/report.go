// Package report turns pool statistics into run reports, renders them for people and
// machines, and persists them.
package report

import (
	"time"

	"github.com/NamiraNet/namira-pool/internal/workerpool"
)

type PoolInfo struct {
	QueueCount      int    `json:"queue_count"`
	ThreadsPerQueue int    `json:"threads_per_queue"`
	QueueCapacity   int    `json:"queue_capacity"`
	RejectPolicy    string `json:"reject_policy"`
}

// Report is the final account of one pool run.
type Report struct {
	RunID      string              `json:"run_id"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Elapsed    time.Duration       `json:"elapsed"`
	Pool       PoolInfo            `json:"pool"`
	Stats      workerpool.Snapshot `json:"stats"`
}

func New(runID string, cfg workerpool.Config, startedAt, finishedAt time.Time, snap workerpool.Snapshot) *Report {
	return &Report{
		RunID:      runID,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Elapsed:    finishedAt.Sub(startedAt),
		Pool: PoolInfo{
			QueueCount:      cfg.QueueCount,
			ThreadsPerQueue: cfg.ThreadsPerQueue,
			QueueCapacity:   cfg.QueueCapacity,
			RejectPolicy:    string(cfg.RejectPolicy),
		},
		Stats: snap,
	}
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
