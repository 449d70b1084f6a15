package workerpool

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidConfig is returned by NewWorkerPool when a size parameter is not positive
	// or the stats sink does not match the queue count.
	ErrInvalidConfig = errors.New("workerpool: invalid config")
	// ErrRejected is returned when every queue was at capacity.
	ErrRejected = errors.New("workerpool: all queues are full")
	// ErrPoolShutdown is returned for submissions made after Shutdown.
	ErrPoolShutdown = errors.New("workerpool: pool is shut down")
	// ErrAlreadyShutdown is returned by a second call to Shutdown.
	ErrAlreadyShutdown = errors.New("workerpool: shutdown called twice")
)

// Payload is the unit of work run by a worker. It returns its own execution cost,
// which the pool records verbatim.
type Payload func() float64

// WorkItem is a single submission. It is owned by exactly one queue slot until a
// worker dequeues it.
type WorkItem struct {
	ID      int
	Payload Payload

	enqueuedAt time.Time
}

// RejectPolicy decides what Submit does when every queue is full.
type RejectPolicy string

const (
	// RejectDrop rejects after a single probe over all queues.
	RejectDrop RejectPolicy = "drop"
	// RejectRetry probes again after a backoff before giving up.
	RejectRetry RejectPolicy = "retry"
)

// ParseRejectPolicy maps a config string onto a RejectPolicy.
func ParseRejectPolicy(s string) (RejectPolicy, error) {
	switch RejectPolicy(s) {
	case "", RejectDrop:
		return RejectDrop, nil
	case RejectRetry:
		return RejectRetry, nil
	default:
		return "", fmt.Errorf("unknown reject policy %q", s)
	}
}

type Config struct {
	QueueCount      int
	ThreadsPerQueue int
	QueueCapacity   int

	RejectPolicy  RejectPolicy
	RetryAttempts int
	RetryBackoff  time.Duration
}

func (c Config) validate() error {
	if c.QueueCount < 1 {
		return fmt.Errorf("%w: queue count must be positive, got %d", ErrInvalidConfig, c.QueueCount)
	}
	if c.ThreadsPerQueue < 1 {
		return fmt.Errorf("%w: threads per queue must be positive, got %d", ErrInvalidConfig, c.ThreadsPerQueue)
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("%w: queue capacity must be positive, got %d", ErrInvalidConfig, c.QueueCapacity)
	}
	if _, err := ParseRejectPolicy(string(c.RejectPolicy)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.RetryAttempts < 0 || c.RetryBackoff < 0 {
		return fmt.Errorf("%w: retry settings must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Workers returns the total number of worker goroutines the config spawns.
func (c Config) Workers() int {
	return c.QueueCount * c.ThreadsPerQueue
}

// Snapshot is a point-in-time read of Stats.
type Snapshot struct {
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Rejected  int64 `json:"rejected"`

	AvgWait time.Duration `json:"avg_wait"`
	// AvgExec is in whatever unit the payloads report.
	AvgExec float64 `json:"avg_exec"`

	MaxFullDuration time.Duration   `json:"max_full_duration"`
	MinFullDuration time.Duration   `json:"min_full_duration"`
	FullDurations   []time.Duration `json:"full_durations"`
}

// DropRate is rejected / submitted, or 0 before anything was submitted.
func (s Snapshot) DropRate() float64 {
	if s.Submitted == 0 {
		return 0
	}
	return float64(s.Rejected) / float64(s.Submitted)
}

// Settled reports whether every submission has either completed or been rejected.
func (s Snapshot) Settled() bool {
	return s.Completed+s.Rejected >= s.Submitted
}
