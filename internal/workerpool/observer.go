package workerpool

import "time"

// Observer receives pool activity as it happens, in addition to Stats. Implementations
// must be safe for concurrent use and must not block.
type Observer interface {
	RecordAccepted(queue int)
	RecordRejected()
	RecordQueueDepth(queue, depth int)
	RecordWaitTime(queue int, d time.Duration)
	RecordExecutionCost(queue int, cost float64)
}

type noopObserver struct{}

func (noopObserver) RecordAccepted(int)                {}
func (noopObserver) RecordRejected()                   {}
func (noopObserver) RecordQueueDepth(int, int)         {}
func (noopObserver) RecordWaitTime(int, time.Duration) {}
func (noopObserver) RecordExecutionCost(int, float64)  {}
