// Package workload provides the synthetic payloads used to exercise the pool.
package workload

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/NamiraNet/namira-pool/internal/workerpool"
)

const (
	DefaultMinSleep = 6 * time.Second
	DefaultMaxSleep = 12 * time.Second
)

// Sleeper builds payloads that sleep for a uniformly random duration in [Min, Max) and
// report that duration in milliseconds as their execution cost.
type Sleeper struct {
	Min time.Duration
	Max time.Duration

	mu    sync.Mutex
	rng   *rand.Rand
	sleep func(time.Duration)
}

type SleeperOption func(*Sleeper)

// WithSeed makes the drawn durations reproducible.
func WithSeed(seed int64) SleeperOption {
	return func(s *Sleeper) { s.rng = rand.New(rand.NewSource(seed)) }
}

// WithSleepFunc replaces time.Sleep, mostly for tests.
func WithSleepFunc(sleep func(time.Duration)) SleeperOption {
	return func(s *Sleeper) { s.sleep = sleep }
}

func NewSleeper(minSleep, maxSleep time.Duration, opts ...SleeperOption) (*Sleeper, error) {
	if minSleep < 0 || maxSleep < minSleep {
		return nil, fmt.Errorf("invalid sleep range [%v, %v)", minSleep, maxSleep)
	}

	s := &Sleeper{
		Min:   minSleep,
		Max:   maxSleep,
		sleep: time.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return s, nil
}

// Draw picks the next sleep duration.
func (s *Sleeper) Draw() time.Duration {
	if s.Max == s.Min {
		return s.Min
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Min + time.Duration(s.rng.Int63n(int64(s.Max-s.Min)))
}

// Payload returns a fresh payload. The duration is drawn when the payload runs.
func (s *Sleeper) Payload() workerpool.Payload {
	return func() float64 {
		d := s.Draw()
		s.sleep(d)
		return Milliseconds(d)
	}
}

// Milliseconds converts d into fractional milliseconds.
func Milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
