package node

import (
	"sync"
	"time"

	"mytestbed/interfaces"
)

// fixedIntervalArrivals implements interfaces.ArrivalProcess for the feeding
// stage: count emissions, interval apart, the first one immediate.
type fixedIntervalArrivals struct {
	mu        sync.Mutex
	remaining int
	interval  time.Duration
	started   bool
}

// NewFixedIntervalArrivals returns the feeding-stage schedule: count
// emissions spaced interval apart.
//
// Called from cmd/mytestbed when building a source in feeding mode.
func NewFixedIntervalArrivals(count int, interval time.Duration) interfaces.ArrivalProcess {
	return &fixedIntervalArrivals{remaining: count, interval: interval}
}

// Next returns the wait before the next emission; ok is false once count
// emissions have been scheduled.
func (f *fixedIntervalArrivals) Next() (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remaining <= 0 {
		return 0, false
	}
	f.remaining--
	if !f.started {
		f.started = true
		return 0, true
	}
	return f.interval, true
}
