package node

import (
	"time"

	"mytestbed/helpers"
	"mytestbed/interfaces"
)

// timeProvider implements interfaces.TimeProvider. It returns the current time via the injected now func.
// Used by every node role when stamping (timestamp, duration) pairs and by tests for deterministic trails. Built in cmd/mytestbed with time.Now.
type timeProvider struct {
	now func() time.Time
}

// NewTimeProvider creates a TimeProvider that returns time via the given now func. Panics on nil now.
//
// Parameter now — no-arg function returning current time (in prod — time.Now, in tests — fixed time).
//
// Returns: interfaces.TimeProvider (*timeProvider).
//
// Called from cmd/mytestbed when building the nodes.
func NewTimeProvider(now func() time.Time) interfaces.TimeProvider {
	return &timeProvider{now: helpers.NilPanic(now, "node.time_provider.go: now is required")}
}

// Now returns current time from the injected function.
//
// Called from the node roles whenever a timestamp field is appended.
func (t *timeProvider) Now() time.Time {
	return t.now()
}
