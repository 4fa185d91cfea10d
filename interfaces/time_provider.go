package interfaces

import "time"

// TimeProvider supplies the current time for message stamping and the
// collector's receive instants. Injected so tests can use a fixed clock
// instead of time.Now().
//
// Used by every node when appending (timestamp, duration) pairs.
// Constructed in cmd/mytestbed as node.NewTimeProvider(time.Now).
//
//go:generate moq -stub -out mock/time_provider.go -pkg mock . TimeProvider
type TimeProvider interface {
	// Now returns current time (wall clock in prod; in tests — fixed time for deterministic stamps).
	// Called from the node roles whenever a timestamp field is appended.
	Now() time.Time
}
