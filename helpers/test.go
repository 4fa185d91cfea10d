package helpers

import (
	"time"
)

// TestNow returns a fixed time (2026-03-02 09:30:00 UTC) for deterministic tests (message stamps, collector windows, etc.).
//
// Parameters: none.
//
// Returns: time.Time in UTC.
//
// Called from tests (e.g. domain/message_test, node/loadbalancer_test) when a fixed "current" time is needed.
func TestNow() time.Time {
	return time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
}
