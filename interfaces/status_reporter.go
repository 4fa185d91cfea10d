package interfaces

import "mytestbed/domain"

// StatusReporter exposes a node's diagnostics snapshot for the status API.
// Implemented by node.LoadBalancer, node.Service and node.Source.
//
//go:generate moq -stub -out mock/status_reporter.go -pkg mock . StatusReporter
type StatusReporter interface {
	// Status returns the current snapshot (queue occupancy, counters, running flag).
	// Called from handlers.Status for every GET /v1/status.
	Status() domain.NodeStatus
}
