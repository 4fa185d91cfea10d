package interfaces

import "mytestbed/domain"

// ResultSink persists completed round trips and the final run summary.
// Implementations: record.Recorder (sqlite) and the myredis publisher.
// Sinks are optional and independent; a failing sink is logged and never
// fails the run.
//
//go:generate moq -stub -out mock/result_sink.go -pkg mock . ResultSink
type ResultSink interface {
	// RecordSample stores one completed round trip.
	// Called from node.Source for every message handed to the collector.
	RecordSample(s domain.Sample) error

	// RecordSummary stores the final averages once the sample threshold fires.
	// Called from node.Source exactly once per run.
	RecordSummary(sum domain.Summary) error

	// Close flushes and releases the sink; idempotent.
	// Called from process shutdown after the run finishes.
	Close() error
}
