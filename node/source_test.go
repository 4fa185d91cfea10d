package node

import (
	"errors"
	"testing"
	"time"

	"mytestbed/domain"
	"mytestbed/interfaces"
	"mytestbed/interfaces/mock"
	"mytestbed/stats"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSourceConfig() SourceConfig {
	return SourceConfig{
		Name:         "source",
		LocalPort:    2000,
		Target:       domain.Address{Host: "127.0.0.1", Port: 3000},
		ClientID:     9,
		Mode:         SourceModeFeeding,
		MessageCount: 3,
	}
}

func millisClock(ms int64) interfaces.TimeProvider {
	return NewTimeProvider(func() time.Time { return time.UnixMilli(ms) })
}

func newTestSource(t *testing.T, cfg SourceConfig, tr interfaces.Transport, clock interfaces.TimeProvider, arrivals interfaces.ArrivalProcess, depth, threshold int, sinks ...interfaces.ResultSink) *Source {
	t.Helper()
	collector := stats.NewCollector(depth, threshold, log.NewNopLogger())
	return NewSource(cfg, tr, clock, arrivals, collector, sinks, log.NewNopLogger())
}

func TestNewSource_Panics(t *testing.T) {
	tr := &mock.TransportMock{}
	clock := fixedClock()
	arrivals := NewFixedIntervalArrivals(1, 0)
	collector := stats.NewCollector(1, 1, log.NewNopLogger())
	logger := log.NewNopLogger()

	t.Run("name_empty", func(t *testing.T) {
		cfg := testSourceConfig()
		cfg.Name = ""
		assert.PanicsWithValue(t, "node.source.go: name is required", func() {
			NewSource(cfg, tr, clock, arrivals, collector, nil, logger)
		})
	})
	t.Run("transport_nil", func(t *testing.T) {
		assert.PanicsWithValue(t, "node.source.go: transport is required", func() {
			NewSource(testSourceConfig(), nil, clock, arrivals, collector, nil, logger)
		})
	})
	t.Run("clock_nil", func(t *testing.T) {
		assert.PanicsWithValue(t, "node.source.go: clock is required", func() {
			NewSource(testSourceConfig(), tr, nil, arrivals, collector, nil, logger)
		})
	})
	t.Run("arrivals_nil", func(t *testing.T) {
		assert.PanicsWithValue(t, "node.source.go: arrivals is required", func() {
			NewSource(testSourceConfig(), tr, clock, nil, collector, nil, logger)
		})
	})
	t.Run("collector_nil", func(t *testing.T) {
		assert.PanicsWithValue(t, "node.source.go: collector is required", func() {
			NewSource(testSourceConfig(), tr, clock, arrivals, nil, nil, logger)
		})
	})
	t.Run("logger_nil", func(t *testing.T) {
		assert.PanicsWithValue(t, "node.source.go: logger is required", func() {
			NewSource(testSourceConfig(), tr, clock, arrivals, collector, nil, nil)
		})
	})
}

func TestSource_ValidationModeUnimplemented(t *testing.T) {
	tr := &mock.TransportMock{}
	cfg := testSourceConfig()
	cfg.Mode = SourceModeValidation
	s := newTestSource(t, cfg, tr, millisClock(1000), NewFixedIntervalArrivals(1, 0), 1, 1)

	err := s.Start()
	require.ErrorIs(t, err, ErrValidationNotImplemented)
	assert.Empty(t, tr.StartCalls(), "the transport must stay untouched")
	assert.False(t, s.Status().Running)
}

func TestSource_EmitsSchedule(t *testing.T) {
	tr := &mock.TransportMock{
		PingFunc: func(target domain.Address) bool { return true },
	}
	s := newTestSource(t, testSourceConfig(), tr, millisClock(1000), NewFixedIntervalArrivals(3, 0), 1, 3)
	require.NoError(t, s.Start())
	defer s.Stop()

	waitFor(t, 2*time.Second, func() bool { return len(tr.SendCalls()) == 3 }, "schedule never completed")

	for i, call := range tr.SendCalls() {
		assert.Equal(t, "9", call.Msg.ClientID())
		seq, ok := call.Msg.Seq()
		require.True(t, ok)
		assert.Equal(t, i+1, seq, "sequence indexes start at 1 and advance per emission")
		assert.Equal(t, 3000, call.Target.Port)
	}
	assert.Equal(t, uint64(3), s.Status().Forwarded)
	assert.Equal(t, uint64(0), s.Status().Dropped)
}

func TestSource_BusyFirstHopDropsEmission(t *testing.T) {
	tr := &mock.TransportMock{
		PingFunc: func(target domain.Address) bool { return false },
	}
	s := newTestSource(t, testSourceConfig(), tr, millisClock(1000), NewFixedIntervalArrivals(3, 0), 1, 3)
	require.NoError(t, s.Start())
	defer s.Stop()

	waitFor(t, 2*time.Second, func() bool { return s.Status().Dropped == 3 }, "drops never counted")
	assert.Empty(t, tr.SendCalls(), "a busy first hop costs the emission")
	assert.Equal(t, uint64(0), s.Status().Forwarded)
}

func TestSource_PingAlwaysFree(t *testing.T) {
	tr := &mock.TransportMock{}
	s := newTestSource(t, testSourceConfig(), tr, millisClock(1000), NewFixedIntervalArrivals(1, 0), 1, 1)

	s.OnMessage("ping", nil)
	require.Len(t, tr.ReplyCalls(), 1)
	assert.True(t, tr.ReplyCalls()[0].Free)
}

func TestSource_CollectsRoundTrips(t *testing.T) {
	tr := &mock.TransportMock{}
	sink := &mock.ResultSinkMock{}
	s := newTestSource(t, testSourceConfig(), tr, millisClock(2000), NewFixedIntervalArrivals(2, 0), 2, 2, sink)

	s.OnMessage("9;1;1000;1100;100;1300;200;RESPONSE_TIME;450;", nil)
	require.Len(t, sink.RecordSampleCalls(), 1)
	sample := sink.RecordSampleCalls()[0].S
	assert.Equal(t, "9", sample.ClientID)
	assert.Equal(t, 1, sample.Seq)
	assert.Equal(t, int64(1000), sample.SendMillis)
	assert.Equal(t, int64(2000), sample.ReceivedMillis)
	assert.Equal(t, int64(450), sample.ResponseMillis)
	assert.Empty(t, sink.RecordSummaryCalls())

	// a retransmitted trail with the same sequence index does not count
	s.OnMessage("9;1;1000;1100;100;1300;200;RESPONSE_TIME;450;", nil)
	assert.Len(t, sink.RecordSampleCalls(), 1)

	s.OnMessage("9;2;1000;1150;150;1400;250;RESPONSE_TIME;500;", nil)

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("run never completed")
	}

	require.Len(t, sink.RecordSummaryCalls(), 1)
	sum := sink.RecordSummaryCalls()[0].Sum
	assert.Equal(t, 2, sum.Observed)
	assert.Equal(t, uint64(0), sum.Dropped)
	assert.InDelta(t, 475.0, sum.AvgResponseMillis, 0.001)
	assert.Equal(t, int64(500), sum.MaxResponseMillis)
	require.Len(t, sum.Rows, 3)
	assert.Equal(t, "T1", sum.Rows[0].Label)
	assert.InDelta(t, 125.0, sum.Rows[0].AvgMillis, 0.001)
	assert.Equal(t, "T2", sum.Rows[1].Label)
	assert.InDelta(t, 225.0, sum.Rows[1].AvgMillis, 0.001)
	assert.Equal(t, "T3", sum.Rows[2].Label)
	assert.InDelta(t, 650.0, sum.Rows[2].AvgMillis, 0.001, "the return leg is derived from the receive instant")

	// observations after the trigger are ignored
	s.OnMessage("9;3;1000;1150;150;1400;250;RESPONSE_TIME;500;", nil)
	assert.Len(t, sink.RecordSampleCalls(), 2)
	assert.Len(t, sink.RecordSummaryCalls(), 1)
}

func TestSource_CompletesMissingTerminalPair(t *testing.T) {
	tr := &mock.TransportMock{}
	sink := &mock.ResultSinkMock{}
	s := newTestSource(t, testSourceConfig(), tr, millisClock(2000), NewFixedIntervalArrivals(1, 0), 1, 1, sink)

	s.OnMessage("9;1;1000;1200;200;", nil)

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("run never completed")
	}
	require.Len(t, sink.RecordSampleCalls(), 1)
	assert.Equal(t, int64(1000), sink.RecordSampleCalls()[0].S.ResponseMillis)
}

func TestSource_SinkFailureDoesNotStopTheRun(t *testing.T) {
	tr := &mock.TransportMock{}
	sink := &mock.ResultSinkMock{
		RecordSampleFunc:  func(s domain.Sample) error { return errors.New("disk full") },
		RecordSummaryFunc: func(sum domain.Summary) error { return errors.New("disk full") },
	}
	s := newTestSource(t, testSourceConfig(), tr, millisClock(2000), NewFixedIntervalArrivals(1, 0), 1, 1, sink)

	s.OnMessage("9;1;1000;1200;200;RESPONSE_TIME;1000;", nil)

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("run never completed")
	}
}

func TestSource_IgnoresUndecodableLine(t *testing.T) {
	tr := &mock.TransportMock{}
	sink := &mock.ResultSinkMock{}
	s := newTestSource(t, testSourceConfig(), tr, millisClock(2000), NewFixedIntervalArrivals(1, 0), 1, 1, sink)

	s.OnMessage("garbage", nil)
	assert.Empty(t, sink.RecordSampleCalls())
}
