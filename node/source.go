package node

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"mytestbed/domain"
	"mytestbed/helpers"
	"mytestbed/interfaces"
	"mytestbed/stats"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// ErrValidationNotImplemented signals the clean exit of the validation mode:
// the mode is declared in config but only the feeding stage exists.
var ErrValidationNotImplemented = errors.New("validation mode is not implemented")

// SourceMode selects the source's workload stage.
type SourceMode string

const (
	SourceModeFeeding    SourceMode = "feeding"
	SourceModeValidation SourceMode = "validation"
)

// SourceConfig holds the source's settings. MessageCount and ArrivalDelay
// shape the feeding schedule (built into an ArrivalProcess by the caller);
// they are kept here for the startup banner.
type SourceConfig struct {
	Name         string
	LocalPort    int
	Target       domain.Address
	ClientID     int
	Mode         SourceMode
	MessageCount int
	ArrivalDelay time.Duration
}

// Source emits timestamped messages into the first hop and collects the
// completed round trips. Emission and reception are independent tasks: the
// emission goroutine walks the arrival schedule, probing the first hop
// before every send and dropping (with a count) when it is busy; reception
// runs on the transport's reader goroutines, completes trails that come back
// without a terminal pair, and feeds the collector. When the collector
// fires, the summary goes to the log and every sink, and Done is closed.
type Source struct {
	cfg       SourceConfig
	tr        interfaces.Transport
	clock     interfaces.TimeProvider
	arrivals  interfaces.ArrivalProcess
	collector *stats.Collector
	sinks     []interfaces.ResultSink
	logger    log.Logger

	running  atomic.Bool
	emitted  atomic.Uint64
	dropped  atomic.Uint64
	received atomic.Uint64

	done       chan struct{}
	runDone    chan struct{}
	stopOnce   sync.Once
	finishOnce sync.Once
	wg         sync.WaitGroup
}

// NewSource creates a source node. Panics on empty name or nil transport, clock, arrivals, collector or logger; sinks may be empty.
//
// Parameters: cfg — settings; tr — the node transport; clock — time source for send stamps and receive instants; arrivals — emission schedule (NewFixedIntervalArrivals for feeding); collector — the statistics collector; sinks — result sinks, all optional; logger — scoped per node.
//
// Returns: *Source. Call Start to bind and begin emitting.
//
// Called from cmd/mytestbed for the source entry in the topology.
func NewSource(
	cfg SourceConfig,
	tr interfaces.Transport,
	clock interfaces.TimeProvider,
	arrivals interfaces.ArrivalProcess,
	collector *stats.Collector,
	sinks []interfaces.ResultSink,
	logger log.Logger,
) *Source {
	helpers.StrPanic(cfg.Name, "node.source.go: name is required")
	return &Source{
		cfg:       cfg,
		tr:        helpers.NilPanic(tr, "node.source.go: transport is required"),
		clock:     helpers.NilPanic(clock, "node.source.go: clock is required"),
		arrivals:  helpers.NilPanic(arrivals, "node.source.go: arrivals is required"),
		collector: helpers.NilPanic(collector, "node.source.go: collector is required"),
		sinks:     sinks,
		logger:    log.With(helpers.NilPanic(logger, "node.source.go: logger is required"), "node", cfg.Name, "role", string(domain.RoleSource)),
		done:      make(chan struct{}),
		runDone:   make(chan struct{}),
	}
}

// Start binds the local port and starts the emission goroutine. In
// validation mode nothing is started and ErrValidationNotImplemented is
// returned so the caller can exit cleanly.
func (s *Source) Start() error {
	if s.cfg.Mode == SourceModeValidation {
		return ErrValidationNotImplemented
	}
	if err := s.tr.Start(s); err != nil {
		return fmt.Errorf("source %s: %w", s.cfg.Name, err)
	}
	s.running.Store(true)
	level.Info(s.logger).Log(
		"msg", "started",
		"port", s.cfg.LocalPort,
		"target", s.cfg.Target.String(),
		"client_id", s.cfg.ClientID,
		"mode", string(s.cfg.Mode),
		"message_count", s.cfg.MessageCount,
		"arrival_delay_ms", s.cfg.ArrivalDelay.Milliseconds(),
	)
	s.wg.Add(1)
	go s.emitLoop()
	return nil
}

// Stop shuts the source down without waiting for outstanding round trips.
// Idempotent.
func (s *Source) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.tr.Stop()
		s.wg.Wait()
		s.running.Store(false)
		level.Info(s.logger).Log("msg", "stopped", "emitted", s.emitted.Load(), "received", s.received.Load(), "dropped", s.dropped.Load())
	})
}

// Done is closed once the collector's sample threshold has been observed and
// the summary emitted. Callers wait on it (or on a signal) before stopping.
func (s *Source) Done() <-chan struct{} {
	return s.runDone
}

// emitLoop walks the arrival schedule; sequence indexes advance per emission
// attempt, so a dropped emission leaves a hole rather than a retry.
func (s *Source) emitLoop() {
	defer s.wg.Done()
	seq := 1
	for {
		wait, ok := s.arrivals.Next()
		if !ok {
			level.Info(s.logger).Log("msg", "emission schedule complete", "emitted", s.emitted.Load(), "dropped", s.dropped.Load())
			return
		}
		if !sleepInterruptible(s.done, wait) {
			return
		}
		s.emit(seq)
		seq++
	}
}

// emit probes the first hop and sends one fresh message when it is free;
// a busy or unreachable first hop costs the emission.
func (s *Source) emit(seq int) {
	if !s.tr.Ping(s.cfg.Target) {
		s.dropped.Add(1)
		level.Warn(s.logger).Log("msg", "first hop busy, dropping emission", "seq", seq, "dropped_total", s.dropped.Load())
		return
	}
	msg := domain.NewMessage(s.cfg.ClientID, seq, s.clock.Now().UnixMilli())
	if err := s.tr.Send(msg, s.cfg.Target); err != nil {
		s.dropped.Add(1)
		level.Warn(s.logger).Log("msg", "emission failed, dropping", "seq", seq, "err", err)
		return
	}
	s.emitted.Add(1)
	level.Debug(s.logger).Log("msg", "emitted", "seq", seq)
}

// OnMessage receives completed round trips. The source never applies
// backpressure, so probes always read free. A trail that comes back without
// its terminal pair is completed here before collection.
func (s *Source) OnMessage(line string, conn net.Conn) {
	if domain.IsPing(line) {
		if err := s.tr.Reply(conn, true); err != nil {
			level.Warn(s.logger).Log("msg", "probe reply failed", "err", err)
		}
		return
	}
	msg, err := domain.ParseMessage(line)
	if err != nil {
		level.Warn(s.logger).Log("msg", "ignoring undecodable line", "err", err)
		return
	}
	now := s.clock.Now().UnixMilli()
	if !msg.HasResponseTime() {
		var clean bool
		msg, clean = msg.WithResponseTime(now)
		if !clean {
			level.Warn(s.logger).Log("msg", "malformed send timestamp, substituted current time")
		}
	}
	s.received.Add(1)
	sample, ok := s.collector.Observe(msg, now)
	if !ok {
		return
	}
	for _, sink := range s.sinks {
		if err := sink.RecordSample(sample); err != nil {
			level.Warn(s.logger).Log("msg", "result sink rejected sample", "seq", sample.Seq, "err", err)
		}
	}
	if s.collector.Done() {
		s.finishOnce.Do(s.finish)
	}
}

// finish emits the run summary exactly once and releases Done.
func (s *Source) finish() {
	sum := s.collector.Summary()
	sum.Dropped = s.dropped.Load()
	kv := []interface{}{"msg", "run complete", "observed", sum.Observed, "dropped", sum.Dropped,
		"avg_response_ms", fmt.Sprintf("%.2f", sum.AvgResponseMillis), "max_response_ms", sum.MaxResponseMillis}
	for _, row := range sum.Rows {
		kv = append(kv, "avg_"+row.Label+"_ms", fmt.Sprintf("%.2f", row.AvgMillis))
	}
	level.Info(s.logger).Log(kv...)
	for _, sink := range s.sinks {
		if err := sink.RecordSummary(sum); err != nil {
			level.Warn(s.logger).Log("msg", "result sink rejected summary", "err", err)
		}
	}
	close(s.runDone)
}

// Status returns the diagnostics snapshot; the source has no admission
// queue, so the queue fields stay zero.
func (s *Source) Status() domain.NodeStatus {
	return domain.NodeStatus{
		Name:      s.cfg.Name,
		Role:      domain.RoleSource,
		Running:   s.running.Load(),
		Dropped:   s.dropped.Load(),
		Forwarded: s.emitted.Load(),
	}
}
