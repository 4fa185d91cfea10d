package node

import (
	"fmt"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"mytestbed/domain"
	"mytestbed/helpers"
	"mytestbed/interfaces"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// ServiceConfig holds one service's settings. ServiceTimeMean/Std shape the
// gaussian processing delay (negative samples floor at zero). TargetIsSource
// marks the terminal service that completes the round trip.
type ServiceConfig struct {
	Name           string
	LocalPort      int
	Target         domain.Address
	TargetIsSource bool

	ServiceTimeMean time.Duration
	ServiceTimeStd  time.Duration

	// RetryAttempts bounds the downstream probe loop of a non-terminal
	// service; RetryInterval is the wait between attempts.
	RetryAttempts int
	RetryInterval time.Duration
}

const (
	defaultRetryAttempts      = 50
	defaultForwardRetryPause  = 100 * time.Millisecond
	defaultWorkerIdleInterval = time.Millisecond
)

func withServiceDefaults(cfg ServiceConfig) ServiceConfig {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = defaultRetryAttempts
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultForwardRetryPause
	}
	return cfg
}

// pendingMessage is a message occupying the slot together with its admission
// instant; the worker stamps the occupancy duration from it.
type pendingMessage struct {
	msg     domain.Message
	arrival int64
}

// Service is the single-slot worker node. The slot is a capacity-1 admission
// queue: free iff empty, and the worker releases it before sleeping the
// simulated processing delay, so probes see free the moment the slot is
// drained (the slot gates admission, not work in flight). After processing,
// a terminal service completes the trail and delivers it to the source; a
// non-terminal service probes its downstream in a bounded retry loop and
// discards the message when the attempts run out.
type Service struct {
	cfg    ServiceConfig
	tr     interfaces.Transport
	clock  interfaces.TimeProvider
	logger log.Logger
	rng    *rand.Rand

	slot *AdmissionQueue[pendingMessage]

	running   atomic.Bool
	dropped   atomic.Uint64
	forwarded atomic.Uint64

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewService creates a service node. Panics on empty name or nil transport, clock or logger.
//
// Parameters: cfg — settings (zero retry bounds get defaults); tr — the node transport; clock — time source for stamping; logger — scoped per node.
//
// Returns: *Service. Call Start to bind and begin processing.
//
// Called from cmd/mytestbed for every service entry in the topology.
func NewService(cfg ServiceConfig, tr interfaces.Transport, clock interfaces.TimeProvider, logger log.Logger) *Service {
	cfg = withServiceDefaults(cfg)
	helpers.StrPanic(cfg.Name, "node.service.go: name is required")
	return &Service{
		cfg:    cfg,
		tr:     helpers.NilPanic(tr, "node.service.go: transport is required"),
		clock:  helpers.NilPanic(clock, "node.service.go: clock is required"),
		logger: log.With(helpers.NilPanic(logger, "node.service.go: logger is required"), "node", cfg.Name, "role", string(domain.RoleService)),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		slot:   NewAdmissionQueue[pendingMessage](1),
		done:   make(chan struct{}),
	}
}

// Start binds the local port and starts the worker loop. On a bind failure
// the service stays not-running and the error is returned.
func (s *Service) Start() error {
	if err := s.tr.Start(s); err != nil {
		return fmt.Errorf("service %s: %w", s.cfg.Name, err)
	}
	s.running.Store(true)
	level.Info(s.logger).Log(
		"msg", "started",
		"port", s.cfg.LocalPort,
		"target", s.cfg.Target.String(),
		"target_is_source", s.cfg.TargetIsSource,
		"service_time_ms", s.cfg.ServiceTimeMean.Milliseconds(),
		"service_std_ms", s.cfg.ServiceTimeStd.Milliseconds(),
	)
	s.wg.Add(1)
	go s.workerLoop()
	return nil
}

// Stop shuts the service down. Idempotent; a message mid-processing is
// abandoned.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.tr.Stop()
		s.wg.Wait()
		s.running.Store(false)
		level.Info(s.logger).Log("msg", "stopped", "forwarded", s.forwarded.Load(), "dropped", s.dropped.Load())
	})
}

// OnMessage handles one inbound line: probe or slot admission. The slot
// answer reflects occupancy at this instant; a rejected message is dropped
// silently toward the sender and counted.
func (s *Service) OnMessage(line string, conn net.Conn) {
	if domain.IsPing(line) {
		if err := s.tr.Reply(conn, s.slot.Free()); err != nil {
			level.Warn(s.logger).Log("msg", "probe reply failed", "err", err)
		}
		return
	}
	msg, err := domain.ParseMessage(line)
	if err != nil {
		level.Warn(s.logger).Log("msg", "ignoring undecodable line", "err", err)
		return
	}
	pending := pendingMessage{msg: msg, arrival: s.clock.Now().UnixMilli()}
	if !s.slot.TryPush(pending) {
		s.dropped.Add(1)
		level.Warn(s.logger).Log("msg", "slot occupied, dropping message", "dropped_total", s.dropped.Load())
	}
}

// workerLoop drains the slot: release it, sleep the sampled delay, stamp the
// occupancy pair, then hand the message on.
func (s *Service) workerLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		default:
		}
		pending, ok := s.slot.Pop()
		if !ok {
			if !sleepInterruptible(s.done, defaultWorkerIdleInterval) {
				return
			}
			continue
		}
		if !sleepInterruptible(s.done, s.sampleDelay()) {
			return
		}
		now := s.clock.Now().UnixMilli()
		stamped := pending.msg.WithHopDuration(now, now-pending.arrival)
		if s.cfg.TargetIsSource {
			s.deliverToSource(stamped, now)
			continue
		}
		s.forwardDownstream(stamped)
	}
}

// sampleDelay draws the simulated processing time: N(mean, std) floored at
// zero. Mean and std both zero yield no delay.
func (s *Service) sampleDelay() time.Duration {
	if s.cfg.ServiceTimeMean <= 0 && s.cfg.ServiceTimeStd <= 0 {
		return 0
	}
	d := time.Duration(float64(s.cfg.ServiceTimeMean) + s.rng.NormFloat64()*float64(s.cfg.ServiceTimeStd))
	if d < 0 {
		return 0
	}
	return d
}

// deliverToSource completes the trail with the terminal pair and sends it
// home. No probe: the source always admits.
func (s *Service) deliverToSource(msg domain.Message, nowMillis int64) {
	completed, clean := msg.WithResponseTime(nowMillis)
	if !clean {
		level.Warn(s.logger).Log("msg", "malformed send timestamp, substituted current time")
	}
	if err := s.tr.Send(completed, s.cfg.Target); err != nil {
		level.Warn(s.logger).Log("msg", "delivery to source failed, discarding", "target", s.cfg.Target.String(), "err", err)
		return
	}
	s.forwarded.Add(1)
}

// forwardDownstream probes the downstream address in a bounded retry loop
// and sends on the first free answer; a send failure consumes the attempt.
// Exhausting the attempts discards the message.
func (s *Service) forwardDownstream(msg domain.Message) {
	for attempt := 0; attempt < s.cfg.RetryAttempts; attempt++ {
		if attempt > 0 && !sleepInterruptible(s.done, s.cfg.RetryInterval) {
			return
		}
		if !s.tr.Ping(s.cfg.Target) {
			continue
		}
		if err := s.tr.Send(msg, s.cfg.Target); err != nil {
			level.Warn(s.logger).Log("msg", "forward failed after free probe", "target", s.cfg.Target.String(), "err", err)
			continue
		}
		s.forwarded.Add(1)
		return
	}
	s.dropped.Add(1)
	level.Warn(s.logger).Log("msg", "downstream never freed, discarding", "target", s.cfg.Target.String(), "attempts", s.cfg.RetryAttempts)
}

// Status returns the diagnostics snapshot; the slot reads as a queue of
// capacity 1.
func (s *Service) Status() domain.NodeStatus {
	return domain.NodeStatus{
		Name:      s.cfg.Name,
		Role:      domain.RoleService,
		Running:   s.running.Load(),
		QueueLen:  s.slot.Len(),
		QueueCap:  s.slot.Cap(),
		Dropped:   s.dropped.Load(),
		Forwarded: s.forwarded.Load(),
	}
}
