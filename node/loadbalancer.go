package node

import (
	"fmt"
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

// LoadBalancerConfig holds one balancer's settings. ServiceHost and
// ServiceCount derive the initial managed pool (ports LocalPort+1 ..
// LocalPort+ServiceCount); a "config;N" line re-derives it the same way.
type LoadBalancerConfig struct {
	Name          string
	LocalPort     int
	QueueCapacity int
	ServiceHost   string
	ServiceCount  int

	// IdleInterval is the dispatch wait when the queue is empty;
	// RetryInterval the wait after a pass where every service was busy.
	IdleInterval  time.Duration
	RetryInterval time.Duration
}

const (
	defaultIdleInterval  = time.Millisecond
	defaultRetryInterval = 10 * time.Millisecond
	defaultQueueCapacity = 100
	defaultServiceHost   = "127.0.0.1"
)

func withLoadBalancerDefaults(cfg LoadBalancerConfig) LoadBalancerConfig {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = defaultQueueCapacity
	}
	if cfg.ServiceHost == "" {
		cfg.ServiceHost = defaultServiceHost
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = defaultIdleInterval
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}
	return cfg
}

// LoadBalancer admits messages into a bounded queue and dispatches the head
// to the first free service of its managed pool, probing each address in
// order. The managed address set is replaced atomically on reconfiguration;
// dispatch always iterates a snapshot, so an in-flight pass finishes against
// the set it started with. Overflow is dropped silently toward the sender
// and counted locally.
type LoadBalancer struct {
	cfg    LoadBalancerConfig
	tr     interfaces.Transport
	clock  interfaces.TimeProvider
	logger log.Logger

	queue *AdmissionQueue[domain.Message]

	addrMu sync.Mutex
	addrs  []domain.Address

	running   atomic.Bool
	dropped   atomic.Uint64
	forwarded atomic.Uint64

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewLoadBalancer creates a balancer with its initial managed pool derived from cfg. Panics on empty name or nil transport, clock or logger.
//
// Parameters: cfg — settings (zero intervals, capacity and host get defaults); tr — the node transport; clock — time source for stamping; logger — scoped per node.
//
// Returns: *LoadBalancer. Call Start to bind and begin dispatching.
//
// Called from cmd/mytestbed for every loadbalancer entry in the topology.
func NewLoadBalancer(cfg LoadBalancerConfig, tr interfaces.Transport, clock interfaces.TimeProvider, logger log.Logger) *LoadBalancer {
	cfg = withLoadBalancerDefaults(cfg)
	helpers.StrPanic(cfg.Name, "node.loadbalancer.go: name is required")
	b := &LoadBalancer{
		cfg:    cfg,
		tr:     helpers.NilPanic(tr, "node.loadbalancer.go: transport is required"),
		clock:  helpers.NilPanic(clock, "node.loadbalancer.go: clock is required"),
		logger: log.With(helpers.NilPanic(logger, "node.loadbalancer.go: logger is required"), "node", cfg.Name, "role", string(domain.RoleLoadBalancer)),
		queue:  NewAdmissionQueue[domain.Message](cfg.QueueCapacity),
		done:   make(chan struct{}),
	}
	b.addrs = domain.DeriveRange(cfg.ServiceHost, cfg.LocalPort, cfg.ServiceCount)
	return b
}

// Start binds the local port and starts the dispatch loop. On a bind failure
// the balancer stays not-running and the error is returned; other nodes in
// the process are unaffected.
func (b *LoadBalancer) Start() error {
	if err := b.tr.Start(b); err != nil {
		return fmt.Errorf("loadbalancer %s: %w", b.cfg.Name, err)
	}
	b.running.Store(true)
	level.Info(b.logger).Log(
		"msg", "started",
		"port", b.cfg.LocalPort,
		"queue_cap", b.cfg.QueueCapacity,
		"service_host", b.cfg.ServiceHost,
		"service_count", len(b.snapshotAddrs()),
	)
	b.wg.Add(1)
	go b.dispatchLoop()
	return nil
}

// Stop shuts the balancer down: wakes the dispatch loop, stops the transport
// and waits for both. Idempotent.
func (b *LoadBalancer) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.tr.Stop()
		b.wg.Wait()
		b.running.Store(false)
		level.Info(b.logger).Log("msg", "stopped", "forwarded", b.forwarded.Load(), "dropped", b.dropped.Load())
	})
}

// OnMessage handles one inbound line: probe, reconfiguration, or message
// admission. Safe for concurrent calls from different reader goroutines.
func (b *LoadBalancer) OnMessage(line string, conn net.Conn) {
	switch {
	case domain.IsPing(line):
		if err := b.tr.Reply(conn, b.queue.Free()); err != nil {
			level.Warn(b.logger).Log("msg", "probe reply failed", "err", err)
		}
	case domain.IsConfigLine(line):
		n, err := domain.ParseConfigCount(line)
		if err != nil {
			level.Warn(b.logger).Log("msg", "ignoring malformed reconfiguration", "line", line, "err", err)
			return
		}
		b.reconfigure(n)
	default:
		msg, err := domain.ParseMessage(line)
		if err != nil {
			level.Warn(b.logger).Log("msg", "ignoring undecodable line", "err", err)
			return
		}
		if !b.queue.TryPush(msg) {
			b.dropped.Add(1)
			level.Warn(b.logger).Log("msg", "queue full, dropping message", "queue_cap", b.queue.Cap(), "dropped_total", b.dropped.Load())
		}
	}
}

// reconfigure replaces the managed address set with n freshly derived
// addresses. Routing only: no service process is spawned or stopped here.
func (b *LoadBalancer) reconfigure(n int) {
	addrs := domain.DeriveRange(b.cfg.ServiceHost, b.cfg.LocalPort, n)
	b.addrMu.Lock()
	b.addrs = addrs
	b.addrMu.Unlock()
	level.Info(b.logger).Log("msg", "managed service set replaced", "service_count", n, "first_port", b.cfg.LocalPort+1)
}

func (b *LoadBalancer) snapshotAddrs() []domain.Address {
	b.addrMu.Lock()
	defer b.addrMu.Unlock()
	out := make([]domain.Address, len(b.addrs))
	copy(out, b.addrs)
	return out
}

// dispatchLoop pops the head of the queue and tries to place it; when every
// managed service is busy or unreachable the message goes back to the head
// and the pass is retried after RetryInterval.
func (b *LoadBalancer) dispatchLoop() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			return
		default:
		}
		msg, ok := b.queue.Pop()
		if !ok {
			if !sleepInterruptible(b.done, b.cfg.IdleInterval) {
				return
			}
			continue
		}
		if b.dispatch(msg) {
			continue
		}
		b.queue.PushFront(msg)
		if !sleepInterruptible(b.done, b.cfg.RetryInterval) {
			return
		}
	}
}

// dispatch probes the snapshot in order and forwards to the first free
// service, stamping the hop pair at dispatch time. A send failure after a
// free probe moves on to the next address. Reports whether the message was
// placed.
func (b *LoadBalancer) dispatch(msg domain.Message) bool {
	for _, addr := range b.snapshotAddrs() {
		if !b.tr.Ping(addr) {
			continue
		}
		stamped, clean := msg.WithHop(b.clock.Now().UnixMilli())
		if !clean {
			level.Warn(b.logger).Log("msg", "malformed timestamp field, substituted current time")
		}
		if err := b.tr.Send(stamped, addr); err != nil {
			level.Warn(b.logger).Log("msg", "forward failed after free probe", "target", addr.String(), "err", err)
			continue
		}
		b.forwarded.Add(1)
		level.Debug(b.logger).Log("msg", "forwarded", "target", addr.String())
		return true
	}
	return false
}

// Status returns the diagnostics snapshot (process-level fields are filled
// by the status API).
func (b *LoadBalancer) Status() domain.NodeStatus {
	return domain.NodeStatus{
		Name:      b.cfg.Name,
		Role:      domain.RoleLoadBalancer,
		Running:   b.running.Load(),
		QueueLen:  b.queue.Len(),
		QueueCap:  b.queue.Cap(),
		Dropped:   b.dropped.Load(),
		Forwarded: b.forwarded.Load(),
	}
}
