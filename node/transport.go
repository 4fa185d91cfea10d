package node

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"mytestbed/domain"
	"mytestbed/helpers"
	"mytestbed/interfaces"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// TransportConfig holds the per-operation deadlines and the listening port of
// one node's transport. Zero timeouts are replaced with defaults by
// NewTransport.
type TransportConfig struct {
	LocalPort    int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PingTimeout  time.Duration
}

const (
	defaultReadTimeout  = 2 * time.Second
	defaultWriteTimeout = 2 * time.Second
	defaultPingTimeout  = 2 * time.Second
)

// ErrTransportStarted is returned by Start on reuse: a transport binds once
// and cannot be restarted after Stop.
var ErrTransportStarted = errors.New("transport already started")

func withTransportDefaults(cfg TransportConfig) TransportConfig {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = defaultPingTimeout
	}
	return cfg
}

// Transport implements interfaces.Transport: one listening TCP socket with a
// reader goroutine per accepted connection on the inbound side, and the
// connection pool on the outbound side. Reader tasks buffer partial lines
// across read deadlines, so an idle persistent connection never drops data
// and never blocks shutdown. Fields: cfg, pool, logger; under mu: listener,
// inbound (accepted connections), handler, started, stopped.
type Transport struct {
	cfg    TransportConfig
	pool   interfaces.ConnectionPool
	logger log.Logger

	mu       sync.Mutex
	listener net.Listener
	inbound  map[net.Conn]struct{}
	handler  interfaces.LineHandler
	started  bool
	stopped  bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewTransport creates the transport for one node. Panics on nil pool or logger.
//
// Parameters: cfg — local port and deadlines (zero deadlines get defaults); pool — outbound connection pool; logger — lifecycle and I/O failures are logged.
//
// Returns: *Transport (implements interfaces.Transport).
//
// Called from cmd/mytestbed when building each node.
func NewTransport(cfg TransportConfig, pool interfaces.ConnectionPool, logger log.Logger) *Transport {
	return &Transport{
		cfg:     withTransportDefaults(cfg),
		pool:    helpers.NilPanic(pool, "node.transport.go: pool is required"),
		logger:  log.With(helpers.NilPanic(logger, "node.transport.go: logger is required"), "component", "transport"),
		inbound: make(map[net.Conn]struct{}),
		done:    make(chan struct{}),
	}
}

// Start binds the local port and starts the accept loop. A bind failure is fatal to the owning node only: the error is returned and nothing is running afterwards; sibling nodes in the same process are unaffected.
//
// Parameter h — the owning node's line handler; must be non-nil.
//
// Returns: nil on success; the wrapped bind error otherwise.
//
// Called from the node Run/Start methods before any dispatching begins.
func (t *Transport) Start(h interfaces.LineHandler) error {
	helpers.NilPanic(h, "node.transport.go: handler is required")
	t.mu.Lock()
	if t.started || t.stopped {
		t.mu.Unlock()
		return ErrTransportStarted
	}
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", t.cfg.LocalPort))
	if err != nil {
		t.mu.Unlock()
		return fmt.Errorf("listen on port %d: %w", t.cfg.LocalPort, err)
	}
	t.listener = ln
	t.handler = h
	t.started = true
	t.mu.Unlock()

	level.Info(t.logger).Log("msg", "listening", "addr", ln.Addr().String())
	t.wg.Add(1)
	go t.acceptLoop(ln)
	return nil
}

// Addr returns the bound listener address (useful with LocalPort 0). Nil before Start.
func (t *Transport) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// acceptLoop accepts until the transport stops. Transient accept errors while running are logged and retried after a short pause; every accepted connection gets its own reader goroutine.
//
// Called only from Start in a separate goroutine.
func (t *Transport) acceptLoop(ln net.Listener) {
	defer t.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-t.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			level.Warn(t.logger).Log("msg", "accept failed, retrying", "err", err)
			if !sleepInterruptible(t.done, 50*time.Millisecond) {
				return
			}
			continue
		}
		t.mu.Lock()
		if t.stopped {
			t.mu.Unlock()
			_ = conn.Close()
			return
		}
		t.inbound[conn] = struct{}{}
		t.mu.Unlock()
		t.wg.Add(1)
		go t.readLoop(conn)
	}
}

// readLoop reads complete lines from one inbound connection and hands them to the node. Each read carries a deadline; expiry on an idle connection is normal and any partial line read so far is kept until the newline arrives. EOF or a hard error closes the connection and ends the task.
//
// Called only from acceptLoop, one goroutine per accepted connection.
func (t *Transport) readLoop(conn net.Conn) {
	defer t.wg.Done()
	reader := bufio.NewReader(conn)
	var partial []byte
	for {
		select {
		case <-t.done:
			return
		default:
		}
		if err := conn.SetReadDeadline(time.Now().Add(t.cfg.ReadTimeout)); err != nil {
			t.closeInbound(conn)
			return
		}
		chunk, err := reader.ReadString('\n')
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				// idle persistent connection; keep what arrived so far
				partial = append(partial, chunk...)
				continue
			}
			t.closeInbound(conn)
			return
		}
		line := strings.TrimRight(string(partial)+chunk, "\r\n")
		partial = partial[:0]
		if line == "" {
			continue
		}
		t.handler.OnMessage(line, conn)
	}
}

// closeInbound removes conn from the tracked set and closes it, unless Stop already untracked (and closed) it.
//
// Called only from readLoop on read errors.
func (t *Transport) closeInbound(conn net.Conn) {
	t.mu.Lock()
	_, tracked := t.inbound[conn]
	delete(t.inbound, conn)
	t.mu.Unlock()
	if tracked {
		_ = conn.Close()
	}
}

// Send writes msg's encoded line to target over the pooled connection. On any failure the pooled entry is evicted and the error returned; there is no internal retry (dispatch loops move on to another destination or requeue).
//
// Parameters: msg — the message to forward; target — destination endpoint.
//
// Returns: nil on success; the wrapped dial or write error otherwise.
//
// Called from the dispatch loops after a successful probe and from the terminal delivery to the source.
func (t *Transport) Send(msg domain.Message, target domain.Address) error {
	conn, err := t.pool.Get(target)
	if err != nil {
		return fmt.Errorf("send to %s: %w", target.String(), err)
	}
	if err := t.writeLine(conn, msg.Encode()); err != nil {
		t.pool.Evict(target, conn)
		return fmt.Errorf("send to %s: %w", target.String(), err)
	}
	return nil
}

// Ping probes target: writes the ping line and reads the fixed-size reply under the probe deadline.
//
// Parameter target — destination endpoint.
//
// Returns: true iff the reply is exactly "free". On "busy" the pooled connection stays cached; on timeouts, I/O errors and unknown replies the entry is evicted and false is returned (busy and unreachable are indistinguishable to the caller).
//
// Called from the dispatch loops before every forward and from the source before every emission.
func (t *Transport) Ping(target domain.Address) bool {
	conn, err := t.pool.Get(target)
	if err != nil {
		level.Debug(t.logger).Log("msg", "probe dial failed", "target", target.String(), "err", err)
		return false
	}
	if err := t.writeLine(conn, domain.PingLine); err != nil {
		t.pool.Evict(target, conn)
		return false
	}
	if err := conn.SetReadDeadline(time.Now().Add(t.cfg.PingTimeout)); err != nil {
		t.pool.Evict(target, conn)
		return false
	}
	// free and busy replies are the same length on the wire
	buf := make([]byte, len(domain.PingReplyFree)+1)
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.pool.Evict(target, conn)
		return false
	}
	switch strings.TrimRight(string(buf), "\r\n") {
	case domain.PingReplyFree:
		return true
	case domain.PingReplyBusy:
		return false
	default:
		t.pool.Evict(target, conn)
		return false
	}
}

// Reply writes the probe answer back on the inbound connection.
//
// Parameters: conn — the connection the probe arrived on; free — the admission answer at this instant.
//
// Returns: the write error, if any; callers only log it.
//
// Called from the node OnMessage implementations when the line is a ping.
func (t *Transport) Reply(conn net.Conn, free bool) error {
	reply := domain.PingReplyBusy
	if free {
		reply = domain.PingReplyFree
	}
	return t.writeLine(conn, reply)
}

func (t *Transport) writeLine(conn net.Conn, line string) error {
	if err := conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout)); err != nil {
		return err
	}
	_, err := conn.Write([]byte(line + "\n"))
	return err
}

// Stop closes the listener, every tracked inbound connection and the outbound pool, then waits for all loops to exit. Idempotent; the reader/Stop handoff guarantees no connection is closed twice.
//
// Called from the node Stop methods and from process shutdown.
func (t *Transport) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	ln := t.listener
	conns := make([]net.Conn, 0, len(t.inbound))
	for c := range t.inbound {
		conns = append(conns, c)
	}
	t.inbound = map[net.Conn]struct{}{}
	t.mu.Unlock()

	close(t.done)
	if ln != nil {
		_ = ln.Close()
	}
	for _, c := range conns {
		_ = c.Close()
	}
	_ = t.pool.Close()
	t.wg.Wait()
	level.Info(t.logger).Log("msg", "transport stopped")
}

// sleepInterruptible waits d or until done closes, whichever comes first.
// Reports false when interrupted. All timed suspensions in the node loops go
// through this so Stop wakes them immediately.
func sleepInterruptible(done <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-done:
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-done:
		return false
	case <-timer.C:
		return true
	}
}
