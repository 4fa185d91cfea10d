package node

import (
	"errors"
	"net"
	"sync"
	"time"

	"mytestbed/domain"
	"mytestbed/helpers"
	"mytestbed/interfaces"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// ErrPoolClosed is returned by Get when the pool has been closed.
var ErrPoolClosed = errors.New("connection pool is closed")

// livenessWindow bounds the drain-read used to verify a cached connection
// before reuse. Long enough to observe a close the peer already sent, short
// enough to be invisible in dispatch latency.
const livenessWindow = 2 * time.Millisecond

// connectionPool implements interfaces.ConnectionPool. It caches one outbound
// TCP connection per destination address: Get returns the cached connection
// after a liveness check (draining stale bytes, redialing dead sockets);
// Evict closes a failed connection and removes it if it is still the cached
// one; Close closes everything. Fields: dial, logger; under mu: conns
// (Address → net.Conn), closed.
type connectionPool struct {
	dial   func(addr domain.Address) (net.Conn, error)
	logger log.Logger

	mu     sync.Mutex
	conns  map[domain.Address]net.Conn
	closed bool
}

// NewConnectionPool creates a pool over the given dial function. Panics on nil dial or logger.
//
// Parameters: dial — (Address) → (net.Conn, error), usually DialTCP(timeout); injected so tests can hand out pipe ends; logger — liveness evictions are logged.
//
// Returns: interfaces.ConnectionPool (*connectionPool).
//
// Called from cmd/mytestbed when building each node's transport.
func NewConnectionPool(dial func(addr domain.Address) (net.Conn, error), logger log.Logger) interfaces.ConnectionPool {
	return &connectionPool{
		dial:   helpers.NilPanic(dial, "node.connection_pool.go: dial is required"),
		logger: log.With(helpers.NilPanic(logger, "node.connection_pool.go: logger is required"), "component", "connection_pool"),
		conns:  make(map[domain.Address]net.Conn),
	}
}

// DialTCP returns the production dial function: net.DialTimeout("tcp", ...) with the given timeout.
//
// Called from cmd/mytestbed; tests inject their own dial instead.
func DialTCP(timeout time.Duration) func(addr domain.Address) (net.Conn, error) {
	return func(addr domain.Address) (net.Conn, error) {
		return net.DialTimeout("tcp", addr.String(), timeout)
	}
}

// Get returns the pooled connection to addr, dialing lazily on first use or after an eviction. A cached connection is verified with a drain-read first; a dead one is closed and replaced.
//
// Parameter addr — destination endpoint.
//
// Returns: (conn, nil) on success; (nil, ErrPoolClosed) after Close; (nil, err) when the dial fails (the caller treats that as the destination being unreachable).
//
// Called from Transport.Send and Transport.Ping. Callers perform at most one operation per address at a time (every node drives outbound I/O from a single dispatch goroutine).
func (p *connectionPool) Get(addr domain.Address) (net.Conn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	conn := p.conns[addr]
	p.mu.Unlock()

	if conn != nil {
		if p.alive(conn) {
			return conn, nil
		}
		level.Debug(p.logger).Log("msg", "pooled connection dead, redialing", "target", addr.String())
		p.Evict(addr, conn)
	}

	fresh, err := p.dial(addr)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = fresh.Close()
		return nil, ErrPoolClosed
	}
	p.conns[addr] = fresh
	p.mu.Unlock()
	return fresh, nil
}

// alive drains whatever is buffered on an idle pooled connection and reports whether the socket is still usable. Bytes buffered on an idle connection can only be a stale probe reply from an aborted exchange; they must not poison the next read. A deadline expiry means the socket is idle and healthy; EOF or a hard error means the peer went away.
//
// Called only from Get before reusing a cached connection.
func (p *connectionPool) alive(conn net.Conn) bool {
	if err := conn.SetReadDeadline(time.Now().Add(livenessWindow)); err != nil {
		return false
	}
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()
	buf := make([]byte, 64)
	for {
		if _, err := conn.Read(buf); err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return true
			}
			return false
		}
	}
}

// Evict closes conn and removes the entry for addr if conn is still the pooled one; a replacement that got pooled in the meantime is left untouched.
//
// Parameters: addr — destination endpoint; conn — the connection that failed (nil is a no-op).
//
// Called from Transport on any send or probe failure and from Get when the liveness check fails.
func (p *connectionPool) Evict(addr domain.Address, conn net.Conn) {
	if conn == nil {
		return
	}
	p.mu.Lock()
	if p.conns[addr] == conn {
		delete(p.conns, addr)
	}
	p.mu.Unlock()
	_ = conn.Close()
}

// Close marks the pool closed and closes all cached connections. Idempotent: repeated call returns nil with no side effects. Subsequent Get returns ErrPoolClosed.
//
// Returns: nil (connection close errors are not returned).
//
// Called from Transport.Stop.
func (p *connectionPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	for _, conn := range p.conns {
		_ = conn.Close()
	}
	p.conns = map[domain.Address]net.Conn{}
	return nil
}
