package interfaces

import (
	"net"

	"mytestbed/domain"
)

// ConnectionPool caches one outbound TCP connection per destination address,
// dialing lazily and evicting on failure.
//
// Get returns the live pooled connection (verifying liveness before reuse);
// Evict closes a failed connection and removes it if it is still the pooled
// one; Close shuts the pool down. Callers perform at most one operation per
// address at a time: every node drives its outbound I/O from a single
// dispatch goroutine, so pooled connections are never used concurrently.
//
// Implemented by node.connectionPool. Called from node.Transport for every
// send and probe.
//
//go:generate moq -stub -out mock/connection_pool.go -pkg mock . ConnectionPool
type ConnectionPool interface {
	// Get returns the pooled connection to addr, dialing it lazily on first use or after an eviction.
	// Parameter addr — destination endpoint.
	// Returns: (conn, nil) on success; (nil, node.ErrPoolClosed) after Close; (nil, err) when the dial fails. A cached connection is liveness-checked before reuse: stale buffered bytes are drained, a dead socket is closed and redialed.
	// Called from node.Transport.Send and node.Transport.Ping.
	Get(addr domain.Address) (net.Conn, error)

	// Evict closes conn and removes the entry for addr if conn is still the pooled one; a concurrent replacement is left untouched.
	// Parameters: addr — destination endpoint; conn — the connection that failed.
	// Called from node.Transport on any send or probe failure.
	Evict(addr domain.Address, conn net.Conn)

	// Close closes every pooled connection and marks the pool closed; idempotent. Subsequent Get returns node.ErrPoolClosed.
	// Returns: nil (individual close errors are not aggregated).
	// Called from node.Transport.Stop.
	Close() error
}
