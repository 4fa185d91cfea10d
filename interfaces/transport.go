package interfaces

import (
	"net"

	"mytestbed/domain"
)

// LineHandler receives every complete line read from an inbound connection.
// Implemented by the node roles (node.LoadBalancer, node.Service, node.Source);
// conn is passed through so ping replies can be written back on the same
// connection.
type LineHandler interface {
	// OnMessage handles one line (without its trailing newline) from conn.
	// Called from the transport reader goroutines; implementations must be safe
	// for concurrent calls from different connections.
	OnMessage(line string, conn net.Conn)
}

// Transport is the TCP endpoint of one node: a listening socket with reader
// goroutines on the inbound side and a pooled connection per destination on
// the outbound side.
//
// Start binds the local port and begins accepting; Send and Ping drive the
// outbound pool; Reply answers a probe on an inbound connection; Stop tears
// everything down. A bind failure is fatal to the owning node only.
//
// Implemented by node.Transport. Called from the node roles for every forward
// and probe.
//
//go:generate moq -stub -out mock/transport.go -pkg mock . Transport
type Transport interface {
	// Start binds the configured local port and starts the accept loop, handing every complete inbound line to h.
	// Parameter h — the owning node; must be non-nil.
	// Returns: nil on success; the bind error otherwise, in which case the node must transition to not-running (sibling nodes in the same process are unaffected).
	// Called from the node Start methods before any dispatching starts.
	Start(h LineHandler) error

	// Send writes msg's encoded line to target over the pooled connection, creating it lazily.
	// Parameters: msg — the message to forward; target — destination endpoint.
	// Returns: nil on success. On any write failure the pooled entry is closed and evicted and the error is returned; there is no internal retry.
	// Called from dispatch loops after a successful probe and from the terminal delivery to the source.
	Send(msg domain.Message, target domain.Address) error

	// Ping probes target with the liveness line and waits for a single reply line.
	// Parameter target — destination endpoint.
	// Returns: true iff the reply is exactly "free". Unknown replies, timeouts and I/O errors evict the pooled entry and report false (busy and unreachable are indistinguishable to the caller).
	// Called from dispatch loops before every forward and from the source before every emission.
	Ping(target domain.Address) bool

	// Reply writes the probe answer ("free" or "busy") back on the inbound connection conn.
	// Parameters: conn — the connection the probe arrived on; free — the admission answer at this instant.
	// Returns: the write error, if any; callers only log it.
	// Called from the node OnMessage implementations when the line is a ping.
	Reply(conn net.Conn, free bool) error

	// Stop closes the listener, the outbound pool and all tracked inbound connections and signals every loop to exit. Idempotent; no resource is double-closed.
	// Called from the node Stop methods and from process shutdown.
	Stop()
}
