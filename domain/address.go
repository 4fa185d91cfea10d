package domain

import (
	"net"
	"strconv"
)

// Address is the TCP endpoint of one node (host and port).
type Address struct {
	Host string
	Port int
}

// String returns "host:port" in the form accepted by net.Dial.
func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// ParseAddress parses "host:port" into an Address.
//
// Parameter s — endpoint string (e.g. "127.0.0.1:2000"; IPv6 hosts must be bracketed).
//
// Returns: the parsed Address, or *AddressError when the host/port split fails or the port is not in 1..65535.
//
// Called from cmd.LoadConfig when resolving target endpoints.
func ParseAddress(s string) (Address, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Address{}, &AddressError{Input: s, Reason: err.Error()}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Address{}, &AddressError{Input: s, Reason: "port is not a number"}
	}
	if port < 1 || port > 65535 {
		return Address{}, &AddressError{Input: s, Reason: "port out of range"}
	}
	return Address{Host: host, Port: port}, nil
}

// DeriveRange returns n addresses on host occupying the contiguous port range
// basePort+1 .. basePort+n. Managed service pools are always derived from the
// balancer's own port with this rule, both at startup and on reconfiguration.
func DeriveRange(host string, basePort, n int) []Address {
	out := make([]Address, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, Address{Host: host, Port: basePort + i})
	}
	return out
}

// AddressError is returned by ParseAddress for endpoints that cannot be used.
type AddressError struct {
	Input  string
	Reason string
}

// Error implements error; returns a string like `address "x": port out of range`.
func (e *AddressError) Error() string {
	return "address " + strconv.Quote(e.Input) + ": " + e.Reason
}
