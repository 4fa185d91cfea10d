package node

import (
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"mytestbed/domain"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newLoopbackServer listens on an ephemeral loopback port and hands every
// accepted connection to the returned channel so tests can script the peer
// side (write stale bytes, close the socket).
func newLoopbackServer(t *testing.T) (domain.Address, <-chan net.Conn) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = lis.Close() })

	accepted := make(chan net.Conn, 8)
	go func() {
		for {
			conn, err := lis.Accept()
			if err != nil {
				return
			}
			accepted <- conn
		}
	}()

	addr, err := domain.ParseAddress(lis.Addr().String())
	require.NoError(t, err)
	return addr, accepted
}

func acceptedConn(t *testing.T, accepted <-chan net.Conn) net.Conn {
	t.Helper()
	select {
	case conn := <-accepted:
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("no connection accepted")
		return nil
	}
}

func TestNewConnectionPool_Panics(t *testing.T) {
	t.Run("dial_nil", func(t *testing.T) {
		assert.PanicsWithValue(t, "node.connection_pool.go: dial is required", func() {
			NewConnectionPool(nil, log.NewNopLogger())
		})
	})
	t.Run("logger_nil", func(t *testing.T) {
		assert.PanicsWithValue(t, "node.connection_pool.go: logger is required", func() {
			NewConnectionPool(DialTCP(time.Second), nil)
		})
	})
}

func TestConnectionPool_GetCachesPerAddress(t *testing.T) {
	addr, accepted := newLoopbackServer(t)

	var dials atomic.Int32
	dial := func(a domain.Address) (net.Conn, error) {
		dials.Add(1)
		return DialTCP(time.Second)(a)
	}
	p := NewConnectionPool(dial, log.NewNopLogger())
	defer p.Close()

	first, err := p.Get(addr)
	require.NoError(t, err)
	acceptedConn(t, accepted)

	second, err := p.Get(addr)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), dials.Load())
}

func TestConnectionPool_ReuseDrainsStaleBytes(t *testing.T) {
	addr, accepted := newLoopbackServer(t)
	p := NewConnectionPool(DialTCP(time.Second), log.NewNopLogger())
	defer p.Close()

	conn, err := p.Get(addr)
	require.NoError(t, err)
	peer := acceptedConn(t, accepted)

	// a probe reply nobody read, left over from an aborted exchange
	_, err = peer.Write([]byte("busy\n"))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	again, err := p.Get(addr)
	require.NoError(t, err)
	require.Same(t, conn, again)

	// nothing may remain buffered for the next exchange
	require.NoError(t, again.SetReadDeadline(time.Now().Add(30*time.Millisecond)))
	buf := make([]byte, 8)
	_, err = again.Read(buf)
	var ne net.Error
	require.ErrorAs(t, err, &ne)
	assert.True(t, ne.Timeout())
}

func TestConnectionPool_RedialsDeadConnection(t *testing.T) {
	addr, accepted := newLoopbackServer(t)

	var dials atomic.Int32
	dial := func(a domain.Address) (net.Conn, error) {
		dials.Add(1)
		return DialTCP(time.Second)(a)
	}
	p := NewConnectionPool(dial, log.NewNopLogger())
	defer p.Close()

	first, err := p.Get(addr)
	require.NoError(t, err)
	peer := acceptedConn(t, accepted)

	require.NoError(t, peer.Close())
	time.Sleep(50 * time.Millisecond)

	second, err := p.Get(addr)
	require.NoError(t, err)
	acceptedConn(t, accepted)
	assert.NotSame(t, first, second)
	assert.Equal(t, int32(2), dials.Load())
}

func TestConnectionPool_DialFailure(t *testing.T) {
	wantErr := errors.New("connection refused")
	p := NewConnectionPool(func(a domain.Address) (net.Conn, error) { return nil, wantErr }, log.NewNopLogger())
	defer p.Close()

	_, err := p.Get(domain.Address{Host: "127.0.0.1", Port: 9})
	assert.ErrorIs(t, err, wantErr)
}

func TestConnectionPool_EvictOnlyCurrent(t *testing.T) {
	addr, accepted := newLoopbackServer(t)

	var dials atomic.Int32
	dial := func(a domain.Address) (net.Conn, error) {
		dials.Add(1)
		return DialTCP(time.Second)(a)
	}
	p := NewConnectionPool(dial, log.NewNopLogger())
	defer p.Close()

	stale, err := p.Get(addr)
	require.NoError(t, err)
	acceptedConn(t, accepted)

	p.Evict(addr, stale)
	replacement, err := p.Get(addr)
	require.NoError(t, err)
	acceptedConn(t, accepted)
	require.Equal(t, int32(2), dials.Load())

	// a late eviction holding the old handle must not disturb the replacement
	p.Evict(addr, stale)
	again, err := p.Get(addr)
	require.NoError(t, err)
	assert.Same(t, replacement, again)
	assert.Equal(t, int32(2), dials.Load())
}

func TestConnectionPool_Close(t *testing.T) {
	addr, accepted := newLoopbackServer(t)
	p := NewConnectionPool(DialTCP(time.Second), log.NewNopLogger())

	_, err := p.Get(addr)
	require.NoError(t, err)
	peer := acceptedConn(t, accepted)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close(), "close must be idempotent")

	_, err = p.Get(addr)
	assert.ErrorIs(t, err, ErrPoolClosed)

	// the pooled connection was closed: the peer observes EOF
	require.NoError(t, peer.SetReadDeadline(time.Now().Add(time.Second)))
	_, err = peer.Read(make([]byte, 1))
	assert.Error(t, err)
}
