package node

import (
	"fmt"
	"net"
	"strconv"
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

// reservePorts grabs n distinct free ports by holding n listeners open at
// once, then releases them for the fixed-port nodes under test.
func reservePorts(t *testing.T, n int) []int {
	t.Helper()
	listeners := make([]net.Listener, 0, n)
	ports := make([]int, 0, n)
	for i := 0; i < n; i++ {
		l, err := net.Listen("tcp", ":0")
		require.NoError(t, err)
		listeners = append(listeners, l)
		ports = append(ports, l.Addr().(*net.TCPAddr).Port)
	}
	for _, l := range listeners {
		require.NoError(t, l.Close())
	}
	return ports
}

// reserveChainPorts finds a source port plus a balancer port whose derived
// pool range (base+1 .. base+poolSize) is also free. The source listener is
// held open while probing so the ranges cannot overlap.
func reserveChainPorts(t *testing.T, poolSize int) (srcPort, lbPort int) {
	t.Helper()
	srcL, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer srcL.Close()
	srcPort = srcL.Addr().(*net.TCPAddr).Port

	for attempt := 0; attempt < 20; attempt++ {
		lbL, err := net.Listen("tcp", ":0")
		require.NoError(t, err)
		base := lbL.Addr().(*net.TCPAddr).Port
		pool := make([]net.Listener, 0, poolSize)
		free := true
		for p := base + 1; p <= base+poolSize; p++ {
			l, err := net.Listen("tcp", fmt.Sprintf(":%d", p))
			if err != nil {
				free = false
				break
			}
			pool = append(pool, l)
		}
		_ = lbL.Close()
		for _, l := range pool {
			_ = l.Close()
		}
		if free {
			return srcPort, base
		}
	}
	t.Fatal("no contiguous free port range found")
	return 0, 0
}

func parseMillis(t *testing.T, field string) int64 {
	t.Helper()
	v, err := strconv.ParseInt(field, 10, 64)
	require.NoError(t, err)
	return v
}

func awaitDone(t *testing.T, src *Source) {
	t.Helper()
	select {
	case <-src.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("round trips never completed")
	}
}

func TestRoundTrip_TerminalService(t *testing.T) {
	ports := reservePorts(t, 2)
	srcAddr := domain.Address{Host: "127.0.0.1", Port: ports[0]}
	svcAddr := domain.Address{Host: "127.0.0.1", Port: ports[1]}

	svc := NewService(ServiceConfig{
		Name:           "svc",
		LocalPort:      svcAddr.Port,
		Target:         srcAddr,
		TargetIsSource: true,
	}, newNodeTransport(t, TransportConfig{LocalPort: svcAddr.Port}), NewTimeProvider(time.Now), log.NewNopLogger())
	require.NoError(t, svc.Start())
	defer svc.Stop()

	sink := &mock.ResultSinkMock{}
	collector := stats.NewCollector(1, 2, log.NewNopLogger())
	src := NewSource(SourceConfig{
		Name:         "source",
		LocalPort:    srcAddr.Port,
		Target:       svcAddr,
		ClientID:     7,
		Mode:         SourceModeFeeding,
		MessageCount: 5,
		ArrivalDelay: 20 * time.Millisecond,
	}, newNodeTransport(t, TransportConfig{LocalPort: srcAddr.Port}), NewTimeProvider(time.Now),
		NewFixedIntervalArrivals(5, 20*time.Millisecond), collector, []interfaces.ResultSink{sink}, log.NewNopLogger())
	require.NoError(t, src.Start())
	defer src.Stop()

	awaitDone(t, src)

	samples := sink.RecordSampleCalls()
	require.Len(t, samples, 2, "the collector fires at the threshold and ignores later arrivals")
	for _, call := range samples {
		m, err := domain.ParseMessage(call.S.Trail)
		require.NoError(t, err)
		require.Equal(t, 7, m.Len(), "three header fields, one hop pair, the terminal pair")
		f := m.Fields()
		assert.Equal(t, "7", f[0])

		send := parseMillis(t, f[2])
		hopStamp := parseMillis(t, f[3])
		hopDur := parseMillis(t, f[4])
		require.Equal(t, domain.ResponseTimeMarker, f[5])
		total := parseMillis(t, f[6])

		// the terminal service stamps its pair and the total from one instant
		assert.Equal(t, hopStamp-send, total)
		assert.GreaterOrEqual(t, hopDur, int64(0))
		assert.GreaterOrEqual(t, total, int64(0))
		assert.Equal(t, total, call.S.ResponseMillis)
		assert.Equal(t, send, call.S.SendMillis)
	}

	require.Len(t, sink.RecordSummaryCalls(), 1)
	sum := sink.RecordSummaryCalls()[0].Sum
	assert.Equal(t, 2, sum.Observed)
	require.Len(t, sum.Rows, 2)
	assert.Equal(t, "T1", sum.Rows[0].Label)
	assert.Equal(t, "T2", sum.Rows[1].Label)
}

func TestRoundTrip_ThroughLoadBalancer(t *testing.T) {
	srcPort, lbPort := reserveChainPorts(t, 1)
	srcAddr := domain.Address{Host: "127.0.0.1", Port: srcPort}
	lbAddr := domain.Address{Host: "127.0.0.1", Port: lbPort}

	// terminal service on the balancer's one derived pool port
	svc := NewService(ServiceConfig{
		Name:           "svc",
		LocalPort:      lbPort + 1,
		Target:         srcAddr,
		TargetIsSource: true,
	}, newNodeTransport(t, TransportConfig{LocalPort: lbPort + 1}), NewTimeProvider(time.Now), log.NewNopLogger())
	require.NoError(t, svc.Start())
	defer svc.Stop()

	lb := NewLoadBalancer(LoadBalancerConfig{
		Name:          "lb",
		LocalPort:     lbPort,
		QueueCapacity: 8,
		ServiceHost:   "127.0.0.1",
		ServiceCount:  1,
	}, newNodeTransport(t, TransportConfig{LocalPort: lbPort}), NewTimeProvider(time.Now), log.NewNopLogger())
	require.NoError(t, lb.Start())
	defer lb.Stop()

	sink := &mock.ResultSinkMock{}
	collector := stats.NewCollector(2, 2, log.NewNopLogger())
	src := NewSource(SourceConfig{
		Name:         "source",
		LocalPort:    srcAddr.Port,
		Target:       lbAddr,
		ClientID:     1,
		Mode:         SourceModeFeeding,
		MessageCount: 5,
		ArrivalDelay: 25 * time.Millisecond,
	}, newNodeTransport(t, TransportConfig{LocalPort: srcAddr.Port}), NewTimeProvider(time.Now),
		NewFixedIntervalArrivals(5, 25*time.Millisecond), collector, []interfaces.ResultSink{sink}, log.NewNopLogger())
	require.NoError(t, src.Start())
	defer src.Stop()

	awaitDone(t, src)

	samples := sink.RecordSampleCalls()
	require.Len(t, samples, 2)
	for _, call := range samples {
		m, err := domain.ParseMessage(call.S.Trail)
		require.NoError(t, err)
		require.Equal(t, 9, m.Len(), "header, balancer pair, service pair, terminal pair")
		f := m.Fields()

		send := parseMillis(t, f[2])
		lbStamp := parseMillis(t, f[3])
		lbDur := parseMillis(t, f[4])
		svcStamp := parseMillis(t, f[5])
		svcDur := parseMillis(t, f[6])
		require.Equal(t, domain.ResponseTimeMarker, f[7])
		total := parseMillis(t, f[8])

		assert.Equal(t, lbStamp-send, lbDur, "the balancer stamps now and now-lastTimestamp")
		assert.Equal(t, svcStamp-send, total, "the total spans send to the terminal stamp")
		assert.GreaterOrEqual(t, svcDur, int64(0))
		assert.GreaterOrEqual(t, svcStamp, lbStamp)
	}

	require.Len(t, sink.RecordSummaryCalls(), 1)
	sum := sink.RecordSummaryCalls()[0].Sum
	assert.Equal(t, 2, sum.Observed)
	require.Len(t, sum.Rows, 3)
	assert.Equal(t, "T1", sum.Rows[0].Label)
	assert.Equal(t, "T2", sum.Rows[1].Label)
	assert.Equal(t, "T3", sum.Rows[2].Label)

	assert.GreaterOrEqual(t, lb.Status().Forwarded, uint64(2))
	assert.GreaterOrEqual(t, svc.Status().Forwarded, uint64(2))
}
