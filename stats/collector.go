// Package stats aggregates completed round trips into per-hop latency
// averages. The collector is fed by the source and fires exactly once when
// the configured number of distinct sequence indexes has been observed.
package stats

import (
	"strconv"
	"sync"

	"mytestbed/domain"
	"mytestbed/helpers"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Collector accumulates one sample per sequence index and decomposes each
// trail into per-hop durations using the declared topology depth. The return
// network leg (terminal service back to the source) is derived from the
// receive instant, not stamped on the wire, and reported as row T(depth+1).
type Collector struct {
	depth     int
	threshold int
	logger    log.Logger

	mu        sync.Mutex
	seen      map[int]struct{}
	hopSums   []int64
	returnSum int64
	totalSum  int64
	totalMax  int64
	done      bool
}

// NewCollector creates a collector for the declared topology depth and
// sample threshold. Panics on nil logger or non-positive depth/threshold
// (both come validated from config).
//
// Called from cmd/mytestbed when building a source.
func NewCollector(depth, threshold int, logger log.Logger) *Collector {
	if depth < 1 {
		panic("stats.collector.go: depth must be positive")
	}
	if threshold < 1 {
		panic("stats.collector.go: threshold must be positive")
	}
	return &Collector{
		depth:     depth,
		threshold: threshold,
		logger:    log.With(helpers.NilPanic(logger, "stats.collector.go: logger is required"), "component", "collector"),
		seen:      make(map[int]struct{}),
		hopSums:   make([]int64, depth),
	}
}

// Observe records one completed message received at receivedAtMillis.
//
// Returns the stored sample and ok=true when it counted. ok=false means the
// message was skipped: duplicate sequence index, non-numeric index, a trail
// too short for the declared depth, a missing terminal pair, or a collector
// that already fired. Skips are logged; the run goes on.
func (c *Collector) Observe(m domain.Message, receivedAtMillis int64) (domain.Sample, bool) {
	seq, ok := m.Seq()
	if !ok {
		level.Warn(c.logger).Log("msg", "skipping sample with non-numeric sequence index")
		return domain.Sample{}, false
	}
	durs, err := domain.HopDurations(m, c.depth)
	if err != nil {
		level.Warn(c.logger).Log("msg", "skipping undecodable trail", "seq", seq, "err", err)
		return domain.Sample{}, false
	}
	total, ok := m.ResponseTimeMillis()
	if !ok {
		level.Warn(c.logger).Log("msg", "skipping sample without terminal pair", "seq", seq)
		return domain.Sample{}, false
	}
	lastStamp, err := strconv.ParseInt(m.Fields()[domain.HopTimestampIndex(c.depth-1)], 10, 64)
	if err != nil {
		level.Warn(c.logger).Log("msg", "skipping sample with malformed final stamp", "seq", seq)
		return domain.Sample{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return domain.Sample{}, false
	}
	if _, dup := c.seen[seq]; dup {
		level.Debug(c.logger).Log("msg", "duplicate sample ignored", "seq", seq)
		return domain.Sample{}, false
	}
	c.seen[seq] = struct{}{}
	for k, d := range durs {
		c.hopSums[k] += d
	}
	c.returnSum += receivedAtMillis - lastStamp
	c.totalSum += total
	if total > c.totalMax {
		c.totalMax = total
	}
	if len(c.seen) >= c.threshold {
		c.done = true
	}

	sendMillis, _ := m.FirstSendMillis()
	return domain.Sample{
		ClientID:       m.ClientID(),
		Seq:            seq,
		SendMillis:     sendMillis,
		ReceivedMillis: receivedAtMillis,
		ResponseMillis: total,
		Trail:          m.Encode(),
	}, true
}

// Done reports whether the sample threshold has been reached. Once true it
// never reverts; further observations are ignored.
func (c *Collector) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Summary returns the averages over everything observed so far: rows
// T1..T(depth) for the stamped hops, T(depth+1) for the derived return leg,
// plus average and max total response time. Dropped is left for the source
// to fill in (drops are counted where they happen).
func (c *Collector) Summary() domain.Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.seen)
	if n == 0 {
		return domain.Summary{}
	}
	rows := make([]domain.SummaryRow, 0, c.depth+1)
	for k := 0; k < c.depth; k++ {
		rows = append(rows, domain.SummaryRow{
			Label:     "T" + strconv.Itoa(k+1),
			AvgMillis: float64(c.hopSums[k]) / float64(n),
		})
	}
	rows = append(rows, domain.SummaryRow{
		Label:     "T" + strconv.Itoa(c.depth+1),
		AvgMillis: float64(c.returnSum) / float64(n),
	})
	return domain.Summary{
		Rows:              rows,
		AvgResponseMillis: float64(c.totalSum) / float64(n),
		MaxResponseMillis: c.totalMax,
		Observed:          n,
	}
}
