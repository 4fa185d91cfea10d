package stats

import (
	"testing"

	"mytestbed/domain"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, line string) domain.Message {
	t.Helper()
	m, err := domain.ParseMessage(line)
	require.NoError(t, err)
	return m
}

func TestNewCollector_Panics(t *testing.T) {
	t.Run("depth_zero", func(t *testing.T) {
		assert.PanicsWithValue(t, "stats.collector.go: depth must be positive", func() {
			NewCollector(0, 1, log.NewNopLogger())
		})
	})
	t.Run("threshold_zero", func(t *testing.T) {
		assert.PanicsWithValue(t, "stats.collector.go: threshold must be positive", func() {
			NewCollector(1, 0, log.NewNopLogger())
		})
	})
	t.Run("logger_nil", func(t *testing.T) {
		assert.PanicsWithValue(t, "stats.collector.go: logger is required", func() {
			NewCollector(1, 1, nil)
		})
	})
}

func TestCollector_ObserveDecomposesTrail(t *testing.T) {
	c := NewCollector(2, 10, log.NewNopLogger())

	sample, ok := c.Observe(mustParse(t, "7;1;1000;1100;100;1300;200;RESPONSE_TIME;450;"), 2000)
	require.True(t, ok)
	assert.Equal(t, "7", sample.ClientID)
	assert.Equal(t, 1, sample.Seq)
	assert.Equal(t, int64(1000), sample.SendMillis)
	assert.Equal(t, int64(2000), sample.ReceivedMillis)
	assert.Equal(t, int64(450), sample.ResponseMillis)
	assert.Equal(t, "7;1;1000;1100;100;1300;200;RESPONSE_TIME;450;", sample.Trail)

	sum := c.Summary()
	assert.Equal(t, 1, sum.Observed)
	require.Len(t, sum.Rows, 3)
	assert.Equal(t, "T1", sum.Rows[0].Label)
	assert.InDelta(t, 100.0, sum.Rows[0].AvgMillis, 0.001)
	assert.Equal(t, "T2", sum.Rows[1].Label)
	assert.InDelta(t, 200.0, sum.Rows[1].AvgMillis, 0.001)
	assert.Equal(t, "T3", sum.Rows[2].Label)
	assert.InDelta(t, 700.0, sum.Rows[2].AvgMillis, 0.001, "return leg is the receive instant minus the final stamp")
	assert.InDelta(t, 450.0, sum.AvgResponseMillis, 0.001)
	assert.Equal(t, int64(450), sum.MaxResponseMillis)
}

func TestCollector_FiresOnceAtThreshold(t *testing.T) {
	c := NewCollector(1, 2, log.NewNopLogger())

	_, ok := c.Observe(mustParse(t, "7;1;1000;1200;200;RESPONSE_TIME;400;"), 1500)
	require.True(t, ok)
	assert.False(t, c.Done())

	_, ok = c.Observe(mustParse(t, "7;2;1000;1250;250;RESPONSE_TIME;500;"), 1600)
	require.True(t, ok)
	assert.True(t, c.Done())

	// late arrivals after the trigger do not shift the averages
	_, ok = c.Observe(mustParse(t, "7;3;1000;1300;300;RESPONSE_TIME;600;"), 1700)
	assert.False(t, ok)

	sum := c.Summary()
	assert.Equal(t, 2, sum.Observed)
	assert.InDelta(t, 450.0, sum.AvgResponseMillis, 0.001)
	assert.Equal(t, int64(500), sum.MaxResponseMillis)
}

func TestCollector_DuplicateSequenceIgnored(t *testing.T) {
	c := NewCollector(1, 3, log.NewNopLogger())

	_, ok := c.Observe(mustParse(t, "7;1;1000;1200;200;RESPONSE_TIME;400;"), 1500)
	require.True(t, ok)
	_, ok = c.Observe(mustParse(t, "7;1;1000;1200;200;RESPONSE_TIME;400;"), 1500)
	assert.False(t, ok)

	assert.False(t, c.Done())
	assert.Equal(t, 1, c.Summary().Observed)
}

func TestCollector_SkipsUndecodable(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{name: "non_numeric_sequence", line: "7;x;1000;1200;200;RESPONSE_TIME;400;"},
		{name: "trail_shorter_than_depth", line: "7;1;1000;RESPONSE_TIME;400;"},
		{name: "missing_terminal_pair", line: "7;1;1000;1200;200;1300;100;"},
		{name: "malformed_final_stamp", line: "7;1;1000;abc;200;RESPONSE_TIME;400;"},
		{name: "non_numeric_duration", line: "7;1;1000;1200;abc;RESPONSE_TIME;400;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCollector(1, 1, log.NewNopLogger())
			_, ok := c.Observe(mustParse(t, tt.line), 1500)
			assert.False(t, ok)
			assert.False(t, c.Done())
		})
	}
}

func TestCollector_EmptySummary(t *testing.T) {
	c := NewCollector(2, 5, log.NewNopLogger())
	assert.Equal(t, domain.Summary{}, c.Summary())
}
