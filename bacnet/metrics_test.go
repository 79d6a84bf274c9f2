package bacnet

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func TestCounterAddIncReset(t *testing.T) {
	reg := newTestRegistry()
	c := newCounter(reg, "test_counter_total", "a test counter")

	c.Inc()
	c.Add(4)
	assert.Equal(t, int64(5), c.Value())

	c.Reset()
	assert.Equal(t, int64(0), c.Value())
}

func TestGaugeSetAddDec(t *testing.T) {
	reg := newTestRegistry()
	g := newGauge(reg, "test_gauge", "a test gauge")

	g.Set(10)
	g.Inc()
	g.Dec()
	g.Add(-2)
	assert.Equal(t, int64(9), g.Value())
}

func TestLatencyHistogramStats(t *testing.T) {
	h := NewLatencyHistogram()
	h.Record(2 * time.Millisecond)
	h.Record(20 * time.Millisecond)
	h.Record(2 * time.Second)

	stats := h.Stats()
	assert.Equal(t, int64(3), stats.Count)
	assert.Equal(t, 2*time.Millisecond, stats.Min)
	assert.Equal(t, 2*time.Second, stats.Max)

	h.Reset()
	stats = h.Stats()
	assert.Equal(t, int64(0), stats.Count)
}

func TestMetricsSnapshotReflectsActivity(t *testing.T) {
	m := NewMetrics()
	m.ConnectAttempts.Inc()
	m.RequestsSent.Add(3)
	m.RequestLatency.Record(5 * time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.ConnectAttempts)
	assert.Equal(t, int64(3), snap.RequestsSent)
	assert.Equal(t, int64(1), snap.LatencyStats.Count)
}

func TestMetricsResetZeroesEverything(t *testing.T) {
	m := NewMetrics()
	m.ConnectAttempts.Inc()
	m.ActiveRequests.Set(5)
	m.RecordActivity()

	m.Reset()

	snap := m.Snapshot()
	assert.Equal(t, int64(0), snap.ConnectAttempts)
	assert.Equal(t, int64(0), snap.ActiveRequests)
}

func TestMetricsRegistryGathersCollectors(t *testing.T) {
	m := NewMetrics()
	m.RequestsSent.Inc()

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	found := false
	for _, f := range families {
		if f.GetName() == "bacnet_requests_sent_total" {
			found = true
		}
	}
	assert.True(t, found, "expected bacnet_requests_sent_total to be registered")
}

func TestMultipleMetricsInstancesDoNotCollide(t *testing.T) {
	m1 := NewMetrics()
	m2 := NewMetrics()

	m1.ConnectAttempts.Inc()
	m2.ConnectAttempts.Add(5)

	assert.Equal(t, int64(1), m1.ConnectAttempts.Value())
	assert.Equal(t, int64(5), m2.ConnectAttempts.Value())
}
