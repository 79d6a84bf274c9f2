package bacnet

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Counter is a thread-safe counter backed by an atomic value and
// exposed to Prometheus as a CounterFunc, the standard bridge for
// externally-maintained counters client_golang ships for exactly this
// case (our hot path needs a bare atomic add, not a mutex-guarded
// client call per packet).
type Counter struct {
	value int64
}

func newCounter(reg *prometheus.Registry, name, help string) *Counter {
	c := &Counter{}
	reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: name,
		Help: help,
	}, func() float64 { return float64(c.Value()) }))
	return c
}

// Add adds a delta to the counter
func (c *Counter) Add(delta int64) {
	atomic.AddInt64(&c.value, delta)
}

// Inc increments the counter by 1
func (c *Counter) Inc() {
	c.Add(1)
}

// Value returns the current counter value
func (c *Counter) Value() int64 {
	return atomic.LoadInt64(&c.value)
}

// Reset resets the counter to 0
func (c *Counter) Reset() {
	atomic.StoreInt64(&c.value, 0)
}

// Gauge is a thread-safe gauge that can go up and down, exposed to
// Prometheus as a GaugeFunc for the same reason Counter is.
type Gauge struct {
	value int64
}

func newGauge(reg *prometheus.Registry, name, help string) *Gauge {
	g := &Gauge{}
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	}, func() float64 { return float64(g.Value()) }))
	return g
}

// Set sets the gauge value
func (g *Gauge) Set(value int64) {
	atomic.StoreInt64(&g.value, value)
}

// Add adds a delta to the gauge
func (g *Gauge) Add(delta int64) {
	atomic.AddInt64(&g.value, delta)
}

// Inc increments the gauge by 1
func (g *Gauge) Inc() {
	g.Add(1)
}

// Dec decrements the gauge by 1
func (g *Gauge) Dec() {
	g.Add(-1)
}

// Value returns the current gauge value
func (g *Gauge) Value() int64 {
	return atomic.LoadInt64(&g.value)
}

// latencyBucketBoundsMillis mirrors the teacher's original hand-rolled
// buckets so Stats()'s bucket slice keeps its shape; also used as the
// real Prometheus histogram's bucket boundaries.
var latencyBucketBoundsMillis = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000}

// LatencyHistogram tracks latency measurements. Stats() keeps reading
// from the original atomic min/max/sum/bucket tally (cheap, lock-free
// fast path); Record also feeds a real prometheus.Histogram registered
// on the owning Metrics' registry, so a scrape sees proper
// request-latency buckets alongside the summary Stats() callers get
// today.
type LatencyHistogram struct {
	mu      sync.RWMutex
	count   int64
	sum     int64 // nanoseconds
	min     int64
	max     int64
	buckets []int64 // counts for each bucket

	prom prometheus.Histogram
}

// NewLatencyHistogram creates a standalone histogram with no
// Prometheus registration, for callers that only need Stats().
func NewLatencyHistogram() *LatencyHistogram {
	return &LatencyHistogram{
		min:     -1, // Indicates no measurements yet
		buckets: make([]int64, len(latencyBucketBoundsMillis)+1),
	}
}

func newRegisteredLatencyHistogram(reg *prometheus.Registry, name, help string) *LatencyHistogram {
	h := NewLatencyHistogram()
	boundsSeconds := make([]float64, len(latencyBucketBoundsMillis))
	for i, ms := range latencyBucketBoundsMillis {
		boundsSeconds[i] = ms / 1000
	}
	h.prom = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    name,
		Help:    help,
		Buckets: boundsSeconds,
	})
	reg.MustRegister(h.prom)
	return h
}

// Record records a latency measurement
func (h *LatencyHistogram) Record(d time.Duration) {
	ns := d.Nanoseconds()

	h.mu.Lock()
	defer h.mu.Unlock()

	h.count++
	h.sum += ns

	if h.min < 0 || ns < h.min {
		h.min = ns
	}
	if ns > h.max {
		h.max = ns
	}

	ms := d.Milliseconds()
	switch {
	case ms < 1:
		h.buckets[0]++
	case ms < 5:
		h.buckets[1]++
	case ms < 10:
		h.buckets[2]++
	case ms < 25:
		h.buckets[3]++
	case ms < 50:
		h.buckets[4]++
	case ms < 100:
		h.buckets[5]++
	case ms < 250:
		h.buckets[6]++
	case ms < 500:
		h.buckets[7]++
	case ms < 1000:
		h.buckets[8]++
	default:
		h.buckets[9]++
	}

	if h.prom != nil {
		h.prom.Observe(d.Seconds())
	}
}

// Stats returns histogram statistics
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := LatencyStats{
		Count:   h.count,
		Buckets: make([]int64, len(h.buckets)),
	}
	copy(stats.Buckets, h.buckets)

	if h.count > 0 {
		stats.Min = time.Duration(h.min)
		stats.Max = time.Duration(h.max)
		stats.Avg = time.Duration(h.sum / h.count)
	}

	return stats
}

// Reset resets the histogram's atomic tally. The registered Prometheus
// histogram, if any, is left untouched -- Prometheus histograms are
// cumulative by convention and resetting one mid-process would corrupt
// any rate()/histogram_quantile() queries already observing it.
func (h *LatencyHistogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.count = 0
	h.sum = 0
	h.min = -1
	h.max = 0
	for i := range h.buckets {
		h.buckets[i] = 0
	}
}

// LatencyStats contains latency statistics
type LatencyStats struct {
	Count   int64
	Min     time.Duration
	Max     time.Duration
	Avg     time.Duration
	Buckets []int64
}

// Metrics holds client/server metrics. Each Metrics owns a private
// *prometheus.Registry (not the global DefaultRegisterer) so multiple
// Client/Server instances in the same process -- as CLI tests and the
// interactive shell both create -- never collide on metric names.
type Metrics struct {
	registry *prometheus.Registry

	// Connection metrics
	ConnectAttempts  Counter
	ConnectSuccesses Counter
	ConnectFailures  Counter
	Disconnects      Counter

	// Request metrics
	RequestsSent      Counter
	RequestsSucceeded Counter
	RequestsFailed    Counter
	RequestsTimedOut  Counter

	// Response metrics
	ResponsesReceived Counter
	ErrorsReceived    Counter
	RejectsReceived   Counter
	AbortsReceived    Counter

	// Discovery metrics
	WhoIsSent         Counter
	IAmReceived       Counter
	DevicesDiscovered Counter

	// COV metrics (retained for wire-compatibility with devices that
	// still send unsolicited COV notifications even though this stack
	// does not subscribe to them)
	COVSubscriptions Counter
	COVNotifications Counter

	// Latency
	RequestLatency *LatencyHistogram

	// Bytes
	BytesSent     Counter
	BytesReceived Counter

	// Current state
	ActiveRequests      Gauge
	ActiveSubscriptions Gauge

	// Timestamps
	startTime    time.Time
	lastActivity atomic.Int64
}

// NewMetrics creates a new Metrics instance with its own Prometheus
// registry and every counter/gauge/histogram registered against it.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry:            reg,
		RequestLatency:      newRegisteredLatencyHistogram(reg, "bacnet_request_latency_seconds", "Confirmed request round-trip latency"),
		ConnectAttempts:     *newCounter(reg, "bacnet_connect_attempts_total", "Connection attempts"),
		ConnectSuccesses:    *newCounter(reg, "bacnet_connect_successes_total", "Successful connections"),
		ConnectFailures:     *newCounter(reg, "bacnet_connect_failures_total", "Failed connection attempts"),
		Disconnects:         *newCounter(reg, "bacnet_disconnects_total", "Disconnections"),
		RequestsSent:        *newCounter(reg, "bacnet_requests_sent_total", "Requests sent, confirmed and unconfirmed"),
		RequestsSucceeded:   *newCounter(reg, "bacnet_requests_succeeded_total", "Unconfirmed requests sent, and confirmed requests answered with an ack"),
		RequestsFailed:      *newCounter(reg, "bacnet_requests_failed_total", "Requests that failed to send, and confirmed requests answered with Error, Reject or Abort"),
		RequestsTimedOut:    *newCounter(reg, "bacnet_requests_timed_out_total", "Confirmed requests that timed out waiting for a response"),
		ResponsesReceived:   *newCounter(reg, "bacnet_responses_received_total", "Simple-Ack/Complex-Ack responses received"),
		ErrorsReceived:      *newCounter(reg, "bacnet_errors_received_total", "BACnet-Error responses received"),
		RejectsReceived:     *newCounter(reg, "bacnet_rejects_received_total", "Reject-PDUs received"),
		AbortsReceived:      *newCounter(reg, "bacnet_aborts_received_total", "Abort-PDUs received"),
		WhoIsSent:           *newCounter(reg, "bacnet_whois_sent_total", "Who-Is requests broadcast; on a Server, I-Am replies sent"),
		IAmReceived:         *newCounter(reg, "bacnet_iam_received_total", "I-Am replies received"),
		DevicesDiscovered:   *newCounter(reg, "bacnet_devices_discovered_total", "Distinct devices observed via I-Am"),
		COVSubscriptions:    *newCounter(reg, "bacnet_cov_subscriptions_total", "COV subscription requests sent"),
		COVNotifications:    *newCounter(reg, "bacnet_cov_notifications_total", "COV notifications received"),
		BytesSent:           *newCounter(reg, "bacnet_bytes_sent_total", "Bytes written to the transport"),
		BytesReceived:       *newCounter(reg, "bacnet_bytes_received_total", "Bytes read from the transport"),
		ActiveRequests:      *newGauge(reg, "bacnet_active_requests", "Confirmed requests currently awaiting a response"),
		ActiveSubscriptions: *newGauge(reg, "bacnet_active_subscriptions", "Active COV subscriptions"),
		startTime:           time.Now(),
	}
	return m
}

// Registry returns the Prometheus registry this Metrics instance's
// collectors are registered on, for wiring into promhttp.HandlerFor by
// a caller that wants a /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordActivity records the last activity time
func (m *Metrics) RecordActivity() {
	m.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity returns the last activity time
func (m *Metrics) LastActivity() time.Time {
	ns := m.lastActivity.Load()
	if ns == 0 {
		return m.startTime
	}
	return time.Unix(0, ns)
}

// Uptime returns the time since metrics started
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}

// Reset resets all metrics
func (m *Metrics) Reset() {
	m.ConnectAttempts.Reset()
	m.ConnectSuccesses.Reset()
	m.ConnectFailures.Reset()
	m.Disconnects.Reset()
	m.RequestsSent.Reset()
	m.RequestsSucceeded.Reset()
	m.RequestsFailed.Reset()
	m.RequestsTimedOut.Reset()
	m.ResponsesReceived.Reset()
	m.ErrorsReceived.Reset()
	m.RejectsReceived.Reset()
	m.AbortsReceived.Reset()
	m.WhoIsSent.Reset()
	m.IAmReceived.Reset()
	m.DevicesDiscovered.Reset()
	m.COVSubscriptions.Reset()
	m.COVNotifications.Reset()
	m.RequestLatency.Reset()
	m.BytesSent.Reset()
	m.BytesReceived.Reset()
	m.ActiveRequests.Set(0)
	m.ActiveSubscriptions.Set(0)
	m.startTime = time.Now()
	m.lastActivity.Store(0)
}

// Snapshot returns a snapshot of current metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Uptime: m.Uptime(),

		ConnectAttempts:  m.ConnectAttempts.Value(),
		ConnectSuccesses: m.ConnectSuccesses.Value(),
		ConnectFailures:  m.ConnectFailures.Value(),
		Disconnects:      m.Disconnects.Value(),

		RequestsSent:      m.RequestsSent.Value(),
		RequestsSucceeded: m.RequestsSucceeded.Value(),
		RequestsFailed:    m.RequestsFailed.Value(),
		RequestsTimedOut:  m.RequestsTimedOut.Value(),

		ResponsesReceived: m.ResponsesReceived.Value(),
		ErrorsReceived:    m.ErrorsReceived.Value(),
		RejectsReceived:   m.RejectsReceived.Value(),
		AbortsReceived:    m.AbortsReceived.Value(),

		WhoIsSent:         m.WhoIsSent.Value(),
		IAmReceived:       m.IAmReceived.Value(),
		DevicesDiscovered: m.DevicesDiscovered.Value(),

		COVSubscriptions: m.COVSubscriptions.Value(),
		COVNotifications: m.COVNotifications.Value(),

		LatencyStats: m.RequestLatency.Stats(),

		BytesSent:     m.BytesSent.Value(),
		BytesReceived: m.BytesReceived.Value(),

		ActiveRequests:      m.ActiveRequests.Value(),
		ActiveSubscriptions: m.ActiveSubscriptions.Value(),

		LastActivity: m.LastActivity(),
	}
}

// MetricsSnapshot is a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	Uptime time.Duration

	ConnectAttempts  int64
	ConnectSuccesses int64
	ConnectFailures  int64
	Disconnects      int64

	RequestsSent      int64
	RequestsSucceeded int64
	RequestsFailed    int64
	RequestsTimedOut  int64

	ResponsesReceived int64
	ErrorsReceived    int64
	RejectsReceived   int64
	AbortsReceived    int64

	WhoIsSent         int64
	IAmReceived       int64
	DevicesDiscovered int64

	COVSubscriptions int64
	COVNotifications int64

	LatencyStats LatencyStats

	BytesSent     int64
	BytesReceived int64

	ActiveRequests      int64
	ActiveSubscriptions int64

	LastActivity time.Time
}
