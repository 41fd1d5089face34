package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// maxLatencySamples bounds the ring buffer Collector keeps for percentile
// reporting: enough to stay representative on a long run without growing
// unbounded.
const maxLatencySamples = 1 << 16

// Collector accumulates the counters every generator reports into over
// the life of a run: one instance is shared process-wide.
type Collector struct {
	sent          uint64
	received      uint64
	timeout       uint64
	badReceive    uint64
	netError      uint64
	tcpConnection uint64
	inFlight      int64

	mu        sync.Mutex
	latencies []time.Duration
	next      int
	filled    bool
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{latencies: make([]time.Duration, maxLatencySamples)}
}

// IncSent records one query handed to the transport.
func (c *Collector) IncSent() {
	atomic.AddUint64(&c.sent, 1)
}

// IncReceived records one matched response and its latency sample.
func (c *Collector) IncReceived(latency time.Duration) {
	atomic.AddUint64(&c.received, 1)
	c.recordLatency(latency)
}

// IncTimeout records one query expired by the in-flight sweep.
func (c *Collector) IncTimeout() {
	atomic.AddUint64(&c.timeout, 1)
}

// IncBadReceive records one response whose id was not in the in-flight
// table, or that could not be decoded.
func (c *Collector) IncBadReceive() {
	atomic.AddUint64(&c.badReceive, 1)
}

// IncNetError records one transport-level socket error.
func (c *Collector) IncNetError() {
	atomic.AddUint64(&c.netError, 1)
}

// IncTCPConnection records one new TCP connection opened by a generator.
func (c *Collector) IncTCPConnection() {
	atomic.AddUint64(&c.tcpConnection, 1)
}

// SetInFlight reports the current number of outstanding queries, summed
// across all generators.
func (c *Collector) SetInFlight(n int) {
	atomic.StoreInt64(&c.inFlight, int64(n))
}

func (c *Collector) recordLatency(d time.Duration) {
	c.mu.Lock()
	c.latencies[c.next] = d
	c.next++
	if c.next >= len(c.latencies) {
		c.next = 0
		c.filled = true
	}
	c.mu.Unlock()
}

// Stats is a point-in-time snapshot of every counter plus latency
// percentiles computed from the current sample window.
type Stats struct {
	Sent          uint64        `json:"sent"`
	Received      uint64        `json:"received"`
	Timeout       uint64        `json:"timeout"`
	BadReceive    uint64        `json:"bad_receive"`
	NetError      uint64        `json:"net_error"`
	TCPConnection uint64        `json:"tcp_connection"`
	InFlight      int64         `json:"in_flight"`
	P50           time.Duration `json:"p50_ns"`
	P90           time.Duration `json:"p90_ns"`
	P99           time.Duration `json:"p99_ns"`
}

// GetStats returns the current counters and latency percentiles.
func (c *Collector) GetStats() Stats {
	p := c.percentiles(0.50, 0.90, 0.99)
	return Stats{
		Sent:          atomic.LoadUint64(&c.sent),
		Received:      atomic.LoadUint64(&c.received),
		Timeout:       atomic.LoadUint64(&c.timeout),
		BadReceive:    atomic.LoadUint64(&c.badReceive),
		NetError:      atomic.LoadUint64(&c.netError),
		TCPConnection: atomic.LoadUint64(&c.tcpConnection),
		InFlight:      atomic.LoadInt64(&c.inFlight),
		P50:           p[0],
		P90:           p[1],
		P99:           p[2],
	}
}

func (c *Collector) percentiles(ps ...float64) []time.Duration {
	c.mu.Lock()
	n := c.next
	if c.filled {
		n = len(c.latencies)
	}
	samples := make([]time.Duration, n)
	copy(samples, c.latencies[:n])
	c.mu.Unlock()

	out := make([]time.Duration, len(ps))
	if n == 0 {
		return out
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	for i, p := range ps {
		idx := int(p * float64(n))
		if idx >= n {
			idx = n - 1
		}
		out[i] = samples[idx]
	}
	return out
}

// Reset zeroes every counter and clears the latency window.
func (c *Collector) Reset() {
	atomic.StoreUint64(&c.sent, 0)
	atomic.StoreUint64(&c.received, 0)
	atomic.StoreUint64(&c.timeout, 0)
	atomic.StoreUint64(&c.badReceive, 0)
	atomic.StoreUint64(&c.netError, 0)
	atomic.StoreUint64(&c.tcpConnection, 0)
	atomic.StoreInt64(&c.inFlight, 0)

	c.mu.Lock()
	c.next = 0
	c.filled = false
	c.mu.Unlock()
}
