// Package generator is the traffic-generation engine: UDP and TCP
// senders (C5/C6) driven by a shared Runtime (C7) that owns the
// per-generator timers, transaction-ID allocator, and in-flight table.
package generator

import (
	"net"
	"strconv"
	"time"

	"flamethrower/internal/idpool"
	"flamethrower/internal/inflight"
	"flamethrower/internal/ratelimit"
	"flamethrower/pkg/metrics"
	"flamethrower/pkg/querybuilder"
)

// Protocol selects the wire transport a Runtime drives.
type Protocol string

const (
	UDP Protocol = "udp"
	TCP Protocol = "tcp"
)

// Family selects the address family to resolve the target to.
type Family string

const (
	Inet  Family = "inet"
	Inet6 Family = "inet6"
)

// Config is shared, immutable configuration handed to every Runtime in
// a process. Runtime never mutates it.
type Config struct {
	TargetIP net.IP
	Port     int
	Protocol Protocol

	ReceiveTimeout time.Duration // r_timeout
	BatchDelay     time.Duration // s_delay
	BatchCount     int           // q

	Limiter *ratelimit.Bucket // nil means unlimited
	Builder querybuilder.Builder
	Metrics *metrics.Collector

	Verbosity int
}

// ApplyProtocolDefaults fills in the protocol defaults for s_delay and
// batch_count (UDP: 1 ms and 10, TCP: 1000 ms and 100) for whichever of
// the two the caller did not set explicitly, leaving explicit CLI values
// untouched. Concurrency (c_count) defaulting is the supervisor's
// concern, not a Runtime's.
func (c *Config) ApplyProtocolDefaults(batchDelaySet, batchCountSet bool) {
	delay, count := time.Millisecond, 10
	if c.Protocol == TCP {
		delay, count = 1000*time.Millisecond, 100
	}
	if !batchDelaySet {
		c.BatchDelay = delay
	}
	if !batchCountSet {
		c.BatchCount = count
	}
}

func (c Config) udpAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: c.TargetIP, Port: c.Port}
}

func (c Config) tcpAddr() string {
	return net.JoinHostPort(c.TargetIP.String(), strconv.Itoa(c.Port))
}

// idTable bundles the per-generator state internal/idpool and
// internal/inflight own; a Runtime creates exactly one of each and
// never shares them across goroutines.
type idTable struct {
	allocator *idpool.Allocator
	table     *inflight.Table
}

func newIDTable() idTable {
	return idTable{allocator: idpool.New(), table: inflight.New()}
}
