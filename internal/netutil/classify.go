// Package netutil classifies socket errors surfaced from the generator's
// UDP and TCP paths so they land on the right metrics counter instead of
// being treated as an opaque failure.
package netutil

import (
	"errors"
	"net"

	"golang.org/x/sys/unix"
)

// Kind categorizes a transport-level error for metrics purposes.
type Kind int

const (
	// KindOther is any transport error not otherwise classified; it
	// still counts against the net_error metric.
	KindOther Kind = iota
	// KindRefused is a destination actively refusing the connection
	// or datagram (ICMP port unreachable on UDP, RST on TCP connect).
	KindRefused
	// KindUnreachable is a routing-layer failure: no path to host or
	// network.
	KindUnreachable
	// KindTimeout is an I/O deadline expiring, as opposed to a query
	// timeout handled by the in-flight sweep.
	KindTimeout
	// KindClosed is use of an already-closed socket, expected during
	// shutdown/restart and not worth surfacing as an anomaly.
	KindClosed
)

// Classify inspects err (expected to wrap a *net.OpError, as returned by
// net.Conn/net.PacketConn operations) and reports what kind of transport
// failure it represents.
func Classify(err error) Kind {
	if err == nil {
		return KindOther
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return KindTimeout
		}
	}

	if errors.Is(err, net.ErrClosed) {
		return KindClosed
	}

	var errno unix.Errno
	if errors.As(err, &errno) {
		switch errno {
		case unix.ECONNREFUSED:
			return KindRefused
		case unix.EHOSTUNREACH, unix.ENETUNREACH:
			return KindUnreachable
		case unix.ETIMEDOUT:
			return KindTimeout
		}
	}

	return KindOther
}
