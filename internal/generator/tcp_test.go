package generator

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"flamethrower/internal/tcpframe"
	"flamethrower/pkg/metrics"
)

// tcpEcho starts a TCP responder on loopback that, for each accepted
// connection, echoes every length-prefixed message it reads back to
// the client unmodified.
func tcpEcho(t *testing.T) *net.TCPAddr {
	t.Helper()
	ln, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("ListenTCP: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				buf := make([]byte, 4096)
				for {
					n, err := c.Read(buf)
					if n > 0 {
						c.Write(buf[:n])
					}
					if err != nil {
						return
					}
				}
			}(conn)
		}
	}()

	return ln.Addr().(*net.TCPAddr)
}

func TestRuntime_TCPHappyPath(t *testing.T) {
	addr := tcpEcho(t)
	collector := metrics.NewCollector()

	cfg := Config{
		TargetIP:       addr.IP,
		Port:           addr.Port,
		Protocol:       TCP,
		ReceiveTimeout: 2 * time.Second,
		BatchDelay:     1 * time.Second,
		BatchCount:     3,
		Builder:        newStaticBuilder(t, 0),
		Metrics:        collector,
	}

	rt := New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := rt.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		stats := collector.GetStats()
		if stats.TCPConnection >= 1 && stats.Received >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for a tcp exchange, stats=%+v", stats)
		case <-time.After(10 * time.Millisecond):
		}
	}

	rt.Stop()
	select {
	case <-rt.Done():
	case <-time.After(3 * time.Second):
		t.Fatalf("runtime did not stop in time")
	}
}

// tcpBadFraming starts a TCP responder that, for each accepted
// connection, swallows the request batch and replies with a length
// prefix below the 17-byte minimum, forcing a framing violation.
func tcpBadFraming(t *testing.T) *net.TCPAddr {
	t.Helper()
	ln, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("ListenTCP: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				buf := make([]byte, 4096)
				c.Read(buf)
				bad := []byte{0x00, 0x07, 'x', 'x', 'x', 'x', 'x', 'x', 'x'}
				c.Write(bad)
				io.Copy(io.Discard, c)
			}(conn)
		}
	}()

	return ln.Addr().(*net.TCPAddr)
}

func TestRuntime_TCPFramingErrorForceTimesOutInFlight(t *testing.T) {
	addr := tcpBadFraming(t)
	collector := metrics.NewCollector()

	cfg := Config{
		TargetIP:       addr.IP,
		Port:           addr.Port,
		Protocol:       TCP,
		ReceiveTimeout: 2 * time.Second,
		BatchDelay:     1 * time.Second,
		BatchCount:     3,
		Builder:        newStaticBuilder(t, 0),
		Metrics:        collector,
	}

	rt := New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := rt.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		stats := collector.GetStats()
		if stats.NetError >= 1 && stats.Timeout >= 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for the framing error to force-timeout in-flight ids, stats=%+v", stats)
		case <-time.After(10 * time.Millisecond):
		}
	}

	// The connection reopens automatically after the framing error, so
	// check the drained state only once the runtime has fully stopped,
	// rather than racing the next reconnect cycle's own in-flight ids.
	rt.Stop()
	select {
	case <-rt.Done():
	case <-time.After(4 * time.Second):
		t.Fatalf("runtime did not stop in time")
	}

	stats := collector.GetStats()
	if stats.InFlight != 0 {
		t.Fatalf("expected all in-flight ids to be released once stopped, got InFlight=%d", stats.InFlight)
	}
	if stats.Received != 0 {
		t.Fatalf("no response was ever well-formed, expected 0 received, got %d", stats.Received)
	}
}

func buildTestMessage(id uint16) []byte {
	msg := make([]byte, 17)
	binary.BigEndian.PutUint16(msg[0:2], id)
	return msg
}

// TestDrainPendingReads_MatchesBufferedResponseBeforeClose guards
// against the race where tcpReadLoop enqueues a final response and its
// EOF in the same instant: draining readC before the caller considers
// errC must match the response rather than let it orphan in the
// channel buffer while the id is force-timed-out.
func TestDrainPendingReads_MatchesBufferedResponseBeforeClose(t *testing.T) {
	collector := metrics.NewCollector()
	cfg := Config{
		Protocol:       TCP,
		ReceiveTimeout: time.Second,
		BatchDelay:     time.Second,
		BatchCount:     1,
		Metrics:        collector,
	}
	rt := New(cfg)

	const id = uint16(42)
	rt.ids.table.Insert(id, time.Now())
	rt.tcpIDs = []uint16{id}

	fakeConn, otherEnd := net.Pipe()
	defer fakeConn.Close()
	defer otherEnd.Close()
	rt.tcpConn = fakeConn
	rt.tcpReadCh = make(chan []byte, 1)
	rt.tcpFrame = tcpframe.New(
		func(msg []byte) { rt.tcpHandleResponse(msg) },
		func() { rt.tcpFramingErr = true },
	)

	msg := buildTestMessage(id)
	var prefix [2]byte
	binary.BigEndian.PutUint16(prefix[:], uint16(len(msg)))
	framed := append(prefix[:], msg...)
	rt.tcpReadCh <- framed

	rt.drainPendingReads(false)

	stats := collector.GetStats()
	if stats.Received != 1 {
		t.Fatalf("expected the buffered response to be matched, got Received=%d", stats.Received)
	}
	if len(rt.tcpIDs) != 0 {
		t.Fatalf("expected the matched id to be removed from tcpIDs, got %v", rt.tcpIDs)
	}
}

func TestTCPFrameLengthPrefixRoundTrips(t *testing.T) {
	// sanity check the test helper itself frames the way the real
	// builder does, independent of the runtime.
	msg := []byte("hello-dns-message")
	var prefix [2]byte
	binary.BigEndian.PutUint16(prefix[:], uint16(len(msg)))
	framed := append(prefix[:], msg...)

	if binary.BigEndian.Uint16(framed[:2]) != uint16(len(msg)) {
		t.Fatalf("prefix does not match message length")
	}
}
