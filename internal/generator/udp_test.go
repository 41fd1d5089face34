package generator

import (
	"context"
	"net"
	"testing"
	"time"

	"flamethrower/pkg/metrics"
	"flamethrower/pkg/querybuilder"
)

// udpEcho starts a UDP responder on loopback that echoes every
// datagram it receives back to the sender, simulating a resolver that
// always answers immediately.
func udpEcho(t *testing.T) *net.UDPAddr {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 2048)
		for {
			n, addr, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			conn.WriteToUDP(buf[:n], addr)
		}
	}()

	return conn.LocalAddr().(*net.UDPAddr)
}

func newStaticBuilder(t *testing.T, loops int) querybuilder.Builder {
	t.Helper()
	b := querybuilder.NewStatic()
	b.SetQName("a.test")
	b.SetQType("A")
	b.SetLoops(loops)
	if err := b.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return b
}

func TestRuntime_UDPHappyPath(t *testing.T) {
	addr := udpEcho(t)
	collector := metrics.NewCollector()

	cfg := Config{
		TargetIP:       addr.IP,
		Port:           addr.Port,
		Protocol:       UDP,
		ReceiveTimeout: 2 * time.Second,
		BatchDelay:     5 * time.Millisecond,
		BatchCount:     1,
		Builder:        newStaticBuilder(t, 1),
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
		if stats.Received >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for a matched response, stats=%+v", stats)
		case <-time.After(10 * time.Millisecond):
		}
	}

	rt.Stop()
	select {
	case <-rt.Done():
	case <-time.After(3 * time.Second):
		t.Fatalf("runtime did not stop in time")
	}

	stats := collector.GetStats()
	if stats.Timeout != 0 || stats.BadReceive != 0 {
		t.Fatalf("expected no timeouts or bad receives, got %+v", stats)
	}
}

func TestRuntime_UDPStopIsIdempotent(t *testing.T) {
	addr := udpEcho(t)
	collector := metrics.NewCollector()

	cfg := Config{
		TargetIP:       addr.IP,
		Port:           addr.Port,
		Protocol:       UDP,
		ReceiveTimeout: 200 * time.Millisecond,
		BatchDelay:     5 * time.Millisecond,
		BatchCount:     1,
		Builder:        newStaticBuilder(t, 0),
		Metrics:        collector,
	}

	rt := New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := rt.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	rt.Stop()
	rt.Stop() // must not panic or block

	select {
	case <-rt.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("runtime did not stop in time")
	}
}
