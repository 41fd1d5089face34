package supervisor

import (
	"context"
	"net"
	"testing"
	"time"

	"flamethrower/internal/generator"
	"flamethrower/pkg/metrics"
	"flamethrower/pkg/querybuilder"
)

func TestResolve_LiteralIPMatchesFamily(t *testing.T) {
	ip, err := Resolve(context.Background(), "127.0.0.1", generator.Inet)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ip.String() != "127.0.0.1" {
		t.Fatalf("got %s, want 127.0.0.1", ip)
	}
}

func TestResolve_LiteralIPWrongFamilyErrors(t *testing.T) {
	if _, err := Resolve(context.Background(), "127.0.0.1", generator.Inet6); err == nil {
		t.Fatalf("expected error resolving an ipv4 literal as inet6")
	}
}

func udpEchoForSupervisor(t *testing.T) *net.UDPAddr {
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

func newFiniteStaticBuilder(t *testing.T) querybuilder.Builder {
	t.Helper()
	b := querybuilder.NewStatic()
	b.SetQName("a.test")
	b.SetQType("A")
	b.SetLoops(1)
	if err := b.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return b
}

func TestSupervisor_RunStopsOnQueryExhaustion(t *testing.T) {
	addr := udpEchoForSupervisor(t)
	collector := metrics.NewCollector()

	opts := Options{
		Target:         addr.IP.String(),
		Port:           addr.Port,
		Family:         generator.Inet,
		Protocol:       generator.UDP,
		Concurrency:    1,
		BatchCount:     1,
		BatchDelay:     5 * time.Millisecond,
		ReceiveTimeout: 200 * time.Millisecond,
		Builder:        newFiniteStaticBuilder(t),
		Metrics:        collector,
	}

	s := New(opts, addr.IP)

	done := make(chan struct{})
	go func() {
		if err := s.Run(context.Background()); err != nil {
			t.Errorf("Run: %v", err)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("supervisor did not exit on query exhaustion")
	}

	stats := s.Stats()
	if stats.Received == 0 {
		t.Fatalf("expected at least one received response, got %+v", stats)
	}
}

func TestSupervisor_RunStopsOnContextCancel(t *testing.T) {
	addr := udpEchoForSupervisor(t)
	collector := metrics.NewCollector()

	opts := Options{
		Target:         addr.IP.String(),
		Port:           addr.Port,
		Family:         generator.Inet,
		Protocol:       generator.UDP,
		Concurrency:    2,
		BatchCount:     1,
		BatchDelay:     5 * time.Millisecond,
		ReceiveTimeout: 200 * time.Millisecond,
		Builder:        newFiniteStaticBuilder(t), // loops=1, will also exhaust quickly; cancel races it
		Metrics:        collector,
	}

	s := New(opts, addr.IP)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		if err := s.Run(ctx); err != nil {
			t.Errorf("Run: %v", err)
		}
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("supervisor did not exit after context cancellation")
	}
}
