package generator

import (
	"log"
	"net"
	"time"

	"flamethrower/internal/dnswire"
	"flamethrower/internal/netutil"
	"flamethrower/pkg/metrics"
)

// udpOpen binds an ephemeral local UDP socket for the run's duration.
func (r *Runtime) udpOpen() error {
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return err
	}
	r.udpConn = conn
	r.udpRemote = r.cfg.udpAddr()
	r.udpReadCh = make(chan []byte, 64)
	go r.udpReadLoop(conn, r.udpReadCh)
	return nil
}

func (r *Runtime) udpReadLoop(conn *net.UDPConn, out chan<- []byte) {
	buf := make([]byte, 2048)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if n > 0 {
			msg := make([]byte, n)
			copy(msg, buf[:n])
			select {
			case out <- msg:
			default:
				// a full channel means the loop goroutine has fallen
				// behind; drop rather than block the reader forever.
			}
		}
		if err != nil {
			return
		}
	}
}

// udpTick implements the per-tick batched send (C5): up to BatchCount
// datagrams, gated by the rate limiter and the ID allocator.
func (r *Runtime) udpTick() {
	if r.udpConn == nil || r.cfg.Builder.Finished() {
		return
	}

	for i := 0; i < r.cfg.BatchCount; i++ {
		if r.cfg.Limiter != nil && !r.cfg.Limiter.Consume(1) {
			return
		}
		id, ok := r.ids.allocator.Take()
		if !ok {
			if r.warnGate.allow(time.Second) {
				log.Printf("generator: max in flight reached")
			}
			return
		}

		payload, err := r.cfg.Builder.NextUDP(id)
		if err != nil {
			r.ids.allocator.Release(id)
			return
		}

		now := time.Now()
		if _, err := r.udpConn.WriteToUDP(payload, r.udpRemote); err != nil {
			r.ids.allocator.Release(id)
			r.cfg.Metrics.IncNetError()
			if netutil.Classify(err) == netutil.KindClosed {
				return
			}
			continue
		}

		r.ids.table.Insert(id, now)
		r.cfg.Metrics.IncSent()
		r.cfg.Metrics.SetInFlight(r.ids.table.Len())
	}
}

// udpHandleResponse matches a received datagram against the in-flight
// table by transaction ID.
func (r *Runtime) udpHandleResponse(data []byte) {
	id, _, err := dnswire.ReadIDAndRCode(data)
	if err != nil {
		r.cfg.Metrics.IncBadReceive()
		return
	}

	latency, ok := r.ids.table.Complete(id, time.Now())
	if !ok {
		r.cfg.Metrics.IncBadReceive()
		return
	}
	r.ids.allocator.Release(id)
	r.cfg.Metrics.IncReceived(latency)
	metrics.ObserveLatency(latency)
	r.cfg.Metrics.SetInFlight(r.ids.table.Len())
}
