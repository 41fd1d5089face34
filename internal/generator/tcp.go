package generator

import (
	"io"
	"net"
	"time"

	"flamethrower/internal/dnswire"
	"flamethrower/internal/tcpframe"
	"flamethrower/pkg/metrics"
)

// tcpOpen dials a fresh connection and, on success, sends one batch of
// up to BatchCount queries (C6's Connecting -> Sending transition). On
// dial failure it reports a net error and leaves the Runtime with no
// active connection; tcpTryOpen then arms a retry after BatchDelay.
func (r *Runtime) tcpOpen() {
	conn, err := net.DialTimeout("tcp", r.cfg.tcpAddr(), r.cfg.ReceiveTimeout)
	if err != nil {
		r.cfg.Metrics.IncNetError()
		return
	}

	r.tcpConn = conn
	r.cfg.Metrics.IncTCPConnection()
	r.tcpIDs = nil
	r.tcpFramingErr = false

	r.tcpFrame = tcpframe.New(
		func(msg []byte) { r.tcpHandleResponse(msg) },
		func() { r.tcpFramingErr = true },
	)

	ids := make([]uint16, 0, r.cfg.BatchCount)
	for i := 0; i < r.cfg.BatchCount; i++ {
		if r.cfg.Limiter != nil && !r.cfg.Limiter.Consume(1) {
			break
		}
		id, ok := r.ids.allocator.Take()
		if !ok {
			break
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		conn.Close()
		r.tcpConn = nil
		return
	}

	payload, err := r.cfg.Builder.NextTCP(ids)
	if err != nil {
		for _, id := range ids {
			r.ids.allocator.Release(id)
		}
		conn.Close()
		r.tcpConn = nil
		return
	}

	now := time.Now()
	for _, id := range ids {
		r.ids.table.Insert(id, now)
	}
	r.tcpIDs = ids
	r.cfg.Metrics.SetInFlight(r.ids.table.Len())

	if _, err := conn.Write(payload); err != nil {
		r.cfg.Metrics.IncNetError()
		r.tcpForceReset()
		conn.Close()
		r.tcpConn = nil
		return
	}
	for range ids {
		r.cfg.Metrics.IncSent()
	}

	r.tcpReadCh = make(chan []byte, 16)
	r.tcpErrCh = make(chan error, 1)
	go r.tcpReadLoop(conn, r.tcpReadCh, r.tcpErrCh)

	r.tcpStart = time.Now()
	r.tcpFinishTimer = time.NewTimer(time.Millisecond)
}

func (r *Runtime) tcpReadLoop(conn net.Conn, out chan<- []byte, errOut chan<- error) {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			msg := make([]byte, n)
			copy(msg, buf[:n])
			out <- msg
		}
		if err != nil {
			errOut <- err
			return
		}
	}
}

// tcpHandleResponse matches one framed message against the in-flight
// table and drops it from the connection's outstanding id list.
func (r *Runtime) tcpHandleResponse(msg []byte) {
	id, _, err := dnswire.ReadIDAndRCode(msg)
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

	for i, v := range r.tcpIDs {
		if v == id {
			r.tcpIDs = append(r.tcpIDs[:i], r.tcpIDs[i+1:]...)
			break
		}
	}
}

// tcpForceReset expires every id still outstanding on the current
// connection as a timeout, since a response for it can never be
// matched across a connection boundary.
func (r *Runtime) tcpForceReset() {
	for _, id := range r.tcpIDs {
		if _, ok := r.ids.table.Complete(id, time.Now()); ok {
			r.cfg.Metrics.IncTimeout()
			r.ids.allocator.Release(id)
		}
	}
	r.tcpIDs = nil
	r.cfg.Metrics.SetInFlight(r.ids.table.Len())
}

// tcpClose tears down the active connection and, if forceReset is
// true, expires any ids still outstanding on it.
func (r *Runtime) tcpClose(forceReset bool) {
	if r.tcpConn == nil {
		return
	}
	if r.tcpFinishTimer != nil {
		r.tcpFinishTimer.Stop()
		r.tcpFinishTimer = nil
	}
	if forceReset {
		r.tcpForceReset()
	}
	r.tcpConn.Close()
	r.tcpConn = nil
	r.tcpReadCh = nil
	r.tcpErrCh = nil
	r.tcpFrame = nil
}

// tcpOnReadable feeds newly-read bytes through the framing session and
// reports whether the connection should be closed (a framing
// violation) as a result.
func (r *Runtime) tcpOnReadable(data []byte) (closeNow bool) {
	r.tcpFrame.Receive(data)
	if r.tcpFramingErr {
		r.cfg.Metrics.IncNetError()
		return true
	}
	return false
}

// tcpOnFinishTick advances the drain/close decision the finish-session
// timer drives. It returns true when the connection should be closed.
func (r *Runtime) tcpOnFinishTick() (closeNow bool) {
	elapsed := time.Since(r.tcpStart)
	if len(r.tcpIDs) > 0 && elapsed < r.cfg.ReceiveTimeout {
		r.tcpFinishTimer.Reset(50 * time.Millisecond)
		return false
	}
	if elapsed < r.cfg.BatchDelay {
		r.tcpFinishTimer.Reset(50 * time.Millisecond)
		return false
	}
	if tc, ok := r.tcpConn.(*net.TCPConn); ok {
		tc.CloseWrite()
	}
	return true
}

// tcpOnReadError reports whether err is a transport failure worth a
// net_error metric, i.e. anything other than an ordinary peer-closed EOF.
func tcpOnReadError(err error) (netError bool) {
	return err != io.EOF
}
