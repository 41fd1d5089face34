package generator

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"flamethrower/internal/tcpframe"
)

// logGate rate-limits a noisy operator warning to at most once per
// window, so a sustained condition (like the allocator staying empty)
// logs once instead of flooding stderr every tick.
type logGate struct {
	mu   sync.Mutex
	last time.Time
}

func (g *logGate) allow(window time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now()
	if now.Sub(g.last) < window {
		return false
	}
	g.last = now
	return true
}

// Runtime owns one generator's timers, transaction-ID allocator, and
// in-flight table (C7). Everything it touches outside of read-only
// Config is reached from exactly one goroutine: the loop started by
// Start. Auxiliary reader goroutines only ever push raw bytes onto a
// channel; they never touch the allocator or table directly.
type Runtime struct {
	cfg Config
	ids idTable

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	warnGate logGate

	// UDP state, valid only when cfg.Protocol == UDP.
	udpConn   *net.UDPConn
	udpRemote *net.UDPAddr
	udpReadCh chan []byte

	// TCP state, valid only when cfg.Protocol == TCP and a connection
	// is currently open.
	tcpConn        net.Conn
	tcpFrame       *tcpframe.Session
	tcpIDs         []uint16
	tcpFramingErr  bool
	tcpReadCh      chan []byte
	tcpErrCh       chan error
	tcpFinishTimer *time.Timer
	tcpStart       time.Time
	tcpRetryTimer  *time.Timer
}

// tcpTryOpen attempts to open a connection and, if that fails, arms a
// retry after BatchDelay instead of spinning the loop.
func (r *Runtime) tcpTryOpen() {
	r.tcpOpen()
	if r.tcpConn == nil {
		r.tcpRetryTimer = time.NewTimer(r.cfg.BatchDelay)
	}
}

// New creates a Runtime for the given shared config.
func New(cfg Config) *Runtime {
	return &Runtime{
		cfg:    cfg,
		ids:    newIDTable(),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the generator's event loop in its own goroutine.
func (r *Runtime) Start(ctx context.Context) error {
	switch r.cfg.Protocol {
	case UDP:
		if err := r.udpOpen(); err != nil {
			return fmt.Errorf("generator: udp listen: %w", err)
		}
		go r.runUDP(ctx)
	case TCP:
		go r.runTCP(ctx)
	default:
		return fmt.Errorf("generator: unknown protocol %q", r.cfg.Protocol)
	}
	return nil
}

// Stop requests a graceful shutdown: in-flight queries are still given
// up to ReceiveTimeout to complete before the loop tears down.
func (r *Runtime) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// Done reports when the generator's loop has fully exited.
func (r *Runtime) Done() <-chan struct{} { return r.doneCh }

// InFlight reports the number of queries this generator currently has
// outstanding.
func (r *Runtime) InFlight() int { return r.ids.table.Len() }

func (r *Runtime) sweepTimeouts(hardReset bool) {
	expired := r.ids.table.Sweep(time.Now(), r.cfg.ReceiveTimeout, hardReset)
	for _, id := range expired {
		r.cfg.Metrics.IncTimeout()
		r.ids.allocator.Release(id)
	}
	r.cfg.Metrics.SetInFlight(r.ids.table.Len())
}

func (r *Runtime) runUDP(ctx context.Context) {
	defer close(r.doneCh)
	defer r.udpConn.Close()

	senderTimer := time.NewTimer(time.Millisecond)
	defer senderTimer.Stop()
	timeoutTimer := time.NewTimer(r.cfg.ReceiveTimeout)
	defer timeoutTimer.Stop()

	stopping := false
	var shutdownTimer *time.Timer
	var shutdownCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case <-r.stopCh:
			if stopping {
				continue
			}
			stopping = true
			senderTimer.Stop()
			delay := time.Millisecond
			if r.ids.table.Len() > 0 {
				delay = r.cfg.ReceiveTimeout
			}
			shutdownTimer = time.NewTimer(delay)
			shutdownCh = shutdownTimer.C

		case <-shutdownCh:
			r.sweepTimeouts(true)
			return

		case data := <-r.udpReadCh:
			r.udpHandleResponse(data)

		case <-senderTimer.C:
			if !stopping {
				r.udpTick()
			}
			senderTimer.Reset(r.cfg.BatchDelay)

		case <-timeoutTimer.C:
			r.sweepTimeouts(false)
			timeoutTimer.Reset(time.Second)
		}
	}
}

// drainPendingReads processes every message already buffered on the
// current connection's read channel before the caller acts on errC.
// tcpReadLoop can queue a final response and then its EOF/error in the
// same instant; without this, select's random case choice can pick
// errC first and force-timeout an id whose response was already
// sitting, unread, in the channel buffer.
func (r *Runtime) drainPendingReads(stopping bool) {
	for r.tcpConn != nil {
		select {
		case data := <-r.tcpReadCh:
			if r.tcpOnReadable(data) {
				r.tcpClose(true)
				if !stopping {
					r.tcpTryOpen()
				}
				return
			}
		default:
			return
		}
	}
}

func (r *Runtime) runTCP(ctx context.Context) {
	defer close(r.doneCh)

	timeoutTimer := time.NewTimer(r.cfg.ReceiveTimeout)
	defer timeoutTimer.Stop()

	stopping := false
	var shutdownTimer *time.Timer
	var shutdownCh <-chan time.Time

	r.tcpTryOpen()

	for {
		r.drainPendingReads(stopping)

		var finishC <-chan time.Time
		if r.tcpFinishTimer != nil {
			finishC = r.tcpFinishTimer.C
		}
		var readC <-chan []byte
		var errC <-chan error
		if r.tcpConn != nil {
			readC = r.tcpReadCh
			errC = r.tcpErrCh
		}
		var retryC <-chan time.Time
		if r.tcpRetryTimer != nil {
			retryC = r.tcpRetryTimer.C
		}

		select {
		case <-ctx.Done():
			r.tcpClose(true)
			return

		case <-r.stopCh:
			if stopping {
				continue
			}
			stopping = true
			delay := time.Millisecond
			if r.ids.table.Len() > 0 {
				delay = r.cfg.ReceiveTimeout
			}
			shutdownTimer = time.NewTimer(delay)
			shutdownCh = shutdownTimer.C

		case <-shutdownCh:
			r.tcpClose(true)
			r.sweepTimeouts(true)
			return

		case <-retryC:
			r.tcpRetryTimer = nil
			if !stopping {
				r.tcpTryOpen()
			}

		case data := <-readC:
			if r.tcpOnReadable(data) {
				r.tcpClose(true)
				if !stopping {
					r.tcpTryOpen()
				}
			}

		case err := <-errC:
			if tcpOnReadError(err) {
				r.cfg.Metrics.IncNetError()
			}
			r.tcpClose(true)
			if !stopping {
				r.tcpTryOpen()
			}

		case <-finishC:
			if r.tcpOnFinishTick() {
				r.tcpClose(true)
				if !stopping {
					r.tcpTryOpen()
				}
			}

		case <-timeoutTimer.C:
			r.sweepTimeouts(false)
			timeoutTimer.Reset(time.Second)
		}
	}
}
