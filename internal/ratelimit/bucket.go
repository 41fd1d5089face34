// Package ratelimit implements the token bucket that gates query emission
// across every generator in a process.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Bucket wraps a golang.org/x/time/rate.Limiter behind a mutex so it can be
// swapped out wholesale on Reconfigure rather than nudged field by field. A
// nil *Bucket, or one configured with qps <= 0, means "no limiter
// installed": every Consume call succeeds.
type Bucket struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	now     func() time.Time // injected clock, for tests
}

// New creates a bucket with the given rate (tokens/second) and burst
// (maximum tokens). A qps of 0 or less disables limiting entirely. The
// bucket starts full.
func New(qps, burst float64) *Bucket {
	b := &Bucket{now: time.Now}
	b.set(qps, burst)
	return b
}

// Consume deducts n tokens if n are available, returning true. If fewer
// than n tokens are available, no state changes and it returns false.
func (b *Bucket) Consume(n float64) bool {
	if b == nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.limiter == nil {
		return true
	}
	return b.limiter.AllowN(b.now(), int(n))
}

// Reconfigure atomically replaces rate and burst. The replacement limiter
// starts with a full burst of tokens, the same as a freshly constructed
// Bucket — a step change in the schedule never inherits a partially-drained
// budget from the step before it.
func (b *Bucket) Reconfigure(qps, burst float64) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.set(qps, burst)
}

// set must be called with mu held (or during construction, before the
// Bucket is shared).
func (b *Bucket) set(qps, burst float64) {
	if qps <= 0 {
		b.limiter = nil
		return
	}
	b.limiter = rate.NewLimiter(rate.Limit(qps), int(burst))
}
