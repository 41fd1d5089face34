// Package flow parses and drives the dynamic rate schedule that
// reprograms the shared rate limiter over the life of a run.
package flow

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"flamethrower/internal/ratelimit"
)

// Step is one (qps, duration) leg of a schedule. The last step's
// Duration is observed but never acted on: once the queue of remaining
// steps is empty, Controller stops reconfiguring the limiter, which is
// "until completion" in effect.
type Step struct {
	QPS      float64
	Duration time.Duration
}

// ParseSpec parses a "qps,ms;qps,ms;..." flow schedule into an ordered
// list of Steps, the format consumed by the CLI's --qps-flow flag.
func ParseSpec(spec string) ([]Step, error) {
	groups := strings.Split(spec, ";")
	steps := make([]Step, 0, len(groups))
	for _, g := range groups {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		parts := strings.Split(g, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("flow: malformed step %q, want QPS,MS", g)
		}
		qps, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("flow: bad qps in %q: %w", g, err)
		}
		ms, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("flow: bad duration in %q: %w", g, err)
		}
		steps = append(steps, Step{QPS: qps, Duration: time.Duration(ms) * time.Millisecond})
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("flow: empty spec")
	}
	return steps, nil
}

// Controller advances a Step schedule, reconfiguring a shared
// ratelimit.Bucket on each step boundary via a one-shot timer.
type Controller struct {
	steps     []Step
	bucket    *ratelimit.Bucket
	verbose   bool
	onAdvance func(Step, int) // for tests; called after each reconfigure, remaining count
	timer     *time.Timer
	stopped   bool
}

// New creates a controller for the given schedule and bucket. Start must
// be called to begin driving it.
func New(steps []Step, bucket *ratelimit.Bucket, verbose bool) *Controller {
	return &Controller{steps: steps, bucket: bucket, verbose: verbose}
}

// Start applies the first step immediately and arms a timer to advance
// through the rest of the schedule.
func (c *Controller) Start() {
	c.advance()
}

// Stop halts any pending advance; safe to call multiple times.
func (c *Controller) Stop() {
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
	}
}

func (c *Controller) advance() {
	if c.stopped || len(c.steps) == 0 {
		return
	}
	step := c.steps[0]
	c.steps = c.steps[1:]

	c.bucket.Reconfigure(step.QPS, step.QPS)

	if c.onAdvance != nil {
		c.onAdvance(step, len(c.steps))
	}

	if len(c.steps) == 0 {
		return
	}
	c.timer = time.AfterFunc(step.Duration, func() {
		c.advance()
	})
}
