// Package supervisor resolves the target, builds the shared config
// and per-generator runtimes, and drives the process through a
// graceful shutdown (C9).
package supervisor

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"flamethrower/internal/flow"
	"flamethrower/internal/generator"
	"flamethrower/internal/ratelimit"
	"flamethrower/pkg/metrics"
	"flamethrower/pkg/querybuilder"
)

// Options gathers everything the CLI parses before a run starts.
type Options struct {
	Target   string
	Port     int
	Family   generator.Family
	Protocol generator.Protocol

	Concurrency int
	BatchCount  int
	BatchDelay  time.Duration

	ReceiveTimeout time.Duration
	RunLimit       time.Duration

	RateQPS float64
	Flow    []flow.Step

	Builder querybuilder.Builder
	Metrics *metrics.Collector

	Verbosity int
}

// Supervisor owns every Generator Runtime in a process plus the shared
// rate limiter and flow controller, if any.
type Supervisor struct {
	opts     Options
	limiter  *ratelimit.Bucket
	flowCtl  *flow.Controller
	builder  querybuilder.Builder
	runtimes []*generator.Runtime

	shutdownOnce sync.Once
}

// Resolve looks up target for the requested address family, failing if
// no address of that family is returned. It is the one synchronous,
// blocking step before the generators' loops start.
func Resolve(ctx context.Context, target string, family generator.Family) (net.IP, error) {
	if ip := net.ParseIP(target); ip != nil {
		if matchesFamily(ip, family) {
			return ip, nil
		}
		return nil, fmt.Errorf("supervisor: %s is not a valid %s address", target, family)
	}

	ips, err := net.DefaultResolver.LookupIP(ctx, lookupNetwork(family), target)
	if err != nil {
		return nil, fmt.Errorf("supervisor: resolve %s: %w", target, err)
	}
	for _, ip := range ips {
		if matchesFamily(ip, family) {
			return ip, nil
		}
	}
	return nil, fmt.Errorf("supervisor: no %s address found for %s", family, target)
}

func lookupNetwork(family generator.Family) string {
	if family == generator.Inet6 {
		return "ip6"
	}
	return "ip4"
}

func matchesFamily(ip net.IP, family generator.Family) bool {
	if family == generator.Inet6 {
		return ip.To4() == nil
	}
	return ip.To4() != nil
}

// New builds a Supervisor with c_count generator runtimes sharing one
// rate limiter, metrics collector, and Query Builder.
func New(opts Options, targetIP net.IP) *Supervisor {
	var limiter *ratelimit.Bucket
	switch {
	case len(opts.Flow) > 0:
		limiter = ratelimit.New(opts.Flow[0].QPS, opts.Flow[0].QPS)
	case opts.RateQPS > 0:
		limiter = ratelimit.New(opts.RateQPS, opts.RateQPS)
	}

	// One Query Builder is shared by every runtime in the process, so
	// wrap it to serialize the access its contract doesn't guarantee
	// across goroutines.
	builder := querybuilder.Synchronized(opts.Builder)

	cfg := generator.Config{
		TargetIP:       targetIP,
		Port:           opts.Port,
		Protocol:       opts.Protocol,
		ReceiveTimeout: opts.ReceiveTimeout,
		BatchDelay:     opts.BatchDelay,
		BatchCount:     opts.BatchCount,
		Limiter:        limiter,
		Builder:        builder,
		Metrics:        opts.Metrics,
		Verbosity:      opts.Verbosity,
	}

	s := &Supervisor{
		opts:     opts,
		limiter:  limiter,
		builder:  builder,
		runtimes: make([]*generator.Runtime, opts.Concurrency),
	}
	for i := range s.runtimes {
		s.runtimes[i] = generator.New(cfg)
	}

	if len(opts.Flow) > 0 {
		s.flowCtl = flow.New(opts.Flow, limiter, opts.Verbosity >= 3)
	}

	return s
}

// Run starts every generator, installs signal handling, and blocks
// until shutdown (via signal, run-time limit, query exhaustion, or ctx
// cancellation), then drains and returns.
func (s *Supervisor) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for i, rt := range s.runtimes {
		if err := rt.Start(runCtx); err != nil {
			return fmt.Errorf("supervisor: generator %d: %w", i, err)
		}
	}
	if s.flowCtl != nil {
		s.flowCtl.Start()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runLimitC <-chan time.Time
	if s.opts.RunLimit > 0 {
		t := time.NewTimer(s.opts.RunLimit)
		defer t.Stop()
		runLimitC = t.C
	}

	exhaustionTicker := time.NewTicker(500 * time.Millisecond)
	defer exhaustionTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			s.wait()
			return nil
		case sig := <-sigCh:
			if s.opts.Verbosity >= 1 {
				log.Printf("flamethrower: received %s, shutting down", sig)
			}
			s.shutdown()
			s.wait()
			return nil
		case <-runLimitC:
			if s.opts.Verbosity >= 1 {
				log.Printf("flamethrower: run-time limit reached, shutting down")
			}
			s.shutdown()
			s.wait()
			return nil
		case <-exhaustionTicker.C:
			if s.builder.Finished() && s.allDrained() {
				s.shutdown()
				s.wait()
				return nil
			}
		}
	}
}

func (s *Supervisor) allDrained() bool {
	for _, rt := range s.runtimes {
		if rt.InFlight() > 0 {
			return false
		}
	}
	return true
}

func (s *Supervisor) shutdown() {
	s.shutdownOnce.Do(func() {
		if s.flowCtl != nil {
			s.flowCtl.Stop()
		}
		for _, rt := range s.runtimes {
			rt.Stop()
		}
	})
}

func (s *Supervisor) wait() {
	for _, rt := range s.runtimes {
		<-rt.Done()
	}
}

// Stats aggregates the shared collector's current snapshot. Exposed so
// the CLI can print or persist a final report after Run returns.
func (s *Supervisor) Stats() metrics.Stats {
	return s.opts.Metrics.GetStats()
}
