package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	sentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flamethrower_sent_total",
		Help: "Total DNS queries sent",
	})

	receivedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flamethrower_received_total",
		Help: "Total DNS responses matched to an in-flight query",
	})

	timeoutTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flamethrower_timeout_total",
		Help: "Total queries expired by the in-flight sweep",
	})

	badReceiveTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flamethrower_bad_receive_total",
		Help: "Total responses that could not be matched or decoded",
	})

	netErrorTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flamethrower_net_error_total",
		Help: "Total transport-level socket errors",
	})

	tcpConnectionTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flamethrower_tcp_connection_total",
		Help: "Total TCP connections opened",
	})

	inFlightGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flamethrower_in_flight",
		Help: "Current number of outstanding queries across all generators",
	})

	latencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "flamethrower_latency_seconds",
		Help:    "Per-query response latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
	})
)

func init() {
	prometheus.MustRegister(
		sentTotal,
		receivedTotal,
		timeoutTotal,
		badReceiveTotal,
		netErrorTotal,
		tcpConnectionTotal,
		inFlightGauge,
		latencySeconds,
	)
}

// Exporter serves the process's counters over HTTP in Prometheus text
// format, alongside a plain JSON snapshot at /stats and a /health probe.
type Exporter struct {
	collector *Collector
	server    *http.Server
	addr      string
	path      string

	last Stats
}

// NewExporter creates an exporter for collector, serving at addr/path.
func NewExporter(collector *Collector, addr, path string) *Exporter {
	if path == "" {
		path = "/metrics"
	}
	return &Exporter{collector: collector, addr: addr, path: path}
}

// Start runs the HTTP server until it errors or is shut down. Intended
// to be called in its own goroutine.
func (e *Exporter) Start() error {
	mux := http.NewServeMux()
	mux.Handle(e.path, promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		if e.collector == nil {
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(e.collector.GetStats())
	})

	e.server = &http.Server{
		Addr:    e.addr,
		Handler: mux,
	}

	log.Printf("metrics: serving on %s%s", e.addr, e.path)
	return e.server.ListenAndServe()
}

// Stop shuts the HTTP server down, if running.
func (e *Exporter) Stop(ctx context.Context) error {
	if e.server != nil {
		return e.server.Shutdown(ctx)
	}
	return nil
}

// UpdateMetrics pushes the delta since the last call into the Prometheus
// counters. Counters only move forward, so this tracks the last
// observed snapshot rather than re-adding the running total each time.
func (e *Exporter) UpdateMetrics() {
	if e.collector == nil {
		return
	}
	cur := e.collector.GetStats()

	sentTotal.Add(float64(cur.Sent - e.last.Sent))
	receivedTotal.Add(float64(cur.Received - e.last.Received))
	timeoutTotal.Add(float64(cur.Timeout - e.last.Timeout))
	badReceiveTotal.Add(float64(cur.BadReceive - e.last.BadReceive))
	netErrorTotal.Add(float64(cur.NetError - e.last.NetError))
	tcpConnectionTotal.Add(float64(cur.TCPConnection - e.last.TCPConnection))
	inFlightGauge.Set(float64(cur.InFlight))

	e.last = cur
}

// StartUpdateLoop pushes counter deltas into Prometheus on a tick until
// ctx is done.
func (e *Exporter) StartUpdateLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.UpdateMetrics()
		}
	}
}

// ObserveLatency records one latency sample directly into the
// Prometheus histogram, independent of the counter polling loop so the
// distribution stays accurate even on a short run.
func ObserveLatency(d time.Duration) {
	latencySeconds.Observe(d.Seconds())
}

// WriteJSONFile writes stats to path as JSON, the file the -o flag
// names.
func WriteJSONFile(path string, stats Stats) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
