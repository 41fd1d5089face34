// Command flame drives DNS traffic against a target resolver or
// authoritative server over UDP or TCP, recording per-query latency
// and outcome counts.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"flamethrower/internal/flow"
	"flamethrower/internal/generator"
	"flamethrower/internal/supervisor"
	"flamethrower/pkg/config"
	"flamethrower/pkg/metrics"
	"flamethrower/pkg/querybuilder"
)

var (
	concurrency = flag.Int("c", 0, "concurrent generators (default 10 UDP / 30 TCP)")
	batchCount  = flag.Int("q", 0, "queries per batch (default 10 UDP / 100 TCP)")
	batchDelay  = flag.Int("d", 0, "ms between batches (default 1 UDP / 1000 TCP)")
	port        = flag.Int("p", 53, "target port")
	timeoutSec  = flag.Int("t", 3, "query timeout, seconds")
	runLimitSec = flag.Int("l", 0, "run-time limit, seconds (0 = unlimited)")
	loops       = flag.Int("n", 0, "loops through record list (0 = unlimited)")
	rateQPS     = flag.Float64("Q", 0, "rate cap qps (0 = none)")
	qpsFlow     = flag.String("qps-flow", "", "dynamic rate schedule qps,ms;qps,ms;...")
	family      = flag.String("F", "inet", "family: inet | inet6")
	protocol    = flag.String("P", "udp", "protocol: udp | tcp")
	genName     = flag.String("g", "static", "query generator name")
	record      = flag.String("r", "test.com", "base record / qname")
	queryType   = flag.String("T", "A", "query type")
	class       = flag.String("class", "IN", "query class (IN or CH)")
	dnssec      = flag.Bool("dnssec", false, "set the DO bit")
	randomize   = flag.Bool("R", false, "randomize record list")
	recordFile  = flag.String("f", "", "record file")
	outputFile  = flag.String("o", "", "metrics JSON output file")
	verbosity   = flag.Int("v", 1, "verbosity (0 silent)")

	configFile    = flag.String("C", "", "optional YAML file of flag defaults, applied before flag parsing")
	metricsListen = flag.String("metrics-listen", "", "if set, serve Prometheus metrics at ADDR/metrics")
)

func main() {
	os.Exit(run())
}

func run() int {
	configSet := applyConfigOverlay(os.Args[1:])
	flag.Parse()

	// A flag the config overlay seeded counts as explicitly set too,
	// so protocol-default overrides (ApplyProtocolDefaults, cCount
	// below) don't clobber a config-supplied value just because the
	// user didn't also repeat it on the command line.
	explicit := setFlags()
	for name := range configSet {
		explicit[name] = true
	}

	target := flag.Arg(0)
	if target == "" {
		fmt.Fprintln(os.Stderr, "flame: a TARGET host or IP is required")
		return 1
	}
	genArgs := flag.Args()[1:]

	fam, err := parseFamily(*family)
	if err != nil {
		fmt.Fprintf(os.Stderr, "flame: %v\n", err)
		return 1
	}
	proto, err := parseProtocol(*protocol)
	if err != nil {
		fmt.Fprintf(os.Stderr, "flame: %v\n", err)
		return 1
	}

	builder, err := querybuilder.New(*genName, *recordFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "flame: %v\n", err)
		return 1
	}
	builder.SetQName(*record)
	if err := builder.SetQType(*queryType); err != nil {
		fmt.Fprintf(os.Stderr, "flame: %v\n", err)
		return 1
	}
	if err := builder.SetQClass(*class); err != nil {
		fmt.Fprintf(os.Stderr, "flame: %v\n", err)
		return 1
	}
	builder.SetDNSSEC(*dnssec)
	builder.SetLoops(*loops)
	if err := builder.SetArgs(genArgs); err != nil {
		fmt.Fprintf(os.Stderr, "flame: %v\n", err)
		return 1
	}
	if err := builder.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "flame: generator init: %v\n", err)
		return 1
	}
	if *randomize {
		builder.Randomize()
	}

	cfg := generator.Config{
		Protocol:       proto,
		ReceiveTimeout: time.Duration(*timeoutSec) * time.Second,
		BatchDelay:     time.Duration(*batchDelay) * time.Millisecond,
		BatchCount:     *batchCount,
	}
	cfg.ApplyProtocolDefaults(explicit["d"], explicit["q"])
	cCount := *concurrency
	if !explicit["c"] {
		if proto == generator.TCP {
			cCount = 30
		} else {
			cCount = 10
		}
	}

	var flowSteps []flow.Step
	if *qpsFlow != "" {
		flowSteps, err = flow.ParseSpec(*qpsFlow)
		if err != nil {
			fmt.Fprintf(os.Stderr, "flame: %v\n", err)
			return 1
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, err := supervisor.Resolve(ctx, target, fam)
	if err != nil {
		fmt.Fprintf(os.Stderr, "flame: %v\n", err)
		return 1
	}

	collector := metrics.NewCollector()

	if *verbosity >= 1 {
		log.Printf("flame: target=%s addr=%s proto=%s generator=%s records=%d loops=%d concurrency=%d",
			target, addr, proto, builder.Name(), builder.Size(), builder.Loops(), cCount)
	}
	if *verbosity >= 4 {
		log.Printf("flame: args=%v flags: c=%d q=%d d=%d p=%d t=%d l=%d n=%d Q=%g family=%s protocol=%s",
			os.Args[1:], cCount, cfg.BatchCount, int(cfg.BatchDelay/time.Millisecond), *port, *timeoutSec,
			*runLimitSec, *loops, *rateQPS, fam, proto)
	}

	var exporter *metrics.Exporter
	if *metricsListen != "" {
		exporter = metrics.NewExporter(collector, *metricsListen, "/metrics")
		go func() {
			if err := exporter.Start(); err != nil {
				log.Printf("flame: metrics server error: %v", err)
			}
		}()
		go exporter.StartUpdateLoop(ctx, time.Second)
		if *verbosity >= 1 {
			log.Printf("flame: metrics listening on %s/metrics", *metricsListen)
		}
	}

	opts := supervisor.Options{
		Target:         target,
		Port:           *port,
		Family:         fam,
		Protocol:       proto,
		Concurrency:    cCount,
		BatchCount:     cfg.BatchCount,
		BatchDelay:     cfg.BatchDelay,
		ReceiveTimeout: cfg.ReceiveTimeout,
		RunLimit:       time.Duration(*runLimitSec) * time.Second,
		RateQPS:        *rateQPS,
		Flow:           flowSteps,
		Builder:        builder,
		Metrics:        collector,
		Verbosity:      *verbosity,
	}

	sup := supervisor.New(opts, addr)
	if err := sup.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "flame: %v\n", err)
		return 1
	}

	if exporter != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer stopCancel()
		if err := exporter.Stop(stopCtx); err != nil {
			log.Printf("flame: stopping metrics server: %v", err)
		}
	}

	stats := sup.Stats()
	if *outputFile != "" {
		if err := metrics.WriteJSONFile(*outputFile, stats); err != nil {
			log.Printf("flame: writing metrics file: %v", err)
		}
	}
	if *verbosity >= 1 {
		fmt.Println(metrics.Report(target, stats))
	}

	return 0
}

func parseFamily(s string) (generator.Family, error) {
	switch strings.ToLower(s) {
	case "inet", "":
		return generator.Inet, nil
	case "inet6":
		return generator.Inet6, nil
	default:
		return "", fmt.Errorf("family must be inet or inet6, got %q", s)
	}
}

func parseProtocol(s string) (generator.Protocol, error) {
	switch strings.ToLower(s) {
	case "udp", "":
		return generator.UDP, nil
	case "tcp":
		return generator.TCP, nil
	default:
		return "", fmt.Errorf("protocol must be udp or tcp, got %q", s)
	}
}

// setFlags scans argv for flags the user passed explicitly, since
// protocol-default overrides must only fill in flags the user left
// untouched.
func setFlags() map[string]bool {
	seen := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { seen[f.Name] = true })
	return seen
}

// applyConfigOverlay looks for -C in the raw argv (before flag.Parse
// runs) and, if present, loads it and pre-seeds every flag default it
// names so the user's explicit CLI flags still take precedence. It
// returns the set of flag names it seeded, since flag.Visit (run after
// flag.Parse) has no way to see these.
func applyConfigOverlay(argv []string) map[string]bool {
	path := findConfigFlag(argv)
	if path == "" {
		return nil
	}
	defaults, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "flame: loading %s: %v\n", path, err)
		os.Exit(1)
	}
	return applyDefaults(defaults)
}

func findConfigFlag(argv []string) string {
	for i, a := range argv {
		switch {
		case a == "-C" || a == "--C":
			if i+1 < len(argv) {
				return argv[i+1]
			}
		case strings.HasPrefix(a, "-C="):
			return strings.TrimPrefix(a, "-C=")
		}
	}
	return ""
}

func applyDefaults(d *config.Defaults) map[string]bool {
	seeded := map[string]bool{}
	set := func(name, value string) {
		if f := flag.Lookup(name); f != nil {
			f.DefValue = value
			f.Value.Set(value)
			seeded[name] = true
		}
	}
	if d.Concurrency != 0 {
		set("c", fmt.Sprint(d.Concurrency))
	}
	if d.BatchCount != 0 {
		set("q", fmt.Sprint(d.BatchCount))
	}
	if d.BatchDelay != 0 {
		set("d", fmt.Sprint(d.BatchDelay))
	}
	if d.Port != 0 {
		set("p", fmt.Sprint(d.Port))
	}
	if d.Timeout != 0 {
		set("t", fmt.Sprint(d.Timeout))
	}
	if d.RunLimit != 0 {
		set("l", fmt.Sprint(d.RunLimit))
	}
	if d.Loops != 0 {
		set("n", fmt.Sprint(d.Loops))
	}
	if d.RateQPS != 0 {
		set("Q", fmt.Sprint(d.RateQPS))
	}
	if d.QPSFlow != "" {
		set("qps-flow", d.QPSFlow)
	}
	if d.Family != "" {
		set("F", d.Family)
	}
	if d.Protocol != "" {
		set("P", d.Protocol)
	}
	if d.Generator != "" {
		set("g", d.Generator)
	}
	if d.Record != "" {
		set("r", d.Record)
	}
	if d.QueryType != "" {
		set("T", d.QueryType)
	}
	if d.Class != "" {
		set("class", d.Class)
	}
	if d.DNSSEC {
		set("dnssec", "true")
	}
	if d.Randomize {
		set("R", "true")
	}
	if d.RecordFile != "" {
		set("f", d.RecordFile)
	}
	if d.OutputFile != "" {
		set("o", d.OutputFile)
	}
	if d.Verbosity != 0 {
		set("v", fmt.Sprint(d.Verbosity))
	}
	if d.Metrics.Listen != "" {
		set("metrics-listen", d.Metrics.Listen)
	}
	return seeded
}
