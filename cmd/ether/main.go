// Command ether runs one or more ether nodes from a TOML configuration:
// "simulation" mode pairs two in-process nodes over a rendezvous
// registry for local testing, "live" mode binds each configured port to
// a real Ethernet interface. The Cell of the (first, in live mode) node
// is bridged to stdin/stdout: one payload per line in, one per line out.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fxamacker/cbor/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dalnefre/ether/internal/config"
	"github.com/dalnefre/ether/internal/metrics"
	"github.com/dalnefre/ether/internal/node"
	"github.com/dalnefre/ether/internal/rendezvous"
	"github.com/dalnefre/ether/types"
)

func main() {
	configPath := flag.String("config", "ether.toml", "path to node configuration")
	dumpState := flag.Bool("dump-state", false, "print one CBOR-encoded Hub state snapshot and exit")
	metricsAddr := flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: ether [-config path] [-dump-state] [-metrics-addr addr] <simulation|live>")
		os.Exit(2)
	}
	mode := flag.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ether: %v\n", err)
		os.Exit(1)
	}
	if cfg.Mode != mode {
		fmt.Fprintf(os.Stderr, "ether: config mode %q does not match CLI mode %q\n", cfg.Mode, mode)
		os.Exit(1)
	}

	l := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	l.SetLevel(parseLevel(cfg.Logging.Level))

	m := metrics.New()
	reg := prometheus.NewRegistry()
	m.MustRegister(reg)
	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, reg, l)
	}

	names := portNames(cfg)
	pollInterval := time.Duration(cfg.PollIntervalMillis) * time.Millisecond

	var primary, secondary *node.Node
	switch mode {
	case "simulation":
		rz := rendezvous.New()
		factory := node.RendezvousWireFactory(rz, 16, l)
		primary = node.New(names, factory, pollInterval, m, l.WithPrefix("node-a"))
		secondary = node.New(names, factory, pollInterval, m, l.WithPrefix("node-b"))
	case "live":
		ifaceOf := func(i int) string { return cfg.Ports[i].Interface }
		factory := node.LiveWireFactory(ifaceOf, l)
		primary = node.New(names, factory, pollInterval, m, l)
	default:
		fmt.Fprintf(os.Stderr, "ether: unknown mode %q\n", mode)
		os.Exit(2)
	}
	defer primary.Halt()
	if secondary != nil {
		defer secondary.Halt()
	}

	if *dumpState {
		time.Sleep(pollInterval)
		dump(primary)
		return
	}

	if secondary != nil {
		go relayDelivered(secondary, "peer")
	}
	go relayDelivered(primary, "local")
	go readStdinInto(primary, l)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
	l.Info("shutting down")
}

func portNames(cfg *config.Config) []string {
	names := make([]string, len(cfg.Ports))
	for i, p := range cfg.Ports {
		names[i] = p.Name
	}
	return names
}

func parseLevel(level string) log.Level {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// readStdinInto sends one data payload per input line to n's Cell.
func readStdinInto(n *node.Node, l *log.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	var treeID uint32
	for scanner.Scan() {
		n.Send(types.NewDataPayload(treeID, scanner.Bytes()))
		treeID++
	}
	if err := scanner.Err(); err != nil {
		l.Errorf("stdin: %v", err)
	}
}

// relayDelivered prints every payload n's Cell accepts, prefixed with
// label, until the channel closes.
func relayDelivered(n *node.Node, label string) {
	for payload := range n.Delivered() {
		fmt.Printf("[%s] %s\n", label, string(payload.Data[:]))
	}
}

// dump queries the Hub for a snapshot and writes it CBOR-encoded to
// stdout, for offline inspection. Never used for wire transport.
func dump(n *node.Node) {
	snap := n.Snapshot()
	b, err := cbor.Marshal(snap)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ether: encode snapshot: %v\n", err)
		os.Exit(1)
	}
	os.Stdout.Write(b)
}

func serveMetrics(addr string, reg *prometheus.Registry, l *log.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	l.Infof("serving metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		l.Errorf("metrics server: %v", err)
	}
}
