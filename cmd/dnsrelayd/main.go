package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coredomain/dnsrelayd/internal/eventloop"
	"github.com/coredomain/dnsrelayd/internal/metrics"
	"github.com/coredomain/dnsrelayd/internal/ratelimit"
	"github.com/coredomain/dnsrelayd/internal/zone"
)

var (
	addr         = flag.String("addr", "0.0.0.0:53", "UDP listen address")
	upstream     = flag.String("upstream", "", "Upstream resolver address (required)")
	zoneFile     = flag.String("zone", "", "Zone file to load")
	zoneFormat   = flag.String("format", "bind", "Zone file format (bind, dnszone)")
	forwarderTTL = flag.Duration("forwarder-ttl", 10*time.Second, "How long a forwarded query waits for an upstream reply")
	forwarderCap = flag.Int("forwarder-capacity", 4096, "Maximum number of in-flight forwarded queries")
	rateLimit    = flag.Float64("rate-limit", 0, "Per-client queries/sec limit (0 disables)")
	metricsAddr  = flag.String("metrics-addr", "", "Address to serve Prometheus metrics on (empty disables)")
	stats        = flag.Bool("stats", true, "Print statistics periodically")
)

func main() {
	flag.Parse()

	fmt.Println("╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                   dnsrelayd - DNS relay daemon                ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Println()

	if *upstream == "" {
		fmt.Fprintln(os.Stderr, "Error: -upstream is required")
		os.Exit(1)
	}

	var records zone.Set
	if *zoneFile != "" {
		fmt.Printf("Loading zone: %s (format: %s)\n", *zoneFile, *zoneFormat)
		var err error
		switch *zoneFormat {
		case "bind":
			records, err = zone.LoadFile(*zoneFile)
		case "dnszone":
			records, err = zone.LoadDNSZoneFile(*zoneFile)
		default:
			fmt.Fprintf(os.Stderr, "Error: unknown zone format %q\n", *zoneFormat)
			os.Exit(1)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading zone: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Loaded %d records\n\n", len(records))
	}

	var limiter *ratelimit.Limiter
	if *rateLimit > 0 {
		limiter = ratelimit.New(ratelimit.Config{QueriesPerSecond: *rateLimit})
	}

	fmt.Printf("Configuration:\n")
	fmt.Printf("  Listen Address:      %s\n", *addr)
	fmt.Printf("  Upstream:            %s\n", *upstream)
	fmt.Printf("  Forwarder TTL:       %s\n", *forwarderTTL)
	fmt.Printf("  Forwarder Capacity:  %d\n", *forwarderCap)
	fmt.Printf("  Rate Limit:          %.0f qps\n", *rateLimit)
	fmt.Println()

	srv, err := eventloop.New(eventloop.Config{
		ListenAddr:        *addr,
		UpstreamAddr:      *upstream,
		Records:           records,
		ForwarderTTL:      *forwarderTTL,
		ForwarderCapacity: *forwarderCap,
		RateLimiter:       limiter,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating server: %v\n", err)
		os.Exit(1)
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			fmt.Printf("Metrics listening on %s\n", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				fmt.Fprintf(os.Stderr, "Error serving metrics: %v\n", err)
			}
		}()
	}

	srv.Start()
	fmt.Println("dnsrelayd started successfully!")
	fmt.Println()

	if *stats {
		go printStats(srv)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	fmt.Println()

	fmt.Println("Shutting down dnsrelayd...")
	srv.Stop()
	fmt.Println("dnsrelayd stopped")
}

func printStats(srv *eventloop.Server) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	lastQueries := uint64(0)
	lastTime := time.Now()

	for range ticker.C {
		s := srv.Stats()
		now := time.Now()
		elapsed := now.Sub(lastTime).Seconds()
		qps := float64(s.Queries-lastQueries) / elapsed

		fmt.Printf("═══════════════════════════════════════════════════════════\n")
		fmt.Printf("Statistics (%.1fs interval):\n", elapsed)
		fmt.Printf("  Queries:   %10d  (%.0f qps)\n", s.Queries, qps)
		fmt.Printf("  Answers:   %10d\n", s.Answers)
		fmt.Printf("  Forwards:  %10d\n", s.Forwards)
		fmt.Printf("  Errors:    %10d\n", s.Errors)
		fmt.Printf("═══════════════════════════════════════════════════════════\n\n")

		lastQueries = s.Queries
		lastTime = now
	}
}
