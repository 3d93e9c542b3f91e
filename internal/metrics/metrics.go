// Package metrics exposes the server's operational counters as
// Prometheus collectors, registered the way a gRPC middleware layer
// registers its own request counters and histograms.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// QueriesTotal counts incoming queries that were answered
	// authoritatively or forwarded upstream, labeled by which of the
	// two. Queries dropped by the rate limiter or lost to a failed
	// write are not counted here.
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dnsrelayd_queries_total", Help: "Total queries received"},
		[]string{"outcome"},
	)

	// ForwardsInFlight is the current number of queries awaiting an
	// upstream reply.
	ForwardsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "dnsrelayd_forwards_in_flight", Help: "Queries forwarded upstream awaiting a reply"},
	)

	// ForwarderEvictionsTotal counts entries dropped from the
	// forwarder table to make room under capacity pressure.
	ForwarderEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "dnsrelayd_forwarder_evictions_total", Help: "Forwarder table entries evicted for capacity"},
	)

	// ForwarderExpirationsTotal counts in-flight entries that aged out
	// before a matching upstream reply arrived.
	ForwarderExpirationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "dnsrelayd_forwarder_expirations_total", Help: "Forwarder table entries expired without a reply"},
	)

	// DecodeErrorsTotal counts datagrams dropped because they failed
	// wire decoding.
	DecodeErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "dnsrelayd_decode_errors_total", Help: "Datagrams dropped for failing to decode"},
	)

	// RateLimitedTotal counts queries dropped by the per-client rate
	// limiter.
	RateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "dnsrelayd_rate_limited_total", Help: "Queries dropped by the rate limiter"},
	)
)

func init() {
	prometheus.MustRegister(
		QueriesTotal,
		ForwardsInFlight,
		ForwarderEvictionsTotal,
		ForwarderExpirationsTotal,
		DecodeErrorsTotal,
		RateLimitedTotal,
	)
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
