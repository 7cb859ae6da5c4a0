// Package metrics collects Prometheus metrics for sign-in flows, the route
// gate and backend identity lookups.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the set of hooks the web layer reports through.
type Recorder interface {
	RecordAuthOperation(op, result string)
	RecordGateDecision(state string)
	RecordUserIDLookup(result string, d time.Duration)
}

// Collector records metrics into a Prometheus registry.
type Collector struct {
	authOps        *prometheus.CounterVec
	gateDecisions  *prometheus.CounterVec
	lookups        *prometheus.CounterVec
	lookupDuration prometheus.Histogram
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_auth_operations_total",
			Help: "Identity provider operations by outcome",
		}, []string{"op", "result"}),
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_gate_decisions_total",
			Help: "Route gate decisions by state",
		}, []string{"state"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_userid_lookups_total",
			Help: "Backend identity lookups by outcome",
		}, []string{"result"}),
		lookupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "authgate_userid_lookup_duration_seconds",
			Help:    "Backend identity lookup latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.authOps,
		c.gateDecisions,
		c.lookups,
		c.lookupDuration,
	)

	return c
}

func (c *Collector) RecordAuthOperation(op, result string) {
	c.authOps.WithLabelValues(op, result).Inc()
}

func (c *Collector) RecordGateDecision(state string) {
	c.gateDecisions.WithLabelValues(state).Inc()
}

// RecordUserIDLookup counts a lookup and observes its latency.
func (c *Collector) RecordUserIDLookup(result string, d time.Duration) {
	c.lookups.WithLabelValues(result).Inc()
	c.lookupDuration.Observe(d.Seconds())
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordAuthOperation(string, string)       {}
func (Nop) RecordGateDecision(string)                {}
func (Nop) RecordUserIDLookup(string, time.Duration) {}
