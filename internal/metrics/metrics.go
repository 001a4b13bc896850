// Package metrics exposes relaygate's Prometheus instrumentation, following
// the upstream/cache metric shapes used throughout the RPC-gateway corpus
// (per-endpoint request counts and latency histograms, cache hit/miss
// counters, connection and queue gauges).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles the collectors relaygate registers against a single
// prometheus.Registerer, so callers wire one struct instead of a dozen
// package-level globals.
type Registry struct {
	UpstreamRequests *prometheus.CounterVec
	UpstreamFailures *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec
	UpstreamHealthy  *prometheus.GaugeVec

	CacheHits    *prometheus.CounterVec
	CacheMisses  *prometheus.CounterVec
	CacheDegraded *prometheus.CounterVec

	OpenConnections prometheus.Gauge
	QueueDepth      prometheus.Gauge
	QueueRejected   prometheus.Counter
	RateLimited     prometheus.Counter

	Subscribers *prometheus.GaugeVec

	PollCycles        prometheus.Counter
	PollHeadAdvances  prometheus.Counter
	PollErrors        prometheus.Counter
}

// New constructs and registers a Registry against reg.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relaygate",
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Total calls attempted against an upstream endpoint.",
		}, []string{"endpoint", "method"}),
		UpstreamFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relaygate",
			Subsystem: "upstream",
			Name:      "failures_total",
			Help:      "Total calls against an upstream endpoint that returned an error.",
		}, []string{"endpoint", "method"}),
		UpstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "relaygate",
			Subsystem: "upstream",
			Name:      "latency_seconds",
			Help:      "Observed latency of calls to an upstream endpoint.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint", "method"}),
		UpstreamHealthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "relaygate",
			Subsystem: "upstream",
			Name:      "healthy",
			Help:      "1 if the endpoint is currently marked healthy, else 0.",
		}, []string{"endpoint"}),

		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relaygate",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Cache reads served from a fresh stored value.",
		}, []string{"cache"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relaygate",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Cache reads that required a fresh upstream fetch.",
		}, []string{"cache"}),
		CacheDegraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relaygate",
			Subsystem: "cache",
			Name:      "degraded_hits_total",
			Help:      "Cache reads served stale because a refresh attempt failed.",
		}, []string{"cache"}),

		OpenConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "relaygate",
			Subsystem: "session",
			Name:      "open_connections",
			Help:      "Currently open client sessions.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "relaygate",
			Subsystem: "session",
			Name:      "work_queue_depth",
			Help:      "Current number of entries queued for dispatch.",
		}),
		QueueRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relaygate",
			Subsystem: "session",
			Name:      "work_queue_rejected_total",
			Help:      "Frames rejected because the work queue was full.",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relaygate",
			Subsystem: "session",
			Name:      "rate_limited_total",
			Help:      "Frames rejected by the per-session rate limiter.",
		}),

		Subscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "relaygate",
			Subsystem: "subscription",
			Name:      "subscribers",
			Help:      "Current subscriber count per feed.",
		}, []string{"feed"}),

		PollCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relaygate",
			Subsystem: "poll",
			Name:      "cycles_total",
			Help:      "Poll driver iterations executed.",
		}),
		PollHeadAdvances: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relaygate",
			Subsystem: "poll",
			Name:      "head_advances_total",
			Help:      "Poll cycles that observed a new head height.",
		}),
		PollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relaygate",
			Subsystem: "poll",
			Name:      "errors_total",
			Help:      "Poll cycles where refreshing head state failed.",
		}),
	}

	reg.MustRegister(
		r.UpstreamRequests, r.UpstreamFailures, r.UpstreamLatency, r.UpstreamHealthy,
		r.CacheHits, r.CacheMisses, r.CacheDegraded,
		r.OpenConnections, r.QueueDepth, r.QueueRejected, r.RateLimited,
		r.Subscribers,
		r.PollCycles, r.PollHeadAdvances, r.PollErrors,
	)
	return r
}
