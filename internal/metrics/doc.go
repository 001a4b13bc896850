// Package metrics wires relaygate's counters, gauges, and histograms to a
// Prometheus registry, following the endpoint/cache metric label shapes
// common in the JSON-RPC gateway corpus this codebase is patterned on.
//
// Callers construct one Registry with New(prometheus.DefaultRegisterer)
// during startup, the registerer promhttp.Handler serves on /metrics, and
// pass it by reference into the upstream pool, cache stats, subscription
// registry, work queue, WebSocket front-end, poll driver, and health probe.
// /status does not read from it; it reports the cache stats and the other
// components' counters directly.
package metrics
