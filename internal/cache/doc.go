// Package cache implements relaygate's two cache shapes: Slot, a singleton
// get-or-refresh cell with degraded-hit fallback, and BlockMap, a bounded
// FIFO-eviction keyed map for immutable per-height artifacts. Both report
// through a shared Stats so /status and /metrics see one set of numbers.
package cache
