package cache

import (
	"sync/atomic"

	"github.com/relaygate/relaygate/internal/metrics"
)

// Stats holds the relaxed monotonic hit/miss/degraded-hit counters every
// cache (Slot or BlockMap) increments, per §4.3/§5. A nil *Stats is valid
// and all methods become no-ops, so caches can be constructed without
// wiring metrics in tests.
type Stats struct {
	hits     atomic.Int64
	misses   atomic.Int64
	degraded atomic.Int64

	metrics *metrics.Registry
}

// NewStats builds a Stats that also mirrors its counts into m, which may
// be nil.
func NewStats(m *metrics.Registry) *Stats {
	return &Stats{metrics: m}
}

func (s *Stats) hit(name string) {
	if s == nil {
		return
	}
	s.hits.Add(1)
	if s.metrics != nil {
		s.metrics.CacheHits.WithLabelValues(name).Inc()
	}
}

func (s *Stats) miss(name string) {
	if s == nil {
		return
	}
	s.misses.Add(1)
	if s.metrics != nil {
		s.metrics.CacheMisses.WithLabelValues(name).Inc()
	}
}

func (s *Stats) recordDegraded(name string) {
	if s == nil {
		return
	}
	s.degraded.Add(1)
	if s.metrics != nil {
		s.metrics.CacheDegraded.WithLabelValues(name).Inc()
	}
}

// Snapshot returns the current hit/miss/degraded-hit counts, for /status.
func (s *Stats) Snapshot() (hits, misses, degraded int64) {
	if s == nil {
		return 0, 0, 0
	}
	return s.hits.Load(), s.misses.Load(), s.degraded.Load()
}
