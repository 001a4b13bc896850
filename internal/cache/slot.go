package cache

import (
	"context"
	"sync"
	"time"
)

// Slot is a generic singleton cache cell: one value, refreshed on demand
// once its TTL has elapsed. It implements get-or-refresh semantics: a
// refresh failure does not evict the stored value, it falls back to
// serving the stale value as a degraded hit (§4.3).
type Slot[T any] struct {
	mu    sync.Mutex
	ttl   time.Duration
	value T
	has   bool
	at    time.Time

	stats *Stats
	name  string
}

// NewSlot builds an empty Slot with the given TTL. name tags the stats
// counters this slot increments (e.g. "head-state", "witnesses").
func NewSlot[T any](ttl time.Duration, stats *Stats, name string) *Slot[T] {
	return &Slot[T]{ttl: ttl, stats: stats, name: name}
}

// Get returns the current value without triggering a refresh or checking
// its TTL, for callers that only need whatever is stored (e.g. the
// dispatcher's subscribe snapshot and /status).
func (s *Slot[T]) Get() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.has
}

// Set stores a fresh value, stamping it as current as of now. Used by the
// poll driver once it has a new head state to publish.
func (s *Slot[T]) Set(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
	s.has = true
	s.at = time.Now()
}

// GetOrRefresh returns the stored value if still within TTL. Otherwise it
// calls refresh; on success the new value replaces the stored one. On
// failure, if a stored value exists it is returned as a degraded hit
// (err is nil, degraded is true); if none exists the refresh error is
// returned.
func (s *Slot[T]) GetOrRefresh(ctx context.Context, refresh func(context.Context) (T, error)) (value T, degraded bool, err error) {
	s.mu.Lock()
	if s.has && time.Since(s.at) < s.ttl {
		v := s.value
		s.mu.Unlock()
		s.stats.hit(s.name)
		return v, false, nil
	}
	s.mu.Unlock()

	s.stats.miss(s.name)
	fresh, rerr := refresh(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if rerr == nil {
		s.value = fresh
		s.has = true
		s.at = time.Now()
		return s.value, false, nil
	}
	if s.has {
		s.stats.recordDegraded(s.name)
		return s.value, true, nil
	}
	var zero T
	return zero, false, rerr
}

// Drop clears the stored value, used when the upstream pool fails over to
// a different endpoint that may disagree with cached state (§4.1).
func (s *Slot[T]) Drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	s.value = zero
	s.has = false
}
