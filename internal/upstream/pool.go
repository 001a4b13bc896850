package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/relaygate/relaygate/internal/metrics"
	"github.com/relaygate/relaygate/pkg/log"
)

// ErrNoEndpoints is returned by NewPool when given an empty endpoint list.
var ErrNoEndpoints = errors.New("upstream: pool has no endpoints")

// Pool selects one endpoint at a time (the "current" endpoint is sticky
// across calls) and exposes a single call-by-method primitive, while
// tracking per-endpoint health (§4.1).
type Pool struct {
	mu             sync.Mutex
	endpoints      []*Endpoint
	current        int
	recoveryWindow time.Duration

	logger  log.Logger
	metrics *metrics.Registry

	switchMu  sync.Mutex
	onSwitch  []func()
}

// NewPool constructs a Pool over endpoints, initially sticky on the first
// entry. All endpoints start healthy; the first real failure is what moves
// the filter logic in Failover.
func NewPool(endpoints []*Endpoint, recoveryWindow time.Duration, logger log.Logger, m *metrics.Registry) (*Pool, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}
	for _, ep := range endpoints {
		ep.Health.Healthy = true
	}
	if logger == nil {
		logger = log.NewLogger()
	}
	return &Pool{
		endpoints:      endpoints,
		recoveryWindow: recoveryWindow,
		logger:         logger.WithComponent("upstream.pool"),
		metrics:        m,
	}, nil
}

// OnSwitch registers a callback invoked (outside the pool's lock) whenever
// Failover actually changes the current endpoint. The cache layer uses this
// to drop cached state that a different endpoint might disagree on (§4.1).
func (p *Pool) OnSwitch(fn func()) {
	p.switchMu.Lock()
	p.onSwitch = append(p.onSwitch, fn)
	p.switchMu.Unlock()
}

// Current returns the identifier of the currently sticky endpoint.
func (p *Pool) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.endpoints[p.current].ID
}

// CurrentIndex returns the index of the currently sticky endpoint, for
// /status reporting.
func (p *Pool) CurrentIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Snapshot returns a point-in-time copy of every endpoint's id and health,
// safe to read without holding the pool's lock afterward.
func (p *Pool) Snapshot() []struct {
	ID     string
	Health Health
} {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]struct {
		ID     string
		Health Health
	}, len(p.endpoints))
	for i, ep := range p.endpoints {
		out[i] = struct {
			ID     string
			Health Health
		}{ID: ep.ID, Health: ep.Health.snapshot()}
	}
	return out
}

// Call invokes method against the current sticky endpoint and updates its
// health record based on the outcome. It never holds the pool's lock across
// the network call itself (§5).
func (p *Pool) Call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	p.mu.Lock()
	ep := p.endpoints[p.current]
	p.mu.Unlock()

	start := time.Now()
	result, err := ep.Caller.Call(ctx, method, params)
	latency := time.Since(start)

	p.recordResult(ep, err, latency)
	if p.metrics != nil {
		p.metrics.UpstreamRequests.WithLabelValues(ep.ID, method).Inc()
		p.metrics.UpstreamLatency.WithLabelValues(ep.ID, method).Observe(latency.Seconds())
		if err != nil {
			p.metrics.UpstreamFailures.WithLabelValues(ep.ID, method).Inc()
		}
	}
	return result, err
}

// recordResult applies the §4.1 health-update formulas under the pool lock.
func (p *Pool) recordResult(ep *Endpoint, err error, latency time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := &ep.Health
	h.TotalRequests++
	if h.TotalRequests == 1 {
		h.AvgLatency = latency
	} else {
		h.AvgLatency = time.Duration((int64(h.AvgLatency)*(int64(h.TotalRequests)-1) + int64(latency)) / int64(h.TotalRequests))
	}

	if err != nil {
		h.ErrorCount++
		h.LastError = time.Now()
		return
	}
	h.Healthy = true
	h.LastSuccess = time.Now()
	if p.metrics != nil {
		p.metrics.UpstreamHealthy.WithLabelValues(ep.ID).Set(1)
	}
}

// Failover marks the current endpoint unhealthy (the act of failing over
// implies it just disappointed a caller) and rotates to the best-ranked
// survivor. If no endpoint survives the recovery-window filter, the current
// endpoint is retained unchanged (§4.1).
func (p *Pool) Failover() {
	p.mu.Lock()
	out := p.endpoints[p.current]
	out.Health.Healthy = false
	if p.metrics != nil {
		p.metrics.UpstreamHealthy.WithLabelValues(out.ID).Set(0)
	}

	now := time.Now()
	var candidates []int
	for i, ep := range p.endpoints {
		if ep.Health.Healthy || (!ep.Health.LastError.IsZero() && now.Sub(ep.Health.LastError) > p.recoveryWindow) {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		p.mu.Unlock()
		return
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		ea, eb := p.endpoints[candidates[a]], p.endpoints[candidates[b]]
		if ea.Health.Healthy != eb.Health.Healthy {
			return ea.Health.Healthy
		}
		if ea.Health.ErrorCount != eb.Health.ErrorCount {
			return ea.Health.ErrorCount < eb.Health.ErrorCount
		}
		return ea.Health.AvgLatency < eb.Health.AvgLatency
	})

	next := candidates[0]
	changed := next != p.current
	p.current = next
	nextID := p.endpoints[next].ID
	p.mu.Unlock()

	if changed {
		p.logger.Warn("failing over to a different upstream", log.Str("endpoint", nextID))
		p.switchMu.Lock()
		hooks := append([]func(){}, p.onSwitch...)
		p.switchMu.Unlock()
		for _, fn := range hooks {
			fn()
		}
	}
}

// IsNetworkOrTimeout classifies an upstream error as a network/timeout
// failure for the extra out-of-band failover trigger (§4.2, §7). Typed
// errors are preferred; the string fallback covers opaque upstream-caller
// errors, since the caller's wire client is an external collaborator whose
// error types this package doesn't control.
func IsNetworkOrTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{"timeout", "timed out", "connection refused", "no such host", "eof", "reset by peer"} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
