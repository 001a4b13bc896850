package poll

import (
	"context"
	"time"

	"github.com/relaygate/relaygate/internal/metrics"
	"github.com/relaygate/relaygate/internal/upstream"
	"github.com/relaygate/relaygate/pkg/log"
)

// HealthProbe is the independent periodic task that performs a cheap
// head-state call directly against the pool (bypassing retries, since a
// single failed probe already carries its own signal) and forces a
// failover if it fails. Slow-but-successful calls update the endpoint's
// latency estimate via the pool's normal recordResult path but do not by
// themselves trigger a failover (§4.6).
type HealthProbe struct {
	pool   *upstream.Pool
	period time.Duration

	logger  log.Logger
	metrics *metrics.Registry
}

// NewHealthProbe builds a HealthProbe over pool, probing every period.
func NewHealthProbe(pool *upstream.Pool, period time.Duration, logger log.Logger, m *metrics.Registry) *HealthProbe {
	if logger == nil {
		logger = log.NewLogger()
	}
	return &HealthProbe{
		pool:    pool,
		period:  period,
		logger:  logger.WithComponent("poll.healthprobe"),
		metrics: m,
	}
}

// Run executes one probe every h.period until ctx is canceled.
func (h *HealthProbe) Run(ctx context.Context) {
	ticker := time.NewTicker(h.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.probe(ctx)
		}
	}
}

func (h *HealthProbe) probe(ctx context.Context) {
	_, err := h.pool.Call(ctx, "get_dynamic_global_properties", nil)
	if err != nil {
		h.logger.Warn("health probe failed, forcing failover", log.Err(err))
		h.pool.Failover()
	}
}
