package upstream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/relaygate/relaygate/pkg/log"
)

// RetryingCaller wraps a Pool with bounded retries and failover, presenting
// the same narrow method-call surface to the dispatcher above it (§4.2).
type RetryingCaller struct {
	pool     *Pool
	attempts int
	baseDelay time.Duration
	logger   log.Logger
}

// NewRetryingCaller builds a RetryingCaller over pool, retrying up to
// attempts times with an attempt*baseDelay backoff between tries.
func NewRetryingCaller(pool *Pool, attempts int, baseDelay time.Duration, logger log.Logger) *RetryingCaller {
	if attempts < 1 {
		attempts = 1
	}
	if logger == nil {
		logger = log.NewLogger()
	}
	return &RetryingCaller{
		pool:      pool,
		attempts:  attempts,
		baseDelay: baseDelay,
		logger:    logger.WithComponent("upstream.retrying"),
	}
}

// Call attempts method up to r.attempts times. Each failure fails over to
// the next-best endpoint and waits attempt*baseDelay before retrying. The
// last attempt propagates the raw upstream error unchanged (§4.2).
func (r *RetryingCaller) Call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		result, err := r.pool.Call(ctx, method, params)
		if err == nil {
			return result, nil
		}
		lastErr = err
		r.logger.Warn("upstream call failed",
			log.Str("method", method),
			log.Int("attempt", attempt),
			log.Err(err),
		)

		r.pool.Failover()

		if attempt == r.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * r.baseDelay):
		}
	}
	return nil, lastErr
}

// Failover unconditionally rotates the underlying pool to the next-best
// endpoint, for callers like the poll driver that rotate on any refresh
// failure regardless of error shape (§4.6).
func (r *RetryingCaller) Failover() {
	r.pool.Failover()
}

// FailoverIfNetworkError triggers one extra pool failover when err is
// network/timeout-shaped, beyond whatever failovers already happened
// inside Call's retry loop. The dispatcher calls this from its error path
// once retries are exhausted, so a run of network failures converges onto
// a healthy endpoint immediately instead of waiting for the next call to
// fail too (§4.2, §7).
func (r *RetryingCaller) FailoverIfNetworkError(err error) {
	if IsNetworkOrTimeout(err) {
		r.pool.Failover()
	}
}
