package upstream

import (
	"context"
	"encoding/json"
	"time"
)

// Caller performs a single named JSON-RPC call against one concrete
// endpoint. Implementations own their own wire format; everything above
// this interface (the Pool, the retrying caller, the dispatcher) only knows
// "call a method with params and get back a result or an error".
type Caller interface {
	Call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error)
}

// Endpoint is one upstream RPC target tracked by the Pool. Everything here
// is immutable after construction except Health, which the Pool mutates
// under its own lock (§4.1, §5).
type Endpoint struct {
	ID     string
	Caller Caller
	Health Health
}

// Health is the per-endpoint health record described in §3/§4.1.
type Health struct {
	Healthy       bool
	ErrorCount    int
	LastError     time.Time
	LastSuccess   time.Time
	AvgLatency    time.Duration
	TotalRequests uint64
}

// snapshot returns a copy of the Health record for lock-free reporting
// (e.g. /status), since Health itself is only safe to read under the Pool's
// lock.
func (h Health) snapshot() Health { return h }
