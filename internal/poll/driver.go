package poll

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"sync"
	"time"

	"github.com/relaygate/relaygate/internal/cache"
	"github.com/relaygate/relaygate/internal/metrics"
	"github.com/relaygate/relaygate/internal/subscription"
	"github.com/relaygate/relaygate/pkg/log"
)

// Caller is the narrow upstream surface the poll driver needs: call a
// method, and rotate endpoints unconditionally on a refresh failure
// (§4.6), independent of the classified extra-failover path the
// dispatcher uses on its own error path.
type Caller interface {
	Call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error)
	Failover()
}

type headState struct {
	HeadBlockNumber uint64 `json:"head_block_number"`
}

// Driver is the single periodic task that refreshes head state, detects
// height changes, fetches and fans out derived per-height artifacts only
// for subscribed feeds, and emits the legacy broadcast to everyone else
// (§4.6).
type Driver struct {
	caller   Caller
	registry *subscription.Registry

	headSlot    *cache.Slot[json.RawMessage]
	witnessSlot *cache.Slot[json.RawMessage]
	headerMap   *cache.BlockMap[json.RawMessage]
	blockMap    *cache.BlockMap[json.RawMessage]
	opsMap      *cache.BlockMap[json.RawMessage]

	period time.Duration

	mu             sync.Mutex
	lastHeight     uint64
	lastWitnesses  json.RawMessage

	logger  log.Logger
	metrics *metrics.Registry
}

// New builds a Driver. The cache pointers must be the same ones the
// dispatcher reads from, so a poll-driven refresh is visible to clients.
func New(caller Caller, registry *subscription.Registry, headSlot, witnessSlot *cache.Slot[json.RawMessage], headerMap, blockMap, opsMap *cache.BlockMap[json.RawMessage], period time.Duration, logger log.Logger, m *metrics.Registry) *Driver {
	if logger == nil {
		logger = log.NewLogger()
	}
	return &Driver{
		caller:      caller,
		registry:    registry,
		headSlot:    headSlot,
		witnessSlot: witnessSlot,
		headerMap:   headerMap,
		blockMap:    blockMap,
		opsMap:      opsMap,
		period:      period,
		logger:      logger.WithComponent("poll.driver"),
		metrics:     m,
	}
}

// Run executes one poll cycle every d.period until ctx is canceled.
func (d *Driver) Run(ctx context.Context) {
	ticker := time.NewTicker(d.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.cycle(ctx)
		}
	}
}

func (d *Driver) cycle(ctx context.Context) {
	if d.metrics != nil {
		d.metrics.PollCycles.Inc()
	}

	raw, err := d.caller.Call(ctx, "get_dynamic_global_properties", nil)
	if err != nil {
		d.logger.Warn("head-state refresh failed, rotating endpoint", log.Err(err))
		if d.metrics != nil {
			d.metrics.PollErrors.Inc()
		}
		d.caller.Failover()
		return
	}
	d.headSlot.Set(raw)

	var hs headState
	if err := json.Unmarshal(raw, &hs); err != nil {
		d.logger.Warn("head-state decode failed", log.Err(err))
		return
	}

	d.mu.Lock()
	advanced := hs.HeadBlockNumber != d.lastHeight
	d.lastHeight = hs.HeadBlockNumber
	d.mu.Unlock()

	d.pollWitnesses(ctx)

	if !advanced {
		return
	}
	if d.metrics != nil {
		d.metrics.PollHeadAdvances.Inc()
	}

	d.fanOutHeight(ctx, hs.HeadBlockNumber)
	d.broadcast(subscription.FeedHeadState, "head_state", raw)
	d.legacyBroadcast(raw)
}

// fanOutHeight fetches and broadcasts each block-height-derived artifact,
// but only for feeds that currently have at least one subscriber (§4.6
// step 3).
func (d *Driver) fanOutHeight(ctx context.Context, height uint64) {
	key := strconv.FormatUint(height, 10)

	if d.registry.IsSubscribed(subscription.FeedBlockHeaders) {
		if v, err := d.fetchAndCache(ctx, d.headerMap, key, "get_block_header", []interface{}{height}); err == nil {
			d.broadcast(subscription.FeedBlockHeaders, "block_headers", v)
		}
	}
	if d.registry.IsSubscribed(subscription.FeedFullBlocks) {
		if v, err := d.fetchAndCache(ctx, d.blockMap, key, "get_block", []interface{}{height}); err == nil {
			d.broadcast(subscription.FeedFullBlocks, "blocks", v)
		}
	}
	if d.registry.IsSubscribed(subscription.FeedOperations) {
		opsKey := fmt.Sprintf("%d:false", height)
		if v, err := d.fetchAndCache(ctx, d.opsMap, opsKey, "get_ops_in_block", []interface{}{height, false}); err == nil {
			d.broadcast(subscription.FeedOperations, "operations", v)
		}
	}
}

func (d *Driver) fetchAndCache(ctx context.Context, m *cache.BlockMap[json.RawMessage], key, method string, params []interface{}) (json.RawMessage, error) {
	v, err := d.caller.Call(ctx, method, params)
	if err != nil {
		d.logger.Warn("derived-feed fetch failed", log.Str("method", method), log.Err(err))
		return nil, err
	}
	m.Set(key, v)
	return v, nil
}

// pollWitnesses refreshes the witness list and broadcasts to the witnesses
// feed only on an actual deep-value change (§4.6).
func (d *Driver) pollWitnesses(ctx context.Context) {
	raw, _, err := d.witnessSlot.GetOrRefresh(ctx, func(ctx context.Context) (json.RawMessage, error) {
		return d.caller.Call(ctx, "get_active_witnesses", nil)
	})
	if err != nil {
		return
	}

	d.mu.Lock()
	changed := !sameJSON(d.lastWitnesses, raw)
	d.lastWitnesses = raw
	d.mu.Unlock()

	if changed {
		d.broadcast(subscription.FeedWitnesses, "witnesses", raw)
	}
}

func sameJSON(a, b json.RawMessage) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	var va, vb interface{}
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}

func (d *Driver) broadcast(feed subscription.Feed, alias string, data json.RawMessage) {
	d.registry.Broadcast(feed, subscriptionUpdate(alias, data))
}

func subscriptionUpdate(alias string, data json.RawMessage) interface{} {
	return map[string]interface{}{
		"type":         "subscription_update",
		"subscription": alias,
		"data":         data,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	}
}

// legacyBroadcast emits the backward-compatible broadcast frame to every
// session NOT subscribed to head-state, so a given session receives
// exactly one of the two frame shapes for the same change (§4.5).
func (d *Driver) legacyBroadcast(raw json.RawMessage) {
	frame := map[string]interface{}{
		"type":      "broadcast",
		"method":    "dynamic_global_properties_update",
		"data":      raw,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	d.registry.BroadcastExcept(subscription.FeedHeadState, frame)
}
