package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/relaygate/relaygate/internal/cache"
	"github.com/relaygate/relaygate/internal/session"
	"github.com/relaygate/relaygate/internal/subscription"
	"github.com/relaygate/relaygate/pkg/log"
)

// Caller is the narrow upstream surface the dispatcher needs: one method
// call, plus the ability to nudge a failover when an error looks
// network-shaped (§4.2, §7). upstream.RetryingCaller satisfies this.
type Caller interface {
	Call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error)
	FailoverIfNetworkError(err error)
}

// Dispatcher parses inbound frames, resolves the method, consults the
// cache, and calls upstream as needed, per the table in §4.4.
type Dispatcher struct {
	caller   Caller
	registry *subscription.Registry

	headSlot    *cache.Slot[json.RawMessage]
	witnessSlot *cache.Slot[json.RawMessage]
	headerMap   *cache.BlockMap[json.RawMessage]
	blockMap    *cache.BlockMap[json.RawMessage]
	opsMap      *cache.BlockMap[json.RawMessage]

	logger log.Logger
}

// New builds a Dispatcher over the given caller, subscription registry,
// and cache instances (constructed by the wiring code in internal/cmd,
// which also hands the same headSlot/witnessSlot/*Map pointers to the poll
// driver so both sides share one cache).
func New(caller Caller, registry *subscription.Registry, headSlot, witnessSlot *cache.Slot[json.RawMessage], headerMap, blockMap, opsMap *cache.BlockMap[json.RawMessage], logger log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.NewLogger()
	}
	return &Dispatcher{
		caller:      caller,
		registry:    registry,
		headSlot:    headSlot,
		witnessSlot: witnessSlot,
		headerMap:   headerMap,
		blockMap:    blockMap,
		opsMap:      opsMap,
		logger:      logger.WithComponent("gateway.dispatcher"),
	}
}

// Dispatch parses raw as a RequestFrame and handles it, sending exactly one
// reply frame (plus, for a subscribe on an already-materialized feed, one
// immediate subscription_update) via sess.Send. It returns an error only
// for conditions the caller (the work queue) should log; a malformed frame
// or unknown method still produces a reply frame and a nil error, per
// §7's "never drops the connection on its own".
func (d *Dispatcher) Dispatch(ctx context.Context, sess *session.Session, raw []byte) error {
	var req RequestFrame
	if err := json.Unmarshal(raw, &req); err != nil {
		return sess.Send(newError("unknown", "", "invalid-frame"))
	}
	if req.Method == "" {
		return sess.Send(newError(req.ID, req.Method, "missing-method"))
	}

	switch resolveMethod(req.Method) {
	case methodHeadState:
		return d.handleSlot(ctx, sess, req, d.headSlot, "get_dynamic_global_properties")
	case methodActiveWitnesses:
		return d.handleSlot(ctx, sess, req, d.witnessSlot, "get_active_witnesses")
	case methodBlockHeader:
		return d.handleBlockMap(ctx, sess, req, d.headerMap, "get_block_header", "Block number is required")
	case methodFullBlock:
		return d.handleBlockMap(ctx, sess, req, d.blockMap, "get_block", "Block number is required")
	case methodOpsInBlock:
		return d.handleOpsInBlock(ctx, sess, req)
	case methodTransaction:
		return d.handleTransaction(ctx, sess, req)
	case methodSubscribeHeadState:
		return d.handleSubscribe(sess, req, subscription.FeedHeadState, feedAliasHeadState, d.headSlot)
	case methodUnsubscribeHeadState:
		return d.handleUnsubscribe(sess, req, subscription.FeedHeadState, feedAliasHeadState)
	case methodSubscribeBlockHeaders:
		return d.handleSubscribeNoSnapshot(sess, req, subscription.FeedBlockHeaders, feedAliasBlockHeaders)
	case methodUnsubscribeBlockHeaders:
		return d.handleUnsubscribe(sess, req, subscription.FeedBlockHeaders, feedAliasBlockHeaders)
	case methodSubscribeFullBlocks:
		return d.handleSubscribeNoSnapshot(sess, req, subscription.FeedFullBlocks, feedAliasFullBlocks)
	case methodUnsubscribeFullBlocks:
		return d.handleUnsubscribe(sess, req, subscription.FeedFullBlocks, feedAliasFullBlocks)
	case methodSubscribeOperations:
		return d.handleSubscribeNoSnapshot(sess, req, subscription.FeedOperations, feedAliasOperations)
	case methodUnsubscribeOperations:
		return d.handleUnsubscribe(sess, req, subscription.FeedOperations, feedAliasOperations)
	case methodSubscribeWitnesses:
		return d.handleSubscribe(sess, req, subscription.FeedWitnesses, feedAliasWitnesses, d.witnessSlot)
	case methodUnsubscribeWitnesses:
		return d.handleUnsubscribe(sess, req, subscription.FeedWitnesses, feedAliasWitnesses)
	default:
		return sess.Send(newError(req.ID, req.Method, fmt.Sprintf("Unsupported method: %s", req.Method)))
	}
}

const (
	feedAliasHeadState    = "global_properties"
	feedAliasBlockHeaders = "block_headers"
	feedAliasFullBlocks   = "blocks"
	feedAliasOperations   = "operations"
	feedAliasWitnesses    = "witnesses"
)

func (d *Dispatcher) handleSlot(ctx context.Context, sess *session.Session, req RequestFrame, slot *cache.Slot[json.RawMessage], upstreamMethod string) error {
	value, _, err := slot.GetOrRefresh(ctx, func(ctx context.Context) (json.RawMessage, error) {
		return d.caller.Call(ctx, upstreamMethod, nil)
	})
	if err != nil {
		d.caller.FailoverIfNetworkError(err)
		return sess.Send(newError(req.ID, req.Method, "upstream-failure"))
	}
	return sess.Send(newResponse(req.ID, json.RawMessage(value)))
}

func (d *Dispatcher) handleBlockMap(ctx context.Context, sess *session.Session, req RequestFrame, m *cache.BlockMap[json.RawMessage], upstreamMethod, missingArgMsg string) error {
	height, ok := paramUint(req.Params, 0)
	if !ok {
		return sess.Send(newError(req.ID, req.Method, missingArgMsg))
	}
	key := strconv.FormatUint(height, 10)
	if v, hit := m.Get(key); hit {
		return sess.Send(newResponse(req.ID, json.RawMessage(v)))
	}
	v, err := d.caller.Call(ctx, upstreamMethod, []interface{}{height})
	if err != nil {
		d.caller.FailoverIfNetworkError(err)
		return sess.Send(newError(req.ID, req.Method, "upstream-failure"))
	}
	m.Set(key, v)
	return sess.Send(newResponse(req.ID, json.RawMessage(v)))
}

func (d *Dispatcher) handleOpsInBlock(ctx context.Context, sess *session.Session, req RequestFrame) error {
	height, ok := paramUint(req.Params, 0)
	if !ok {
		return sess.Send(newError(req.ID, req.Method, "Block number is required"))
	}
	onlyVirtual := paramBool(req.Params, 1, false)
	key := fmt.Sprintf("%d:%v", height, onlyVirtual)

	if v, hit := d.opsMap.Get(key); hit {
		return sess.Send(newResponse(req.ID, json.RawMessage(v)))
	}
	v, err := d.caller.Call(ctx, "get_ops_in_block", []interface{}{height, onlyVirtual})
	if err != nil {
		d.caller.FailoverIfNetworkError(err)
		return sess.Send(newError(req.ID, req.Method, "upstream-failure"))
	}
	d.opsMap.Set(key, v)
	return sess.Send(newResponse(req.ID, json.RawMessage(v)))
}

func (d *Dispatcher) handleTransaction(ctx context.Context, sess *session.Session, req RequestFrame) error {
	txID, ok := paramString(req.Params, 0)
	if !ok || txID == "" {
		return sess.Send(newError(req.ID, req.Method, "Transaction id is required"))
	}
	v, err := d.caller.Call(ctx, "get_transaction", []interface{}{txID})
	if err != nil {
		d.caller.FailoverIfNetworkError(err)
		return sess.Send(newError(req.ID, req.Method, "upstream-failure"))
	}
	return sess.Send(newResponse(req.ID, json.RawMessage(v)))
}

// handleSubscribe acknowledges a subscribe request and, if the backing
// slot already has a materialized value, follows the response with an
// immediate subscription_update so a client never sees a gap between
// subscribe-ack and first datum (§4.4, S4).
func (d *Dispatcher) handleSubscribe(sess *session.Session, req RequestFrame, feed subscription.Feed, alias string, slot *cache.Slot[json.RawMessage]) error {
	d.registry.Subscribe(feed, sess)
	if err := sess.Send(newResponse(req.ID, map[string]interface{}{"subscribed": true, "type": alias})); err != nil {
		return err
	}
	if v, ok := slot.Get(); ok {
		return sess.Send(SubscriptionUpdateFrame{
			Type:         "subscription_update",
			Subscription: alias,
			Data:         json.RawMessage(v),
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
		})
	}
	return nil
}

// handleSubscribeNoSnapshot is handleSubscribe for feeds with no singleton
// slot to snapshot from (block-derived feeds are keyed by height, so there
// is no single "current" value to hand back immediately).
func (d *Dispatcher) handleSubscribeNoSnapshot(sess *session.Session, req RequestFrame, feed subscription.Feed, alias string) error {
	d.registry.Subscribe(feed, sess)
	return sess.Send(newResponse(req.ID, map[string]interface{}{"subscribed": true, "type": alias}))
}

func (d *Dispatcher) handleUnsubscribe(sess *session.Session, req RequestFrame, feed subscription.Feed, alias string) error {
	d.registry.Unsubscribe(feed, sess)
	return sess.Send(newResponse(req.ID, map[string]interface{}{"subscribed": false, "type": alias}))
}

func paramUint(params []interface{}, idx int) (uint64, bool) {
	if idx >= len(params) {
		return 0, false
	}
	switch v := params[idx].(type) {
	case float64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func paramBool(params []interface{}, idx int, def bool) bool {
	if idx >= len(params) {
		return def
	}
	b, ok := params[idx].(bool)
	if !ok {
		return def
	}
	return b
}

func paramString(params []interface{}, idx int) (string, bool) {
	if idx >= len(params) {
		return "", false
	}
	s, ok := params[idx].(string)
	return s, ok
}
