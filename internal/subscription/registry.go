package subscription

import (
	"sync"

	"github.com/relaygate/relaygate/internal/metrics"
	"github.com/relaygate/relaygate/pkg/log"
)

// Feed names the closed set of things a session can subscribe to (§3).
type Feed string

const (
	FeedHeadState   Feed = "head-state"
	FeedBlockHeaders Feed = "block-headers"
	FeedFullBlocks  Feed = "full-blocks"
	FeedOperations  Feed = "operations"
	FeedWitnesses   Feed = "witnesses"
)

// Writer is whatever a session exposes to receive a broadcast frame. It is
// the narrow surface the registry needs; the session package's Session
// satisfies it.
type Writer interface {
	ID() string
	Send(frame interface{}) error
}

// Registry maps each feed to the set of sessions subscribed to it. Add is
// idempotent, Remove tolerates removing a session that was never a member,
// and Broadcast prunes any session whose write fails or is already closed
// (§4.5). One mutex covers the whole map, which is the finest grain that
// avoids per-feed lock-ordering concerns when a session subscribes to more
// than one feed at once.
type Registry struct {
	mu      sync.Mutex
	members map[Feed]map[string]Writer
	all     map[string]Writer

	logger  log.Logger
	metrics *metrics.Registry
}

// NewRegistry builds an empty Registry.
func NewRegistry(logger log.Logger, m *metrics.Registry) *Registry {
	if logger == nil {
		logger = log.NewLogger()
	}
	return &Registry{
		members: make(map[Feed]map[string]Writer),
		all:     make(map[string]Writer),
		logger:  logger.WithComponent("subscription.registry"),
		metrics: m,
	}
}

// RegisterSession adds w to the set of all connected sessions, independent
// of any feed membership. BroadcastExcept uses this to reach sessions that
// are not subscribed to anything. The connection front-end calls this on
// accept and RemoveSession on close.
func (r *Registry) RegisterSession(w Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all[w.ID()] = w
}

// Subscribe adds w to feed's subscriber set. Calling it again for the same
// session and feed is a no-op.
func (r *Registry) Subscribe(feed Feed, w Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.members[feed]
	if !ok {
		set = make(map[string]Writer)
		r.members[feed] = set
	}
	set[w.ID()] = w
	r.reportLocked(feed)
}

// Unsubscribe removes w from feed's subscriber set, if present.
func (r *Registry) Unsubscribe(feed Feed, w Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.members[feed]
	if !ok {
		return
	}
	delete(set, w.ID())
	r.reportLocked(feed)
}

// RemoveSession removes a session from every feed it was subscribed to and
// from the all-sessions set, used when a connection closes.
func (r *Registry) RemoveSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.all, sessionID)
	for feed, set := range r.members {
		if _, ok := set[sessionID]; ok {
			delete(set, sessionID)
			r.reportLocked(feed)
		}
	}
}

// IsSubscribed reports whether any session at all is subscribed to feed,
// which the poll driver uses to decide whether a derived feed needs
// fetching this cycle (§4.6).
func (r *Registry) IsSubscribed(feed Feed) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members[feed]) > 0
}

// Count reports the number of sessions currently subscribed to feed, for
// /status reporting.
func (r *Registry) Count(feed Feed) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members[feed])
}

// Broadcast sends frame to every session subscribed to feed, pruning any
// session whose Send fails. It does not hold the registry's lock across the
// writes themselves, only while collecting the current subscriber list, so
// a slow session's write can never block subscribe/unsubscribe elsewhere.
func (r *Registry) Broadcast(feed Feed, frame interface{}) {
	r.mu.Lock()
	set := r.members[feed]
	targets := make([]Writer, 0, len(set))
	for _, w := range set {
		targets = append(targets, w)
	}
	r.mu.Unlock()

	var dead []string
	for _, w := range targets {
		if err := w.Send(frame); err != nil {
			dead = append(dead, w.ID())
		}
	}
	if len(dead) == 0 {
		return
	}

	r.mu.Lock()
	set = r.members[feed]
	for _, id := range dead {
		delete(set, id)
	}
	r.reportLocked(feed)
	r.mu.Unlock()
	r.logger.Debug("pruned dead subscribers", log.Str("feed", string(feed)), log.Int("count", len(dead)))
}

// BroadcastExcept sends frame to every registered session that is NOT a
// member of feed, so a given session receives exactly one of the two
// dual-broadcast frame shapes for the same change (§4.5).
func (r *Registry) BroadcastExcept(feed Feed, frame interface{}) {
	r.mu.Lock()
	excluded := r.members[feed]
	targets := make([]Writer, 0, len(r.all))
	for id, w := range r.all {
		if _, skip := excluded[id]; skip {
			continue
		}
		targets = append(targets, w)
	}
	r.mu.Unlock()

	var dead []string
	for _, w := range targets {
		if err := w.Send(frame); err != nil {
			dead = append(dead, w.ID())
		}
	}
	if len(dead) == 0 {
		return
	}

	r.mu.Lock()
	for _, id := range dead {
		delete(r.all, id)
	}
	r.mu.Unlock()
}

func (r *Registry) reportLocked(feed Feed) {
	if r.metrics == nil {
		return
	}
	r.metrics.Subscribers.WithLabelValues(string(feed)).Set(float64(len(r.members[feed])))
}
