package session

import (
	"sync"
	"time"

	"github.com/relaygate/relaygate/pkg/id"
)

var idGen = id.NewGenerator()

// Frame is anything the dispatcher or poll driver hands to a session for
// delivery to its transport. Kept as interface{} here since its concrete
// shapes (response, error, subscription update, legacy broadcast, hello)
// live in internal/gateway, which depends on this package, not the other
// way around.
type Frame = interface{}

// Sender is the transport-level write primitive a Session wraps: enqueue a
// frame for the write pump, or report that the connection is gone.
type Sender interface {
	Enqueue(frame Frame) error
}

// Session is the gateway's in-process representation of one accepted
// connection (§3). Subscription membership is tracked by
// internal/subscription.Registry, not duplicated here, to keep a single
// source of truth for "who gets feed X".
type Session struct {
	id          string
	rateLimiter *RateLimiter

	mu     sync.Mutex
	closed bool
	sender Sender
}

// New builds a Session with a fresh sortable id and the given per-session
// rate limiter and transport sender.
func New(rateLimiter *RateLimiter, sender Sender) *Session {
	return &Session{
		id:          idGen.Next().String(),
		rateLimiter: rateLimiter,
		sender:      sender,
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// AllowFrame reports whether the session's rate limiter currently permits
// one more inbound frame.
func (s *Session) AllowFrame() bool {
	return s.rateLimiter.Allow()
}

// RateLimitResetAt returns when the session's current rate-limit window
// closes, for reporting in a rate-limit error frame.
func (s *Session) RateLimitResetAt() time.Time {
	return s.rateLimiter.ResetAt()
}

// Send implements subscription.Writer, delivering frame to the transport's
// write pump unless the session has already been closed.
func (s *Session) Send(frame Frame) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return errClosed
	}
	return s.sender.Enqueue(frame)
}

// Close marks the session closed so further Send calls fail fast instead
// of racing the transport's teardown.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
