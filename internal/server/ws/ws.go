package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relaygate/relaygate/internal/gateway"
	"github.com/relaygate/relaygate/internal/metrics"
	"github.com/relaygate/relaygate/internal/session"
	"github.com/relaygate/relaygate/internal/subscription"
	"github.com/relaygate/relaygate/pkg/log"
)

// writeWait bounds how long a single frame write may block before the
// write pump gives up on a stalled peer.
const writeWait = 10 * time.Second

// Handler upgrades incoming HTTP requests to the bidirectional JSON-frame
// WebSocket channel, running one read-pump and one write-pump goroutine
// per accepted session (§4.9), grounded on the pack's connected-clients
// map plus per-connection read/write loop pattern, generalized to one
// outbound channel per connection instead of a shared fan-out map so a
// slow peer's write never blocks another session's.
type Handler struct {
	upgrader websocket.Upgrader

	admitter          *session.Admitter
	registry          *subscription.Registry
	queue             *gateway.WorkQueue
	requestsPerMinute int
	rateWindow        time.Duration
	sendBuffer        int

	logger  log.Logger
	metrics *metrics.Registry
}

// Config bundles Handler's construction parameters.
type Config struct {
	Admitter          *session.Admitter
	Registry          *subscription.Registry
	Queue             *gateway.WorkQueue
	AllowedOrigins    []string
	RequestsPerMinute int
	RateWindow        time.Duration
	SendBuffer        int
	Logger            log.Logger
	Metrics           *metrics.Registry
}

// New builds a Handler. AllowedOrigins controls CheckOrigin; an empty list
// or a "*" entry allows any origin (matching an unset CORS allow-list defaulting open,
// as the teacher's HTTP layer does for introspection routes).
func New(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewLogger()
	}
	originSet := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		originSet[o] = true
	}
	sendBuffer := cfg.SendBuffer
	if sendBuffer <= 0 {
		sendBuffer = 32
	}

	return &Handler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(originSet) == 0 || originSet["*"] {
					return true
				}
				return originSet[r.Header.Get("Origin")]
			},
		},
		admitter:          cfg.Admitter,
		registry:          cfg.Registry,
		queue:             cfg.Queue,
		requestsPerMinute: cfg.RequestsPerMinute,
		rateWindow:        cfg.RateWindow,
		sendBuffer:        sendBuffer,
		logger:            logger.WithComponent("server.ws"),
		metrics:           cfg.Metrics,
	}
}

// ServeHTTP upgrades the connection, enforces the admission cap, sends the
// connection hello frame synchronously, then runs the read/write pumps
// until the peer disconnects or the server shuts down.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", log.Err(err))
		return
	}

	if !h.admitter.TryAdmit() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "connection capacity reached"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	defer h.admitter.Release()

	sender := &connSender{ch: make(chan interface{}, h.sendBuffer)}
	rl := session.NewRateLimiter(h.requestsPerMinute, h.rateWindow)
	sess := session.New(rl, sender)

	h.registry.RegisterSession(sess)
	defer h.registry.RemoveSession(sess.ID())

	if h.metrics != nil {
		h.metrics.OpenConnections.Inc()
		defer h.metrics.OpenConnections.Dec()
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go writePump(ctx, conn, sender)

	if err := sess.Send(gateway.NewHello(h.requestsPerMinute)); err != nil {
		h.logger.Warn("failed to send hello frame", log.Err(err))
		sess.Close()
		conn.Close()
		return
	}

	h.readPump(conn, sess)
	sess.Close()
	conn.Close()
}

// readPump runs synchronously on the request goroutine, one per session,
// reading frames, applying the rate limiter, and submitting to the shared
// work queue (§4.9).
func (h *Handler) readPump(conn *websocket.Conn, sess *session.Session) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		if !sess.AllowFrame() {
			if h.metrics != nil {
				h.metrics.RateLimited.Inc()
			}
			resetAt := sess.RateLimitResetAt().UnixMilli()
			_ = sess.Send(rateLimitError(raw, resetAt))
			continue
		}

		if err := h.queue.TrySubmit(sess, raw); err != nil {
			_ = sess.Send(queueFullError(raw))
			continue
		}
	}
}

func rateLimitError(raw []byte, resetAt int64) interface{} {
	id, method := peekIDAndMethod(raw)
	return map[string]interface{}{
		"id":             id,
		"type":           "error",
		"error":          "rate-limited",
		"method":         method,
		"rateLimitReset": resetAt,
	}
}

func queueFullError(raw []byte) interface{} {
	id, method := peekIDAndMethod(raw)
	return map[string]interface{}{
		"id":     id,
		"type":   "error",
		"error":  "queue-full",
		"method": method,
	}
}

func peekIDAndMethod(raw []byte) (interface{}, string) {
	var partial struct {
		ID     interface{} `json:"id"`
		Method string      `json:"method"`
	}
	if err := json.Unmarshal(raw, &partial); err != nil {
		return "unknown", ""
	}
	return partial.ID, partial.Method
}

// connSender buffers outbound frames for the write pump; it is the Sender
// a Session enqueues to.
type connSender struct {
	ch chan interface{}
}

func (s *connSender) Enqueue(frame interface{}) error {
	select {
	case s.ch <- frame:
		return nil
	default:
		return fmt.Errorf("server/ws: send buffer full")
	}
}

// writePump is the single goroutine allowed to call WriteJSON on conn,
// since gorilla/websocket forbids concurrent writers on one connection.
func writePump(ctx context.Context, conn *websocket.Conn, sender *connSender) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-sender.ch:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		}
	}
}
