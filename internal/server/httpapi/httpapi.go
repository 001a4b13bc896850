// Package httpapi serves relaygate's HTTP introspection surface on the
// same port as the WebSocket endpoint: /health, /status, a catch-all
// service document, CORS preflight, and /metrics.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relaygate/relaygate/internal/cache"
	"github.com/relaygate/relaygate/internal/session"
	"github.com/relaygate/relaygate/internal/subscription"
	"github.com/relaygate/relaygate/internal/upstream"
)

// Handler serves /health, /status, the catch-all document, and CORS
// preflight. It holds no state of its own beyond pointers into the
// components it reports on.
type Handler struct {
	startedAt time.Time

	pool        *upstream.Pool
	admitter    *session.Admitter
	registry    *subscription.Registry
	queueLen    func() int
	headSlot    *cache.Slot[json.RawMessage]
	witnessSlot *cache.Slot[json.RawMessage]
	stats       *cache.Stats

	serviceName    string
	allowedOrigins []string
}

// Config bundles Handler's construction parameters.
type Config struct {
	ServiceName    string
	StartedAt      time.Time
	Pool           *upstream.Pool
	Admitter       *session.Admitter
	Registry       *subscription.Registry
	QueueLen       func() int
	HeadSlot       *cache.Slot[json.RawMessage]
	WitnessSlot    *cache.Slot[json.RawMessage]
	Stats          *cache.Stats
	AllowedOrigins []string
}

// New builds a Handler.
func New(cfg Config) *Handler {
	return &Handler{
		startedAt:      cfg.StartedAt,
		pool:           cfg.Pool,
		admitter:       cfg.Admitter,
		registry:       cfg.Registry,
		queueLen:       cfg.QueueLen,
		headSlot:       cfg.HeadSlot,
		witnessSlot:    cfg.WitnessSlot,
		stats:          cfg.Stats,
		serviceName:    cfg.ServiceName,
		allowedOrigins: cfg.AllowedOrigins,
	}
}

// Register wires the handler's routes, plus /metrics, onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.withCORS(h.handleHealth))
	mux.HandleFunc("/status", h.withCORS(h.handleStatus))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/", h.withCORS(h.handleCatchAll))
}

func (h *Handler) withCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if h.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next(w, r)
	}
}

func (h *Handler) originAllowed(origin string) bool {
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startedAt)

	subscribers := make(map[string]int)
	for _, feed := range []subscription.Feed{
		subscription.FeedHeadState,
		subscription.FeedBlockHeaders,
		subscription.FeedFullBlocks,
		subscription.FeedOperations,
		subscription.FeedWitnesses,
	} {
		subscribers[string(feed)] = h.registry.Count(feed)
	}

	_, headFresh := h.headSlot.Get()
	_, witnessFresh := h.witnessSlot.Get()

	hits, misses, degraded := h.stats.Snapshot()

	endpoints := h.pool.Snapshot()
	endpointIDs := make([]string, len(endpoints))
	for i, ep := range endpoints {
		endpointIDs[i] = ep.ID
	}

	queueLen := 0
	if h.queueLen != nil {
		queueLen = h.queueLen()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":           h.serviceName,
		"uptimeMs":          uptime.Milliseconds(),
		"uptimeHuman":       uptime.String(),
		"connectedClients":  h.admitter.Current(),
		"subscribersByFeed": subscribers,
		"queueLength":       queueLen,
		"currentEndpoint":      h.pool.Current(),
		"currentEndpointIndex": h.pool.CurrentIndex(),
		"endpoints":            endpointIDs,
		"cache": map[string]interface{}{
			"headStateFresh": headFresh,
			"witnessesFresh": witnessFresh,
			"hits":           hits,
			"misses":         misses,
			"degradedHits":   degraded,
		},
	})
}

func (h *Handler) handleCatchAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":     h.serviceName,
		"description": "blockchain JSON-RPC fan-out gateway",
		"endpoints": map[string]string{
			"websocket": "/ws",
			"health":    "/health",
			"status":    "/status",
			"metrics":   "/metrics",
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
