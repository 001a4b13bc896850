package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/relaygate/relaygate/internal/cache"
	"github.com/relaygate/relaygate/internal/session"
	"github.com/relaygate/relaygate/internal/subscription"
	"github.com/relaygate/relaygate/internal/upstream"
)

type fakeWriter struct {
	id string
}

func (f *fakeWriter) ID() string                { return f.id }
func (f *fakeWriter) Send(frame interface{}) error { return nil }

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	caller := upstream.NewHTTPCaller("http://example.invalid", time.Second)
	pool, err := upstream.NewPool([]*upstream.Endpoint{{ID: "primary", Caller: caller}}, time.Minute, nil, nil)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	stats := cache.NewStats(nil)
	headSlot := cache.NewSlot[json.RawMessage](time.Second, stats, "head-state")
	witnessSlot := cache.NewSlot[json.RawMessage](time.Second, stats, "witnesses")

	return New(Config{
		ServiceName:    "relaygate",
		StartedAt:      time.Now().Add(-time.Minute),
		Pool:           pool,
		Admitter:       session.NewAdmitter(10),
		Registry:       subscription.NewRegistry(nil, nil),
		QueueLen:       func() int { return 0 },
		HeadSlot:       headSlot,
		WitnessSlot:    witnessSlot,
		Stats:          stats,
		AllowedOrigins: []string{"https://example.com"},
	})
}

func TestHealthEndpointReportsHealthy(t *testing.T) {
	h := newTestHandler(t)
	mux := http.NewServeMux()
	h.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status field = %v, want healthy", body["status"])
	}
}

func TestStatusEndpointReportsConnectedClients(t *testing.T) {
	h := newTestHandler(t)
	h.admitter.TryAdmit()
	mux := http.NewServeMux()
	h.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["connectedClients"].(float64) != 1 {
		t.Errorf("connectedClients = %v, want 1", body["connectedClients"])
	}
	if body["currentEndpoint"] != "primary" {
		t.Errorf("currentEndpoint = %v, want primary", body["currentEndpoint"])
	}
}

func TestStatusEndpointReportsSubscriberCountsNotJustPresence(t *testing.T) {
	h := newTestHandler(t)
	h.registry.Subscribe(subscription.FeedBlockHeaders, &fakeWriter{id: "a"})
	h.registry.Subscribe(subscription.FeedBlockHeaders, &fakeWriter{id: "b"})
	h.registry.Subscribe(subscription.FeedBlockHeaders, &fakeWriter{id: "c"})
	h.registry.Subscribe(subscription.FeedWitnesses, &fakeWriter{id: "d"})

	mux := http.NewServeMux()
	h.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	subscribers := body["subscribersByFeed"].(map[string]interface{})
	if got := subscribers[string(subscription.FeedBlockHeaders)]; got.(float64) != 3 {
		t.Errorf("block-headers subscriber count = %v, want 3", got)
	}
	if got := subscribers[string(subscription.FeedWitnesses)]; got.(float64) != 1 {
		t.Errorf("witnesses subscriber count = %v, want 1", got)
	}
	if got := subscribers[string(subscription.FeedFullBlocks)]; got.(float64) != 0 {
		t.Errorf("full-blocks subscriber count = %v, want 0", got)
	}
}

func TestCatchAllServesServiceDocument(t *testing.T) {
	h := newTestHandler(t)
	mux := http.NewServeMux()
	h.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestOptionsReturnsCORSHeadersForAllowedOrigin(t *testing.T) {
	h := newTestHandler(t)
	mux := http.NewServeMux()
	h.Register(mux)

	req := httptest.NewRequest(http.MethodOptions, "/health", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q, want the allowed origin", got)
	}
}

func TestOptionsOmitsCORSHeadersForDisallowedOrigin(t *testing.T) {
	h := newTestHandler(t)
	mux := http.NewServeMux()
	h.Register(mux)

	req := httptest.NewRequest(http.MethodOptions, "/health", nil)
	req.Header.Set("Origin", "https://not-allowed.example")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want empty for disallowed origin", got)
	}
}
