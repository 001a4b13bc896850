package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type fakeCaller struct {
	fail bool
	err  error
}

func (f *fakeCaller) Call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	if f.fail {
		if f.err != nil {
			return nil, f.err
		}
		return nil, errors.New("boom")
	}
	return json.RawMessage(`"ok"`), nil
}

func newTestPool(t *testing.T, fails ...bool) (*Pool, []*fakeCaller) {
	t.Helper()
	var fakes []*fakeCaller
	var endpoints []*Endpoint
	for i, f := range fails {
		fc := &fakeCaller{fail: f}
		fakes = append(fakes, fc)
		endpoints = append(endpoints, &Endpoint{ID: string(rune('a' + i)), Caller: fc})
	}
	p, err := NewPool(endpoints, time.Minute, nil, nil)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	return p, fakes
}

func TestNewPoolRejectsEmpty(t *testing.T) {
	if _, err := NewPool(nil, time.Minute, nil, nil); err != ErrNoEndpoints {
		t.Fatalf("NewPool(nil) err = %v, want ErrNoEndpoints", err)
	}
}

func TestPoolCallSuccessUpdatesHealth(t *testing.T) {
	p, _ := newTestPool(t, false)
	if _, err := p.Call(context.Background(), "getHead", nil); err != nil {
		t.Fatalf("Call: %v", err)
	}
	snap := p.Snapshot()
	if !snap[0].Health.Healthy {
		t.Error("endpoint should be healthy after a success")
	}
	if snap[0].Health.TotalRequests != 1 {
		t.Errorf("TotalRequests = %d, want 1", snap[0].Health.TotalRequests)
	}
}

func TestPoolCallFailureRecordsErrorWithoutFlippingHealthy(t *testing.T) {
	p, _ := newTestPool(t, true)
	if _, err := p.Call(context.Background(), "getHead", nil); err == nil {
		t.Fatal("Call: want error")
	}
	snap := p.Snapshot()
	if !snap[0].Health.Healthy {
		t.Error("a bare recordResult failure must not flip Healthy; only Failover does")
	}
	if snap[0].Health.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", snap[0].Health.ErrorCount)
	}
}

// TestFailoverMonotonicity exercises Testable Property 6: failing a healthy
// pool over repeatedly never gets stuck on a dead endpoint once a healthy
// one exists, and never flips back to a still-unhealthy one.
func TestFailoverMonotonicity(t *testing.T) {
	p, _ := newTestPool(t, true, false, true)

	p.Failover()
	if got := p.Current(); got != "b" {
		t.Fatalf("Current = %q, want %q", got, "b")
	}

	// b was never failed, c is still healthy: failing b over should land on c.
	p.Failover()
	if got := p.Current(); got != "c" {
		t.Fatalf("Current after second Failover = %q, want %q", got, "c")
	}

	// c is now the only healthy survivor left; failing it over with no other
	// healthy candidate and the recovery window not yet elapsed must hold.
	p.Failover()
	if got := p.Current(); got != "c" {
		t.Fatalf("Current after third Failover = %q, want %q (no survivor)", got, "c")
	}
}

func TestFailoverRanksByErrorCountThenLatency(t *testing.T) {
	p, _ := newTestPool(t, false, false, false)
	// Failing over from a leaves b and c as healthy candidates; degrade b
	// relative to c.
	p.mu.Lock()
	p.endpoints[1].Health.ErrorCount = 5
	p.endpoints[2].Health.ErrorCount = 1
	p.current = 0
	p.mu.Unlock()

	p.Failover()
	if got := p.Current(); got != "c" {
		t.Fatalf("Current = %q, want %q (lower error count)", got, "c")
	}

	// With equal error counts, the lower average latency ranks first.
	p.mu.Lock()
	for _, ep := range p.endpoints {
		ep.Health.Healthy = true
		ep.Health.ErrorCount = 0
	}
	p.endpoints[1].Health.AvgLatency = 10 * time.Millisecond
	p.endpoints[2].Health.AvgLatency = 50 * time.Millisecond
	p.current = 0
	p.mu.Unlock()

	p.Failover()
	if got := p.Current(); got != "b" {
		t.Fatalf("Current = %q, want %q (lower latency)", got, "b")
	}
}

func TestIsNetworkOrTimeout(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("dial tcp: connection refused"), true},
		{context.DeadlineExceeded, true},
		{errors.New("upstream error -32601: method not found"), false},
	}
	for _, c := range cases {
		if got := IsNetworkOrTimeout(c.err); got != c.want {
			t.Errorf("IsNetworkOrTimeout(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}
