package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/relaygate/relaygate/internal/cache"
	"github.com/relaygate/relaygate/internal/session"
	"github.com/relaygate/relaygate/internal/subscription"
)

type fakeCaller struct {
	calls   int
	result  json.RawMessage
	err     error
	failover int
}

func (f *fakeCaller) Call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeCaller) FailoverIfNetworkError(err error) {
	if err != nil {
		f.failover++
	}
}

type fakeSender struct {
	frames []interface{}
}

func (f *fakeSender) Enqueue(frame session.Frame) error {
	f.frames = append(f.frames, frame)
	return nil
}

func newTestDispatcher(t *testing.T, caller Caller) (*Dispatcher, *session.Session, *fakeSender) {
	t.Helper()
	stats := cache.NewStats(nil)
	headSlot := cache.NewSlot[json.RawMessage](3*time.Second, stats, "head-state")
	witnessSlot := cache.NewSlot[json.RawMessage](5*time.Minute, stats, "witnesses")
	headerMap := cache.NewBlockMap[json.RawMessage](100, time.Minute, stats, "block-headers")
	blockMap := cache.NewBlockMap[json.RawMessage](100, time.Minute, stats, "full-blocks")
	opsMap := cache.NewBlockMap[json.RawMessage](100, time.Minute, stats, "operations")
	reg := subscription.NewRegistry(nil, nil)

	d := New(caller, reg, headSlot, witnessSlot, headerMap, blockMap, opsMap, nil)
	fs := &fakeSender{}
	sess := session.New(session.NewRateLimiter(2000, time.Minute), fs)
	return d, sess, fs
}

func TestS1CachedHeadReadCountsOneCacheHit(t *testing.T) {
	caller := &fakeCaller{result: json.RawMessage(`{"head_block_number":5}`)}
	d, sess, fs := newTestDispatcher(t, caller)

	for i := 0; i < 2; i++ {
		req := `{"id":1,"method":"get_dynamic_global_properties","params":[]}`
		if err := d.Dispatch(context.Background(), sess, []byte(req)); err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
	}
	if caller.calls != 1 {
		t.Errorf("upstream calls = %d, want 1 (second read should be a cache hit)", caller.calls)
	}
	if len(fs.frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(fs.frames))
	}
	r0 := fs.frames[0].(ResponseFrame)
	r1 := fs.frames[1].(ResponseFrame)
	if r0.ID.(float64) != 1 || r1.ID.(float64) != 1 {
		t.Error("both replies should echo id 1")
	}
}

func TestS2MissingArgument(t *testing.T) {
	d, sess, fs := newTestDispatcher(t, &fakeCaller{})
	req := `{"id":7,"method":"get_block_header","params":[]}`
	if err := d.Dispatch(context.Background(), sess, []byte(req)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	got := fs.frames[0].(ErrorFrame)
	want := ErrorFrame{ID: float64(7), Type: "error", Error: "Block number is required", Method: "get_block_header"}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestS3UnknownMethod(t *testing.T) {
	d, sess, fs := newTestDispatcher(t, &fakeCaller{})
	req := `{"id":9,"method":"get_nothing","params":[]}`
	if err := d.Dispatch(context.Background(), sess, []byte(req)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	got := fs.frames[0].(ErrorFrame)
	if got.Error != "Unsupported method: get_nothing" {
		t.Errorf("error = %q, want %q", got.Error, "Unsupported method: get_nothing")
	}
}

func TestS4SubscribeDeliversImmediateSnapshot(t *testing.T) {
	caller := &fakeCaller{result: json.RawMessage(`{"head_block_number":5}`)}
	d, sess, fs := newTestDispatcher(t, caller)

	// Prime the head slot the way a real read would.
	req := `{"id":1,"method":"get_dynamic_global_properties","params":[]}`
	if err := d.Dispatch(context.Background(), sess, []byte(req)); err != nil {
		t.Fatalf("priming Dispatch: %v", err)
	}

	subReq := `{"id":3,"method":"subscribe_global_properties","params":[]}`
	if err := d.Dispatch(context.Background(), sess, []byte(subReq)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if len(fs.frames) != 3 {
		t.Fatalf("frames = %d, want 3 (prime reply, subscribe ack, subscription_update)", len(fs.frames))
	}
	ack := fs.frames[1].(ResponseFrame)
	if ack.ID.(float64) != 3 {
		t.Errorf("ack id = %v, want 3", ack.ID)
	}
	result := ack.Result.(map[string]interface{})
	if result["subscribed"] != true || result["type"] != "global_properties" {
		t.Errorf("ack result = %+v, want subscribed:true type:global_properties", result)
	}
	update := fs.frames[2].(SubscriptionUpdateFrame)
	if update.Subscription != "global_properties" {
		t.Errorf("update.Subscription = %q, want %q", update.Subscription, "global_properties")
	}
}

func TestUpstreamFailureSurfacesErrorAndTriggersFailoverCheck(t *testing.T) {
	caller := &fakeCaller{err: errors.New("dial tcp: connection refused")}
	d, sess, fs := newTestDispatcher(t, caller)

	req := `{"id":1,"method":"get_dynamic_global_properties","params":[]}`
	if err := d.Dispatch(context.Background(), sess, []byte(req)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	got := fs.frames[0].(ErrorFrame)
	if got.Error != "upstream-failure" {
		t.Errorf("error = %q, want %q", got.Error, "upstream-failure")
	}
	if caller.failover != 1 {
		t.Errorf("FailoverIfNetworkError calls = %d, want 1", caller.failover)
	}
}

func TestInvalidFrameProducesErrorWithoutClosingSession(t *testing.T) {
	d, sess, fs := newTestDispatcher(t, &fakeCaller{})
	if err := d.Dispatch(context.Background(), sess, []byte("{not json")); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	got := fs.frames[0].(ErrorFrame)
	if got.Error != "invalid-frame" {
		t.Errorf("error = %q, want invalid-frame", got.Error)
	}
	if sess.Closed() {
		t.Error("an invalid frame must not close the session")
	}
}
