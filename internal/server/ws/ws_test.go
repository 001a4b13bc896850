package ws

import (
	"testing"
	"time"

	"github.com/relaygate/relaygate/internal/session"
)

func TestPeekIDAndMethodParsesValidFrame(t *testing.T) {
	id, method := peekIDAndMethod([]byte(`{"id":7,"method":"get_block","params":[1]}`))
	if id.(float64) != 7 {
		t.Errorf("id = %v, want 7", id)
	}
	if method != "get_block" {
		t.Errorf("method = %q, want get_block", method)
	}
}

func TestPeekIDAndMethodToleratesInvalidJSON(t *testing.T) {
	id, method := peekIDAndMethod([]byte(`not json`))
	if id != "unknown" {
		t.Errorf("id = %v, want unknown", id)
	}
	if method != "" {
		t.Errorf("method = %q, want empty", method)
	}
}

func TestConnSenderEnqueueRejectsWhenFull(t *testing.T) {
	s := &connSender{ch: make(chan interface{}, 1)}
	if err := s.Enqueue("first"); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := s.Enqueue("second"); err == nil {
		t.Error("second enqueue into a full buffer should error")
	}
}

func TestRateLimitErrorCarriesResetTimestamp(t *testing.T) {
	frame := rateLimitError([]byte(`{"id":1,"method":"get_block"}`), 12345).(map[string]interface{})
	if frame["error"] != "rate-limited" {
		t.Errorf("error = %v, want rate-limited", frame["error"])
	}
	if frame["rateLimitReset"] != int64(12345) {
		t.Errorf("rateLimitReset = %v, want 12345", frame["rateLimitReset"])
	}
	if frame["method"] != "get_block" {
		t.Errorf("method = %v, want get_block", frame["method"])
	}
}

func TestReadPumpRateLimitResetReflectsWindowStartNotNow(t *testing.T) {
	window := 60 * time.Second
	rl := session.NewRateLimiter(1, window)
	sender := &connSender{ch: make(chan interface{}, 4)}
	sess := session.New(rl, sender)

	if !sess.AllowFrame() {
		t.Fatal("first frame should be allowed")
	}
	// A little time passes before the second, rejected frame arrives.
	time.Sleep(5 * time.Millisecond)
	if sess.AllowFrame() {
		t.Fatal("second frame within the window should be rejected")
	}

	// The window started before the 5ms sleep, so a reset measured from the
	// window start is at least that much closer than now+window would be.
	resetAt := sess.RateLimitResetAt()
	untilReset := time.Until(resetAt)
	if untilReset <= 0 || untilReset > window-5*time.Millisecond {
		t.Errorf("time until reset = %v, want within (0, %v] (measured from the window's actual start)", untilReset, window-5*time.Millisecond)
	}
}

func TestQueueFullErrorCarriesMethod(t *testing.T) {
	frame := queueFullError([]byte(`{"id":2,"method":"get_transaction"}`)).(map[string]interface{})
	if frame["error"] != "queue-full" {
		t.Errorf("error = %v, want queue-full", frame["error"])
	}
	if frame["method"] != "get_transaction" {
		t.Errorf("method = %v, want get_transaction", frame["method"])
	}
}
