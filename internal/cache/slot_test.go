package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSlotGetOrRefreshMissThenHit(t *testing.T) {
	s := NewSlot[int](50*time.Millisecond, NewStats(nil), "head-state")
	calls := 0
	refresh := func(context.Context) (int, error) {
		calls++
		return 42, nil
	}

	v, degraded, err := s.GetOrRefresh(context.Background(), refresh)
	if err != nil || degraded || v != 42 {
		t.Fatalf("first call = (%d, %v, %v), want (42, false, nil)", v, degraded, err)
	}

	v, degraded, err = s.GetOrRefresh(context.Background(), refresh)
	if err != nil || degraded || v != 42 {
		t.Fatalf("second call (within TTL) = (%d, %v, %v), want (42, false, nil)", v, degraded, err)
	}
	if calls != 1 {
		t.Errorf("refresh called %d times, want 1 (second call should be a fresh hit)", calls)
	}
}

func TestSlotDegradedHitOnRefreshFailure(t *testing.T) {
	s := NewSlot[int](time.Nanosecond, NewStats(nil), "witnesses")

	v, degraded, err := s.GetOrRefresh(context.Background(), func(context.Context) (int, error) { return 7, nil })
	if err != nil || degraded || v != 7 {
		t.Fatalf("seed call = (%d, %v, %v), want (7, false, nil)", v, degraded, err)
	}

	time.Sleep(2 * time.Millisecond)
	v, degraded, err = s.GetOrRefresh(context.Background(), func(context.Context) (int, error) {
		return 0, errors.New("upstream down")
	})
	if err != nil {
		t.Fatalf("degraded call returned err = %v, want nil", err)
	}
	if !degraded {
		t.Error("want degraded = true when a stale value exists and refresh fails")
	}
	if v != 7 {
		t.Errorf("degraded value = %d, want stale 7", v)
	}
}

func TestSlotRefreshFailureWithNoStoredValue(t *testing.T) {
	s := NewSlot[int](time.Minute, NewStats(nil), "head-state")
	wantErr := errors.New("no upstream")

	_, degraded, err := s.GetOrRefresh(context.Background(), func(context.Context) (int, error) {
		return 0, wantErr
	})
	if degraded {
		t.Error("degraded should be false with nothing stored yet")
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

func TestSlotDrop(t *testing.T) {
	s := NewSlot[int](time.Minute, NewStats(nil), "head-state")
	s.Set(5)
	if v, ok := s.Get(); !ok || v != 5 {
		t.Fatalf("Get = (%d, %v), want (5, true)", v, ok)
	}
	s.Drop()
	if _, ok := s.Get(); ok {
		t.Error("Get after Drop should report absent")
	}
}
