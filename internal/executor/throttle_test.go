package executor

import (
	"testing"
	"time"
)

func TestThrottle_AllowsUpToLimitPerInterval(t *testing.T) {
	th := NewThrottle(2, time.Minute)
	now := time.Now()

	if !th.Allow(now, 1) {
		t.Fatal("expected first message allowed")
	}
	if !th.Allow(now, 1) {
		t.Fatal("expected second message allowed")
	}
	if th.Allow(now, 1) {
		t.Fatal("expected third message to be throttled within the same window")
	}
}

func TestThrottle_ResetsAfterInterval(t *testing.T) {
	th := NewThrottle(1, time.Millisecond)
	now := time.Now()
	if !th.Allow(now, 1) {
		t.Fatal("expected first message allowed")
	}
	later := now.Add(2 * time.Millisecond)
	if !th.Allow(later, 1) {
		t.Fatal("expected message allowed once the window rolls over")
	}
}
