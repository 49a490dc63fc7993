package coordinator

import (
	"testing"
	"time"

	"github.com/paneq/karafka/internal/messages"
)

func TestCoordinator_FinishedTracksCounter(t *testing.T) {
	c := New("orders", 0)
	c.Start(3)
	if c.Finished() {
		t.Fatal("expected not finished with 3 in flight")
	}
	c.Decrement(2)
	if c.Finished() {
		t.Fatal("expected not finished with 1 in flight")
	}
	c.Decrement(1)
	if !c.Finished() {
		t.Fatal("expected finished once counter reaches zero")
	}
}

func TestCoordinator_RevokeShortCircuits(t *testing.T) {
	c := New("orders", 0)
	c.Start(5)
	c.Revoke()
	if !c.Finished() {
		t.Fatal("expected finished true once revoked, regardless of counter")
	}
}

func TestCoordinator_PauseResume(t *testing.T) {
	c := New("orders", 0)
	now := time.Now()
	c.Pause(now.Add(50 * time.Millisecond))

	if c.Resume(now) {
		t.Fatal("expected resume to fail before pause expires")
	}
	if !c.Paused() {
		t.Fatal("expected still paused")
	}
	if !c.Resume(now.Add(60 * time.Millisecond)) {
		t.Fatal("expected resume to succeed once pause expires")
	}
	if c.Paused() {
		t.Fatal("expected paused cleared after resume")
	}
}

func TestCoordinator_RetryCountResetsOnResume(t *testing.T) {
	c := New("orders", 0)
	c.IncrementRetry()
	c.IncrementRetry()
	if c.RetryCount() != 2 {
		t.Fatalf("expected retry count 2, got %d", c.RetryCount())
	}
	c.Pause(time.Now())
	c.Resume(time.Now().Add(time.Millisecond))
	if c.RetryCount() != 0 {
		t.Fatalf("expected retry count reset after resume, got %d", c.RetryCount())
	}
}

func TestBuffer_FindOrCreateAndResume(t *testing.T) {
	b := NewBuffer()
	tp := messages.TopicPartition{Topic: "orders", Partition: 0}
	c := b.FindOrCreate(tp)
	c.Pause(time.Now())

	var resumed []int32
	b.Resume(time.Now().Add(time.Millisecond), func(topic string, partition int32) {
		resumed = append(resumed, partition)
	})
	if len(resumed) != 1 || resumed[0] != 0 {
		t.Fatalf("expected partition 0 to resume, got %v", resumed)
	}
}
