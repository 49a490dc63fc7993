package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/paneq/karafka/internal/coordinator"
	"github.com/paneq/karafka/internal/messages"
)

type fakeDispatcher struct {
	mu        sync.Mutex
	dispatched []messages.Message
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, dlqTopic string, msg messages.Message, cause error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dispatched = append(d.dispatched, msg)
	return nil
}
func (d *fakeDispatcher) Close() error { return nil }

type fakeClient struct {
	mu       sync.Mutex
	paused   bool
	seekedTo int64
}

func (c *fakeClient) Pause(topic string, partition int32, resumeOffset int64) {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
}
func (c *fakeClient) Resume(topic string, partition int32) {}
func (c *fakeClient) Seek(msg messages.Message, offset int64) error {
	c.mu.Lock()
	c.seekedTo = offset
	c.mu.Unlock()
	return nil
}
func (c *fakeClient) MarkAsConsumed(msg messages.Message) bool     { return true }
func (c *fakeClient) MarkAsConsumedSync(msg messages.Message) bool { return true }
func (c *fakeClient) Ping(ctx context.Context)                     {}

func TestHandleConsumeError_PausesBelowRetryLimit(t *testing.T) {
	coord := coordinator.New("orders", 0)
	cl := &fakeClient{}
	e := New(1, "g1", "orders", 0, "", "", true, coord, cl)
	e.RetryPolicy = RetryPolicy{PauseTimeout: time.Millisecond, PauseMaxTimeout: time.Second, DLQTopic: "orders-dlq", DLQMaxRetries: 3}

	batch := []messages.Message{{Topic: "orders", Partition: 0, Offset: 10}}
	dispatched := e.HandleConsumeError(context.Background(), batch, errors.New("boom"))
	if dispatched {
		t.Fatal("expected no dispatch below retry limit")
	}
	if !cl.paused {
		t.Fatal("expected client paused")
	}
	if !coord.Paused() {
		t.Fatal("expected coordinator paused")
	}
}

func TestHandleConsumeError_DispatchesAfterRetriesExhausted(t *testing.T) {
	coord := coordinator.New("orders", 0)
	cl := &fakeClient{}
	disp := &fakeDispatcher{}
	e := New(1, "g1", "orders", 0, "", "", true, coord, cl)
	e.RetryPolicy = RetryPolicy{PauseTimeout: time.Millisecond, PauseMaxTimeout: time.Second, DLQTopic: "orders-dlq", DLQMaxRetries: 1, Dispatcher: disp}

	batch := []messages.Message{{Topic: "orders", Partition: 0, Offset: 10}}
	e.HandleConsumeError(context.Background(), batch, errors.New("boom"))
	dispatched := e.HandleConsumeError(context.Background(), batch, errors.New("boom again"))

	if !dispatched {
		t.Fatal("expected dispatch once retries exhausted")
	}
	if len(disp.dispatched) != 1 {
		t.Fatalf("expected one message dispatched, got %d", len(disp.dispatched))
	}
	if cl.seekedTo != 11 {
		t.Fatalf("expected seek past offset 10, got %d", cl.seekedTo)
	}
}

func TestHandleConsumeError_NoDLQConfiguredAlwaysPauses(t *testing.T) {
	coord := coordinator.New("orders", 0)
	cl := &fakeClient{}
	e := New(1, "g1", "orders", 0, "", "", true, coord, cl)
	e.RetryPolicy = RetryPolicy{PauseTimeout: time.Millisecond, PauseMaxTimeout: time.Second}

	batch := []messages.Message{{Topic: "orders", Partition: 0, Offset: 10}}
	for i := 0; i < 5; i++ {
		if e.HandleConsumeError(context.Background(), batch, errors.New("boom")) {
			t.Fatal("expected no dispatch without a configured DLQ topic")
		}
	}
	if !cl.paused {
		t.Fatal("expected client paused")
	}
}
