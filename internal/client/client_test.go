package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/paneq/karafka/internal/kafkadriver"
	"github.com/paneq/karafka/internal/messages"
	"github.com/paneq/karafka/internal/rebalance"
	"github.com/paneq/karafka/internal/runtime"
)

type fakeDriver struct {
	mu sync.Mutex

	records     []messages.RawRecord
	rebalanceMgr *rebalance.Manager

	paused  map[messages.TopicPartition]bool
	seeks   []messages.TopicPartition
	stored  map[messages.TopicPartition]int64
	commits int
	lost    bool
	closed  bool
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		rebalanceMgr: rebalance.New(),
		paused:       map[messages.TopicPartition]bool{},
		stored:       map[messages.TopicPartition]int64{},
	}
}

func (d *fakeDriver) Configure(kafkadriver.Config) error         { return nil }
func (d *fakeDriver) Subscribe(context.Context, []string) error  { return nil }

func (d *fakeDriver) Poll(ctx context.Context, timeout time.Duration) (*messages.RawRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.records) == 0 {
		return nil, nil
	}
	rec := d.records[0]
	d.records = d.records[1:]
	return &rec, nil
}

func (d *fakeDriver) Pause(topic string, partition int32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.paused[messages.TopicPartition{Topic: topic, Partition: partition}] = true
	return nil
}
func (d *fakeDriver) Resume(topic string, partition int32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.paused, messages.TopicPartition{Topic: topic, Partition: partition})
	return nil
}
func (d *fakeDriver) Seek(topic string, partition int32, offset int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seeks = append(d.seeks, messages.TopicPartition{Topic: topic, Partition: partition})
	return nil
}
func (d *fakeDriver) StoreOffset(topic string, partition int32, offset int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return &kafkadriver.DriverError{Code: kafkadriver.ErrAssignmentLost, Err: context.Canceled}
	}
	d.stored[messages.TopicPartition{Topic: topic, Partition: partition}] = offset
	return nil
}
func (d *fakeDriver) Commit(ctx context.Context, async bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commits++
	return nil
}
func (d *fakeDriver) Assignment() map[string][]int32 { return nil }
func (d *fakeDriver) AssignmentLost() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lost
}
func (d *fakeDriver) OffsetsForTimes(ctx context.Context, topic string, partition int32, at time.Time, timeout time.Duration) (int64, error) {
	return -1, nil
}
func (d *fakeDriver) Unsubscribe() error { return nil }
func (d *fakeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
func (d *fakeDriver) Name() string                             { return "fake" }
func (d *fakeDriver) RebalanceManager() *rebalance.Manager { return d.rebalanceMgr }

func newTestClient(t *testing.T, d *fakeDriver) *Client {
	t.Helper()
	kafkadriver.Register("fake-client-test", func() kafkadriver.Driver { return d })
	c, err := New(runtime.New(nil), "c1", "fake-client-test", kafkadriver.Config{}, []string{"orders"}, 50*time.Millisecond, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

func TestClient_MarkAsConsumed(t *testing.T) {
	d := newFakeDriver()
	c := newTestClient(t, d)

	msg := messages.Message{Topic: "orders", Partition: 0, Offset: 5}
	if !c.MarkAsConsumed(msg) {
		t.Fatal("expected mark as consumed to succeed")
	}
	if d.stored[messages.TopicPartition{Topic: "orders", Partition: 0}] != 6 {
		t.Fatalf("expected stored offset 6, got %v", d.stored)
	}
}

func TestClient_MarkAsConsumed_AssignmentLost(t *testing.T) {
	d := newFakeDriver()
	d.lost = true
	c := newTestClient(t, d)

	msg := messages.Message{Topic: "orders", Partition: 0, Offset: 5}
	if c.MarkAsConsumed(msg) {
		t.Fatal("expected mark as consumed to fail once assignment lost")
	}
}

func TestClient_PauseResume(t *testing.T) {
	d := newFakeDriver()
	c := newTestClient(t, d)

	c.Pause("orders", 0, 42)
	if !d.paused[messages.TopicPartition{Topic: "orders", Partition: 0}] {
		t.Fatal("expected partition paused")
	}
	c.Resume("orders", 0)
	if d.paused[messages.TopicPartition{Topic: "orders", Partition: 0}] {
		t.Fatal("expected partition resumed")
	}
	if len(d.seeks) != 1 {
		t.Fatalf("expected one seek on resume, got %d", len(d.seeks))
	}
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	d := newFakeDriver()
	c := newTestClient(t, d)

	if err := c.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("unexpected error on second close: %v", err)
	}
	if !d.closed {
		t.Fatal("expected underlying driver closed")
	}
}

func TestClient_BatchPoll_StopsWhenEmpty(t *testing.T) {
	d := newFakeDriver()
	d.records = []messages.RawRecord{
		{Topic: "orders", Partition: 0, Offset: 1, Value: []byte("a")},
		{Topic: "orders", Partition: 0, Offset: 2, Value: []byte("b")},
	}
	c := newTestClient(t, d)

	deserializers := map[string]messages.Deserializer{
		"orders": func(r messages.RawRecord) (any, error) { return string(r.Value), nil },
	}
	mb, err := c.BatchPoll(context.Background(), deserializers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mb.Size() != 2 {
		t.Fatalf("expected 2 messages, got %d", mb.Size())
	}
}
