package executor

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/paneq/karafka/internal/coordinator"
	"github.com/paneq/karafka/internal/messages"
)

type fakeConsumer struct {
	consumed  int32
	before    int32
	after     int32
	idle      int32
	revoked   int32
	shutdown  int32
}

func (c *fakeConsumer) Consume(ctx context.Context, batch []messages.Message) error {
	atomic.AddInt32(&c.consumed, int32(len(batch)))
	return nil
}
func (c *fakeConsumer) BeforeConsume() { atomic.AddInt32(&c.before, 1) }
func (c *fakeConsumer) AfterConsume()  { atomic.AddInt32(&c.after, 1) }
func (c *fakeConsumer) Idle()          { atomic.AddInt32(&c.idle, 1) }
func (c *fakeConsumer) Revoked()       { atomic.AddInt32(&c.revoked, 1) }
func (c *fakeConsumer) Shutdown()      { atomic.AddInt32(&c.shutdown, 1) }

func TestExecutor_RunConsumeInvokesBeforeAfter(t *testing.T) {
	fc := &fakeConsumer{}
	Register("fake-executor-test", func(topic string, partition int32) Consumer { return fc })

	e := New(1, "g1", "orders", 0, "", "fake-executor-test", true, nil, nil)

	batch := []messages.Message{{Topic: "orders", Partition: 0, Offset: 1}}
	if err := e.RunConsume(context.Background(), batch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fc.before != 1 || fc.after != 1 || fc.consumed != 1 {
		t.Fatalf("unexpected hook counts: %+v", fc)
	}
}

func TestExecutor_RevokedSkippedWithoutMaterialization(t *testing.T) {
	fc := &fakeConsumer{}
	Register("fake-executor-test-2", func(topic string, partition int32) Consumer { return fc })

	e := New(2, "g1", "orders", 0, "", "fake-executor-test-2", true, nil, nil)
	e.RunRevoked()
	if fc.revoked != 0 {
		t.Fatal("expected Revoked not invoked before materialization")
	}

	e.RunBeforeEnqueue()
	e.RunRevoked()
	if fc.revoked != 1 {
		t.Fatal("expected Revoked invoked once materialized")
	}
}

func TestBuffer_RevokeRemovesExecutors(t *testing.T) {
	Register("fake-buffer-test", func(topic string, partition int32) Consumer { return &fakeConsumer{} })

	b := NewBuffer(true)
	e := b.FindOrCreate("g1", "orders", 0, "", "fake-buffer-test", nil, nil)
	if e == nil {
		t.Fatal("expected executor")
	}
	if len(b.FindAll("orders", 0)) != 1 {
		t.Fatal("expected one executor tracked")
	}
	revoked := b.Revoke("orders", 0)
	if len(revoked) != 1 {
		t.Fatalf("expected one revoked executor, got %d", len(revoked))
	}
	if len(b.FindAll("orders", 0)) != 0 {
		t.Fatal("expected buffer empty after revoke")
	}
}

type awareConsumer struct {
	fakeConsumer
	client ClientHandle
	coord  *coordinator.Coordinator
}

func (c *awareConsumer) UseClient(client ClientHandle)          { c.client = client }
func (c *awareConsumer) UseCoordinator(coord *coordinator.Coordinator) { c.coord = coord }

func TestExecutor_InjectsClientAndCoordinatorIntoConsumer(t *testing.T) {
	ac := &awareConsumer{}
	Register("fake-aware-test", func(topic string, partition int32) Consumer { return ac })

	coord := coordinator.New("orders", 0)
	cl := &fakeClient{}
	e := New(3, "g1", "orders", 0, "", "fake-aware-test", true, coord, cl)

	e.RunBeforeEnqueue()

	if ac.client != cl {
		t.Fatal("expected consumer to receive the executor's Client via ClientAware")
	}
	if ac.coord != coord {
		t.Fatal("expected consumer to receive the executor's Coordinator via CoordinatorAware")
	}
}

func TestSinglePartitioner(t *testing.T) {
	p := SinglePartitioner{}
	batch := []messages.Message{{Offset: 1}, {Offset: 2}}
	groups := p.Partition(batch)
	if len(groups) != 1 || len(groups[""]) != 2 {
		t.Fatalf("unexpected grouping: %v", groups)
	}
}

func TestKeyPartitioner_StableForSameKey(t *testing.T) {
	p := KeyPartitioner{Max: 4}
	batch := []messages.Message{
		{Key: []byte("a"), Offset: 1},
		{Key: []byte("a"), Offset: 2},
		{Key: []byte("b"), Offset: 3},
	}
	groups := p.Partition(batch)
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	if total != 3 {
		t.Fatalf("expected 3 messages total across groups, got %d", total)
	}
	var gidsForA []string
	for gid, g := range groups {
		for _, m := range g {
			if string(m.Key) == "a" {
				gidsForA = append(gidsForA, gid)
			}
		}
	}
	if len(gidsForA) != 2 || gidsForA[0] != gidsForA[1] {
		t.Fatalf("expected both key-a messages in one group, got %v", gidsForA)
	}
}
