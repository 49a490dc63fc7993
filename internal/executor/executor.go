package executor

import (
	"context"
	"sync"

	"github.com/paneq/karafka/internal/coordinator"
	"github.com/paneq/karafka/internal/messages"
)

// ClientHandle is the subset of Client's surface an Executor's consumer
// needs during consumption: pause/resume/seek, offset marking and a
// liveness ping. It is defined here, not imported from internal/client,
// so executor never depends on client; *client.Client satisfies it
// structurally and neither package imports the other.
type ClientHandle interface {
	Pause(topic string, partition int32, resumeOffset int64)
	Resume(topic string, partition int32)
	Seek(msg messages.Message, offset int64) error
	MarkAsConsumed(msg messages.Message) bool
	MarkAsConsumedSync(msg messages.Message) bool
	Ping(ctx context.Context)
}

// Executor binds one consumer instance to a (topic, partition, virtual
// group) tuple.
type Executor struct {
	ID          uint64
	GroupID     string
	Topic       string
	Partition   int32
	VirtualID   string

	mu           sync.Mutex
	consumer     Consumer
	materialized bool
	persist      bool

	factory     Factory
	factoryName string

	Coordinator *coordinator.Coordinator
	Client      ClientHandle

	// RetryPolicy is set by the Listener right after construction, from
	// the owning Topic descriptor's pause/DLQ configuration.
	RetryPolicy RetryPolicy

	// Manual and LongRunningJob mirror the owning Topic descriptor's
	// manual_offset_management and long_running_job flags, stamped by the
	// Listener right after construction alongside RetryPolicy.
	Manual         bool
	LongRunningJob bool
}

// New returns an Executor that lazily builds its consumer via factoryName
// on first use. persist mirrors consumer_persistence: when false, a fresh
// consumer instance is built for every batch instead of being reused.
func New(id uint64, groupID, topic string, partition int32, virtualID string, factoryName string, persist bool, coord *coordinator.Coordinator, client ClientHandle) *Executor {
	return &Executor{
		ID:          id,
		GroupID:     groupID,
		Topic:       topic,
		Partition:   partition,
		VirtualID:   virtualID,
		factoryName: factoryName,
		persist:     persist,
		Coordinator: coord,
		Client:      client,
	}
}

// ensureConsumer materializes the bound Consumer instance if it hasn't
// been built yet, or always rebuilds it when persistence is disabled. A
// freshly built instance receives the Executor's Client/Coordinator
// handles through the ClientAware/CoordinatorAware optional interfaces
// before the batch is enqueued for it.
func (e *Executor) ensureConsumer() Consumer {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.consumer != nil && e.persist {
		return e.consumer
	}
	c, ok := NewConsumer(e.factoryName, e.Topic, e.Partition)
	if !ok {
		return nil
	}
	if ca, ok := c.(ClientAware); ok {
		ca.UseClient(e.Client)
	}
	if coa, ok := c.(CoordinatorAware); ok {
		coa.UseCoordinator(e.Coordinator)
	}
	e.consumer = c
	e.materialized = true
	return c
}

// Materialized reports whether a consumer instance has ever been built,
// gating whether Revoked/Shutdown hooks run.
func (e *Executor) Materialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.materialized
}

func (e *Executor) currentConsumer() Consumer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.consumer
}

// RunBeforeEnqueue invokes BeforeEnqueue if the consumer implements it.
// Called synchronously on the listener thread, before the batch is handed
// to the scheduler.
func (e *Executor) RunBeforeEnqueue() {
	if be, ok := e.ensureConsumer().(BeforeEnqueuer); ok {
		be.BeforeEnqueue()
	}
}

// RunConsume drives the before_consume/consume/after_consume triple on a
// worker goroutine.
func (e *Executor) RunConsume(ctx context.Context, batch []messages.Message) error {
	c := e.ensureConsumer()
	if c == nil {
		return nil
	}
	if bc, ok := c.(BeforeConsumer); ok {
		bc.BeforeConsume()
	}
	err := c.Consume(ctx, batch)
	if ac, ok := c.(AfterConsumer); ok {
		ac.AfterConsume()
	}
	return err
}

// RunIdle invokes Idle if the consumer implements it.
func (e *Executor) RunIdle() {
	if ic, ok := e.ensureConsumer().(IdleConsumer); ok {
		ic.Idle()
	}
}

// RunRevoked invokes Revoked, only if a consumer was ever materialized.
func (e *Executor) RunRevoked() {
	if !e.Materialized() {
		return
	}
	if rc, ok := e.currentConsumer().(RevokedConsumer); ok {
		rc.Revoked()
	}
}

// RunShutdown invokes Shutdown, only if a consumer was ever materialized.
func (e *Executor) RunShutdown() {
	if !e.Materialized() {
		return
	}
	if sc, ok := e.currentConsumer().(ShutdownConsumer); ok {
		sc.Shutdown()
	}
}
