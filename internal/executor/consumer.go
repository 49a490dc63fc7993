// Package executor binds a user consumer instance to a (topic, partition,
// virtual-group) and drives its lifecycle hooks. The hook set is modeled
// as optional capability interfaces rather than a fixed method list: one
// mandatory Consume plus several optional lifecycle interfaces a consumer
// type may additionally implement.
package executor

import (
	"context"

	"github.com/paneq/karafka/internal/coordinator"
	"github.com/paneq/karafka/internal/messages"
)

// Consumer is the one hook every registered consumer type must implement.
type Consumer interface {
	Consume(ctx context.Context, batch []messages.Message) error
}

// BeforeEnqueuer runs on the listener thread, before a job is handed to
// the scheduler.
type BeforeEnqueuer interface {
	BeforeEnqueue()
}

// BeforeConsumer runs on a worker, immediately before Consume.
type BeforeConsumer interface {
	BeforeConsume()
}

// AfterConsumer runs on a worker, immediately after Consume returns
// (whether or not it returned an error).
type AfterConsumer interface {
	AfterConsume()
}

// IdleConsumer runs on a worker when a poll cycle produced no messages
// for this partition.
type IdleConsumer interface {
	Idle()
}

// RevokedConsumer runs on a worker when the partition is revoked. Only
// invoked if a consumer instance was ever materialized.
type RevokedConsumer interface {
	Revoked()
}

// ShutdownConsumer runs on a worker during the shutdown sequence. Only
// invoked if a consumer instance was ever materialized.
type ShutdownConsumer interface {
	Shutdown()
}

// ClientAware lets a consumer receive the Executor's Client handle at
// materialization time, so a consumer can pause/seek/mark_as_consumed
// during its own on_consume.
type ClientAware interface {
	UseClient(client ClientHandle)
}

// CoordinatorAware lets a consumer receive a weak handle to its
// Coordinator at materialization time. The reference does not outlive the
// Executor that owns it.
type CoordinatorAware interface {
	UseCoordinator(coord *coordinator.Coordinator)
}

// Factory builds a fresh Consumer instance bound to one topic. Registered
// per topic via Register/New, mirroring kafkadriver's registry.
type Factory func(topic string, partition int32) Consumer

var registry = map[string]Factory{}

// Register makes a consumer factory available under name (typically the
// topic name or an explicit consumer-class name from routing).
func Register(name string, f Factory) { registry[name] = f }

// NewConsumer builds a Consumer registered under name.
func NewConsumer(name string, topic string, partition int32) (Consumer, bool) {
	f, ok := registry[name]
	if !ok {
		return nil, false
	}
	return f(topic, partition), true
}
