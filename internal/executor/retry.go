package executor

import (
	"context"
	"time"

	"github.com/paneq/karafka/internal/dlq"
	"github.com/paneq/karafka/internal/messages"
)

// RetryPolicy configures the pause-and-retry / DLQ behavior a Consume
// error triggers: the coordinator applies pause-and-retry, and once
// retries are exhausted the DLQ strategy, if configured, dispatches the
// offending message and seeks past it.
type RetryPolicy struct {
	PauseTimeout    time.Duration
	PauseMaxTimeout time.Duration
	Exponential     bool

	DLQTopic      string
	DLQMaxRetries int
	Dispatcher    dlq.Dispatcher
}

// HandleConsumeError increments the retry counter and either pauses the
// partition for a backoff window or, once DLQMaxRetries is exceeded and a
// DLQ topic is configured, dispatches the offending batch and seeks past
// it. Returns true when the batch was dispatched to the DLQ.
func (e *Executor) HandleConsumeError(ctx context.Context, batch []messages.Message, cause error) bool {
	retries := e.Coordinator.IncrementRetry()
	policy := e.RetryPolicy

	if policy.DLQTopic != "" && policy.Dispatcher != nil && retries > policy.DLQMaxRetries {
		for _, msg := range batch {
			_ = policy.Dispatcher.Dispatch(ctx, policy.DLQTopic, msg, cause)
		}
		if len(batch) > 0 {
			last := batch[len(batch)-1]
			_ = e.Client.Seek(last, last.Offset+1)
		}
		return true
	}

	until := time.Now().Add(backoffFor(policy, retries))
	e.Coordinator.Pause(until)
	if len(batch) > 0 {
		e.Client.Pause(e.Topic, e.Partition, batch[0].Offset)
	}
	return false
}

func backoffFor(policy RetryPolicy, retries int) time.Duration {
	base := policy.PauseTimeout
	if base <= 0 {
		base = time.Second
	}
	max := policy.PauseMaxTimeout
	if max <= 0 {
		max = 30 * time.Second
	}
	if !policy.Exponential {
		if base > max {
			return max
		}
		return base
	}
	d := base << uint(retries)
	if d <= 0 || d > max {
		d = max
	}
	return d
}
