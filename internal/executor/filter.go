package executor

import (
	"time"

	"github.com/paneq/karafka/internal/messages"
)

// Action tells the Listener what to do with a batch after a Filter has
// inspected it: pass it through unchanged, skip part of it, or throttle
// the partition and re-deliver later.
type Action int

const (
	// ActionPass delivers the batch to the consumer unmodified.
	ActionPass Action = iota
	// ActionSkip drops the offending messages without dispatching them,
	// advancing past them.
	ActionSkip
	// ActionThrottle pauses the partition and re-delivers from
	// SeekOffset once the pause expires.
	ActionThrottle
)

// Result is what a Filter returns for one batch.
type Result struct {
	Action     Action
	Batch      []messages.Message
	SeekOffset int64
	PauseUntil time.Time
}

// Filter inspects a partition's batch before it reaches the consumer.
// Composable: a strategy selector chains filters (throttling, expiring,
// delaying) according to a topic's configured flags, picking one
// capability bundle per topic.
type Filter interface {
	Apply(now time.Time, tp messages.TopicPartition, batch []messages.Message) Result
}

// ThrottleFilter applies a Throttle to a batch.
type ThrottleFilter struct {
	Throttle *Throttle
}

func (f ThrottleFilter) Apply(now time.Time, tp messages.TopicPartition, batch []messages.Message) Result {
	if len(batch) == 0 {
		return Result{Action: ActionPass}
	}
	if f.Throttle.Allow(now, len(batch)) {
		return Result{Action: ActionPass, Batch: batch}
	}
	return Result{
		Action:     ActionThrottle,
		SeekOffset: batch[0].Offset,
		PauseUntil: f.Throttle.ResumeAt(),
	}
}

// ExpiringFilter drops messages older than TTL: stale work is skipped
// rather than processed late.
type ExpiringFilter struct {
	TTL time.Duration
}

func (f ExpiringFilter) Apply(now time.Time, tp messages.TopicPartition, batch []messages.Message) Result {
	fresh := batch[:0:0]
	for _, m := range batch {
		if now.Sub(m.Timestamp) <= f.TTL {
			fresh = append(fresh, m)
		}
	}
	if len(fresh) == len(batch) {
		return Result{Action: ActionPass, Batch: batch}
	}
	return Result{Action: ActionSkip, Batch: fresh}
}

// DelayingFilter withholds messages until they are at least DelayBy old:
// a message produced at t is not delivered before t+DelayBy.
type DelayingFilter struct {
	DelayBy time.Duration
}

func (f DelayingFilter) Apply(now time.Time, tp messages.TopicPartition, batch []messages.Message) Result {
	if len(batch) == 0 {
		return Result{Action: ActionPass}
	}
	first := batch[0]
	readyAt := first.Timestamp.Add(f.DelayBy)
	if !now.Before(readyAt) {
		return Result{Action: ActionPass, Batch: batch}
	}
	return Result{
		Action:     ActionThrottle,
		SeekOffset: first.Offset,
		PauseUntil: readyAt,
	}
}
