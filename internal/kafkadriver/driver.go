// Package kafkadriver wraps a native Kafka client behind a poll-based
// contract (subscribe/poll/pause/resume/seek/store_offset/commit/
// assignment plus rebalance callbacks), registered by name so the core
// can swap implementations without a compile-time dependency on any one
// client library. Client owns the poll loop; drivers only ever respond
// to Poll rather than pushing records to a callback.
package kafkadriver

import (
	"context"
	"time"

	"github.com/paneq/karafka/internal/messages"
	"github.com/paneq/karafka/internal/rebalance"
)

// ErrorCode enumerates the driver error codes the core's error-handling
// policy dispatches on by name.
type ErrorCode string

const (
	ErrAssignmentLost           ErrorCode = "assignment_lost"
	ErrState                    ErrorCode = "state"
	ErrUnknownMemberID          ErrorCode = "unknown_member_id"
	ErrNoOffset                 ErrorCode = "no_offset"
	ErrCoordinatorLoadInProgress ErrorCode = "coordinator_load_in_progress"
	ErrMaxPollExceeded          ErrorCode = "max_poll_exceeded"
	ErrNetworkException         ErrorCode = "network_exception"
	ErrTransport                ErrorCode = "transport"
	ErrUnknownTopicOrPart       ErrorCode = "unknown_topic_or_part"
)

// DriverError wraps a driver failure with the canonical code the core's
// error-handling policy switches on.
type DriverError struct {
	Code ErrorCode
	Err  error
}

func (e *DriverError) Error() string { return string(e.Code) + ": " + e.Err.Error() }
func (e *DriverError) Unwrap() error { return e.Err }

// AsDriverError extracts a *DriverError from err, if any.
func AsDriverError(err error) (*DriverError, bool) {
	de, ok := err.(*DriverError)
	return de, ok
}

// Driver is the native-client contract consumed by internal/client.Client.
// One Driver instance backs one subscription group's Kafka consumer.
type Driver interface {
	// Configure prepares the driver but does not yet connect.
	Configure(cfg Config) error
	// Subscribe joins the consumer group for the given topics and starts
	// the background claim-draining goroutines. Non-blocking.
	Subscribe(ctx context.Context, topics []string) error
	// Poll blocks up to timeout for the next record. It returns
	// (nil, nil) on a timeout with nothing available.
	Poll(ctx context.Context, timeout time.Duration) (*messages.RawRecord, error)
	Pause(topic string, partition int32) error
	Resume(topic string, partition int32) error
	Seek(topic string, partition int32, offset int64) error
	StoreOffset(topic string, partition int32, offset int64) error
	Commit(ctx context.Context, async bool) error
	Assignment() map[string][]int32
	AssignmentLost() bool
	OffsetsForTimes(ctx context.Context, topic string, partition int32, at time.Time, timeout time.Duration) (int64, error)
	Unsubscribe() error
	Close() error
	Name() string
	RebalanceManager() *rebalance.Manager
}

// Factory builds a fresh, unconfigured Driver instance.
type Factory func() Driver

var registry = map[string]Factory{}

// Register makes a driver implementation available under name.
func Register(name string, f Factory) { registry[name] = f }

// New returns a fresh driver registered under name.
func New(name string) (Driver, bool) {
	f, ok := registry[name]
	if !ok {
		return nil, false
	}
	return f(), true
}
