// Package client implements a thread-safe façade over a kafkadriver.Driver
// enforcing invariants the driver itself cannot (no use after close,
// serialized pause/resume/seek, retry policy on transient errors). The
// retry/backoff shape is provided by internal/timetracker. Close is
// serialized process-wide through runtime.ShutdownGate.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/paneq/karafka/internal/kafkadriver"
	"github.com/paneq/karafka/internal/messages"
	"github.com/paneq/karafka/internal/rebalance"
	"github.com/paneq/karafka/internal/runtime"
	"github.com/paneq/karafka/internal/timetracker"
)

// ErrInvalidTimeBasedOffset is raised when a timestamp-based Seek cannot
// be resolved to a concrete offset. This fails loudly rather than
// silently falling back to the latest offset.
var ErrInvalidTimeBasedOffset = errors.New("client: could not resolve time-based offset")

// ErrClosed is returned by any operation attempted after Close.
var ErrClosed = errors.New("client: use after close")

const (
	maxPollRetries    = 20
	pollBackoffBase   = 100 * time.Millisecond
	pollBackoffMax    = 10 * time.Second
	offsetsForTimesTO = 2 * time.Second
	pingTimeout       = 100 * time.Millisecond
)

type pausedTPL struct {
	resumeOffset int64
}

// Client wraps one kafkadriver.Driver instance for one subscription
// group's Listener.
type Client struct {
	ID string

	rt          *runtime.Runtime
	driverName  string
	driverCfg   kafkadriver.Config
	topics      []string
	maxWaitTime time.Duration
	maxMessages int

	mu     sync.Mutex
	driver kafkadriver.Driver
	closed bool

	pausedTPLs map[messages.TopicPartition]pausedTPL
}

// New builds and subscribes a Client backed by the named driver.
func New(rt *runtime.Runtime, id, driverName string, driverCfg kafkadriver.Config, topics []string, maxWaitTime time.Duration, maxMessages int) (*Client, error) {
	c := &Client{
		ID:          id,
		rt:          rt,
		driverName:  driverName,
		driverCfg:   driverCfg,
		topics:      topics,
		maxWaitTime: maxWaitTime,
		maxMessages: maxMessages,
		pausedTPLs:  make(map[messages.TopicPartition]pausedTPL),
	}
	if err := c.buildDriver(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) buildDriver(ctx context.Context) error {
	d, ok := kafkadriver.New(c.driverName)
	if !ok {
		return fmt.Errorf("client: unknown driver %q", c.driverName)
	}
	if err := d.Configure(c.driverCfg); err != nil {
		return fmt.Errorf("client: configure: %w", err)
	}
	if err := d.Subscribe(ctx, c.topics); err != nil {
		return fmt.Errorf("client: subscribe: %w", err)
	}
	c.driver = d
	return nil
}

// RebalanceManager exposes the driver's rebalance state for the Listener.
func (c *Client) RebalanceManager() *rebalance.Manager {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.driver.RebalanceManager()
}

// BatchPoll drives the poll loop until max_wait_time is exhausted, the
// buffer holds max_messages, a rebalance is observed, or a poll returned
// nothing.
func (c *Client) BatchPoll(ctx context.Context, deserializers map[string]messages.Deserializer) (*messages.MessagesBuffer, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	d := c.driver
	c.mu.Unlock()

	raw := messages.NewRawMessagesBuffer()
	tt := timetracker.New(c.maxWaitTime)
	tt.Start()

	rm := d.RebalanceManager()
	rm.Clear()

	for {
		if tt.Expired() {
			break
		}
		if raw.Size() >= c.maxMessages {
			break
		}
		rec, err := d.Poll(ctx, tt.Remaining())
		if err != nil {
			retry, fatalErr := c.classifyPollError(tt, err)
			if fatalErr != nil {
				return nil, fatalErr
			}
			if retry {
				continue
			}
			break
		}
		if rec == nil {
			break
		}
		raw.Append(*rec)
		if rm.Changed() {
			break
		}
	}

	if rm.Changed() {
		for topic, parts := range rm.RevokedPartitions() {
			for _, p := range parts {
				raw.Delete(topic, p)
			}
		}
	}
	raw.Uniq()

	mb := messages.NewMessagesBuffer()
	if err := mb.Build(raw, deserializers); err != nil {
		return nil, err
	}
	return mb, nil
}

// classifyPollError applies the polling error policy. It returns
// retry=true when the caller should immediately poll again (after any
// backoff sleep already performed here), or a non-nil err when the error
// is fatal and BatchPoll must abort.
func (c *Client) classifyPollError(tt *timetracker.Tracker, err error) (retry bool, fatal error) {
	de, ok := kafkadriver.AsDriverError(err)
	if !ok {
		return false, err
	}
	switch de.Code {
	case kafkadriver.ErrAssignmentLost, kafkadriver.ErrUnknownMemberID:
		return false, nil
	case kafkadriver.ErrUnknownTopicOrPart:
		if c.driverCfg.AutoCreateTopics {
			return false, nil
		}
		if tt.Attempts() == 0 {
			c.rt.Monitor().Instrument("error.occurred", map[string]any{
				"caller": "client.poll", "type": string(de.Code), "error": de.Error(),
			})
		}
		if c.rt.Done() {
			return false, de
		}
		return c.backoffAndRetry(tt), nil
	case kafkadriver.ErrCoordinatorLoadInProgress:
		time.Sleep(time.Second)
		return true, nil
	case kafkadriver.ErrNetworkException, kafkadriver.ErrTransport, kafkadriver.ErrMaxPollExceeded:
		if tt.Attempts() == 0 {
			c.rt.Monitor().Instrument("error.occurred", map[string]any{
				"caller": "client.poll", "type": string(de.Code), "error": de.Error(),
			})
		}
		if tt.Attempts() >= maxPollRetries {
			return false, de
		}
		return c.backoffAndRetry(tt), nil
	default:
		return false, de
	}
}

func (c *Client) backoffAndRetry(tt *timetracker.Tracker) bool {
	backoff := tt.Checkpoint(pollBackoffBase, pollBackoffMax)
	if backoff > tt.Remaining() {
		return false
	}
	time.Sleep(backoff)
	return true
}

// StoreOffset hands msg's own offset to the driver, which records the
// next position to consume (offset+1). Returns false on
// assignment_lost/state driver errors.
func (c *Client) StoreOffset(msg messages.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	err := c.driver.StoreOffset(msg.Topic, msg.Partition, msg.Offset)
	if err == nil {
		return true
	}
	if de, ok := kafkadriver.AsDriverError(err); ok {
		if de.Code == kafkadriver.ErrAssignmentLost || de.Code == kafkadriver.ErrState {
			return false
		}
	}
	c.rt.Monitor().Instrument("error.occurred", map[string]any{"caller": "client.store_offset", "error": err.Error()})
	return false
}

// CommitOffsets flushes stored offsets. Returns false on assignment_lost
// or unknown_member_id, true (no-op) on no_offset, and on
// coordinator_load_in_progress sleeps one second and retries, with no
// bound on the number of retries.
func (c *Client) CommitOffsets(ctx context.Context, async bool) bool {
	c.mu.Lock()
	d := c.driver
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return false
	}
	for {
		err := d.Commit(ctx, async)
		if err == nil {
			return true
		}
		de, ok := kafkadriver.AsDriverError(err)
		if !ok {
			c.rt.Monitor().Instrument("error.occurred", map[string]any{"caller": "client.commit", "error": err.Error()})
			return false
		}
		switch de.Code {
		case kafkadriver.ErrAssignmentLost, kafkadriver.ErrUnknownMemberID:
			return false
		case kafkadriver.ErrNoOffset:
			return true
		case kafkadriver.ErrCoordinatorLoadInProgress:
			time.Sleep(time.Second)
			continue
		default:
			c.rt.Monitor().Instrument("error.occurred", map[string]any{"caller": "client.commit", "type": string(de.Code)})
			return false
		}
	}
}

// Seek moves msg's partition to a literal offset (>= 0) or -1 (latest).
// Timestamp targets go through SeekAt.
func (c *Client) Seek(msg messages.Message, offset int64) error {
	return c.SeekAt(context.Background(), msg, offset, time.Time{})
}

// SeekAt is Seek with an explicit timestamp target; a zero at falls back
// to the literal offset parameter.
func (c *Client) SeekAt(ctx context.Context, msg messages.Message, offset int64, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	target := offset
	if !at.IsZero() {
		resolved, err := c.driver.OffsetsForTimes(ctx, msg.Topic, msg.Partition, at, offsetsForTimesTO)
		if err != nil || resolved < 0 {
			return ErrInvalidTimeBasedOffset
		}
		target = resolved
	}
	return c.driver.Seek(msg.Topic, msg.Partition, target)
}

// Pause snapshots the resume offset and pauses the partition, emitting
// client.pause.
func (c *Client) Pause(topic string, partition int32, resumeOffset int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	tp := messages.TopicPartition{Topic: topic, Partition: partition}
	c.pausedTPLs[tp] = pausedTPL{resumeOffset: resumeOffset}
	if err := c.driver.Pause(topic, partition); err != nil {
		return
	}
	c.rt.Monitor().Instrument("client.pause", map[string]any{"topic": topic, "partition": partition, "offset": resumeOffset})
}

// Resume seeks back to the cached resume offset and un-pauses the
// partition, removing its cached TPL.
func (c *Client) Resume(topic string, partition int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	tp := messages.TopicPartition{Topic: topic, Partition: partition}
	pt, ok := c.pausedTPLs[tp]
	if !ok {
		return
	}
	_ = c.driver.Seek(topic, partition, pt.resumeOffset)
	_ = c.driver.Resume(topic, partition)
	delete(c.pausedTPLs, tp)
	c.rt.Monitor().Instrument("client.resume", map[string]any{"topic": topic, "partition": partition})
}

// Ping issues one short poll swallowing all driver errors, keeping
// rebalance callbacks pumping during shutdown.
func (c *Client) Ping(ctx context.Context) {
	c.mu.Lock()
	d := c.driver
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	_, _ = d.Poll(ctx, pingTimeout)
}

// MarkAsConsumed stores msg's offset provided the assignment is still
// held.
func (c *Client) MarkAsConsumed(msg messages.Message) bool {
	if !c.StoreOffset(msg) {
		return false
	}
	return !c.driver.AssignmentLost()
}

// MarkAsConsumedSync stores msg's offset then synchronously commits.
func (c *Client) MarkAsConsumedSync(msg messages.Message) bool {
	if !c.MarkAsConsumed(msg) {
		return false
	}
	return c.CommitOffsets(context.Background(), false)
}

// Stop waits (for cooperative-sticky assignment) up to
// kafkadriver.CooperativeStickyMaxWait for the first rebalance callback,
// then closes.
func (c *Client) Stop() error {
	c.mu.Lock()
	cooperative := c.driverCfg.AssignmentStrategy == "cooperative-sticky"
	d := c.driver
	c.mu.Unlock()

	if cooperative {
		deadline := time.Now().Add(kafkadriver.CooperativeStickyMaxWait)
		for !d.RebalanceManager().Active() && time.Now().Before(deadline) {
			time.Sleep(50 * time.Millisecond)
		}
	}
	return c.Close()
}

// Close is idempotent and serialized process-wide via runtime's
// ShutdownGate.
func (c *Client) Close() error {
	var err error
	c.rt.ShutdownGate().With(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return
		}
		c.closed = true
		_ = c.driver.Unsubscribe()
		err = c.driver.Close()
	})
	return err
}

// Reset closes the current driver and rebuilds it, preserving the
// Client's ID.
func (c *Client) Reset(ctx context.Context) error {
	_ = c.Close()
	c.mu.Lock()
	c.closed = false
	c.pausedTPLs = make(map[messages.TopicPartition]pausedTPL)
	c.mu.Unlock()
	return c.buildDriver(ctx)
}

// Name returns the underlying driver's name.
func (c *Client) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.driver.Name()
}
