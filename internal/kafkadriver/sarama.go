package kafkadriver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/paneq/karafka/internal/logging"
	"github.com/paneq/karafka/internal/messages"
	"github.com/paneq/karafka/internal/rebalance"
)

func init() {
	Register("sarama", func() Driver { return &SaramaDriver{} })
}

// SaramaDriver adapts github.com/IBM/sarama's push-based consumer group API
// (ConsumeClaim delivers a channel per claim) into the poll-based Driver
// contract: a claim-draining goroutine feeds a bounded channel, rebalance
// callbacks clear in-flight bookkeeping, and offsets are marked and
// committed separately to give callers control over the full
// pause/resume/seek/commit surface.
type SaramaDriver struct {
	cfg    Config
	client sarama.Client
	group  sarama.ConsumerGroup
	name   string

	rebalanceMgr *rebalance.Manager

	recCh   chan messages.RawRecord
	errCh   chan error
	fatalCh chan error

	mu             sync.Mutex
	session        sarama.ConsumerGroupSession
	lastClaims     map[string][]int32
	assignmentLost bool
	closed         bool

	runCancel context.CancelFunc
}

func (d *SaramaDriver) Configure(cfg Config) error {
	d.cfg = cfg
	d.rebalanceMgr = rebalance.New()
	d.recCh = make(chan messages.RawRecord, 1000)
	d.errCh = make(chan error, 16)
	d.fatalCh = make(chan error, 1)
	d.lastClaims = make(map[string][]int32)

	ver, err := sarama.ParseKafkaVersion(cfg.Version)
	if err != nil {
		return fmt.Errorf("kafkadriver: parse version %q: %w", cfg.Version, err)
	}

	sc := sarama.NewConfig()
	sc.Version = ver
	sc.Consumer.Return.Errors = true

	if cfg.TLSEnabled {
		sc.Net.TLS.Enable = true
	}
	if cfg.SASLUser != "" {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.User = cfg.SASLUser
		sc.Net.SASL.Password = cfg.SASLPass
	}
	switch cfg.StartFrom {
	case "oldest":
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	default:
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	if cfg.isCooperativeSticky() {
		sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyCooperativeSticky()}
	}
	if cfg.SessionTimeout > 0 {
		sc.Consumer.Group.Session.Timeout = cfg.SessionTimeout
	}
	if cfg.HeartbeatInterval > 0 {
		sc.Consumer.Group.Heartbeat.Interval = cfg.HeartbeatInterval
	}

	d.client, err = sarama.NewClient(cfg.Brokers, sc)
	if err != nil {
		return fmt.Errorf("kafkadriver: new client: %w", err)
	}
	d.group, err = sarama.NewConsumerGroupFromClient(cfg.GroupID, d.client)
	if err != nil {
		return fmt.Errorf("kafkadriver: new consumer group: %w", err)
	}
	d.name = cfg.GroupID
	return nil
}

func (d *SaramaDriver) Subscribe(ctx context.Context, topics []string) error {
	runCtx, cancel := context.WithCancel(ctx)
	d.runCancel = cancel
	handler := &groupHandler{driver: d}

	go func() {
		for {
			if err := d.group.Consume(runCtx, topics, handler); err != nil {
				select {
				case d.fatalCh <- err:
				default:
				}
			}
			if runCtx.Err() != nil {
				return
			}
		}
	}()

	go func() {
		for err := range d.group.Errors() {
			select {
			case d.errCh <- err:
			default:
				logging.Named("kafkadriver").Warn("dropping error, channel full", "err", err)
			}
		}
	}()
	return nil
}

func (d *SaramaDriver) Poll(ctx context.Context, timeout time.Duration) (*messages.RawRecord, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case rec := <-d.recCh:
		return &rec, nil
	case err := <-d.fatalCh:
		return nil, err
	case err := <-d.errCh:
		if de := mapSaramaError(err); de != nil {
			return nil, de
		}
		return nil, err
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *SaramaDriver) Pause(topic string, partition int32) error {
	d.mu.Lock()
	sess := d.session
	d.mu.Unlock()
	if sess == nil {
		return nil
	}
	d.group.Pause(map[string][]int32{topic: {partition}})
	return nil
}

func (d *SaramaDriver) Resume(topic string, partition int32) error {
	d.mu.Lock()
	sess := d.session
	d.mu.Unlock()
	if sess == nil {
		return nil
	}
	d.group.Resume(map[string][]int32{topic: {partition}})
	return nil
}

// Seek asks the broker to redeliver topic/partition starting at offset.
// Sarama's consumer-group API has no direct seek primitive the way a
// poll-loop client (librdkafka) does: the closest equivalent is marking
// the desired offset and cycling pause/resume so the next fetch starts
// there. Client.Seek/SeekAt and Client.Resume call it.
func (d *SaramaDriver) Seek(topic string, partition int32, offset int64) error {
	d.mu.Lock()
	sess := d.session
	d.mu.Unlock()
	if sess == nil {
		return errors.New("kafkadriver: seek without an active session")
	}
	sess.MarkOffset(topic, partition, offset, "")
	sess.Commit()
	d.group.Pause(map[string][]int32{topic: {partition}})
	d.group.Resume(map[string][]int32{topic: {partition}})
	return nil
}

func (d *SaramaDriver) StoreOffset(topic string, partition int32, offset int64) error {
	d.mu.Lock()
	sess := d.session
	lost := d.assignmentLost
	d.mu.Unlock()
	if lost {
		return &DriverError{Code: ErrAssignmentLost, Err: errors.New("assignment lost")}
	}
	if sess == nil {
		return &DriverError{Code: ErrState, Err: errors.New("no active session")}
	}
	sess.MarkOffset(topic, partition, offset+1, "")
	return nil
}

func (d *SaramaDriver) Commit(ctx context.Context, async bool) error {
	d.mu.Lock()
	sess := d.session
	lost := d.assignmentLost
	d.mu.Unlock()
	if lost {
		return &DriverError{Code: ErrAssignmentLost, Err: errors.New("assignment lost")}
	}
	if sess == nil {
		return &DriverError{Code: ErrState, Err: errors.New("no active session")}
	}
	sess.Commit()
	return nil
}

func (d *SaramaDriver) Assignment() map[string][]int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session != nil {
		return d.session.Claims()
	}
	out := make(map[string][]int32, len(d.lastClaims))
	for k, v := range d.lastClaims {
		out[k] = append([]int32{}, v...)
	}
	return out
}

func (d *SaramaDriver) AssignmentLost() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.assignmentLost
}

func (d *SaramaDriver) OffsetsForTimes(ctx context.Context, topic string, partition int32, at time.Time, timeout time.Duration) (int64, error) {
	type result struct {
		offset int64
		err    error
	}
	done := make(chan result, 1)
	go func() {
		off, err := d.client.GetOffset(topic, partition, at.UnixMilli())
		done <- result{off, err}
	}()
	select {
	case r := <-done:
		return r.offset, r.err
	case <-time.After(timeout):
		return 0, fmt.Errorf("kafkadriver: offsets_for_times timed out after %s", timeout)
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (d *SaramaDriver) Unsubscribe() error {
	if d.runCancel != nil {
		d.runCancel()
	}
	return nil
}

func (d *SaramaDriver) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	if d.runCancel != nil {
		d.runCancel()
	}
	var firstErr error
	if err := d.group.Close(); err != nil {
		firstErr = err
	}
	if err := d.client.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (d *SaramaDriver) Name() string { return d.name }

func (d *SaramaDriver) RebalanceManager() *rebalance.Manager { return d.rebalanceMgr }

type groupHandler struct {
	driver *SaramaDriver
}

func (h *groupHandler) Setup(sess sarama.ConsumerGroupSession) error {
	d := h.driver
	newClaims := sess.Claims()

	d.mu.Lock()
	old := d.lastClaims
	d.session = sess
	d.assignmentLost = false
	d.mu.Unlock()

	for topic, parts := range diffPartitions(newClaims, old) {
		d.rebalanceMgr.OnPartitionsAssigned(topic, parts)
	}
	for topic, parts := range diffPartitions(old, newClaims) {
		d.rebalanceMgr.OnPartitionsRevoked(topic, parts)
	}
	return nil
}

func (h *groupHandler) Cleanup(sess sarama.ConsumerGroupSession) error {
	d := h.driver
	d.mu.Lock()
	d.lastClaims = sess.Claims()
	if sess.Context().Err() != nil {
		d.assignmentLost = true
	}
	d.session = nil
	d.mu.Unlock()
	return nil
}

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	d := h.driver
	for {
		select {
		case <-sess.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			rec := messages.RawRecord{
				Topic:     msg.Topic,
				Partition: msg.Partition,
				Offset:    msg.Offset,
				Key:       msg.Key,
				Value:     msg.Value,
				Headers:   toHeaderMap(msg.Headers),
				Timestamp: msg.Timestamp,
			}
			select {
			case d.recCh <- rec:
			case <-sess.Context().Done():
				return nil
			}
		}
	}
}

func toHeaderMap(src []*sarama.RecordHeader) map[string][]byte {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string][]byte, len(src))
	for _, h := range src {
		out[string(h.Key)] = h.Value
	}
	return out
}

// diffPartitions returns entries present in a but not in b, per topic.
func diffPartitions(a, b map[string][]int32) map[string][]int32 {
	out := map[string][]int32{}
	for topic, parts := range a {
		bset := map[int32]struct{}{}
		for _, p := range b[topic] {
			bset[p] = struct{}{}
		}
		var missing []int32
		for _, p := range parts {
			if _, ok := bset[p]; !ok {
				missing = append(missing, p)
			}
		}
		if len(missing) > 0 {
			out[topic] = missing
		}
	}
	return out
}

// mapSaramaError classifies a sarama-reported error into the canonical
// codes Client's error-handling policy dispatches on. It returns nil when
// the error does not match a known transient/benign class, signaling the
// caller should treat it as an unrecoverable driver error.
func mapSaramaError(err error) *DriverError {
	if err == nil {
		return nil
	}
	var kerr sarama.KError
	if errors.As(err, &kerr) {
		switch int16(kerr) {
		case 3: // UNKNOWN_TOPIC_OR_PARTITION
			return &DriverError{Code: ErrUnknownTopicOrPart, Err: err}
		case 7: // REQUEST_TIMED_OUT
			return &DriverError{Code: ErrTransport, Err: err}
		case 13: // NETWORK_EXCEPTION
			return &DriverError{Code: ErrNetworkException, Err: err}
		case 14, 25: // COORDINATOR_LOAD_IN_PROGRESS / legacy OFFSETS_LOAD_IN_PROGRESS
			return &DriverError{Code: ErrCoordinatorLoadInProgress, Err: err}
		case 16: // NOT_COORDINATOR
			return &DriverError{Code: ErrCoordinatorLoadInProgress, Err: err}
		case 27: // REBALANCE_IN_PROGRESS
			return &DriverError{Code: ErrAssignmentLost, Err: err}
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &DriverError{Code: ErrNetworkException, Err: err}
	}
	if errors.Is(err, sarama.ErrOutOfBrokers) || errors.Is(err, sarama.ErrClosedClient) {
		return &DriverError{Code: ErrTransport, Err: err}
	}
	return nil
}
