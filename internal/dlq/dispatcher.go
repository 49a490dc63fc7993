// Package dlq implements a narrow dead-letter producer contract: once a
// coordinator's retry budget is exhausted for a message, something must
// publish it to a dead-letter topic and report success back so the
// consumer can seek past the offending offset. This package is that
// contract plus a minimal Sarama-backed implementation.
package dlq

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/paneq/karafka/internal/messages"
)

// Dispatcher publishes a message that exhausted its retry budget to a
// dead-letter destination.
type Dispatcher interface {
	Dispatch(ctx context.Context, dlqTopic string, msg messages.Message, cause error) error
	Close() error
}

// SaramaDispatcher is a minimal synchronous producer wrapping
// sarama.SyncProducer, sufficient for the coordinator's contract: publish
// and report success/failure, nothing more (no batching, no delivery
// callbacks beyond the synchronous send).
type SaramaDispatcher struct {
	producer sarama.SyncProducer
}

// NewSaramaDispatcher builds a producer against brokers using version ver
// (e.g. "3.6.0").
func NewSaramaDispatcher(brokers []string, ver string) (*SaramaDispatcher, error) {
	v, err := sarama.ParseKafkaVersion(ver)
	if err != nil {
		return nil, fmt.Errorf("dlq: parse version %q: %w", ver, err)
	}
	cfg := sarama.NewConfig()
	cfg.Version = v
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("dlq: new producer: %w", err)
	}
	return &SaramaDispatcher{producer: p}, nil
}

// Dispatch publishes msg to dlqTopic, forwarding its original headers plus
// diagnostic headers recording the source partition/offset, the failure
// cause and a dispatch trace id (used to correlate retries of the same
// send across broker logs).
func (d *SaramaDispatcher) Dispatch(ctx context.Context, dlqTopic string, msg messages.Message, cause error) error {
	headers := make([]sarama.RecordHeader, 0, len(msg.Headers)+3)
	for k, v := range msg.Headers {
		headers = append(headers, sarama.RecordHeader{Key: []byte(k), Value: v})
	}
	headers = append(headers,
		sarama.RecordHeader{Key: []byte("dlq-source-partition"), Value: []byte(fmt.Sprintf("%s:%d", msg.Topic, msg.Partition))},
		sarama.RecordHeader{Key: []byte("dlq-source-offset"), Value: []byte(fmt.Sprintf("%d", msg.Offset))},
		sarama.RecordHeader{Key: []byte("dlq-dispatch-id"), Value: []byte(uuid.NewString())},
	)
	if cause != nil {
		headers = append(headers, sarama.RecordHeader{Key: []byte("dlq-error"), Value: []byte(cause.Error())})
	}

	pm := &sarama.ProducerMessage{
		Topic:   dlqTopic,
		Key:     sarama.ByteEncoder(msg.Key),
		Value:   sarama.ByteEncoder(msg.Raw),
		Headers: headers,
	}
	_, _, err := d.producer.SendMessage(pm)
	return err
}

func (d *SaramaDispatcher) Close() error { return d.producer.Close() }
