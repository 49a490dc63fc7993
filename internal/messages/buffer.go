package messages

import "fmt"

// MessagesBuffer maps a (topic, partition) to its deserialized batch,
// preserving per-partition order. It is rebuilt from a RawMessagesBuffer
// every poll cycle by Build.
type MessagesBuffer struct {
	batches map[TopicPartition][]Message
	order   []TopicPartition
}

// NewMessagesBuffer returns an empty buffer.
func NewMessagesBuffer() *MessagesBuffer {
	return &MessagesBuffer{batches: make(map[TopicPartition][]Message)}
}

// Build deserializes every record in raw using deserializers (keyed by
// topic) and appends the results into per-partition order. raw is
// expected to have already been de-duplicated via RawMessagesBuffer.Uniq
// so no duplicate offsets survive into the built batches.
func (mb *MessagesBuffer) Build(raw *RawMessagesBuffer, deserializers map[string]Deserializer) error {
	for _, r := range raw.Records() {
		deserialize, ok := deserializers[r.Topic]
		if !ok {
			return fmt.Errorf("messages: no deserializer registered for topic %q", r.Topic)
		}
		payload, err := deserialize(r)
		if err != nil {
			return fmt.Errorf("messages: deserialize %s[%d]@%d: %w", r.Topic, r.Partition, r.Offset, err)
		}
		msg := Message{
			Topic:     r.Topic,
			Partition: r.Partition,
			Offset:    r.Offset,
			Key:       r.Key,
			Raw:       r.Value,
			Payload:   payload,
			Headers:   r.Headers,
			Timestamp: r.Timestamp,
		}
		mb.append(msg)
	}
	return nil
}

func (mb *MessagesBuffer) append(msg Message) {
	tp := msg.TopicPartition()
	if _, ok := mb.batches[tp]; !ok {
		mb.order = append(mb.order, tp)
	}
	mb.batches[tp] = append(mb.batches[tp], msg)
}

// Clear empties the buffer for the next poll cycle.
func (mb *MessagesBuffer) Clear() {
	mb.batches = make(map[TopicPartition][]Message)
	mb.order = nil
}

// TopicPartitions returns the partitions with a non-empty batch, in the
// order they were first observed this cycle.
func (mb *MessagesBuffer) TopicPartitions() []TopicPartition {
	return append([]TopicPartition{}, mb.order...)
}

// Batch returns the ordered message batch for tp, or nil if empty.
func (mb *MessagesBuffer) Batch(tp TopicPartition) []Message { return mb.batches[tp] }

// Size returns the total number of messages across every partition.
func (mb *MessagesBuffer) Size() int {
	n := 0
	for _, b := range mb.batches {
		n += len(b)
	}
	return n
}
