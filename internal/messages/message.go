// Package messages implements the RawMessagesBuffer/MessagesBuffer
// staging area: driver records fetched during one poll cycle, and the
// deserialized, user-facing Message batches built from them.
package messages

import "time"

// TopicPartition identifies one partition of one topic, the key both
// buffers index by.
type TopicPartition struct {
	Topic     string
	Partition int32
}

// RawRecord is one record as handed back by the driver's poll, before
// deserialization.
type RawRecord struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string][]byte
	Timestamp time.Time
}

func (r RawRecord) tp() TopicPartition { return TopicPartition{r.Topic, r.Partition} }

// Message is the user-facing, deserialized unit of work.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Raw       []byte
	Payload   any // deserializer output
	Headers   map[string][]byte
	Timestamp time.Time
	Metadata  map[string]any
}

func (m Message) TopicPartition() TopicPartition { return TopicPartition{m.Topic, m.Partition} }

// Deserializer turns a raw record's payload into the user-facing Payload.
type Deserializer func(RawRecord) (any, error)
