package messages

// RawMessagesBuffer is the ordered, append-only staging area a
// Client.batch_poll call fills. It is cleared at the start of every poll
// cycle and is not safe for concurrent use: it is owned exclusively by
// the single-threaded batch_poll caller.
type RawMessagesBuffer struct {
	records []RawRecord
}

// NewRawMessagesBuffer returns an empty buffer.
func NewRawMessagesBuffer() *RawMessagesBuffer {
	return &RawMessagesBuffer{}
}

// Append adds one record to the tail, preserving arrival order.
func (b *RawMessagesBuffer) Append(r RawRecord) {
	b.records = append(b.records, r)
}

// Size returns the number of records currently buffered.
func (b *RawMessagesBuffer) Size() int { return len(b.records) }

// Clear empties the buffer, releasing its backing array so a long-lived
// buffer does not pin large batches in memory between cycles.
func (b *RawMessagesBuffer) Clear() { b.records = nil }

// Records returns the buffered records in arrival order. Callers must not
// mutate the returned slice.
func (b *RawMessagesBuffer) Records() []RawRecord { return b.records }

// Delete drops every record for one topic-partition, used when a
// rebalance reports that partition as revoked mid-poll.
func (b *RawMessagesBuffer) Delete(topic string, partition int32) {
	kept := b.records[:0]
	for _, r := range b.records {
		if r.Topic == topic && r.Partition == partition {
			continue
		}
		kept = append(kept, r)
	}
	b.records = kept
}

// Uniq drops all but the last occurrence of each (topic, partition,
// offset) triple, collapsing duplicates a mid-poll rebalance can
// introduce when a partition is reassigned and redelivered. The survivor
// is always the one inserted last.
func (b *RawMessagesBuffer) Uniq() {
	type key struct {
		TopicPartition
		offset int64
	}
	lastIndex := make(map[key]int, len(b.records))
	for i, r := range b.records {
		lastIndex[key{r.tp(), r.Offset}] = i
	}
	if len(lastIndex) == len(b.records) {
		return
	}
	kept := make([]RawRecord, 0, len(lastIndex))
	for i, r := range b.records {
		if lastIndex[key{r.tp(), r.Offset}] == i {
			kept = append(kept, r)
		}
	}
	b.records = kept
}
