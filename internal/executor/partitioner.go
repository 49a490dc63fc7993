package executor

import (
	"hash/fnv"
	"strconv"

	"github.com/paneq/karafka/internal/messages"
)

// Partitioner fans a per-Kafka-partition batch out into one or more
// virtual groups: an in-process sub-partition used to parallelize work
// across workers while Kafka's own single-partition ordering still gates
// the commit boundary.
type Partitioner interface {
	// Partition splits batch into virtual groups, returning a stable
	// group id per message alongside the message itself.
	Partition(batch []messages.Message) map[string][]messages.Message
}

// SinglePartitioner is the default: every message stays in one virtual
// group, matching a topic with virtual_partitions disabled.
type SinglePartitioner struct{}

func (SinglePartitioner) Partition(batch []messages.Message) map[string][]messages.Message {
	if len(batch) == 0 {
		return nil
	}
	return map[string][]messages.Message{"": batch}
}

// KeyPartitioner fans a batch out across at most Max virtual groups,
// keyed by hashing each message's Kafka key so that same-key messages
// keep their relative order within one group.
type KeyPartitioner struct {
	Max int
}

func (p KeyPartitioner) Partition(batch []messages.Message) map[string][]messages.Message {
	if len(batch) == 0 {
		return nil
	}
	max := p.Max
	if max <= 0 {
		max = 1
	}
	out := make(map[string][]messages.Message, max)
	for _, msg := range batch {
		h := fnv.New32a()
		h.Write(msg.Key)
		idx := h.Sum32() % uint32(max)
		gid := strconv.FormatUint(uint64(idx), 10)
		out[gid] = append(out[gid], msg)
	}
	return out
}
