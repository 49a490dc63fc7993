package executor

import (
	"sync"
	"sync/atomic"

	"github.com/paneq/karafka/internal/coordinator"
	"github.com/paneq/karafka/internal/messages"
)

var nextID uint64

// Buffer owns the (topic, partition, virtual-group) → Executor mapping
// for one Listener.
type Buffer struct {
	mu    sync.Mutex
	items map[key]*Executor

	Persist bool
}

type key struct {
	tp        messages.TopicPartition
	virtualID string
}

// NewBuffer returns an empty Buffer. persist mirrors consumer_persistence.
func NewBuffer(persist bool) *Buffer {
	return &Buffer{items: make(map[key]*Executor), Persist: persist}
}

// FindOrCreate returns the Executor bound to (topic, partition,
// virtualID), building one from factoryName if none exists yet.
func (b *Buffer) FindOrCreate(groupID, topic string, partition int32, virtualID, factoryName string, coord *coordinator.Coordinator, client ClientHandle) *Executor {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := key{messages.TopicPartition{Topic: topic, Partition: partition}, virtualID}
	e, ok := b.items[k]
	if ok {
		return e
	}
	e = New(atomic.AddUint64(&nextID, 1), groupID, topic, partition, virtualID, factoryName, b.Persist, coord, client)
	b.items[k] = e
	return e
}

// FindAll returns every executor bound to (topic, partition), across all
// virtual groups.
func (b *Buffer) FindAll(topic string, partition int32) []*Executor {
	b.mu.Lock()
	defer b.mu.Unlock()
	tp := messages.TopicPartition{Topic: topic, Partition: partition}
	var out []*Executor
	for k, e := range b.items {
		if k.tp == tp {
			out = append(out, e)
		}
	}
	return out
}

// Revoke removes every executor bound to (topic, partition) and returns
// them so the caller can run their Revoked hook before dropping them.
func (b *Buffer) Revoke(topic string, partition int32) []*Executor {
	b.mu.Lock()
	defer b.mu.Unlock()
	tp := messages.TopicPartition{Topic: topic, Partition: partition}
	var out []*Executor
	for k, e := range b.items {
		if k.tp == tp {
			out = append(out, e)
			delete(b.items, k)
		}
	}
	return out
}

// Each calls fn for every tracked executor.
func (b *Buffer) Each(fn func(e *Executor)) {
	b.mu.Lock()
	snapshot := make([]*Executor, 0, len(b.items))
	for _, e := range b.items {
		snapshot = append(snapshot, e)
	}
	b.mu.Unlock()
	for _, e := range snapshot {
		fn(e)
	}
}

// Clear drops every tracked executor without running lifecycle hooks.
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.items = make(map[key]*Executor)
	b.mu.Unlock()
}
