package coordinator

import (
	"sync"
	"time"

	"github.com/paneq/karafka/internal/messages"
)

// Buffer owns the (topic, partition) → Coordinator mapping for one
// Listener.
type Buffer struct {
	mu    sync.Mutex
	items map[messages.TopicPartition]*Coordinator
}

// NewBuffer returns an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{items: make(map[messages.TopicPartition]*Coordinator)}
}

// FindOrCreate returns the Coordinator for tp, creating one if absent.
func (b *Buffer) FindOrCreate(tp messages.TopicPartition) *Coordinator {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.items[tp]
	if !ok {
		c = NewFromTP(tp)
		b.items[tp] = c
	}
	return c
}

// NewFromTP is a convenience constructor mirroring New(topic, partition).
func NewFromTP(tp messages.TopicPartition) *Coordinator {
	return New(tp.Topic, tp.Partition)
}

// Find returns the Coordinator for tp without creating one.
func (b *Buffer) Find(tp messages.TopicPartition) (*Coordinator, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.items[tp]
	return c, ok
}

// Delete removes the Coordinator tracked for tp, used once a partition is
// revoked and its executors torn down.
func (b *Buffer) Delete(tp messages.TopicPartition) {
	b.mu.Lock()
	delete(b.items, tp)
	b.mu.Unlock()
}

// Resume calls fn for every (topic, partition) whose pause has expired as
// of now.
func (b *Buffer) Resume(now time.Time, fn func(topic string, partition int32)) {
	b.Each(func(tp messages.TopicPartition, c *Coordinator) {
		if c.Resume(now) {
			fn(tp.Topic, tp.Partition)
		}
	})
}

// Each calls fn for every tracked coordinator.
func (b *Buffer) Each(fn func(tp messages.TopicPartition, c *Coordinator)) {
	b.mu.Lock()
	snapshot := make(map[messages.TopicPartition]*Coordinator, len(b.items))
	for k, v := range b.items {
		snapshot[k] = v
	}
	b.mu.Unlock()
	for tp, c := range snapshot {
		fn(tp, c)
	}
}

// Clear drops every tracked coordinator.
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.items = make(map[messages.TopicPartition]*Coordinator)
	b.mu.Unlock()
}
