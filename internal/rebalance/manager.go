// Package rebalance implements the RebalanceManager: it receives the
// driver's three rebalance callbacks and publishes flags the Listener
// reads on its own goroutine. Those callbacks are invoked only from the
// driver's internal poll thread, so writes here are single-writer;
// readers only ever observe published state through the "changed"/
// "active" flags plus a snapshot mutex, never by racing the writer's set
// construction.
package rebalance

import "sync"

// Manager tracks assigned/revoked/lost partitions across the client
// lifetime.
type Manager struct {
	mu sync.Mutex

	assigned map[string]map[int32]struct{}
	revoked  map[string]map[int32]struct{}
	lost     map[string]map[int32]struct{}

	changed bool
	active  bool
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{
		assigned: make(map[string]map[int32]struct{}),
		revoked:  make(map[string]map[int32]struct{}),
		lost:     make(map[string]map[int32]struct{}),
	}
}

// OnPartitionsAssigned records newly assigned partitions.
func (m *Manager) OnPartitionsAssigned(topic string, partitions []int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	addAll(m.assigned, topic, partitions)
	m.changed = true
	m.active = true
}

// OnPartitionsRevoked records partitions revoked by a cooperative rebalance.
func (m *Manager) OnPartitionsRevoked(topic string, partitions []int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	addAll(m.revoked, topic, partitions)
	removeAll(m.assigned, topic, partitions)
	m.changed = true
	m.active = true
}

// OnPartitionsLost records partitions lost without a clean revoke (the
// driver could not commit final offsets before losing ownership).
func (m *Manager) OnPartitionsLost(topic string, partitions []int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	addAll(m.lost, topic, partitions)
	addAll(m.revoked, topic, partitions)
	removeAll(m.assigned, topic, partitions)
	m.changed = true
	m.active = true
}

// Changed reports whether any callback fired since the last Clear.
func (m *Manager) Changed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changed
}

// Clear resets the changed flag and empties the revoked and lost sets;
// the assigned set persists.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changed = false
	m.revoked = make(map[string]map[int32]struct{})
	m.lost = make(map[string]map[int32]struct{})
}

// Active reports whether at least one rebalance callback has ever fired,
// used by Client.Stop's cooperative-sticky pre-close wait.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// AssignedPartitions returns a snapshot of currently assigned partitions.
func (m *Manager) AssignedPartitions() map[string][]int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return snapshot(m.assigned)
}

// RevokedPartitions returns the union of revoked and lost partitions.
func (m *Manager) RevokedPartitions() map[string][]int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	union := make(map[string]map[int32]struct{})
	for topic, parts := range m.revoked {
		for p := range parts {
			addOne(union, topic, p)
		}
	}
	for topic, parts := range m.lost {
		for p := range parts {
			addOne(union, topic, p)
		}
	}
	return snapshot(union)
}

// LostPartitions returns a snapshot of the lost set alone.
func (m *Manager) LostPartitions() map[string][]int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return snapshot(m.lost)
}

func addAll(dst map[string]map[int32]struct{}, topic string, partitions []int32) {
	for _, p := range partitions {
		addOne(dst, topic, p)
	}
}

func addOne(dst map[string]map[int32]struct{}, topic string, p int32) {
	set, ok := dst[topic]
	if !ok {
		set = make(map[int32]struct{})
		dst[topic] = set
	}
	set[p] = struct{}{}
}

func removeAll(dst map[string]map[int32]struct{}, topic string, partitions []int32) {
	set, ok := dst[topic]
	if !ok {
		return
	}
	for _, p := range partitions {
		delete(set, p)
	}
	if len(set) == 0 {
		delete(dst, topic)
	}
}

func snapshot(src map[string]map[int32]struct{}) map[string][]int32 {
	out := make(map[string][]int32, len(src))
	for topic, set := range src {
		parts := make([]int32, 0, len(set))
		for p := range set {
			parts = append(parts, p)
		}
		out[topic] = parts
	}
	return out
}
