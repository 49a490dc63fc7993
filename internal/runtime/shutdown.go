package runtime

import "sync"

// ShutdownGate serializes Client shutdown across every client sharing one
// Runtime, modeled as an explicit primitive owned by the Runtime rather
// than a package-level lock, so tests get one per Runtime instance instead
// of sharing global state across test cases.
type ShutdownGate struct {
	mu sync.Mutex
}

// NewShutdownGate returns a fresh gate. A process normally has exactly one,
// shared by every client.Client it creates.
func NewShutdownGate() *ShutdownGate { return &ShutdownGate{} }

// With serializes fn against every other Close across every Client sharing
// this gate, so at most one close executes at a time.
func (g *ShutdownGate) With(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn()
}
