// Package runtime holds the process-wide state that would otherwise live
// in global mutable variables: run status flags, the monitor event bus,
// the cross-client shutdown mutex, and the rendezvous used to coordinate
// shutdown across subscription groups in one consumer group. Every core
// component that needs any of this receives a *Runtime at construction
// instead of reaching for package-level state.
package runtime

import "sync/atomic"

// phase is the lifecycle state machine: running -> stopping -> stopped,
// with an orthogonal quieting -> quiet transition that can be entered from
// running or stopping.
type phase int32

const (
	phaseRunning phase = iota
	phaseStopping
	phaseStopped
)

// Runtime is the explicit substitute for Karafka's App/Runtime globals.
// Tests construct a fresh Runtime so state never leaks between cases.
type Runtime struct {
	phase   atomic.Int32
	quiet   atomic.Bool
	quieted atomic.Bool

	monitor  Monitor
	group    *GroupCoordinator
	shutdown *ShutdownGate
}

// New returns a Runtime in the running state, using mon for every
// monitor event it emits. A nil mon is replaced with a no-op monitor.
func New(mon Monitor) *Runtime {
	if mon == nil {
		mon = NoopMonitor{}
	}
	r := &Runtime{monitor: mon, shutdown: NewShutdownGate()}
	r.phase.Store(int32(phaseRunning))
	return r
}

func (r *Runtime) Monitor() Monitor { return r.monitor }

// ShutdownGate returns the process-wide shutdown mutex every Client this
// Runtime constructs shares.
func (r *Runtime) ShutdownGate() *ShutdownGate { return r.shutdown }

// SetGroupCoordinator attaches the cross-subscription-group rendezvous,
// built once the number of subscription groups sharing this consumer
// group is known.
func (r *Runtime) SetGroupCoordinator(gc *GroupCoordinator) { r.group = gc }

// GroupCoordinator returns the rendezvous attached via
// SetGroupCoordinator, or nil if this process has only one subscription
// group and none was ever attached.
func (r *Runtime) GroupCoordinator() *GroupCoordinator { return r.group }

// Running reports whether the process has not yet begun shutting down.
func (r *Runtime) Running() bool { return phase(r.phase.Load()) == phaseRunning }

// Stopping reports whether shutdown has been requested but has not
// finished draining.
func (r *Runtime) Stopping() bool { return phase(r.phase.Load()) == phaseStopping }

// Stopped reports whether shutdown has completed.
func (r *Runtime) Stopped() bool { return phase(r.phase.Load()) == phaseStopped }

// Done is the Listener's cue to stop enqueuing regular work.
func (r *Runtime) Done() bool { return !r.Running() }

// Quieting reports whether quiet mode has been requested but the queue
// has not yet drained.
func (r *Runtime) Quieting() bool { return r.quiet.Load() && !r.quieted.Load() }

// Quiet reports whether quiet mode is fully in effect.
func (r *Runtime) Quiet() bool { return r.quieted.Load() }

// RequestStop transitions running -> stopping and emits app.stopping.
// Idempotent: repeated calls after the first are no-ops.
func (r *Runtime) RequestStop() {
	if r.phase.CompareAndSwap(int32(phaseRunning), int32(phaseStopping)) {
		r.monitor.Instrument("app.stopping", nil)
	}
}

// MarkStopped transitions stopping -> stopped and emits app.stopped.
func (r *Runtime) MarkStopped() {
	if r.phase.CompareAndSwap(int32(phaseStopping), int32(phaseStopped)) {
		r.monitor.Instrument("app.stopped", nil)
	}
}

// MarkRunning emits app.running; used once at process start.
func (r *Runtime) MarkRunning() { r.monitor.Instrument("app.running", nil) }

// RequestQuiet enters quieting and emits app.quieting; a caller observes
// Quiet() becoming true once MarkQuiet is called after the jobs queue
// has drained.
func (r *Runtime) RequestQuiet() {
	if !r.quiet.Swap(true) {
		r.monitor.Instrument("app.quieting", nil)
	}
}

// MarkQuiet completes the quieting transition and emits app.quiet.
func (r *Runtime) MarkQuiet() {
	if r.quiet.Load() && !r.quieted.Swap(true) {
		r.monitor.Instrument("app.quiet", nil)
	}
}
