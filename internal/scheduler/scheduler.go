// Package scheduler implements the policy deciding the order in which
// consumption/revocation/shutdown jobs reach a JobsQueue. The default
// preserves submission order. Policy is an extension point for
// implementations that want to reorder to favor fairness across
// partitions, as long as per-partition submission order is preserved;
// no fairness policy is built in here (see the Open Question decision
// recorded in SPEC_FULL.md §D).
package scheduler

import "github.com/paneq/karafka/internal/jobs"

// Queue is the subset of JobsQueue a Scheduler pushes onto.
type Queue interface {
	Push(gid string, job *jobs.Job)
}

// Scheduler assigns jobs to a queue for one subscription group.
type Scheduler interface {
	ScheduleConsumption(q Queue, gid string, batch []*jobs.Job)
	ScheduleRevocation(q Queue, gid string, batch []*jobs.Job)
	ScheduleShutdown(q Queue, gid string, batch []*jobs.Job)
}

// FIFO is the default Scheduler: submission order, no reordering.
type FIFO struct{}

func (FIFO) ScheduleConsumption(q Queue, gid string, batch []*jobs.Job) { pushAll(q, gid, batch) }
func (FIFO) ScheduleRevocation(q Queue, gid string, batch []*jobs.Job)  { pushAll(q, gid, batch) }
func (FIFO) ScheduleShutdown(q Queue, gid string, batch []*jobs.Job)    { pushAll(q, gid, batch) }

func pushAll(q Queue, gid string, batch []*jobs.Job) {
	for _, j := range batch {
		q.Push(gid, j)
	}
}

// Policy is a named extension point for a Scheduler that reorders across
// partitions while preserving each partition's relative order. No
// implementation ships; register one via New/Register the way
// kafkadriver and executor register their pluggable pieces, once a
// concrete fairness policy is specified.
type Policy func() Scheduler

var registry = map[string]Policy{
	"fifo": func() Scheduler { return FIFO{} },
}

// Register makes a Scheduler policy available under name.
func Register(name string, p Policy) { registry[name] = p }

// New returns a fresh Scheduler registered under name.
func New(name string) (Scheduler, bool) {
	p, ok := registry[name]
	if !ok {
		return nil, false
	}
	return p(), true
}
