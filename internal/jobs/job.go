// Package jobs implements the JobsQueue and Worker pool: per-subscription-
// group FIFO queues drained by a process-wide pool of worker goroutines,
// with a combined wait primitive a Listener blocks on between fetch
// cycles. The condition-variable wait/notify shape gates a Listener on a
// job count reaching zero using a sync.Cond broadcast-on-release pattern.
package jobs

import (
	"github.com/paneq/karafka/internal/executor"
	"github.com/paneq/karafka/internal/messages"
)

// Kind enumerates the job kinds a Worker can be handed.
type Kind int

const (
	Consume Kind = iota
	Idle
	Revoked
	Shutdown
)

func (k Kind) String() string {
	switch k {
	case Consume:
		return "consume"
	case Idle:
		return "idle"
	case Revoked:
		return "revoked"
	case Shutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Job is one unit of work handed to a Worker. Messages is populated only
// for Consume jobs.
type Job struct {
	ID       uint64
	Kind     Kind
	Executor *executor.Executor
	Messages []messages.Message
}
