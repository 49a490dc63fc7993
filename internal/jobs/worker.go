package jobs

import (
	"context"
	"time"

	"github.com/paneq/karafka/internal/runtime"
)

// longRunningPingInterval is how often a long_running_job's worker pings
// the broker while Consume is still running, keeping the consumer group
// session alive across a slow synchronous batch the same way
// Listener.shutdownSequence pings to keep rebalance callbacks pumping.
const longRunningPingInterval = 30 * time.Second

// Worker drains jobs for a fixed set of subscription groups, invoking the
// bound Executor's lifecycle hooks. A process-wide pool of `concurrency`
// Workers forms the worker-thread scheduling model, one goroutine each
// here.
type Worker struct {
	ID      int
	Queue   *Queue
	Groups  []string
	Monitor runtime.Monitor
}

// NewWorker returns a Worker bound to queue, servicing groups.
func NewWorker(id int, queue *Queue, groups []string, monitor runtime.Monitor) *Worker {
	if monitor == nil {
		monitor = runtime.NoopMonitor{}
	}
	return &Worker{ID: id, Queue: queue, Groups: groups, Monitor: monitor}
}

// Run pops jobs until the queue closes. Intended to run on its own
// goroutine; ctx only bounds individual Consume calls, not the pop loop
// itself (the loop exits via Queue.Close, a cooperative cancellation
// model rather than context cancellation of the loop itself).
func (w *Worker) Run(ctx context.Context) {
	for {
		job, gid, ok := w.Queue.PopAny(w.Groups)
		if !ok {
			return
		}
		w.process(ctx, job)
		w.Queue.Complete(gid, job)
	}
}

func (w *Worker) process(ctx context.Context, job *Job) {
	w.Monitor.Instrument("worker.process", map[string]any{"worker": w.ID, "kind": job.Kind.String()})
	defer w.Monitor.Instrument("worker.processed", map[string]any{"worker": w.ID, "kind": job.Kind.String()})

	defer func() {
		if r := recover(); r != nil {
			w.Monitor.Instrument("worker.process.error", map[string]any{"worker": w.ID, "panic": r})
		}
	}()

	switch job.Kind {
	case Consume:
		var stopPing chan struct{}
		if job.Executor.LongRunningJob {
			stopPing = make(chan struct{})
			go w.pingWhileRunning(ctx, job, stopPing)
		}
		err := job.Executor.RunConsume(ctx, job.Messages)
		if stopPing != nil {
			close(stopPing)
		}

		if err != nil {
			w.Monitor.Instrument("consumer.consume.error", map[string]any{"executor": job.Executor.ID, "error": err.Error()})
			if job.Executor.HandleConsumeError(ctx, job.Messages, err) {
				w.Monitor.Instrument("dead_letter_queue.dispatched", map[string]any{
					"topic": job.Executor.Topic, "partition": job.Executor.Partition,
				})
			} else {
				w.Monitor.Instrument("consumer.consuming.retry", map[string]any{
					"topic": job.Executor.Topic, "partition": job.Executor.Partition,
					"retry_count": job.Executor.Coordinator.RetryCount(),
				})
			}
		} else if len(job.Messages) > 0 {
			last := job.Messages[len(job.Messages)-1]
			job.Executor.Coordinator.MarkProcessed(last.Offset)
			if !job.Executor.Manual {
				job.Executor.Client.MarkAsConsumed(last)
			}
		}
		job.Executor.Coordinator.Decrement(1)
	case Idle:
		job.Executor.RunIdle()
	case Revoked:
		job.Executor.RunRevoked()
	case Shutdown:
		job.Executor.RunShutdown()
	}

	w.Monitor.Instrument("worker.completed", map[string]any{"worker": w.ID, "kind": job.Kind.String()})
}

// pingWhileRunning pings job's Client on a ticker until stop is closed,
// keeping the consumer group session alive across a long_running_job's
// synchronous Consume call.
func (w *Worker) pingWhileRunning(ctx context.Context, job *Job, stop chan struct{}) {
	t := time.NewTicker(longRunningPingInterval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			job.Executor.Client.Ping(ctx)
		}
	}
}
