package jobs

import "sync"

type group struct {
	pending  []*Job
	inFlight int
}

// Queue implements per-subscription-group FIFO queues sharing one
// combined wait primitive. A single mutex/condvar pair covers every group
// so a process-wide Worker pool can block on whichever groups it
// services without one condvar per group.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	groups map[string]*group
	closed bool
}

// New returns an empty Queue.
func New() *Queue {
	q := &Queue{groups: make(map[string]*group)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *Queue) ensure(gid string) *group {
	g, ok := q.groups[gid]
	if !ok {
		g = &group{}
		q.groups[gid] = g
	}
	return g
}

// Push enqueues job for gid. Non-blocking: bounding the queue is the
// Listener's responsibility (it always waits for its group to drain
// before the next fetch cycle), not the queue's.
func (q *Queue) Push(gid string, job *Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	g := q.ensure(gid)
	g.pending = append(g.pending, job)
	q.cond.Broadcast()
}

// Pop blocks until gid has a pending job or the queue closes, returning
// ok=false (the "sentinel") once closed with nothing left pending.
func (q *Queue) Pop(gid string) (job *Job, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	g := q.ensure(gid)
	for len(g.pending) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(g.pending) == 0 {
		return nil, false
	}
	job, g.pending = g.pending[0], g.pending[1:]
	g.inFlight++
	return job, true
}

// PopAny blocks until one of gids has a pending job or the queue closes,
// used by a process-wide worker pool that services more than one
// subscription group.
func (q *Queue) PopAny(gids []string) (job *Job, gid string, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		for _, id := range gids {
			g := q.ensure(id)
			if len(g.pending) > 0 {
				job, g.pending = g.pending[0], g.pending[1:]
				g.inFlight++
				return job, id, true
			}
		}
		if q.closed {
			return nil, "", false
		}
		q.cond.Wait()
	}
}

// Complete marks job (returned by Pop/PopAny for gid) as finished,
// decrementing the in-flight counter and waking any Wait callers.
func (q *Queue) Complete(gid string, job *Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	g := q.ensure(gid)
	if g.inFlight > 0 {
		g.inFlight--
	}
	q.cond.Broadcast()
}

// Wait blocks until gid has neither pending nor in-flight jobs.
func (q *Queue) Wait(gid string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	g := q.ensure(gid)
	for len(g.pending) > 0 || g.inFlight > 0 {
		q.cond.Wait()
	}
}

// Empty reports whether gid currently has neither pending nor in-flight
// jobs.
func (q *Queue) Empty(gid string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	g := q.ensure(gid)
	return len(g.pending) == 0 && g.inFlight == 0
}

// Clear drops gid's pending jobs without touching its in-flight counter,
// so a subsequent Wait still blocks on jobs already handed to a worker.
func (q *Queue) Clear(gid string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	g := q.ensure(gid)
	g.pending = nil
	q.cond.Broadcast()
}

// Close makes every blocked Pop/PopAny return the sentinel once drained.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}
