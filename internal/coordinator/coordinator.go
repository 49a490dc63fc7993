// Package coordinator tracks per-(topic,partition) in-flight job counts,
// pause/resume timers and revocation flags for a Listener. The
// counter-plus-resume-timestamp shape mirrors a checkpoint tracking the
// highest resolved position under out-of-order completion, generalized
// here into a job counter with an explicit resume-at time.
package coordinator

import (
	"sync"
	"time"
)

// Coordinator tracks the state of one (topic, partition) pair across a
// Listener's lifetime.
type Coordinator struct {
	mu sync.Mutex

	topic     string
	partition int32

	count int64

	pausedUntil time.Time
	paused      bool

	revoked bool

	retryCount int
	throttleResumeOffset int64

	lastProcessedOffset int64
}

// New returns a Coordinator for one partition.
func New(topic string, partition int32) *Coordinator {
	return &Coordinator{topic: topic, partition: partition, lastProcessedOffset: -1}
}

func (c *Coordinator) Topic() string     { return c.topic }
func (c *Coordinator) Partition() int32  { return c.partition }

// Start resets the per-batch counters before a new batch of jobs is
// scheduled for this partition.
func (c *Coordinator) Start(messageCount int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count = int64(messageCount)
}

// Increment adds n to the in-flight job counter.
func (c *Coordinator) Increment(n int64) {
	c.mu.Lock()
	c.count += n
	c.mu.Unlock()
}

// Decrement subtracts n from the in-flight job counter, floored at zero.
func (c *Coordinator) Decrement(n int64) {
	c.mu.Lock()
	c.count -= n
	if c.count < 0 {
		c.count = 0
	}
	c.mu.Unlock()
}

// Finished reports whether this partition has no outstanding work, or has
// been revoked (revocation short-circuits the counter check).
func (c *Coordinator) Finished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.revoked || c.count <= 0
}

// Pause marks this partition paused until the given instant.
func (c *Coordinator) Pause(until time.Time) {
	c.mu.Lock()
	c.paused = true
	c.pausedUntil = until
	c.mu.Unlock()
}

// Resume reports (and clears) an expired pause, returning ok=false if the
// partition isn't paused or its pause hasn't yet expired.
func (c *Coordinator) Resume(now time.Time) (ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused || now.Before(c.pausedUntil) {
		return false
	}
	c.paused = false
	c.retryCount = 0
	return true
}

// Paused reports the current pause state without clearing it.
func (c *Coordinator) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Revoke marks the partition revoked; Finished returns true from this
// point regardless of the in-flight counter.
func (c *Coordinator) Revoke() {
	c.mu.Lock()
	c.revoked = true
	c.mu.Unlock()
}

// Revoked reports whether Revoke has been called.
func (c *Coordinator) Revoked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.revoked
}

// IncrementRetry bumps and returns the consecutive-failure counter used by
// the exponential pause backoff.
func (c *Coordinator) IncrementRetry() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retryCount++
	return c.retryCount
}

func (c *Coordinator) RetryCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retryCount
}

// SetThrottleResumeOffset records the offset a throttling filter should
// seek back to once its interval has elapsed.
func (c *Coordinator) SetThrottleResumeOffset(offset int64) {
	c.mu.Lock()
	c.throttleResumeOffset = offset
	c.mu.Unlock()
}

func (c *Coordinator) ThrottleResumeOffset() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.throttleResumeOffset
}

// MarkProcessed records the highest offset this partition has completed.
func (c *Coordinator) MarkProcessed(offset int64) {
	c.mu.Lock()
	if offset > c.lastProcessedOffset {
		c.lastProcessedOffset = offset
	}
	c.mu.Unlock()
}

func (c *Coordinator) LastProcessedOffset() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastProcessedOffset
}
