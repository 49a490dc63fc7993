// Package listener implements the per-subscription-group control loop
// tying together Client, CoordinatorsBuffer, ExecutorsBuffer, the
// Scheduler and the JobsQueue. One Listener owns exactly one Client and
// runs on its own goroutine.
package listener

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/paneq/karafka/internal/client"
	"github.com/paneq/karafka/internal/config"
	"github.com/paneq/karafka/internal/coordinator"
	"github.com/paneq/karafka/internal/dlq"
	"github.com/paneq/karafka/internal/executor"
	"github.com/paneq/karafka/internal/jobs"
	"github.com/paneq/karafka/internal/kafkadriver"
	"github.com/paneq/karafka/internal/messages"
	"github.com/paneq/karafka/internal/runtime"
	"github.com/paneq/karafka/internal/scheduler"
)

var nextJobID uint64

// Listener drives one SubscriptionGroup's fetch → schedule → wait cycle.
type Listener struct {
	ID    string
	Group config.SubscriptionGroup

	rt    *runtime.Runtime
	queue *jobs.Queue
	sched scheduler.Scheduler

	client *client.Client
	coords *coordinator.Buffer
	execs  *executor.Buffer

	deserializers map[string]messages.Deserializer
	partitioners  map[string]executor.Partitioner
	filters       map[string][]executor.Filter

	consumerPersistence bool
	pingInterval        time.Duration

	pauseTimeout    time.Duration
	pauseMaxTimeout time.Duration
	pauseExponential bool
	dispatcher      dlq.Dispatcher

	restartDelay time.Duration
}

// Config bundles the wiring a Listener needs beyond its SubscriptionGroup.
type Config struct {
	Runtime             *runtime.Runtime
	Queue               *jobs.Queue
	Scheduler           scheduler.Scheduler
	Deserializers       map[string]messages.Deserializer
	Partitioners        map[string]executor.Partitioner
	Filters             map[string][]executor.Filter
	ConsumerPersistence bool

	PauseTimeout     time.Duration
	PauseMaxTimeout  time.Duration
	PauseExponential bool
	Dispatcher       dlq.Dispatcher
}

// New builds a Listener for group, constructing its own Client.
func New(id string, group config.SubscriptionGroup, driverName string, driverCfg kafkadriver.Config, cfg Config) (*Listener, error) {
	topics := make([]string, 0, len(group.Topics))
	for _, t := range group.Topics {
		topics = append(topics, t.Name)
	}
	maxWait := time.Duration(group.MaxWaitTime) * time.Millisecond
	if maxWait <= 0 {
		maxWait = time.Second
	}
	maxMessages := group.MaxMessages
	if maxMessages <= 0 {
		maxMessages = 1000
	}

	c, err := client.New(cfg.Runtime, id, driverName, driverCfg, topics, maxWait, maxMessages)
	if err != nil {
		return nil, err
	}

	sched := cfg.Scheduler
	if sched == nil {
		sched = scheduler.FIFO{}
	}

	return &Listener{
		ID:                  id,
		Group:               group,
		rt:                  cfg.Runtime,
		queue:               cfg.Queue,
		sched:               sched,
		client:              c,
		coords:              coordinator.NewBuffer(),
		execs:               executor.NewBuffer(cfg.ConsumerPersistence),
		deserializers:       cfg.Deserializers,
		partitioners:        cfg.Partitioners,
		filters:             cfg.Filters,
		consumerPersistence: cfg.ConsumerPersistence,
		pingInterval:        200 * time.Millisecond,
		pauseTimeout:        cfg.PauseTimeout,
		pauseMaxTimeout:     cfg.PauseMaxTimeout,
		pauseExponential:    cfg.PauseExponential,
		dispatcher:          cfg.Dispatcher,
		restartDelay:        time.Second,
	}, nil
}

// Run executes the control loop until ctx is done, restarting the Client
// after any fatal poll error.
func (l *Listener) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if l.rt.Done() {
			l.shutdownSequence(ctx)
			return
		}
		if err := l.iterate(ctx); err != nil {
			l.rt.Monitor().Instrument("connection.listener.fetch_loop.error", map[string]any{"listener": l.ID, "error": err.Error()})
			l.queue.Clear(l.ID)
			l.queue.Wait(l.ID)
			_ = l.client.Reset(ctx)
			l.execs.Clear()
			l.coords.Clear()
			time.Sleep(l.restartDelay)
		}
	}
}

func (l *Listener) iterate(ctx context.Context) error {
	l.coords.Resume(time.Now(), func(topic string, partition int32) {
		l.client.Resume(topic, partition)
	})

	l.rt.Monitor().Instrument("connection.listener.fetch_loop", map[string]any{"listener": l.ID})
	mb, err := l.client.BatchPoll(ctx, l.deserializers)
	if err != nil {
		return err
	}
	l.rt.Monitor().Instrument("connection.listener.fetch_loop.received", map[string]any{
		"listener": l.ID, "size": mb.Size(),
	})

	rm := l.client.RebalanceManager()
	if rm.Changed() {
		l.handleRevocations(rm.RevokedPartitions())
	}

	var toSchedule []*jobs.Job
	for _, tp := range mb.TopicPartitions() {
		batch := l.applyFilters(tp, mb.Batch(tp))
		if len(batch) == 0 {
			continue
		}
		toSchedule = append(toSchedule, l.buildJobsForPartition(tp, batch)...)
	}

	for _, j := range toSchedule {
		j.Executor.RunBeforeEnqueue()
	}
	l.sched.ScheduleConsumption(l.queue, l.ID, toSchedule)
	l.queue.Wait(l.ID)
	return nil
}

// applyFilters runs tp's configured Filter chain (throttling, expiring,
// delaying) over batch, pausing the partition and returning nil when a
// filter throttles it.
func (l *Listener) applyFilters(tp messages.TopicPartition, batch []messages.Message) []messages.Message {
	filters := l.filters[tp.Topic]
	if len(filters) == 0 {
		return batch
	}
	now := time.Now()
	for _, f := range filters {
		res := f.Apply(now, tp, batch)
		switch res.Action {
		case executor.ActionThrottle:
			l.coords.FindOrCreate(tp).Pause(res.PauseUntil)
			l.client.Pause(tp.Topic, tp.Partition, res.SeekOffset)
			l.rt.Monitor().Instrument("filtering.throttled", map[string]any{"topic": tp.Topic, "partition": tp.Partition})
			return nil
		case executor.ActionSkip:
			l.rt.Monitor().Instrument("filtering.seek", map[string]any{"topic": tp.Topic, "partition": tp.Partition})
			batch = res.Batch
		default:
			batch = res.Batch
		}
	}
	return batch
}

func (l *Listener) buildJobsForPartition(tp messages.TopicPartition, batch []messages.Message) []*jobs.Job {
	topicCfg, _ := l.Group.TopicByName(tp.Topic)
	part := l.partitioners[tp.Topic]
	if part == nil {
		part = executor.SinglePartitioner{}
	}

	coord := l.coords.FindOrCreate(tp)
	groups := part.Partition(batch)
	if len(groups) == 0 {
		coord.Start(0)
		e := l.execs.FindOrCreate(l.ID, tp.Topic, tp.Partition, "", topicCfg.Consumer, coord, l.client)
		l.applyTopicConfig(e, topicCfg)
		return []*jobs.Job{{ID: atomic.AddUint64(&nextJobID, 1), Kind: jobs.Idle, Executor: e}}
	}

	coord.Start(len(groups))
	out := make([]*jobs.Job, 0, len(groups))
	for gid, msgs := range groups {
		e := l.execs.FindOrCreate(l.ID, tp.Topic, tp.Partition, gid, topicCfg.Consumer, coord, l.client)
		l.applyTopicConfig(e, topicCfg)
		coord.Increment(1)
		out = append(out, &jobs.Job{ID: atomic.AddUint64(&nextJobID, 1), Kind: jobs.Consume, Executor: e, Messages: msgs})
	}
	return out
}

// applyTopicConfig stamps e's pause/DLQ/offset-management behavior from
// topicCfg. Cheap to repeat on every lookup since FindOrCreate reuses the
// same *Executor.
func (l *Listener) applyTopicConfig(e *executor.Executor, topicCfg config.Topic) {
	e.RetryPolicy = executor.RetryPolicy{
		PauseTimeout:    l.pauseTimeout,
		PauseMaxTimeout: l.pauseMaxTimeout,
		Exponential:     l.pauseExponential,
		DLQTopic:        topicCfg.DLQTopic,
		DLQMaxRetries:   topicCfg.DLQMaxRetries,
		Dispatcher:      l.dispatcher,
	}
	e.Manual = topicCfg.Manual
	e.LongRunningJob = topicCfg.LongRunningJob
}

func (l *Listener) handleRevocations(revoked map[string][]int32) {
	var jobsBatch []*jobs.Job
	for topic, parts := range revoked {
		for _, p := range parts {
			tp := messages.TopicPartition{Topic: topic, Partition: p}
			if coord, ok := l.coords.Find(tp); ok {
				coord.Revoke()
			}
			for _, e := range l.execs.Revoke(topic, p) {
				jobsBatch = append(jobsBatch, &jobs.Job{ID: atomic.AddUint64(&nextJobID, 1), Kind: jobs.Revoked, Executor: e})
			}
			l.coords.Delete(tp)
		}
	}
	if len(jobsBatch) == 0 {
		return
	}
	l.sched.ScheduleRevocation(l.queue, l.ID, jobsBatch)
	l.queue.Wait(l.ID)
}

func (l *Listener) shutdownSequence(ctx context.Context) {
	stopPing := make(chan struct{})
	go func() {
		t := time.NewTicker(l.pingInterval)
		defer t.Stop()
		for {
			select {
			case <-stopPing:
				return
			case <-t.C:
				l.client.Ping(ctx)
			}
		}
	}()

	var jobsBatch []*jobs.Job
	l.execs.Each(func(e *executor.Executor) {
		jobsBatch = append(jobsBatch, &jobs.Job{ID: atomic.AddUint64(&nextJobID, 1), Kind: jobs.Shutdown, Executor: e})
	})
	l.sched.ScheduleShutdown(l.queue, l.ID, jobsBatch)
	l.queue.Wait(l.ID)

	close(stopPing)

	if gc := l.rt.GroupCoordinator(); gc != nil {
		gc.FinishWork(l.ID)
		gc.Wait()
		gc.Unlock()
	}

	l.client.Ping(ctx)
	_ = l.client.Stop()
}
