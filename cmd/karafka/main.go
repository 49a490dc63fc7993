// Command karafka is the process entrypoint wiring the core runtime
// together: load configuration, register the Kafka driver, build the
// shared JobsQueue and worker pool, one Listener per subscription group,
// and run everything until the process receives a shutdown signal.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/paneq/karafka/internal/config"
	"github.com/paneq/karafka/internal/dlq"
	"github.com/paneq/karafka/internal/executor"
	"github.com/paneq/karafka/internal/jobs"
	"github.com/paneq/karafka/internal/kafkadriver"
	"github.com/paneq/karafka/internal/listener"
	"github.com/paneq/karafka/internal/logging"
	"github.com/paneq/karafka/internal/messages"
	"github.com/paneq/karafka/internal/runtime"
	"github.com/paneq/karafka/internal/scheduler"
	"github.com/paneq/karafka/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to the runtime config YAML")
	routingPath := flag.String("routing", "", "path to the subscription-group routing YAML")
	metricsPort := flag.Int("metrics-port", 9308, "port to expose /metrics on")
	flag.Parse()

	logging.InitFromEnv()
	log := logging.Named("main")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("config load failed", "err", err)
		os.Exit(1)
	}

	groups, err := loadRouting(*routingPath)
	if err != nil {
		log.Error("routing load failed", "err", err)
		os.Exit(1)
	}
	if len(groups) == 0 {
		log.Error("no subscription groups configured, nothing to run")
		os.Exit(1)
	}

	promMonitor := telemetry.NewMonitor(prometheus.DefaultRegisterer)
	monitor := runtime.NewMultiMonitor(runtime.NewLogMonitor(), promMonitor)
	telemetry.Expose(*metricsPort)

	rt := runtime.New(monitor)
	if len(groups) > 1 {
		rt.SetGroupCoordinator(runtime.NewGroupCoordinator(len(groups)))
	}
	rt.MarkRunning()

	var driverCfg kafkadriver.Config
	if err := cfg.DecodeKafka(&driverCfg); err != nil {
		log.Error("kafka config decode failed", "err", err)
		os.Exit(1)
	}

	sched, ok := scheduler.New(cfg.Internal.Processing.Scheduler)
	if !ok {
		sched = scheduler.FIFO{}
	}

	queue := jobs.New()

	var dispatcher dlq.Dispatcher
	if needsDLQ(groups) {
		d, err := dlq.NewSaramaDispatcher(driverCfg.Brokers, driverCfg.Version)
		if err != nil {
			log.Error("dlq dispatcher setup failed", "err", err)
			os.Exit(1)
		}
		dispatcher = d
	}

	listenerCfg := listener.Config{
		Runtime:             rt,
		Queue:               queue,
		Scheduler:           sched,
		Deserializers:       map[string]messages.Deserializer{},
		Partitioners:        buildPartitioners(groups),
		Filters:             buildFilters(groups),
		ConsumerPersistence: cfg.ConsumerPersistence,
		PauseTimeout:        cfg.PauseTimeout,
		PauseMaxTimeout:     cfg.PauseMaxTimeout,
		PauseExponential:    cfg.PauseWithExponentialBackoff,
		Dispatcher:          dispatcher,
	}

	listeners := buildListeners(groups, cfg.DriverName, driverCfg, listenerCfg)
	if len(listeners) == 0 {
		log.Error("no listeners could be built, exiting")
		os.Exit(1)
	}

	gids := make([]string, 0, len(listeners))
	for _, l := range listeners {
		gids = append(gids, l.ID)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	for i := 0; i < cfg.Concurrency; i++ {
		w := jobs.NewWorker(i, queue, gids, monitor)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx)
		}()
	}

	for _, l := range listeners {
		wg.Add(1)
		go func(l *listener.Listener) {
			defer wg.Done()
			l.Run(ctx)
		}(l)
	}

	<-ctx.Done()
	rt.RequestStop()
	wg.Wait()
	queue.Close()
	rt.MarkStopped()
}

func needsDLQ(groups []config.SubscriptionGroup) bool {
	for _, g := range groups {
		for _, t := range g.Topics {
			if t.DLQTopic != "" {
				return true
			}
		}
	}
	return false
}

// buildFilters constructs the per-topic Filter chain from routing flags:
// throttling, expiring and delaying compose in that order.
func buildFilters(groups []config.SubscriptionGroup) map[string][]executor.Filter {
	out := map[string][]executor.Filter{}
	for _, g := range groups {
		for _, t := range g.Topics {
			var chain []executor.Filter
			if t.Throttling.Limit > 0 {
				interval := time.Duration(t.Throttling.Interval) * time.Millisecond
				chain = append(chain, executor.ThrottleFilter{Throttle: executor.NewThrottle(t.Throttling.Limit, interval)})
			}
			if t.Expiring {
				chain = append(chain, executor.ExpiringFilter{TTL: time.Duration(t.ExpiringTTL) * time.Millisecond})
			}
			if t.Delaying {
				chain = append(chain, executor.DelayingFilter{DelayBy: time.Duration(t.DelayBy) * time.Millisecond})
			}
			if len(chain) > 0 {
				out[t.Name] = chain
			}
		}
	}
	return out
}

// buildPartitioners constructs the per-topic virtual-partitions
// Partitioner from routing flags.
func buildPartitioners(groups []config.SubscriptionGroup) map[string]executor.Partitioner {
	out := map[string]executor.Partitioner{}
	for _, g := range groups {
		for _, t := range g.Topics {
			if !t.VirtualPartitions {
				continue
			}
			out[t.Name] = executor.KeyPartitioner{Max: t.VirtualPartitionsMax}
		}
	}
	return out
}

func loadRouting(path string) ([]config.SubscriptionGroup, error) {
	if path == "" {
		return nil, nil
	}
	return config.LoadRouting(path)
}

func buildListeners(groups []config.SubscriptionGroup, driverName string, driverCfg kafkadriver.Config, cfg listener.Config) []*listener.Listener {
	out := make([]*listener.Listener, 0, len(groups))
	for _, g := range groups {
		l, err := listener.New(g.ID, g, driverName, driverCfg, cfg)
		if err != nil {
			logging.Named("main").Error("failed to build listener", "group", g.ID, "err", err)
			continue
		}
		out = append(out, l)
	}
	return out
}
