// Package telemetry exposes core events over Prometheus: a bare
// promhttp.Handler() exposition plus a runtime.Monitor implementation
// that turns selected named events into counters and gauges.
package telemetry

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Expose starts the /metrics HTTP endpoint in the background.
func Expose(port int) {
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		_ = http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
	}()
}

// Monitor implements runtime.Monitor by translating events into Prometheus
// series. It is registered against a caller-supplied registry so tests can
// use prometheus.NewRegistry() instead of the global default.
type Monitor struct {
	jobsTotal     *prometheus.CounterVec
	jobErrors     *prometheus.CounterVec
	clientErrors  *prometheus.CounterVec
	pausedGauge   prometheus.Gauge
	queueDepth    *prometheus.GaugeVec
	dlqDispatched *prometheus.CounterVec
	throttled     *prometheus.CounterVec
}

// NewMonitor registers every series against reg and returns the Monitor.
func NewMonitor(reg prometheus.Registerer) *Monitor {
	m := &Monitor{
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "karafka_worker_jobs_total",
			Help: "Number of jobs processed by workers, by kind.",
		}, []string{"kind"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "karafka_worker_errors_total",
			Help: "Number of job hooks that raised, by kind.",
		}, []string{"kind"}),
		clientErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "karafka_client_errors_total",
			Help: "Number of client-reported driver errors, by type.",
		}, []string{"type"}),
		pausedGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "karafka_paused_partitions",
			Help: "Number of currently paused topic partitions.",
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "karafka_jobs_queue_depth",
			Help: "Pending+in-flight job count per subscription group.",
		}, []string{"group"}),
		dlqDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "karafka_dlq_dispatched_total",
			Help: "Number of messages dispatched to a dead-letter topic.",
		}, []string{"topic"}),
		throttled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "karafka_filtering_throttled_total",
			Help: "Number of times a partition was throttled.",
		}, []string{"topic"}),
	}
	reg.MustRegister(m.jobsTotal, m.jobErrors, m.clientErrors, m.pausedGauge, m.queueDepth, m.dlqDispatched, m.throttled)
	return m
}

func (m *Monitor) Instrument(event string, payload map[string]any) {
	switch event {
	case "worker.completed":
		m.jobsTotal.WithLabelValues(str(payload["kind"])).Inc()
	case "worker.process.error", "consumer.consume.error", "consumer.revoked.error", "consumer.shutdown.error":
		m.jobErrors.WithLabelValues(str(payload["kind"])).Inc()
	case "error.occurred":
		m.clientErrors.WithLabelValues(str(payload["type"])).Inc()
	case "client.pause":
		m.pausedGauge.Inc()
	case "client.resume":
		m.pausedGauge.Dec()
	case "dead_letter_queue.dispatched":
		m.dlqDispatched.WithLabelValues(str(payload["topic"])).Inc()
	case "filtering.throttled":
		m.throttled.WithLabelValues(str(payload["topic"])).Inc()
	case "connection.listener.fetch_loop.received":
		if g, ok := payload["subscription_group"]; ok {
			if depth, ok := payload["queue_depth"].(int); ok {
				m.queueDepth.WithLabelValues(str(g)).Set(float64(depth))
			}
		}
	}
}

func str(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
