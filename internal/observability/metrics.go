package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service. Each
// instance owns its registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	Mutations      *prometheus.CounterVec
	PersistWrites  *prometheus.CounterVec
	PersistLoads   *prometheus.CounterVec
	PersistLatency prometheus.Histogram
	TasksTotal     prometheus.Gauge
	TasksRemaining prometheus.Gauge
	ActiveConns    prometheus.Gauge
	WSMessages     *prometheus.CounterVec
	HTTPRequests   *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_mutations_total",
			Help:      "Task store mutations by operation and outcome.",
		}, []string{"op", "outcome"}),
		PersistWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_writes_total",
			Help:      "Collection writes by result class.",
		}, []string{"result"}),
		PersistLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_loads_total",
			Help:      "Collection loads by result.",
		}, []string{"result"}),
		PersistLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "persist_write_latency_ms",
			Help:      "Latency of collection writes in milliseconds.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2000},
		}),
		TasksTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks",
			Help:      "Number of tasks in the collection.",
		}),
		TasksRemaining: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_remaining",
			Help:      "Number of tasks not yet completed.",
		}),
		ActiveConns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_active_connections",
			Help:      "Open websocket connections.",
		}),
		WSMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status.",
		}, []string{"method", "status"}),
	}
}

func (m *Metrics) ObserveMutation(op, outcome string) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) ObserveWrite(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.PersistWrites.WithLabelValues(result).Inc()
	m.PersistLatency.Observe(float64(d.Microseconds()) / 1000)
}

func (m *Metrics) ObserveLoad(result string) {
	if m == nil {
		return
	}
	m.PersistLoads.WithLabelValues(result).Inc()
}

func (m *Metrics) SetTaskCounts(total, remaining int) {
	if m == nil {
		return
	}
	m.TasksTotal.Set(float64(total))
	m.TasksRemaining.Set(float64(remaining))
}

func (m *Metrics) ObserveWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
