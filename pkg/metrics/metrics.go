// Package metrics defines the Prometheus collectors for rule synchronization.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rulesync"

// Metrics holds the collectors updated by the synchronization loop.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	catalogRules      prometheus.Gauge
	loads             *prometheus.CounterVec
	events            *prometheus.CounterVec
	watchRestarts     prometheus.Counter
	loopState         prometheus.Gauge
	reconcileDuration prometheus.Histogram
}

// New creates [Metrics] registered with a new registry, along with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		catalogRules: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "rules",
			Help:      "Number of rules in the catalog",
		}),
		loads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Rule file loads by result",
		}, []string{"result"}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "events_total",
			Help:      "Directory events processed by operation",
		}, []string{"op"}),
		watchRestarts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "restarts_total",
			Help:      "Directory subscriptions re-established after a disruption",
		}),
		loopState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "state",
			Help:      "Current synchronization loop state (0=init 1=waiting 2=processing 3=restarting 4=stopped)",
		}),
		reconcileDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Time taken to reconcile the catalog with the directory",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) SetCatalogRules(n int) {
	if m == nil {
		return
	}

	m.catalogRules.Set(float64(n))
}

// ObserveLoad counts a load with result, such as "ok" or "parse".
func (m *Metrics) ObserveLoad(result string) {
	if m == nil {
		return
	}

	m.loads.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveEvent(op string) {
	if m == nil {
		return
	}

	m.events.WithLabelValues(op).Inc()
}

func (m *Metrics) IncWatchRestarts() {
	if m == nil {
		return
	}

	m.watchRestarts.Inc()
}

func (m *Metrics) SetLoopState(state int) {
	if m == nil {
		return
	}

	m.loopState.Set(float64(state))
}

func (m *Metrics) ObserveReconcile(seconds float64) {
	if m == nil {
		return
	}

	m.reconcileDuration.Observe(seconds)
}
