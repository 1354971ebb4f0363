package shiftio

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	refreshes       prometheus.Counter
	refreshDuration prometheus.Histogram
	stateChanges    *prometheus.CounterVec
	lineState       *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		refreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shiftio",
			Name:      "refresh_total",
			Help:      "Number of shift chain transfers.",
		}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "shiftio",
			Name:      "refresh_duration_seconds",
			Help:      "Time spent clocking one chain transfer.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 12),
		}),
		stateChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shiftio",
			Name:      "state_changes_total",
			Help:      "Committed input changes and output writes.",
		}, []string{"line", "kind"}),
		lineState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "shiftio",
			Name:      "line_state",
			Help:      "Last logical state of a line, 1 for ON.",
		}, []string{"line", "kind"}),
	}

	m.registry.MustRegister(m.refreshes, m.refreshDuration, m.stateChanges, m.lineState)
	return m
}

func (m *Metrics) ObserveRefresh(took time.Duration) {
	m.refreshes.Inc()
	m.refreshDuration.Observe(took.Seconds())
}

func (m *Metrics) StateChanged(name string, kind Kind, state bool) {
	m.stateChanges.WithLabelValues(name, string(kind)).Inc()

	value := 0.0
	if state {
		value = 1
	}
	m.lineState.WithLabelValues(name, string(kind)).Set(value)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
