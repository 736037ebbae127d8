package querycache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// fetch outcomes
const (
	outcomeHit   = "hit"
	outcomeMiss  = "miss"
	outcomeError = "error"
)

type metrics struct {
	events         *prometheus.CounterVec
	fetches        *prometheus.CounterVec
	listenerErrors prometheus.Counter
	observers      prometheus.Gauge
	entries        prometheus.Gauge
}

func newMetrics(namespace string) *metrics {
	factory := promauto.With(nil)
	return &metrics{
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Entry events emitted by type",
		}, []string{"type"}),
		fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Fetch calls by outcome",
		}, []string{"outcome"}),
		listenerErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listener_errors_total",
			Help:      "Listener failures reported by entry and cache buses",
		}),
		observers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "observers",
			Help:      "Listeners currently subscribed to entries",
		}),
		entries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entries",
			Help:      "Entries currently held by the cache",
		}),
	}
}

func (m *metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.events, m.fetches, m.listenerErrors, m.observers, m.entries}
}

// register adds the collectors to reg. Nothing is registered for a nil reg.
func (m *metrics) register(reg prometheus.Registerer) error {
	if reg == nil {
		return nil
	}
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
