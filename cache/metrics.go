package cache

import (
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Demotion results reported by cachew_demotions_total.
const (
	DemotionOK       = "ok"
	DemotionFailed   = "failed"
	DemotionDropped  = "dropped"
	DemotionRejected = "rejected"
)

// metrics holds the Prometheus collectors of one named cache. A nil
// *metrics records nothing.
type metrics struct {
	hits       prometheus.Counter
	misses     prometheus.Counter
	evictions  prometheus.Counter
	demotions  *prometheus.CounterVec
	queueDepth prometheus.Gauge
}

// newMetrics registers the cachew collectors with reg, reusing collectors
// another cache already registered, and curries them with name.
func newMetrics(reg prometheus.Registerer, name string) *metrics {
	if reg == nil {
		return nil
	}
	hits := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cachew_cache_hits_total",
		Help: "Total memory tier lookups that found the key",
	}, []string{"cache"}))
	misses := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cachew_cache_misses_total",
		Help: "Total memory tier lookups that did not find the key",
	}, []string{"cache"}))
	evictions := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cachew_cache_evictions_total",
		Help: "Total entries evicted by capacity or cost pressure",
	}, []string{"cache"}))
	demotions := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cachew_demotions_total",
		Help: "Total evicted entries handed to the durable tier, by result",
	}, []string{"cache", "result"}))
	queueDepth := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cachew_demotion_queue_depth",
		Help: "Demotions waiting for a worker",
	}, []string{"cache"}))

	labels := prometheus.Labels{"cache": name}
	return &metrics{
		hits:       hits.With(labels),
		misses:     misses.With(labels),
		evictions:  evictions.With(labels),
		demotions:  demotions.MustCurryWith(labels),
		queueDepth: queueDepth.With(labels),
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *metrics) hit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *metrics) miss() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *metrics) evicted(n int) {
	if m != nil && n > 0 {
		m.evictions.Add(float64(n))
	}
}

func (m *metrics) demotion(result string) {
	if m != nil {
		m.demotions.WithLabelValues(result).Inc()
	}
}

func (m *metrics) queued(depth int) {
	if m != nil {
		m.queueDepth.Set(float64(depth))
	}
}
