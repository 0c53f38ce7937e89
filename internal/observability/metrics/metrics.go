package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// PersonaMetrics exposes counters/histograms for persona resolution and
// composition.
type PersonaMetrics struct {
	resolutionsTotal *prometheus.CounterVec
	fallbacksTotal   *prometheus.CounterVec
	composeTotal     *prometheus.CounterVec
	composeLatency   *prometheus.HistogramVec
	invalidations    prometheus.Counter
}

func NewPersonaMetrics(reg prometheus.Registerer) *PersonaMetrics {
	m := &PersonaMetrics{
		resolutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "persona",
			Subsystem: "identity",
			Name:      "resolutions_total",
			Help:      "Identity resolutions by channel, source and whether the archetype was substituted",
		}, []string{"channel", "source", "substituted"}),
		fallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "persona",
			Subsystem: "identity",
			Name:      "fallbacks_total",
			Help:      "Resolutions that degraded to a hinted or channel-safe archetype",
		}, []string{"channel", "reason"}),
		composeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "persona",
			Subsystem: "prompt",
			Name:      "compositions_total",
			Help:      "Prompt compositions by archetype, language and status",
		}, []string{"archetype", "language", "status"}),
		composeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "persona",
			Subsystem: "prompt",
			Name:      "request_latency_seconds",
			Help:      "Latency of resolve plus compose",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),
		invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "persona",
			Subsystem: "tenant",
			Name:      "cache_invalidations_total",
			Help:      "Explicit tenant cache invalidations",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.resolutionsTotal, m.fallbacksTotal, m.composeTotal, m.composeLatency, m.invalidations)
	return m
}

func (m *PersonaMetrics) ObserveResolution(channel, source string, substituted bool) {
	if m == nil {
		return
	}
	m.resolutionsTotal.WithLabelValues(channel, source, strconv.FormatBool(substituted)).Inc()
}

func (m *PersonaMetrics) ObserveFallback(channel, reason string) {
	if m == nil {
		return
	}
	m.fallbacksTotal.WithLabelValues(channel, reason).Inc()
}

func (m *PersonaMetrics) ObserveCompose(archetype, language, status string) {
	if m == nil {
		return
	}
	m.composeTotal.WithLabelValues(archetype, language, status).Inc()
}

func (m *PersonaMetrics) ObserveLatency(channel string, seconds float64) {
	if m == nil {
		return
	}
	m.composeLatency.WithLabelValues(channel).Observe(seconds)
}

func (m *PersonaMetrics) ObserveInvalidation() {
	if m == nil {
		return
	}
	m.invalidations.Inc()
}
