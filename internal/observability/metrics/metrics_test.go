package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findCounter(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if matchLabels(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %s %v not found", name, labels)
	return 0
}

func matchLabels(metric *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range metric.GetLabel() {
		if want, ok := labels[lp.GetName()]; ok {
			if want != lp.GetValue() {
				return false
			}
			matched++
		}
	}
	return matched == len(labels)
}

func TestPersonaMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPersonaMetrics(reg)

	m.ObserveResolution("WIDGET_B2B", "tenant", true)
	m.ObserveResolution("WIDGET_B2B", "tenant", true)
	m.ObserveFallback("WIDGET_ECOM", "no_tenant")
	m.ObserveCompose("dental_clinic", "en", "ok")
	m.ObserveLatency("WIDGET_B2C", 0.01)
	m.ObserveInvalidation()

	assert.Equal(t, 2.0, findCounter(t, reg, "persona_identity_resolutions_total",
		map[string]string{"channel": "WIDGET_B2B", "source": "tenant", "substituted": "true"}))
	assert.Equal(t, 1.0, findCounter(t, reg, "persona_identity_fallbacks_total",
		map[string]string{"reason": "no_tenant"}))
	assert.Equal(t, 1.0, findCounter(t, reg, "persona_prompt_compositions_total",
		map[string]string{"archetype": "dental_clinic", "status": "ok"}))
	assert.Equal(t, 1.0, findCounter(t, reg, "persona_tenant_cache_invalidations_total", nil))
}

func TestPersonaMetricsDefaultRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	prev := prometheus.DefaultRegisterer
	prometheus.DefaultRegisterer = reg
	t.Cleanup(func() { prometheus.DefaultRegisterer = prev })

	m := NewPersonaMetrics(nil)
	m.ObserveCompose("operator", "en", "error")
	assert.Equal(t, 1.0, findCounter(t, reg, "persona_prompt_compositions_total",
		map[string]string{"status": "error"}))
}

func TestPersonaMetricsNilSafe(t *testing.T) {
	var m *PersonaMetrics
	m.ObserveResolution("c", "s", false)
	m.ObserveFallback("c", "r")
	m.ObserveCompose("a", "l", "ok")
	m.ObserveLatency("c", 0.1)
	m.ObserveInvalidation()
}
