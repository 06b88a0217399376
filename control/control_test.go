package control

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gathered flattens counters and gauges into "name{label...}" -> value.
func gathered(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := map[string]float64{}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			key := f.GetName()
			for _, lp := range m.GetLabel() {
				key += "{" + lp.GetValue() + "}"
			}
			out[key] += m.GetCounter().GetValue() + m.GetGauge().GetValue()
		}
	}
	return out
}

func TestMetricsRegisterOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.Accepted.Inc()
	m.Closed.WithLabelValues(ReasonIdle).Inc()
	m.Active.Set(3)

	got := gathered(t, reg)
	assert.Equal(t, 1.0, got["test_connections_accepted_total"])
	assert.Equal(t, 1.0, got["test_connections_closed_total{idle}"])
	assert.Equal(t, 3.0, got["test_connections_active"])
}

func TestMetricsPrivateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics("", nil)
		NewMetrics("", nil)
	})
}

func TestDebugProbes(t *testing.T) {
	dp := NewDebugProbes()
	dp.RegisterProbe("answer", func() any { return 42 })
	dp.RegisterProbe("name", func() any { return "x" })

	state := dp.DumpState()
	assert.Equal(t, 42, state["answer"])
	assert.Equal(t, "x", state["name"])
	assert.ElementsMatch(t, []string{"answer", "name"}, dp.Names())
}

func TestConfigStoreNotifiesListeners(t *testing.T) {
	cs := NewConfigStore()
	var seen map[string]any
	cs.OnReload(func(changed map[string]any) { seen = changed })

	cs.SetConfig(map[string]any{KeyIdleTimeout: 5 * time.Second})

	assert.Equal(t, 5*time.Second, seen[KeyIdleTimeout])
	assert.Equal(t, 5*time.Second, cs.Duration(KeyIdleTimeout, time.Second))
	assert.Equal(t, time.Second, cs.Duration("missing", time.Second))
	assert.Len(t, cs.GetSnapshot(), 1)
}
