package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRun("run", "ok", 1)
		m.UnitPlaced()
		m.Deduped(3)
		m.EventDeleted()
		m.RemoteError("create event")
		m.Horizon()
	})
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.UnitPlaced()
	m.UnitPlaced()
	m.Deduped(3)
	m.ObserveRun("run", "ok", 0.2)
	m.RemoteError("fetch events")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.UnitsPlaced))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.TasksDeduped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("run", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RemoteErrors.WithLabelValues("fetch events")))
}
