package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the scheduler's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Runs           *prometheus.CounterVec
	RunDuration    prometheus.Histogram
	UnitsPlaced    prometheus.Counter
	TasksDeduped   prometheus.Counter
	EventsDeleted  prometheus.Counter
	RemoteErrors   *prometheus.CounterVec
	HorizonReached prometheus.Counter
}

// New registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taskslot_runs_total",
			Help: "Scheduling runs by mode and outcome",
		}, []string{"mode", "outcome"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskslot_run_duration_seconds",
			Help:    "Wall time of a scheduling run",
			Buckets: prometheus.DefBuckets,
		}),
		UnitsPlaced: factory.NewCounter(prometheus.CounterOpts{
			Name: "taskslot_units_placed_total",
			Help: "Work units booked on the calendar",
		}),
		TasksDeduped: factory.NewCounter(prometheus.CounterOpts{
			Name: "taskslot_tasks_deduplicated_total",
			Help: "Tasks skipped because a matching event already exists",
		}),
		EventsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "taskslot_events_deleted_total",
			Help: "Scheduler events removed by reschedule",
		}),
		RemoteErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taskslot_remote_errors_total",
			Help: "Failed calls to task or calendar services",
		}, []string{"op"}),
		HorizonReached: factory.NewCounter(prometheus.CounterOpts{
			Name: "taskslot_horizon_stops_total",
			Help: "Runs that stopped at the scheduling horizon",
		}),
	}
}

func (m *Metrics) ObserveRun(mode, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(mode, outcome).Inc()
	m.RunDuration.Observe(seconds)
}

func (m *Metrics) UnitPlaced() {
	if m != nil {
		m.UnitsPlaced.Inc()
	}
}

func (m *Metrics) Deduped(n int) {
	if m != nil {
		m.TasksDeduped.Add(float64(n))
	}
}

func (m *Metrics) EventDeleted() {
	if m != nil {
		m.EventsDeleted.Inc()
	}
}

func (m *Metrics) RemoteError(op string) {
	if m != nil {
		m.RemoteErrors.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) Horizon() {
	if m != nil {
		m.HorizonReached.Inc()
	}
}

// Handler serves the collectors gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
