package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the provisioner.
type Metrics struct {
	Cycles          *prometheus.CounterVec
	CycleDuration   prometheus.Histogram
	ActiveConfigs   prometheus.Gauge
	Decisions       *prometheus.CounterVec
	Provisions      *prometheus.CounterVec
	ConfigErrors    *prometheus.CounterVec
	SolverIters     prometheus.Histogram
	AMMCallDuration *prometheus.HistogramVec
	Recommendations *prometheus.CounterVec
	PoolSnapshots   *prometheus.CounterVec
	Notifications   *prometheus.CounterVec
}

// New registers all collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "provisioner_cycles_total",
			Help: "Rebalance cycles by outcome",
		}, []string{"outcome"}),

		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "provisioner_cycle_duration_seconds",
			Help:    "Wall time of one rebalance cycle",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),

		ActiveConfigs: factory.NewGauge(prometheus.GaugeOpts{
			Name: "provisioner_active_configs",
			Help: "Active configs seen by the last cycle",
		}),

		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "provisioner_decisions_total",
			Help: "Trigger decisions by kind",
		}, []string{"decision"}),

		Provisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "provisioner_provisions_total",
			Help: "Provisioning attempts by result",
		}, []string{"result"}),

		ConfigErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "provisioner_config_errors_total",
			Help: "Per-config cycle errors by stage",
		}, []string{"stage"}),

		SolverIters: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "provisioner_solver_iterations",
			Help:    "Bisection iterations per converged split",
			Buckets: prometheus.LinearBuckets(1, 1, 12),
		}),

		AMMCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "provisioner_amm_call_duration_seconds",
			Help:    "AMM port call latency including retries",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "outcome"}),

		Recommendations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "provisioner_recommendations_total",
			Help: "Recommender calls by outcome",
		}, []string{"outcome"}),

		PoolSnapshots: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "provisioner_pool_snapshots_total",
			Help: "Pool stats snapshots by outcome",
		}, []string{"outcome"}),

		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "provisioner_notifications_total",
			Help: "Published notifications by subject kind and outcome",
		}, []string{"kind", "outcome"}),
	}
}

// ObserveAMMCall records one port call; it matches the AMM observer signature.
func (m *Metrics) ObserveAMMCall(method string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.AMMCallDuration.WithLabelValues(method, Outcome(err)).Observe(elapsed.Seconds())
}

// Outcome maps an error to an "ok"/"error" label.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
