package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	trackerName = "tracker_name"
	status      = "status"
	action      = "action"
)

var (
	// Refreshes counts completed full refresh passes (snapshot fetch, build,
	// reconcile).
	Refreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "floortrack_refresh_total",
		Help: "Number of completed full refresh passes",
	}, []string{trackerName})

	// RefreshErrors counts refresh passes abandoned due to a fetch failure.
	RefreshErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "floortrack_refresh_error_count",
		Help: "Number of abandoned refresh passes",
	}, []string{trackerName})

	// RefreshLatency is how long a full refresh pass takes.
	RefreshLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "floortrack_refresh_latency_seconds",
		Help:    "Full refresh pass latency in seconds",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10},
	}, []string{trackerName})

	// Records is the size of the current generation by record status.
	Records = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "floortrack_records",
		Help: "Current production records by status",
	}, []string{trackerName, status})

	// EstimatorTicks counts completed extrapolation passes.
	EstimatorTicks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "floortrack_estimator_tick_total",
		Help: "Number of completed estimator passes",
	}, []string{trackerName})

	// WorkflowErrors counts failed user-triggered workflow actions.
	WorkflowErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "floortrack_workflow_error_count",
		Help: "Number of failed workflow actions",
	}, []string{trackerName, action})
)

func init() {
	prometheus.MustRegister(
		Refreshes,
		RefreshErrors,
		RefreshLatency,
		Records,
		EstimatorTicks,
		WorkflowErrors,
	)
}
