package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Queue / scheduler metrics

	JobPickupLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "wp4odoo",
		Name:      "job_pickup_latency_seconds",
		Help:      "Time from job creation to the scheduler claiming it.",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	JobDriveDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wp4odoo",
		Name:      "job_drive_duration_seconds",
		Help:      "Duration of a single Orchestrator drive-through, by outcome.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"module", "outcome"})

	JobsCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wp4odoo",
		Name:      "jobs_completed_total",
		Help:      "Total jobs finished, by module and outcome.",
	}, []string{"module", "outcome"})

	QueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "wp4odoo",
		Name:      "queue_depth",
		Help:      "Number of pending jobs, by module.",
	}, []string{"module"})

	// Reaper metrics

	ReaperRescuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wp4odoo",
		Name:      "reaper_rescued_total",
		Help:      "Total stale jobs handled by the reaper.",
	}, []string{"action"})

	ReaperCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "wp4odoo",
		Name:      "reaper_cycle_duration_seconds",
		Help:      "Time taken for one reaper cycle.",
		Buckets:   prometheus.DefBuckets,
	})

	// Breaker metrics

	BreakerStateGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "wp4odoo",
		Name:      "breaker_state",
		Help:      "Circuit breaker phase: 0=closed, 1=half_open, 2=open.",
	}, []string{"scope"}) // scope = "global" or module id

	// Reconciler metrics

	ReconcilerOrphansTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wp4odoo",
		Name:      "reconciler_orphans_total",
		Help:      "Orphaned mappings found/removed by the reconciler.",
	}, []string{"module", "entity_type", "action"})

	// Worker lifecycle

	WorkerStartTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "wp4odoo",
		Name:      "worker_start_time_seconds",
		Help:      "Unix timestamp when the worker started.",
	})

	WorkerShutdownsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "wp4odoo",
		Name:      "worker_shutdowns_total",
		Help:      "Number of times the worker has shut down.",
	})

	// Operator HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wp4odoo",
		Name:      "http_request_duration_seconds",
		Help:      "Operator HTTP surface request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wp4odoo",
		Name:      "http_requests_total",
		Help:      "Total operator HTTP surface requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		JobPickupLatency,
		JobDriveDuration,
		JobsCompletedTotal,
		QueueDepth,
		ReaperRescuedTotal,
		ReaperCycleDuration,
		BreakerStateGauge,
		ReconcilerOrphansTotal,
		WorkerStartTime,
		WorkerShutdownsTotal,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux}
}
