package decision

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	planRuns        *prometheus.CounterVec
	planLatency     *prometheus.HistogramVec
	planScore       *prometheus.GaugeVec
	planConfidence  *prometheus.GaugeVec
	rakesPlanned    *prometheus.CounterVec
	ordersUnplaced  *prometheus.CounterVec
	risksIdentified *prometheus.CounterVec
)

func newCollectors() (*prometheus.CounterVec, *prometheus.HistogramVec, *prometheus.GaugeVec, *prometheus.GaugeVec, *prometheus.CounterVec, *prometheus.CounterVec, *prometheus.CounterVec) {
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rakeplan_runs_total",
			Help: "Number of planning runs",
		},
		[]string{"strategy"},
	)
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rakeplan_run_duration_seconds",
			Help:    "Duration of a planning run from validation to explanation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)
	score := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rakeplan_plan_score",
			Help: "Objective score of the last plan",
		},
		[]string{"strategy"},
	)
	conf := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rakeplan_plan_confidence",
			Help: "Confidence percentage of the last plan",
		},
		[]string{"strategy"},
	)
	rakes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rakeplan_rakes_planned_total",
			Help: "Number of rakes accepted into plans",
		},
		[]string{"strategy"},
	)
	unplaced := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rakeplan_orders_unplaced_total",
			Help: "Orders left out of a plan by pipeline stage",
		},
		[]string{"stage"},
	)
	risks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rakeplan_risks_total",
			Help: "Risks identified in plans",
		},
		[]string{"category", "severity"},
	)
	return runs, lat, score, conf, rakes, unplaced, risks
}

func init() {
	planRuns, planLatency, planScore, planConfidence, rakesPlanned, ordersUnplaced, risksIdentified = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers planning metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(planRuns, planLatency, planScore, planConfidence, rakesPlanned, ordersUnplaced, risksIdentified)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	planRuns, planLatency, planScore, planConfidence, rakesPlanned, ordersUnplaced, risksIdentified = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
