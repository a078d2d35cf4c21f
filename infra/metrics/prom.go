package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/rakeplan/core/metrics"
)

// PromSink exposes plan, rake, release and stage records as Prometheus metrics.
type PromSink struct {
	plans       *prometheus.CounterVec
	planCost    *prometheus.GaugeVec
	planLoad    *prometheus.GaugeVec
	planUtil    *prometheus.GaugeVec
	planSLA     *prometheus.GaugeVec
	unplaced    *prometheus.GaugeVec
	rakeUtil    *prometheus.GaugeVec
	rakeCPU     *prometheus.GaugeVec
	releases    *prometheus.CounterVec
	ackLatency  *prometheus.HistogramVec
	stageTiming *prometheus.HistogramVec
}

// NewPromSink registers the sink metrics on the default Prometheus registerer.
// The exposition server is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by a previous sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		plans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rakeplan_plans_recorded_total",
			Help: "Number of plans recorded",
		}, []string{"strategy"}),
		planCost: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rakeplan_plan_total_cost",
			Help: "Total cost of the last plan",
		}, []string{"strategy"}),
		planLoad: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rakeplan_plan_total_load",
			Help: "Total load carried by the last plan",
		}, []string{"strategy"}),
		planUtil: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rakeplan_plan_utilization_percent",
			Help: "Average rake utilization of the last plan",
		}, []string{"strategy"}),
		planSLA: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rakeplan_plan_sla_compliance_percent",
			Help: "Share of orders delivered on time in the last plan",
		}, []string{"strategy"}),
		unplaced: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rakeplan_plan_unplaced_orders",
			Help: "Orders left out of the last plan by stage",
		}, []string{"stage"}),
		rakeUtil: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rakeplan_rake_utilization_percent",
			Help: "Utilization of the last rake planned per loading point and route",
		}, []string{"loading_point", "route"}),
		rakeCPU: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rakeplan_rake_cost_per_unit",
			Help: "Cost per unit of the last rake planned per loading point and route",
		}, []string{"loading_point", "route"}),
		releases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rakeplan_release_events_total",
			Help: "Rake releases per loading point",
		}, []string{"loading_point", "acknowledged"}),
		ackLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rakeplan_release_ack_latency_seconds",
			Help:    "Time between command send and loading point acknowledgment",
			Buckets: prometheus.DefBuckets,
		}, []string{"loading_point"}),
		stageTiming: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rakeplan_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"stage"}),
	}
	var err error
	if s.plans, err = register(reg, s.plans); err != nil {
		return nil, err
	}
	for _, g := range []**prometheus.GaugeVec{&s.planCost, &s.planLoad, &s.planUtil, &s.planSLA, &s.unplaced, &s.rakeUtil, &s.rakeCPU} {
		if *g, err = register(reg, *g); err != nil {
			return nil, err
		}
	}
	if s.releases, err = register(reg, s.releases); err != nil {
		return nil, err
	}
	if s.ackLatency, err = register(reg, s.ackLatency); err != nil {
		return nil, err
	}
	if s.stageTiming, err = register(reg, s.stageTiming); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordPlan updates the plan level metrics.
func (s *PromSink) RecordPlan(r coremetrics.PlanRecord) error {
	s.plans.WithLabelValues(r.Strategy).Inc()
	s.planCost.WithLabelValues(r.Strategy).Set(r.TotalCost)
	s.planLoad.WithLabelValues(r.Strategy).Set(r.TotalLoad)
	s.planUtil.WithLabelValues(r.Strategy).Set(r.AvgUtilization)
	s.planSLA.WithLabelValues(r.Strategy).Set(r.SLACompliance)
	s.unplaced.WithLabelValues("allocate").Set(float64(r.Unallocated))
	s.unplaced.WithLabelValues("route").Set(float64(r.Unrouted))
	s.unplaced.WithLabelValues("pack").Set(float64(r.Deferred))
	return nil
}

// RecordRakes sets the per-corridor rake gauges.
func (s *PromSink) RecordRakes(recs []coremetrics.RakeRecord) error {
	for _, r := range recs {
		s.rakeUtil.WithLabelValues(r.LoadingPointID, r.RouteID).Set(r.Utilization)
		s.rakeCPU.WithLabelValues(r.LoadingPointID, r.RouteID).Set(r.CostPerUnit)
	}
	return nil
}

// RecordRelease counts the release and observes its latency.
func (s *PromSink) RecordRelease(r coremetrics.ReleaseRecord) error {
	s.releases.WithLabelValues(r.LoadingPointID, strconv.FormatBool(r.Acknowledged)).Inc()
	if r.Acknowledged {
		s.ackLatency.WithLabelValues(r.LoadingPointID).Observe(r.Latency.Seconds())
	}
	return nil
}

// RecordStage observes the stage duration.
func (s *PromSink) RecordStage(r coremetrics.StageRecord) error {
	s.stageTiming.WithLabelValues(r.Stage).Observe(r.Duration.Seconds())
	return nil
}
