package metrics

import "time"

// PlanRecord summarises one planning run.
type PlanRecord struct {
	PlanID         string
	Strategy       string
	Rakes          int
	Orders         int
	Unallocated    int
	Unrouted       int
	Deferred       int
	TotalLoad      float64
	TotalCost      float64
	AvgUtilization float64
	SLACompliance  float64
	Confidence     float64
	Score          float64
	Risks          int
	HighRisks      int
	Iterations     int
	Duration       time.Duration
	Time           time.Time
}

// PlanSink records planning runs for observability purposes.
type PlanSink interface {
	RecordPlan(rec PlanRecord) error
}

// RakeRecord describes one rake of a plan.
type RakeRecord struct {
	PlanID         string
	RakeID         string
	LoadingPointID string
	RouteID        string
	Destination    string
	Load           float64
	Cost           float64
	Utilization    float64
	CostPerUnit    float64
	Time           time.Time
}

// RakeRecorder records the rakes of a plan.
type RakeRecorder interface {
	RecordRakes(recs []RakeRecord) error
}

// ReleaseRecord captures the outcome of releasing a rake to its loading point.
type ReleaseRecord struct {
	PlanID         string
	RakeID         string
	LoadingPointID string
	CommandID      string
	Acknowledged   bool
	Latency        time.Duration
	Error          string
	Time           time.Time
}

// ReleaseRecorder records rake releases.
type ReleaseRecorder interface {
	RecordRelease(rec ReleaseRecord) error
}

// StageRecord describes one completed pipeline stage.
type StageRecord struct {
	Stage    string
	Count    int
	Dropped  int
	Duration time.Duration
	Time     time.Time
}

// StageRecorder records pipeline stage timings.
type StageRecorder interface {
	RecordStage(rec StageRecord) error
}

// NopSink implements PlanSink and every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordPlan(PlanRecord) error       { return nil }
func (NopSink) RecordRakes([]RakeRecord) error    { return nil }
func (NopSink) RecordRelease(ReleaseRecord) error { return nil }
func (NopSink) RecordStage(StageRecord) error     { return nil }
