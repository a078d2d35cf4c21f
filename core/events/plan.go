package events

import "time"

// PlanEvent is published once a plan has been assessed.
type PlanEvent struct {
	PlanID     string
	Strategy   string
	Rakes      int
	Score      float64
	Confidence float64
	Time       time.Time
}

// ReleaseEvent is published for each rake released to a loading point.
type ReleaseEvent struct {
	PlanID         string
	RakeID         string
	LoadingPointID string
	CommandID      string
	Acknowledged   bool
	Err            error
	Latency        time.Duration
}
