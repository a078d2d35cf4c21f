package model

import (
	"errors"
	"fmt"
	"time"
)

// RakeMember is the share of one order carried by a rake.
type RakeMember struct {
	OrderID           string    `json:"order_id"`
	Quantity          float64   `json:"quantity"`
	Cost              float64   `json:"cost"`
	Feasibility       float64   `json:"feasibility"`
	EstimatedDelivery time.Time `json:"estimated_delivery"`
	RequiredBy        time.Time `json:"required_by"`
	Priority          Priority  `json:"priority"`
}

// OnTime reports whether the member is expected before its required-by time.
// Members without a deadline are always on time.
func (m RakeMember) OnTime() bool {
	return m.RequiredBy.IsZero() || !m.EstimatedDelivery.After(m.RequiredBy)
}

// PlannedRake is a fixed-capacity consignment between a loading point and a
// destination.
type PlannedRake struct {
	ID               string       `json:"id"`
	Source           string       `json:"source"`
	Destination      string       `json:"destination"`
	LoadingPointID   string       `json:"loading_point_id"`
	RouteID          string       `json:"route_id"`
	Members          []RakeMember `json:"members"`
	TotalLoad        float64      `json:"total_load"`
	TotalCost        float64      `json:"total_cost"`
	Wagons           int          `json:"wagons"`
	Utilization      float64      `json:"utilization"`
	CostPerUnit      float64      `json:"cost_per_unit"`
	EstimatedArrival time.Time    `json:"estimated_arrival"`
}

// OrderIDs lists the orders carried by the rake in member order.
func (r PlannedRake) OrderIDs() []string {
	ids := make([]string, 0, len(r.Members))
	for _, m := range r.Members {
		ids = append(ids, m.OrderID)
	}
	return ids
}

// Key identifies the (loading point, route) group of the rake.
func (r PlannedRake) Key() string { return r.LoadingPointID + "|" + r.RouteID }

// Clone returns a deep copy of the rake.
func (r PlannedRake) Clone() PlannedRake {
	cp := r
	cp.Members = append([]RakeMember(nil), r.Members...)
	return cp
}

// PlanStatus is the lifecycle state of a dispatch plan.
type PlanStatus int

const (
	PlanDraft PlanStatus = iota
	PlanApproved
	PlanExecuted
)

// String returns a human-readable representation of the status.
func (s PlanStatus) String() string {
	switch s {
	case PlanDraft:
		return "draft"
	case PlanApproved:
		return "approved"
	case PlanExecuted:
		return "executed"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s PlanStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *PlanStatus) UnmarshalText(b []byte) error {
	switch string(b) {
	case "draft":
		*s = PlanDraft
	case "approved":
		*s = PlanApproved
	case "executed":
		*s = PlanExecuted
	default:
		return fmt.Errorf("unknown plan status %q", string(b))
	}
	return nil
}

// ErrInvalidTransition is returned when a plan status change is not allowed.
var ErrInvalidTransition = errors.New("invalid plan status transition")

// DispatchPlan is the ordered set of rakes chosen for a planning run.
type DispatchPlan struct {
	ID             string        `json:"id"`
	Rakes          []PlannedRake `json:"rakes"`
	TotalCost      float64       `json:"total_cost"`
	TotalLoad      float64       `json:"total_load"`
	AvgUtilization float64       `json:"avg_utilization"`
	SLACompliance  float64       `json:"sla_compliance"`
	Feasibility    float64       `json:"feasibility"`
	CreatedAt      time.Time     `json:"created_at"`
	Status         PlanStatus    `json:"status"`
	Strategy       string        `json:"strategy"`
	Score          float64       `json:"score"`
}

// Approve moves a draft plan to approved. Empty plans cannot be approved.
func (p *DispatchPlan) Approve() error {
	if p.Status != PlanDraft {
		return fmt.Errorf("%w: %s -> approved", ErrInvalidTransition, p.Status)
	}
	if len(p.Rakes) == 0 {
		return fmt.Errorf("%w: plan has no rakes", ErrInvalidTransition)
	}
	p.Status = PlanApproved
	return nil
}

// MarkExecuted moves an approved plan to executed.
func (p *DispatchPlan) MarkExecuted() error {
	if p.Status != PlanApproved {
		return fmt.Errorf("%w: %s -> executed", ErrInvalidTransition, p.Status)
	}
	p.Status = PlanExecuted
	return nil
}

// Aggregate recomputes the plan totals from its rakes.
func (p *DispatchPlan) Aggregate() {
	p.TotalCost, p.TotalLoad, p.AvgUtilization, p.SLACompliance, p.Feasibility = 0, 0, 0, 0, 0
	if len(p.Rakes) == 0 {
		return
	}
	var members, onTime int
	var feas float64
	for _, r := range p.Rakes {
		p.TotalCost += r.TotalCost
		p.TotalLoad += r.TotalLoad
		p.AvgUtilization += r.Utilization
		for _, m := range r.Members {
			members++
			feas += m.Feasibility
			if m.OnTime() {
				onTime++
			}
		}
	}
	p.AvgUtilization /= float64(len(p.Rakes))
	if members > 0 {
		p.SLACompliance = 100 * float64(onTime) / float64(members)
		p.Feasibility = feas / float64(members)
	}
}

// OrderIDs lists every order carried by the plan, without duplicates.
func (p DispatchPlan) OrderIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, r := range p.Rakes {
		for _, m := range r.Members {
			if _, ok := seen[m.OrderID]; ok {
				continue
			}
			seen[m.OrderID] = struct{}{}
			ids = append(ids, m.OrderID)
		}
	}
	return ids
}
