package planning

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/rakeplan/core/compat"
	"github.com/kilianp07/rakeplan/core/logger"
	"github.com/kilianp07/rakeplan/core/model"
)

// Reason codes attached to allocations the router cannot serve.
const (
	ReasonUnknownOrder     = "UNKNOWN_ORDER"
	ReasonNoLoadingPoint   = "NO_LOADING_POINT"
	ReasonLoadingCapacity  = "LOADING_CAPACITY_EXHAUSTED"
	ReasonEquipment        = "EQUIPMENT_MISMATCH"
	ReasonNoRoute          = "NO_ROUTE"
	ReasonSidingCapacity   = "SIDING_CAPACITY"
	ReasonRouteRestriction = "ROUTE_RESTRICTED"
	ReasonAssignmentFailed = "ASSIGNMENT_FAILED"
)

// Routing score weights.
const (
	weightRemaining  = 0.20
	weightRouteCost  = 0.30
	weightCongestion = 0.20
	weightTransit    = 0.15
	weightEquipment  = 0.15
)

const congestionWarning = 0.8

// RoutingResult is the output of the route selection stage.
type RoutingResult struct {
	Decisions       []model.RoutingDecision `json:"decisions"`
	TotalCost       float64                 `json:"total_cost"`
	MeanFeasibility float64                 `json:"mean_feasibility"`
	Unrouted        []model.Unplaced        `json:"unrouted"`
	Warnings        []string                `json:"warnings"`
}

// Router picks a loading point and a route for each allocation.
type Router struct {
	cfg Config
	log logger.Logger
}

// NewRouter returns a router using the given settings.
func NewRouter(cfg Config, log logger.Logger) *Router {
	return &Router{cfg: cfg, log: logger.OrDiscard(log)}
}

type pairCandidate struct {
	lp        int
	route     model.Route
	score     float64
	routeCost float64
	equipment float64
}

// Route processes allocations in order and consumes loading point capacity on
// the run context. Allocations that cannot be routed are listed in Unrouted.
func (r *Router) Route(rc *RunContext, allocations []model.StockAllocation, orders []model.Order) RoutingResult {
	var res RoutingResult
	var feas []float64
	byID := make(map[string]model.Order, len(orders))
	for _, o := range orders {
		if _, dup := byID[o.ID]; !dup {
			byID[o.ID] = o
		}
	}
	for _, a := range allocations {
		o, ok := byID[a.OrderID]
		if !ok {
			res.Unrouted = append(res.Unrouted, unplaced(a.OrderID, ReasonUnknownOrder, "allocation references an unknown order"))
			continue
		}
		best, code, reason := r.bestPair(rc, a, o)
		if best == nil {
			res.Unrouted = append(res.Unrouted, unplaced(a.OrderID, code, reason))
			r.log.Debugf("order %s unrouted: %s", a.OrderID, reason)
			continue
		}
		lp := rc.loadingPoints[best.lp]
		if err := rc.Assign(lp.ID, a.Quantity); err != nil {
			res.Unrouted = append(res.Unrouted, unplaced(a.OrderID, ReasonAssignmentFailed, err.Error()))
			r.log.Warnf("assignment for order %s failed: %v", a.OrderID, err)
			continue
		}
		eta := r.estimateDelivery(rc, lp, best.route, a.Quantity)
		d := model.RoutingDecision{
			OrderID:           a.OrderID,
			Allocation:        a,
			LoadingPointID:    lp.ID,
			RouteID:           best.route.ID,
			Destination:       o.Destination,
			TotalCost:         a.Cost + best.routeCost,
			EstimatedDelivery: eta,
			RequiredBy:        o.RequiredBy,
			Priority:          o.Priority,
			Feasibility:       best.score,
			Rationale: fmt.Sprintf("loading point %s via route %s (%.0f km, congestion %.2f, %.2f per unit)",
				lp.ID, best.route.ID, best.route.DistanceKm, best.route.Congestion, best.route.CostPerUnit),
		}
		if best.route.Congestion > congestionWarning {
			res.Warnings = append(res.Warnings, fmt.Sprintf("route %s is congested (%.2f)", best.route.ID, best.route.Congestion))
		}
		if !o.RequiredBy.IsZero() && eta.After(o.RequiredBy) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("order %s expected %s after its required-by time", o.ID, eta.Sub(o.RequiredBy).Round(time.Minute)))
		}
		res.Decisions = append(res.Decisions, d)
		res.TotalCost += d.TotalCost
		feas = append(feas, d.Feasibility)
		r.log.Debugw("order routed", map[string]any{
			"order":         a.OrderID,
			"loading_point": lp.ID,
			"route":         best.route.ID,
			"feasibility":   best.score,
		})
	}
	if len(feas) > 0 {
		res.MeanFeasibility = stat.Mean(feas, nil)
	}
	return res
}

func (r *Router) bestPair(rc *RunContext, a model.StockAllocation, o model.Order) (*pairCandidate, string, string) {
	required, known := compat.RequiredEquipment(a.MaterialID)

	var atYard, withCapacity int
	var lps []int
	for i, lp := range rc.loadingPoints {
		if lp.StockyardID != a.StockyardID {
			continue
		}
		atYard++
		if lp.Available < a.Quantity {
			continue
		}
		withCapacity++
		if known && !compat.HasEquipment(lp, required) {
			continue
		}
		lps = append(lps, i)
	}
	switch {
	case atYard == 0:
		return nil, ReasonNoLoadingPoint, fmt.Sprintf("no loading point at stockyard %s", a.StockyardID)
	case withCapacity == 0:
		return nil, ReasonLoadingCapacity, fmt.Sprintf("no loading point at %s has %.2f units available", a.StockyardID, a.Quantity)
	case len(lps) == 0:
		return nil, ReasonEquipment, fmt.Sprintf("no loading point at %s offers %v for %s", a.StockyardID, required, a.MaterialID)
	}

	var connecting, withSiding int
	var routes []model.Route
	for _, rt := range rc.routes {
		if rt.Origin != a.StockyardID || rt.Destination != o.Destination {
			continue
		}
		connecting++
		if rt.SidingCapacity < r.cfg.Constraints.MinSidingCapacity {
			continue
		}
		withSiding++
		if !compat.RouteAllows(rt, a.MaterialID) {
			continue
		}
		routes = append(routes, rt)
	}
	switch {
	case connecting == 0:
		return nil, ReasonNoRoute, fmt.Sprintf("no route from %s to %s", a.StockyardID, o.Destination)
	case withSiding == 0:
		return nil, ReasonSidingCapacity, fmt.Sprintf("no route from %s to %s has siding capacity %d", a.StockyardID, o.Destination, r.cfg.Constraints.MinSidingCapacity)
	case len(routes) == 0:
		return nil, ReasonRouteRestriction, fmt.Sprintf("every route from %s to %s restricts %s", a.StockyardID, o.Destination, a.MaterialID)
	}

	minCost, minTransit := routes[0].CostPerUnit, routes[0].TransitTime
	for _, rt := range routes[1:] {
		if rt.CostPerUnit < minCost {
			minCost = rt.CostPerUnit
		}
		if rt.TransitTime < minTransit {
			minTransit = rt.TransitTime
		}
	}

	var cands []pairCandidate
	for _, li := range lps {
		lp := rc.loadingPoints[li]
		remaining := 0.0
		if lp.Capacity > 0 {
			remaining = clamp(100*(lp.Available-a.Quantity)/lp.Capacity, 0, 100)
		}
		equipment := 0.0
		if !known || compat.HasEquipment(lp, required) {
			equipment = 100
		}
		for _, rt := range routes {
			c := pairCandidate{lp: li, route: rt, equipment: equipment, routeCost: rt.CostPerUnit * a.Quantity}
			c.score = weightRemaining*remaining +
				weightRouteCost*ratioScore(minCost, rt.CostPerUnit) +
				weightCongestion*100*(1-clamp(rt.Congestion, 0, 1)) +
				weightTransit*ratioScore(minTransit.Hours(), rt.TransitTime.Hours()) +
				weightEquipment*equipment
			cands = append(cands, c)
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		ci, cj := cands[i], cands[j]
		if ci.score != cj.score {
			return ci.score > cj.score
		}
		if ci.routeCost != cj.routeCost {
			return ci.routeCost < cj.routeCost
		}
		li, lj := rc.loadingPoints[ci.lp].ID, rc.loadingPoints[cj.lp].ID
		if li != lj {
			return li < lj
		}
		return ci.route.ID < cj.route.ID
	})
	return &cands[0], "", ""
}

// estimateDelivery adds loading time at the predicted or configured
// throughput and the route transit time to the run time. Loading starts at
// the next opening of the loading point when operating hours are set.
func (r *Router) estimateDelivery(rc *RunContext, lp model.LoadingPointStatus, rt model.Route, qty float64) time.Time {
	start := nextOpening(rc.Now, lp.OpenHour, lp.CloseHour)
	throughput := lp.ThroughputPerHour
	if p, ok := rc.Predictions.ThroughputFor(lp.ID); ok {
		throughput = p
	}
	var loading time.Duration
	if throughput > 0 {
		loading = time.Duration(qty / throughput * float64(time.Hour))
	}
	return start.Add(loading).Add(rt.TransitTime)
}

// nextOpening returns t when the loading point is open at t, otherwise the
// next opening time. Equal or out-of-range hours mean always open.
func nextOpening(t time.Time, open, close int) time.Time {
	if open == close || open < 0 || open > 23 || close < 0 || close > 24 {
		return t
	}
	h := t.Hour()
	var inWindow bool
	if open < close {
		inWindow = h >= open && h < close
	} else {
		inWindow = h >= open || h < close
	}
	if inWindow {
		return t
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), open, 0, 0, 0, t.Location())
	if !day.After(t) {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

// ratioScore returns 100 x best/value, or 100 when value is not positive.
func ratioScore(best, value float64) float64 {
	if value <= 0 {
		return 100
	}
	return clamp(100*best/value, 0, 100)
}
