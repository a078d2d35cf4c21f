package planning

import (
	"fmt"
	"time"

	"github.com/kilianp07/rakeplan/core/model"
	"github.com/kilianp07/rakeplan/core/prediction"
)

// RunContext owns the mutable state of one planning run. Inventories and
// loading points are copied on creation so concurrent runs never share
// reservation or capacity counters.
type RunContext struct {
	Now         time.Time
	Predictions prediction.MLPredictions

	stockyards    []model.StockyardInventory
	loadingPoints []model.LoadingPointStatus
	routes        []model.Route
	yardIndex     map[string]int
	lpIndex       map[string]int
	allocated     map[string]struct{}
	assigned      map[string]float64
}

// NewRunContext copies the supplied state into a fresh run context. Entities
// sharing an id with an earlier one are ignored.
func NewRunContext(now time.Time, yards []model.StockyardInventory, lps []model.LoadingPointStatus, routes []model.Route, preds prediction.MLPredictions) *RunContext {
	rc := &RunContext{
		Now:         now,
		Predictions: preds.Clone(),
		yardIndex:   make(map[string]int, len(yards)),
		lpIndex:     make(map[string]int, len(lps)),
		allocated:   make(map[string]struct{}),
		assigned:    make(map[string]float64),
	}
	for _, y := range yards {
		if _, dup := rc.yardIndex[y.ID]; dup {
			continue
		}
		rc.yardIndex[y.ID] = len(rc.stockyards)
		rc.stockyards = append(rc.stockyards, y.Clone())
	}
	for _, lp := range lps {
		if _, dup := rc.lpIndex[lp.ID]; dup {
			continue
		}
		rc.lpIndex[lp.ID] = len(rc.loadingPoints)
		rc.loadingPoints = append(rc.loadingPoints, lp.Clone())
	}
	rc.routes = make([]model.Route, 0, len(routes))
	for _, r := range routes {
		cp := r
		cp.Restrictions = append([]string(nil), r.Restrictions...)
		rc.routes = append(rc.routes, cp)
	}
	return rc
}

// Stockyards returns a copy of the working inventory.
func (rc *RunContext) Stockyards() []model.StockyardInventory {
	out := make([]model.StockyardInventory, len(rc.stockyards))
	for i, y := range rc.stockyards {
		out[i] = y.Clone()
	}
	return out
}

// LoadingPoints returns a copy of the working loading point state.
func (rc *RunContext) LoadingPoints() []model.LoadingPointStatus {
	out := make([]model.LoadingPointStatus, len(rc.loadingPoints))
	for i, lp := range rc.loadingPoints {
		out[i] = lp.Clone()
	}
	return out
}

// Routes returns the candidate routes of the run.
func (rc *RunContext) Routes() []model.Route {
	return append([]model.Route(nil), rc.routes...)
}

// Route looks up a route by id.
func (rc *RunContext) Route(id string) (model.Route, bool) {
	for _, r := range rc.routes {
		if r.ID == id {
			return r, true
		}
	}
	return model.Route{}, false
}

// Allocated reports whether the order already holds an allocation.
func (rc *RunContext) Allocated(orderID string) bool {
	_, ok := rc.allocated[orderID]
	return ok
}

// Reserve books qty of a lot for an order and raises the stockyard load.
func (rc *RunContext) Reserve(orderID, yardID string, lot int, qty float64) error {
	if rc.Allocated(orderID) {
		return fmt.Errorf("order %s already allocated", orderID)
	}
	i, ok := rc.yardIndex[yardID]
	if !ok {
		return fmt.Errorf("unknown stockyard %s", yardID)
	}
	y := &rc.stockyards[i]
	if lot < 0 || lot >= len(y.Lots) {
		return fmt.Errorf("stockyard %s has no lot %d", yardID, lot)
	}
	if qty <= 0 {
		return fmt.Errorf("reservation quantity must be positive")
	}
	if net := y.Lots[lot].Net(); qty > net {
		return fmt.Errorf("stockyard %s lot %d: %.2f requested, %.2f free", yardID, lot, qty, net)
	}
	y.Lots[lot].Reserved += qty
	y.CurrentLoad += qty
	rc.allocated[orderID] = struct{}{}
	return nil
}

// Assign consumes qty of a loading point's available capacity.
func (rc *RunContext) Assign(lpID string, qty float64) error {
	i, ok := rc.lpIndex[lpID]
	if !ok {
		return fmt.Errorf("unknown loading point %s", lpID)
	}
	lp := &rc.loadingPoints[i]
	if qty <= 0 {
		return fmt.Errorf("assignment quantity must be positive")
	}
	if qty > lp.Available {
		return fmt.Errorf("loading point %s: %.2f requested, %.2f available", lpID, qty, lp.Available)
	}
	lp.Available -= qty
	rc.assigned[lpID] += qty
	return nil
}

// AssignedLoad returns the load assigned to a loading point during this run.
func (rc *RunContext) AssignedLoad(lpID string) float64 { return rc.assigned[lpID] }

// Verify checks the run state invariants: no lot reserves more than it holds
// and no loading point carries more than its capacity.
func (rc *RunContext) Verify() error {
	for _, y := range rc.stockyards {
		for i, l := range y.Lots {
			if l.Reserved > l.Available+1e-9 {
				return fmt.Errorf("stockyard %s lot %d: reserved %.2f exceeds available %.2f", y.ID, i, l.Reserved, l.Available)
			}
		}
	}
	for _, lp := range rc.loadingPoints {
		if lp.Available < -1e-9 || lp.Assigned() > lp.Capacity+1e-9 {
			return fmt.Errorf("loading point %s: assigned %.2f exceeds capacity %.2f", lp.ID, lp.Assigned(), lp.Capacity)
		}
	}
	return nil
}
