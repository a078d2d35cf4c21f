package planning

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/kilianp07/rakeplan/core/model"
)

// Composer folds routing decisions into candidate rakes.
type Composer struct {
	cfg Constraints
}

// NewComposer returns a composer for the given rake dimensions.
func NewComposer(c Constraints) Composer {
	return Composer{cfg: c}
}

// Compose groups decisions sharing a (loading point, route) key. Within a
// group members fill the current rake while they fit, otherwise a new rake is
// opened. A member larger than a whole rake is split into rake-sized chunks,
// so no order is dropped and no rake exceeds its nominal capacity. The result
// only depends on the input: composing the same decisions twice yields the
// same rakes.
func (c Composer) Compose(decisions []model.RoutingDecision) []model.PlannedRake {
	capacity := c.cfg.RakeCapacity()
	groups := make(map[string][]model.RoutingDecision)
	var keys []string
	for _, d := range decisions {
		k := d.LoadingPointID + "|" + d.RouteID
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], d)
	}
	sort.Strings(keys)

	var rakes []model.PlannedRake
	for _, k := range keys {
		members := groups[k]
		first := members[0]
		seq := 0
		newRake := func() model.PlannedRake {
			seq++
			return model.PlannedRake{
				ID:             fmt.Sprintf("RK-%s-%s-%02d", first.LoadingPointID, first.RouteID, seq),
				Source:         first.Allocation.StockyardID,
				Destination:    first.Destination,
				LoadingPointID: first.LoadingPointID,
				RouteID:        first.RouteID,
			}
		}
		cur := newRake()
		for _, d := range members {
			remaining := d.Allocation.Quantity
			for remaining > 1e-9 {
				chunk := remaining
				if capacity > 0 && chunk > capacity {
					chunk = capacity
				}
				if capacity > 0 && cur.TotalLoad+chunk > capacity+1e-9 {
					rakes = append(rakes, c.finish(cur))
					cur = newRake()
				}
				share := chunk / d.Allocation.Quantity
				cur.Members = append(cur.Members, model.RakeMember{
					OrderID:           d.OrderID,
					Quantity:          chunk,
					Cost:              d.TotalCost * share,
					Feasibility:       d.Feasibility,
					EstimatedDelivery: d.EstimatedDelivery,
					RequiredBy:        d.RequiredBy,
					Priority:          d.Priority,
				})
				cur.TotalLoad += chunk
				cur.TotalCost += d.TotalCost * share
				remaining -= chunk
			}
		}
		if len(cur.Members) > 0 {
			rakes = append(rakes, c.finish(cur))
		}
	}
	return rakes
}

func (c Composer) finish(r model.PlannedRake) model.PlannedRake {
	Recompute(&r, c.cfg)
	return r
}

// Recompute derives the rake metrics from its members.
func Recompute(r *model.PlannedRake, c Constraints) {
	r.TotalLoad, r.TotalCost = 0, 0
	var arrival time.Time
	for _, m := range r.Members {
		r.TotalLoad += m.Quantity
		r.TotalCost += m.Cost
		if m.EstimatedDelivery.After(arrival) {
			arrival = m.EstimatedDelivery
		}
	}
	r.EstimatedArrival = arrival
	r.Utilization, r.CostPerUnit, r.Wagons = 0, 0, 0
	if capacity := c.RakeCapacity(); capacity > 0 {
		r.Utilization = r.TotalLoad / capacity * 100
	}
	if r.TotalLoad > 0 {
		r.CostPerUnit = r.TotalCost / r.TotalLoad
	}
	if c.WagonCapacity > 0 {
		r.Wagons = int(math.Ceil(r.TotalLoad/c.WagonCapacity - 1e-9))
	}
}
