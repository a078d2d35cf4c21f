package decision

import (
	"context"
	"sort"

	"github.com/kilianp07/rakeplan/core/model"
	"github.com/kilianp07/rakeplan/core/packing"
)

// Objectives tagging alternative plans.
const (
	ObjectiveCost        = "cost-optimized"
	ObjectiveTime        = "time-optimized"
	ObjectiveUtilization = "utilization-optimized"
)

// Alternative is a plan built from the same rakes under a single objective.
type Alternative struct {
	Objective string                   `json:"objective"`
	Weights   packing.ObjectiveWeights `json:"weights"`
	Plan      model.DispatchPlan       `json:"plan"`
	// Score rates the plan under the primary weights so alternatives compare
	// with the chosen plan. ObjectiveScore uses the alternative's own weights.
	Score          float64 `json:"score"`
	ObjectiveScore float64 `json:"objective_score"`
	Deferred       int     `json:"deferred"`
	Rank           int     `json:"rank"`
}

var objectives = []struct {
	name    string
	weights packing.ObjectiveWeights
}{
	{ObjectiveCost, packing.CostOnly},
	{ObjectiveTime, packing.TimeOnly},
	{ObjectiveUtilization, packing.UtilizationOnly},
}

// alternatives re-sorts the rakes greedily under each single objective and
// ranks the plans by their primary score.
func (o *Orchestrator) alternatives(ctx context.Context, rakes []model.PlannedRake, primary packing.ObjectiveWeights, env packing.Env) ([]Alternative, error) {
	var g packing.Greedy
	out := make([]Alternative, 0, len(objectives))
	for _, obj := range objectives {
		r, err := g.Optimize(ctx, rakes, obj.weights, o.settings.Packing.Search, env)
		if err != nil {
			return nil, err
		}
		out = append(out, Alternative{
			Objective:      obj.name,
			Weights:        obj.weights,
			Plan:           r.Plan,
			Score:          packing.ScorePlan(rakes, r.Plan.Rakes, primary, env),
			ObjectiveScore: r.Score,
			Deferred:       len(r.Deferred),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}
