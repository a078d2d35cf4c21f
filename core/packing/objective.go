package packing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/rakeplan/core/model"
	"github.com/kilianp07/rakeplan/core/planning"
	"github.com/kilianp07/rakeplan/core/prediction"
)

// Env carries the run-wide inputs shared by every strategy.
type Env struct {
	Now         time.Time
	Predictions prediction.MLPredictions
	// Rake gives the nominal rake dimensions.
	Rake planning.Constraints
	// SidingCapacity maps route ids to the number of rakes they accept.
	SidingCapacity map[string]int
}

// Deferred is a candidate rake left out of the plan.
type Deferred struct {
	RakeID   string   `json:"rake_id"`
	OrderIDs []string `json:"order_ids"`
	Reason   string   `json:"reason"`
}

// SearchTrace summarises how a strategy reached its plan.
type SearchTrace struct {
	Strategy      Strategy      `json:"strategy"`
	Iterations    int           `json:"iterations"`
	Improvements  int           `json:"improvements"`
	AcceptedWorse int           `json:"accepted_worse"`
	BestScore     float64       `json:"best_score"`
	Elapsed       time.Duration `json:"elapsed"`
	StopReason    string        `json:"stop_reason"`
	// History holds the best score after each generation or improvement.
	History []float64 `json:"history,omitempty"`
}

// Stop reasons reported in SearchTrace.
const (
	StopCompleted   = "completed"
	StopIterations  = "iteration_limit"
	StopTimeBudget  = "time_budget"
	StopTemperature = "temperature_floor"
	StopCancelled   = "cancelled"
	StopNoCandidate = "no_candidates"
)

// Result is the outcome of a packing run.
type Result struct {
	Plan model.DispatchPlan `json:"plan"`
	// Rakes holds every rake after the search, accepted or not. Annealing may
	// regroup members so this can differ from the input candidates.
	Rakes       []model.PlannedRake `json:"rakes"`
	Score       float64             `json:"score"`
	Trace       SearchTrace         `json:"trace"`
	Deferred    []Deferred          `json:"deferred"`
	Diagnostics []string            `json:"diagnostics"`
}

// ConstraintRatio returns the share of rakes that satisfied every hard
// constraint, or 0 when there were no rakes.
func (r Result) ConstraintRatio() float64 {
	if len(r.Rakes) == 0 {
		return 0
	}
	return float64(len(r.Plan.Rakes)) / float64(len(r.Rakes))
}

// Optimizer turns candidate rakes into a dispatch plan.
type Optimizer interface {
	Strategy() Strategy
	Optimize(ctx context.Context, candidates []model.PlannedRake, weights ObjectiveWeights, cfg SearchConfig, env Env) (Result, error)
}

// evaluator scores rakes and decodes orderings into plans. It is read-only
// after construction and safe for concurrent use.
type evaluator struct {
	weights   ObjectiveWeights
	cfg       SearchConfig
	env       Env
	capacity  float64
	minCPU    float64
	maxCPU    float64
	totalLoad float64
}

func newEvaluator(candidates []model.PlannedRake, w ObjectiveWeights, cfg SearchConfig, env Env) *evaluator {
	e := &evaluator{weights: w, cfg: cfg, env: env, capacity: env.Rake.RakeCapacity()}
	if len(candidates) == 0 {
		return e
	}
	cpu := make([]float64, len(candidates))
	for i, r := range candidates {
		cpu[i] = r.CostPerUnit
		e.totalLoad += r.TotalLoad
	}
	e.minCPU, e.maxCPU = floats.Min(cpu), floats.Max(cpu)
	return e
}

// composite scores a rake in [0,1] from its normalised cost, utilisation,
// delay risk and on-time share.
func (e *evaluator) composite(r model.PlannedRake) float64 {
	costNorm := 1.0
	if span := e.maxCPU - e.minCPU; span > 1e-9 {
		costNorm = clamp01((e.maxCPU - r.CostPerUnit) / span)
	}
	util := clamp01(r.Utilization / 100)
	delay := 1 - e.env.Predictions.DelayRiskFor(r.ID, r.RouteID, r.LoadingPointID, r.Destination)
	sla := 1.0
	if len(r.Members) > 0 {
		var onTime int
		for _, m := range r.Members {
			if m.OnTime() {
				onTime++
			}
		}
		sla = float64(onTime) / float64(len(r.Members))
	}
	w := e.weights
	return w.Cost*costNorm + w.Utilization*util + w.Delay*delay + w.SLA*sla
}

// violation returns why a rake cannot join the plan given the rakes already
// accepted, or an empty string.
func (e *evaluator) violation(r model.PlannedRake, accepted int, perRoute map[string]int) string {
	switch {
	case r.TotalLoad < e.cfg.MinRakeLoad:
		return fmt.Sprintf("load %.2f below minimum rake load %.2f", r.TotalLoad, e.cfg.MinRakeLoad)
	case e.capacity > 0 && r.TotalLoad > e.capacity+1e-9:
		return fmt.Sprintf("load %.2f exceeds nominal capacity %.2f", r.TotalLoad, e.capacity)
	}
	if limit, ok := e.env.SidingCapacity[r.RouteID]; ok && limit > 0 && perRoute[r.RouteID] >= limit {
		return fmt.Sprintf("siding capacity %d of route %s reached", limit, r.RouteID)
	}
	if e.cfg.MaxRakes > 0 && accepted >= e.cfg.MaxRakes {
		return fmt.Sprintf("rake limit %d reached", e.cfg.MaxRakes)
	}
	return ""
}

// decode accepts rakes in the given order while the hard constraints hold.
func (e *evaluator) decode(rakes []model.PlannedRake, order []int) (accepted []int, deferred []Deferred, score float64) {
	perRoute := make(map[string]int)
	var weighted float64
	for _, i := range order {
		r := rakes[i]
		if reason := e.violation(r, len(accepted), perRoute); reason != "" {
			deferred = append(deferred, Deferred{RakeID: r.ID, OrderIDs: r.OrderIDs(), Reason: reason})
			continue
		}
		accepted = append(accepted, i)
		perRoute[r.RouteID]++
		weighted += e.composite(r) * r.TotalLoad
	}
	if e.totalLoad > 0 {
		score = 100 * weighted / e.totalLoad
	}
	return accepted, deferred, score
}

// score returns only the plan score of an ordering.
func (e *evaluator) score(rakes []model.PlannedRake, order []int) float64 {
	_, _, s := e.decode(rakes, order)
	return s
}

// greedyOrder sorts rake indices by composite score, highest first, ties by id.
func (e *evaluator) greedyOrder(rakes []model.PlannedRake) []int {
	order := identity(len(rakes))
	scores := make([]float64, len(rakes))
	for i, r := range rakes {
		scores[i] = e.composite(r)
	}
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		if scores[ia] != scores[ib] {
			return scores[ia] > scores[ib]
		}
		return rakes[ia].ID < rakes[ib].ID
	})
	return order
}

// ScorePlan rates an accepted rake set against the full candidate set under
// the given weights, on the same scale as Result.Score.
func ScorePlan(candidates, accepted []model.PlannedRake, w ObjectiveWeights, env Env) float64 {
	e := newEvaluator(candidates, w, SearchConfig{}, env)
	if e.totalLoad == 0 {
		return 0
	}
	var weighted float64
	for _, r := range accepted {
		weighted += e.composite(r) * r.TotalLoad
	}
	return 100 * weighted / e.totalLoad
}

// validateCandidates rejects rakes missing their identity or carrying
// negative figures.
func validateCandidates(candidates []model.PlannedRake) error {
	seen := make(map[string]struct{}, len(candidates))
	for i, r := range candidates {
		if r.ID == "" || r.Source == "" || r.Destination == "" {
			return fmt.Errorf("%w: candidate %d lacks id, source or destination", ErrMalformedInput, i)
		}
		if r.TotalLoad < 0 || r.TotalCost < 0 || r.Utilization < 0 {
			return fmt.Errorf("%w: candidate %s has negative figures", ErrMalformedInput, r.ID)
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("%w: duplicate candidate %s", ErrMalformedInput, r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	return nil
}

// buildResult assembles the plan of an ordering and its deferred rakes.
func (e *evaluator) buildResult(strategy Strategy, rakes []model.PlannedRake, order []int, trace SearchTrace) Result {
	accepted, deferred, score := e.decode(rakes, order)
	plan := model.DispatchPlan{
		ID:        uuid.NewString(),
		CreatedAt: e.env.Now,
		Status:    model.PlanDraft,
		Strategy:  string(strategy),
		Score:     score,
	}
	for _, i := range accepted {
		plan.Rakes = append(plan.Rakes, rakes[i].Clone())
	}
	plan.Aggregate()
	trace.Strategy = strategy
	trace.BestScore = score
	res := Result{
		Plan:     plan,
		Rakes:    cloneRakes(rakes),
		Score:    score,
		Trace:    trace,
		Deferred: deferred,
	}
	switch {
	case len(rakes) == 0:
		res.Diagnostics = append(res.Diagnostics, "no candidate rakes to pack")
	case len(accepted) == 0:
		res.Diagnostics = append(res.Diagnostics, fmt.Sprintf("none of the %d candidate rakes satisfies the hard constraints", len(rakes)))
	case len(deferred) > 0:
		res.Diagnostics = append(res.Diagnostics, fmt.Sprintf("%d of %d candidate rakes deferred", len(deferred), len(rakes)))
	}
	return res
}

func prepare(ctx context.Context, candidates []model.PlannedRake, w ObjectiveWeights, cfg SearchConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := w.Validate(); err != nil {
		return err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	return validateCandidates(candidates)
}

func cloneRakes(in []model.PlannedRake) []model.PlannedRake {
	out := make([]model.PlannedRake, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func clamp01(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
