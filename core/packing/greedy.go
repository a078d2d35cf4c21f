package packing

import (
	"context"
	"time"

	"github.com/kilianp07/rakeplan/core/model"
)

// Greedy accepts rakes by descending composite score. It is deterministic and
// runs in O(n log n).
type Greedy struct{}

// Strategy implements Optimizer.
func (Greedy) Strategy() Strategy { return StrategyGreedy }

// Optimize implements Optimizer.
func (Greedy) Optimize(ctx context.Context, candidates []model.PlannedRake, w ObjectiveWeights, cfg SearchConfig, env Env) (Result, error) {
	if err := prepare(ctx, candidates, w, cfg); err != nil {
		return Result{}, err
	}
	start := time.Now()
	rakes := cloneRakes(candidates)
	e := newEvaluator(rakes, w, cfg, env)
	trace := SearchTrace{Iterations: 1, StopReason: StopCompleted}
	if len(rakes) == 0 {
		trace.StopReason = StopNoCandidate
	}
	res := e.buildResult(StrategyGreedy, rakes, e.greedyOrder(rakes), trace)
	res.Trace.History = []float64{res.Score}
	res.Trace.Elapsed = time.Since(start)
	return res, nil
}
