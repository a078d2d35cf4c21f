package packing

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/kilianp07/rakeplan/core/model"
	"github.com/kilianp07/rakeplan/core/planning"
)

// Annealing refines the greedy solution with simulated annealing. Moves either
// swap two positions of the acceptance order or regroup a member between two
// rakes sharing a loading point and route.
type Annealing struct{}

// Strategy implements Optimizer.
func (Annealing) Strategy() Strategy { return StrategyAnnealing }

type annealState struct {
	rakes []model.PlannedRake
	order []int
}

func (s annealState) clone() annealState {
	return annealState{rakes: cloneRakes(s.rakes), order: append([]int(nil), s.order...)}
}

// Optimize implements Optimizer. Improving moves are always accepted and
// worsening moves with probability exp(-delta/T). The temperature decays by
// CoolingRate each iteration; the search stops on the iteration limit, the
// time budget, the temperature floor or when ctx is done.
func (Annealing) Optimize(ctx context.Context, candidates []model.PlannedRake, w ObjectiveWeights, cfg SearchConfig, env Env) (Result, error) {
	if err := prepare(ctx, candidates, w, cfg); err != nil {
		return Result{}, err
	}
	cfg.SetDefaults()
	start := time.Now()
	rakes := cloneRakes(candidates)
	e := newEvaluator(rakes, w, cfg, env)
	cur := annealState{rakes: rakes, order: e.greedyOrder(rakes)}
	curScore := e.score(cur.rakes, cur.order)
	best, bestScore := cur.clone(), curScore
	trace := SearchTrace{StopReason: StopCompleted, History: []float64{bestScore}}
	if len(rakes) == 0 {
		trace.StopReason = StopNoCandidate
		res := e.buildResult(StrategyAnnealing, best.rakes, best.order, trace)
		res.Trace.Elapsed = time.Since(start)
		return res, nil
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	temp := cfg.InitialTemperature
	for {
		if cfg.MaxIterations > 0 && trace.Iterations >= cfg.MaxIterations {
			trace.StopReason = StopIterations
			break
		}
		if cfg.TimeBudget > 0 && time.Since(start) >= cfg.TimeBudget {
			trace.StopReason = StopTimeBudget
			break
		}
		if temp < cfg.MinTemperature {
			trace.StopReason = StopTemperature
			break
		}
		if ctx.Err() != nil {
			trace.StopReason = StopCancelled
			break
		}
		trace.Iterations++

		next := cur.clone()
		var moved bool
		if rng.Float64() < 0.5 {
			moved = regroupMove(&next, env.Rake, rng) || swapMove(&next, rng)
		} else {
			moved = swapMove(&next, rng) || regroupMove(&next, env.Rake, rng)
		}
		if moved {
			nextScore := e.score(next.rakes, next.order)
			delta := curScore - nextScore
			if delta <= 0 || rng.Float64() < math.Exp(-delta/(temp+1e-9)) {
				if delta > 0 {
					trace.AcceptedWorse++
				}
				cur, curScore = next, nextScore
				if curScore > bestScore+1e-12 {
					best, bestScore = cur.clone(), curScore
					trace.Improvements++
					trace.History = append(trace.History, bestScore)
				}
			}
		}
		temp *= cfg.CoolingRate
	}

	res := e.buildResult(StrategyAnnealing, best.rakes, best.order, trace)
	res.Trace.Elapsed = time.Since(start)
	return res, nil
}

func swapMove(s *annealState, rng *rand.Rand) bool {
	n := len(s.order)
	if n < 2 {
		return false
	}
	i := rng.Intn(n)
	j := rng.Intn(n - 1)
	if j >= i {
		j++
	}
	s.order[i], s.order[j] = s.order[j], s.order[i]
	return true
}

// regroupMove moves one member between two rakes of the same loading point
// and route when the receiving rake has room. A rake left empty is dropped.
func regroupMove(s *annealState, dims planning.Constraints, rng *rand.Rand) bool {
	capacity := dims.RakeCapacity()
	var pairs [][2]int
	for i := range s.rakes {
		for j := range s.rakes {
			if i != j && s.rakes[i].Key() == s.rakes[j].Key() && len(s.rakes[i].Members) > 0 {
				pairs = append(pairs, [2]int{i, j})
			}
		}
	}
	if len(pairs) == 0 {
		return false
	}
	p := pairs[rng.Intn(len(pairs))]
	from, to := &s.rakes[p[0]], &s.rakes[p[1]]
	mi := rng.Intn(len(from.Members))
	m := from.Members[mi]
	if capacity > 0 && to.TotalLoad+m.Quantity > capacity+1e-9 {
		return false
	}
	from.Members = append(from.Members[:mi:mi], from.Members[mi+1:]...)
	to.Members = append(to.Members, m)
	planning.Recompute(from, dims)
	planning.Recompute(to, dims)
	if len(from.Members) == 0 {
		removeRake(s, p[0])
	}
	return true
}

func removeRake(s *annealState, idx int) {
	s.rakes = append(s.rakes[:idx:idx], s.rakes[idx+1:]...)
	order := s.order[:0]
	for _, i := range s.order {
		switch {
		case i == idx:
			continue
		case i > idx:
			order = append(order, i-1)
		default:
			order = append(order, i)
		}
	}
	s.order = order
}
