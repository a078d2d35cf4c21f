package packing

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/rakeplan/core/model"
)

// Genetic searches rake orderings with tournament selection, order crossover,
// swap mutation and elitism. The greedy ordering seeds the population so the
// result never scores below the greedy plan.
type Genetic struct{}

// Strategy implements Optimizer.
func (Genetic) Strategy() Strategy { return StrategyGenetic }

// Optimize implements Optimizer. The search stops after MaxIterations
// generations, when TimeBudget elapses or when ctx is done, and returns the
// best ordering seen.
func (Genetic) Optimize(ctx context.Context, candidates []model.PlannedRake, w ObjectiveWeights, cfg SearchConfig, env Env) (Result, error) {
	if err := prepare(ctx, candidates, w, cfg); err != nil {
		return Result{}, err
	}
	cfg.SetDefaults()
	start := time.Now()
	rakes := cloneRakes(candidates)
	e := newEvaluator(rakes, w, cfg, env)
	seedOrder := e.greedyOrder(rakes)
	n := len(rakes)
	trace := SearchTrace{StopReason: StopCompleted}
	if n == 0 {
		trace.StopReason = StopNoCandidate
	}
	if n < 2 {
		res := e.buildResult(StrategyGenetic, rakes, seedOrder, trace)
		res.Trace.Elapsed = time.Since(start)
		return res, nil
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	pop := make([][]int, cfg.PopulationSize)
	pop[0] = seedOrder
	for i := 1; i < len(pop); i++ {
		pop[i] = rng.Perm(n)
	}
	best := append([]int(nil), seedOrder...)
	bestScore := e.score(rakes, best)
	trace.History = append(trace.History, bestScore)

	fitness, err := e.evaluateAll(ctx, rakes, pop, cfg.Workers)
	if err != nil {
		trace.StopReason = StopCancelled
	} else {
		for {
			if i, s := argmax(fitness); s > bestScore+1e-12 {
				bestScore = s
				best = append(best[:0], pop[i]...)
				trace.Improvements++
			}
			if trace.Iterations > 0 {
				trace.History = append(trace.History, bestScore)
			}
			if cfg.MaxIterations > 0 && trace.Iterations >= cfg.MaxIterations {
				trace.StopReason = StopIterations
				break
			}
			if cfg.TimeBudget > 0 && time.Since(start) >= cfg.TimeBudget {
				trace.StopReason = StopTimeBudget
				break
			}
			pop = nextGeneration(pop, fitness, cfg, rng)
			if fitness, err = e.evaluateAll(ctx, rakes, pop, cfg.Workers); err != nil {
				trace.StopReason = StopCancelled
				break
			}
			trace.Iterations++
		}
	}

	res := e.buildResult(StrategyGenetic, rakes, best, trace)
	res.Trace.Elapsed = time.Since(start)
	return res, nil
}

// evaluateAll scores every individual concurrently.
func (e *evaluator) evaluateAll(ctx context.Context, rakes []model.PlannedRake, pop [][]int, workers int) ([]float64, error) {
	out := make([]float64, len(pop))
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i := range pop {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = e.score(rakes, pop[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func nextGeneration(pop [][]int, fitness []float64, cfg SearchConfig, rng *rand.Rand) [][]int {
	ranked := identity(len(pop))
	sort.SliceStable(ranked, func(a, b int) bool { return fitness[ranked[a]] > fitness[ranked[b]] })

	next := make([][]int, 0, len(pop))
	for i := 0; i < cfg.EliteCount && i < len(ranked); i++ {
		next = append(next, append([]int(nil), pop[ranked[i]]...))
	}
	for len(next) < len(pop) {
		p1 := pop[tournament(fitness, cfg.TournamentSize, rng)]
		p2 := pop[tournament(fitness, cfg.TournamentSize, rng)]
		var child []int
		if rng.Float64() < cfg.CrossoverRate {
			child = orderCrossover(p1, p2, rng)
		} else {
			child = append([]int(nil), p1...)
		}
		if rng.Float64() < cfg.MutationRate {
			swapMutate(child, rng)
		}
		next = append(next, child)
	}
	return next
}

func tournament(fitness []float64, size int, rng *rand.Rand) int {
	if size < 1 {
		size = 1
	}
	best := rng.Intn(len(fitness))
	for i := 1; i < size; i++ {
		c := rng.Intn(len(fitness))
		if fitness[c] > fitness[best] {
			best = c
		}
	}
	return best
}

// orderCrossover copies a random slice of p1 and fills the remaining
// positions with the genes of p2 in their original order.
func orderCrossover(p1, p2 []int, rng *rand.Rand) []int {
	n := len(p1)
	a, b := rng.Intn(n), rng.Intn(n)
	if a > b {
		a, b = b, a
	}
	child := make([]int, n)
	used := make(map[int]bool, n)
	for i := a; i <= b; i++ {
		child[i] = p1[i]
		used[p1[i]] = true
	}
	pos := (b + 1) % n
	for k := 0; k < n; k++ {
		g := p2[(b+1+k)%n]
		if used[g] {
			continue
		}
		child[pos] = g
		used[g] = true
		pos = (pos + 1) % n
	}
	return child
}

func swapMutate(order []int, rng *rand.Rand) {
	if len(order) < 2 {
		return
	}
	i, j := rng.Intn(len(order)), rng.Intn(len(order))
	order[i], order[j] = order[j], order[i]
}

func argmax(xs []float64) (int, float64) {
	best := 0
	for i := range xs {
		if xs[i] > xs[best] {
			best = i
		}
	}
	return best, xs[best]
}
