package packing

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/rakeplan/core/model"
	"github.com/kilianp07/rakeplan/core/planning"
	"github.com/kilianp07/rakeplan/core/prediction"
)

var now = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func testEnv() Env {
	return Env{Now: now, Rake: planning.DefaultConfig().Constraints}
}

func rake(id, lp, route string, load, cpu float64, orders ...string) model.PlannedRake {
	r := model.PlannedRake{ID: id, Source: "S1", Destination: "D", LoadingPointID: lp, RouteID: route}
	per := load / float64(len(orders))
	for _, o := range orders {
		r.Members = append(r.Members, model.RakeMember{OrderID: o, Quantity: per, Cost: per * cpu, EstimatedDelivery: now, RequiredBy: now.Add(time.Hour)})
	}
	planning.Recompute(&r, planning.DefaultConfig().Constraints)
	return r
}

func TestWeightsValidate(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())
	assert.NoError(t, CostOnly.Validate())
	err := ObjectiveWeights{Cost: 0.5, Utilization: 0.4}.Validate()
	assert.True(t, errors.Is(err, ErrMalformedInput))
	assert.ErrorIs(t, ObjectiveWeights{Cost: 1.2, SLA: -0.2}.Validate(), ErrMalformedInput)
}

func TestParseStrategyAndNew(t *testing.T) {
	for _, s := range Strategies() {
		opt, err := New(s)
		require.NoError(t, err)
		assert.Equal(t, s, opt.Strategy())
	}
	s, err := ParseStrategy("SA")
	require.NoError(t, err)
	assert.Equal(t, StrategyAnnealing, s)
	_, err = New("tabu")
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestMalformedCandidates(t *testing.T) {
	bad := [][]model.PlannedRake{
		{{ID: "", Source: "S", Destination: "D"}},
		{{ID: "R", Source: "", Destination: "D"}},
		{{ID: "R", Source: "S", Destination: "D", TotalLoad: -1}},
		{rake("R", "LP1", "R1", 100, 1, "o1"), rake("R", "LP1", "R1", 100, 1, "o2")},
	}
	for _, s := range Strategies() {
		opt, _ := New(s)
		for i, c := range bad {
			_, err := opt.Optimize(context.Background(), c, DefaultWeights(), SearchConfig{}, testEnv())
			assert.ErrorIs(t, err, ErrMalformedInput, "%s case %d", s, i)
		}
		_, err := opt.Optimize(context.Background(), nil, ObjectiveWeights{Cost: 2}, SearchConfig{}, testEnv())
		assert.ErrorIs(t, err, ErrMalformedInput)
	}
}

func TestEmptyCandidatesYieldEmptyPlan(t *testing.T) {
	for _, s := range Strategies() {
		opt, _ := New(s)
		res, err := opt.Optimize(context.Background(), nil, DefaultWeights(), SearchConfig{}, testEnv())
		require.NoError(t, err, s)
		assert.Empty(t, res.Plan.Rakes)
		assert.NotEmpty(t, res.Diagnostics)
		assert.Equal(t, StopNoCandidate, res.Trace.StopReason)
		assert.Equal(t, model.PlanDraft, res.Plan.Status)
	}
}

func TestGreedyHardConstraints(t *testing.T) {
	cands := []model.PlannedRake{
		rake("A", "LP1", "R1", 850, 5, "o1", "o2"),
		rake("B", "LP1", "R1", 700, 5, "o3"),
		rake("C", "LP2", "R2", 120, 5, "o4"),
		rake("D", "LP2", "R2", 800, 5, "o5"),
	}
	env := testEnv()
	env.SidingCapacity = map[string]int{"R1": 1}
	cfg := SearchConfig{MinRakeLoad: 200}
	res, err := Greedy{}.Optimize(context.Background(), cands, UtilizationOnly, cfg, env)
	require.NoError(t, err)

	var ids []string
	for _, r := range res.Plan.Rakes {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"A", "D"}, ids)
	require.Len(t, res.Deferred, 2)
	reasons := map[string]string{}
	for _, d := range res.Deferred {
		reasons[d.RakeID] = d.Reason
	}
	assert.Contains(t, reasons["B"], "siding capacity")
	assert.Contains(t, reasons["C"], "below minimum rake load")
	assert.Equal(t, 0.5, res.ConstraintRatio())

	// 850 and 800 accepted at utilization 94.4 and 88.9
	want := 100 * (850.0/900*850 + 800.0/900*800) / (850 + 700 + 120 + 800)
	assert.InDelta(t, want, res.Score, 1e-9)
	assert.InDelta(t, want, ScorePlan(cands, res.Plan.Rakes, UtilizationOnly, env), 1e-9)
	assert.Equal(t, 1650.0, res.Plan.TotalLoad)

	cfg.MaxRakes = 1
	res, err = Greedy{}.Optimize(context.Background(), cands, UtilizationOnly, cfg, env)
	require.NoError(t, err)
	require.Len(t, res.Plan.Rakes, 1)
	assert.Equal(t, "A", res.Plan.Rakes[0].ID)
}

func TestGreedyRejectsOverCapacityRake(t *testing.T) {
	big := rake("BIG", "LP1", "R1", 900, 5, "o1")
	big.TotalLoad = 1000
	big.Utilization = 111
	res, err := Greedy{}.Optimize(context.Background(), []model.PlannedRake{big}, DefaultWeights(), SearchConfig{}, testEnv())
	require.NoError(t, err)
	assert.Empty(t, res.Plan.Rakes)
	require.Len(t, res.Deferred, 1)
	assert.Equal(t, []string{"o1"}, res.Deferred[0].OrderIDs)
	assert.Contains(t, res.Diagnostics[0], "hard constraints")
}

func TestCompositeUsesDelayRiskAndSLA(t *testing.T) {
	env := testEnv()
	env.Predictions = prediction.MLPredictions{DelayRisk: map[string]float64{"R1": 0.4}}
	late := rake("LATE", "LP1", "R1", 450, 5, "o1")
	late.Members[0].EstimatedDelivery = now.Add(2 * time.Hour)
	e := newEvaluator([]model.PlannedRake{late}, ObjectiveWeights{Delay: 0.5, SLA: 0.5}, SearchConfig{}, env)
	assert.InDelta(t, 0.5*0.6+0.5*0, e.composite(late), 1e-9)
}

func twoRakeSidingCase() ([]model.PlannedRake, Env, ObjectiveWeights) {
	env := testEnv()
	env.SidingCapacity = map[string]int{"R1": 1}
	cands := []model.PlannedRake{
		rake("A", "LP1", "R1", 900, 10, "o1"),
		rake("B", "LP2", "R1", 300, 5, "o2"),
	}
	return cands, env, ObjectiveWeights{Cost: 0.5, Utilization: 0.5}
}

func TestMetaheuristicsBeatGreedyWhenOrderMatters(t *testing.T) {
	cands, env, w := twoRakeSidingCase()
	cfg := SearchConfig{MaxIterations: 50, TimeBudget: 5 * time.Second, Seed: 7}

	greedy, err := Greedy{}.Optimize(context.Background(), cands, w, cfg, env)
	require.NoError(t, err)
	assert.InDelta(t, 100*(2.0/3)*300/1200, greedy.Score, 1e-9)

	for _, opt := range []Optimizer{Genetic{}, Annealing{}} {
		res, err := opt.Optimize(context.Background(), cands, w, cfg, env)
		require.NoError(t, err)
		assert.InDelta(t, 37.5, res.Score, 1e-9, opt.Strategy())
		require.Len(t, res.Plan.Rakes, 1)
		assert.Equal(t, "A", res.Plan.Rakes[0].ID)
		assert.GreaterOrEqual(t, res.Trace.Improvements, 1)
		assert.LessOrEqual(t, res.Trace.Iterations, cfg.MaxIterations)
		assert.Equal(t, string(opt.Strategy()), res.Plan.Strategy)
		assert.Equal(t, res.Score, res.Trace.BestScore)
	}
}

func TestGeneticIsDeterministicForSeed(t *testing.T) {
	var cands []model.PlannedRake
	routes := []string{"R1", "R2", "R3"}
	for i := 0; i < 12; i++ {
		id := string(rune('A' + i))
		cands = append(cands, rake(id, "LP"+id, routes[i%3], float64(200+50*i), float64(3+i%4), "o"+id))
	}
	env := testEnv()
	env.SidingCapacity = map[string]int{"R1": 2, "R2": 2, "R3": 2}
	cfg := SearchConfig{MaxIterations: 30, TimeBudget: 10 * time.Second, Seed: 42}
	a, err := Genetic{}.Optimize(context.Background(), cands, DefaultWeights(), cfg, env)
	require.NoError(t, err)
	b, err := Genetic{}.Optimize(context.Background(), cands, DefaultWeights(), cfg, env)
	require.NoError(t, err)
	assert.Equal(t, a.Score, b.Score)
	assert.Equal(t, a.Plan.Rakes, b.Plan.Rakes)
	assert.Equal(t, StopIterations, a.Trace.StopReason)
	assert.Equal(t, 30, a.Trace.Iterations)

	greedy, err := Greedy{}.Optimize(context.Background(), cands, DefaultWeights(), cfg, env)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, a.Score, greedy.Score-1e-9)
	for i := 1; i < len(a.Trace.History); i++ {
		assert.GreaterOrEqual(t, a.Trace.History[i], a.Trace.History[i-1])
	}
}

func TestSearchHonorsTimeBudget(t *testing.T) {
	var cands []model.PlannedRake
	for i := 0; i < 40; i++ {
		id := string(rune('a'+i%26)) + string(rune('A'+i/26))
		cands = append(cands, rake(id, "LP", "R"+id, float64(100+10*i), float64(1+i%5), "o"+id))
	}
	cfg := SearchConfig{MaxIterations: 1 << 30, TimeBudget: 50 * time.Millisecond, MinTemperature: 1e-300, CoolingRate: 0.999999}
	for _, opt := range []Optimizer{Genetic{}, Annealing{}} {
		start := time.Now()
		res, err := opt.Optimize(context.Background(), cands, DefaultWeights(), cfg, testEnv())
		require.NoError(t, err)
		assert.Less(t, time.Since(start), 2*time.Second)
		assert.Equal(t, StopTimeBudget, res.Trace.StopReason, opt.Strategy())
		assert.NotEmpty(t, res.Plan.Rakes)
	}
}

func TestAnnealingTemperatureFloor(t *testing.T) {
	cands, env, w := twoRakeSidingCase()
	cfg := SearchConfig{MaxIterations: 1 << 30, TimeBudget: time.Minute, InitialTemperature: 1, CoolingRate: 0.5, MinTemperature: 0.01}
	res, err := Annealing{}.Optimize(context.Background(), cands, w, cfg, env)
	require.NoError(t, err)
	assert.Equal(t, StopTemperature, res.Trace.StopReason)
	assert.Equal(t, 7, res.Trace.Iterations)
}

func TestAnnealingRegroupsUnderfilledRakes(t *testing.T) {
	cands := []model.PlannedRake{
		rake("RK-LP1-R1-01", "LP1", "R1", 500, 5, "o1"),
		rake("RK-LP1-R1-02", "LP1", "R1", 100, 5, "o2"),
	}
	cfg := SearchConfig{MinRakeLoad: 300, MaxIterations: 200, TimeBudget: 5 * time.Second, Seed: 1}
	greedy, err := Greedy{}.Optimize(context.Background(), cands, UtilizationOnly, cfg, testEnv())
	require.NoError(t, err)
	require.Len(t, greedy.Plan.Rakes, 1)
	require.Len(t, greedy.Deferred, 1)

	res, err := Annealing{}.Optimize(context.Background(), cands, UtilizationOnly, cfg, testEnv())
	require.NoError(t, err)
	require.Len(t, res.Plan.Rakes, 1)
	assert.Empty(t, res.Deferred)
	assert.Equal(t, 600.0, res.Plan.Rakes[0].TotalLoad)
	assert.ElementsMatch(t, []string{"o1", "o2"}, res.Plan.OrderIDs())
	assert.InDelta(t, 100*(600.0/900), res.Score, 1e-9)
	assert.Greater(t, res.Score, greedy.Score)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cands, env, w := twoRakeSidingCase()
	for _, s := range Strategies() {
		opt, _ := New(s)
		_, err := opt.Optimize(ctx, cands, w, SearchConfig{}, env)
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestOrderCrossoverProducesPermutation(t *testing.T) {
	rng := newTestRand()
	p1 := []int{0, 1, 2, 3, 4, 5, 6, 7}
	p2 := []int{7, 6, 5, 4, 3, 2, 1, 0}
	for i := 0; i < 50; i++ {
		child := orderCrossover(p1, p2, rng)
		assert.ElementsMatch(t, p1, child)
	}
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	var c Config
	c.SetDefaults()
	require.NoError(t, c.Validate())
	assert.Equal(t, StrategyGreedy, c.Strategy)
	assert.Equal(t, DefaultWeights(), c.Weights)
	assert.Equal(t, int64(1), c.Search.Seed)

	c.Search.CoolingRate = 1.5
	assert.Error(t, c.Validate())
	c.Search.CoolingRate = 0.9
	c.Strategy = "tabu"
	assert.Error(t, c.Validate())

	cases := map[string]func(*SearchConfig){
		"negative population": func(s *SearchConfig) { s.PopulationSize = -1 },
		"single individual":   func(s *SearchConfig) { s.PopulationSize = 1 },
		"negative elites":     func(s *SearchConfig) { s.EliteCount = -2 },
		"elites fill pop":     func(s *SearchConfig) { s.PopulationSize = 4; s.EliteCount = 4 },
		"negative tournament": func(s *SearchConfig) { s.TournamentSize = -3 },
		"negative iterations": func(s *SearchConfig) { s.MaxIterations = -1 },
		"negative budget":     func(s *SearchConfig) { s.TimeBudget = -time.Second },
	}
	for name, mutate := range cases {
		var c Config
		c.SetDefaults()
		mutate(&c.Search)
		assert.ErrorIs(t, c.Validate(), ErrMalformedInput, name)
	}
}

func TestOptimizersRejectInvalidSearchConfig(t *testing.T) {
	candidates := []model.PlannedRake{
		rake("RK1", "LP1", "R1", 800, 2, "o1"),
		rake("RK2", "LP1", "R1", 700, 3, "o2"),
	}
	bad := []SearchConfig{
		{MaxIterations: -1, TimeBudget: -1},
		{PopulationSize: -1},
		{PopulationSize: 3, EliteCount: 5},
	}
	for _, s := range Strategies() {
		opt, _ := New(s)
		for i, cfg := range bad {
			_, err := opt.Optimize(context.Background(), candidates, DefaultWeights(), cfg, testEnv())
			assert.ErrorIs(t, err, ErrMalformedInput, "%s case %d", s, i)
		}
	}
}

func newTestRand() *rand.Rand { return rand.New(rand.NewSource(3)) }
