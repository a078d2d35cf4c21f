package planning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/rakeplan/core/model"
	"github.com/kilianp07/rakeplan/core/prediction"
)

var runAt = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func coalYard(id string, available float64) model.StockyardInventory {
	return model.StockyardInventory{
		ID: id, Capacity: 5000, CurrentLoad: 1000,
		Lots: []model.MaterialLot{{MaterialID: "coal", Available: available, Quality: "A", AgeDays: 10}},
	}
}

func conveyorLP(id, yard string, capacity float64) model.LoadingPointStatus {
	return model.LoadingPointStatus{ID: id, StockyardID: yard, Capacity: capacity, Available: capacity, ThroughputPerHour: 250, Equipment: []string{"conveyor"}}
}

func route(id, origin, dest string) model.Route {
	return model.Route{ID: id, Origin: origin, Destination: dest, DistanceKm: 300, TransitTime: 12 * time.Hour, CostPerUnit: 2, Congestion: 0.2, SidingCapacity: 100}
}

func order(id string, qty float64, p model.Priority, due time.Time) model.Order {
	return model.Order{ID: id, MaterialID: "coal", Quantity: qty, Destination: "D", RequiredQuality: "Any", Priority: p, RequiredBy: due}
}

func runPipeline(t *testing.T, cfg Config, orders []model.Order, yards []model.StockyardInventory, lps []model.LoadingPointStatus, routes []model.Route) (*RunContext, AllocationResult, RoutingResult, []model.PlannedRake) {
	t.Helper()
	rc := NewRunContext(runAt, yards, lps, routes, prediction.MLPredictions{})
	alloc := NewAllocator(cfg, nil).Allocate(rc, orders)
	routing := NewRouter(cfg, nil).Route(rc, alloc.Allocations, orders)
	rakes := NewComposer(cfg.Constraints).Compose(routing.Decisions)
	require.NoError(t, rc.Verify())
	return rc, alloc, routing, rakes
}

func TestSingleOrderScenario(t *testing.T) {
	cfg := DefaultConfig()
	o := order("O1", 500, model.PriorityHigh, runAt.Add(72*time.Hour))
	o.MaterialID = "coal"
	_, alloc, routing, rakes := runPipeline(t, cfg,
		[]model.Order{o},
		[]model.StockyardInventory{coalYard("S1", 1000)},
		[]model.LoadingPointStatus{conveyorLP("LP1", "S1", 2000)},
		[]model.Route{route("R1", "S1", "D")},
	)

	require.Len(t, alloc.Allocations, 1)
	assert.Equal(t, 500.0, alloc.Allocations[0].Quantity)
	assert.Equal(t, "A", alloc.Allocations[0].Quality)
	assert.Empty(t, alloc.Unallocated)

	require.Len(t, routing.Decisions, 1)
	d := routing.Decisions[0]
	assert.Equal(t, "LP1", d.LoadingPointID)
	assert.Equal(t, "R1", d.RouteID)
	assert.InDelta(t, alloc.Allocations[0].Cost+2*500, d.TotalCost, 1e-9)
	assert.Equal(t, runAt.Add(2*time.Hour).Add(12*time.Hour), d.EstimatedDelivery)

	require.Len(t, rakes, 1)
	assert.Equal(t, 500.0, rakes[0].TotalLoad)
	assert.Equal(t, "RK-LP1-R1-01", rakes[0].ID)
	assert.Equal(t, 6, rakes[0].Wagons)
	assert.InDelta(t, 500.0/900*100, rakes[0].Utilization, 1e-9)
	assert.InDelta(t, rakes[0].TotalCost/500, rakes[0].CostPerUnit, 1e-9)
}

func TestAllocatorScoring(t *testing.T) {
	cfg := DefaultConfig()
	yard := coalYard("S1", 1000)
	yard.Lots[0].AgeDays = 90
	rc := NewRunContext(runAt, []model.StockyardInventory{yard}, nil, nil, prediction.MLPredictions{})
	res := NewAllocator(cfg, nil).Allocate(rc, []model.Order{order("O1", 500, model.PriorityHigh, time.Time{})})
	require.Len(t, res.Allocations, 1)
	// availability 100, quality 100, freshness 50, yard (5000-1000)/5000 = 80
	want := 0.35*100 + 0.25*100 + 0.20*50 + 0.20*80
	assert.InDelta(t, want, res.Allocations[0].Feasibility, 1e-9)
	assert.InDelta(t, want, res.MeanFeasibility, 1e-9)
	assert.InDelta(t, (40+15)*500.0, res.TotalCost, 1e-9)
}

func TestCapacityInvariantAcrossOrders(t *testing.T) {
	cfg := DefaultConfig()
	orders := []model.Order{
		order("O1", 600, model.PriorityHigh, runAt),
		order("O2", 600, model.PriorityHigh, runAt.Add(time.Hour)),
		order("O3", 600, model.PriorityHigh, runAt.Add(2*time.Hour)),
	}
	rc, alloc, routing, _ := runPipeline(t, cfg, orders,
		[]model.StockyardInventory{coalYard("S1", 1300)},
		[]model.LoadingPointStatus{conveyorLP("LP1", "S1", 1000)},
		[]model.Route{route("R1", "S1", "D")},
	)
	require.Len(t, alloc.Allocations, 2)
	require.Len(t, alloc.Unallocated, 1)
	assert.Equal(t, "O3", alloc.Unallocated[0].OrderID)
	assert.Equal(t, ReasonInsufficientStock, alloc.Unallocated[0].Code)

	yard := rc.Stockyards()[0]
	assert.LessOrEqual(t, yard.Lots[0].Reserved, yard.Lots[0].Available)
	assert.Equal(t, 2200.0, yard.CurrentLoad)

	require.Len(t, routing.Decisions, 1)
	require.Len(t, routing.Unrouted, 1)
	assert.Equal(t, ReasonLoadingCapacity, routing.Unrouted[0].Code)
	lp := rc.LoadingPoints()[0]
	assert.LessOrEqual(t, lp.Assigned(), lp.Capacity)
	assert.Equal(t, 600.0, rc.AssignedLoad("LP1"))
}

func TestUrgentAllocatedBeforeLateLowPriority(t *testing.T) {
	cfg := DefaultConfig()
	low := order("LOW", 800, model.PriorityLow, runAt.Add(48*time.Hour))
	urgent := order("URG", 800, model.PriorityUrgent, runAt.Add(24*time.Hour))
	rc := NewRunContext(runAt, []model.StockyardInventory{coalYard("S1", 1000)}, nil, nil, prediction.MLPredictions{})
	res := NewAllocator(cfg, nil).Allocate(rc, []model.Order{low, urgent})
	require.Len(t, res.Allocations, 1)
	assert.Equal(t, "URG", res.Allocations[0].OrderID)
	require.Len(t, res.Unallocated, 1)
	assert.Equal(t, "LOW", res.Unallocated[0].OrderID)
}

func TestComposerIsIdempotent(t *testing.T) {
	cfg := DefaultConfig()
	orders := []model.Order{
		order("O1", 400, model.PriorityHigh, runAt),
		order("O2", 300, model.PriorityMedium, runAt),
		order("O3", 500, model.PriorityLow, runAt),
	}
	_, _, routing, rakes := runPipeline(t, cfg, orders,
		[]model.StockyardInventory{coalYard("S1", 5000)},
		[]model.LoadingPointStatus{conveyorLP("LP1", "S1", 5000)},
		[]model.Route{route("R1", "S1", "D")},
	)
	again := NewComposer(cfg.Constraints).Compose(routing.Decisions)
	assert.Equal(t, rakes, again)
	require.Len(t, rakes, 2)
	assert.Equal(t, []string{"O1", "O2"}, rakes[0].OrderIDs())
	assert.Equal(t, []string{"O3"}, rakes[1].OrderIDs())
}

func TestComposerSplitsOverflowWithoutDroppingOrders(t *testing.T) {
	cfg := DefaultConfig()
	orders := []model.Order{
		order("O1", 700, model.PriorityHigh, runAt),
		order("O2", 500, model.PriorityHigh, runAt.Add(time.Hour)),
	}
	_, _, _, rakes := runPipeline(t, cfg, orders,
		[]model.StockyardInventory{coalYard("S1", 5000)},
		[]model.LoadingPointStatus{conveyorLP("LP1", "S1", 5000)},
		[]model.Route{route("R1", "S1", "D")},
	)
	require.Len(t, rakes, 2)
	var total float64
	for _, r := range rakes {
		assert.LessOrEqual(t, r.TotalLoad, cfg.Constraints.RakeCapacity())
		total += r.TotalLoad
	}
	assert.Equal(t, 1200.0, total)
}

func TestComposerSplitsOversizedOrder(t *testing.T) {
	c := NewComposer(DefaultConfig().Constraints)
	d := model.RoutingDecision{
		OrderID: "BIG", LoadingPointID: "LP1", RouteID: "R1", Destination: "D", TotalCost: 2000,
		Allocation: model.StockAllocation{OrderID: "BIG", StockyardID: "S1", Quantity: 2000},
	}
	rakes := c.Compose([]model.RoutingDecision{d})
	require.Len(t, rakes, 3)
	assert.Equal(t, 900.0, rakes[0].TotalLoad)
	assert.Equal(t, 900.0, rakes[1].TotalLoad)
	assert.InDelta(t, 200.0, rakes[2].TotalLoad, 1e-9)
	assert.InDelta(t, 900.0, rakes[0].TotalCost, 1e-9)
	assert.Equal(t, 3, rakes[2].Wagons)
}

func TestZeroStockyards(t *testing.T) {
	cfg := DefaultConfig()
	orders := []model.Order{order("O1", 100, model.PriorityHigh, runAt), order("O2", 100, model.PriorityLow, runAt)}
	rc := NewRunContext(runAt, nil, nil, nil, prediction.MLPredictions{})
	res := NewAllocator(cfg, nil).Allocate(rc, orders)
	assert.Empty(t, res.Allocations)
	require.Len(t, res.Unallocated, 2)
	for _, u := range res.Unallocated {
		assert.Equal(t, ReasonNoStockyards, u.Code)
	}
}

func TestAllocatorFilters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Constraints.MaxOrderQuantity = 1000
	yard := coalYard("S1", 1000)
	yard.Lots[0].Quality = "C"
	yard.Lat, yard.Lon = 22.5, 88.3
	rc := NewRunContext(runAt, []model.StockyardInventory{yard}, nil, nil, prediction.MLPredictions{})

	quality := order("Q", 100, model.PriorityHigh, runAt)
	quality.RequiredQuality = "B"
	material := order("M", 100, model.PriorityHigh, runAt)
	material.MaterialID = "limestone"
	big := order("BIG", 1500, model.PriorityHigh, runAt)

	res := NewAllocator(cfg, nil).Allocate(rc, []model.Order{quality, material, big})
	codes := map[string]string{}
	for _, u := range res.Unallocated {
		codes[u.OrderID] = u.Code
	}
	assert.Equal(t, ReasonQualityMismatch, codes["Q"])
	assert.Equal(t, ReasonNoMaterial, codes["M"])
	assert.Equal(t, ReasonQuantityOutOfRange, codes["BIG"])

	cfg.Constraints.MaxDistanceKm = 10
	far := order("FAR", 100, model.PriorityHigh, runAt)
	far.DestLat, far.DestLon = 28.7, 77.1
	res = NewAllocator(cfg, nil).Allocate(rc, []model.Order{far})
	require.Len(t, res.Unallocated, 1)
	assert.Equal(t, ReasonDistanceExceeded, res.Unallocated[0].Code)
}

func TestAllocatorPrefersBetterScoreThenLowerCost(t *testing.T) {
	cfg := DefaultConfig()
	fresh := coalYard("S2", 1000)
	stale := coalYard("S1", 1000)
	stale.Lots[0].AgeDays = 150
	rc := NewRunContext(runAt, []model.StockyardInventory{stale, fresh}, nil, nil, prediction.MLPredictions{})
	res := NewAllocator(cfg, nil).Allocate(rc, []model.Order{order("O1", 100, model.PriorityHigh, runAt)})
	require.Len(t, res.Allocations, 1)
	assert.Equal(t, "S2", res.Allocations[0].StockyardID)

	// identical scores: the cheaper grade wins
	gradeA := coalYard("S1", 1000)
	gradeB := coalYard("S2", 1000)
	gradeB.Lots[0].Quality = "B"
	rc = NewRunContext(runAt, []model.StockyardInventory{gradeA, gradeB}, nil, nil, prediction.MLPredictions{})
	res = NewAllocator(cfg, nil).Allocate(rc, []model.Order{order("O1", 100, model.PriorityHigh, runAt)})
	require.Len(t, res.Allocations, 1)
	assert.Equal(t, "S2", res.Allocations[0].StockyardID)
}

func TestRouterFilters(t *testing.T) {
	cfg := DefaultConfig()
	yard := coalYard("S1", 5000)
	alloc := model.StockAllocation{OrderID: "O1", StockyardID: "S1", MaterialID: "coal", Quantity: 100, Cost: 10}
	o := order("O1", 100, model.PriorityHigh, runAt)

	cases := []struct {
		name   string
		lps    []model.LoadingPointStatus
		routes []model.Route
		code   string
	}{
		{"no loading point", nil, []model.Route{route("R1", "S1", "D")}, ReasonNoLoadingPoint},
		{"equipment", []model.LoadingPointStatus{{ID: "LP1", StockyardID: "S1", Capacity: 500, Available: 500, Equipment: []string{"crane"}}}, []model.Route{route("R1", "S1", "D")}, ReasonEquipment},
		{"no route", []model.LoadingPointStatus{conveyorLP("LP1", "S1", 500)}, []model.Route{route("R1", "S1", "X")}, ReasonNoRoute},
		{"siding", []model.LoadingPointStatus{conveyorLP("LP1", "S1", 500)}, []model.Route{{ID: "R1", Origin: "S1", Destination: "D"}}, ReasonSidingCapacity},
		{"restricted", []model.LoadingPointStatus{conveyorLP("LP1", "S1", 500)}, []model.Route{func() model.Route {
			r := route("R1", "S1", "D")
			r.Restrictions = []string{"no:coal"}
			return r
		}()}, ReasonRouteRestriction},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rc := NewRunContext(runAt, []model.StockyardInventory{yard}, tc.lps, tc.routes, prediction.MLPredictions{})
			res := NewRouter(cfg, nil).Route(rc, []model.StockAllocation{alloc}, []model.Order{o})
			require.Len(t, res.Unrouted, 1)
			assert.Equal(t, tc.code, res.Unrouted[0].Code)
			assert.Empty(t, res.Decisions)
		})
	}
}

func TestRouterPrefersCheaperUncongestedRoute(t *testing.T) {
	cfg := DefaultConfig()
	cheap := route("R-CHEAP", "S1", "D")
	busy := route("R-BUSY", "S1", "D")
	busy.CostPerUnit = 4
	busy.Congestion = 0.9
	rc := NewRunContext(runAt, nil, []model.LoadingPointStatus{conveyorLP("LP1", "S1", 1000)}, []model.Route{busy, cheap}, prediction.MLPredictions{})
	alloc := model.StockAllocation{OrderID: "O1", StockyardID: "S1", MaterialID: "coal", Quantity: 100}
	res := NewRouter(cfg, nil).Route(rc, []model.StockAllocation{alloc}, []model.Order{order("O1", 100, model.PriorityHigh, runAt)})
	require.Len(t, res.Decisions, 1)
	assert.Equal(t, "R-CHEAP", res.Decisions[0].RouteID)
	// remaining 90, cost 100, congestion 80, transit 100, equipment 100
	assert.InDelta(t, 0.2*90+0.3*100+0.2*80+0.15*100+0.15*100, res.Decisions[0].Feasibility, 1e-9)
}

func TestRouterUnmappedMaterialNeedsNoEquipment(t *testing.T) {
	cfg := DefaultConfig()
	lp := conveyorLP("LP1", "S1", 1000)
	lp.Equipment = nil
	rc := NewRunContext(runAt, nil, []model.LoadingPointStatus{lp}, []model.Route{route("R1", "S1", "D")}, prediction.MLPredictions{})
	alloc := model.StockAllocation{OrderID: "O1", StockyardID: "S1", MaterialID: "gravel", Quantity: 100}
	o := order("O1", 100, model.PriorityHigh, runAt)
	o.MaterialID = "gravel"
	res := NewRouter(cfg, nil).Route(rc, []model.StockAllocation{alloc}, []model.Order{o})
	require.Len(t, res.Decisions, 1)
	assert.InDelta(t, 0.2*90+0.3*100+0.2*80+0.15*100+0.15*100, res.Decisions[0].Feasibility, 1e-9)
}

func TestRouterUsesPredictedThroughputAndOpeningHours(t *testing.T) {
	cfg := DefaultConfig()
	lp := conveyorLP("LP1", "S1", 1000)
	lp.OpenHour, lp.CloseHour = 10, 18
	preds := prediction.MLPredictions{Throughput: map[string]float64{"LP1": 100}}
	rc := NewRunContext(runAt, nil, []model.LoadingPointStatus{lp}, []model.Route{route("R1", "S1", "D")}, preds)
	alloc := model.StockAllocation{OrderID: "O1", StockyardID: "S1", MaterialID: "coal", Quantity: 200}
	o := order("O1", 200, model.PriorityHigh, runAt.Add(time.Hour))
	res := NewRouter(cfg, nil).Route(rc, []model.StockAllocation{alloc}, []model.Order{o})
	require.Len(t, res.Decisions, 1)
	// opens at 10:00, 2h loading, 12h transit
	assert.Equal(t, time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), res.Decisions[0].EstimatedDelivery)
	assert.NotEmpty(t, res.Warnings)
}

func TestNextOpening(t *testing.T) {
	at := time.Date(2024, 5, 1, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, at, nextOpening(at, 0, 0))
	assert.Equal(t, at, nextOpening(at, 22, 6))
	assert.Equal(t, time.Date(2024, 5, 2, 6, 0, 0, 0, time.UTC), nextOpening(at, 6, 22))
}

func TestRunContextIsolation(t *testing.T) {
	yards := []model.StockyardInventory{coalYard("S1", 1000)}
	lps := []model.LoadingPointStatus{conveyorLP("LP1", "S1", 1000)}
	rc := NewRunContext(runAt, yards, lps, nil, prediction.MLPredictions{})
	require.NoError(t, rc.Reserve("O1", "S1", 0, 400))
	require.NoError(t, rc.Assign("LP1", 400))
	assert.Equal(t, 0.0, yards[0].Lots[0].Reserved)
	assert.Equal(t, 1000.0, lps[0].Available)

	assert.Error(t, rc.Reserve("O1", "S1", 0, 10))
	assert.Error(t, rc.Reserve("O2", "S1", 0, 700))
	assert.Error(t, rc.Reserve("O2", "S9", 0, 1))
	assert.Error(t, rc.Assign("LP1", 700))
	assert.Error(t, rc.Assign("LP9", 1))
	assert.NoError(t, rc.Verify())
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 900.0, cfg.Constraints.RakeCapacity())

	bad := cfg
	bad.Constraints.MinFeasibility = 120
	assert.Error(t, bad.Validate())
	bad = cfg
	bad.Constraints.MinOrderQuantity, bad.Constraints.MaxOrderQuantity = 100, 50
	assert.Error(t, bad.Validate())
	bad = cfg
	bad.Cost.BaseRate = -1
	assert.Error(t, bad.Validate())
}
