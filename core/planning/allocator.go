package planning

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/rakeplan/core/compat"
	"github.com/kilianp07/rakeplan/core/logger"
	"github.com/kilianp07/rakeplan/core/model"
)

// Reason codes attached to orders the allocator cannot serve.
const (
	ReasonDuplicateOrder     = "DUPLICATE_ORDER"
	ReasonQuantityOutOfRange = "QUANTITY_OUT_OF_RANGE"
	ReasonNoStockyards       = "NO_STOCKYARDS"
	ReasonNoMaterial         = "NO_MATERIAL"
	ReasonInsufficientStock  = "INSUFFICIENT_STOCK"
	ReasonQualityMismatch    = "QUALITY_MISMATCH"
	ReasonDistanceExceeded   = "DISTANCE_EXCEEDED"
	ReasonLowFeasibility     = "BELOW_MIN_FEASIBILITY"
	ReasonReservationFailed  = "RESERVATION_FAILED"
)

// Allocation score weights.
const (
	weightAvailability = 0.35
	weightQuality      = 0.25
	weightFreshness    = 0.20
	weightYardCapacity = 0.20
)

// AllocationResult is the output of the stock allocation stage.
type AllocationResult struct {
	Allocations     []model.StockAllocation `json:"allocations"`
	TotalCost       float64                 `json:"total_cost"`
	MeanFeasibility float64                 `json:"mean_feasibility"`
	Unallocated     []model.Unplaced        `json:"unallocated"`
	Warnings        []string                `json:"warnings"`
}

// Allocator assigns each order to the best stockyard lot.
type Allocator struct {
	cfg Config
	log logger.Logger
}

// NewAllocator returns an allocator using the given settings.
func NewAllocator(cfg Config, log logger.Logger) *Allocator {
	return &Allocator{cfg: cfg, log: logger.OrDiscard(log)}
}

type lotCandidate struct {
	yard     int
	lot      int
	distance float64
	cost     float64
	score    float64
	avail    float64
	quality  float64
	fresh    float64
	capacity float64
}

// SortOrders returns a copy of orders sorted by priority descending, then
// required-by ascending, then id.
func SortOrders(orders []model.Order) []model.Order {
	out := append([]model.Order(nil), orders...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Allocate reserves stock for every order it can serve and reports the rest.
// It never fails as a whole: orders without a feasible lot are listed in
// Unallocated with a reason.
func (a *Allocator) Allocate(rc *RunContext, orders []model.Order) AllocationResult {
	var res AllocationResult
	var feas []float64
	k := a.cfg.Constraints
	for _, o := range SortOrders(orders) {
		if rc.Allocated(o.ID) {
			res.Unallocated = append(res.Unallocated, unplaced(o.ID, ReasonDuplicateOrder, "order already allocated in this run"))
			continue
		}
		if (k.MinOrderQuantity > 0 && o.Quantity < k.MinOrderQuantity) || (k.MaxOrderQuantity > 0 && o.Quantity > k.MaxOrderQuantity) {
			res.Unallocated = append(res.Unallocated, unplaced(o.ID, ReasonQuantityOutOfRange,
				fmt.Sprintf("quantity %.2f outside [%.2f, %.2f]", o.Quantity, k.MinOrderQuantity, k.MaxOrderQuantity)))
			continue
		}
		best, code, reason := a.bestCandidate(rc, o)
		if best == nil {
			res.Unallocated = append(res.Unallocated, unplaced(o.ID, code, reason))
			a.log.Debugf("order %s unallocated: %s", o.ID, reason)
			continue
		}
		yard := rc.stockyards[best.yard]
		lot := yard.Lots[best.lot]
		if err := rc.Reserve(o.ID, yard.ID, best.lot, o.Quantity); err != nil {
			res.Unallocated = append(res.Unallocated, unplaced(o.ID, ReasonReservationFailed, err.Error()))
			a.log.Warnf("reservation for order %s failed: %v", o.ID, err)
			continue
		}
		alloc := model.StockAllocation{
			OrderID:     o.ID,
			StockyardID: yard.ID,
			LotIndex:    best.lot,
			MaterialID:  lot.MaterialID,
			Quality:     lot.Quality,
			Quantity:    o.Quantity,
			Cost:        best.cost,
			DistanceKm:  best.distance,
			Feasibility: best.score,
			Rationale: fmt.Sprintf("stockyard %s lot %d (grade %s, %.0f days): availability %.0f, quality %.0f, freshness %.0f, yard capacity %.0f",
				yard.ID, best.lot, lot.Quality, lot.AgeDays, best.avail, best.quality, best.fresh, best.capacity),
		}
		if lot.AgeDays > k.FreshnessHorizonDays {
			res.Warnings = append(res.Warnings, fmt.Sprintf("order %s served from lot aged %.0f days, beyond the %.0f day freshness horizon", o.ID, lot.AgeDays, k.FreshnessHorizonDays))
		}
		res.Allocations = append(res.Allocations, alloc)
		res.TotalCost += alloc.Cost
		feas = append(feas, alloc.Feasibility)
		a.log.Debugw("order allocated", map[string]any{
			"order":       o.ID,
			"stockyard":   yard.ID,
			"lot":         best.lot,
			"quantity":    o.Quantity,
			"feasibility": best.score,
		})
	}
	if len(feas) > 0 {
		res.MeanFeasibility = stat.Mean(feas, nil)
	}
	return res
}

// bestCandidate runs the staged candidate filters and returns the winner, or
// the reason of the last stage that emptied the candidate set.
func (a *Allocator) bestCandidate(rc *RunContext, o model.Order) (*lotCandidate, string, string) {
	if len(rc.stockyards) == 0 {
		return nil, ReasonNoStockyards, "no stockyards supplied"
	}
	k := a.cfg.Constraints
	var withMaterial, withStock, withQuality, inRange int
	var cands []lotCandidate
	for yi, y := range rc.stockyards {
		distance := compat.HaversineKm(y.Lat, y.Lon, o.DestLat, o.DestLon)
		for li, l := range y.Lots {
			if !strings.EqualFold(l.MaterialID, o.MaterialID) {
				continue
			}
			withMaterial++
			if l.Net() < o.Quantity {
				continue
			}
			withStock++
			if !compat.QualityMeets(l.Quality, o.RequiredQuality) {
				continue
			}
			withQuality++
			if k.MaxDistanceKm > 0 && distance > k.MaxDistanceKm {
				continue
			}
			inRange++
			c := a.scoreLot(y, l, o, distance)
			c.yard, c.lot = yi, li
			if c.score < k.MinFeasibility {
				continue
			}
			cands = append(cands, c)
		}
	}
	switch {
	case withMaterial == 0:
		return nil, ReasonNoMaterial, fmt.Sprintf("no stockyard holds %s", o.MaterialID)
	case withStock == 0:
		return nil, ReasonInsufficientStock, fmt.Sprintf("no lot of %s has %.2f units free", o.MaterialID, o.Quantity)
	case withQuality == 0:
		return nil, ReasonQualityMismatch, fmt.Sprintf("no lot of %s meets quality %s", o.MaterialID, o.RequiredQuality)
	case inRange == 0:
		return nil, ReasonDistanceExceeded, fmt.Sprintf("every candidate stockyard is beyond %.0f km", k.MaxDistanceKm)
	case len(cands) == 0:
		return nil, ReasonLowFeasibility, fmt.Sprintf("every candidate scored below %.0f", k.MinFeasibility)
	}
	sort.SliceStable(cands, func(i, j int) bool {
		ci, cj := cands[i], cands[j]
		if ci.score != cj.score {
			return ci.score > cj.score
		}
		if ci.cost != cj.cost {
			return ci.cost < cj.cost
		}
		yi, yj := rc.stockyards[ci.yard].ID, rc.stockyards[cj.yard].ID
		if yi != yj {
			return yi < yj
		}
		return ci.lot < cj.lot
	})
	return &cands[0], "", ""
}

func (a *Allocator) scoreLot(y model.StockyardInventory, l model.MaterialLot, o model.Order, distance float64) lotCandidate {
	k := a.cfg.Constraints
	c := lotCandidate{distance: distance}
	c.avail = math.Min(100, 100*l.Net()/(2*o.Quantity))
	c.quality = compat.QualityMatchScore(l.Quality, o.RequiredQuality)
	c.fresh = 100 * math.Max(0, 1-l.AgeDays/k.FreshnessHorizonDays)
	c.capacity = 100
	if y.Capacity > 0 {
		c.capacity = clamp(100*(y.Capacity-y.CurrentLoad)/y.Capacity, 0, 100)
	}
	c.score = weightAvailability*c.avail + weightQuality*c.quality + weightFreshness*c.fresh + weightYardCapacity*c.capacity
	c.cost = a.cfg.Cost.Cost(distance, l.Quality, o.Quantity)
	return c
}

func unplaced(id, code, reason string) model.Unplaced {
	return model.Unplaced{OrderID: id, Code: code, Reason: reason}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
