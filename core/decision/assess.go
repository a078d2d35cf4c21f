package decision

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/rakeplan/core/model"
	"github.com/kilianp07/rakeplan/core/planning"
	"github.com/kilianp07/rakeplan/core/prediction"
)

// Recommendation rules.
const (
	RuleConsolidate = "consolidate_rakes"
	RuleKeep        = "keep_configuration"
	RuleTariffs     = "review_tariffs"
	RuleMitigate    = "mitigate_risks"
	RulePreposition = "preposition_stock"
	RuleSourceStock = "source_stock"
	RuleRequestRake = "request_rakes"
)

// PlanSubject is the risk subject used for plan-wide risks.
const PlanSubject = "plan"

// confidence blends prediction confidence, the share of rakes meeting every
// hard constraint and the historical success rate into a percentage.
func confidence(predConfidence, constraintRatio, historical float64) float64 {
	c := 100 * (0.4*clamp01(predConfidence) + 0.4*clamp01(constraintRatio) + 0.2*clamp01(historical))
	return math.Max(0, math.Min(100, c))
}

type assessor struct {
	cfg         Config
	constraints planning.Constraints
	preds       prediction.MLPredictions
}

// risks lists the per-rake and plan-wide risks, most severe first.
func (a assessor) risks(res Result, yards []model.StockyardInventory, validOrders int) []model.Risk {
	var out []model.Risk
	rakes := res.Plan.Rakes
	var meanCPU float64
	if len(rakes) > 0 {
		cpu := make([]float64, len(rakes))
		for i, r := range rakes {
			cpu[i] = r.CostPerUnit
		}
		meanCPU = stat.Mean(cpu, nil)
	}
	for _, r := range rakes {
		if dr := a.preds.DelayRiskFor(r.ID, r.RouteID, r.LoadingPointID, r.Destination); dr > a.cfg.DelayRiskThreshold {
			out = append(out, model.NewRisk(model.RiskDelay, model.SeverityHigh, r.ID,
				fmt.Sprintf("predicted delay risk %.0f%% exceeds %.0f%%", dr*100, a.cfg.DelayRiskThreshold*100),
				"add buffer time or move the rake to a less congested route", dr))
		}
		switch {
		case r.Utilization > a.cfg.OverUtilization:
			out = append(out, model.NewRisk(model.RiskCapacity, model.SeverityCritical, r.ID,
				fmt.Sprintf("utilization %.1f%% exceeds %.0f%%", r.Utilization, a.cfg.OverUtilization),
				"split the rake or move a member to another rake", 1))
		case r.Utilization < a.cfg.LowUtilization:
			p := (a.cfg.LowUtilization - r.Utilization) / a.cfg.LowUtilization
			out = append(out, model.NewRisk(model.RiskCapacity, model.SeverityMedium, r.ID,
				fmt.Sprintf("utilization %.1f%% below %.0f%%", r.Utilization, a.cfg.LowUtilization),
				"consolidate with another rake sharing the route", p))
		}
		if meanCPU > 0 {
			if dev := math.Abs(r.CostPerUnit-meanCPU) / meanCPU; dev > a.cfg.CostDeviation {
				out = append(out, model.NewRisk(model.RiskCost, model.SeverityLow, r.ID,
					fmt.Sprintf("cost per unit %.2f deviates %.0f%% from the plan mean %.2f", r.CostPerUnit, dev*100, meanCPU),
					"review the tariff and the source stockyard", math.Min(1, dev)))
			}
		}
	}

	if unplaced := len(res.Unplaced()); unplaced > 0 && validOrders > 0 {
		out = append(out, model.NewRisk(model.RiskConstraint, model.SeverityMedium, PlanSubject,
			fmt.Sprintf("%d of %d orders are left out of the plan", unplaced, validOrders),
			"source stock, free loading capacity or relax rake constraints", float64(unplaced)/float64(validOrders)))
	}
	out = append(out, a.freshness(res, yards)...)
	if avail := a.preds.RakeAvailability; avail > 0 && avail < 1 && len(rakes) > 0 {
		out = append(out, model.NewRisk(model.RiskCapacity, model.SeverityHigh, PlanSubject,
			fmt.Sprintf("railway expected to supply %.0f%% of the %d rakes planned", avail*100, len(rakes)),
			"request additional rakes or hold back low priority rakes", 1-avail))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity > out[j].Severity
		}
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Subject < out[j].Subject
	})
	return out
}

// freshness flags planned orders drawn from lots older than half the
// freshness horizon.
func (a assessor) freshness(res Result, yards []model.StockyardInventory) []model.Risk {
	horizon := a.constraints.FreshnessHorizonDays
	if horizon <= 0 {
		return nil
	}
	planned := make(map[string]struct{})
	for _, id := range res.Plan.OrderIDs() {
		planned[id] = struct{}{}
	}
	byID := make(map[string]model.StockyardInventory, len(yards))
	for _, y := range yards {
		byID[y.ID] = y
	}
	var out []model.Risk
	for _, al := range res.Allocation.Allocations {
		if _, ok := planned[al.OrderID]; !ok {
			continue
		}
		y, ok := byID[al.StockyardID]
		if !ok || al.LotIndex < 0 || al.LotIndex >= len(y.Lots) {
			continue
		}
		age := y.Lots[al.LotIndex].AgeDays
		if age <= horizon/2 {
			continue
		}
		out = append(out, model.NewRisk(model.RiskQuality, model.SeverityLow, al.OrderID,
			fmt.Sprintf("lot %s#%d is %.0f days old, beyond half the %.0f day freshness horizon", al.StockyardID, al.LotIndex, age, horizon),
			"inspect the lot before loading", age/horizon))
	}
	return out
}

// recommendations derives actionable suggestions, each tied to the figure
// and threshold that triggered it.
func (a assessor) recommendations(res Result) []model.Recommendation {
	var out []model.Recommendation
	p := res.Plan
	if len(p.Rakes) > 0 {
		switch u := p.AvgUtilization; {
		case u < a.cfg.ConsolidateBelow:
			out = append(out, model.Recommendation{Rule: RuleConsolidate, Value: u, Threshold: a.cfg.ConsolidateBelow,
				Message: fmt.Sprintf("Average utilization %.1f%% is below %.0f%%: consolidate partially loaded rakes sharing a route.", u, a.cfg.ConsolidateBelow)})
		case u >= a.cfg.KeepAbove:
			out = append(out, model.Recommendation{Rule: RuleKeep, Value: u, Threshold: a.cfg.KeepAbove,
				Message: fmt.Sprintf("Average utilization %.1f%% is at or above %.0f%%: keep the current rake configuration.", u, a.cfg.KeepAbove)})
		}
	}
	if cv := a.preds.MaxCostVariance(); cv > a.cfg.CostVarianceLimit {
		out = append(out, model.Recommendation{Rule: RuleTariffs, Value: cv, Threshold: a.cfg.CostVarianceLimit,
			Message: fmt.Sprintf("Predicted cost variance %.0f%% exceeds %.0f%%: review route tariffs before approval.", cv*100, a.cfg.CostVarianceLimit*100)})
	}
	if n := countSevere(res.Risks); n > 0 {
		out = append(out, model.Recommendation{Rule: RuleMitigate, Value: float64(n), Threshold: 1,
			Message: fmt.Sprintf("%d high or critical risks: mitigate them before approving the plan.", n)})
	}
	if demand, limit := a.preds.TotalDemand(), a.cfg.DemandSurgeFactor*p.TotalLoad; demand > 0 && demand > limit {
		out = append(out, model.Recommendation{Rule: RulePreposition, Value: demand, Threshold: limit,
			Message: fmt.Sprintf("Forecast demand %.0f exceeds %.1fx the planned load: pre-position stock at the loading points.", demand, a.cfg.DemandSurgeFactor)})
	}
	if n := len(res.Allocation.Unallocated); n > 0 {
		out = append(out, model.Recommendation{Rule: RuleSourceStock, Value: float64(n), Threshold: 0,
			Message: fmt.Sprintf("%d orders found no suitable stock: source material or relax quality requirements.", n)})
	}
	if avail := a.preds.RakeAvailability; avail > 0 && avail < 1 && len(p.Rakes) > 0 {
		short := int(math.Ceil(float64(len(p.Rakes)) * (1 - avail)))
		out = append(out, model.Recommendation{Rule: RuleRequestRake, Value: avail, Threshold: 1,
			Message: fmt.Sprintf("Only %.0f%% of the needed rakes are expected: request %d more from the railway.", avail*100, short)})
	}
	return out
}

func countSevere(risks []model.Risk) int {
	var n int
	for _, r := range risks {
		if r.Severity >= model.SeverityHigh {
			n++
		}
	}
	return n
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
