package prediction

import "time"

// MLPredictions carries the forecasts produced by an external model for one
// planning run. Maps are keyed by entity id: rake, route, loading point or
// destination for DelayRisk, route for CostVariance, destination for
// DemandForecast and loading point for Throughput.
type MLPredictions struct {
	DelayRisk      map[string]float64 `json:"delay_risk" yaml:"delay_risk"`
	CostVariance   map[string]float64 `json:"cost_variance" yaml:"cost_variance"`
	DemandForecast map[string]float64 `json:"demand_forecast" yaml:"demand_forecast"`
	Throughput     map[string]float64 `json:"throughput" yaml:"throughput"`
	// RakeAvailability is the share of the required rakes the railway is
	// expected to supply. Zero or negative values mean unknown.
	RakeAvailability float64   `json:"rake_availability" yaml:"rake_availability"`
	Confidence       float64   `json:"confidence" yaml:"confidence"`
	GeneratedAt      time.Time `json:"generated_at" yaml:"generated_at"`
}

// Empty reports whether the predictions carry no information.
func (p MLPredictions) Empty() bool {
	return len(p.DelayRisk) == 0 && len(p.CostVariance) == 0 && len(p.DemandForecast) == 0 &&
		len(p.Throughput) == 0 && p.RakeAvailability <= 0 && p.Confidence == 0
}

// DelayRiskFor returns the delay risk of the first key with a forecast,
// clamped to [0,1]. Callers pass keys from most to least specific.
func (p MLPredictions) DelayRiskFor(keys ...string) float64 {
	for _, k := range keys {
		if v, ok := p.DelayRisk[k]; ok {
			return clamp01(v)
		}
	}
	return 0
}

// ThroughputFor returns the predicted throughput of a loading point.
func (p MLPredictions) ThroughputFor(loadingPoint string) (float64, bool) {
	v, ok := p.Throughput[loadingPoint]
	if !ok || v <= 0 {
		return 0, false
	}
	return v, true
}

// MaxCostVariance returns the largest predicted cost variance.
func (p MLPredictions) MaxCostVariance() float64 {
	var max float64
	for _, v := range p.CostVariance {
		if v > max {
			max = v
		}
	}
	return max
}

// TotalDemand sums the demand forecast over every destination.
func (p MLPredictions) TotalDemand() float64 {
	var sum float64
	for _, v := range p.DemandForecast {
		if v > 0 {
			sum += v
		}
	}
	return sum
}

// ConfidenceRatio returns the overall model confidence clamped to [0,1].
// Values above 1 are read as percentages.
func (p MLPredictions) ConfidenceRatio() float64 {
	c := p.Confidence
	if c > 1 {
		c /= 100
	}
	return clamp01(c)
}

// Clone returns a deep copy of the predictions.
func (p MLPredictions) Clone() MLPredictions {
	cp := p
	cp.DelayRisk = cloneMap(p.DelayRisk)
	cp.CostVariance = cloneMap(p.CostVariance)
	cp.DemandForecast = cloneMap(p.DemandForecast)
	cp.Throughput = cloneMap(p.Throughput)
	return cp
}

func cloneMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	cp := make(map[string]float64, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
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
