package planning

import (
	"fmt"
	"strings"
)

// Constraints bound the allocation and routing stages.
type Constraints struct {
	// MinOrderQuantity and MaxOrderQuantity bound the orders accepted for
	// allocation. Zero disables the bound.
	MinOrderQuantity float64 `json:"min_order_quantity"`
	MaxOrderQuantity float64 `json:"max_order_quantity"`
	// MaxDistanceKm drops stockyards further than this from the destination.
	MaxDistanceKm float64 `json:"max_distance_km"`
	// MinFeasibility drops allocation candidates scoring below it (0-100).
	MinFeasibility float64 `json:"min_feasibility"`
	// MinSidingCapacity is the smallest route siding capacity accepted.
	MinSidingCapacity    int     `json:"min_siding_capacity"`
	WagonCount           int     `json:"wagon_count"`
	WagonCapacity        float64 `json:"wagon_capacity"`
	FreshnessHorizonDays float64 `json:"freshness_horizon_days"`
}

// RakeCapacity returns the nominal capacity of a rake.
func (c Constraints) RakeCapacity() float64 {
	return float64(c.WagonCount) * c.WagonCapacity
}

// CostModel prices an allocation.
type CostModel struct {
	BaseRate       float64            `json:"base_rate"`
	DistanceRate   float64            `json:"distance_rate"`
	QualityPremium map[string]float64 `json:"quality_premium"`
}

// Cost returns (base + distance rate x km + quality premium) x quantity.
func (m CostModel) Cost(distanceKm float64, grade string, qty float64) float64 {
	premium := m.QualityPremium[strings.ToUpper(strings.TrimSpace(grade))]
	return (m.BaseRate + m.DistanceRate*distanceKm + premium) * qty
}

// Config groups the planning settings.
type Config struct {
	Constraints Constraints `json:"constraints"`
	Cost        CostModel   `json:"cost"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Constraints.WagonCount == 0 {
		c.Constraints.WagonCount = 10
	}
	if c.Constraints.WagonCapacity == 0 {
		c.Constraints.WagonCapacity = 90
	}
	if c.Constraints.FreshnessHorizonDays == 0 {
		c.Constraints.FreshnessHorizonDays = 180
	}
	if c.Constraints.MinSidingCapacity == 0 {
		c.Constraints.MinSidingCapacity = 1
	}
	if c.Cost.BaseRate == 0 {
		c.Cost.BaseRate = 40
	}
	if c.Cost.DistanceRate == 0 {
		c.Cost.DistanceRate = 0.05
	}
	if c.Cost.QualityPremium == nil {
		c.Cost.QualityPremium = map[string]float64{"A": 15, "B": 8, "C": 3, "D": 0}
	}
}

// Validate checks the settings are consistent.
func (c Config) Validate() error {
	k := c.Constraints
	if k.MinOrderQuantity < 0 || k.MaxOrderQuantity < 0 || k.MaxDistanceKm < 0 {
		return fmt.Errorf("planning: negative order or distance bound")
	}
	if k.MaxOrderQuantity > 0 && k.MaxOrderQuantity < k.MinOrderQuantity {
		return fmt.Errorf("planning: max_order_quantity below min_order_quantity")
	}
	if k.MinFeasibility < 0 || k.MinFeasibility > 100 {
		return fmt.Errorf("planning: min_feasibility must be within [0,100]")
	}
	if k.WagonCount <= 0 || k.WagonCapacity <= 0 {
		return fmt.Errorf("planning: wagon_count and wagon_capacity must be positive")
	}
	if k.FreshnessHorizonDays <= 0 {
		return fmt.Errorf("planning: freshness_horizon_days must be positive")
	}
	if c.Cost.BaseRate < 0 || c.Cost.DistanceRate < 0 {
		return fmt.Errorf("planning: negative cost rate")
	}
	return nil
}

// DefaultConfig returns a Config with defaults applied.
func DefaultConfig() Config {
	var c Config
	c.SetDefaults()
	return c
}
