package decision

import (
	"fmt"

	"github.com/kilianp07/rakeplan/core/packing"
	"github.com/kilianp07/rakeplan/core/planning"
)

// DefaultSuccessRate is the historical success rate used when none is set.
const DefaultSuccessRate = 0.85

// Config holds the thresholds of the assessment stage.
type Config struct {
	// HistoricalSuccessRate is the share of past plans executed as planned.
	// Nil means DefaultSuccessRate.
	HistoricalSuccessRate *float64 `json:"historical_success_rate"`

	DelayRiskThreshold  float64 `json:"delay_risk_threshold"`
	LowUtilization      float64 `json:"low_utilization"`
	OverUtilization     float64 `json:"over_utilization"`
	CostDeviation       float64 `json:"cost_deviation"`
	ConsolidateBelow    float64 `json:"consolidate_below"`
	KeepAbove           float64 `json:"keep_above"`
	CostVarianceLimit   float64 `json:"cost_variance_limit"`
	DemandSurgeFactor   float64 `json:"demand_surge_factor"`
	DisableAlternatives bool    `json:"disable_alternatives"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.HistoricalSuccessRate == nil {
		rate := DefaultSuccessRate
		c.HistoricalSuccessRate = &rate
	}
	if c.DelayRiskThreshold == 0 {
		c.DelayRiskThreshold = 0.20
	}
	if c.LowUtilization == 0 {
		c.LowUtilization = 70
	}
	if c.OverUtilization == 0 {
		c.OverUtilization = 100
	}
	if c.CostDeviation == 0 {
		c.CostDeviation = 0.30
	}
	if c.ConsolidateBelow == 0 {
		c.ConsolidateBelow = 75
	}
	if c.KeepAbove == 0 {
		c.KeepAbove = 90
	}
	if c.CostVarianceLimit == 0 {
		c.CostVarianceLimit = 0.15
	}
	if c.DemandSurgeFactor == 0 {
		c.DemandSurgeFactor = 1.2
	}
}

// SuccessRate returns the configured historical success rate.
func (c Config) SuccessRate() float64 {
	if c.HistoricalSuccessRate == nil {
		return DefaultSuccessRate
	}
	return *c.HistoricalSuccessRate
}

// Validate checks the thresholds are within range.
func (c Config) Validate() error {
	if r := c.SuccessRate(); r < 0 || r > 1 {
		return fmt.Errorf("decision: historical_success_rate must be within [0,1]")
	}
	if c.DelayRiskThreshold < 0 || c.DelayRiskThreshold > 1 {
		return fmt.Errorf("decision: delay_risk_threshold must be within [0,1]")
	}
	if c.LowUtilization < 0 || c.OverUtilization < c.LowUtilization {
		return fmt.Errorf("decision: over_utilization must not be below low_utilization")
	}
	if c.ConsolidateBelow < 0 || c.KeepAbove < c.ConsolidateBelow {
		return fmt.Errorf("decision: keep_above must not be below consolidate_below")
	}
	if c.CostDeviation < 0 || c.CostVarianceLimit < 0 || c.DemandSurgeFactor < 0 {
		return fmt.Errorf("decision: negative threshold")
	}
	return nil
}

// Settings groups everything an Orchestrator needs.
type Settings struct {
	Planning planning.Config `json:"planning"`
	Packing  packing.Config  `json:"packing"`
	Decision Config          `json:"decision"`
}

// SetDefaults applies defaults to every section.
func (s *Settings) SetDefaults() {
	s.Planning.SetDefaults()
	s.Packing.SetDefaults()
	s.Decision.SetDefaults()
}

// Validate validates every section.
func (s Settings) Validate() error {
	if err := s.Planning.Validate(); err != nil {
		return err
	}
	if err := s.Packing.Validate(); err != nil {
		return err
	}
	return s.Decision.Validate()
}

// DefaultSettings returns Settings with defaults applied.
func DefaultSettings() Settings {
	var s Settings
	s.SetDefaults()
	return s
}
