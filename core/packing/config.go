package packing

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrMalformedInput is returned for invalid weights or candidate rakes.
var ErrMalformedInput = errors.New("malformed packing input")

// Strategy names a packing algorithm.
type Strategy string

const (
	StrategyGreedy    Strategy = "greedy"
	StrategyGenetic   Strategy = "genetic"
	StrategyAnnealing Strategy = "annealing"
)

// Strategies lists every supported strategy.
func Strategies() []Strategy {
	return []Strategy{StrategyGreedy, StrategyGenetic, StrategyAnnealing}
}

// ParseStrategy converts a textual tag into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyGreedy, "":
		return StrategyGreedy, nil
	case StrategyGenetic, "ga":
		return StrategyGenetic, nil
	case StrategyAnnealing, "sa", "simulated_annealing":
		return StrategyAnnealing, nil
	default:
		return "", fmt.Errorf("%w: unknown strategy %q", ErrMalformedInput, s)
	}
}

// ObjectiveWeights balance the four packing objectives. They must be
// non-negative and sum to one.
type ObjectiveWeights struct {
	Cost        float64 `json:"cost"`
	Utilization float64 `json:"utilization"`
	Delay       float64 `json:"delay"`
	SLA         float64 `json:"sla"`
}

// DefaultWeights returns the weights used when none are configured.
func DefaultWeights() ObjectiveWeights {
	return ObjectiveWeights{Cost: 0.35, Utilization: 0.30, Delay: 0.20, SLA: 0.15}
}

// CostOnly, TimeOnly and UtilizationOnly weights drive the single-objective
// alternatives.
var (
	CostOnly        = ObjectiveWeights{Cost: 1}
	TimeOnly        = ObjectiveWeights{Delay: 1}
	UtilizationOnly = ObjectiveWeights{Utilization: 1}
)

// IsZero reports whether no weight is set.
func (w ObjectiveWeights) IsZero() bool {
	return w == ObjectiveWeights{}
}

// Validate checks the weights are non-negative and sum to one.
func (w ObjectiveWeights) Validate() error {
	for _, v := range []float64{w.Cost, w.Utilization, w.Delay, w.SLA} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: objective weights must be non-negative", ErrMalformedInput)
		}
	}
	if sum := w.Cost + w.Utilization + w.Delay + w.SLA; math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("%w: objective weights sum to %.6f, want 1", ErrMalformedInput, sum)
	}
	return nil
}

// SearchConfig holds the hard constraints and search budgets.
type SearchConfig struct {
	// MinRakeLoad rejects rakes carrying less than this load.
	MinRakeLoad float64 `json:"min_rake_load"`
	// MaxRakes caps the number of accepted rakes. Zero means unlimited.
	MaxRakes      int           `json:"max_rakes"`
	MaxIterations int           `json:"max_iterations"`
	TimeBudget    time.Duration `json:"time_budget"`
	Seed          int64         `json:"seed"`
	Workers       int           `json:"workers"`

	PopulationSize int     `json:"population_size"`
	CrossoverRate  float64 `json:"crossover_rate"`
	MutationRate   float64 `json:"mutation_rate"`
	EliteCount     int     `json:"elite_count"`
	TournamentSize int     `json:"tournament_size"`

	InitialTemperature float64 `json:"initial_temperature"`
	CoolingRate        float64 `json:"cooling_rate"`
	MinTemperature     float64 `json:"min_temperature"`
}

// SetDefaults applies sane defaults.
func (c *SearchConfig) SetDefaults() {
	if c.MaxIterations == 0 {
		c.MaxIterations = 200
	}
	if c.TimeBudget == 0 {
		c.TimeBudget = 2 * time.Second
	}
	if c.Seed == 0 {
		c.Seed = 1
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.PopulationSize == 0 {
		c.PopulationSize = 30
	}
	if c.CrossoverRate == 0 {
		c.CrossoverRate = 0.9
	}
	if c.MutationRate == 0 {
		c.MutationRate = 0.2
	}
	if c.EliteCount == 0 {
		c.EliteCount = 2
	}
	if c.TournamentSize == 0 {
		c.TournamentSize = 3
	}
	if c.InitialTemperature == 0 {
		c.InitialTemperature = 10
	}
	if c.CoolingRate == 0 {
		c.CoolingRate = 0.995
	}
	if c.MinTemperature == 0 {
		c.MinTemperature = 1e-3
	}
}

// Validate checks the settings are usable.
func (c SearchConfig) Validate() error {
	if c.MinRakeLoad < 0 || c.MaxRakes < 0 || c.MaxIterations < 0 || c.TimeBudget < 0 || c.Workers < 0 {
		return fmt.Errorf("%w: negative search setting", ErrMalformedInput)
	}
	if c.PopulationSize < 0 || c.EliteCount < 0 || c.TournamentSize < 0 {
		return fmt.Errorf("%w: negative genetic setting", ErrMalformedInput)
	}
	if c.PopulationSize == 1 {
		return fmt.Errorf("%w: population_size must be at least 2", ErrMalformedInput)
	}
	if c.PopulationSize > 0 && c.EliteCount >= c.PopulationSize {
		return fmt.Errorf("%w: elite_count must be below population_size", ErrMalformedInput)
	}
	if c.CrossoverRate < 0 || c.CrossoverRate > 1 || c.MutationRate < 0 || c.MutationRate > 1 {
		return fmt.Errorf("%w: crossover and mutation rates must be within [0,1]", ErrMalformedInput)
	}
	if c.CoolingRate < 0 || c.CoolingRate >= 1 {
		return fmt.Errorf("%w: cooling_rate must be within [0,1)", ErrMalformedInput)
	}
	if c.InitialTemperature < 0 || c.MinTemperature < 0 {
		return fmt.Errorf("%w: negative temperature", ErrMalformedInput)
	}
	return nil
}

// Config is the packing section of the service configuration.
type Config struct {
	Strategy Strategy         `json:"strategy"`
	Weights  ObjectiveWeights `json:"weights"`
	Search   SearchConfig     `json:"search"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Strategy == "" {
		c.Strategy = StrategyGreedy
	}
	if c.Weights.IsZero() {
		c.Weights = DefaultWeights()
	}
	c.Search.SetDefaults()
}

// Validate checks the strategy, weights and search settings.
func (c Config) Validate() error {
	if _, err := ParseStrategy(string(c.Strategy)); err != nil {
		return err
	}
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	return c.Search.Validate()
}
