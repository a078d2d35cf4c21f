package packing

import (
	"github.com/kilianp07/rakeplan/core/factory"
)

var registry = factory.NewRegistry[Optimizer]()

func init() {
	registry.MustRegister(string(StrategyGreedy), func(map[string]any) (Optimizer, error) { return Greedy{}, nil })
	registry.MustRegister(string(StrategyGenetic), func(map[string]any) (Optimizer, error) { return Genetic{}, nil })
	registry.MustRegister(string(StrategyAnnealing), func(map[string]any) (Optimizer, error) { return Annealing{}, nil })
}

// New returns the optimizer implementing the strategy.
func New(s Strategy) (Optimizer, error) {
	st, err := ParseStrategy(string(s))
	if err != nil {
		return nil, err
	}
	return registry.Create(factory.ModuleConfig{Type: string(st)})
}
