package metrics

import "github.com/kilianp07/rakeplan/core/factory"

var sinkRegistry = factory.NewRegistry[PlanSink]()

func init() {
	sinkRegistry.MustRegister("nop", func(map[string]any) (PlanSink, error) { return NopSink{}, nil })
}

// RegisterPlanSink adds a sink factory identified by name.
func RegisterPlanSink(name string, f factory.Factory[PlanSink]) error {
	return sinkRegistry.Register(name, f)
}

// NewPlanSink creates a PlanSink from the provided configuration.
func NewPlanSink(cfgs []factory.ModuleConfig) (PlanSink, error) {
	if len(cfgs) == 0 {
		return NopSink{}, nil
	}
	if len(cfgs) == 1 {
		return sinkRegistry.Create(cfgs[0])
	}
	sinks := make([]PlanSink, len(cfgs))
	for i, c := range cfgs {
		s, err := sinkRegistry.Create(c)
		if err != nil {
			return nil, err
		}
		sinks[i] = s
	}
	return NewMultiSink(sinks...), nil
}
