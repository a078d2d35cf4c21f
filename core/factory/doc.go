// Package factory builds pluggable components (packing strategies, plan
// sinks, prediction providers) from a type name and a raw settings map.
//
//	reg := factory.NewRegistry[metrics.PlanSink]()
//	reg.MustRegister("nop", func(map[string]any) (metrics.PlanSink, error) {
//	    return metrics.NopSink{}, nil
//	})
//	sink, err := reg.Create(factory.ModuleConfig{Type: "nop"})
package factory
