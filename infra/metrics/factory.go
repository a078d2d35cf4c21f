package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/rakeplan/core/factory"
	coremetrics "github.com/kilianp07/rakeplan/core/metrics"
)

// init registers the built-in plan sinks.
func init() {
	_ = coremetrics.RegisterPlanSink("prometheus", func(map[string]any) (coremetrics.PlanSink, error) {
		return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
	})

	_ = coremetrics.RegisterPlanSink("influx", func(conf map[string]any) (coremetrics.PlanSink, error) {
		var c struct {
			URL    string `json:"url"`
			Token  string `json:"token"`
			Org    string `json:"org"`
			Bucket string `json:"bucket"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewInfluxSinkWithFallback(c.URL, c.Token, c.Org, c.Bucket), nil
	})
}
