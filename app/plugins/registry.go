// Package plugins holds the factories used by the service to build its
// pluggable components from configuration.
package plugins

import (
	"fmt"

	"github.com/kilianp07/rakeplan/core/factory"
	coremqtt "github.com/kilianp07/rakeplan/core/mqtt"
	"github.com/kilianp07/rakeplan/core/prediction"
	"github.com/kilianp07/rakeplan/infra/mqtt"
)

// PublisherFactory builds the rake release client.
type PublisherFactory func(cfg mqtt.Config) (coremqtt.Client, error)

// Predictions holds the prediction provider factories. A factory returning a
// nil provider disables predictions.
var Predictions = factory.NewRegistry[prediction.Provider]()

var Publishers = map[string]PublisherFactory{}

func RegisterPrediction(name string, f factory.Factory[prediction.Provider]) {
	Predictions.MustRegister(name, f)
}

func RegisterPublisher(name string, f PublisherFactory) { Publishers[name] = f }

// NewPrediction builds the provider named by cfg.Type.
func NewPrediction(cfg factory.ModuleConfig) (prediction.Provider, error) {
	p, err := Predictions.Create(cfg)
	if err != nil {
		return nil, fmt.Errorf("prediction provider: %w", err)
	}
	return p, nil
}

// NewPublisher builds the MQTT client when a broker is configured and the
// in-memory mock otherwise.
func NewPublisher(cfg mqtt.Config) (coremqtt.Client, error) {
	name := "mock"
	if cfg.Enabled() {
		name = "mqtt"
	}
	f, ok := Publishers[name]
	if !ok {
		return nil, fmt.Errorf("unknown publisher %q", name)
	}
	return f(cfg)
}
