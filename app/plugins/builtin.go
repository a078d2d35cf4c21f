package plugins

import (
	"fmt"

	"github.com/kilianp07/rakeplan/auth"
	connfactory "github.com/kilianp07/rakeplan/connectors/factory"
	"github.com/kilianp07/rakeplan/core/factory"
	coremqtt "github.com/kilianp07/rakeplan/core/mqtt"
	"github.com/kilianp07/rakeplan/core/prediction"
	"github.com/kilianp07/rakeplan/infra/mqtt"
)

func init() {
	RegisterPrediction("none", func(map[string]any) (prediction.Provider, error) {
		return nil, nil
	})
	RegisterPrediction("static", func(conf map[string]any) (prediction.Provider, error) {
		var p prediction.MLPredictions
		if err := factory.Decode(conf, &p); err != nil {
			return nil, err
		}
		return prediction.StaticProvider{Predictions: p}, nil
	})
	RegisterPrediction("file", func(conf map[string]any) (prediction.Provider, error) {
		var c struct {
			Path string `json:"path"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			return nil, fmt.Errorf("prediction file provider requires a path")
		}
		return prediction.FileProvider{Path: c.Path}, nil
	})
	RegisterPrediction("http", func(conf map[string]any) (prediction.Provider, error) {
		var c struct {
			Connector string    `json:"connector"`
			URL       string    `json:"url"`
			Auth      auth.Conf `json:"auth"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.URL == "" {
			return nil, fmt.Errorf("prediction http provider requires a url")
		}
		return connfactory.NewProvider(c.Connector, c.URL, c.Auth)
	})

	RegisterPublisher("mqtt", func(cfg mqtt.Config) (coremqtt.Client, error) {
		return mqtt.NewPahoClient(cfg)
	})
	RegisterPublisher("mock", func(mqtt.Config) (coremqtt.Client, error) {
		return mqtt.NewMockPublisher(), nil
	})
}
