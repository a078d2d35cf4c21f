// Package config loads the service configuration from YAML or JSON files with
// K_ prefixed environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/rakeplan/core/decision"
	"github.com/kilianp07/rakeplan/core/decisionlog"
	"github.com/kilianp07/rakeplan/core/factory"
	"github.com/kilianp07/rakeplan/core/metrics"
	"github.com/kilianp07/rakeplan/core/packing"
	"github.com/kilianp07/rakeplan/core/planning"
	"github.com/kilianp07/rakeplan/core/release"
	"github.com/kilianp07/rakeplan/infra/logger"
	"github.com/kilianp07/rakeplan/infra/monitoring"
	"github.com/kilianp07/rakeplan/infra/mqtt"
	"github.com/kilianp07/rakeplan/infra/telemetry"
)

type Config struct {
	Planning    planning.Config      `json:"planning"`
	Packing     packing.Config       `json:"packing"`
	Decision    decision.Config      `json:"decision"`
	Prediction  factory.ModuleConfig `json:"prediction"`
	Metrics     metrics.Config       `json:"metrics"`
	DecisionLog decisionlog.Config   `json:"decision_log"`
	MQTT        mqtt.Config          `json:"mqtt"`
	Release     release.Config       `json:"release"`
	Log         logger.Config        `json:"log"`
	Monitoring  monitoring.Config    `json:"monitoring"`
	Telemetry   telemetry.Config     `json:"telemetry"`
	Service     ServiceConfig        `json:"service"`
}

// Settings returns the orchestrator settings held by the configuration.
func (c Config) Settings() decision.Settings {
	return decision.Settings{Planning: c.Planning, Packing: c.Packing, Decision: c.Decision}
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	c.Planning.SetDefaults()
	c.Packing.SetDefaults()
	c.Decision.SetDefaults()
	if c.Prediction.Type == "" {
		c.Prediction.Type = "none"
	}
	c.DecisionLog.SetDefaults()
	c.MQTT.SetDefaults()
	c.Release.SetDefaults()
	c.Log.SetDefaults()
	c.Telemetry.SetDefaults()
	c.Service.SetDefaults()
}

// Validate checks every section and prefixes errors with the section name.
func (c Config) Validate() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"planning", c.Planning.Validate},
		{"packing", c.Packing.Validate},
		{"decision", c.Decision.Validate},
		{"decision_log", c.DecisionLog.Validate},
		{"mqtt", c.MQTT.Validate},
		{"release", c.Release.Validate},
		{"log", c.Log.Validate},
		{"monitoring", c.Monitoring.Validate},
		{"telemetry", c.Telemetry.Validate},
		{"service", c.Service.Validate},
	}
	for _, chk := range checks {
		if err := chk.fn(); err != nil {
			return fmt.Errorf("%s: %w", chk.name, err)
		}
	}
	return nil
}

// Load reads the configuration file, applies environment overrides such as
// K_PACKING__STRATEGY=genetic, then defaults and validation.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() Config {
	var c Config
	c.SetDefaults()
	return c
}
