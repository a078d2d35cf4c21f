package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/rakeplan/core/packing"
)

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

//nolint:gocyclo
func TestLoad(t *testing.T) {
	path := writeConfig(t, "config.yaml", `planning:
  constraints:
    wagon_count: 40
    wagon_capacity: 60
    max_distance_km: 1500
  cost:
    base_rate: 25
packing:
  strategy: genetic
  weights:
    cost: 0.5
    utilization: 0.2
    delay: 0.2
    sla: 0.1
  search:
    min_rake_load: 600
    time_budget: 500ms
    seed: 7
decision:
  historical_success_rate: 0.9
prediction:
  type: file
  conf:
    path: predictions.yaml
metrics:
  sinks:
    - type: nop
  prometheus_port: ":9100"
decision_log:
  backend: sqlite
  path: decisions.db
mqtt:
  broker: "tcp://localhost:1883"
  client_id: "planner"
  ack_topic: "rakes/ack"
release:
  ack_timeout: 2s
  concurrency: 4
log:
  level: debug
service:
  scenario: scenario.yaml
  interval: 10m
  auto_release: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"wagon_count", cfg.Planning.Constraints.WagonCount, 40},
		{"rake_capacity", cfg.Planning.Constraints.RakeCapacity(), 2400.0},
		{"base_rate", cfg.Planning.Cost.BaseRate, 25.0},
		{"distance_rate default", cfg.Planning.Cost.DistanceRate, 0.05},
		{"strategy", cfg.Packing.Strategy, packing.StrategyGenetic},
		{"weights.cost", cfg.Packing.Weights.Cost, 0.5},
		{"min_rake_load", cfg.Packing.Search.MinRakeLoad, 600.0},
		{"time_budget", cfg.Packing.Search.TimeBudget, 500 * time.Millisecond},
		{"seed", cfg.Packing.Search.Seed, int64(7)},
		{"population default", cfg.Packing.Search.PopulationSize, 30},
		{"historical", cfg.Decision.SuccessRate(), 0.9},
		{"prediction", cfg.Prediction.Type, "file"},
		{"prediction path", cfg.Prediction.Conf["path"], "predictions.yaml"},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
		{"prometheus_port", cfg.Metrics.PrometheusPort, ":9100"},
		{"decision_log", cfg.DecisionLog.Backend, "sqlite"},
		{"decision_log backups", cfg.DecisionLog.MaxBackups, 3},
		{"broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"command_topic default", cfg.MQTT.CommandTopic, "rakes/%s/orders"},
		{"ack_timeout", cfg.Release.AckTimeout, 2 * time.Second},
		{"concurrency", cfg.Release.Concurrency, 4},
		{"log level", cfg.Log.Level, "debug"},
		{"interval", cfg.Service.Interval, 10 * time.Minute},
		{"auto_release", cfg.Service.AutoRelease, true},
	}
	for _, c := range checks {
		assert.Equal(t, c.want, c.got, c.name)
	}
	s := cfg.Settings()
	assert.NoError(t, s.Validate())
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "config.json", `{"packing":{"strategy":"greedy"}}`)
	t.Setenv("K_PACKING__STRATEGY", "annealing")
	t.Setenv("K_SERVICE__SCENARIO", "env.yaml")
	t.Setenv("K_SERVICE__AUTO_RELEASE", "true")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, packing.StrategyAnnealing, cfg.Packing.Strategy)
	assert.Equal(t, "env.yaml", cfg.Service.Scenario)
	assert.True(t, cfg.Service.AutoRelease)
	assert.Equal(t, "none", cfg.Prediction.Type)
	assert.Equal(t, 15*time.Minute, cfg.Service.Interval)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(writeConfig(t, "config.toml", ""))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "bad.yaml", "packing:\n  strategy: tabu\n"))
	assert.ErrorContains(t, err, "packing")

	_, err = Load(writeConfig(t, "bad.yaml", "packing:\n  weights:\n    cost: 0.9\n    sla: 0.9\n"))
	assert.ErrorIs(t, err, packing.ErrMalformedInput)

	_, err = Load(writeConfig(t, "bad.yaml", "log:\n  level: chatty\n"))
	assert.ErrorContains(t, err, "log")

	_, err = Load(writeConfig(t, "bad.yaml", "service:\n  interval: 10ms\n"))
	assert.ErrorContains(t, err, "service")

	_, err = Load(writeConfig(t, "bad.yaml", "monitoring:\n  traces_sample_rate: 1.5\n"))
	assert.ErrorContains(t, err, "monitoring")

	_, err = Load(writeConfig(t, "bad.yaml", "telemetry:\n  state_topic_prefix: lp/#\n"))
	assert.ErrorContains(t, err, "telemetry")
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.MQTT.Enabled())
	assert.False(t, cfg.DecisionLog.Enabled())
	assert.Equal(t, packing.StrategyGreedy, cfg.Packing.Strategy)
	assert.Equal(t, "loading_points/status/+", cfg.Telemetry.Topic())
}
