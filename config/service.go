package config

import (
	"fmt"
	"time"
)

// ServiceConfig drives the long running planner.
type ServiceConfig struct {
	// Scenario is the input file re-read on every planning cycle.
	Scenario string `json:"scenario"`
	// Interval between planning cycles.
	Interval time.Duration `json:"interval"`
	// AutoRelease approves and releases every non-empty plan.
	AutoRelease bool `json:"auto_release"`
	// HTTPAddr is the listen address of /metrics and the read API. Empty
	// disables the server.
	HTTPAddr string `json:"http_addr"`
	// APIToken is the bearer token required by the /api routes when set.
	APIToken string `json:"api_token"`
}

// SetDefaults applies sane defaults.
func (c *ServiceConfig) SetDefaults() {
	if c.Interval == 0 {
		c.Interval = 15 * time.Minute
	}
}

// Validate checks the interval.
func (c ServiceConfig) Validate() error {
	if c.Interval < time.Second {
		return fmt.Errorf("interval must be at least 1s")
	}
	return nil
}
