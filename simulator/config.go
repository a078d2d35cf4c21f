package simulator

import (
	"fmt"
	"time"
)

// Config holds the loading point simulator parameters.
type Config struct {
	// AckLatency delays every acknowledgment.
	AckLatency time.Duration `json:"ack_latency"`
	// DropRate is the probability of never acknowledging a command.
	DropRate float64 `json:"drop_rate"`
	// Capacity is the load each loading point can still accept. Loading
	// points missing from the map use DefaultCapacity.
	Capacity        map[string]float64 `json:"capacity"`
	DefaultCapacity float64            `json:"default_capacity"`
	// Offline loading points reject every rake.
	Offline []string `json:"offline"`
	Workers int      `json:"workers"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.DefaultCapacity == 0 {
		c.DefaultCapacity = 1e9
	}
	if c.Workers == 0 {
		c.Workers = 5
	}
}

func (c Config) Validate() error {
	if c.DropRate < 0 || c.DropRate > 1 {
		return fmt.Errorf("drop rate must be within [0,1]")
	}
	if c.AckLatency < 0 {
		return fmt.Errorf("ack latency must be positive")
	}
	for lp, v := range c.Capacity {
		if v < 0 {
			return fmt.Errorf("capacity of %s must be positive", lp)
		}
	}
	return nil
}
