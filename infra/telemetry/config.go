package telemetry

import (
	"fmt"
	"strings"
	"time"
)

// Config holds the settings of the loading point status feed.
type Config struct {
	Enabled bool `json:"enabled"`
	// StatePrefix is the topic prefix; statuses arrive on <prefix>/<loading point>.
	StatePrefix string `json:"state_topic_prefix"`
	// MaxAge discards statuses older than this when planning.
	MaxAge time.Duration `json:"max_age"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.StatePrefix == "" {
		c.StatePrefix = "loading_points/status"
	}
	if c.MaxAge == 0 {
		c.MaxAge = 30 * time.Minute
	}
}

func (c Config) Validate() error {
	if strings.ContainsAny(c.StatePrefix, "+#") {
		return fmt.Errorf("state_topic_prefix must not contain wildcards")
	}
	if c.MaxAge < 0 {
		return fmt.Errorf("max_age must be positive")
	}
	return nil
}

// Topic returns the subscription covering every loading point.
func (c Config) Topic() string {
	return strings.TrimSuffix(c.StatePrefix, "/") + "/+"
}
