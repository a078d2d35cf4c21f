// Package decisionlog persists the decisions taken by planning runs so they
// can be audited and queried later.
package decisionlog

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/rakeplan/core/model"
)

// Record captures one planning decision and its assessment.
type Record struct {
	Timestamp       time.Time              `json:"timestamp"`
	PlanID          string                 `json:"plan_id"`
	Strategy        string                 `json:"strategy"`
	Score           float64                `json:"score"`
	Confidence      float64                `json:"confidence"`
	Orders          []string               `json:"orders"`
	Unplaced        []model.Unplaced       `json:"unplaced,omitempty"`
	Risks           []model.Risk           `json:"risks,omitempty"`
	Recommendations []model.Recommendation `json:"recommendations,omitempty"`
	Explanation     string                 `json:"explanation"`
	Plan            model.DispatchPlan     `json:"plan"`
}

// Query defines filters for retrieving records. Zero values match everything.
type Query struct {
	Start    time.Time
	End      time.Time
	PlanID   string
	Strategy string
	OrderID  string
	// Limit keeps only the most recent records when positive.
	Limit int
}

// LogStore persists Records and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// Backends accepted by Config.
const (
	BackendJSONL    = "jsonl"
	BackendRotating = "rotating"
	BackendSQLite   = "sqlite"
)

// Config selects and configures the store backend.
type Config struct {
	Backend    string `json:"backend"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// SetDefaults applies default rotation values.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = BackendJSONL
	}
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 10
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = 3
	}
	if c.MaxAgeDays == 0 {
		c.MaxAgeDays = 30
	}
}

// Validate checks the backend name. An empty path disables the log.
func (c Config) Validate() error {
	switch c.Backend {
	case "", BackendJSONL, BackendRotating, BackendSQLite:
	default:
		return fmt.Errorf("decision_log.backend %q unsupported", c.Backend)
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("decision_log rotation values must be positive")
	}
	return nil
}

// Enabled reports whether a store should be opened.
func (c Config) Enabled() bool { return c.Path != "" }

// Open creates the store described by cfg.
func Open(cfg Config) (LogStore, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendRotating:
		return NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	case BackendSQLite:
		return NewSQLiteStore(cfg.Path)
	default:
		return NewJSONLStore(cfg.Path)
	}
}

func (q Query) matches(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.PlanID != "" && r.PlanID != q.PlanID {
		return false
	}
	if q.Strategy != "" && r.Strategy != q.Strategy {
		return false
	}
	if q.OrderID != "" {
		for _, id := range r.Orders {
			if id == q.OrderID {
				return true
			}
		}
		return false
	}
	return true
}

func (q Query) limit(recs []Record) []Record {
	if q.Limit > 0 && len(recs) > q.Limit {
		return recs[len(recs)-q.Limit:]
	}
	return recs
}
