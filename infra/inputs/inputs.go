// Package inputs loads planning scenarios from YAML or JSON files into the
// domain model.
package inputs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/rakeplan/core/decision"
	"github.com/kilianp07/rakeplan/core/model"
	"github.com/kilianp07/rakeplan/core/packing"
	"github.com/kilianp07/rakeplan/core/prediction"
)

// RouteDef is the file representation of a route. Transit time is given in
// hours so JSON and YAML files share the same shape.
type RouteDef struct {
	ID             string   `json:"id" yaml:"id"`
	Origin         string   `json:"origin" yaml:"origin"`
	Destination    string   `json:"destination" yaml:"destination"`
	DistanceKm     float64  `json:"distance_km" yaml:"distance_km"`
	TransitHours   float64  `json:"transit_hours" yaml:"transit_hours"`
	CostPerUnit    float64  `json:"cost_per_unit" yaml:"cost_per_unit"`
	Congestion     float64  `json:"congestion" yaml:"congestion"`
	SidingCapacity int      `json:"siding_capacity" yaml:"siding_capacity"`
	Restrictions   []string `json:"restrictions" yaml:"restrictions"`
}

// ToModel converts the definition into a model.Route.
func (r RouteDef) ToModel() model.Route {
	return model.Route{
		ID:             r.ID,
		Origin:         r.Origin,
		Destination:    r.Destination,
		DistanceKm:     r.DistanceKm,
		TransitTime:    time.Duration(r.TransitHours * float64(time.Hour)),
		CostPerUnit:    r.CostPerUnit,
		Congestion:     r.Congestion,
		SidingCapacity: r.SidingCapacity,
		Restrictions:   append([]string(nil), r.Restrictions...),
	}
}

// Scenario is the content of a scenario file.
type Scenario struct {
	Name          string                     `json:"name" yaml:"name"`
	Description   string                     `json:"description,omitempty" yaml:"description,omitempty"`
	Now           time.Time                  `json:"now" yaml:"now"`
	Strategy      string                     `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Weights       *packing.ObjectiveWeights  `json:"weights,omitempty" yaml:"weights,omitempty"`
	Orders        []model.Order              `json:"orders" yaml:"orders"`
	Stockyards    []model.StockyardInventory `json:"stockyards" yaml:"stockyards"`
	LoadingPoints []model.LoadingPointStatus `json:"loading_points" yaml:"loading_points"`
	Routes        []RouteDef                 `json:"routes" yaml:"routes"`
	Predictions   *prediction.MLPredictions  `json:"predictions,omitempty" yaml:"predictions,omitempty"`
}

// Load reads a scenario file. The format is chosen from the extension.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(data, filepath.Ext(path))
}

// Parse decodes a scenario from data in the format named by ext
// (".json", ".yaml" or ".yml").
func Parse(data []byte, ext string) (*Scenario, error) {
	var sc Scenario
	var err error
	switch strings.ToLower(ext) {
	case ".json":
		err = json.Unmarshal(data, &sc)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &sc)
	default:
		return nil, fmt.Errorf("unsupported scenario format: %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	return &sc, nil
}

// ToInput builds the orchestrator input. Malformed entities are left for the
// orchestrator to reject so they show up in the result.
func (s *Scenario) ToInput() (decision.Input, error) {
	in := decision.Input{
		Orders:        append([]model.Order(nil), s.Orders...),
		Stockyards:    append([]model.StockyardInventory(nil), s.Stockyards...),
		LoadingPoints: append([]model.LoadingPointStatus(nil), s.LoadingPoints...),
		Now:           s.Now,
	}
	for _, r := range s.Routes {
		in.Routes = append(in.Routes, r.ToModel())
	}
	if s.Strategy != "" {
		st, err := packing.ParseStrategy(s.Strategy)
		if err != nil {
			return decision.Input{}, err
		}
		in.Strategy = st
	}
	if s.Weights != nil {
		in.Weights = *s.Weights
	}
	return in, nil
}

// Provider returns a prediction provider serving the scenario predictions,
// or nil when the scenario carries none.
func (s *Scenario) Provider() prediction.Provider {
	if s.Predictions == nil {
		return nil
	}
	return prediction.StaticProvider{Predictions: *s.Predictions}
}
