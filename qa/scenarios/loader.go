package scenarios

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/rakeplan/infra/inputs"
)

// Expected is the outcome a scenario must produce.
type Expected struct {
	Rakes           int      `yaml:"rakes"`
	Unplaced        int      `yaml:"unplaced"`
	MinConfidence   float64  `yaml:"min_confidence"`
	Risks           []string `yaml:"risks,omitempty"`
	Recommendations []string `yaml:"recommendations,omitempty"`
	Acked           int      `yaml:"acked"`
}

// Scenario is a planning input plus the knobs and expectations of a QA run.
type Scenario struct {
	inputs.Scenario `yaml:",inline"`

	MinRakeLoad       float64  `yaml:"min_rake_load,omitempty"`
	FailLoadingPoints []string `yaml:"fail_loading_points,omitempty"`
	Expected          Expected `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}
