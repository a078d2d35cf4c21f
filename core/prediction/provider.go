package prediction

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/rakeplan/core/model"
)

// Request describes the entities a provider is asked to forecast.
type Request struct {
	Orders        []model.Order
	LoadingPoints []string
	Routes        []string
	At            time.Time
}

// Provider supplies predictions for a planning run.
type Provider interface {
	Predict(ctx context.Context, req Request) (MLPredictions, error)
}

// StaticProvider always returns the configured predictions.
type StaticProvider struct {
	Predictions MLPredictions
}

// Predict returns a copy of the configured predictions.
func (s StaticProvider) Predict(ctx context.Context, req Request) (MLPredictions, error) {
	if err := ctx.Err(); err != nil {
		return MLPredictions{}, err
	}
	p := s.Predictions.Clone()
	if p.GeneratedAt.IsZero() {
		p.GeneratedAt = req.At
	}
	return p, nil
}

// FileProvider reads predictions from a YAML or JSON file on every call so an
// external model can refresh the file between runs.
type FileProvider struct {
	Path string
}

// Predict loads the predictions file.
func (f FileProvider) Predict(ctx context.Context, req Request) (MLPredictions, error) {
	if err := ctx.Err(); err != nil {
		return MLPredictions{}, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return MLPredictions{}, fmt.Errorf("read predictions: %w", err)
	}
	var p MLPredictions
	switch strings.ToLower(filepath.Ext(f.Path)) {
	case ".json":
		err = json.Unmarshal(data, &p)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &p)
	default:
		return MLPredictions{}, fmt.Errorf("unsupported predictions format: %s", filepath.Ext(f.Path))
	}
	if err != nil {
		return MLPredictions{}, fmt.Errorf("decode predictions: %w", err)
	}
	if p.GeneratedAt.IsZero() {
		p.GeneratedAt = req.At
	}
	return p, nil
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, req Request) (MLPredictions, error)

// Predict calls f.
func (f ProviderFunc) Predict(ctx context.Context, req Request) (MLPredictions, error) {
	return f(ctx, req)
}
