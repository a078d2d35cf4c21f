package decision

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/rakeplan/core/events"
	"github.com/kilianp07/rakeplan/core/packing"
)

// Comparison holds one result per packing strategy.
type Comparison struct {
	Results []Result `json:"results"`
	// Best indexes the highest scoring result, -1 when the comparison failed.
	Best int `json:"best"`
}

// BestResult returns the highest scoring result.
func (c Comparison) BestResult() (Result, bool) {
	if c.Best < 0 || c.Best >= len(c.Results) {
		return Result{}, false
	}
	return c.Results[c.Best], true
}

// Compare runs every packing strategy concurrently on the same input. Each
// run owns its RunContext so reservations never leak between strategies.
// Only the winning result is reported to the sink, log store and bus.
func (o *Orchestrator) Compare(ctx context.Context, in Input) (Comparison, error) {
	start := time.Now()
	strategies := packing.Strategies()
	w := o.weights(in)
	results := make([]Result, len(strategies))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range strategies {
		i, s := i, s
		g.Go(func() error {
			res, err := o.run(gctx, in, s, w)
			results[i] = res
			if err != nil {
				return fmt.Errorf("%s: %w", s, err)
			}
			o.publish(events.StrategyEvent{Strategy: string(s), Action: "compared", Score: res.Plan.Score})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Comparison{Results: results, Best: -1}, err
	}
	best := 0
	for i := range results {
		if results[i].Plan.Score > results[best].Plan.Score {
			best = i
		}
	}
	o.report(ctx, results[best], time.Since(start))
	o.log.Infof("strategy comparison: %s wins with score %.2f", results[best].Plan.Strategy, results[best].Plan.Score)
	return Comparison{Results: results, Best: best}, nil
}
