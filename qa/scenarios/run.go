package scenarios

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kilianp07/rakeplan/core/decision"
	"github.com/kilianp07/rakeplan/core/prediction"
	"github.com/kilianp07/rakeplan/core/release"
	"github.com/kilianp07/rakeplan/infra/logger"
	"github.com/kilianp07/rakeplan/infra/metrics"
	"github.com/kilianp07/rakeplan/infra/mqtt"
	"github.com/kilianp07/rakeplan/internal/eventbus"
)

func RunScenario(t *testing.T, sc *Scenario) {
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}
	bus := eventbus.New()

	settings := decision.DefaultSettings()
	settings.Packing.Search.MinRakeLoad = sc.MinRakeLoad
	var provider prediction.Provider = prediction.StaticProvider{}
	if p := sc.Provider(); p != nil {
		provider = p
	}
	orch, err := decision.NewOrchestrator(settings, provider, logger.NopLogger{})
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}
	orch.SetSink(sink)
	orch.SetBus(bus)

	in, err := sc.ToInput()
	if err != nil {
		t.Fatalf("input: %v", err)
	}
	res, err := orch.Plan(context.Background(), in)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	t.Log(res.Explanation)

	if got := len(res.Plan.Rakes); got != sc.Expected.Rakes {
		t.Errorf("scenario %s expected %d rakes, got %d", sc.Name, sc.Expected.Rakes, got)
	}
	if got := len(res.Unplaced()); got != sc.Expected.Unplaced {
		t.Errorf("scenario %s expected %d unplaced orders, got %d", sc.Name, sc.Expected.Unplaced, got)
	}
	if res.Confidence < sc.Expected.MinConfidence {
		t.Errorf("scenario %s confidence %.1f below %.1f", sc.Name, res.Confidence, sc.Expected.MinConfidence)
	}
	categories := make(map[string]bool)
	for _, r := range res.Risks {
		categories[r.Category.String()] = true
	}
	for _, c := range sc.Expected.Risks {
		if !categories[c] {
			t.Errorf("scenario %s missing %s risk", sc.Name, c)
		}
	}
	rules := make(map[string]bool)
	for _, r := range res.Recommendations {
		rules[r.Rule] = true
	}
	for _, r := range sc.Expected.Recommendations {
		if !rules[r] {
			t.Errorf("scenario %s missing %s recommendation", sc.Name, r)
		}
	}
	if n, err := testutil.GatherAndCount(reg, "rakeplan_plans_recorded_total"); err != nil || n != 1 {
		t.Errorf("scenario %s plan not recorded: %d series, %v", sc.Name, n, err)
	}

	acked := 0
	if len(res.Plan.Rakes) > 0 {
		acked = releasePlan(t, sc, &res, sink, bus)
	}
	if acked != sc.Expected.Acked {
		t.Errorf("scenario %s expected %d acked, got %d", sc.Name, sc.Expected.Acked, acked)
	}
}

func releasePlan(t *testing.T, sc *Scenario, res *decision.Result, sink *metrics.PromSink, bus eventbus.EventBus) int {
	t.Helper()
	pub := mqtt.NewMockPublisher()
	for _, id := range sc.FailLoadingPoints {
		pub.FailLoadingPoints[id] = true
	}
	rel, err := release.New(pub, release.Config{AckTimeout: 10 * time.Millisecond}, logger.NopLogger{})
	if err != nil {
		t.Fatalf("releaser: %v", err)
	}
	rel.SetSink(sink)
	rel.SetBus(bus)

	if err := res.Plan.Approve(); err != nil {
		t.Fatalf("approve: %v", err)
	}
	rep, err := rel.Release(context.Background(), &res.Plan)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if rep.Executed != (rep.Acknowledged() == len(res.Plan.Rakes)) {
		t.Errorf("scenario %s executed=%v with %d/%d acked", sc.Name, rep.Executed, rep.Acknowledged(), len(res.Plan.Rakes))
	}
	return rep.Acknowledged()
}
