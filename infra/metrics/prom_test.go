package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/rakeplan/core/events"
	"github.com/kilianp07/rakeplan/core/factory"
	coremetrics "github.com/kilianp07/rakeplan/core/metrics"
	"github.com/kilianp07/rakeplan/internal/eventbus"
)

func TestPromSinkRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordPlan(coremetrics.PlanRecord{Strategy: "greedy", TotalCost: 900, TotalLoad: 3000, AvgUtilization: 75, Deferred: 2}))
	require.NoError(t, sink.RecordRakes([]coremetrics.RakeRecord{{LoadingPointID: "LP1", RouteID: "R1", Utilization: 75, CostPerUnit: 0.3}}))
	require.NoError(t, sink.RecordRelease(coremetrics.ReleaseRecord{LoadingPointID: "LP1", Acknowledged: true, Latency: 150 * time.Millisecond}))
	require.NoError(t, sink.RecordRelease(coremetrics.ReleaseRecord{LoadingPointID: "LP1"}))
	require.NoError(t, sink.RecordStage(coremetrics.StageRecord{Stage: "pack", Duration: time.Millisecond}))

	assert.Equal(t, 1.0, testutil.ToFloat64(sink.plans.WithLabelValues("greedy")))
	assert.Equal(t, 900.0, testutil.ToFloat64(sink.planCost.WithLabelValues("greedy")))
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.unplaced.WithLabelValues("pack")))
	assert.Equal(t, 0.3, testutil.ToFloat64(sink.rakeCPU.WithLabelValues("LP1", "R1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.releases.WithLabelValues("LP1", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.releases.WithLabelValues("LP1", "false")))
	assert.Equal(t, 1, testutil.CollectAndCount(sink.ackLatency))
	assert.Equal(t, 1, testutil.CollectAndCount(sink.stageTiming))
}

func TestPromSinkReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	s1, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	s2, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	require.NoError(t, s1.RecordPlan(coremetrics.PlanRecord{Strategy: "genetic"}))
	require.NoError(t, s2.RecordPlan(coremetrics.PlanRecord{Strategy: "genetic"}))
	assert.Equal(t, 2.0, testutil.ToFloat64(s1.plans.WithLabelValues("genetic")))
}

func TestHandlerServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	require.NoError(t, sink.RecordPlan(coremetrics.PlanRecord{Strategy: "annealing"}))

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `rakeplan_plans_recorded_total{strategy="annealing"} 1`))
}

func TestEventCollectorRecordsStages(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	bus := eventbus.New()
	ctx, cancel := context.WithCancel(context.Background())
	done := StartEventCollector(ctx, bus, sink)

	bus.Publish(events.StrategyEvent{Strategy: "greedy", Action: "selected"})
	bus.Publish(events.StageEvent{Stage: events.StagePack, Count: 2, Duration: time.Millisecond})
	require.Eventually(t, func() bool {
		return testutil.CollectAndCount(sink.stageTiming) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	closed := StartEventCollector(context.Background(), nil, sink)
	_, open := <-closed
	assert.False(t, open)
}

func TestFactoryRegistersSinks(t *testing.T) {
	s, err := coremetrics.NewPlanSink([]factory.ModuleConfig{{Type: "prometheus"}})
	require.NoError(t, err)
	_, ok := s.(*PromSink)
	assert.True(t, ok)
}
