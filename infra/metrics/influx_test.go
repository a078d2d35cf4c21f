package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/rakeplan/core/metrics"
)

func captureServer(t *testing.T) (*httptest.Server, func() []string) {
	t.Helper()
	var (
		mu     sync.Mutex
		bodies []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, strings.TrimSpace(string(b)))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), bodies...)
	}
}

func lineOf(p *write.Point) string {
	return strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
}

func TestInfluxSink_RecordPlan(t *testing.T) {
	srv, bodies := captureServer(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()
	now := time.Now()
	rec := coremetrics.PlanRecord{
		PlanID: "p1", Strategy: "greedy", Rakes: 2, Orders: 3, Deferred: 1,
		TotalLoad: 7000, TotalCost: 1234.5678, AvgUtilization: 87.5, SLACompliance: 100,
		Confidence: 89, Score: 0.8123, Risks: 1, Iterations: 2, Duration: 1500 * time.Microsecond, Time: now,
	}
	if err := sink.RecordPlan(rec); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("plan_run").
		AddTag("plan_id", "p1").
		AddTag("strategy", "greedy").
		AddField("rakes", 2).
		AddField("orders", 3).
		AddField("unallocated", 0).
		AddField("unrouted", 0).
		AddField("deferred", 1).
		AddField("total_load", 7000.0).
		AddField("total_cost", 1234.568).
		AddField("avg_utilization", 87.5).
		AddField("sla_compliance", 100.0).
		AddField("confidence", 89.0).
		AddField("score", 0.812).
		AddField("risks", 1).
		AddField("high_risks", 0).
		AddField("iterations", 2).
		AddField("duration_ms", 1.5).
		SetTime(now)
	got := bodies()
	if len(got) != 1 || got[0] != lineOf(p) {
		t.Errorf("unexpected body: %#v", got)
	}
}

func TestInfluxSink_RecordRakes(t *testing.T) {
	srv, bodies := captureServer(t)
	sink := NewInfluxSink(srv.URL+"/api/v2/write", "token", "org", "bucket")
	defer sink.Close()
	now := time.Now()
	if err := sink.RecordRakes(nil); err != nil {
		t.Fatalf("empty record: %v", err)
	}
	rec := coremetrics.RakeRecord{PlanID: "p1", RakeID: "RK1", LoadingPointID: "LP1", RouteID: "R1", Destination: "D1",
		Load: 3500, Cost: 700, Utilization: 87.5, CostPerUnit: 0.2, Time: now}
	if err := sink.RecordRakes([]coremetrics.RakeRecord{rec}); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("planned_rake").
		AddTag("plan_id", "p1").
		AddTag("rake_id", "RK1").
		AddTag("loading_point", "LP1").
		AddTag("route", "R1").
		AddTag("destination", "D1").
		AddField("load", 3500.0).
		AddField("cost", 700.0).
		AddField("utilization", 87.5).
		AddField("cost_per_unit", 0.2).
		SetTime(now)
	got := bodies()
	if len(got) != 1 || got[0] != lineOf(p) {
		t.Errorf("unexpected body: %#v", got)
	}
}

func TestInfluxSink_RecordReleaseAndStage(t *testing.T) {
	srv, bodies := captureServer(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()
	now := time.Now()
	rel := coremetrics.ReleaseRecord{PlanID: "p1", RakeID: "RK1", LoadingPointID: "LP1", CommandID: "c1",
		Acknowledged: true, Latency: time.Second, Time: now}
	if err := sink.RecordRelease(rel); err != nil {
		t.Fatalf("record release: %v", err)
	}
	st := coremetrics.StageRecord{Stage: "pack", Count: 2, Dropped: 1, Duration: 2 * time.Millisecond, Time: now}
	if err := sink.RecordStage(st); err != nil {
		t.Fatalf("record stage: %v", err)
	}
	p1 := write.NewPointWithMeasurement("rake_release").
		AddTag("plan_id", "p1").
		AddTag("rake_id", "RK1").
		AddTag("loading_point", "LP1").
		AddTag("acknowledged", "true").
		AddField("command_id", "c1").
		AddField("latency_ms", 1000.0).
		AddField("errors", "").
		SetTime(now)
	p2 := write.NewPointWithMeasurement("pipeline_stage").
		AddTag("stage", "pack").
		AddField("count", 2).
		AddField("dropped", 1).
		AddField("duration_ms", 2.0).
		SetTime(now)
	got := bodies()
	if len(got) != 2 || got[0] != lineOf(p1) || got[1] != lineOf(p2) {
		t.Errorf("unexpected bodies: %#v", got)
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
