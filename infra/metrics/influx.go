package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/rakeplan/core/metrics"
	"github.com/kilianp07/rakeplan/infra/logger"
)

// InfluxSink writes planning records to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a NopSink
// if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.PlanSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

// RecordPlan writes one plan_run point.
func (s *InfluxSink) RecordPlan(r coremetrics.PlanRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("plan_run").
		AddTag("plan_id", r.PlanID).
		AddTag("strategy", r.Strategy).
		AddField("rakes", r.Rakes).
		AddField("orders", r.Orders).
		AddField("unallocated", r.Unallocated).
		AddField("unrouted", r.Unrouted).
		AddField("deferred", r.Deferred).
		AddField("total_load", round3(r.TotalLoad)).
		AddField("total_cost", round3(r.TotalCost)).
		AddField("avg_utilization", round3(r.AvgUtilization)).
		AddField("sla_compliance", round3(r.SLACompliance)).
		AddField("confidence", round3(r.Confidence)).
		AddField("score", round3(r.Score)).
		AddField("risks", r.Risks).
		AddField("high_risks", r.HighRisks).
		AddField("iterations", r.Iterations).
		AddField("duration_ms", round3(r.Duration.Seconds()*1000)).
		SetTime(r.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordRakes writes one planned_rake point per rake.
func (s *InfluxSink) RecordRakes(recs []coremetrics.RakeRecord) error {
	if len(recs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := make([]*write.Point, 0, len(recs))
	for _, r := range recs {
		points = append(points, write.NewPointWithMeasurement("planned_rake").
			AddTag("plan_id", r.PlanID).
			AddTag("rake_id", r.RakeID).
			AddTag("loading_point", r.LoadingPointID).
			AddTag("route", r.RouteID).
			AddTag("destination", r.Destination).
			AddField("load", round3(r.Load)).
			AddField("cost", round3(r.Cost)).
			AddField("utilization", round3(r.Utilization)).
			AddField("cost_per_unit", round3(r.CostPerUnit)).
			SetTime(r.Time))
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordRelease writes a rake_release point.
func (s *InfluxSink) RecordRelease(r coremetrics.ReleaseRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("rake_release").
		AddTag("plan_id", r.PlanID).
		AddTag("rake_id", r.RakeID).
		AddTag("loading_point", r.LoadingPointID).
		AddTag("acknowledged", strconv.FormatBool(r.Acknowledged)).
		AddField("command_id", r.CommandID).
		AddField("latency_ms", round3(r.Latency.Seconds()*1000)).
		AddField("errors", r.Error).
		SetTime(r.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordStage writes a pipeline_stage point.
func (s *InfluxSink) RecordStage(r coremetrics.StageRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("pipeline_stage").
		AddTag("stage", r.Stage).
		AddField("count", r.Count).
		AddField("dropped", r.Dropped).
		AddField("duration_ms", round3(r.Duration.Seconds()*1000)).
		SetTime(r.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
