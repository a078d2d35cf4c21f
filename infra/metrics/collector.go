package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/rakeplan/core/events"
	coremetrics "github.com/kilianp07/rakeplan/core/metrics"
	"github.com/kilianp07/rakeplan/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records stage timings
// on sinks implementing StageRecorder. It stops when the context is canceled
// and the returned channel is closed once the subscription is released.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.PlanSink) <-chan struct{} {
	done := make(chan struct{})
	sr, ok := sink.(coremetrics.StageRecorder)
	if bus == nil || !ok {
		close(done)
		return done
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if e, ok := ev.(events.StageEvent); ok {
					_ = sr.RecordStage(coremetrics.StageRecord{
						Stage:    e.Stage,
						Count:    e.Count,
						Dropped:  e.Dropped,
						Duration: e.Duration,
						Time:     time.Now(),
					})
				}
			}
		}
	}()
	return done
}
