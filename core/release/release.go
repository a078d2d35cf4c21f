// Package release publishes the rakes of an approved plan to their loading
// points and tracks the acknowledgments.
package release

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/rakeplan/core/events"
	"github.com/kilianp07/rakeplan/core/logger"
	"github.com/kilianp07/rakeplan/core/metrics"
	"github.com/kilianp07/rakeplan/core/model"
	"github.com/kilianp07/rakeplan/core/mqtt"
	"github.com/kilianp07/rakeplan/internal/eventbus"
)

// Config controls how releases are published.
type Config struct {
	// AckTimeout bounds the wait for each loading point acknowledgment.
	AckTimeout time.Duration `json:"ack_timeout"`
	// Concurrency caps the number of rakes in flight. Zero means unbounded.
	Concurrency int `json:"concurrency"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.AckTimeout <= 0 {
		c.AckTimeout = 5 * time.Second
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Concurrency < 0 {
		return fmt.Errorf("release.concurrency must be >= 0")
	}
	return nil
}

// Outcome is the result of releasing a single rake.
type Outcome struct {
	RakeID         string        `json:"rake_id"`
	LoadingPointID string        `json:"loading_point_id"`
	CommandID      string        `json:"command_id,omitempty"`
	Acknowledged   bool          `json:"acknowledged"`
	Latency        time.Duration `json:"latency"`
	Err            error         `json:"-"`
}

// Report summarises a plan release.
type Report struct {
	PlanID   string    `json:"plan_id"`
	Outcomes []Outcome `json:"outcomes"`
	Executed bool      `json:"executed"`
}

// Acknowledged returns the number of rakes accepted by their loading point.
func (r Report) Acknowledged() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Acknowledged {
			n++
		}
	}
	return n
}

// Failed lists the outcomes that were not acknowledged.
func (r Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.Acknowledged {
			out = append(out, o)
		}
	}
	return out
}

// Releaser sends rake commands through an mqtt.Client.
type Releaser struct {
	client mqtt.Client
	cfg    Config
	log    logger.Logger
	sink   metrics.ReleaseRecorder
	bus    eventbus.EventBus
}

// New creates a Releaser.
func New(client mqtt.Client, cfg Config, log logger.Logger) (*Releaser, error) {
	if client == nil {
		return nil, errors.New("release: nil mqtt client")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Releaser{client: client, cfg: cfg, log: logger.OrDiscard(log)}, nil
}

// SetSink records every outcome on the given recorder.
func (r *Releaser) SetSink(s metrics.ReleaseRecorder) { r.sink = s }

// SetBus publishes a ReleaseEvent per rake on the bus.
func (r *Releaser) SetBus(b eventbus.EventBus) { r.bus = b }

// Release publishes every rake of an approved plan concurrently. The plan is
// marked executed when all rakes are acknowledged. Publish and ack failures
// are reported per rake; the error return is reserved for plans that cannot
// be released at all.
func (r *Releaser) Release(ctx context.Context, plan *model.DispatchPlan) (Report, error) {
	if plan == nil {
		return Report{}, fmt.Errorf("release: nil plan")
	}
	if plan.Status != model.PlanApproved {
		return Report{}, fmt.Errorf("%w: cannot release %s plan %s", model.ErrInvalidTransition, plan.Status, plan.ID)
	}
	if len(plan.Rakes) == 0 {
		return Report{}, fmt.Errorf("release: plan %s has no rakes", plan.ID)
	}
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	rep := Report{PlanID: plan.ID, Outcomes: make([]Outcome, len(plan.Rakes))}
	var sem chan struct{}
	if r.cfg.Concurrency > 0 {
		sem = make(chan struct{}, r.cfg.Concurrency)
	}
	var wg sync.WaitGroup
	for i, rake := range plan.Rakes {
		i, rake := i, rake
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					rep.Outcomes[i] = Outcome{RakeID: rake.ID, LoadingPointID: rake.LoadingPointID, Err: ctx.Err()}
					return
				}
			}
			rep.Outcomes[i] = r.send(ctx, plan.ID, rake)
		}()
	}
	wg.Wait()

	for _, o := range rep.Outcomes {
		r.record(plan.ID, o)
	}
	acked := rep.Acknowledged()
	releaseAckRate.Set(float64(acked) / float64(len(rep.Outcomes)))
	if acked == len(rep.Outcomes) {
		if err := plan.MarkExecuted(); err != nil {
			return rep, err
		}
		rep.Executed = true
		r.log.Infof("plan %s released: %d rakes acknowledged", plan.ID, acked)
	} else {
		r.log.Warnf("plan %s partially released: %d/%d rakes acknowledged", plan.ID, acked, len(rep.Outcomes))
	}
	return rep, nil
}

func (r *Releaser) send(ctx context.Context, planID string, rake model.PlannedRake) Outcome {
	out := Outcome{RakeID: rake.ID, LoadingPointID: rake.LoadingPointID}
	if err := ctx.Err(); err != nil {
		out.Err = err
		return out
	}
	start := time.Now()
	cmdID, err := r.client.SendRake(mqtt.NewRakeCommand(planID, rake))
	if err != nil {
		releasePublishes.WithLabelValues("failure").Inc()
		out.Err = err
		out.Latency = time.Since(start)
		return out
	}
	releasePublishes.WithLabelValues("success").Inc()
	out.CommandID = cmdID
	ack, err := r.client.WaitForAck(cmdID, r.cfg.AckTimeout)
	out.Latency = time.Since(start)
	out.Acknowledged = ack && err == nil
	out.Err = err
	releaseLatency.Observe(out.Latency.Seconds())
	return out
}

func (r *Releaser) record(planID string, o Outcome) {
	if o.Err != nil {
		r.log.Errorf("rake %s at %s not acknowledged: %v", o.RakeID, o.LoadingPointID, o.Err)
	}
	result := "acknowledged"
	switch {
	case errors.Is(o.Err, mqtt.ErrAckTimeout):
		result = "timeout"
	case errors.Is(o.Err, mqtt.ErrRejected):
		result = "rejected"
	case o.Err != nil || !o.Acknowledged:
		result = "failed"
	}
	releasedRakes.WithLabelValues(result).Inc()

	if r.bus != nil {
		r.bus.Publish(events.ReleaseEvent{
			PlanID:         planID,
			RakeID:         o.RakeID,
			LoadingPointID: o.LoadingPointID,
			CommandID:      o.CommandID,
			Acknowledged:   o.Acknowledged,
			Err:            o.Err,
			Latency:        o.Latency,
		})
	}
	if r.sink == nil {
		return
	}
	rec := metrics.ReleaseRecord{
		PlanID:         planID,
		RakeID:         o.RakeID,
		LoadingPointID: o.LoadingPointID,
		CommandID:      o.CommandID,
		Acknowledged:   o.Acknowledged,
		Latency:        o.Latency,
		Time:           time.Now(),
	}
	if o.Err != nil {
		rec.Error = o.Err.Error()
	}
	if err := r.sink.RecordRelease(rec); err != nil {
		r.log.Errorf("release metrics error: %v", err)
	}
}
