package decision

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/rakeplan/core/decisionlog"
	"github.com/kilianp07/rakeplan/core/events"
	"github.com/kilianp07/rakeplan/core/logger"
	"github.com/kilianp07/rakeplan/core/metrics"
	"github.com/kilianp07/rakeplan/core/model"
	"github.com/kilianp07/rakeplan/core/packing"
	"github.com/kilianp07/rakeplan/core/planning"
	"github.com/kilianp07/rakeplan/core/prediction"
	"github.com/kilianp07/rakeplan/internal/eventbus"
)

// CodeDeferred marks orders whose rakes were left out by the packing stage.
const CodeDeferred = "RAKE_DEFERRED"

// Rejected is an input entity refused before planning.
type Rejected struct {
	Kind   string `json:"kind"`
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Input is the state a planning run works from. The orchestrator never
// mutates it.
type Input struct {
	Orders        []model.Order
	Stockyards    []model.StockyardInventory
	LoadingPoints []model.LoadingPointStatus
	Routes        []model.Route
	// Now anchors delivery estimates. Zero means the wall clock.
	Now time.Time
	// Strategy and Weights override the configured packing settings when set.
	Strategy packing.Strategy
	Weights  packing.ObjectiveWeights
}

// Result is the structured outcome of a planning run. It is returned even
// when the plan is empty.
type Result struct {
	Plan            model.DispatchPlan        `json:"plan"`
	Explanation     string                    `json:"explanation"`
	Confidence      float64                   `json:"confidence"`
	Risks           []model.Risk              `json:"risks"`
	Recommendations []model.Recommendation    `json:"recommendations"`
	Alternatives    []Alternative             `json:"alternatives"`
	Allocation      planning.AllocationResult `json:"allocation"`
	Routing         planning.RoutingResult    `json:"routing"`
	Candidates      []model.PlannedRake       `json:"candidates"`
	Deferred        []packing.Deferred        `json:"deferred"`
	Rejected        []Rejected                `json:"rejected"`
	Trace           packing.SearchTrace       `json:"trace"`
	Predictions     prediction.MLPredictions  `json:"predictions"`
	Diagnostics     []string                  `json:"diagnostics"`
}

// Unplaced lists every valid order that has no share in the plan, with the
// stage that dropped it.
func (r Result) Unplaced() []model.Unplaced {
	out := make([]model.Unplaced, 0, len(r.Allocation.Unallocated)+len(r.Routing.Unrouted))
	out = append(out, r.Allocation.Unallocated...)
	out = append(out, r.Routing.Unrouted...)
	planned := make(map[string]struct{})
	for _, id := range r.Plan.OrderIDs() {
		planned[id] = struct{}{}
	}
	for _, d := range r.Deferred {
		for _, id := range d.OrderIDs {
			if _, ok := planned[id]; ok {
				continue
			}
			planned[id] = struct{}{}
			out = append(out, model.Unplaced{OrderID: id, Code: CodeDeferred, Reason: d.Reason})
		}
	}
	return out
}

// Orchestrator runs the planning pipeline and assesses its plan.
type Orchestrator struct {
	settings Settings
	provider prediction.Provider
	log      logger.Logger
	sink     metrics.PlanSink
	store    decisionlog.LogStore
	bus      eventbus.EventBus
}

// NewOrchestrator validates the settings and returns an orchestrator. A nil
// provider runs every plan without predictions.
func NewOrchestrator(s Settings, provider prediction.Provider, log logger.Logger) (*Orchestrator, error) {
	s.SetDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &Orchestrator{
		settings: s,
		provider: provider,
		log:      logger.OrDiscard(log),
		sink:     metrics.NopSink{},
	}, nil
}

// Settings returns the effective settings.
func (o *Orchestrator) Settings() Settings { return o.settings }

// SetSink sets the sink receiving plan records.
func (o *Orchestrator) SetSink(s metrics.PlanSink) {
	if s == nil {
		s = metrics.NopSink{}
	}
	o.sink = s
}

// SetLogStore enables the decision log.
func (o *Orchestrator) SetLogStore(s decisionlog.LogStore) { o.store = s }

// SetBus sets the bus receiving pipeline events.
func (o *Orchestrator) SetBus(b eventbus.EventBus) { o.bus = b }

// Plan runs the pipeline with the configured strategy unless the input
// overrides it. It returns an error only for invalid weights or strategy and
// for a cancelled context; the Result is populated in every case.
func (o *Orchestrator) Plan(ctx context.Context, in Input) (Result, error) {
	strategy := o.settings.Packing.Strategy
	if in.Strategy != "" {
		s, err := packing.ParseStrategy(string(in.Strategy))
		if err != nil {
			res := o.aborted(in, strategy, err)
			return res, err
		}
		strategy = s
	}
	start := time.Now()
	res, err := o.run(ctx, in, strategy, o.weights(in))
	if err == nil {
		o.report(ctx, res, time.Since(start))
	}
	return res, err
}

func (o *Orchestrator) weights(in Input) packing.ObjectiveWeights {
	if !in.Weights.IsZero() {
		return in.Weights
	}
	return o.settings.Packing.Weights
}

func (o *Orchestrator) aborted(in Input, strategy packing.Strategy, err error) Result {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	return Result{
		Plan:        model.DispatchPlan{CreatedAt: now, Status: model.PlanDraft, Strategy: string(strategy)},
		Explanation: fmt.Sprintf("Planning aborted: %v.", err),
		Diagnostics: []string{err.Error()},
	}
}

// run executes the pipeline without reporting the result.
func (o *Orchestrator) run(ctx context.Context, in Input, strategy packing.Strategy, w packing.ObjectiveWeights) (Result, error) {
	start := time.Now()
	if err := w.Validate(); err != nil {
		return o.aborted(in, strategy, err), err
	}
	opt, err := packing.New(strategy)
	if err != nil {
		return o.aborted(in, strategy, err), err
	}
	if err := ctx.Err(); err != nil {
		return o.aborted(in, strategy, err), err
	}
	now := in.Now
	if now.IsZero() {
		now = start
	}
	res := Result{Plan: model.DispatchPlan{CreatedAt: now, Status: model.PlanDraft, Strategy: string(strategy)}}

	st := time.Now()
	orders, yards, lps, routes := validateInput(in, &res)
	o.stage(events.StageValidate, len(orders), len(res.Rejected), st)

	st = time.Now()
	req := prediction.Request{Orders: orders, At: now}
	for _, lp := range lps {
		req.LoadingPoints = append(req.LoadingPoints, lp.ID)
	}
	for _, r := range routes {
		req.Routes = append(req.Routes, r.ID)
	}
	res.Predictions = o.predict(ctx, req, &res)
	o.stage(events.StagePredict, len(res.Predictions.DelayRisk), 0, st)

	rc := planning.NewRunContext(now, yards, lps, routes, res.Predictions)

	st = time.Now()
	res.Allocation = planning.NewAllocator(o.settings.Planning, o.log).Allocate(rc, orders)
	o.stage(events.StageAllocate, len(res.Allocation.Allocations), len(res.Allocation.Unallocated), st)

	st = time.Now()
	res.Routing = planning.NewRouter(o.settings.Planning, o.log).Route(rc, res.Allocation.Allocations, orders)
	o.stage(events.StageRoute, len(res.Routing.Decisions), len(res.Routing.Unrouted), st)

	st = time.Now()
	res.Candidates = planning.NewComposer(o.settings.Planning.Constraints).Compose(res.Routing.Decisions)
	o.stage(events.StageCompose, len(res.Candidates), 0, st)

	if err := rc.Verify(); err != nil {
		o.log.Errorf("run state check failed: %v", err)
		res.Diagnostics = append(res.Diagnostics, fmt.Sprintf("run state check failed: %v", err))
	}

	st = time.Now()
	env := packingEnv(now, res.Predictions, o.settings.Planning.Constraints, routes)
	packed, err := opt.Optimize(ctx, res.Candidates, w, o.settings.Packing.Search, env)
	if err != nil {
		o.publish(events.StrategyEvent{Strategy: string(strategy), Action: "failed", Err: err})
		res.Explanation = fmt.Sprintf("Packing with the %s strategy failed: %v.", strategy, err)
		res.Diagnostics = append(res.Diagnostics, err.Error())
		return res, err
	}
	o.stage(events.StagePack, len(packed.Plan.Rakes), len(packed.Deferred), st)
	o.publish(events.StrategyEvent{Strategy: string(strategy), Action: "selected", Score: packed.Score})
	res.Plan = packed.Plan
	res.Trace = packed.Trace
	res.Deferred = packed.Deferred
	res.Diagnostics = append(res.Diagnostics, packed.Diagnostics...)

	st = time.Now()
	a := assessor{cfg: o.settings.Decision, constraints: o.settings.Planning.Constraints, preds: res.Predictions}
	res.Confidence = confidence(res.Predictions.ConfidenceRatio(), packed.ConstraintRatio(), o.settings.Decision.SuccessRate())
	res.Risks = a.risks(res, rc.Stockyards(), len(orders))
	res.Recommendations = a.recommendations(res)
	o.stage(events.StageAssess, len(res.Risks), 0, st)

	if !o.settings.Decision.DisableAlternatives && len(packed.Rakes) > 0 {
		st = time.Now()
		alts, err := o.alternatives(ctx, packed.Rakes, w, env)
		if err != nil {
			res.Explanation = explain(res, len(orders), len(yards))
			return res, err
		}
		res.Alternatives = alts
		o.stage(events.StageAlternate, len(alts), 0, st)
	}

	res.Explanation = explain(res, len(orders), len(yards))
	return res, nil
}

func (o *Orchestrator) predict(ctx context.Context, req prediction.Request, res *Result) prediction.MLPredictions {
	if o.provider == nil {
		res.Diagnostics = append(res.Diagnostics, "no prediction provider configured, planning without forecasts")
		return prediction.MLPredictions{}
	}
	p, err := o.provider.Predict(ctx, req)
	if err != nil {
		o.log.Warnf("prediction provider failed: %v", err)
		res.Diagnostics = append(res.Diagnostics, fmt.Sprintf("prediction provider failed, planning without forecasts: %v", err))
		return prediction.MLPredictions{}
	}
	return p
}

func packingEnv(now time.Time, preds prediction.MLPredictions, c planning.Constraints, routes []model.Route) packing.Env {
	siding := make(map[string]int, len(routes))
	for _, r := range routes {
		if r.SidingCapacity > 0 {
			siding[r.ID] = r.SidingCapacity
		}
	}
	return packing.Env{Now: now, Predictions: preds, Rake: c, SidingCapacity: siding}
}

// validateInput drops malformed and duplicate entities, recording them in
// res.Rejected. Later duplicates are the ones rejected.
func validateInput(in Input, res *Result) ([]model.Order, []model.StockyardInventory, []model.LoadingPointStatus, []model.Route) {
	orders := accept(res, "order", in.Orders, func(o model.Order) string { return o.ID }, model.Order.Validate)
	yards := accept(res, "stockyard", in.Stockyards, func(y model.StockyardInventory) string { return y.ID }, model.StockyardInventory.Validate)
	lps := accept(res, "loading_point", in.LoadingPoints, func(lp model.LoadingPointStatus) string { return lp.ID }, model.LoadingPointStatus.Validate)
	routes := accept(res, "route", in.Routes, func(r model.Route) string { return r.ID }, model.Route.Validate)
	return orders, yards, lps, routes
}

func accept[T any](res *Result, kind string, items []T, id func(T) string, validate func(T) error) []T {
	out := make([]T, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if err := validate(it); err != nil {
			res.Rejected = append(res.Rejected, Rejected{Kind: kind, ID: id(it), Reason: err.Error()})
			continue
		}
		if _, dup := seen[id(it)]; dup {
			err := fmt.Errorf("%w: duplicate %s id %s", model.ErrInvalidInput, kind, id(it))
			res.Rejected = append(res.Rejected, Rejected{Kind: kind, ID: id(it), Reason: err.Error()})
			continue
		}
		seen[id(it)] = struct{}{}
		out = append(out, it)
	}
	return out
}

func (o *Orchestrator) stage(name string, count, dropped int, start time.Time) {
	d := time.Since(start)
	o.log.Debugf("stage %s: %d produced, %d dropped in %s", name, count, dropped, d)
	o.publish(events.StageEvent{Stage: name, Count: count, Dropped: dropped, Duration: d})
}

func (o *Orchestrator) publish(e eventbus.Event) {
	if o.bus != nil {
		o.bus.Publish(e)
	}
}

// report updates the collectors, the sink and the decision log.
func (o *Orchestrator) report(ctx context.Context, res Result, elapsed time.Duration) {
	p := res.Plan
	s := p.Strategy
	unplaced := res.Unplaced()
	deferredOrders := len(unplaced) - len(res.Allocation.Unallocated) - len(res.Routing.Unrouted)
	severe := countSevere(res.Risks)

	planRuns.WithLabelValues(s).Inc()
	planLatency.WithLabelValues(s).Observe(elapsed.Seconds())
	planScore.WithLabelValues(s).Set(p.Score)
	planConfidence.WithLabelValues(s).Set(res.Confidence)
	rakesPlanned.WithLabelValues(s).Add(float64(len(p.Rakes)))
	ordersUnplaced.WithLabelValues(events.StageAllocate).Add(float64(len(res.Allocation.Unallocated)))
	ordersUnplaced.WithLabelValues(events.StageRoute).Add(float64(len(res.Routing.Unrouted)))
	ordersUnplaced.WithLabelValues(events.StagePack).Add(float64(deferredOrders))
	for _, r := range res.Risks {
		risksIdentified.WithLabelValues(r.Category.String(), r.Severity.String()).Inc()
	}

	rec := metrics.PlanRecord{
		PlanID:         p.ID,
		Strategy:       s,
		Rakes:          len(p.Rakes),
		Orders:         len(p.OrderIDs()),
		Unallocated:    len(res.Allocation.Unallocated),
		Unrouted:       len(res.Routing.Unrouted),
		Deferred:       deferredOrders,
		TotalLoad:      p.TotalLoad,
		TotalCost:      p.TotalCost,
		AvgUtilization: p.AvgUtilization,
		SLACompliance:  p.SLACompliance,
		Confidence:     res.Confidence,
		Score:          p.Score,
		Risks:          len(res.Risks),
		HighRisks:      severe,
		Iterations:     res.Trace.Iterations,
		Duration:       elapsed,
		Time:           p.CreatedAt,
	}
	if err := o.sink.RecordPlan(rec); err != nil {
		o.log.Warnf("record plan %s: %v", p.ID, err)
	}
	if rr, ok := o.sink.(metrics.RakeRecorder); ok && len(p.Rakes) > 0 {
		recs := make([]metrics.RakeRecord, len(p.Rakes))
		for i, r := range p.Rakes {
			recs[i] = metrics.RakeRecord{
				PlanID:         p.ID,
				RakeID:         r.ID,
				LoadingPointID: r.LoadingPointID,
				RouteID:        r.RouteID,
				Destination:    r.Destination,
				Load:           r.TotalLoad,
				Cost:           r.TotalCost,
				Utilization:    r.Utilization,
				CostPerUnit:    r.CostPerUnit,
				Time:           p.CreatedAt,
			}
		}
		if err := rr.RecordRakes(recs); err != nil {
			o.log.Warnf("record rakes of plan %s: %v", p.ID, err)
		}
	}
	if o.store != nil {
		err := o.store.Append(context.WithoutCancel(ctx), decisionlog.Record{
			Timestamp:       p.CreatedAt,
			PlanID:          p.ID,
			Strategy:        s,
			Score:           p.Score,
			Confidence:      res.Confidence,
			Orders:          p.OrderIDs(),
			Unplaced:        unplaced,
			Risks:           res.Risks,
			Recommendations: res.Recommendations,
			Explanation:     res.Explanation,
			Plan:            p,
		})
		if err != nil {
			o.log.Warnf("append decision log for plan %s: %v", p.ID, err)
		}
	}
	o.publish(events.PlanEvent{PlanID: p.ID, Strategy: s, Rakes: len(p.Rakes), Score: p.Score, Confidence: res.Confidence, Time: p.CreatedAt})
	o.log.Infof("plan %s (%s): %d rakes, %.0f units, score %.2f, confidence %.1f%%, %d unplaced orders, %d risks",
		p.ID, s, len(p.Rakes), p.TotalLoad, p.Score, res.Confidence, len(unplaced), len(res.Risks))
}
