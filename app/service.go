// Package app wires the configuration into a running planning service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/kilianp07/rakeplan/api/decisions"
	"github.com/kilianp07/rakeplan/api/plans"
	"github.com/kilianp07/rakeplan/app/plugins"
	"github.com/kilianp07/rakeplan/config"
	"github.com/kilianp07/rakeplan/core/decision"
	"github.com/kilianp07/rakeplan/core/decisionlog"
	coremetrics "github.com/kilianp07/rakeplan/core/metrics"
	coremon "github.com/kilianp07/rakeplan/core/monitoring"
	coremqtt "github.com/kilianp07/rakeplan/core/mqtt"
	"github.com/kilianp07/rakeplan/core/prediction"
	"github.com/kilianp07/rakeplan/core/release"
	"github.com/kilianp07/rakeplan/infra/inputs"
	"github.com/kilianp07/rakeplan/infra/logger"
	"github.com/kilianp07/rakeplan/infra/metrics"
	"github.com/kilianp07/rakeplan/infra/monitoring"
	"github.com/kilianp07/rakeplan/infra/telemetry"
	"github.com/kilianp07/rakeplan/internal/eventbus"
)

// Service plans rakes from the configured scenario on a fixed interval and
// optionally releases the resulting plans.
type Service struct {
	cfg      *config.Config
	orch     *decision.Orchestrator
	releaser *release.Releaser
	client   coremqtt.Client
	sink     coremetrics.PlanSink
	store    decisionlog.LogStore
	bus      *eventbus.Bus
	tracker  *telemetry.Tracker
	feed     *telemetry.Manager
	log      logger.Logger

	mu         sync.Mutex
	configured prediction.Provider
	scenario   *inputs.Scenario
	latest     *decision.Result
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	if err := logger.Setup(cfg.Log); err != nil {
		return nil, err
	}
	mon, err := monitoring.NewSentryMonitor(cfg.Monitoring)
	if err != nil {
		return nil, err
	}
	coremon.Init(mon)
	svc := &Service{cfg: cfg, log: logger.New("service"), bus: eventbus.New()}

	provider, err := plugins.NewPrediction(cfg.Prediction)
	if err != nil {
		return nil, fmt.Errorf("prediction provider: %w", err)
	}
	svc.configured = provider
	orch, err := decision.NewOrchestrator(cfg.Settings(), prediction.ProviderFunc(svc.predict), logger.New("orchestrator"))
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	svc.orch = orch

	sink, err := coremetrics.NewPlanSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	svc.sink = sink
	orch.SetSink(sink)
	orch.SetBus(svc.bus)

	if cfg.DecisionLog.Enabled() {
		store, err := decisionlog.Open(cfg.DecisionLog)
		if err != nil {
			return nil, fmt.Errorf("decision log: %w", err)
		}
		svc.store = store
		orch.SetLogStore(store)
	}

	client, err := plugins.NewPublisher(cfg.MQTT)
	if err != nil {
		svc.closeStore()
		return nil, fmt.Errorf("mqtt client: %w", err)
	}
	svc.client = client
	rel, err := release.New(client, cfg.Release, logger.New("release"))
	if err != nil {
		svc.closeStore()
		return nil, fmt.Errorf("releaser: %w", err)
	}
	if rr, ok := sink.(coremetrics.ReleaseRecorder); ok {
		rel.SetSink(rr)
	}
	rel.SetBus(svc.bus)
	svc.releaser = rel

	if cfg.Telemetry.Enabled && cfg.MQTT.Enabled() {
		svc.tracker = telemetry.NewTracker(cfg.Telemetry.MaxAge)
		svc.feed = telemetry.NewManager(cfg.MQTT, cfg.Telemetry, svc.tracker)
	}
	return svc, nil
}

// Orchestrator returns the decision orchestrator.
func (s *Service) Orchestrator() *decision.Orchestrator { return s.orch }

// Releaser returns the plan releaser.
func (s *Service) Releaser() *release.Releaser { return s.releaser }

// Store returns the decision log, nil when disabled.
func (s *Service) Store() decisionlog.LogStore { return s.store }

// Bus returns the service event bus.
func (s *Service) Bus() *eventbus.Bus { return s.bus }

// predict serves the configured provider, falling back to the predictions
// embedded in the current scenario.
func (s *Service) predict(ctx context.Context, req prediction.Request) (prediction.MLPredictions, error) {
	s.mu.Lock()
	p, sc := s.configured, s.scenario
	s.mu.Unlock()
	if p == nil && sc != nil {
		p = sc.Provider()
	}
	if p == nil {
		return prediction.MLPredictions{}, nil
	}
	return p.Predict(ctx, req)
}

// input converts the scenario and applies the live loading point statuses.
func (s *Service) input(sc *inputs.Scenario) (decision.Input, error) {
	in, err := sc.ToInput()
	if err != nil {
		return decision.Input{}, err
	}
	if s.tracker != nil {
		in.LoadingPoints = s.tracker.Apply(in.LoadingPoints, time.Now())
	}
	return in, nil
}

// Plan runs the orchestrator on a loaded scenario.
func (s *Service) Plan(ctx context.Context, sc *inputs.Scenario) (decision.Result, error) {
	in, err := s.input(sc)
	if err != nil {
		return decision.Result{}, err
	}
	s.mu.Lock()
	s.scenario = sc
	s.mu.Unlock()
	res, err := s.orch.Plan(ctx, in)
	if err == nil {
		s.mu.Lock()
		s.latest = &res
		s.mu.Unlock()
	}
	return res, err
}

// Latest returns the result of the last successful planning run.
func (s *Service) Latest() (decision.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return decision.Result{}, false
	}
	return *s.latest, true
}

// Handler returns the HTTP routes of the service: /metrics, the latest plan
// and, when the decision log is enabled, its query endpoint.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(nil))
	mux.Handle("/api/plans/latest", plans.NewLatestHandler(s.Latest, s.cfg.Service.APIToken))
	if s.store != nil {
		mux.Handle("/api/decisions", decisions.NewLogHandler(s.store, s.cfg.Service.APIToken))
	}
	return mux
}

// Compare runs every packing strategy on a loaded scenario.
func (s *Service) Compare(ctx context.Context, sc *inputs.Scenario) (decision.Comparison, error) {
	in, err := s.input(sc)
	if err != nil {
		return decision.Comparison{}, err
	}
	s.mu.Lock()
	s.scenario = sc
	s.mu.Unlock()
	return s.orch.Compare(ctx, in)
}

// Release approves the plan and publishes its rakes.
func (s *Service) Release(ctx context.Context, res *decision.Result) (release.Report, error) {
	if err := res.Plan.Approve(); err != nil {
		return release.Report{}, err
	}
	rep, err := s.releaser.Release(ctx, &res.Plan)
	for _, o := range rep.Failed() {
		coremon.CaptureException(o.Err, map[string]string{
			"plan_id": rep.PlanID, "rake_id": o.RakeID, "loading_point": o.LoadingPointID,
		})
	}
	return rep, err
}

// Cycle loads the configured scenario, plans it and releases the plan when
// auto release is enabled.
func (s *Service) Cycle(ctx context.Context) (decision.Result, error) {
	if s.cfg.Service.Scenario == "" {
		return decision.Result{}, errors.New("service.scenario is not configured")
	}
	sc, err := inputs.Load(s.cfg.Service.Scenario)
	if err != nil {
		return decision.Result{}, err
	}
	res, err := s.Plan(ctx, sc)
	if err != nil {
		return res, err
	}
	if s.cfg.Service.AutoRelease && len(res.Plan.Rakes) > 0 {
		rep, err := s.Release(ctx, &res)
		if err != nil {
			return res, fmt.Errorf("release: %w", err)
		}
		s.log.Infof("plan %s: %d/%d rakes acknowledged", rep.PlanID, rep.Acknowledged(), len(rep.Outcomes))
	}
	return res, nil
}

// Run replans on every interval until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if addr := s.cfg.Service.HTTPAddr; addr != "" {
		go func() {
			defer coremon.Recover()
			if err := metrics.Serve(ctx, addr, s.Handler()); err != nil {
				s.log.Errorf("http server: %v", err)
			}
		}()
	}
	if port := s.cfg.Metrics.PrometheusPort; port != "" && port != s.cfg.Service.HTTPAddr {
		go func() {
			defer coremon.Recover()
			if err := metrics.StartPromServer(ctx, port, nil); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.feed != nil {
		go func() {
			defer coremon.Recover()
			if err := s.feed.Start(ctx); err != nil {
				s.log.Errorf("loading point status feed: %v", err)
				coremon.CaptureException(err, map[string]string{"stage": "telemetry"})
			}
		}()
	}
	collector := metrics.StartEventCollector(ctx, s.bus, s.sink)

	ticker := time.NewTicker(s.cfg.Service.Interval)
	defer ticker.Stop()
	for {
		if _, err := s.Cycle(ctx); err != nil && ctx.Err() == nil {
			s.log.Errorf("planning cycle failed: %v", err)
			coremon.CaptureException(err, map[string]string{"stage": "cycle", "scenario": s.cfg.Service.Scenario})
		}
		select {
		case <-ctx.Done():
			<-collector
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Service) closeStore() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if d, ok := s.client.(interface{ Disconnect() }); ok {
		d.Disconnect()
	}
	s.bus.Close()
	coremon.Flush(2 * time.Second)
	return s.closeStore()
}
