// Package simulator emulates loading points answering rake release commands
// over MQTT. It accepts a rake while the loading point has capacity left and
// rejects it otherwise.
package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	coremqtt "github.com/kilianp07/rakeplan/core/mqtt"
	"github.com/kilianp07/rakeplan/infra/logger"
	"github.com/kilianp07/rakeplan/infra/mqtt"
)

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) paho.Client {
	return paho.NewClient(opts)
}

// Simulator answers the commands of every loading point.
type Simulator struct {
	mqttCfg mqtt.Config
	cfg     Config
	strat   AckStrategy
	log     logger.Logger

	mu        sync.Mutex
	remaining map[string]float64
	offline   map[string]bool
	stats     Stats

	pub  publisher
	jobs chan coremqtt.RakeCommand
}

// Stats counts the handled commands.
type Stats struct {
	Accepted int
	Rejected int
	Dropped  int
}

// New builds a simulator. A nil strategy acknowledges after cfg.AckLatency,
// dropping cfg.DropRate of the commands.
func New(mqttCfg mqtt.Config, cfg Config, strat AckStrategy) (*Simulator, error) {
	mqttCfg.SetDefaults()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strat == nil {
		strat = NewRandomAck(cfg.AckLatency, cfg.DropRate, time.Now().UnixNano())
	}
	s := &Simulator{
		mqttCfg:   mqttCfg,
		cfg:       cfg,
		strat:     strat,
		log:       logger.New("simulator"),
		remaining: make(map[string]float64, len(cfg.Capacity)),
		offline:   make(map[string]bool, len(cfg.Offline)),
		jobs:      make(chan coremqtt.RakeCommand, 100),
	}
	for lp, v := range cfg.Capacity {
		s.remaining[lp] = v
	}
	for _, lp := range cfg.Offline {
		s.offline[lp] = true
	}
	return s, nil
}

// Decide reserves capacity for cmd and returns the acknowledgment to send.
func (s *Simulator) Decide(cmd coremqtt.RakeCommand) coremqtt.Ack {
	s.mu.Lock()
	defer s.mu.Unlock()
	ack := coremqtt.Ack{CommandID: cmd.CommandID}
	reject := func(reason string) coremqtt.Ack {
		no := false
		ack.Accepted = &no
		ack.Reason = reason
		s.stats.Rejected++
		return ack
	}
	if s.offline[cmd.LoadingPointID] {
		return reject("loading point offline")
	}
	left, ok := s.remaining[cmd.LoadingPointID]
	if !ok {
		left = s.cfg.DefaultCapacity
	}
	if cmd.Load > left {
		return reject(fmt.Sprintf("load %.1f exceeds remaining capacity %.1f", cmd.Load, left))
	}
	s.remaining[cmd.LoadingPointID] = left - cmd.Load
	yes := true
	ack.Accepted = &yes
	s.stats.Accepted++
	return ack
}

// Stats returns the counters so far.
func (s *Simulator) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Run connects to the broker and answers commands until ctx is done.
func (s *Simulator) Run(ctx context.Context) error {
	opts, err := mqtt.NewClientOptions(s.mqttCfg)
	if err != nil {
		return err
	}
	opts.SetClientID(s.mqttCfg.ClientID + "-simulator")
	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer cli.Disconnect(250)
	s.pub = cli

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(ctx)
		}()
	}
	topic := s.subscription()
	if token := cli.Subscribe(topic, s.mqttCfg.QoS["command"], s.onCommand); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	s.log.Infof("simulating loading points on %s", topic)
	<-ctx.Done()
	wg.Wait()
	st := s.Stats()
	s.log.Infof("simulator stopped: %d accepted, %d rejected, %d dropped", st.Accepted, st.Rejected, st.Dropped)
	return nil
}

// subscription turns the command topic format into a wildcard subscription.
func (s *Simulator) subscription() string {
	return strings.Replace(s.mqttCfg.CommandTopic, "%s", "+", 1)
}

func (s *Simulator) onCommand(_ paho.Client, msg paho.Message) {
	var cmd coremqtt.RakeCommand
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		s.log.Errorf("decode command on %s: %v", msg.Topic(), err)
		return
	}
	select {
	case s.jobs <- cmd:
	default:
		s.log.Warnf("command queue full, dropping %s", cmd.CommandID)
		s.mu.Lock()
		s.stats.Dropped++
		s.mu.Unlock()
	}
}

func (s *Simulator) worker(ctx context.Context) {
	for {
		select {
		case cmd := <-s.jobs:
			s.handle(ctx, cmd)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Simulator) handle(ctx context.Context, cmd coremqtt.RakeCommand) {
	sent := false
	s.strat.Ack(ctx, func() {
		sent = true
		s.publishAck(s.Decide(cmd))
	})
	if !sent {
		s.mu.Lock()
		s.stats.Dropped++
		s.mu.Unlock()
	}
}

func (s *Simulator) publishAck(ack coremqtt.Ack) {
	payload, err := json.Marshal(ack)
	if err != nil {
		s.log.Errorf("marshal ack: %v", err)
		return
	}
	token := s.pub.Publish(s.mqttCfg.AckTopic, s.mqttCfg.QoS["ack"], false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		s.log.Warnf("ack publish timeout for %s", ack.CommandID)
		return
	}
	if err := token.Error(); err != nil {
		s.log.Errorf("publish ack %s: %v", ack.CommandID, err)
	}
}
