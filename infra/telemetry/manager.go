package telemetry

import (
	"context"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/rakeplan/infra/logger"
	infmqtt "github.com/kilianp07/rakeplan/infra/mqtt"
)

type subscriber interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) subscriber {
	return paho.NewClient(opts)
}

// Manager feeds a Tracker from the MQTT status topics.
type Manager struct {
	cfg     Config
	mqttCfg infmqtt.Config
	tracker *Tracker
	log     logger.Logger
}

// NewManager prepares the feed. Start connects to the broker.
func NewManager(mqttCfg infmqtt.Config, cfg Config, tracker *Tracker) *Manager {
	mqttCfg.SetDefaults()
	cfg.SetDefaults()
	return &Manager{cfg: cfg, mqttCfg: mqttCfg, tracker: tracker, log: logger.New("telemetry")}
}

// Start subscribes to the status topics and blocks until ctx is done.
func (m *Manager) Start(ctx context.Context) error {
	opts, err := infmqtt.NewClientOptions(m.mqttCfg)
	if err != nil {
		return err
	}
	opts.SetClientID(m.mqttCfg.ClientID + "-telemetry")
	opts.OnConnect = func(c paho.Client) {
		if token := c.Subscribe(m.cfg.Topic(), m.mqttCfg.QoS["status"], m.onStatus); token.Wait() && token.Error() != nil {
			m.log.Errorf("subscribe %s: %v", m.cfg.Topic(), token.Error())
		}
	}
	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	m.log.Infof("listening for loading point status on %s", m.cfg.Topic())
	<-ctx.Done()
	if cli.IsConnected() {
		cli.Disconnect(250)
	}
	return nil
}

func (m *Manager) onStatus(_ paho.Client, msg paho.Message) {
	st, err := m.tracker.Process(msg.Payload(), msg.Topic(), time.Now())
	if err != nil {
		m.log.Warnf("status on %s: %v", msg.Topic(), err)
		return
	}
	m.log.Debugf("loading point %s status updated", st.LoadingPointID)
}
