package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infmqtt "github.com/kilianp07/rakeplan/infra/mqtt"
)

type token struct{ err error }

func (token) Wait() bool                     { return true }
func (token) WaitTimeout(time.Duration) bool { return true }
func (token) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t token) Error() error { return t.err }

type fakeClient struct {
	connectErr   error
	connected    bool
	disconnected bool
	clientID     string
}

func (f *fakeClient) IsConnected() bool { return f.connected }
func (f *fakeClient) Connect() paho.Token {
	f.connected = f.connectErr == nil
	return token{err: f.connectErr}
}
func (f *fakeClient) Disconnect(uint) { f.disconnected = true }
func (f *fakeClient) Subscribe(string, byte, paho.MessageHandler) paho.Token {
	return token{}
}

type message struct {
	topic   string
	payload []byte
}

func (m message) Duplicate() bool   { return false }
func (m message) Qos() byte         { return 0 }
func (m message) Retained() bool    { return false }
func (m message) Topic() string     { return m.topic }
func (m message) MessageID() uint16 { return 1 }
func (m message) Payload() []byte   { return m.payload }
func (m message) Ack()              {}

func withClient(t *testing.T, fc *fakeClient) {
	t.Helper()
	orig := newMQTTClient
	newMQTTClient = func(opts *paho.ClientOptions) subscriber {
		fc.clientID = opts.ClientID
		return fc
	}
	t.Cleanup(func() { newMQTTClient = orig })
}

func TestManagerStartDisconnectsOnCancel(t *testing.T) {
	fc := &fakeClient{}
	withClient(t, fc)
	m := NewManager(infmqtt.Config{Broker: "tcp://localhost:1883"}, Config{Enabled: true}, NewTracker(0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("manager did not stop")
	}
	assert.True(t, fc.disconnected)
	assert.Equal(t, "rakeplan-telemetry", fc.clientID)
}

func TestManagerStartConnectError(t *testing.T) {
	fc := &fakeClient{connectErr: errors.New("refused")}
	withClient(t, fc)
	m := NewManager(infmqtt.Config{Broker: "tcp://localhost:1883"}, Config{}, NewTracker(0))
	assert.EqualError(t, m.Start(context.Background()), "refused")
}

func TestManagerOnStatus(t *testing.T) {
	tr := NewTracker(0)
	m := NewManager(infmqtt.Config{Broker: "tcp://localhost:1883"}, Config{}, tr)
	m.onStatus(nil, message{topic: "loading_points/status/LP3", payload: []byte(`{"operational":true,"available":10}`)})
	m.onStatus(nil, message{topic: "loading_points/status/LP4", payload: []byte(`nope`)})

	st, ok := tr.Get("LP3")
	require.True(t, ok)
	assert.True(t, *st.Operational)
	_, ok = tr.Get("LP4")
	assert.False(t, ok)
}
