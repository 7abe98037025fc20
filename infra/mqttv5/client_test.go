package mqttv5

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/mqttwatch/core/supervisor"
	"github.com/kilianp07/mqttwatch/infra/mqtt"
)

type mockClient struct {
	cfg        paho.ClientConfig
	connect    *paho.Connect
	connack    *paho.Connack
	connectErr error
	suback     *paho.Suback
	subErr     error
	subscribed []paho.SubscribeOptions
	disconnect int
}

func (m *mockClient) Connect(_ context.Context, cp *paho.Connect) (*paho.Connack, error) {
	m.connect = cp
	if m.connack == nil && m.connectErr == nil {
		return &paho.Connack{}, nil
	}
	return m.connack, m.connectErr
}

func (m *mockClient) Subscribe(_ context.Context, s *paho.Subscribe) (*paho.Suback, error) {
	m.subscribed = append(m.subscribed, s.Subscriptions...)
	if m.suback == nil && m.subErr == nil {
		return &paho.Suback{Reasons: []byte{1}}, nil
	}
	return m.suback, m.subErr
}

func (m *mockClient) Disconnect(*paho.Disconnect) error { m.disconnect++; return nil }

func (m *mockClient) publish(topic, payload string) {
	m.cfg.OnPublishReceived[0](paho.PublishReceived{Packet: &paho.Publish{Topic: topic, Payload: []byte(payload)}})
}

type recordSink struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordSink) OnMessage(topic string, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, topic+"="+string(payload))
}

func restoreDial(t *testing.T) {
	t.Helper()
	orig := dial
	t.Cleanup(func() { dial = orig })
}

func withMocks(t *testing.T, mc *mockClient) {
	t.Helper()
	restoreDial(t)
	var server net.Conn
	dial = func(context.Context, string, *tls.Config) (net.Conn, error) {
		c, s := net.Pipe()
		server = s
		return c, nil
	}
	newV5Client = func(cfg paho.ClientConfig) v5Client { mc.cfg = cfg; return mc }
	t.Cleanup(func() {
		if server != nil {
			_ = server.Close()
		}
		newV5Client = func(cfg paho.ClientConfig) v5Client { return paho.NewClient(cfg) }
	})
}

func testConfig() mqtt.Config {
	return mqtt.Config{
		Host: "broker.local", Port: 1883, Protocol: mqtt.ProtocolV5,
		Username: "u", Password: "p",
		InboxSize: 4, PollIntervalMS: 5,
		TLS: mqtt.TLSConfig{Mode: mqtt.TLSDisabled},
	}
}

func TestBroker_ConnectSubscribeLoop(t *testing.T) {
	mc := &mockClient{}
	withMocks(t, mc)
	sink := &recordSink{}
	b, err := NewBroker(testConfig(), sink)
	require.NoError(t, err)

	require.ErrorIs(t, b.Subscribe(context.Background(), "#", 1), mqtt.ErrNotConnected)
	require.NoError(t, b.Connect(context.Background()))
	assert.True(t, b.IsConnected())

	require.NotNil(t, mc.cfg.Conn)
	assert.True(t, mc.connect.CleanStart)
	assert.Equal(t, "", mc.connect.ClientID)
	assert.Equal(t, "u", mc.connect.Username)
	assert.True(t, mc.connect.UsernameFlag)
	assert.Equal(t, []byte("p"), mc.connect.Password)
	assert.True(t, mc.connect.PasswordFlag)
	assert.Equal(t, uint16(15), mc.connect.KeepAlive)

	require.NoError(t, b.Subscribe(context.Background(), "#", 1))
	require.Len(t, mc.subscribed, 1)
	assert.Equal(t, paho.SubscribeOptions{Topic: "#", QoS: 1}, mc.subscribed[0])

	mc.publish("t/1", "hello")
	assert.Empty(t, sink.lines)
	assert.Equal(t, 1, b.Loop(context.Background()))
	assert.Equal(t, []string{"t/1=hello"}, sink.lines)

	b.Disconnect()
	assert.Equal(t, 1, mc.disconnect)
	assert.False(t, b.IsConnected())
	assert.Zero(t, b.Loop(context.Background()))
}

func TestBroker_ConnackRefusal(t *testing.T) {
	mc := &mockClient{connack: &paho.Connack{ReasonCode: 0x86}, connectErr: errors.New("bad user name or password")}
	withMocks(t, mc)
	b, err := NewBroker(testConfig(), &recordSink{})
	require.NoError(t, err)

	err = b.Connect(context.Background())
	assert.Equal(t, 0x86, supervisor.CodeOf(err))
	assert.False(t, b.IsConnected())
}

func TestBroker_DialFailure(t *testing.T) {
	restoreDial(t)
	dial = func(context.Context, string, *tls.Config) (net.Conn, error) {
		return nil, errors.New("connection refused")
	}
	b, err := NewBroker(testConfig(), &recordSink{})
	require.NoError(t, err)
	err = b.Connect(context.Background())
	assert.Equal(t, supervisor.CodeConnectFailed, supervisor.CodeOf(err))

	dial = func(context.Context, string, *tls.Config) (net.Conn, error) {
		return nil, context.DeadlineExceeded
	}
	err = b.Connect(context.Background())
	assert.Equal(t, supervisor.CodeConnectionTimeout, supervisor.CodeOf(err))
}

func TestBroker_SubscribeRefused(t *testing.T) {
	mc := &mockClient{suback: &paho.Suback{Reasons: []byte{0x87}}}
	withMocks(t, mc)
	b, err := NewBroker(testConfig(), &recordSink{})
	require.NoError(t, err)
	require.NoError(t, b.Connect(context.Background()))
	assert.ErrorIs(t, b.Subscribe(context.Background(), "#", 1), mqtt.ErrSubscribeFailed)
}

func TestBroker_LostOnClientError(t *testing.T) {
	mc := &mockClient{}
	withMocks(t, mc)
	b, err := NewBroker(testConfig(), &recordSink{})
	require.NoError(t, err)
	require.NoError(t, b.Connect(context.Background()))

	mc.cfg.OnClientError(errors.New("EOF"))
	assert.False(t, b.IsConnected())
	start := time.Now()
	assert.Zero(t, b.Loop(context.Background()))
	assert.Less(t, time.Since(start), time.Second)

	b.Disconnect()
	assert.Zero(t, mc.disconnect, "no DISCONNECT on a dead connection")
}

func TestBroker_LostOnServerDisconnect(t *testing.T) {
	mc := &mockClient{}
	withMocks(t, mc)
	b, err := NewBroker(testConfig(), &recordSink{})
	require.NoError(t, err)
	require.NoError(t, b.Connect(context.Background()))

	mc.cfg.OnServerDisconnect(&paho.Disconnect{ReasonCode: 0x8B})
	assert.False(t, b.IsConnected())
}
