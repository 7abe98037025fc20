package mqttv5

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/eclipse/paho.golang/paho"

	"github.com/kilianp07/mqttwatch/core/supervisor"
	"github.com/kilianp07/mqttwatch/infra/logger"
	"github.com/kilianp07/mqttwatch/infra/mqtt"
)

// reasonFailure is the first MQTT 5 failure reason code.
const reasonFailure = 0x80

type v5Client interface {
	Connect(ctx context.Context, cp *paho.Connect) (*paho.Connack, error)
	Subscribe(ctx context.Context, s *paho.Subscribe) (*paho.Suback, error)
	Disconnect(d *paho.Disconnect) error
}

var newV5Client = func(cfg paho.ClientConfig) v5Client {
	return paho.NewClient(cfg)
}

var dial = func(ctx context.Context, addr string, tlsCfg *tls.Config) (net.Conn, error) {
	if tlsCfg == nil {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", addr)
	}
	d := tls.Dialer{Config: tlsCfg}
	return d.DialContext(ctx, "tcp", addr)
}

// Broker implements supervisor.Broker for MQTT 5.
type Broker struct {
	cfg  mqtt.Config
	sink supervisor.MessageSink
	log  logger.Logger

	cli   v5Client
	inbox *mqtt.Inbox
	open  atomic.Bool
}

var _ supervisor.Broker = (*Broker)(nil)

// NewBroker creates a Broker delivering to sink. No connection is made.
func NewBroker(cfg mqtt.Config, sink supervisor.MessageSink) (*Broker, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Broker{cfg: cfg, sink: sink, log: logger.New("mqttv5_client")}, nil
}

// Connect dials the broker and performs the CONNECT handshake with a clean
// start. A refused CONNACK yields its reason code.
func (b *Broker) Connect(ctx context.Context) error {
	b.Disconnect()
	tlsCfg, err := b.cfg.LoadTLSConfig()
	if err != nil {
		return &supervisor.ConnectError{Code: supervisor.CodeConnectFailed, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.ConnectTimeout())
	defer cancel()
	conn, err := dial(ctx, b.cfg.Address(), tlsCfg)
	if err != nil {
		return &supervisor.ConnectError{Code: dialCode(err), Err: err}
	}

	inbox := mqtt.NewInbox(b.cfg.InboxSize)
	lost := func() {
		b.open.Store(false)
		inbox.MarkLost()
	}
	cli := newV5Client(paho.ClientConfig{
		Conn: conn,
		OnPublishReceived: []func(paho.PublishReceived) (bool, error){
			func(pr paho.PublishReceived) (bool, error) {
				inbox.Put(mqtt.Message{Topic: pr.Packet.Topic, Payload: pr.Packet.Payload})
				return true, nil
			},
		},
		OnClientError: func(err error) {
			b.log.Warnf("client error: %v", err)
			lost()
		},
		OnServerDisconnect: func(d *paho.Disconnect) {
			b.log.Warnf("server disconnect: reason 0x%02x", d.ReasonCode)
			lost()
		},
	})

	cp := &paho.Connect{
		ClientID:   b.cfg.ClientID,
		KeepAlive:  uint16(b.cfg.KeepAliveSeconds),
		CleanStart: true,
	}
	if b.cfg.Username != "" {
		cp.Username, cp.UsernameFlag = b.cfg.Username, true
	}
	if b.cfg.Password != "" {
		cp.Password, cp.PasswordFlag = []byte(b.cfg.Password), true
	}

	ca, err := cli.Connect(ctx, cp)
	if ca != nil && ca.ReasonCode >= reasonFailure {
		_ = conn.Close()
		if err == nil {
			err = fmt.Errorf("connack reason 0x%02x", ca.ReasonCode)
		}
		return &supervisor.ConnectError{Code: int(ca.ReasonCode), Err: err}
	}
	if err != nil {
		_ = conn.Close()
		return &supervisor.ConnectError{Code: dialCode(err), Err: err}
	}

	b.cli, b.inbox = cli, inbox
	b.open.Store(true)
	b.log.Infof("connected to %s", b.cfg.Address())
	return nil
}

// Subscribe registers topic on the current session.
func (b *Broker) Subscribe(ctx context.Context, topic string, qos byte) error {
	if b.cli == nil {
		return mqtt.ErrNotConnected
	}
	sa, err := b.cli.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: topic, QoS: qos}},
	})
	if err != nil {
		return fmt.Errorf("%w %q: %w", mqtt.ErrSubscribeFailed, topic, err)
	}
	if sa != nil {
		for _, r := range sa.Reasons {
			if r >= reasonFailure {
				return fmt.Errorf("%w %q: reason 0x%02x", mqtt.ErrSubscribeFailed, topic, r)
			}
		}
	}
	b.log.Infof("subscribed to %q qos=%d", topic, qos)
	return nil
}

// Loop drains the session inbox to the sink, waiting up to the poll
// interval for the first message.
func (b *Broker) Loop(ctx context.Context) int {
	if b.inbox == nil {
		return 0
	}
	return b.inbox.Drain(ctx, b.cfg.PollInterval(), b.sink)
}

// IsConnected reports whether the session is established and not lost.
func (b *Broker) IsConnected() bool {
	return b.cli != nil && b.open.Load()
}

// Disconnect sends DISCONNECT if the session is up and releases it.
func (b *Broker) Disconnect() {
	if b.inbox != nil {
		b.inbox.Close()
	}
	if b.cli != nil && b.open.Swap(false) {
		if err := b.cli.Disconnect(&paho.Disconnect{ReasonCode: 0}); err != nil {
			b.log.Debugf("disconnect: %v", err)
		}
	}
	b.cli, b.inbox = nil, nil
}

func dialCode(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return supervisor.CodeConnectionTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return supervisor.CodeConnectionTimeout
	}
	return supervisor.CodeConnectFailed
}
