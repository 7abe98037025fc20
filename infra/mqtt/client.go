package mqtt

import (
	"context"
	"errors"
	"fmt"
	"net"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/mqttwatch/core/supervisor"
	"github.com/kilianp07/mqttwatch/infra/logger"
)

const disconnectQuiesce = 250 // milliseconds

// subAckFailure is the SUBACK return code for a refused subscription.
const subAckFailure = 0x80

type pahoClient interface {
	IsConnectionOpen() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Broker implements supervisor.Broker with Eclipse Paho (MQTT 3.1.1).
//
// Paho delivers messages on its own goroutines; they are queued in a
// per-session Inbox and handed to the sink only from Loop, on the caller's
// goroutine. Paho's auto-reconnect is disabled: the supervisor decides
// when to reconnect.
type Broker struct {
	cfg  Config
	sink supervisor.MessageSink
	log  logger.Logger

	cli   pahoClient
	inbox *Inbox
}

var _ supervisor.Broker = (*Broker)(nil)

// NewBroker creates a Broker delivering to sink. No connection is made.
func NewBroker(cfg Config, sink supervisor.MessageSink) (*Broker, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Broker{cfg: cfg, sink: sink, log: logger.New("mqtt_client")}, nil
}

// NewClientOptions builds paho client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().
		AddBroker(cfg.BrokerURL()).
		SetClientID(cfg.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetKeepAlive(cfg.KeepAlive()).
		SetConnectTimeout(cfg.ConnectTimeout()).
		SetProtocolVersion(uint(ProtocolV311))
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	tlsCfg, err := cfg.LoadTLSConfig()
	if err != nil {
		return nil, err
	}
	if tlsCfg != nil {
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}

// Connect opens a new session, discarding any previous one.
func (b *Broker) Connect(ctx context.Context) error {
	b.Disconnect()
	opts, err := NewClientOptions(b.cfg)
	if err != nil {
		return &supervisor.ConnectError{Code: supervisor.CodeConnectFailed, Err: err}
	}
	inbox := NewInbox(b.cfg.InboxSize)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		b.log.Warnf("connection lost: %v", err)
		inbox.MarkLost()
	})

	cli := newMQTTClient(opts)
	tok := cli.Connect()
	if err := waitToken(ctx, tok); err != nil {
		cli.Disconnect(0)
		return &supervisor.ConnectError{Code: supervisor.CodeConnectionTimeout, Err: err}
	}
	if err := tok.Error(); err != nil {
		return &supervisor.ConnectError{Code: returnCode(tok, err), Err: err}
	}
	b.cli, b.inbox = cli, inbox
	b.log.Infof("connected to %s", b.cfg.Address())
	return nil
}

// Subscribe registers topic on the current session. Inbound messages are
// queued from then on.
func (b *Broker) Subscribe(ctx context.Context, topic string, qos byte) error {
	if b.cli == nil || b.inbox == nil {
		return ErrNotConnected
	}
	inbox := b.inbox
	tok := b.cli.Subscribe(topic, qos, func(_ paho.Client, m paho.Message) {
		inbox.Put(Message{Topic: m.Topic(), Payload: m.Payload()})
	})
	if err := waitToken(ctx, tok); err != nil {
		return err
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("%w %q: %w", ErrSubscribeFailed, topic, err)
	}
	if st, ok := tok.(*paho.SubscribeToken); ok {
		if rc, ok := st.Result()[topic]; ok && rc == subAckFailure {
			return fmt.Errorf("%w %q: refused by broker", ErrSubscribeFailed, topic)
		}
	}
	b.log.Infof("subscribed to %q qos=%d", topic, qos)
	return nil
}

// Loop waits up to the poll interval for an inbound message, then drains
// whatever is queued to the sink and returns the number delivered. It returns
// early when the session is lost or ctx is done.
func (b *Broker) Loop(ctx context.Context) int {
	if b.inbox == nil {
		return 0
	}
	return b.inbox.Drain(ctx, b.cfg.PollInterval(), b.sink)
}

// IsConnected reports whether the session is open and has not been lost.
func (b *Broker) IsConnected() bool {
	return b.cli != nil && b.inbox != nil && !b.inbox.Lost() && b.cli.IsConnectionOpen()
}

// Disconnect closes the session if any.
func (b *Broker) Disconnect() {
	if b.inbox != nil {
		b.inbox.Close()
	}
	if b.cli != nil && b.cli.IsConnectionOpen() {
		b.cli.Disconnect(disconnectQuiesce)
	}
	b.cli, b.inbox = nil, nil
}

func waitToken(ctx context.Context, tok paho.Token) error {
	select {
	case <-tok.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// returnCode maps a failed connect to a session state code: CONNACK refusals
// keep their value, timeouts are -4, anything else -2.
func returnCode(tok paho.Token, err error) int {
	if ct, ok := tok.(*paho.ConnectToken); ok {
		if rc := ct.ReturnCode(); rc >= supervisor.CodeBadProtocol && rc <= supervisor.CodeUnauthorized {
			return int(rc)
		}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return supervisor.CodeConnectionTimeout
	}
	return supervisor.CodeConnectFailed
}
