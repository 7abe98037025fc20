package mqtt

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Protocol versions understood by the agent.
const (
	ProtocolV311 = 4
	ProtocolV5   = 5
)

// Defaults applied by SetDefaults.
const (
	DefaultPort           = 8883
	DefaultTopic          = "#"
	DefaultQoS            = 1
	DefaultKeepAlive      = 15
	DefaultConnectTimeout = 10
	DefaultRetryDelayMS   = 5000
	DefaultPollIntervalMS = 100
	DefaultInboxSize      = 64
)

// Config defines the broker session parameters.
type Config struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Protocol int    `json:"protocol"`
	// ClientID is left blank by default; the broker assigns one.
	ClientID string `json:"client_id"`
	Username string `json:"username"`
	Password string `json:"password"`
	Topic    string `json:"topic"`
	// QoS is not defaulted by SetDefaults since 0 is a valid level.
	QoS      byte   `json:"qos"`

	KeepAliveSeconds      int `json:"keep_alive_seconds"`
	ConnectTimeoutSeconds int `json:"connect_timeout_seconds"`
	RetryDelayMS          int `json:"retry_delay_ms"`
	PollIntervalMS        int `json:"poll_interval_ms"`
	InboxSize             int `json:"inbox_size"`

	TLS TLSConfig `json:"tls"`
	// TLSConfig overrides TLS when set. It is never read from configuration.
	TLSConfig *tls.Config `json:"-"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Protocol == 0 {
		c.Protocol = ProtocolV311
	}
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	if c.KeepAliveSeconds == 0 {
		c.KeepAliveSeconds = DefaultKeepAlive
	}
	if c.ConnectTimeoutSeconds == 0 {
		c.ConnectTimeoutSeconds = DefaultConnectTimeout
	}
	if c.RetryDelayMS == 0 {
		c.RetryDelayMS = DefaultRetryDelayMS
	}
	if c.PollIntervalMS == 0 {
		c.PollIntervalMS = DefaultPollIntervalMS
	}
	if c.InboxSize == 0 {
		c.InboxSize = DefaultInboxSize
	}
	if c.TLS.Mode == "" {
		c.TLS.Mode = TLSStrict
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	var errs []error
	if c.Host == "" {
		errs = append(errs, errors.New("host is required"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Port))
	}
	if c.Protocol != ProtocolV311 && c.Protocol != ProtocolV5 {
		errs = append(errs, fmt.Errorf("unsupported protocol %d", c.Protocol))
	}
	if c.Topic == "" {
		errs = append(errs, errors.New("topic is required"))
	}
	if c.QoS > 2 {
		errs = append(errs, fmt.Errorf("invalid qos %d", c.QoS))
	}
	if c.KeepAliveSeconds < 0 || c.KeepAliveSeconds > 65535 {
		errs = append(errs, fmt.Errorf("invalid keep_alive_seconds %d", c.KeepAliveSeconds))
	}
	if c.RetryDelayMS <= 0 {
		errs = append(errs, fmt.Errorf("retry_delay_ms must be positive, got %d", c.RetryDelayMS))
	}
	if c.InboxSize <= 0 {
		errs = append(errs, fmt.Errorf("inbox_size must be positive, got %d", c.InboxSize))
	}
	if c.PollIntervalMS <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval_ms must be positive, got %d", c.PollIntervalMS))
	}
	if c.ConnectTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("connect_timeout_seconds must be positive, got %d", c.ConnectTimeoutSeconds))
	}
	if err := c.TLS.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Address returns host:port.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// BrokerURL returns the paho broker URL, ssl:// unless TLS is disabled.
func (c Config) BrokerURL() string {
	scheme := "ssl"
	if c.TLS.Mode == TLSDisabled && c.TLSConfig == nil {
		scheme = "tcp"
	}
	return scheme + "://" + c.Address()
}

func (c Config) KeepAlive() time.Duration { return time.Duration(c.KeepAliveSeconds) * time.Second }

func (c Config) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

func (c Config) RetryDelay() time.Duration { return time.Duration(c.RetryDelayMS) * time.Millisecond }

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}
